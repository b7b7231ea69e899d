package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the formatted bibliography",
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().String("format", "plain", "output format: plain, yaml, or json")

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	if !sess.engine.Ready() {
		return fmt.Errorf("bibliography is not ready; check style and schema availability")
	}

	bib := sess.engine.Bibliography()
	title, err := sess.engine.Title()
	if err != nil {
		return err
	}

	switch format {
	case "plain":
		if title != "" {
			fmt.Println(title)
			fmt.Println()
		}
		for _, entry := range bib.Entries {
			fmt.Println(entry.Value)
		}
	case "yaml":
		data, err := yaml.Marshal(bib)
		if err != nil {
			return fmt.Errorf("encoding bibliography: %w", err)
		}
		fmt.Print(string(data))
	case "json":
		data, err := json.MarshalIndent(bib, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding bibliography: %w", err)
		}
		fmt.Println(string(data))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	return nil
}
