package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items in bibliography order",
	RunE:  runList,
}

func init() {
	listCmd.Flags().Bool("yaml", false, "emit full item records as YAML")

	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	items := sess.store.Items()
	if asYAML, _ := cmd.Flags().GetBool("yaml"); asYAML {
		data, err := yaml.Marshal(items)
		if err != nil {
			return fmt.Errorf("encoding items: %w", err)
		}
		fmt.Print(string(data))
		return nil
	}

	for i, item := range items {
		fmt.Printf("%3d  %-36s  %s\n", i+1, item.Key, item.Title())
	}
	fmt.Printf("%d item(s)\n", len(items))
	return nil
}
