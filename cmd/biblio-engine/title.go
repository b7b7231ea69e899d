package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var titleCmd = &cobra.Command{
	Use:   "title [new title]",
	Short: "Show or set the bibliography title",
	RunE:  runTitle,
}

func init() {
	rootCmd.AddCommand(titleCmd)
}

func runTitle(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	if len(args) == 0 {
		title, err := sess.engine.Title()
		if err != nil {
			return err
		}
		fmt.Println(title)
		return nil
	}
	return sess.engine.SetTitle(strings.Join(args, " "))
}
