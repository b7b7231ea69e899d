package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every item and preference",
	RunE:  runClear,
}

func init() {
	clearCmd.Flags().Bool("yes", false, "skip the confirmation check")

	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return fmt.Errorf("clear deletes every item and preference; re-run with --yes")
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.engine.Clear(); err != nil {
		return err
	}
	fmt.Println("collection cleared")
	return nil
}
