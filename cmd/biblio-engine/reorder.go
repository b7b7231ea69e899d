package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <source-key> <target-key>",
	Short: "Move an item before (or after) another",
	Long: `Reorder moves the source item to the target item's position. By default
the source is placed before the target; pass --after to place it after. The
move is keyed by item identity, not index, so it is stable under concurrent
edits.`,
	Args: cobra.ExactArgs(2),
	RunE: runReorder,
}

func init() {
	reorderCmd.Flags().Bool("after", false, "place the source after the target")

	rootCmd.AddCommand(reorderCmd)
}

func runReorder(cmd *cobra.Command, args []string) error {
	after, _ := cmd.Flags().GetBool("after")

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.engine.Reorder(args[0], args[1], !after); err != nil {
		return err
	}
	fmt.Printf("moved %s %s %s\n", args[0], placement(after), args[1])
	return nil
}

func placement(after bool) string {
	if after {
		return "after"
	}
	return "before"
}
