package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove [keys...]",
	Short: "Remove items by key",
	Long: `Remove deletes items from the collection. The most recent delete can be
reversed with "undo", including from a later invocation; each delete
supersedes the previous undo buffer.`,
	RunE: runRemove,
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Restore the most recently removed item",
	RunE:  runUndo,
}

func init() {
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(undoCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more item keys")
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	for _, key := range args {
		if err := sess.engine.DeleteItem(key); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", key)
	}
	return nil
}

func runUndo(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	return sess.engine.UndoDelete()
}
