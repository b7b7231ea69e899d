package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/biblio-engine/internal/engine"
	"github.com/pdiddy/biblio-engine/pkg/types"
)

var addCmd = &cobra.Command{
	Use:   "add [inputs...]",
	Short: "Add items from identifiers, URLs, or an import file",
	Long: `Add resolves each input (DOI, ISBN, PMID, arXiv ID, or URL) into
bibliographic items and appends them to the collection. With --import the
single argument is a file whose payload (BibTeX, RIS, ...) is translated as
a whole.

When a lookup offers several candidates, pass --select with the candidate
keys or indices to resolve; without it the candidates are listed and nothing
is committed. --more follows the server's continuation cursor and lists
additional candidate pages.`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().Bool("import", false, "treat the argument as an import file")
	addCmd.Flags().String("select", "", "comma-separated candidate keys or indices to commit")
	addCmd.Flags().Bool("more", false, "follow the continuation cursor for additional candidates")

	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more identifiers, URLs, or an import file")
	}

	doImport, _ := cmd.Flags().GetBool("import")
	selection, _ := cmd.Flags().GetString("select")

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	if doImport {
		if len(args) != 1 {
			return fmt.Errorf("--import takes exactly one file")
		}
		payload, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading import file: %w", err)
		}
		return addOne(cmd, sess, string(payload), engine.TranslateOptions{Import: true}, selection)
	}

	failed := 0
	for _, input := range args {
		if err := addOne(cmd, sess, input, engine.TranslateOptions{}, selection); err != nil {
			fmt.Fprintf(os.Stderr, "  FAILED %s: %v\n", input, err)
			failed++
		}
	}
	fmt.Printf("Added %d of %d input(s)\n", len(args)-failed, len(args))
	if failed > 0 {
		return fmt.Errorf("%d input(s) failed", failed)
	}
	return nil
}

func addOne(cmd *cobra.Command, sess *session, input string, opts engine.TranslateOptions, selection string) error {
	out, err := sess.engine.Translate(cmd.Context(), input, opts)
	if err != nil {
		return err
	}

	for _, dup := range out.Duplicates {
		fmt.Fprintf(os.Stderr, "  possible duplicate of %s: %q\n", dup.ExistingKey, dup.CandidateTitle)
	}

	switch out.Result {
	case types.TranslationFailed:
		return fmt.Errorf("could not translate")

	case types.TranslationMultipleChoices:
		if selection == "" {
			choices := out.Choices
			if more, _ := cmd.Flags().GetBool("more"); more {
				next, err := sess.engine.FetchMoreChoices(cmd.Context())
				if err != nil {
					return err
				}
				choices = append(choices, next.Choices...)
			}
			fmt.Printf("%s offers %d candidates:\n", input, len(choices))
			for _, c := range choices {
				fmt.Printf("  %s  %s\n", c.Key, c.Title)
			}
			fmt.Println("Re-run with --select to commit candidates, or --more for further pages.")
			return nil
		}
		for _, key := range strings.Split(selection, ",") {
			key = strings.TrimSpace(key)
			if _, err := sess.engine.SelectChoice(cmd.Context(), key); err != nil {
				return err
			}
			fmt.Printf("  added candidate %s\n", key)
		}
		return nil

	case types.TranslationComplete:
		staged := sess.engine.Staged()
		if len(staged) == 0 {
			if len(out.Items) == 0 {
				fmt.Printf("  no results for %s\n", input)
				return nil
			}
			fmt.Printf("  added %q\n", out.Items[0].Title())
			return nil
		}
		return commitStaged(sess, selection)
	}
	return nil
}

// commitStaged commits staged multi-item results, either the --select subset
// (1-based indices) or, with no selection, lists rendered previews and
// commits nothing.
func commitStaged(sess *session, selection string) error {
	if selection == "" {
		previews, err := sess.engine.PreviewStaged()
		if err != nil {
			return err
		}
		fmt.Printf("Resolved %d items:\n", len(previews))
		for i, p := range previews {
			fmt.Printf("  %d  %s\n", i+1, p.Current)
			if p.Incoming != "" {
				fmt.Printf("     incoming style: %s\n", p.Incoming)
			}
		}
		fmt.Println("Re-run with --select to commit a subset.")
		sess.engine.DiscardSelection()
		return nil
	}

	var indices []int
	for _, part := range strings.Split(selection, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fmt.Errorf("invalid selection %q", part)
		}
		indices = append(indices, n-1)
	}
	if err := sess.engine.CommitSelection(indices); err != nil {
		return err
	}
	fmt.Printf("  added %d item(s)\n", len(indices))
	return nil
}
