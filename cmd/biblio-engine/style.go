package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var styleCmd = &cobra.Command{
	Use:   "style",
	Short: "Inspect or switch the active citation style",
}

var styleGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active style and its capabilities",
	RunE:  runStyleGet,
}

var styleSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Switch the active style",
	Long: `Set resolves the named style and makes it active, rebuilding the
bibliography. Styles that demand sentence-case titles rewrite item titles
irreversibly; over a non-empty collection the switch requires an explicit
--confirm (or --cancel to abandon it).`,
	Args: cobra.ExactArgs(1),
	RunE: runStyleSet,
}

var styleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List styles available in the repository",
	RunE:  runStyleList,
}

func init() {
	styleSetCmd.Flags().Bool("confirm", false, "confirm an irreversible title transformation")
	styleSetCmd.Flags().Bool("cancel", false, "abandon the switch if confirmation is required")

	styleCmd.AddCommand(styleGetCmd, styleSetCmd, styleListCmd)
	rootCmd.AddCommand(styleCmd)
}

func runStyleGet(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	style := sess.engine.ActiveStyle()
	if style == nil {
		return fmt.Errorf("no active style")
	}
	fmt.Printf("%s (%s)\n", style.Name, style.Title)
	fmt.Printf("  bibliography=%t numeric=%t note=%t sorted=%t sentence-case=%t\n",
		style.Flags.HasBibliography, style.Flags.Numeric, style.Flags.Note,
		style.Flags.Sorted, style.Flags.SentenceCase)
	return nil
}

func runStyleSet(cmd *cobra.Command, args []string) error {
	confirm, _ := cmd.Flags().GetBool("confirm")
	cancel, _ := cmd.Flags().GetBool("cancel")
	if confirm && cancel {
		return fmt.Errorf("--confirm and --cancel are mutually exclusive")
	}

	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	if err := sess.engine.ChangeStyle(cmd.Context(), args[0]); err != nil {
		return err
	}

	if pending := sess.engine.PendingStyle(); pending != nil {
		switch {
		case confirm:
			if err := sess.engine.ConfirmStyle(); err != nil {
				return err
			}
			fmt.Printf("style %s applied; titles converted to sentence case\n", pending.Name)
		case cancel:
			if err := sess.engine.CancelStyle(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("style switch cancelled")
		default:
			return fmt.Errorf("style %s converts item titles to sentence case; re-run with --confirm or --cancel", pending.Name)
		}
		return nil
	}

	fmt.Printf("style set to %s\n", args[0])
	return nil
}

func runStyleList(cmd *cobra.Command, args []string) error {
	sess, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	infos, err := sess.resolver.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%-40s  %s\n", info.Name, info.Title)
	}
	fmt.Printf("%d style(s)\n", len(infos))

	installed, err := sess.engine.InstalledStyles()
	if err != nil {
		return err
	}
	if len(installed) > 0 {
		fmt.Printf("installed: %s\n", strings.Join(installed, ", "))
	}
	return nil
}
