package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/render"
	"github.com/sprite-ai/revq/internal/tui"
)

var reviewCmd = &cobra.Command{
	Use:   "review <selector>",
	Short: "Resolve lines by group, file, or filter",
	Long: `Resolve the selector's lines. The selector is tried as a group label
in the active scheme first, then as a file path.

Modes:
  skim    mark the lines Skimmed (default)
  deep    step through the selector's hunks one by one
  file    resolve a whole file
  filter  mark formatting-only lines Filtered; the selector names the filter

Examples:
  revq review login-flow               # skim a group
  revq review core/auth.py --mode deep # hunk-by-hunk confirmation
  revq review formatting --mode filter # drop whitespace-only noise`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().String("mode", "skim", "skim, deep, file, or filter")
	reviewCmd.Flags().String("scheme", "", "scheme to resolve group selectors against")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer s.Close()

	if scheme, _ := cmd.Flags().GetString("scheme"); scheme != "" {
		if err := installHistoryScheme(cmd, s, scheme); err != nil {
			return err
		}
		if err := s.SetActiveScheme(cmd.Context(), scheme); err != nil {
			return err
		}
	}

	sel := engine.ParseSelector(args[0])
	mode, _ := cmd.Flags().GetString("mode")

	var n int
	switch mode {
	case "skim":
		n, err = s.Skim(cmd.Context(), sel)
	case "file", "file-mode":
		n, err = s.FileMode(cmd.Context(), args[0])
	case "filter":
		n, err = s.Filter(cmd.Context(), args[0], engine.FormattingOnly())
	case "deep":
		return runDeepDive(cmd, s, sel)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%d lines resolved\n", n)
	fmt.Fprintln(ui.Out, render.StatusLine(s.Queue()))

	if n > 0 {
		runOnReviewHook(cmd.Context(), affectedFiles(s, sel))
	}
	return nil
}

func runDeepDive(cmd *cobra.Command, s *engine.Session, sel engine.Selector) error {
	d, err := s.DeepDive(cmd.Context(), sel)
	if err != nil {
		return err
	}
	if err := tui.Run(s, d); err != nil {
		return err
	}

	if d.Completed() {
		fmt.Fprintln(ui.Out, "deep dive complete")
		runOnReviewHook(cmd.Context(), affectedFiles(s, sel))
	} else {
		fmt.Fprintf(ui.Out, "deep dive paused at %s; rerun to resume\n", d.State())
	}
	fmt.Fprintln(ui.Out, render.StatusLine(s.Queue()))
	return nil
}

// affectedFiles lists the files the selector touched, for the on_review
// hook.
func affectedFiles(s *engine.Session, sel engine.Selector) []string {
	seen := map[string]bool{}
	var out []string
	add := func(id model.LineID) {
		if l := s.Queue().Get(id); l != nil && !seen[l.File] {
			seen[l.File] = true
			out = append(out, l.File)
		}
	}

	if len(sel.Lines) > 0 {
		for _, id := range sel.Lines {
			add(id)
		}
		return out
	}
	if g, err := s.Grouping(s.ActiveScheme()); err == nil {
		if grp := g.Find(sel.Group); grp != nil {
			for _, id := range grp.Members {
				add(id)
			}
			return out
		}
	}
	for _, id := range s.Queue().ByFile(sel.File) {
		add(id)
	}
	return out
}
