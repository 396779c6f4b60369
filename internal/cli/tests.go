package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/render"
)

var testsCmd = &cobra.Command{
	Use:   "tests [commit-range]",
	Short: "Show the change's test files, optionally skimming them",
	Long: `List the test portion of the change: the test group of the file-type
scheme, broken down per file. With --skim every remaining test line is
marked Skimmed in one step.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTests,
}

func init() {
	testsCmd.Flags().Bool("skim", false, "mark every remaining test line Skimmed")
	rootCmd.AddCommand(testsCmd)
}

func runTests(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.Grouping("file-type")
	if err != nil {
		return err
	}
	grp := g.Find("test")
	if grp == nil {
		fmt.Fprintln(ui.Out, "no test files in this change")
		return nil
	}

	if skim, _ := cmd.Flags().GetBool("skim"); skim {
		// Address the lines directly; the active scheme may not be
		// file-type.
		n, err := s.Skim(cmd.Context(), engine.Selector{Group: "test", Lines: grp.Members})
		if err != nil {
			return err
		}
		fmt.Fprintf(ui.Out, "%d lines resolved\n", n)
		fmt.Fprintln(ui.Out, render.StatusLine(s.Queue()))
		if n > 0 {
			runOnReviewHook(cmd.Context(), affectedFiles(s, engine.Selector{Lines: grp.Members}))
		}
		return nil
	}

	if err := ui.GroupFiles(grp, s.Queue()); err != nil {
		return err
	}
	fmt.Fprintln(ui.Out, render.StatusLine(s.Queue()))
	return nil
}
