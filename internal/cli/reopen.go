package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/render"
)

var reopenCmd = &cobra.Command{
	Use:   "reopen <selector>",
	Short: "Put resolved lines back in the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.Reopen(cmd.Context(), engine.ParseSelector(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintf(ui.Out, "%d lines reopened\n", n)
		fmt.Fprintln(ui.Out, render.StatusLine(s.Queue()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reopenCmd)
}
