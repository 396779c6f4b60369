package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [commit-range]",
	Short: "Print the one-line review progress summary",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	ui.Status(s.Queue())
	if d := s.Dive(); d != nil && !d.Completed() {
		fmt.Fprintf(ui.Out, "deep dive in flight: %s\n", d.State())
	}
	return nil
}

var remainingCmd = &cobra.Command{
	Use:   "remaining [commit-range]",
	Short: "Print the remaining line count and the suggested next group",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRemaining,
}

func init() {
	rootCmd.AddCommand(remainingCmd)
}

func runRemaining(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Fprintln(ui.Out, s.Queue().Remaining())
	if sg, ok := s.NextPriorityGroup(); ok {
		ui.NextUp(sg)
	}
	return nil
}
