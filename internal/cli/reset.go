package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/store"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard the persisted session for this change",
	Long: `Delete the change's session record, statuses, cursor, and audit
trail. The next command starts from a fresh, fully Unreviewed queue.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	change, err := changeID(cmd)
	if err != nil {
		return err
	}
	repoDir, err := gitRepoRoot()
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(ui.Out, "discard all review state for %q? [y/N] ", change)
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(ui.Out, "aborted")
			return nil
		}
	}

	st, err := store.NewSQLiteStore(sessionDBPath(repoDir, change))
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(cmd.Context()); err != nil {
		return err
	}
	if err := st.Delete(cmd.Context(), change); err != nil {
		return err
	}

	log.Info("session reset", "change", change)
	fmt.Fprintf(ui.Out, "session %q reset\n", change)
	return nil
}
