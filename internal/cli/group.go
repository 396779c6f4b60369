package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-ai/revq/internal/chunk"
	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/history"
)

var groupCmd = &cobra.Command{
	Use:   "group [commit-range]",
	Short: "List groups under a grouping scheme, ranked by priority",
	Long: `Partition the reviewable lines under a scheme and list the groups in
priority order. Built-in schemes: file-type, formatting-only, scope.
The commit and co-change schemes read the repository's history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGroup,
}

func init() {
	groupCmd.Flags().String("by", "file-type", "grouping scheme")
	rootCmd.AddCommand(groupCmd)
}

func runGroup(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args)
	if err != nil {
		return err
	}
	defer s.Close()

	scheme, _ := cmd.Flags().GetString("by")
	if err := installHistoryScheme(cmd, s, scheme); err != nil {
		return err
	}
	if err := s.SetActiveScheme(cmd.Context(), scheme); err != nil {
		return err
	}

	ranked, err := s.Rank()
	if err != nil {
		return err
	}
	return ui.Groups(scheme, ranked, s.Queue())
}

// installHistoryScheme partitions the commit or co-change scheme from the
// git log before it can be selected. Built-in schemes need nothing.
func installHistoryScheme(cmd *cobra.Command, s *engine.Session, scheme string) error {
	if scheme != "commit" && scheme != "co-change" {
		return nil
	}
	repoDir, err := gitRepoRoot()
	if err != nil {
		return fmt.Errorf("the %s scheme needs a git repository: %w", scheme, err)
	}
	client := history.NewClient(log)

	switch scheme {
	case "commit":
		byFile, err := client.CommitMap(cmd.Context(), repoDir, cfg.CoChange.MaxCommits)
		if err != nil {
			return fmt.Errorf("reading commit history: %w", err)
		}
		g, err := chunk.CommitScheme{ByFile: byFile}.Partition(s.DiffSet())
		if err != nil {
			return err
		}
		return s.InstallGrouping(cmd.Context(), g)

	case "co-change":
		pairs, err := client.CoChangePairs(cmd.Context(), repoDir,
			cfg.CoChange.MaxCommits, cfg.CoChange.MaxFilesPerCommit)
		if err != nil {
			return fmt.Errorf("reading co-change history: %w", err)
		}
		g, err := chunk.CoChangeScheme{Pairs: pairs, Threshold: cfg.CoChange.Threshold}.Partition(s.DiffSet())
		if err != nil {
			return err
		}
		return s.InstallGrouping(cmd.Context(), g)
	}
	return nil
}
