// Package cli wires the revq commands: ingest a diff, work the line
// queue, and report progress.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sprite-ai/revq/internal/config"
	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/logger"
	"github.com/sprite-ai/revq/internal/render"
	"github.com/sprite-ai/revq/internal/score"
	"github.com/sprite-ai/revq/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	cfg *config.Config
	log *slog.Logger
	ui  *render.UI
)

var rootCmd = &cobra.Command{
	Use:   "revq",
	Short: "Work a code-review line queue",
	Long: `revq ingests a diff into an addressable line queue and tracks how
much of it you have actually reviewed. Lines are resolved in bulk by
group or file (skim), hunk by hunk (deep dive), or by filter, and the
session survives restarts and re-ingestion of updated diffs.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute runs the CLI. Aliases from the config expand before cobra
// parses the command line.
func Execute() error {
	initConfig()
	if len(os.Args) > 1 {
		rootCmd.SetArgs(cfg.ExpandAlias(os.Args[1:]))
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.config/revq/config.yaml)")
	rootCmd.PersistentFlags().String("change", "", "change identifier (default: current branch)")
}

func initConfig() {
	cfgFile := ""
	// The flag set is not parsed yet; scan os.Args so --config applies to
	// alias expansion too.
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			cfgFile = os.Args[i+1]
		} else if strings.HasPrefix(arg, "--config=") {
			cfgFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	v := viper.GetViper()
	if err := config.Init(v, cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	c, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	cfg = c
	log = logger.New(cfg.Log, nil)
	slog.SetDefault(log)
	ui = render.New()
}

// getDiff reads the diff under review: "-" for stdin, an explicit commit
// range, or the working tree against HEAD.
func getDiff(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}

	repoDir, err := gitRepoRoot()
	if err != nil {
		return "", fmt.Errorf("not in a git repository (or git not installed): %w", err)
	}

	if len(args) == 1 {
		return diff.GitDiffRange(repoDir, args[0], 3)
	}
	return diff.GitDiff(repoDir, "HEAD")
}

func gitRepoRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func gitBranch(repoDir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	cmd.Dir = repoDir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// changeID resolves the session key: --change wins, else the branch name.
func changeID(cmd *cobra.Command) (string, error) {
	if c, _ := cmd.Flags().GetString("change"); c != "" {
		return c, nil
	}
	repoDir, err := gitRepoRoot()
	if err != nil {
		return "", fmt.Errorf("cannot derive change id outside a git repository; pass --change: %w", err)
	}
	branch, err := gitBranch(repoDir)
	if err != nil || branch == "" || branch == "HEAD" {
		return "", fmt.Errorf("cannot derive change id from a detached HEAD; pass --change")
	}
	return branch, nil
}

// sessionDBPath places the session database under .git so it never shows
// up as an untracked file.
func sessionDBPath(repoDir, change string) string {
	safe := strings.NewReplacer("/", "_", ":", "_").Replace(change)
	return filepath.Join(repoDir, ".git", "revq", safe+".db")
}

// openSession ingests the diff and opens (or resumes) the persisted
// session for the change. The caller owns Close.
func openSession(cmd *cobra.Command, args []string) (*engine.Session, error) {
	raw, err := getDiff(args)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("no changes to review")
	}

	ds, err := diff.Ingest(raw)
	if err != nil {
		return nil, err
	}

	change, err := changeID(cmd)
	if err != nil {
		return nil, err
	}

	var st store.Store
	if repoDir, rerr := gitRepoRoot(); rerr == nil {
		sqlStore, serr := store.NewSQLiteStore(sessionDBPath(repoDir, change))
		if serr != nil {
			return nil, serr
		}
		if serr := sqlStore.Migrate(cmd.Context()); serr != nil {
			return nil, serr
		}
		st = sqlStore
	}

	scorer := score.NewScorer(cfg.Weights(), cfg.Score.BoilerplatePatterns)
	return engine.Open(cmd.Context(), change, ds, engine.Options{
		Store:  st,
		Scorer: scorer,
		Logger: log,
	})
}

// runOnReviewHook executes the configured actions.on_review command once
// per affected file. Hook failures are reported, not fatal.
func runOnReviewHook(ctx context.Context, files []string) {
	if cfg.Actions.OnReview == "" {
		return
	}
	for _, f := range files {
		line := cfg.OnReviewCommand(f)
		c := exec.CommandContext(ctx, "sh", "-c", line)
		c.Stdout = os.Stderr
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			log.Warn("on_review hook failed", "file", f, "cmd", line, "err", err)
		}
	}
}
