// Package history reads co-change and commit metadata from a git repository.
// It runs before the engine mutates anything; the engine consumes its output
// as read-only input.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/sprite-ai/revq/internal/chunk"
)

// Client reads history from a local repository.
type Client struct {
	Logger *slog.Logger
}

// NewClient returns a history client.
func NewClient(logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{Logger: logger}
}

// CoChangePairs walks up to maxCommits from HEAD and counts, for every file
// pair, how many commits modified both. Commits touching more than
// maxFilesPerCommit files are skipped: bulk renames and imports would
// otherwise glue unrelated files together.
func (c *Client) CoChangePairs(ctx context.Context, repoDir string, maxCommits, maxFilesPerCommit int) ([]chunk.PairCount, error) {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", repoDir, err)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commitFiles [][]string
	seen := 0
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen >= maxCommits {
			return errStopIteration
		}
		seen++

		stats, err := commit.Stats()
		if err != nil {
			// Merge commits and root commits can fail stat computation;
			// skip rather than abort the walk.
			return nil
		}
		if len(stats) > maxFilesPerCommit {
			return nil
		}
		var files []string
		for _, st := range stats {
			files = append(files, st.Name)
		}
		commitFiles = append(commitFiles, files)
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, fmt.Errorf("walk log: %w", err)
	}

	pairs := PairCounts(commitFiles)
	c.Logger.Debug("co-change scan complete", "commits", seen, "pairs", len(pairs))
	return pairs, nil
}

var errStopIteration = fmt.Errorf("stop iteration")

// PairCounts aggregates per-commit file lists into sorted pair counts.
func PairCounts(commitFiles [][]string) []chunk.PairCount {
	counts := map[[2]string]int{}
	for _, files := range commitFiles {
		sorted := append([]string{}, files...)
		sort.Strings(sorted)
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				counts[[2]string{sorted[i], sorted[j]}]++
			}
		}
	}

	out := make([]chunk.PairCount, 0, len(counts))
	for pair, n := range counts {
		out = append(out, chunk.PairCount{A: pair[0], B: pair[1], Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// CommitMap returns, for each path, the most recent commit that touched it,
// scanning up to maxCommits from HEAD. Feeds the commit grouping scheme.
func (c *Client) CommitMap(ctx context.Context, repoDir string, maxCommits int) (map[string]chunk.CommitInfo, error) {
	repo, err := git.PlainOpen(repoDir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", repoDir, err)
	}

	iter, err := repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	out := map[string]chunk.CommitInfo{}
	seen := 0
	err = iter.ForEach(func(commit *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if seen >= maxCommits {
			return errStopIteration
		}
		seen++

		stats, err := commit.Stats()
		if err != nil {
			return nil
		}
		info := chunk.CommitInfo{
			Hash:    commit.Hash.String(),
			Subject: firstLine(commit.Message),
		}
		for _, st := range stats {
			if _, ok := out[st.Name]; !ok {
				out[st.Name] = info
			}
		}
		return nil
	})
	if err != nil && err != errStopIteration {
		return nil, fmt.Errorf("walk log: %w", err)
	}
	return out, nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
