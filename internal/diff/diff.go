// Package diff ingests unified diffs into the addressable line model.
package diff

import (
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/sprite-ai/revq/internal/model"
)

// Ingest parses raw unified-diff text into a normalized DiffSet. Malformed
// hunk headers or unterminated hunks produce a *model.ParseError; binary
// files are flagged non-reviewable rather than failing.
func Ingest(raw string) (*model.DiffSet, error) {
	parsed, _, err := gitdiff.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, &model.ParseError{Location: locationOf(err), Err: err}
	}

	ds := &model.DiffSet{
		Raw:  raw,
		Hash: HashDiff(raw),
	}

	for _, f := range parsed {
		df := &model.File{
			Path:      f.NewName,
			OldPath:   f.OldName,
			IsNew:     f.IsNew,
			IsDeleted: f.IsDelete,
			IsRenamed: f.IsRename,
			IsBinary:  f.IsBinary,
		}
		if df.Path == "" {
			df.Path = f.OldName
		}

		for i, frag := range f.TextFragments {
			df.Hunks = append(df.Hunks, buildHunk(df.Path, i, frag))
		}

		ds.Files = append(ds.Files, df)
	}

	return ds, nil
}

func buildHunk(path string, index int, frag *gitdiff.TextFragment) *model.Hunk {
	h := &model.Hunk{
		File:     path,
		Index:    index,
		Header:   frag.Header(),
		OldPos:   int(frag.OldPosition),
		OldLines: int(frag.OldLines),
		NewPos:   int(frag.NewPosition),
		NewLines: int(frag.NewLines),
	}

	oldNum := int(frag.OldPosition)
	newNum := int(frag.NewPosition)

	for _, line := range frag.Lines {
		dl := &model.DiffLine{
			File:    path,
			Hunk:    index,
			Content: strings.TrimSuffix(line.Line, "\n"),
			Status:  model.Unreviewed,
		}
		switch line.Op {
		case gitdiff.OpAdd:
			dl.Kind = model.KindAdded
			dl.NewLine = newNum
			dl.ID = model.NewLineID(path, newNum)
			newNum++
		case gitdiff.OpDelete:
			dl.Kind = model.KindRemoved
			dl.OldLine = oldNum
			// Removed lines have no post-image position; key them off the
			// pre-image side so they stay addressable for display.
			dl.ID = model.NewLineID(path+"#old", oldNum)
			oldNum++
		default:
			dl.Kind = model.KindContext
			dl.OldLine = oldNum
			dl.NewLine = newNum
			dl.ID = model.NewLineID(path, newNum)
			oldNum++
			newNum++
		}
		h.Lines = append(h.Lines, dl)
	}

	return h
}

// HashDiff returns the content hash stored with a session record.
func HashDiff(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// Reconcile carries review statuses from a previous session onto a freshly
// ingested diff. Lines whose LineID recurs keep their prior status; new
// lines start Unreviewed; statuses for vanished lines are dropped. Applying
// it to an unchanged diff is a no-op.
func Reconcile(ds *model.DiffSet, prior map[model.LineID]model.Status) {
	if len(prior) == 0 {
		return
	}
	ds.Lines(func(f *model.File, l *model.DiffLine) {
		if !f.Reviewable() || !l.Reviewable() {
			return
		}
		if st, ok := prior[l.ID]; ok {
			l.Status = st
		}
	})
}

func locationOf(err error) string {
	// gitdiff error strings lead with the offending line number.
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 && strings.HasPrefix(msg, "line ") {
		return msg[:i]
	}
	return ""
}

// GitDiff runs `git diff` with the given arguments and returns the raw output.
func GitDiff(repoDir string, args ...string) (string, error) {
	cmdArgs := append([]string{"diff"}, args...)
	cmd := exec.Command("git", cmdArgs...)
	cmd.Dir = repoDir
	cmd.Stderr = os.Stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git diff: %w", err)
	}

	return string(out), nil
}

// GitDiffRange returns the diff for a commit range like "main...HEAD".
func GitDiffRange(repoDir string, commitRange string, contextLines int) (string, error) {
	return GitDiff(repoDir, fmt.Sprintf("-U%d", contextLines), commitRange)
}
