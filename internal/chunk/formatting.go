package chunk

import (
	"strings"

	"github.com/sprite-ai/revq/internal/model"
)

// FormattingScheme splits lines into "formatting-only" and "substantive"
// groups. A line is formatting-only when its whitespace/comment-normalized
// content equals the normalized content of the removed line at the same
// relative position in the hunk. This is a heuristic: semantically
// significant whitespace (Python indentation, Makefiles) can be
// misclassified.
type FormattingScheme struct{}

func (FormattingScheme) Name() string { return "formatting-only" }

const (
	GroupFormattingOnly = "formatting-only"
	GroupSubstantive    = "substantive"
)

func (s FormattingScheme) Partition(ds *model.DiffSet) (*model.Grouping, error) {
	b := newBuilder(s.Name())

	for _, f := range ds.Files {
		if !f.Reviewable() {
			continue
		}
		for _, h := range f.Hunks {
			formatting := classifyHunk(h)
			for _, l := range h.Lines {
				if !l.Reviewable() {
					continue
				}
				if formatting[l.ID] {
					b.add(GroupFormattingOnly, l)
				} else {
					b.add(GroupSubstantive, l)
				}
			}
		}
	}

	return b.grouping(), nil
}

// classifyHunk pairs the hunk's added lines with its removed lines by
// relative position and marks pairs whose normalized contents match.
func classifyHunk(h *model.Hunk) map[model.LineID]bool {
	var added, removed []*model.DiffLine
	for _, l := range h.Lines {
		switch l.Kind {
		case model.KindAdded:
			added = append(added, l)
		case model.KindRemoved:
			removed = append(removed, l)
		}
	}

	out := make(map[model.LineID]bool, len(added))
	for i, l := range added {
		if i < len(removed) && normalizeLine(l.Content) == normalizeLine(removed[i].Content) && normalizeLine(l.Content) != "" {
			out[l.ID] = true
		}
	}
	return out
}

// normalizeLine strips all whitespace and trailing line comments so that
// re-indentation and comment tweaks compare equal.
func normalizeLine(s string) string {
	for _, marker := range []string{"//", "#"} {
		if i := strings.Index(s, marker); i >= 0 {
			s = s[:i]
		}
	}
	var b strings.Builder
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\r' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// IsFormattingOnly reports whether the line was classified formatting-only
// within its hunk. Used by the filter predicate.
func IsFormattingOnly(h *model.Hunk, id model.LineID) bool {
	return classifyHunk(h)[id]
}
