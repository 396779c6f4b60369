// Package model defines the core data types shared across revq.
package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// Status is the review state of a single diff line.
type Status int

const (
	Unreviewed Status = iota
	Skimmed
	DeepReviewed
	Filtered
)

func (s Status) String() string {
	switch s {
	case Unreviewed:
		return "unreviewed"
	case Skimmed:
		return "skimmed"
	case DeepReviewed:
		return "deep-reviewed"
	case Filtered:
		return "filtered"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status counts as resolved.
func (s Status) Terminal() bool {
	return s != Unreviewed
}

// ParseStatus converts a persisted status string back to a Status.
func ParseStatus(s string) (Status, error) {
	switch s {
	case "unreviewed":
		return Unreviewed, nil
	case "skimmed":
		return Skimmed, nil
	case "deep-reviewed":
		return DeepReviewed, nil
	case "filtered":
		return Filtered, nil
	}
	return Unreviewed, fmt.Errorf("unknown status %q", s)
}

// ChangeKind categorizes a diff line.
type ChangeKind int

const (
	KindContext ChangeKind = iota
	KindAdded
	KindRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindRemoved:
		return "removed"
	default:
		return "context"
	}
}

// LineID identifies a diff line. It is a deterministic function of the file
// path and the post-image line number, so re-ingesting a refreshed diff maps
// surviving lines back onto their prior identity.
type LineID string

// NewLineID derives the identity for a line at the given post-image position.
func NewLineID(path string, newLine int) LineID {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d", path, newLine)))
	return LineID(fmt.Sprintf("%x", sum[:8]))
}

// DiffLine is one line of a parsed diff. Only added lines are reviewable;
// context and removed lines are retained for display.
type DiffLine struct {
	ID      LineID
	File    string
	Hunk    int // index of the owning hunk within its file
	OldLine int // pre-image line number, 0 for added lines
	NewLine int // post-image line number, 0 for removed lines
	Content string
	Kind    ChangeKind
	Status  Status
}

// Reviewable reports whether the line counts toward review totals.
func (l *DiffLine) Reviewable() bool {
	return l.Kind == KindAdded
}

// Hunk is an ordered run of diff lines in one file. Immutable after ingestion.
type Hunk struct {
	File     string
	Index    int
	Header   string
	OldPos   int
	OldLines int
	NewPos   int
	NewLines int
	Lines    []*DiffLine
}

// ReviewableLines returns the hunk's added lines.
func (h *Hunk) ReviewableLines() []*DiffLine {
	var out []*DiffLine
	for _, l := range h.Lines {
		if l.Reviewable() {
			out = append(out, l)
		}
	}
	return out
}

// File is one file in a diff.
type File struct {
	Path      string
	OldPath   string
	IsNew     bool
	IsDeleted bool
	IsRenamed bool
	IsBinary  bool
	Hunks     []*Hunk
}

// Name returns the display name for the file.
func (f *File) Name() string {
	if f.IsRenamed {
		return fmt.Sprintf("%s → %s", f.OldPath, f.Path)
	}
	if f.IsDeleted && f.Path == "" {
		return f.OldPath
	}
	return f.Path
}

// Reviewable reports whether the file contributes reviewable lines.
func (f *File) Reviewable() bool {
	return !f.IsBinary
}

// DiffSet holds the normalized diff for all files.
type DiffSet struct {
	Files []*File
	Raw   string
	Hash  string // content hash of the raw diff, used for session reconciliation
}

// Lines iterates every line in diff order.
func (ds *DiffSet) Lines(fn func(*File, *DiffLine)) {
	for _, f := range ds.Files {
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				fn(f, l)
			}
		}
	}
}

// ReviewableCount returns the number of reviewable lines across the diff.
func (ds *DiffSet) ReviewableCount() int {
	n := 0
	ds.Lines(func(f *File, l *DiffLine) {
		if f.Reviewable() && l.Reviewable() {
			n++
		}
	})
	return n
}

// Stats returns aggregate counts.
func (ds *DiffSet) Stats() (files, added, removed int) {
	files = len(ds.Files)
	ds.Lines(func(_ *File, l *DiffLine) {
		switch l.Kind {
		case KindAdded:
			added++
		case KindRemoved:
			removed++
		}
	})
	return
}

// AggregateStatus summarizes a group's member statuses.
type AggregateStatus int

const (
	GroupPartial AggregateStatus = iota
	GroupReviewed
)

func (a AggregateStatus) String() string {
	if a == GroupReviewed {
		return "reviewed"
	}
	return "partial"
}

// Group is a named set of reviewable lines produced by a grouping scheme.
// Groups reference lines but do not own them; status lives on the DiffLine.
type Group struct {
	ID      string
	Label   string
	Scheme  string
	Members []LineID

	// MinPath is the lexically smallest member file path, used as a
	// deterministic tie-break when ranking groups.
	MinPath string
}

// Grouping is one scheme's partition of all reviewable lines.
type Grouping struct {
	Scheme string
	Groups []*Group
	Stale  bool // set while a background recomputation is in flight
}

// Find returns the group with the given label or id, or nil.
func (g *Grouping) Find(name string) *Group {
	for _, grp := range g.Groups {
		if grp.Label == name || grp.ID == name {
			return grp
		}
	}
	return nil
}

// SortGroups orders groups by id for stable listings.
func (g *Grouping) SortGroups() {
	sort.Slice(g.Groups, func(i, j int) bool { return g.Groups[i].ID < g.Groups[j].ID })
}
