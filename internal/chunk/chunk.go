// Package chunk derives grouping partitions over reviewable lines.
package chunk

import (
	"fmt"
	"sort"

	"github.com/sprite-ai/revq/internal/model"
)

// Scheme produces exactly one partition of all reviewable lines: every
// reviewable line belongs to exactly one group.
type Scheme interface {
	Name() string
	Partition(ds *model.DiffSet) (*model.Grouping, error)
}

// builder accumulates members into labeled groups while preserving the
// partition law by construction.
type builder struct {
	scheme string
	groups map[string]*model.Group
	order  []string
}

func newBuilder(scheme string) *builder {
	return &builder{scheme: scheme, groups: map[string]*model.Group{}}
}

func (b *builder) add(label string, l *model.DiffLine) {
	g, ok := b.groups[label]
	if !ok {
		g = &model.Group{
			ID:     fmt.Sprintf("%s:%s", b.scheme, label),
			Label:  label,
			Scheme: b.scheme,
		}
		b.groups[label] = g
		b.order = append(b.order, label)
	}
	g.Members = append(g.Members, l.ID)
	if g.MinPath == "" || l.File < g.MinPath {
		g.MinPath = l.File
	}
}

func (b *builder) grouping() *model.Grouping {
	sort.Strings(b.order)
	out := &model.Grouping{Scheme: b.scheme}
	for _, label := range b.order {
		out.Groups = append(out.Groups, b.groups[label])
	}
	return out
}

// eachReviewable visits every reviewable line of the diff in order.
func eachReviewable(ds *model.DiffSet, fn func(f *model.File, h *model.Hunk, l *model.DiffLine)) {
	for _, f := range ds.Files {
		if !f.Reviewable() {
			continue
		}
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if l.Reviewable() {
					fn(f, h, l)
				}
			}
		}
	}
}

// ValidatePartition checks the partition law: the union of group members
// equals the reviewable-line set and no two groups intersect.
func ValidatePartition(ds *model.DiffSet, g *model.Grouping) error {
	seen := make(map[model.LineID]string)
	for _, grp := range g.Groups {
		for _, id := range grp.Members {
			if prev, dup := seen[id]; dup {
				return fmt.Errorf("scheme %s: line %s in both %q and %q", g.Scheme, id, prev, grp.Label)
			}
			seen[id] = grp.Label
		}
	}

	missing := 0
	eachReviewable(ds, func(_ *model.File, _ *model.Hunk, l *model.DiffLine) {
		if _, ok := seen[l.ID]; !ok {
			missing++
		}
		delete(seen, l.ID)
	})
	if missing > 0 {
		return fmt.Errorf("scheme %s: %d reviewable lines unassigned", g.Scheme, missing)
	}
	if len(seen) > 0 {
		return fmt.Errorf("scheme %s: %d group members are not reviewable lines", g.Scheme, len(seen))
	}
	return nil
}
