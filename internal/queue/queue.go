// Package queue implements the canonical per-line review-state store.
package queue

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sprite-ai/revq/internal/model"
)

// Queue tracks the review status of every reviewable line in a diff. It is
// the single owner of status mutations; groups and schemes only reference
// line IDs. Reads take a shared lock so queries observe consistent
// snapshots; mutations are serialized.
type Queue struct {
	mu    sync.RWMutex
	ds    *model.DiffSet
	lines map[model.LineID]*model.DiffLine
	order []model.LineID // reviewable IDs in diff order
}

// New builds a queue over the reviewable lines of a diff set.
func New(ds *model.DiffSet) *Queue {
	q := &Queue{
		ds:    ds,
		lines: make(map[model.LineID]*model.DiffLine),
	}
	ds.Lines(func(f *model.File, l *model.DiffLine) {
		if f.Reviewable() && l.Reviewable() {
			q.lines[l.ID] = l
			q.order = append(q.order, l.ID)
		}
	})
	return q
}

// DiffSet returns the underlying diff.
func (q *Queue) DiffSet() *model.DiffSet { return q.ds }

// Total returns the number of reviewable lines.
func (q *Queue) Total() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.order)
}

// Remaining returns the count of Unreviewed reviewable lines.
func (q *Queue) Remaining() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, id := range q.order {
		if q.lines[id].Status == model.Unreviewed {
			n++
		}
	}
	return n
}

// Breakdown returns per-status counts over reviewable lines.
func (q *Queue) Breakdown() map[model.Status]int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := map[model.Status]int{
		model.Unreviewed:   0,
		model.Skimmed:      0,
		model.DeepReviewed: 0,
		model.Filtered:     0,
	}
	for _, id := range q.order {
		out[q.lines[id].Status]++
	}
	return out
}

// Get returns the line for an ID, or nil.
func (q *Queue) Get(id model.LineID) *model.DiffLine {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.lines[id]
}

// Status returns a line's current status.
func (q *Queue) Status(id model.LineID) (model.Status, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	l, ok := q.lines[id]
	if !ok {
		return model.Unreviewed, false
	}
	return l.Status, true
}

// ByFile returns the reviewable line IDs for a file path, in diff order.
func (q *Queue) ByFile(path string) []model.LineID {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []model.LineID
	for _, id := range q.order {
		if q.lines[id].File == path {
			out = append(out, id)
		}
	}
	return out
}

// ByStatus returns the reviewable line IDs currently in the given status.
func (q *Queue) ByStatus(st model.Status) []model.LineID {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []model.LineID
	for _, id := range q.order {
		if q.lines[id].Status == st {
			out = append(out, id)
		}
	}
	return out
}

// Files returns the distinct reviewable file paths, sorted.
func (q *Queue) Files() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, id := range q.order {
		p := q.lines[id].File
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot copies the current per-line status map, for persistence.
func (q *Queue) Snapshot() map[model.LineID]model.Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make(map[model.LineID]model.Status, len(q.order))
	for _, id := range q.order {
		out[id] = q.lines[id].Status
	}
	return out
}

// ApplyBulk transitions every given line to the target status. Validation is
// all-or-nothing: if any ID is unknown or non-reviewable the whole call
// fails with model.ErrInvalidSelector and no line changes. Returns the
// number of lines whose status actually changed.
func (q *Queue) ApplyBulk(ids []model.LineID, target model.Status) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, id := range ids {
		l, ok := q.lines[id]
		if !ok || !l.Reviewable() {
			return 0, fmt.Errorf("line %s: %w", id, model.ErrInvalidSelector)
		}
	}

	changed := 0
	for _, id := range ids {
		l := q.lines[id]
		if l.Status != target {
			l.Status = target
			changed++
		}
	}

	if err := q.checkLocked(); err != nil {
		panic(err) // statuses partition by construction; a miss is a program bug
	}
	return changed, nil
}

// Check verifies the queue invariant: the per-status counts sum to the
// reviewable-line total.
func (q *Queue) Check() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.checkLocked()
}

func (q *Queue) checkLocked() error {
	counts := map[model.Status]int{}
	for _, id := range q.order {
		counts[q.lines[id].Status]++
	}
	sum := counts[model.Unreviewed] + counts[model.Skimmed] +
		counts[model.DeepReviewed] + counts[model.Filtered]
	if sum != len(q.order) {
		return fmt.Errorf("status counts sum to %d, want %d", sum, len(q.order))
	}
	return nil
}

// AggregateStatus derives a group's rollup from its member statuses:
// Reviewed iff every member is terminal, else Partial.
func (q *Queue) AggregateStatus(g *model.Group) model.AggregateStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	for _, id := range g.Members {
		if l, ok := q.lines[id]; ok && l.Status == model.Unreviewed {
			return model.GroupPartial
		}
	}
	return model.GroupReviewed
}

// HasUnreviewed reports whether any member of the group is still Unreviewed.
func (q *Queue) HasUnreviewed(g *model.Group) bool {
	return q.AggregateStatus(g) == model.GroupPartial
}
