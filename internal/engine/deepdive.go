package engine

import (
	"context"
	"fmt"

	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/store"
)

// DeepDive is the stepwise per-hunk confirmation state machine. It sits in
// one of two states: AtHunk(i) or Completed. Confirm marks hunk i's lines
// DeepReviewed and advances; Cancel returns control without touching the
// unconfirmed hunks. The cursor is persisted after every transition so a
// resumed session continues at the same hunk.
type DeepDive struct {
	s        *Session
	selector string
	hunks    []*model.Hunk
	idx      int
}

// DeepDive enters (or resumes) a deep dive over the selector's hunks,
// ordered by their position in the original diff. An in-flight dive over
// the same selector is resumed at its saved position.
func (s *Session) DeepDive(ctx context.Context, sel Selector) (*DeepDive, error) {
	if !s.mu.TryLock() {
		return nil, model.ErrConcurrentMutation
	}
	defer s.mu.Unlock()

	if s.dive != nil && !s.dive.Completed() && s.dive.selector == sel.String() {
		return s.dive, nil
	}

	d, err := s.newDive(sel)
	if err != nil {
		return nil, err
	}
	s.dive = d

	if s.st != nil {
		if err := s.st.SaveCursor(ctx, s.changeID, d.cursorRecord()); err != nil {
			return nil, fmt.Errorf("persist cursor: %w", err)
		}
	}
	return d, nil
}

// newDive resolves a selector to its hunks. Caller holds the write lock.
func (s *Session) newDive(sel Selector) (*DeepDive, error) {
	ids, err := s.resolve(sel)
	if err != nil {
		return nil, err
	}
	member := make(map[model.LineID]bool, len(ids))
	for _, id := range ids {
		member[id] = true
	}

	var hunks []*model.Hunk
	for _, f := range s.ds.Files {
		if !f.Reviewable() {
			continue
		}
		for _, h := range f.Hunks {
			for _, l := range h.ReviewableLines() {
				if member[l.ID] {
					hunks = append(hunks, h)
					break
				}
			}
		}
	}
	if len(hunks) == 0 {
		return nil, fmt.Errorf("%q: %w", sel.String(), model.ErrInvalidSelector)
	}

	return &DeepDive{s: s, selector: sel.String(), hunks: hunks}, nil
}

// resumeDive rebuilds a dive from a persisted cursor.
func (s *Session) resumeDive(cur *store.CursorRecord) (*DeepDive, error) {
	d, err := s.newDive(ParseSelector(cur.Selector))
	if err != nil {
		return nil, err
	}
	if cur.HunkIndex < 0 || cur.HunkIndex > len(d.hunks) {
		return nil, fmt.Errorf("cursor index %d out of range", cur.HunkIndex)
	}
	d.idx = cur.HunkIndex
	return d, nil
}

// Dive returns the session's in-flight deep dive, or nil.
func (s *Session) Dive() *DeepDive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dive
}

// Completed reports whether every hunk has been confirmed.
func (d *DeepDive) Completed() bool { return d.idx >= len(d.hunks) }

// Index returns the zero-based position of the current hunk.
func (d *DeepDive) Index() int { return d.idx }

// Len returns the number of hunks under review.
func (d *DeepDive) Len() int { return len(d.hunks) }

// Current returns the hunk awaiting confirmation, or nil when Completed.
func (d *DeepDive) Current() *model.Hunk {
	if d.Completed() {
		return nil
	}
	return d.hunks[d.idx]
}

// State renders the machine state for status output.
func (d *DeepDive) State() string {
	if d.Completed() {
		return "Completed"
	}
	return fmt.Sprintf("AtHunk(%d)", d.idx)
}

// Confirm marks the current hunk's lines DeepReviewed and advances the
// cursor, persisting both. Confirming a completed dive is an error.
func (d *DeepDive) Confirm(ctx context.Context) error {
	s := d.s
	if !s.mu.TryLock() {
		return model.ErrConcurrentMutation
	}
	defer s.mu.Unlock()

	if d.Completed() {
		return fmt.Errorf("deep dive over %q already completed", d.selector)
	}

	h := d.hunks[d.idx]
	var ids []model.LineID
	for _, l := range h.ReviewableLines() {
		ids = append(ids, l.ID)
	}
	n := 0
	if len(ids) > 0 {
		var err error
		if n, err = s.q.ApplyBulk(ids, model.DeepReviewed); err != nil {
			return err
		}
	}
	d.idx++

	if err := s.commit(ctx, "deep-confirm", fmt.Sprintf("%s hunk %d/%d", d.selector, d.idx, len(d.hunks)), n); err != nil {
		return err
	}
	if s.st != nil && d.Completed() {
		if err := s.st.ClearCursor(ctx, s.changeID); err != nil {
			return fmt.Errorf("clear cursor: %w", err)
		}
	}
	return nil
}

// Cancel persists the cursor as-is and returns control to the caller. The
// current hunk stays unconfirmed and the dive can be resumed later.
func (d *DeepDive) Cancel(ctx context.Context) error {
	s := d.s
	if !s.mu.TryLock() {
		return model.ErrConcurrentMutation
	}
	defer s.mu.Unlock()

	if s.st != nil && !d.Completed() {
		if err := s.st.SaveCursor(ctx, s.changeID, d.cursorRecord()); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
	}
	s.log.Info("deep dive interrupted", "selector", d.selector, "state", d.State())
	return nil
}

func (d *DeepDive) cursorRecord() *store.CursorRecord {
	return &store.CursorRecord{Selector: d.selector, HunkIndex: d.idx}
}
