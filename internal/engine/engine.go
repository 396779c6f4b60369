// Package engine applies reviewer actions to the line queue as atomic,
// persisted state transitions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/sprite-ai/revq/internal/chunk"
	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/queue"
	"github.com/sprite-ai/revq/internal/score"
	"github.com/sprite-ai/revq/internal/store"
)

// Session is the durable aggregate of one diff's line queue, its grouping
// schemes, and the deep-dive cursor. All engine state lives here; nothing
// is package-global. Exactly one session is active per change.
type Session struct {
	mu sync.RWMutex

	changeID  string
	ds        *model.DiffSet
	q         *queue.Queue
	groupings map[string]*model.Grouping
	active    string
	dive      *DeepDive

	scorer *score.Scorer
	st     store.Store
	log    *slog.Logger

	onChange     map[int]func()
	nextListener int
}

// Options configures Open.
type Options struct {
	// Store persists every successful mutation. Nil disables persistence.
	Store store.Store
	// Schemes are partitioned at open time. Defaults to file-type,
	// formatting-only, and scope.
	Schemes []chunk.Scheme
	// ActiveScheme names the scheme review actions resolve against.
	// Defaults to the first scheme.
	ActiveScheme string
	Scorer       *score.Scorer
	Logger       *slog.Logger
}

// Open creates or resumes the session for a change. When a persisted record
// exists, statuses are reconciled onto the fresh diff: recurring LineIDs
// keep their status, vanished lines are dropped, new lines start
// Unreviewed. A corrupt record is salvaged the same way (terminal statuses
// for surviving lines are kept) and then rewritten.
func Open(ctx context.Context, changeID string, ds *model.DiffSet, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = score.NewScorer(score.DefaultWeights(), nil)
	}
	if len(opts.Schemes) == 0 {
		opts.Schemes = []chunk.Scheme{
			chunk.FileTypeScheme{},
			chunk.FormattingScheme{},
			chunk.ScopeScheme{},
		}
	}

	var (
		cursor          *store.CursorRecord
		persisted       []store.GroupingRecord
		persistedActive string
	)
	if opts.Store != nil {
		rec, err := opts.Store.Load(ctx, changeID)
		var corrupt *model.SessionCorruptError
		switch {
		case errors.Is(err, store.ErrNotFound):
			// fresh session
		case errors.As(err, &corrupt):
			opts.Logger.Warn("salvaging corrupt session record", "change", changeID, "reason", corrupt.Reason)
			if rec != nil {
				keepTerminal(rec.Statuses)
				diff.Reconcile(ds, rec.Statuses)
			}
		case err != nil:
			return nil, fmt.Errorf("load session %s: %w", changeID, err)
		default:
			diff.Reconcile(ds, rec.Statuses)
			if rec.DiffHash == ds.Hash {
				cursor = rec.Cursor
				persisted = rec.Groupings
				persistedActive = rec.ActiveScheme
			}
			// A hash mismatch drops the cursor and the saved groupings:
			// hunk indexes may have shifted and the line set may differ.
		}
	}

	s := &Session{
		changeID:  changeID,
		ds:        ds,
		q:         queue.New(ds),
		groupings: map[string]*model.Grouping{},
		scorer:    opts.Scorer,
		st:        opts.Store,
		log:       opts.Logger,
	}

	for _, scheme := range opts.Schemes {
		g, err := scheme.Partition(ds)
		if err != nil {
			return nil, fmt.Errorf("partition %s: %w", scheme.Name(), err)
		}
		if err := chunk.ValidatePartition(ds, g); err != nil {
			return nil, err
		}
		s.groupings[scheme.Name()] = g
		if s.active == "" {
			s.active = scheme.Name()
		}
	}

	// Reinstall saved partitions for schemes this open did not recompute,
	// so history-derived groupings survive between invocations.
	for _, gr := range persisted {
		if _, ok := s.groupings[gr.Scheme]; ok {
			continue
		}
		g := groupingFromRecord(gr)
		if err := chunk.ValidatePartition(ds, g); err != nil {
			opts.Logger.Warn("dropping saved grouping", "scheme", gr.Scheme, "err", err)
			continue
		}
		s.groupings[gr.Scheme] = g
	}
	if _, ok := s.groupings[persistedActive]; ok {
		s.active = persistedActive
	}

	if opts.ActiveScheme != "" {
		if _, ok := s.groupings[opts.ActiveScheme]; !ok {
			return nil, fmt.Errorf("unknown scheme %q", opts.ActiveScheme)
		}
		s.active = opts.ActiveScheme
	}

	if cursor != nil {
		if d, err := s.resumeDive(cursor); err == nil {
			s.dive = d
		} else {
			s.log.Warn("dropping unresolvable deep-dive cursor", "selector", cursor.Selector, "err", err)
		}
	}

	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func keepTerminal(statuses map[model.LineID]model.Status) {
	for id, st := range statuses {
		if !st.Terminal() {
			delete(statuses, id)
		}
	}
}

// ChangeID returns the session's change identifier.
func (s *Session) ChangeID() string { return s.changeID }

// Queue exposes read-only queries over the line queue.
func (s *Session) Queue() *queue.Queue { return s.q }

// DiffSet returns the ingested diff.
func (s *Session) DiffSet() *model.DiffSet { return s.ds }

// Scorer returns the session's scorer.
func (s *Session) Scorer() *score.Scorer { return s.scorer }

// OnChange registers a callback invoked after every successful mutation,
// outside the session lock. The returned function deregisters it; callers
// with a shorter lifetime than the session (websocket connections) must
// call it.
func (s *Session) OnChange(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onChange == nil {
		s.onChange = map[int]func(){}
	}
	id := s.nextListener
	s.nextListener++
	s.onChange[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.onChange, id)
	}
}

// ActiveScheme returns the scheme review actions resolve against.
func (s *Session) ActiveScheme() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// SetActiveScheme switches the scheme selectors resolve against. The
// choice is saved with the session and restored on the next open.
func (s *Session) SetActiveScheme(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groupings[name]; !ok {
		return fmt.Errorf("unknown scheme %q", name)
	}
	s.active = name
	return s.persistLocked(ctx)
}

// Grouping returns a scheme's partition. Referencing a scheme whose
// background computation is still running yields StaleGroupingError.
func (s *Session) Grouping(name string) (*model.Grouping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groupings[name]
	if !ok {
		return nil, fmt.Errorf("unknown scheme %q", name)
	}
	if g.Stale {
		return nil, &model.StaleGroupingError{Scheme: name}
	}
	return g, nil
}

// SchemeNames lists the held schemes, sorted.
func (s *Session) SchemeNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.groupings))
	for name := range s.groupings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InstallGrouping adds or replaces a scheme's partition (used for commit
// and co-change groupings whose inputs come from the version-control log)
// and saves it so later invocations can resolve against it without
// rebuilding the history inputs.
func (s *Session) InstallGrouping(ctx context.Context, g *model.Grouping) error {
	if err := chunk.ValidatePartition(s.ds, g); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupings[g.Scheme] = g
	return s.persistLocked(ctx)
}

// ComputeAsync installs a stale placeholder for the scheme and partitions
// it on a background goroutine. While the computation runs the scheme is
// excluded from NextPriorityGroup and Grouping returns StaleGroupingError;
// unrelated queries and mutations proceed. done (if non-nil) receives the
// terminal error, nil on success.
func (s *Session) ComputeAsync(ctx context.Context, scheme chunk.Scheme, done chan<- error) {
	s.mu.Lock()
	s.groupings[scheme.Name()] = &model.Grouping{Scheme: scheme.Name(), Stale: true}
	s.mu.Unlock()

	go func() {
		g, err := scheme.Partition(s.ds)
		if err == nil {
			err = chunk.ValidatePartition(s.ds, g)
		}
		if err != nil {
			s.log.Error("background partition failed", "scheme", scheme.Name(), "err", err)
			s.mu.Lock()
			delete(s.groupings, scheme.Name())
			s.mu.Unlock()
		} else {
			s.mu.Lock()
			s.groupings[scheme.Name()] = g
			if perr := s.persistLocked(ctx); perr != nil {
				s.log.Warn("persisting recomputed grouping", "scheme", scheme.Name(), "err", perr)
			}
			s.mu.Unlock()
		}
		if done != nil {
			done <- err
		}
	}()
}

// NextPriorityGroup returns the highest-scoring group holding at least one
// Unreviewed line, preferring the active scheme and skipping stale ones.
// ok is false once every reviewable line is resolved.
func (s *Session) NextPriorityGroup() (score.ScoredGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var order []string
	if g, ok := s.groupings[s.active]; ok && !g.Stale {
		order = append(order, s.active)
	}
	var rest []string
	for name, g := range s.groupings {
		if name != s.active && !g.Stale {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	for _, name := range order {
		if sg, ok := s.scorer.NextPriorityGroup(s.q, s.groupings[name]); ok {
			return sg, true
		}
	}
	return score.ScoredGroup{}, false
}

// Rank returns the active scheme's groups in priority order.
func (s *Session) Rank() ([]score.ScoredGroup, error) {
	g, err := s.Grouping(s.ActiveScheme())
	if err != nil {
		return nil, err
	}
	return s.scorer.Rank(s.ds, g), nil
}

// Selector addresses lines by group label, file path, or explicit IDs.
type Selector struct {
	Group string
	File  string
	Lines []model.LineID
}

// ParseSelector builds a selector from a CLI argument; resolution tries
// group labels in the active scheme first, then file paths.
func ParseSelector(raw string) Selector {
	return Selector{Group: raw, File: raw}
}

func (sel Selector) String() string {
	switch {
	case len(sel.Lines) > 0:
		return fmt.Sprintf("%d explicit lines", len(sel.Lines))
	case sel.Group != "" && sel.Group == sel.File:
		return sel.Group
	case sel.Group != "":
		return "group:" + sel.Group
	default:
		return "file:" + sel.File
	}
}

// resolve maps a selector to line IDs. Caller holds at least a read lock.
// A stale or vanished active grouping (a background recomputation in
// flight, or one that failed and was removed) only blocks group
// resolution; the file fallback still applies before staleness surfaces.
func (s *Session) resolve(sel Selector) ([]model.LineID, error) {
	if len(sel.Lines) > 0 {
		return sel.Lines, nil
	}
	var stale error
	if sel.Group != "" {
		switch g, ok := s.groupings[s.active]; {
		case !ok || g.Stale:
			stale = &model.StaleGroupingError{Scheme: s.active}
		default:
			if grp := g.Find(sel.Group); grp != nil {
				return grp.Members, nil
			}
		}
	}
	if sel.File != "" {
		if ids := s.q.ByFile(sel.File); len(ids) > 0 {
			return ids, nil
		}
	}
	if stale != nil {
		return nil, stale
	}
	return nil, fmt.Errorf("%q: %w", sel.String(), model.ErrInvalidSelector)
}

// Skim bulk-transitions the selector's Unreviewed lines to Skimmed. A
// selector whose lines are all already resolved is a no-op, not an error.
// Returns the number of lines transitioned.
func (s *Session) Skim(ctx context.Context, sel Selector) (int, error) {
	return s.bulk(ctx, sel, "skim", model.Skimmed)
}

// FileMode resolves every reviewable line of one file, recorded in the
// audit trail as a whole-file resolution.
func (s *Session) FileMode(ctx context.Context, path string) (int, error) {
	return s.bulk(ctx, Selector{File: path}, "file-mode", model.Skimmed)
}

// Reopen transitions the selector's lines back to Unreviewed. Always
// permitted; used to revoke over-eager bulk actions.
func (s *Session) Reopen(ctx context.Context, sel Selector) (int, error) {
	if !s.mu.TryLock() {
		return 0, model.ErrConcurrentMutation
	}
	defer s.mu.Unlock()

	ids, err := s.resolve(sel)
	if err != nil {
		return 0, err
	}
	n, err := s.q.ApplyBulk(ids, model.Unreviewed)
	if err != nil {
		return 0, err
	}
	if err := s.commit(ctx, "reopen", sel.String(), n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Session) bulk(ctx context.Context, sel Selector, action string, target model.Status) (int, error) {
	if !s.mu.TryLock() {
		return 0, model.ErrConcurrentMutation
	}
	defer s.mu.Unlock()

	ids, err := s.resolve(sel)
	if err != nil {
		return 0, err
	}

	var pending []model.LineID
	for _, id := range ids {
		if st, ok := s.q.Status(id); ok && st == model.Unreviewed {
			pending = append(pending, id)
		}
	}
	if len(pending) == 0 {
		return 0, nil // everything already resolved
	}

	n, err := s.q.ApplyBulk(pending, target)
	if err != nil {
		return 0, err
	}
	if err := s.commit(ctx, action, sel.String(), n); err != nil {
		return 0, err
	}
	return n, nil
}

// Predicate selects low-signal lines for Filter.
type Predicate func(h *model.Hunk, l *model.DiffLine) bool

// FormattingOnly matches lines classified formatting-only within their hunk.
func FormattingOnly() Predicate {
	cache := map[*model.Hunk]map[model.LineID]bool{}
	return func(h *model.Hunk, l *model.DiffLine) bool {
		m, ok := cache[h]
		if !ok {
			m = map[model.LineID]bool{}
			for _, id := range chunkFormatting(h) {
				m[id] = true
			}
			cache[h] = m
		}
		return m[l.ID]
	}
}

func chunkFormatting(h *model.Hunk) []model.LineID {
	var out []model.LineID
	for _, l := range h.ReviewableLines() {
		if chunk.IsFormattingOnly(h, l.ID) {
			out = append(out, l.ID)
		}
	}
	return out
}

// Filter transitions every Unreviewed reviewable line matching the
// predicate to Filtered. Idempotent: zero matches is success.
func (s *Session) Filter(ctx context.Context, name string, pred Predicate) (int, error) {
	if !s.mu.TryLock() {
		return 0, model.ErrConcurrentMutation
	}
	defer s.mu.Unlock()

	var matched []model.LineID
	for _, f := range s.ds.Files {
		if !f.Reviewable() {
			continue
		}
		for _, h := range f.Hunks {
			for _, l := range h.Lines {
				if !l.Reviewable() || l.Status != model.Unreviewed {
					continue
				}
				if pred(h, l) {
					matched = append(matched, l.ID)
				}
			}
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	n, err := s.q.ApplyBulk(matched, model.Filtered)
	if err != nil {
		return 0, err
	}
	if err := s.commit(ctx, "filter:"+name, name, n); err != nil {
		return 0, err
	}
	return n, nil
}

// commit persists the post-mutation snapshot and appends an audit entry.
// Called with the write lock held.
func (s *Session) commit(ctx context.Context, action, selector string, lines int) error {
	if err := s.q.Check(); err != nil {
		return fmt.Errorf("queue invariant after %s: %w", action, err)
	}
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	if s.st != nil {
		if err := s.st.AppendAudit(ctx, store.AuditEntry{
			ChangeID: s.changeID,
			Action:   action,
			Selector: selector,
			Lines:    lines,
		}); err != nil {
			return fmt.Errorf("audit %s: %w", action, err)
		}
	}
	s.log.Info("applied", "action", action, "selector", selector, "lines", lines, "remaining", s.q.Remaining())
	go s.notify()
	return nil
}

func (s *Session) notify() {
	s.mu.RLock()
	fns := make([]func(), 0, len(s.onChange))
	for _, fn := range s.onChange {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *Session) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx)
}

func (s *Session) persistLocked(ctx context.Context) error {
	if s.st == nil {
		return nil
	}
	rec := &store.Record{
		ChangeID:     s.changeID,
		DiffHash:     s.ds.Hash,
		Statuses:     s.q.Snapshot(),
		ActiveScheme: s.active,
		Groupings:    groupingRecords(s.groupings),
	}
	if s.dive != nil && !s.dive.Completed() {
		rec.Cursor = s.dive.cursorRecord()
	}
	if err := s.st.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// groupingRecords serializes every settled partition. In-flight (stale)
// recomputations are skipped; they re-run on the next open if needed.
func groupingRecords(groupings map[string]*model.Grouping) []store.GroupingRecord {
	names := make([]string, 0, len(groupings))
	for name, g := range groupings {
		if !g.Stale {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]store.GroupingRecord, 0, len(names))
	for _, name := range names {
		g := groupings[name]
		gr := store.GroupingRecord{Scheme: g.Scheme}
		for _, grp := range g.Groups {
			gr.Groups = append(gr.Groups, store.GroupRecord{
				ID:      grp.ID,
				Label:   grp.Label,
				MinPath: grp.MinPath,
				Members: append([]model.LineID(nil), grp.Members...),
			})
		}
		out = append(out, gr)
	}
	return out
}

func groupingFromRecord(gr store.GroupingRecord) *model.Grouping {
	g := &model.Grouping{Scheme: gr.Scheme}
	for _, grp := range gr.Groups {
		g.Groups = append(g.Groups, &model.Group{
			ID:      grp.ID,
			Label:   grp.Label,
			Scheme:  gr.Scheme,
			MinPath: grp.MinPath,
			Members: append([]model.LineID(nil), grp.Members...),
		})
	}
	g.SortGroups()
	return g
}

// Close releases the backing store.
func (s *Session) Close() error {
	if s.st == nil {
		return nil
	}
	return s.st.Close()
}
