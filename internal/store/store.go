// Package store persists review sessions so interrupting and resuming the
// process never loses or duplicates a resolution.
package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sprite-ai/revq/internal/model"
)

// ErrNotFound is returned when no session exists for a change identifier.
var ErrNotFound = errors.New("session not found")

// Record is the durable state of one review session.
type Record struct {
	ChangeID     string
	DiffHash     string
	Statuses     map[model.LineID]model.Status
	ActiveScheme string
	Groupings    []GroupingRecord
	Cursor       *CursorRecord
}

// GroupingRecord is one scheme's persisted partition. Groupings are only
// trusted when the record's DiffHash matches the live diff; otherwise the
// line set may have changed and the partition is recomputed.
type GroupingRecord struct {
	Scheme string
	Groups []GroupRecord
}

// GroupRecord is one persisted group and its member line identifiers.
type GroupRecord struct {
	ID      string
	Label   string
	MinPath string
	Members []model.LineID
}

// CursorRecord is the persisted deep-dive position.
type CursorRecord struct {
	Selector  string
	HunkIndex int
}

// AuditEntry records one resolution action.
type AuditEntry struct {
	ID       string
	ChangeID string
	Action   string
	Selector string
	Lines    int
	At       time.Time
}

// Store is the session persistence interface. Every method that writes is
// called with the session lock held, after the in-memory mutation succeeded.
//
// Load may return a non-nil Record together with a
// *model.SessionCorruptError; the record then carries whatever statuses
// could be read, for salvage during re-ingestion.
type Store interface {
	Load(ctx context.Context, changeID string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	SaveCursor(ctx context.Context, changeID string, cur *CursorRecord) error
	ClearCursor(ctx context.Context, changeID string) error
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, changeID string) ([]AuditEntry, error)
	Delete(ctx context.Context, changeID string) error
	Close() error
}

// Checksum computes the integrity hash stored beside a status map. Load
// verifies it and reports SessionCorruptError on mismatch.
func Checksum(diffHash string, statuses map[model.LineID]model.Status) string {
	keys := make([]string, 0, len(statuses))
	for id := range statuses {
		keys = append(keys, string(id))
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(diffHash)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s=%s", k, statuses[model.LineID(k)])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", sum)
}
