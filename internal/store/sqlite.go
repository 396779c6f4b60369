package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sprite-ai/revq/internal/model"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one concurrent writer. A single connection
	// serializes all DB access through Go's connection pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// newULID generates a new ULID string for audit rows.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load reads a session record and verifies its checksum.
func (s *SQLiteStore) Load(ctx context.Context, changeID string) (*Record, error) {
	var diffHash, checksum, activeScheme string
	err := s.db.QueryRowContext(ctx,
		"SELECT diff_hash, checksum, active_scheme FROM sessions WHERE change_id = ?", changeID).
		Scan(&diffHash, &checksum, &activeScheme)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	rec := &Record{
		ChangeID:     changeID,
		DiffHash:     diffHash,
		Statuses:     map[model.LineID]model.Status{},
		ActiveScheme: activeScheme,
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT line_id, status FROM line_statuses WHERE change_id = ?", changeID)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, st string
		if err := rows.Scan(&id, &st); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		parsed, err := model.ParseStatus(st)
		if err != nil {
			return rec, &model.SessionCorruptError{ChangeID: changeID, Reason: err.Error()}
		}
		rec.Statuses[model.LineID(id)] = parsed
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate statuses: %w", err)
	}

	// Return the record beside the error so callers can salvage terminal
	// statuses for lines that still exist in the live diff.
	if got := Checksum(diffHash, rec.Statuses); got != checksum {
		return rec, &model.SessionCorruptError{ChangeID: changeID, Reason: "status checksum mismatch"}
	}

	groupings, err := s.loadGroupings(ctx, changeID)
	if err != nil {
		return nil, err
	}
	rec.Groupings = groupings

	var sel string
	var idx int
	err = s.db.QueryRowContext(ctx,
		"SELECT selector, hunk_index FROM cursors WHERE change_id = ?", changeID).
		Scan(&sel, &idx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no cursor, nothing to resume
	case err != nil:
		return nil, fmt.Errorf("load cursor: %w", err)
	default:
		rec.Cursor = &CursorRecord{Selector: sel, HunkIndex: idx}
	}

	return rec, nil
}

func (s *SQLiteStore) loadGroupings(ctx context.Context, changeID string) ([]GroupingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scheme, group_id, label, min_path, members
		 FROM groupings WHERE change_id = ? ORDER BY scheme, label`, changeID)
	if err != nil {
		return nil, fmt.Errorf("load groupings: %w", err)
	}
	defer rows.Close()

	var out []GroupingRecord
	byScheme := map[string]int{}
	for rows.Next() {
		var scheme, groupID, label, minPath, members string
		if err := rows.Scan(&scheme, &groupID, &label, &minPath, &members); err != nil {
			return nil, fmt.Errorf("scan grouping row: %w", err)
		}
		grp := GroupRecord{ID: groupID, Label: label, MinPath: minPath}
		if members != "" {
			for _, m := range strings.Split(members, "\n") {
				grp.Members = append(grp.Members, model.LineID(m))
			}
		}
		i, ok := byScheme[scheme]
		if !ok {
			i = len(out)
			byScheme[scheme] = i
			out = append(out, GroupingRecord{Scheme: scheme})
		}
		out[i].Groups = append(out[i].Groups, grp)
	}
	return out, rows.Err()
}

// Save writes the full session snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	checksum := Checksum(rec.DiffHash, rec.Statuses)
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (change_id, diff_hash, checksum, active_scheme, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(change_id) DO UPDATE SET
			diff_hash = excluded.diff_hash,
			checksum = excluded.checksum,
			active_scheme = excluded.active_scheme,
			updated_at = excluded.updated_at`,
		rec.ChangeID, rec.DiffHash, checksum, rec.ActiveScheme)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM line_statuses WHERE change_id = ?", rec.ChangeID); err != nil {
		return fmt.Errorf("clear statuses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO line_statuses (change_id, line_id, status) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare status insert: %w", err)
	}
	defer stmt.Close()

	for id, st := range rec.Statuses {
		if _, err := stmt.ExecContext(ctx, rec.ChangeID, string(id), st.String()); err != nil {
			return fmt.Errorf("insert status: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM groupings WHERE change_id = ?", rec.ChangeID); err != nil {
		return fmt.Errorf("clear groupings: %w", err)
	}
	for _, gr := range rec.Groupings {
		for _, grp := range gr.Groups {
			members := make([]string, len(grp.Members))
			for i, m := range grp.Members {
				members[i] = string(m)
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO groupings (change_id, scheme, group_id, label, min_path, members) VALUES (?, ?, ?, ?, ?, ?)",
				rec.ChangeID, gr.Scheme, grp.ID, grp.Label, grp.MinPath, strings.Join(members, "\n"))
			if err != nil {
				return fmt.Errorf("insert grouping: %w", err)
			}
		}
	}

	if rec.Cursor != nil {
		_, err = tx.ExecContext(ctx, `INSERT INTO cursors (change_id, selector, hunk_index)
			VALUES (?, ?, ?)
			ON CONFLICT(change_id) DO UPDATE SET
				selector = excluded.selector,
				hunk_index = excluded.hunk_index`,
			rec.ChangeID, rec.Cursor.Selector, rec.Cursor.HunkIndex)
		if err != nil {
			return fmt.Errorf("upsert cursor: %w", err)
		}
	} else {
		// A snapshot without a cursor means no dive is in flight; a row
		// left behind would resurrect a position from an older diff.
		if _, err := tx.ExecContext(ctx, "DELETE FROM cursors WHERE change_id = ?", rec.ChangeID); err != nil {
			return fmt.Errorf("clear cursor: %w", err)
		}
	}

	return tx.Commit()
}

// SaveCursor persists the deep-dive position.
func (s *SQLiteStore) SaveCursor(ctx context.Context, changeID string, cur *CursorRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO cursors (change_id, selector, hunk_index)
		VALUES (?, ?, ?)
		ON CONFLICT(change_id) DO UPDATE SET
			selector = excluded.selector,
			hunk_index = excluded.hunk_index`,
		changeID, cur.Selector, cur.HunkIndex)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

// ClearCursor removes a completed or abandoned deep-dive cursor.
func (s *SQLiteStore) ClearCursor(ctx context.Context, changeID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cursors WHERE change_id = ?", changeID); err != nil {
		return fmt.Errorf("clear cursor: %w", err)
	}
	return nil
}

// AppendAudit records one resolution action.
func (s *SQLiteStore) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = newULID()
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_log (id, change_id, action, selector, lines, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.ID, entry.ChangeID, entry.Action, entry.Selector, entry.Lines, entry.At)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAudit returns the audit trail for a session, oldest first.
func (s *SQLiteStore) ListAudit(ctx context.Context, changeID string) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, change_id, action, selector, lines, created_at
		 FROM audit_log WHERE change_id = ? ORDER BY created_at, id`, changeID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ChangeID, &e.Action, &e.Selector, &e.Lines, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a session and everything attached to it.
func (s *SQLiteStore) Delete(ctx context.Context, changeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM audit_log WHERE change_id = ?",
		"DELETE FROM line_statuses WHERE change_id = ?",
		"DELETE FROM groupings WHERE change_id = ?",
		"DELETE FROM cursors WHERE change_id = ?",
		"DELETE FROM sessions WHERE change_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, changeID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
	}
	return tx.Commit()
}
