package model

import (
	"errors"
	"fmt"
)

// ErrInvalidSelector is returned when a selector resolves to zero reviewable
// lines. The operation is rejected and the queue is left unchanged.
var ErrInvalidSelector = errors.New("selector matches no reviewable lines")

// ErrConcurrentMutation is returned when a mutation is attempted while
// another holds the session lock. Callers may retry; no data was touched.
var ErrConcurrentMutation = errors.New("another mutation holds the session lock")

// ParseError reports a malformed diff. Ingestion is aborted and no session
// is created.
type ParseError struct {
	Location string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("parse error at %s: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StaleGroupingError reports that a scheme's clustering has not completed or
// has changed shape since the caller fetched it.
type StaleGroupingError struct {
	Scheme string
}

func (e *StaleGroupingError) Error() string {
	return fmt.Sprintf("grouping scheme %q is stale; re-fetch groups", e.Scheme)
}

// SessionCorruptError reports a checksum mismatch in a persisted session.
// Recovery requires re-ingestion from the live diff.
type SessionCorruptError struct {
	ChangeID string
	Reason   string
}

func (e *SessionCorruptError) Error() string {
	return fmt.Sprintf("session %q is corrupt: %s", e.ChangeID, e.Reason)
}
