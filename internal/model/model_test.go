package model

import (
	"testing"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Unreviewed, "unreviewed"},
		{Skimmed, "skimmed"},
		{DeepReviewed, "deep-reviewed"},
		{Filtered, "filtered"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestParseStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{Unreviewed, Skimmed, DeepReviewed, Filtered} {
		got, err := ParseStatus(s.String())
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", s.String(), err)
		}
		if got != s {
			t.Errorf("ParseStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}
	if _, err := ParseStatus("bogus"); err == nil {
		t.Error("ParseStatus(bogus) should fail")
	}
}

func TestNewLineIDDeterministic(t *testing.T) {
	a := NewLineID("core/auth.py", 42)
	b := NewLineID("core/auth.py", 42)
	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}

	if NewLineID("core/auth.py", 43) == a {
		t.Error("different line numbers produced the same ID")
	}
	if NewLineID("core/authx.py", 42) == a {
		t.Error("different paths produced the same ID")
	}

	// The separator keeps (path, line) pairs unambiguous.
	if NewLineID("a/b1", 2) == NewLineID("a/b", 12) {
		t.Error("ambiguous path/line concatenation")
	}
}

func TestStatusTerminal(t *testing.T) {
	if Unreviewed.Terminal() {
		t.Error("Unreviewed must not be terminal")
	}
	for _, s := range []Status{Skimmed, DeepReviewed, Filtered} {
		if !s.Terminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
}

func TestFileName(t *testing.T) {
	renamed := &File{OldPath: "old.go", Path: "new.go", IsRenamed: true}
	if got := renamed.Name(); got != "old.go → new.go" {
		t.Errorf("renamed Name() = %q", got)
	}

	deleted := &File{OldPath: "gone.go", IsDeleted: true}
	if got := deleted.Name(); got != "gone.go" {
		t.Errorf("deleted Name() = %q", got)
	}
}

func TestGroupingFind(t *testing.T) {
	g := &Grouping{
		Scheme: "scope",
		Groups: []*Group{
			{ID: "scope:1", Label: "login-flow"},
			{ID: "scope:2", Label: "logging-utils"},
		},
	}
	if g.Find("login-flow") == nil {
		t.Error("Find by label failed")
	}
	if g.Find("scope:2") == nil {
		t.Error("Find by id failed")
	}
	if g.Find("nope") != nil {
		t.Error("Find should return nil for unknown name")
	}
}
