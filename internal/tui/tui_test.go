package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/engine"
	"github.com/sprite-ai/revq/internal/model"
)

const testDiff = `diff --git a/main.go b/main.go
index abc1234..def5678 100644
--- a/main.go
+++ b/main.go
@@ -1,5 +1,6 @@
 package main

 func main() {
-	println("hello")
+	println("hello world")
+	println("goodbye")
 }
@@ -10,1 +11,4 @@
 func helper() {
+	if debug {
+		println("trace")
+	}
`

func setupModel(t *testing.T) Model {
	t.Helper()
	ds, err := diff.Ingest(testDiff)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	s, err := engine.Open(context.Background(), "tui-test", ds, engine.Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	d, err := s.DeepDive(context.Background(), engine.ParseSelector("main.go"))
	if err != nil {
		t.Fatalf("DeepDive failed: %v", err)
	}

	m := New(s, d)
	newM, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return newM.(Model)
}

func TestModelInit(t *testing.T) {
	m := setupModel(t)

	if m.dive.Index() != 0 {
		t.Errorf("expected dive at hunk 0, got %d", m.dive.Index())
	}
	if len(m.lines) == 0 {
		t.Error("expected lines to be rendered")
	}
	if !strings.Contains(m.View(), "hunk 1/2") {
		t.Errorf("view missing progress:\n%s", m.View())
	}
}

func TestConfirmAdvances(t *testing.T) {
	m := setupModel(t)

	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	m = newM.(Model)

	if m.dive.Index() != 1 {
		t.Errorf("expected dive at hunk 1 after confirm, got %d", m.dive.Index())
	}
	if !strings.Contains(m.View(), "hunk 2/2") {
		t.Errorf("view missing progress:\n%s", m.View())
	}

	// Hunk 1's lines were confirmed.
	first := m.session.DiffSet().Files[0].Hunks[0]
	for _, l := range first.ReviewableLines() {
		if st, _ := m.session.Queue().Status(l.ID); st != model.DeepReviewed {
			t.Errorf("line %s = %v after confirm", l.ID, st)
		}
	}
}

func TestConfirmLastHunkQuits(t *testing.T) {
	m := setupModel(t)

	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	m = newM.(Model)
	newM, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	m = newM.(Model)

	if !m.dive.Completed() {
		t.Error("dive not completed after confirming every hunk")
	}
	if cmd == nil {
		t.Error("expected quit command after final confirm")
	}
	if m.Err() != nil {
		t.Errorf("unexpected error: %v", m.Err())
	}
}

func TestCancelQuitsWithoutMutating(t *testing.T) {
	m := setupModel(t)

	newM, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = newM.(Model)

	if cmd == nil {
		t.Error("expected quit command on cancel")
	}
	if m.Err() != nil {
		t.Errorf("cancel errored: %v", m.Err())
	}
	if got := m.session.Queue().Remaining(); got != m.session.Queue().Total() {
		t.Errorf("cancel mutated statuses: remaining = %d", got)
	}
}

func TestScrollBounds(t *testing.T) {
	m := setupModel(t)

	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	m = newM.(Model)
	if m.scrollOffset != 0 {
		t.Errorf("scrolled above top: %d", m.scrollOffset)
	}

	for i := 0; i < 50; i++ {
		newM, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
		m = newM.(Model)
	}
	if m.scrollOffset != len(m.lines)-1 {
		t.Errorf("scroll offset = %d, want %d", m.scrollOffset, len(m.lines)-1)
	}
}

func TestHelpToggle(t *testing.T) {
	m := setupModel(t)

	newM, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = newM.(Model)
	if !m.showHelp {
		t.Error("help not shown")
	}
	if !strings.Contains(m.View(), "deep dive keys") {
		t.Errorf("help view:\n%s", m.View())
	}
}
