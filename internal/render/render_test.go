package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sprite-ai/revq/internal/chunk"
	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/queue"
	"github.com/sprite-ai/revq/internal/score"
)

const sampleDiff = `diff --git a/core/auth.py b/core/auth.py
index 1111111..2222222 100644
--- a/core/auth.py
+++ b/core/auth.py
@@ -1,1 +1,4 @@
 def login(user):
+    if user.locked:
+        raise Locked()
+    return check(user)
diff --git a/docs/notes.md b/docs/notes.md
index 3333333..4444444 100644
--- a/docs/notes.md
+++ b/docs/notes.md
@@ -1,1 +1,2 @@
 # notes
+One more line.
`

func buildQueue(t *testing.T) *queue.Queue {
	t.Helper()
	ds, err := diff.Ingest(sampleDiff)
	if err != nil {
		t.Fatal(err)
	}
	return queue.New(ds)
}

func TestStatusLine(t *testing.T) {
	q := buildQueue(t)
	if got := StatusLine(q); got != "4 lines remaining | 0% reviewed | 2 files touched" {
		t.Errorf("StatusLine = %q", got)
	}

	if _, err := q.ApplyBulk(q.ByFile("docs/notes.md"), model.Skimmed); err != nil {
		t.Fatal(err)
	}
	if got := StatusLine(q); got != "3 lines remaining | 25% reviewed | 2 files touched" {
		t.Errorf("StatusLine after skim = %q", got)
	}
}

func TestOverview(t *testing.T) {
	q := buildQueue(t)
	if _, err := q.ApplyBulk(q.ByFile("docs/notes.md"), model.Skimmed); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	u := &UI{Out: &buf, ErrOut: &buf}
	if err := u.Overview(q); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"core/auth.py", "docs/notes.md", "FILE", "3 lines remaining"} {
		if !strings.Contains(out, want) {
			t.Errorf("overview missing %q:\n%s", want, out)
		}
	}
}

func TestGroups(t *testing.T) {
	q := buildQueue(t)
	g, err := chunk.FileTypeScheme{}.Partition(q.DiffSet())
	if err != nil {
		t.Fatal(err)
	}
	scorer := score.NewScorer(score.DefaultWeights(), nil)
	ranked := scorer.Rank(q.DiffSet(), g)

	var buf bytes.Buffer
	u := &UI{Out: &buf, ErrOut: &buf}
	if err := u.Groups("file-type", ranked, q); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"file-type", "source", "doc", "GROUP"} {
		if !strings.Contains(out, want) {
			t.Errorf("group listing missing %q:\n%s", want, out)
		}
	}
}

func TestGroupFiles(t *testing.T) {
	q := buildQueue(t)
	g, err := chunk.FileTypeScheme{}.Partition(q.DiffSet())
	if err != nil {
		t.Fatal(err)
	}
	grp := g.Find("source")
	if grp == nil {
		t.Fatal("no source group")
	}

	var buf bytes.Buffer
	u := &UI{Out: &buf, ErrOut: &buf}
	if err := u.GroupFiles(grp, q); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"source", "core/auth.py", "3", "FILE"} {
		if !strings.Contains(out, want) {
			t.Errorf("group breakdown missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "docs/notes.md") {
		t.Errorf("group breakdown leaked a non-member file:\n%s", out)
	}
}

func TestHighlightHunk(t *testing.T) {
	ds, err := diff.Ingest(sampleDiff)
	if err != nil {
		t.Fatal(err)
	}
	h := ds.Files[0].Hunks[0]

	lines := HighlightHunk(h)
	if len(lines) != len(h.Lines) {
		t.Fatalf("highlighted %d lines, want %d", len(lines), len(h.Lines))
	}
	for i, hl := range lines {
		if hl.Plain() != h.Lines[i].Content {
			t.Errorf("line %d plain = %q, want %q", i, hl.Plain(), h.Lines[i].Content)
		}
		if hl.Kind != h.Lines[i].Kind {
			t.Errorf("line %d kind mismatch", i)
		}
	}
	// Python source should produce more than one token somewhere.
	multi := false
	for _, hl := range lines {
		if len(hl.Tokens) > 1 {
			multi = true
		}
	}
	if !multi {
		t.Error("expected tokenized output for a known language")
	}
}

func TestHighlightUnknownLanguage(t *testing.T) {
	got := highlightLines("blob.zzqq", []string{"alpha", "beta"})
	if len(got) != 2 || got[0].Plain() != "alpha" || got[1].Plain() != "beta" {
		t.Errorf("plain passthrough broken: %+v", got)
	}
}
