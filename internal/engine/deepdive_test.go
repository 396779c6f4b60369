package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/model"
)

// threeHunkDiff touches one file in three separate hunks (2, 3, and 2
// added lines).
const threeHunkDiff = `diff --git a/core/auth.py b/core/auth.py
index aaaaaaa..bbbbbbb 100644
--- a/core/auth.py
+++ b/core/auth.py
@@ -1,2 +1,4 @@
 import os
+import hmac
+import hashlib
 import sys
@@ -20,2 +22,5 @@ def login(user):
 def verify(token):
+    if token is None:
+        raise ValueError("missing token")
+    digest = hmac.new(KEY, token).hexdigest()
     return digest
@@ -40,1 +45,3 @@ def logout(user):
 def audit(event):
+    log.info(event)
+    store.append(event)
`

func ingestThreeHunks(t *testing.T) *model.DiffSet {
	t.Helper()
	ds, err := diff.Ingest(threeHunkDiff)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

// Scenario: confirming every hunk completes the dive and deep-reviews
// every line it covered.
func TestDeepDiveConfirmAll(t *testing.T) {
	ds := ingestThreeHunks(t)
	s := openSession(t, ds, nil)
	ctx := context.Background()

	d, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatalf("DeepDive: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("dive covers %d hunks, want 3", d.Len())
	}
	if got := d.State(); got != "AtHunk(0)" {
		t.Errorf("initial state = %q", got)
	}

	for i := 0; i < 3; i++ {
		if d.Current() == nil {
			t.Fatalf("no current hunk at step %d", i)
		}
		if err := d.Confirm(ctx); err != nil {
			t.Fatalf("Confirm step %d: %v", i, err)
		}
	}
	if !d.Completed() {
		t.Fatal("dive not completed after confirming every hunk")
	}
	if got := d.State(); got != "Completed" {
		t.Errorf("state = %q, want Completed", got)
	}

	for _, id := range s.Queue().ByFile("core/auth.py") {
		if st, _ := s.Queue().Status(id); st != model.DeepReviewed {
			t.Errorf("line %s = %v, want DeepReviewed", id, st)
		}
	}
	if s.Queue().Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", s.Queue().Remaining())
	}
}

func TestDeepDiveConfirmPastEnd(t *testing.T) {
	ds := ingestThreeHunks(t)
	s := openSession(t, ds, nil)
	ctx := context.Background()

	d, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatal(err)
	}
	for !d.Completed() {
		if err := d.Confirm(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.Confirm(ctx); err == nil {
		t.Error("Confirm on a completed dive should fail")
	}
}

// Scenario: cancelling mid-dive keeps earlier confirmations, leaves the
// rest Unreviewed, and a reopened session resumes at the same hunk.
func TestDeepDiveCancelAndResume(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	s := openSession(t, ingestThreeHunks(t), st)
	d, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Confirm(ctx); err != nil {
		t.Fatal(err)
	}
	if got := d.State(); got != "AtHunk(1)" {
		t.Fatalf("state after one confirm = %q", got)
	}
	if err := d.Cancel(ctx); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// Hunk 0's lines stay DeepReviewed, hunks 1-2 stay Unreviewed.
	bd := s.Queue().Breakdown()
	if bd[model.DeepReviewed] != 2 {
		t.Errorf("DeepReviewed = %d, want 2 (hunk 0)", bd[model.DeepReviewed])
	}
	if bd[model.Unreviewed] != 5 {
		t.Errorf("Unreviewed = %d, want 5 (hunks 1-2)", bd[model.Unreviewed])
	}

	// Reopen against the same store: the cursor survives.
	s2, err := Open(ctx, "test-change", ingestThreeHunks(t), Options{Store: st})
	if err != nil {
		t.Fatal(err)
	}
	d2 := s2.Dive()
	if d2 == nil {
		t.Fatal("resumed session has no in-flight dive")
	}
	if got := d2.State(); got != "AtHunk(1)" {
		t.Errorf("resumed state = %q, want AtHunk(1)", got)
	}
	if err := d2.Confirm(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d2.Confirm(ctx); err != nil {
		t.Fatal(err)
	}
	if !d2.Completed() {
		t.Error("dive not completed after resuming and confirming the rest")
	}
	if s2.Queue().Remaining() != 0 {
		t.Errorf("remaining = %d after completed dive", s2.Queue().Remaining())
	}
}

// reworkedDiff is a later revision of the same file: one hunk instead of
// three, so a cursor saved under threeHunkDiff is meaningless here.
const reworkedDiff = `diff --git a/core/auth.py b/core/auth.py
index aaaaaaa..ccccccc 100644
--- a/core/auth.py
+++ b/core/auth.py
@@ -1,2 +1,3 @@
 import os
+import hmac
 import sys
`

func TestStaleCursorDroppedAcrossDiffChange(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	s := openSession(t, ingestThreeHunks(t), st)
	d, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Confirm(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.Cancel(ctx); err != nil {
		t.Fatal(err)
	}

	ingest := func() *model.DiffSet {
		ds, err := diff.Ingest(reworkedDiff)
		if err != nil {
			t.Fatal(err)
		}
		return ds
	}

	// The diff changed under the paused dive: the cursor does not apply.
	s2, err := Open(ctx, "test-change", ingest(), Options{Store: st})
	if err != nil {
		t.Fatal(err)
	}
	if s2.Dive() != nil {
		t.Fatal("cursor survived a diff change")
	}

	// The drop is durable. A later open of the same reworked diff sees a
	// matching hash and must not resurrect the old position.
	s3, err := Open(ctx, "test-change", ingest(), Options{Store: st})
	if err != nil {
		t.Fatal(err)
	}
	if s3.Dive() != nil {
		t.Fatalf("stale cursor resurrected as %s", s3.Dive().State())
	}
}

func TestDeepDiveCompletionClearsCursor(t *testing.T) {
	st := newSQLiteStore(t)
	ctx := context.Background()

	s := openSession(t, ingestThreeHunks(t), st)
	d, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatal(err)
	}
	for !d.Completed() {
		if err := d.Confirm(ctx); err != nil {
			t.Fatal(err)
		}
	}

	s2, err := Open(ctx, "test-change", ingestThreeHunks(t), Options{Store: st})
	if err != nil {
		t.Fatal(err)
	}
	if s2.Dive() != nil {
		t.Error("completed dive left a cursor behind")
	}
}

func TestDeepDiveEmptySelector(t *testing.T) {
	ds := ingestThreeHunks(t)
	s := openSession(t, ds, nil)

	_, err := s.DeepDive(context.Background(), ParseSelector("no/such/file.py"))
	if !errors.Is(err, model.ErrInvalidSelector) {
		t.Fatalf("err = %v, want ErrInvalidSelector", err)
	}
}

func TestDeepDiveResumesSameSelector(t *testing.T) {
	ds := ingestThreeHunks(t)
	s := openSession(t, ds, nil)
	ctx := context.Background()

	d1, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d1.Confirm(ctx); err != nil {
		t.Fatal(err)
	}

	d2, err := s.DeepDive(ctx, ParseSelector("core/auth.py"))
	if err != nil {
		t.Fatal(err)
	}
	if d2 != d1 {
		t.Error("starting a dive over the same selector should resume the in-flight one")
	}
	if d2.Index() != 1 {
		t.Errorf("resumed dive at index %d, want 1", d2.Index())
	}
}
