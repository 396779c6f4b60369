package chunk

import (
	"testing"

	"github.com/sprite-ai/revq/internal/diff"
	"github.com/sprite-ai/revq/internal/model"
)

const mixedDiff = `diff --git a/core/auth.py b/core/auth.py
index 1111111..2222222 100644
--- a/core/auth.py
+++ b/core/auth.py
@@ -1,2 +1,6 @@
 def login(user):
+    if user.locked:
+        raise Locked()
     return check(user)
+def verify_token(tok):
+    return decode(tok)
diff --git a/tests/test_auth.py b/tests/test_auth.py
index 3333333..4444444 100644
--- a/tests/test_auth.py
+++ b/tests/test_auth.py
@@ -1,1 +1,3 @@
 import pytest
+def test_login():
+    assert login(u)
diff --git a/docs/auth.md b/docs/auth.md
index 5555555..6666666 100644
--- a/docs/auth.md
+++ b/docs/auth.md
@@ -1,1 +1,2 @@
 # auth
+Token verification notes.
diff --git a/vendor/lib/x.py b/vendor/lib/x.py
index 7777777..8888888 100644
--- a/vendor/lib/x.py
+++ b/vendor/lib/x.py
@@ -1,1 +1,2 @@
 X = 1
+Y = 2
`

const whitespaceDiff = `diff --git a/fmt.go b/fmt.go
index 1111111..2222222 100644
--- a/fmt.go
+++ b/fmt.go
@@ -1,4 +1,4 @@
 package fmtonly
-func a() {return 1}
-func b() {return 2}
-func c() {return 3}
+func a() { return 1 }
+func b() { return 2 }
+func c() { return 3 }
diff --git a/logic.go b/logic.go
index 3333333..4444444 100644
--- a/logic.go
+++ b/logic.go
@@ -1,1 +1,11 @@
 package logic
+func handle(x int) int {
+	if x > 0 {
+		return x
+	}
+	if x < -10 {
+		return -x
+	}
+	y := x * 2
+	return y
+}
`

func ingest(t *testing.T, raw string) *model.DiffSet {
	t.Helper()
	ds, err := diff.Ingest(raw)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	return ds
}

func allSchemes() []Scheme {
	return []Scheme{
		FileTypeScheme{},
		FormattingScheme{},
		ScopeScheme{},
		CommitScheme{ByFile: map[string]CommitInfo{
			"core/auth.py": {Hash: "abcdef1234567890", Subject: "lock accounts"},
		}},
		CoChangeScheme{
			Threshold: 3,
			Pairs: []PairCount{
				{A: "core/auth.py", B: "tests/test_auth.py", Count: 5},
				{A: "core/auth.py", B: "docs/auth.md", Count: 1},
			},
		},
	}
}

func TestPartitionLaw(t *testing.T) {
	ds := ingest(t, mixedDiff)

	for _, s := range allSchemes() {
		g, err := s.Partition(ds)
		if err != nil {
			t.Fatalf("%s: %v", s.Name(), err)
		}
		if err := ValidatePartition(ds, g); err != nil {
			t.Errorf("%s violates partition law: %v", s.Name(), err)
		}
	}
}

func TestFileTypeCategories(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"core/auth.py", "source"},
		{"internal/queue/queue_test.go", "test"},
		{"tests/test_auth.py", "test"},
		{"src/app.spec.ts", "test"},
		{"docs/auth.md", "doc"},
		{"README.md", "doc"},
		{"vendor/lib/x.py", "vendor"},
		{"node_modules/left-pad/index.js", "vendor"},
		{"api/service.pb.go", "vendor"},
		{"cmd/revq/main.go", "source"},
	}
	for _, tt := range tests {
		if got := FileCategory(tt.path); got != tt.want {
			t.Errorf("FileCategory(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFileTypePartition(t *testing.T) {
	ds := ingest(t, mixedDiff)
	g, err := FileTypeScheme{}.Partition(ds)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]int{"source": 4, "test": 2, "doc": 1, "vendor": 1}
	for label, n := range want {
		grp := g.Find(label)
		if grp == nil {
			t.Fatalf("missing group %q", label)
		}
		if len(grp.Members) != n {
			t.Errorf("group %q has %d members, want %d", label, len(grp.Members), n)
		}
	}
}

func TestFormattingOnlyDetection(t *testing.T) {
	ds := ingest(t, whitespaceDiff)
	g, err := FormattingScheme{}.Partition(ds)
	if err != nil {
		t.Fatal(err)
	}

	fmtGroup := g.Find(GroupFormattingOnly)
	if fmtGroup == nil {
		t.Fatal("no formatting-only group")
	}
	if len(fmtGroup.Members) != 3 {
		t.Errorf("formatting-only members = %d, want 3", len(fmtGroup.Members))
	}

	logic := g.Find(GroupSubstantive)
	if logic == nil {
		t.Fatal("no substantive group")
	}
	if len(logic.Members) != 10 {
		t.Errorf("substantive members = %d, want 10", len(logic.Members))
	}
}

func TestNormalizeLine(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"func a() {return 1}", "func a() { return 1 }", true},
		{"x := 1 // old comment", "x := 1 // new comment", true},
		{"return x", "return y", false},
		{"\tif x {", "if x {", true},
	}
	for _, tt := range tests {
		got := normalizeLine(tt.a) == normalizeLine(tt.b)
		if got != tt.same {
			t.Errorf("normalize(%q) == normalize(%q): got %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestScopeGrouping(t *testing.T) {
	ds := ingest(t, mixedDiff)
	g, err := ScopeScheme{}.Partition(ds)
	if err != nil {
		t.Fatal(err)
	}
	if err := ValidatePartition(ds, g); err != nil {
		t.Fatal(err)
	}

	// The auth hunk's first added lines sit inside login; the markdown file
	// has no detector signal and falls back to a whole-file group.
	if g.Find("login") == nil {
		t.Errorf("expected a login scope group, have %v", groupLabels(g))
	}
	if g.Find("auth") == nil {
		t.Errorf("expected whole-file fallback group for docs/auth.md, have %v", groupLabels(g))
	}
}

func TestCommitGrouping(t *testing.T) {
	ds := ingest(t, mixedDiff)
	s := CommitScheme{ByFile: map[string]CommitInfo{
		"core/auth.py":       {Hash: "abcdef1234567890", Subject: "lock accounts"},
		"tests/test_auth.py": {Hash: "abcdef1234567890", Subject: "lock accounts"},
	}}
	g, err := s.Partition(ds)
	if err != nil {
		t.Fatal(err)
	}

	commit := g.Find("abcdef12 lock accounts")
	if commit == nil {
		t.Fatalf("missing commit group, have %v", groupLabels(g))
	}
	if len(commit.Members) != 6 {
		t.Errorf("commit group members = %d, want 6", len(commit.Members))
	}

	uncommitted := g.Find("uncommitted")
	if uncommitted == nil || len(uncommitted.Members) != 2 {
		t.Errorf("uncommitted group wrong: %v", groupLabels(g))
	}
}

func TestCoChangeClustering(t *testing.T) {
	ds := ingest(t, mixedDiff)
	s := CoChangeScheme{
		Threshold: 3,
		Pairs: []PairCount{
			{A: "core/auth.py", B: "tests/test_auth.py", Count: 5},
			{A: "core/auth.py", B: "docs/auth.md", Count: 1}, // below threshold
		},
	}
	g, err := s.Partition(ds)
	if err != nil {
		t.Fatal(err)
	}

	// auth.py + test_auth.py cluster together; docs and vendor are singletons.
	if len(g.Groups) != 3 {
		t.Fatalf("got %d clusters, want 3: %v", len(g.Groups), groupLabels(g))
	}
	joint := g.Find("auth+1")
	if joint == nil {
		t.Fatalf("missing joint cluster, have %v", groupLabels(g))
	}
	if len(joint.Members) != 6 {
		t.Errorf("joint cluster members = %d, want 6", len(joint.Members))
	}
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind()
	uf.union("a", "b")
	uf.union("b", "c")
	uf.union("x", "y")

	if uf.find("a") != uf.find("c") {
		t.Error("a and c should share a root")
	}
	if uf.find("a") == uf.find("x") {
		t.Error("a and x should not share a root")
	}
}

func groupLabels(g *model.Grouping) []string {
	var out []string
	for _, grp := range g.Groups {
		out = append(out, grp.Label)
	}
	return out
}
