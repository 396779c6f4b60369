package history

import (
	"testing"
)

func TestPairCounts(t *testing.T) {
	commits := [][]string{
		{"a.go", "b.go"},
		{"b.go", "a.go", "c.go"}, // order within a commit must not matter
		{"c.go"},
		{"a.go", "b.go"},
	}

	pairs := PairCounts(commits)

	want := map[[2]string]int{
		{"a.go", "b.go"}: 3,
		{"a.go", "c.go"}: 1,
		{"b.go", "c.go"}: 1,
	}
	if len(pairs) != len(want) {
		t.Fatalf("got %d pairs, want %d: %v", len(pairs), len(want), pairs)
	}
	for _, p := range pairs {
		if want[[2]string{p.A, p.B}] != p.Count {
			t.Errorf("pair %s/%s count = %d, want %d", p.A, p.B, p.Count, want[[2]string{p.A, p.B}])
		}
		if p.A >= p.B {
			t.Errorf("pair %s/%s not canonically ordered", p.A, p.B)
		}
	}
}

func TestPairCountsDeterministic(t *testing.T) {
	commits := [][]string{{"x", "y", "z"}, {"y", "x"}}
	a := PairCounts(commits)
	b := PairCounts(commits)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pair order differs between runs: %v vs %v", a, b)
		}
	}
}

func TestPairCountsEmpty(t *testing.T) {
	if got := PairCounts(nil); len(got) != 0 {
		t.Errorf("PairCounts(nil) = %v, want empty", got)
	}
	if got := PairCounts([][]string{{"only.go"}}); len(got) != 0 {
		t.Errorf("single-file commits produce no pairs, got %v", got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := firstLine("subject\n\nbody"); got != "subject" {
		t.Errorf("firstLine = %q", got)
	}
	if got := firstLine("no newline"); got != "no newline" {
		t.Errorf("firstLine = %q", got)
	}
}
