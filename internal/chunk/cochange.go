package chunk

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sprite-ai/revq/internal/model"
)

// PairCount is the historical co-modification frequency of two files,
// supplied by the version-control log.
type PairCount struct {
	A, B  string
	Count int
}

// CoChangeScheme clusters files whose pairwise co-modification frequency
// exceeds Threshold, by connectivity over the file-pair graph. Lines
// inherit their file's cluster; files outside every qualifying pair form
// singleton clusters.
type CoChangeScheme struct {
	Pairs     []PairCount
	Threshold int
}

func (CoChangeScheme) Name() string { return "co-change" }

func (s CoChangeScheme) Partition(ds *model.DiffSet) (*model.Grouping, error) {
	uf := newUnionFind()
	for _, f := range ds.Files {
		if f.Reviewable() {
			uf.ensure(f.Path)
		}
	}
	for _, p := range s.Pairs {
		if p.Count >= s.Threshold && uf.has(p.A) && uf.has(p.B) {
			uf.union(p.A, p.B)
		}
	}

	// Label each cluster by its lexically smallest member so labels are
	// reproducible across runs.
	clusterLabel := map[string]string{}
	members := map[string][]string{}
	for _, f := range ds.Files {
		if !f.Reviewable() {
			continue
		}
		root := uf.find(f.Path)
		members[root] = append(members[root], f.Path)
	}
	for root, paths := range members {
		sort.Strings(paths)
		clusterLabel[root] = clusterName(paths)
	}

	b := newBuilder(s.Name())
	eachReviewable(ds, func(f *model.File, _ *model.Hunk, l *model.DiffLine) {
		b.add(clusterLabel[uf.find(f.Path)], l)
	})
	return b.grouping(), nil
}

func clusterName(paths []string) string {
	base := filepath.Base(paths[0])
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if len(paths) == 1 {
		return base
	}
	return fmt.Sprintf("%s+%d", base, len(paths)-1)
}

// unionFind is a disjoint-set over file paths with path compression.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[string]string{}, rank: map[string]int{}}
}

func (u *unionFind) ensure(x string) {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
}

func (u *unionFind) has(x string) bool {
	_, ok := u.parent[x]
	return ok
}

func (u *unionFind) find(x string) string {
	u.ensure(x)
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}
