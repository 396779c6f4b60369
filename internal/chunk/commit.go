package chunk

import (
	"fmt"

	"github.com/sprite-ai/revq/internal/model"
)

// CommitInfo is the externally supplied origin of a file's changes.
type CommitInfo struct {
	Hash    string
	Subject string
}

// CommitScheme partitions lines by originating commit, using metadata
// supplied from the version-control log. Files without metadata land in an
// "uncommitted" group.
type CommitScheme struct {
	// ByFile maps file path to the commit that last touched it.
	ByFile map[string]CommitInfo
}

func (CommitScheme) Name() string { return "commit" }

func (s CommitScheme) Partition(ds *model.DiffSet) (*model.Grouping, error) {
	b := newBuilder(s.Name())
	eachReviewable(ds, func(f *model.File, _ *model.Hunk, l *model.DiffLine) {
		info, ok := s.ByFile[f.Path]
		if !ok {
			b.add("uncommitted", l)
			return
		}
		b.add(commitLabel(info), l)
	})
	return b.grouping(), nil
}

func commitLabel(info CommitInfo) string {
	short := info.Hash
	if len(short) > 8 {
		short = short[:8]
	}
	if info.Subject == "" {
		return short
	}
	return fmt.Sprintf("%s %s", short, info.Subject)
}
