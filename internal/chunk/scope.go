package chunk

import (
	"path/filepath"
	"strings"

	"github.com/sprite-ai/revq/internal/lang"
	"github.com/sprite-ai/revq/internal/model"
)

// ScopeScheme groups lines by their enclosing function/class/module, using
// the per-language analyzer registry. Files whose language has no usable
// scope signal fall back to whole-file groups.
type ScopeScheme struct{}

func (ScopeScheme) Name() string { return "scope" }

func (s ScopeScheme) Partition(ds *model.DiffSet) (*model.Grouping, error) {
	b := newBuilder(s.Name())

	for _, f := range ds.Files {
		if !f.Reviewable() {
			continue
		}
		analyzer := lang.For(f.Path)
		for _, h := range f.Hunks {
			label := analyzer.DetectScope(f.Path, h)
			if label == "" {
				label = wholeFileLabel(f.Path)
			}
			for _, l := range h.Lines {
				if l.Reviewable() {
					b.add(label, l)
				}
			}
		}
	}

	return b.grouping(), nil
}

func wholeFileLabel(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
