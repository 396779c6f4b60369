package chunk

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sprite-ai/revq/internal/model"
)

// FileTypeScheme partitions lines by file category: source, test, doc, or
// vendor, inferred from path and extension.
type FileTypeScheme struct{}

func (FileTypeScheme) Name() string { return "file-type" }

var (
	testPathPattern   = regexp.MustCompile(`(^|/)(tests?|spec|__tests__)(/|$)`)
	vendorPathPattern = regexp.MustCompile(`(^|/)(vendor|node_modules|third_party|dist|build)(/|$)`)
	generatedPattern  = regexp.MustCompile(`\.(pb|gen|generated)\.\w+$|_generated\.\w+$`)
)

var docExtensions = map[string]bool{
	".md": true, ".rst": true, ".txt": true, ".adoc": true, ".mdx": true,
}

// FileCategory classifies a path into one of the file-type groups.
func FileCategory(path string) string {
	base := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(base))

	switch {
	case vendorPathPattern.MatchString(path) || generatedPattern.MatchString(base):
		return "vendor"
	case strings.HasSuffix(strings.TrimSuffix(base, ext), "_test"),
		strings.Contains(base, ".test."),
		strings.Contains(base, ".spec."),
		testPathPattern.MatchString(path):
		return "test"
	case docExtensions[ext] || strings.HasPrefix(path, "docs/"):
		return "doc"
	default:
		return "source"
	}
}

func (s FileTypeScheme) Partition(ds *model.DiffSet) (*model.Grouping, error) {
	b := newBuilder(s.Name())
	eachReviewable(ds, func(f *model.File, _ *model.Hunk, l *model.DiffLine) {
		b.add(FileCategory(f.Path), l)
	})
	return b.grouping(), nil
}
