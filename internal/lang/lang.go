// Package lang hosts the per-language analyzer registry. Scope detection and
// branch counting need heterogeneous heuristics, so both hide behind one
// capability interface with a registry keyed by file extension and a
// conservative indentation-based fallback.
package lang

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/lexers"

	"github.com/sprite-ai/revq/internal/model"
)

// Analyzer is the per-language capability surface consumed by the chunker
// (scope grouping) and the prioritizer (branch deltas).
type Analyzer interface {
	// DetectScope names the enclosing function/class/module for a hunk.
	// Implementations work from the hunk's own lines plus its context; an
	// empty string means "no enclosing scope found".
	DetectScope(file string, hunk *model.Hunk) string

	// BranchDelta counts branching constructs introduced by the hunk's
	// added lines (conditionals, loops, exception handlers).
	BranchDelta(hunk *model.Hunk) int

	// NewDefinitions counts function/class/type definitions introduced by
	// the hunk's added lines.
	NewDefinitions(hunk *model.Hunk) int
}

var (
	mu       sync.RWMutex
	registry = map[string]Analyzer{}
)

// Register binds an analyzer to a file extension (with leading dot).
func Register(ext string, a Analyzer) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(ext)] = a
}

// For returns the analyzer for a file path. Lookup order: registered
// extension, language identified by chroma's lexer matcher, then the
// indentation-based fallback.
func For(path string) Analyzer {
	mu.RLock()
	defer mu.RUnlock()

	if a, ok := registry[strings.ToLower(filepath.Ext(path))]; ok {
		return a
	}
	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		if a, ok := registry["lang:"+strings.ToLower(lexer.Config().Name)]; ok {
			return a
		}
	}
	return fallback
}

// RegisterLanguage binds an analyzer to a chroma language name, covering
// extensions not registered explicitly.
func RegisterLanguage(name string, a Analyzer) {
	mu.Lock()
	defer mu.Unlock()
	registry["lang:"+strings.ToLower(name)] = a
}

// Language returns chroma's language name for a path, or "".
func Language(path string) string {
	if lexer := lexers.Match(filepath.Base(path)); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
