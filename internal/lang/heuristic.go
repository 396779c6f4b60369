package lang

import (
	"regexp"
	"strings"

	"github.com/sprite-ai/revq/internal/model"
)

// regexAnalyzer implements Analyzer with per-language regex sets. The
// default (zero-extension) instance is the conservative fallback: scope by
// indentation, branches and definitions by cross-language patterns.
type regexAnalyzer struct {
	scopeDef []*regexp.Regexp // lines that open a named scope; group 1 is the name
	branch   []*regexp.Regexp
	newDef   []*regexp.Regexp
}

var fallback = &regexAnalyzer{
	scopeDef: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?(?:func|def|fn|function|class|impl|trait|interface|module)\s+(\w+)`),
		regexp.MustCompile(`^\s*(?:public|private|protected|static|final)?\s*\w[\w<>\[\]]*\s+(\w+)\s*\([^;]*\)\s*\{`),
	},
	branch: []*regexp.Regexp{
		regexp.MustCompile(`(^|\W)(if|else if|elif|for|while|switch|case|when|match)(\W|$)`),
		regexp.MustCompile(`(^|\W)(catch|except|rescue|recover)(\W|$)`),
		regexp.MustCompile(`&&|\|\|`),
		regexp.MustCompile(`\?.*:`), // ternary
	},
	newDef: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?(?:func|def|fn|function)\s+\w+`),
		regexp.MustCompile(`^\s*(?:export\s+)?(?:class|trait|interface|enum)\s+\w+`),
		regexp.MustCompile(`^\s*type\s+\w+\s+(?:struct|interface)`),
	},
}

var goAnalyzer = &regexAnalyzer{
	scopeDef: []*regexp.Regexp{
		regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)`),
		regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)`),
	},
	branch: []*regexp.Regexp{
		regexp.MustCompile(`(^|\W)(if|for|switch|select|case)(\W|$)`),
		regexp.MustCompile(`&&|\|\|`),
	},
	newDef: []*regexp.Regexp{
		regexp.MustCompile(`^func\s+`),
		regexp.MustCompile(`^type\s+\w+\s+(?:struct|interface|func)`),
	},
}

var pythonAnalyzer = &regexAnalyzer{
	scopeDef: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+(\w+)`),
		regexp.MustCompile(`^\s*class\s+(\w+)`),
	},
	branch: []*regexp.Regexp{
		regexp.MustCompile(`(^|\W)(if|elif|for|while|except|case)(\W|$)`),
		regexp.MustCompile(`(^|\W)(and|or)(\W|$)`),
	},
	newDef: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+\w+`),
		regexp.MustCompile(`^\s*class\s+\w+`),
	},
}

var jsAnalyzer = &regexAnalyzer{
	scopeDef: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function\s*\*?\s*(\w+)`),
		regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`),
		regexp.MustCompile(`^\s*(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`),
	},
	branch: []*regexp.Regexp{
		regexp.MustCompile(`(^|\W)(if|else if|for|while|switch|case|catch)(\W|$)`),
		regexp.MustCompile(`&&|\|\||\?\?`),
		regexp.MustCompile(`\?.*:`),
	},
	newDef: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(?:async\s+)?function`),
		regexp.MustCompile(`^\s*(?:export\s+)?class\s+\w+`),
		regexp.MustCompile(`^\s*(?:const|let|var)\s+\w+\s*=\s*(?:async\s+)?(?:\([^)]*\)|\w+)\s*=>`),
	},
}

func init() {
	for _, ext := range []string{".go"} {
		Register(ext, goAnalyzer)
	}
	for _, ext := range []string{".py", ".pyi"} {
		Register(ext, pythonAnalyzer)
	}
	for _, ext := range []string{".js", ".jsx", ".ts", ".tsx", ".mjs"} {
		Register(ext, jsAnalyzer)
	}
	RegisterLanguage("go", goAnalyzer)
	RegisterLanguage("python", pythonAnalyzer)
	RegisterLanguage("javascript", jsAnalyzer)
	RegisterLanguage("typescript", jsAnalyzer)
}

// DetectScope scans the hunk top-down and returns the last scope opener at
// or above the first added line. Empty when nothing in the hunk's context
// opens a scope.
func (a *regexAnalyzer) DetectScope(file string, hunk *model.Hunk) string {
	scope := ""
	for _, l := range hunk.Lines {
		if name := a.scopeName(l.Content); name != "" {
			scope = name
		}
		// The hunk's scope is whatever encloses the first changed line; a
		// scope opened further down does not claim the change.
		if l.Kind == model.KindAdded {
			return scope
		}
	}
	return scope
}

func (a *regexAnalyzer) scopeName(line string) string {
	for _, pat := range a.scopeDef {
		if m := pat.FindStringSubmatch(line); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// BranchDelta counts branch constructs on added lines, ignoring comments.
func (a *regexAnalyzer) BranchDelta(hunk *model.Hunk) int {
	n := 0
	for _, l := range hunk.Lines {
		if l.Kind != model.KindAdded || isComment(l.Content) {
			continue
		}
		for _, pat := range a.branch {
			n += len(pat.FindAllStringIndex(l.Content, -1))
		}
	}
	return n
}

// NewDefinitions counts definitions introduced on added lines.
func (a *regexAnalyzer) NewDefinitions(hunk *model.Hunk) int {
	n := 0
	for _, l := range hunk.Lines {
		if l.Kind != model.KindAdded {
			continue
		}
		for _, pat := range a.newDef {
			if pat.MatchString(l.Content) {
				n++
				break
			}
		}
	}
	return n
}

func isComment(line string) bool {
	s := strings.TrimSpace(line)
	return strings.HasPrefix(s, "//") || strings.HasPrefix(s, "#") ||
		strings.HasPrefix(s, "*") || strings.HasPrefix(s, "/*")
}
