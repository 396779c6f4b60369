// Package score ranks groups of changed lines for review priority.
package score

import (
	"regexp"
	"sort"

	"github.com/sprite-ai/revq/internal/lang"
	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/queue"
)

// Weights configures the complexity heuristic. The defaults favor new
// definitions over branching delta over raw line count, and discount
// boilerplate to near zero.
type Weights struct {
	NewDefinition float64
	BranchDelta   float64
	Line          float64

	// BoilerplateFactor multiplies the score of vendored/generated or
	// purely declarative lines.
	BoilerplateFactor float64
}

// DefaultWeights returns the standard weighting.
func DefaultWeights() Weights {
	return Weights{
		NewDefinition:     6.0,
		BranchDelta:       2.5,
		Line:              0.25,
		BoilerplateFactor: 0.05,
	}
}

// Scorer computes deterministic complexity scores over hunks and groups.
type Scorer struct {
	weights     Weights
	boilerplate []*regexp.Regexp
}

var defaultBoilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(^|/)(vendor|node_modules|third_party)(/|$)`),
	regexp.MustCompile(`\.(pb|gen|generated)\.\w+$|_generated\.\w+$`),
	regexp.MustCompile(`(^|/)(go\.sum|package-lock\.json|yarn\.lock|Cargo\.lock)$`),
}

// purely declarative lines: assignments of literals, imports, struct tags.
var declarativeLine = regexp.MustCompile(`^\s*(?:import\s|from\s+\S+\s+import|[\w.]+\s*[:=]+\s*(?:"[^"]*"|'[^']*'|[\d.]+|true|false|None|nil)\s*,?\s*$)`)

// NewScorer builds a scorer; extraBoilerplate patterns come from config.
func NewScorer(w Weights, extraBoilerplate []string) *Scorer {
	s := &Scorer{weights: w}
	s.boilerplate = append(s.boilerplate, defaultBoilerplatePatterns...)
	for _, p := range extraBoilerplate {
		if re, err := regexp.Compile(p); err == nil {
			s.boilerplate = append(s.boilerplate, re)
		}
	}
	return s
}

func (s *Scorer) isBoilerplatePath(path string) bool {
	for _, re := range s.boilerplate {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// HunkScore scores one hunk: branch delta and new definitions from the
// file's language analyzer plus a per-line weight, discounted for
// boilerplate paths.
func (s *Scorer) HunkScore(h *model.Hunk) float64 {
	analyzer := lang.For(h.File)

	reviewable := h.ReviewableLines()
	score := s.weights.BranchDelta*float64(analyzer.BranchDelta(h)) +
		s.weights.NewDefinition*float64(analyzer.NewDefinitions(h))

	for _, l := range reviewable {
		if declarativeLine.MatchString(l.Content) {
			score += s.weights.Line * s.weights.BoilerplateFactor
		} else {
			score += s.weights.Line
		}
	}

	if s.isBoilerplatePath(h.File) {
		score *= s.weights.BoilerplateFactor
	}
	return score
}

// LineScores distributes hunk scores evenly over the hunk's reviewable
// lines, so group scores can be summed per member line.
func (s *Scorer) LineScores(ds *model.DiffSet) map[model.LineID]float64 {
	out := make(map[model.LineID]float64)
	for _, f := range ds.Files {
		if !f.Reviewable() {
			continue
		}
		for _, h := range f.Hunks {
			lines := h.ReviewableLines()
			if len(lines) == 0 {
				continue
			}
			per := s.HunkScore(h) / float64(len(lines))
			for _, l := range lines {
				out[l.ID] = per
			}
		}
	}
	return out
}

// ScoredGroup pairs a group with its complexity score.
type ScoredGroup struct {
	Group *model.Group
	Score float64
}

// Rank orders groups into a total order: descending score, ties broken by
// ascending file path, then ascending group id. Reproducible given
// identical input and weights.
func (s *Scorer) Rank(ds *model.DiffSet, g *model.Grouping) []ScoredGroup {
	lineScores := s.LineScores(ds)

	out := make([]ScoredGroup, 0, len(g.Groups))
	for _, grp := range g.Groups {
		total := 0.0
		for _, id := range grp.Members {
			total += lineScores[id]
		}
		out = append(out, ScoredGroup{Group: grp, Score: total})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Group.MinPath != b.Group.MinPath {
			return a.Group.MinPath < b.Group.MinPath
		}
		return a.Group.ID < b.Group.ID
	})
	return out
}

// NextPriorityGroup returns the highest-scoring group with at least one
// Unreviewed member, or false when all reviewable lines are resolved.
func (s *Scorer) NextPriorityGroup(q *queue.Queue, g *model.Grouping) (ScoredGroup, bool) {
	for _, sg := range s.Rank(q.DiffSet(), g) {
		if q.HasUnreviewed(sg.Group) {
			return sg, true
		}
	}
	return ScoredGroup{}, false
}
