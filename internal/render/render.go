// Package render writes the CLI's human-readable views: the overview
// table, the one-line status summary, and group listings.
package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/sprite-ai/revq/internal/model"
	"github.com/sprite-ai/revq/internal/queue"
	"github.com/sprite-ai/revq/internal/score"
)

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8be9fd")).Bold(true)
	reviewedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b"))
	partialStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#f1fa8c"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
)

// UI bundles the output writers.
type UI struct {
	Out    io.Writer
	ErrOut io.Writer
}

// New returns a UI on stdout/stderr.
func New() *UI {
	return &UI{Out: os.Stdout, ErrOut: os.Stderr}
}

// table builds a borderless left-aligned table on Out.
func (u *UI) table(headers []string) *tablewriter.Table {
	t := tablewriter.NewTable(u.Out,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	t.Header(headers)
	return t
}

// StatusLine renders the single-line queue summary.
func StatusLine(q *queue.Queue) string {
	total := q.Total()
	remaining := q.Remaining()
	pct := 0
	if total > 0 {
		pct = (total - remaining) * 100 / total
	}
	return fmt.Sprintf("%d lines remaining | %d%% reviewed | %d files touched",
		remaining, pct, len(q.Files()))
}

// Status writes the queue summary plus the per-status breakdown.
func (u *UI) Status(q *queue.Queue) {
	fmt.Fprintln(u.Out, StatusLine(q))
	bd := q.Breakdown()
	parts := make([]string, 0, 3)
	for _, st := range []model.Status{model.Skimmed, model.DeepReviewed, model.Filtered} {
		if bd[st] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", bd[st], st))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintln(u.Out, dimStyle.Render(strings.Join(parts, ", ")))
	}
}

// Overview writes the per-file table: path, reviewable lines, and how many
// of them are resolved.
func (u *UI) Overview(q *queue.Queue) error {
	t := u.table([]string{"FILE", "LINES", "REVIEWED", "STATUS"})

	files := q.Files()
	sort.Strings(files)
	for _, path := range files {
		ids := q.ByFile(path)
		done := 0
		for _, id := range ids {
			if st, ok := q.Status(id); ok && st.Terminal() {
				done++
			}
		}
		label := partialStyle.Render("partial")
		switch done {
		case len(ids):
			label = reviewedStyle.Render("reviewed")
		case 0:
			label = dimStyle.Render("unreviewed")
		}
		if err := t.Append([]string{path, fmt.Sprint(len(ids)), fmt.Sprint(done), label}); err != nil {
			return err
		}
	}
	if err := t.Render(); err != nil {
		return err
	}
	fmt.Fprintln(u.Out)
	fmt.Fprintln(u.Out, StatusLine(q))
	return nil
}

// Groups writes the ranked group listing for one scheme.
func (u *UI) Groups(scheme string, ranked []score.ScoredGroup, q *queue.Queue) error {
	fmt.Fprintln(u.Out, headerStyle.Render(scheme))
	t := u.table([]string{"GROUP", "LINES", "SCORE", "STATUS"})
	for _, sg := range ranked {
		status := partialStyle.Render(q.AggregateStatus(sg.Group).String())
		if q.AggregateStatus(sg.Group) == model.GroupReviewed {
			status = reviewedStyle.Render(model.GroupReviewed.String())
		}
		row := []string{
			sg.Group.Label,
			fmt.Sprint(len(sg.Group.Members)),
			fmt.Sprintf("%.1f", sg.Score),
			status,
		}
		if err := t.Append(row); err != nil {
			return err
		}
	}
	return t.Render()
}

// GroupFiles writes one group's per-file breakdown.
func (u *UI) GroupFiles(g *model.Group, q *queue.Queue) error {
	fmt.Fprintln(u.Out, headerStyle.Render(g.Label))

	lines := map[string]int{}
	done := map[string]int{}
	var files []string
	for _, id := range g.Members {
		l := q.Get(id)
		if l == nil {
			continue
		}
		if lines[l.File] == 0 {
			files = append(files, l.File)
		}
		lines[l.File]++
		if st, ok := q.Status(id); ok && st.Terminal() {
			done[l.File]++
		}
	}
	sort.Strings(files)

	t := u.table([]string{"FILE", "LINES", "REVIEWED"})
	for _, path := range files {
		if err := t.Append([]string{path, fmt.Sprint(lines[path]), fmt.Sprint(done[path])}); err != nil {
			return err
		}
	}
	return t.Render()
}

// NextUp writes the suggested next group.
func (u *UI) NextUp(sg score.ScoredGroup) {
	fmt.Fprintf(u.Out, "next up: %s (%d lines, score %.1f)\n",
		headerStyle.Render(sg.Group.Label), len(sg.Group.Members), sg.Score)
}
