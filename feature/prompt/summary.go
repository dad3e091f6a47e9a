package prompt

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"anki-sync/core/reconcile"

	"github.com/charmbracelet/lipgloss"
)

// maxListedFailures caps the failures printed per phase.
const maxListedFailures = 10

// Reporter implements reconcile.Reporter by printing the summary.
type Reporter struct {
	out io.Writer
}

// NewReporter prints summaries to out.
func NewReporter(out io.Writer) *Reporter {
	return &Reporter{out: out}
}

// Report implements reconcile.Reporter.
func (r *Reporter) Report(_ context.Context, s *reconcile.Summary) error {
	_, err := fmt.Fprintln(r.out, RenderSummary(s))
	return err
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

// RenderSummary formats a run summary.
func RenderSummary(s *reconcile.Summary) string {
	title := "Sync complete"
	switch {
	case s.Error != "":
		title = "Sync failed"
	case s.Aborted:
		title = "Sync aborted"
	case s.DryRun:
		title = "Sync plan (dry run)"
	}

	lines := []string{
		titleStyle.Render(title),
		row("graph", s.Graph),
		row("model", s.Model),
		row("run", dimStyle.Render(s.RunID)),
		row("duration", s.Duration.Round(time.Millisecond).String()),
	}
	if s.DryRun {
		lines = append(lines, row("planned", fmt.Sprintf("%d create, %d update, %d delete",
			s.Planned.Create, s.Planned.Update, s.Planned.Delete)))
	} else {
		lines = append(lines,
			row("created", successStyle.Render(fmt.Sprint(s.Created))),
			row("updated", successStyle.Render(fmt.Sprint(s.Updated))),
			row("deleted", successStyle.Render(fmt.Sprint(s.Deleted))),
			row("unchanged", dimStyle.Render(fmt.Sprint(s.Unchanged))),
		)
	}
	if failed := s.Failed(); failed > 0 {
		lines = append(lines, row("failed", errorStyle.Render(fmt.Sprint(failed))))
		lines = append(lines, failureLines("create", s.CreateFailures)...)
		lines = append(lines, failureLines("update", s.UpdateFailures)...)
		deletes := make(map[string]string, len(s.DeleteFailures))
		for id, msg := range s.DeleteFailures {
			deletes[fmt.Sprint(id)] = msg
		}
		lines = append(lines, failureLines("delete", deletes)...)
	}
	if s.Error != "" {
		lines = append(lines, row("error", errorStyle.Render(s.Error)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func failureLines(phase string, failures map[string]string) []string {
	keys := make([]string, 0, len(failures))
	for k := range failures {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	var lines []string
	for i, k := range keys {
		if i == maxListedFailures {
			lines = append(lines, dimStyle.Render(fmt.Sprintf("  … %d more %s failures", len(keys)-i, phase)))
			break
		}
		lines = append(lines, fmt.Sprintf("  %s %s: %s", errorStyle.Render(phase), k, failures[k]))
	}
	return lines
}

// RenderHistory formats past summaries, newest first, one line each.
func RenderHistory(summaries []*reconcile.Summary) string {
	if len(summaries) == 0 {
		return dimStyle.Render("No sync runs recorded.")
	}
	lines := make([]string, 0, len(summaries))
	for _, s := range summaries {
		status := successStyle.Render("ok")
		switch {
		case s.Error != "":
			status = errorStyle.Render("error")
		case s.Aborted:
			status = dimStyle.Render("aborted")
		case s.DryRun:
			status = dimStyle.Render("dry-run")
		case s.Failed() > 0:
			status = errorStyle.Render(fmt.Sprintf("%d failed", s.Failed()))
		}
		lines = append(lines, fmt.Sprintf("%s  %-20s  +%d ~%d -%d  %s",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Graph, s.Created, s.Updated, s.Deleted, status))
	}
	return strings.Join(lines, "\n")
}
