package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/threads"
)

// TextWriter outputs human-readable text.
type TextWriter struct {
	Options Options
}

func (t *TextWriter) WriteThreads(w io.Writer, views []threads.ThreadView) error {
	ew := &errWriter{w: w}
	if len(views) == 0 {
		ew.println("No threads.")
		return ew.err
	}
	for _, v := range t.Options.views(views) {
		th := v.Thread
		ew.printf("%s  %-8s %s %s  %s\n",
			th.ID, th.Status, healthIcon(th.Anchor.Health), location(v), firstLine(th))
	}
	ew.printf("\n%d thread(s)\n", len(views))
	return ew.err
}

func (t *TextWriter) WriteThread(w io.Writer, view *threads.ThreadView) error {
	ew := &errWriter{w: w}
	v := t.Options.view(*view)
	th := v.Thread
	a := th.Anchor

	ew.printf("Thread %s\n", th.ID)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Location: %s (%s", location(v), a.Health)
	if a.DriftDistance != 0 {
		ew.printf(", moved %+d", a.DriftDistance)
	}
	ew.println(")")
	ew.printf("Status:   %s\n", th.Status)
	ew.printf("Created:  %s\n", stamp(th.CreatedAt))
	if th.ResolvedAt != nil {
		ew.printf("Closed:   %s\n", stamp(*th.ResolvedAt))
	}

	ew.println("\nSnippet:")
	for i, line := range a.SnippetLines() {
		ew.printf("  %4d | %s\n", a.StartLine+i, line)
	}

	ew.println("\nComments:")
	for _, c := range th.Comments {
		ew.printf("\n  %s (%s) at %s\n", c.Author, c.AuthorKind, stamp(c.CreatedAt))
		for _, para := range strings.Split(c.Body, "\n") {
			for _, line := range wrapText(para, 70) {
				ew.printf("    %s\n", line)
			}
		}
	}

	if th.Decision != nil {
		ew.printf("\nDecision by %s at %s:\n", th.Decision.Author, stamp(th.Decision.RecordedAt))
		for _, line := range wrapText(th.Decision.Summary, 70) {
			ew.printf("    %s\n", line)
		}
	}

	if len(th.Resolutions) > 0 {
		ew.println("\nHistory:")
		for _, r := range th.Resolutions {
			ew.printf("  %s by %s at %s", r.Status, r.ResolvedBy, stamp(r.ResolvedAt))
			if r.ReopenedAt != nil {
				ew.printf(", reopened %s", stamp(*r.ReopenedAt))
			}
			ew.println("")
		}
	}
	return ew.err
}

func (t *TextWriter) WriteReports(w io.Writer, reports []*reconcile.Report) error {
	ew := &errWriter{w: w}
	if len(reports) == 0 {
		ew.println("No sidecars to reconcile.")
		return ew.err
	}
	for _, r := range reports {
		counts := r.Counts()
		ew.printf("%s: %d anchored, %d drifted, %d orphaned",
			r.File, counts[model.HealthAnchored], counts[model.HealthDrifted], counts[model.HealthOrphaned])
		switch {
		case r.SourceMissing:
			ew.printf(" (source missing)")
		case r.Stale:
			ew.printf(" (source changed)")
		}
		ew.println("")
		for _, res := range r.Results {
			if res.Err != nil {
				ew.printf("  %s  error: %v\n", res.ThreadID, res.Err)
				continue
			}
			if !res.Moved() {
				continue
			}
			ew.printf("  %s  %-7s %d-%d -> %d-%d (%s)\n", res.ThreadID, res.Phase,
				res.Before.StartLine, res.Before.EndLine, res.After.StartLine, res.After.EndLine, res.After.Health)
		}
	}
	return ew.err
}

func (t *TextWriter) WriteSummary(w io.Writer, s *threads.Summary) error {
	ew := &errWriter{w: w}
	ew.printf("Sidecar directory: %s\n", s.SidecarRoot)
	ew.printf("Sidecars:          %d (%s)\n", s.Sidecars, formatBytes(s.TotalBytes))
	if s.Unreadable > 0 {
		ew.printf("Unreadable:        %d\n", s.Unreadable)
	}
	if s.StrayTemps > 0 {
		ew.printf("Stray temp files:  %d\n", s.StrayTemps)
	}
	ew.printf("Threads:           %d\n", s.Threads)
	for _, st := range []model.Status{model.StatusOpen, model.StatusResolved, model.StatusWontfix} {
		ew.printf("  %-9s %d\n", st, s.ByStatus[st])
	}
	ew.println("Anchors:")
	for _, h := range []model.Health{model.HealthAnchored, model.HealthDrifted, model.HealthOrphaned} {
		ew.printf("  %-9s %d\n", h, s.ByHealth[h])
	}
	return ew.err
}

func (t *TextWriter) WriteMoves(w io.Writer, moves []threads.Move) error {
	ew := &errWriter{w: w}
	if len(moves) == 0 {
		ew.println("No sidecars moved.")
		return ew.err
	}
	for _, m := range moves {
		ew.printf("%s -> %s\n", m.From, m.To)
	}
	return ew.err
}

func location(v threads.ThreadView) string {
	a := v.Thread.Anchor
	if a.StartLine == a.EndLine {
		return fmt.Sprintf("%s:%d", v.File, a.StartLine)
	}
	return fmt.Sprintf("%s:%d-%d", v.File, a.StartLine, a.EndLine)
}

// firstLine is the opening comment's first line, shortened for list views.
func firstLine(t model.Thread) string {
	if len(t.Comments) == 0 {
		return ""
	}
	line, _, _ := strings.Cut(t.Comments[0].Body, "\n")
	if r := []rune(line); len(r) > 60 {
		line = string(r[:57]) + "..."
	}
	return line
}

func healthIcon(h model.Health) string {
	switch h {
	case model.HealthAnchored:
		return "[=]"
	case model.HealthDrifted:
		return "[~]"
	case model.HealthOrphaned:
		return "[?]"
	default:
		return "[ ]"
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05Z")
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
