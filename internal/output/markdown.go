package output

import (
	"io"
	"path"
	"strings"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/threads"
)

// MarkdownWriter outputs markdown for pull requests and issues.
type MarkdownWriter struct {
	Options Options
}

func (m *MarkdownWriter) WriteThreads(w io.Writer, views []threads.ThreadView) error {
	ew := &errWriter{w: w}
	ew.printf("## Review threads (%d)\n\n", len(views))
	if len(views) == 0 {
		ew.println("No threads. :white_check_mark:")
		return ew.err
	}
	ew.println("| Location | Status | Anchor | Comment |")
	ew.println("|----------|--------|--------|---------|")
	for _, v := range m.Options.views(views) {
		th := v.Thread
		ew.printf("| `%s` | %s | %s %s | %s |\n",
			location(v), th.Status, mdHealthIcon(th.Anchor.Health), th.Anchor.Health, escapeCell(firstLine(th)))
	}
	return ew.err
}

func (m *MarkdownWriter) WriteThread(w io.Writer, view *threads.ThreadView) error {
	ew := &errWriter{w: w}
	v := m.Options.view(*view)
	th := v.Thread
	a := th.Anchor

	ew.printf("### `%s` (%s)\n\n", location(v), th.Status)
	ew.printf("%s %s", mdHealthIcon(a.Health), a.Health)
	if a.DriftDistance != 0 {
		ew.printf(", moved %+d lines", a.DriftDistance)
	}
	ew.printf(" | thread `%s`\n\n", th.ID)

	ew.printf("```%s\n%s\n```\n\n", inferLang(v.File), a.Snippet)

	for _, c := range th.Comments {
		ew.printf("**%s** (%s, %s)\n\n", c.Author, c.AuthorKind, stamp(c.CreatedAt))
		ew.printf("> %s\n\n", strings.ReplaceAll(c.Body, "\n", "\n> "))
	}

	if th.Decision != nil {
		ew.printf("**Decision** by %s:\n\n%s\n\n", th.Decision.Author, th.Decision.Summary)
	}
	return ew.err
}

func (m *MarkdownWriter) WriteReports(w io.Writer, reports []*reconcile.Report) error {
	ew := &errWriter{w: w}
	ew.println("## Anchor reconciliation")
	ew.println("")
	ew.println("| File | Anchored | Drifted | Orphaned | Source |")
	ew.println("|------|----------|---------|----------|--------|")
	for _, r := range reports {
		counts := r.Counts()
		state := "unchanged"
		switch {
		case r.SourceMissing:
			state = "missing"
		case r.Stale:
			state = "changed"
		}
		ew.printf("| `%s` | %d | %d | %d | %s |\n", r.File,
			counts[model.HealthAnchored], counts[model.HealthDrifted], counts[model.HealthOrphaned], state)
	}
	ew.println("")

	for _, r := range reports {
		var moved []reconcile.AnchorResult
		for _, res := range r.Results {
			if res.Moved() || res.Err != nil {
				moved = append(moved, res)
			}
		}
		if len(moved) == 0 {
			continue
		}
		ew.printf("<details>\n<summary>%s (%d changed)</summary>\n\n", r.File, len(moved))
		for _, res := range moved {
			if res.Err != nil {
				ew.printf("- `%s` error: %s\n", res.ThreadID, res.Err)
				continue
			}
			ew.printf("- `%s` %s: lines %d-%d to %d-%d, %s\n", res.ThreadID, res.Phase,
				res.Before.StartLine, res.Before.EndLine, res.After.StartLine, res.After.EndLine, res.After.Health)
		}
		ew.println("\n</details>\n")
	}
	return ew.err
}

func (m *MarkdownWriter) WriteSummary(w io.Writer, s *threads.Summary) error {
	ew := &errWriter{w: w}
	ew.println("## Review store")
	ew.println("")
	ew.println("| Metric | Count |")
	ew.println("|--------|-------|")
	ew.printf("| Sidecars | %d |\n", s.Sidecars)
	ew.printf("| Unreadable | %d |\n", s.Unreadable)
	ew.printf("| Threads | %d |\n", s.Threads)
	for _, st := range []model.Status{model.StatusOpen, model.StatusResolved, model.StatusWontfix} {
		ew.printf("| %s | %d |\n", st, s.ByStatus[st])
	}
	for _, h := range []model.Health{model.HealthAnchored, model.HealthDrifted, model.HealthOrphaned} {
		ew.printf("| %s %s | %d |\n", mdHealthIcon(h), h, s.ByHealth[h])
	}
	return ew.err
}

func (m *MarkdownWriter) WriteMoves(w io.Writer, moves []threads.Move) error {
	ew := &errWriter{w: w}
	for _, mv := range moves {
		ew.printf("- `%s` → `%s`\n", mv.From, mv.To)
	}
	return ew.err
}

func mdHealthIcon(h model.Health) string {
	switch h {
	case model.HealthAnchored:
		return ":green_circle:"
	case model.HealthDrifted:
		return ":yellow_circle:"
	case model.HealthOrphaned:
		return ":red_circle:"
	default:
		return ":white_circle:"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var langByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".cpp":  "cpp",
	".c":    "c",
	".cs":   "csharp",
	".php":  "php",
	".sh":   "bash",
	".sql":  "sql",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".md":   "markdown",
	".tf":   "hcl",
}

func inferLang(file string) string {
	return langByExt[strings.ToLower(path.Ext(file))]
}

