package output

import (
	"fmt"
	"io"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/redact"
	"github.com/dshills/margin/internal/threads"
)

// Writer renders command results in one format.
type Writer interface {
	WriteThreads(w io.Writer, views []threads.ThreadView) error
	WriteThread(w io.Writer, view *threads.ThreadView) error
	WriteReports(w io.Writer, reports []*reconcile.Report) error
	WriteSummary(w io.Writer, s *threads.Summary) error
	WriteMoves(w io.Writer, moves []threads.Move) error
}

// Formats lists the accepted format names.
var Formats = []string{"text", "json", "markdown"}

// Options controls what writers reveal.
type Options struct {
	// Redact masks secrets in snippets and comment bodies.
	Redact bool
	// HiddenPaths are globs of files whose snippets are never shown when
	// Redact is set.
	HiddenPaths []string
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string, opts Options) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{Options: opts}, nil
	case "json":
		return &JSONWriter{Options: opts}, nil
	case "markdown", "md":
		return &MarkdownWriter{Options: opts}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// view returns v as it may be displayed. The stored thread is not modified.
func (o Options) view(v threads.ThreadView) threads.ThreadView {
	if !o.Redact {
		return v
	}
	t := v.Thread
	t.Anchor.Snippet = redact.Snippet(v.File, t.Anchor.Snippet, o.HiddenPaths)
	t.Comments = make([]model.Comment, len(v.Thread.Comments))
	for i, c := range v.Thread.Comments {
		c.Body = redact.Secrets(c.Body)
		t.Comments[i] = c
	}
	if t.Decision != nil {
		d := *t.Decision
		d.Summary = redact.Secrets(d.Summary)
		t.Decision = &d
	}
	return threads.ThreadView{File: v.File, Thread: t}
}

func (o Options) views(vs []threads.ThreadView) []threads.ThreadView {
	if !o.Redact {
		return vs
	}
	out := make([]threads.ThreadView, len(vs))
	for i, v := range vs {
		out[i] = o.view(v)
	}
	return out
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
