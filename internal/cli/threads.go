package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/threads"
)

// authorFlags are shared by commands that write comments.
type authorFlags struct {
	author string
	kind   string
}

func (f *authorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.author, "author", "", "Author name (default: config author, then OS user)")
	cmd.Flags().StringVar(&f.kind, "author-kind", "", "Author kind (human, agent)")
}

// parseLines parses "12" or "12-15".
func parseLines(s string) (start, end int, err error) {
	lo, hi, isRange := strings.Cut(strings.TrimSpace(s), "-")
	start, err = strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, usagef("invalid line range %q: want N or N-M", s)
	}
	end = start
	if isRange {
		end, err = strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return 0, 0, usagef("invalid line range %q: want N or N-M", s)
		}
	}
	return start, end, nil
}

func newAddCmd(g *globals) *cobra.Command {
	var (
		lines   string
		text    string
		message string
		af      authorFlags
	)
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "Start a thread on a line range or a piece of text",
		Example: `  margin add main.go --lines 10-12 -m "This leaks the file handle"
  margin add main.go --text "defer f.Close()" -m "Check the error"`,
		Args: checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (lines == "") == (text == "") {
				return usagef("pass exactly one of --lines or --text")
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			body, err := readBody(cmd, message)
			if err != nil {
				return err
			}
			author, kind, err := a.author(af.author, af.kind)
			if err != nil {
				return err
			}
			req := threads.AddRequest{
				File:       a.path(args[0]),
				Body:       body,
				Author:     author,
				AuthorKind: kind,
				Anchor:     threads.AnchorSpec{Text: text},
			}
			if lines != "" {
				if req.Anchor.StartLine, req.Anchor.EndLine, err = parseLines(lines); err != nil {
					return err
				}
			}
			view, err := a.svc.Add(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.out.WriteThread(a.stdout, view)
		},
	}
	cmd.Flags().StringVarP(&lines, "lines", "l", "", "Line or line range to anchor to, e.g. 12 or 12-15")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Text that occurs exactly once in the file")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Comment body (- reads stdin)")
	_ = cmd.MarkFlagRequired("message")
	af.register(cmd)
	return cmd
}

func newReplyCmd(g *globals) *cobra.Command {
	var (
		message string
		af      authorFlags
	)
	cmd := &cobra.Command{
		Use:   "reply <thread-id>",
		Short: "Add a comment to a thread",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			body, err := readBody(cmd, message)
			if err != nil {
				return err
			}
			author, kind, err := a.author(af.author, af.kind)
			if err != nil {
				return err
			}
			view, err := a.svc.Reply(cmd.Context(), args[0], threads.ReplyRequest{
				Body:       body,
				Author:     author,
				AuthorKind: kind,
			})
			if err != nil {
				return err
			}
			return a.out.WriteThread(a.stdout, view)
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Comment body (- reads stdin)")
	_ = cmd.MarkFlagRequired("message")
	af.register(cmd)
	return cmd
}

// newCloseCmd builds resolve and dismiss, which differ only in the status
// they record.
func newCloseCmd(g *globals, name, short string) *cobra.Command {
	var (
		decision string
		af       authorFlags
	)
	cmd := &cobra.Command{
		Use:   name + " <thread-id>",
		Short: short,
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			summary, err := readBody(cmd, decision)
			if err != nil {
				return err
			}
			author, _, err := a.author(af.author, af.kind)
			if err != nil {
				return err
			}
			req := threads.ResolveRequest{Decision: summary, Author: author}
			var view *threads.ThreadView
			if name == "dismiss" {
				view, err = a.svc.Dismiss(cmd.Context(), args[0], req)
			} else {
				view, err = a.svc.Resolve(cmd.Context(), args[0], req)
			}
			if err != nil {
				return err
			}
			return a.out.WriteThread(a.stdout, view)
		},
	}
	cmd.Flags().StringVarP(&decision, "decision", "d", "", "Decision summary to record (- reads stdin)")
	af.register(cmd)
	return cmd
}

func newReopenCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <thread-id>",
		Short: "Reopen a resolved or dismissed thread",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			view, err := a.svc.Reopen(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.WriteThread(a.stdout, view)
		},
	}
}

func newShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Show a thread with its comments and anchor",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			view, err := a.svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.out.WriteThread(a.stdout, view)
		},
	}
}

func newListCmd(g *globals) *cobra.Command {
	var status, health, author string
	cmd := &cobra.Command{
		Use:   "list [file]",
		Short: "List threads, reconciling stale sidecars on the way",
		Args:  checkArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			f := threads.Filter{Author: author}
			if len(args) == 1 {
				f.File = a.path(args[0])
			}
			if status != "" {
				if f.Status, err = model.ParseStatus(status); err != nil {
					return err
				}
			}
			if health != "" {
				if f.Health, err = model.ParseHealth(health); err != nil {
					return err
				}
			}
			views, err := a.svc.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.out.WriteThreads(a.stdout, views)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only threads with this status (open, resolved, wontfix)")
	cmd.Flags().StringVar(&health, "health", "", "Only anchors with this health (anchored, drifted, orphaned)")
	cmd.Flags().StringVar(&author, "author", "", "Only threads this author commented on")
	return cmd
}
