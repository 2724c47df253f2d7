package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/store"
	"github.com/dshills/margin/internal/threads"
)

const version = "0.1.0"

// Exit codes.
const (
	ExitSuccess    = 0
	ExitError      = 1
	ExitUsageError = 2
	ExitAmbiguous  = 3
	ExitConflict   = 4
	ExitCorrupt    = 5
)

// globals holds the persistent flags shared by every command.
type globals struct {
	dir         string
	sidecarDir  string
	format      string
	logLevel    string
	lockTimeout string
	noRedact    bool
}

// buildOverrides returns config overrides for the flags the user set.
func (g *globals) buildOverrides() map[string]string {
	m := make(map[string]string)
	if g.sidecarDir != "" {
		m["sidecarDir"] = g.sidecarDir
	}
	if g.format != "" {
		m["format"] = g.format
	}
	if g.logLevel != "" {
		m["logLevel"] = g.logLevel
	}
	if g.lockTimeout != "" {
		m["lockTimeout"] = g.lockTimeout
	}
	return m
}

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// checkArgs wraps a cobra argument validator so its failures map to
// ExitUsageError.
func checkArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:   "margin",
		Short: "Review comments that live beside your code",
		Long: "Margin stores review threads in sidecar files next to the source tree and keeps\n" +
			"each thread anchored to its code as the file changes.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&g.dir, "dir", "C", "", "Run as if started in this directory")
	pf.StringVar(&g.sidecarDir, "sidecar-dir", "", "Sidecar directory relative to the project root (default .margin)")
	pf.StringVar(&g.format, "format", "", "Output format (text, json, markdown)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&g.lockTimeout, "lock-timeout", "", "How long to wait for a sidecar lock, e.g. 5s")
	pf.BoolVar(&g.noRedact, "no-redact", false, "Print snippets and comments without masking secrets")

	root.AddCommand(
		newAddCmd(g),
		newReplyCmd(g),
		newCloseCmd(g, "resolve", "Resolve a thread, optionally recording a decision"),
		newCloseCmd(g, "dismiss", "Close a thread as won't fix"),
		newReopenCmd(g),
		newShowCmd(g),
		newListCmd(g),
		newReconcileCmd(g),
		newRenameCmd(g),
		newConfigCmd(g),
		newStoreCmd(g),
		newHookCmd(),
		newVersionCmd(),
	)
	return root
}

// Run executes the root command and returns an exit code.
func Run() int {
	return execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return exitCodeFor(err)
}

// exitCodeFor maps an error to the process exit code.
func exitCodeFor(err error) int {
	var usage *usageError
	switch {
	case err == nil:
		return ExitSuccess
	case model.IsAmbiguous(err):
		return ExitAmbiguous
	case errors.Is(err, threads.ErrThreadNotFound):
		return ExitError
	case store.IsCorrupt(err):
		return ExitCorrupt
	case store.IsRetryable(err), errors.Is(err, threads.ErrConflictRetriesExhausted):
		return ExitConflict
	case errors.As(err, &usage), model.IsValidation(err), errors.Is(err, store.ErrOutsideRoot):
		return ExitUsageError
	default:
		return ExitError
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print margin version",
		Args:  checkArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "margin version %s\n", version)
		},
	}
}
