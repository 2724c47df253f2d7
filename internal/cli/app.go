package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/margin/internal/config"
	"github.com/dshills/margin/internal/logging"
	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/output"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/source"
	"github.com/dshills/margin/internal/store"
	"github.com/dshills/margin/internal/threads"
)

// app is everything a command needs once the project root is known.
type app struct {
	cwd    string
	root   string
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	svc    *threads.Service
	out    output.Writer
	stdout io.Writer
}

// startDir is the directory the command acts from.
func (g *globals) startDir() (string, error) {
	dir := g.dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", dir, err)
	}
	return abs, nil
}

// projectRoot finds the project root for the start directory. An explicit
// sidecar directory from flags or the environment is honoured when looking.
func (g *globals) projectRoot() (cwd, root string, err error) {
	cwd, err = g.startDir()
	if err != nil {
		return "", "", err
	}
	marker := g.sidecarDir
	if marker == "" {
		marker = os.Getenv("MARGIN_SIDECAR_DIR")
	}
	root, err = store.FindRoot(cwd, marker)
	return cwd, root, err
}

// loadConfig resolves the root and loads the effective configuration.
func (g *globals) loadConfig() (cwd, root string, cfg config.Config, err error) {
	cwd, root, err = g.projectRoot()
	if err != nil {
		return "", "", config.Config{}, err
	}
	cfg, err = config.Load(root, g.buildOverrides())
	if err != nil {
		return "", "", config.Config{}, &usageError{err: err}
	}
	return cwd, root, cfg, nil
}

func (g *globals) open(cmd *cobra.Command) (*app, error) {
	cwd, root, cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &usageError{err: err}
	}
	logger := logging.NewLogger(cmd.ErrOrStderr(), level)

	st, err := store.New(root, store.Options{
		Dir:         cfg.SidecarDir,
		LockTimeout: cfg.LockTimeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, &usageError{err: err}
	}
	engine := reconcile.New(reconcile.Options{
		ContextWindow: cfg.ContextWindow,
		FuzzyWindow:   cfg.FuzzyWindow,
		Threshold:     cfg.FuzzyThreshold,
		TieMargin:     cfg.TieMargin,
	}, logger)
	svc := threads.New(st, source.NewFS(root), engine, threads.Options{
		MaxAttempts: cfg.MaxAttempts,
		Logger:      logger,
	})
	out, err := output.GetWriter(cfg.Format, output.Options{
		Redact:      !g.noRedact,
		HiddenPaths: cfg.RedactPaths,
	})
	if err != nil {
		return nil, &usageError{err: err}
	}
	logger.Debug("project opened", "root", root, "sidecarDir", cfg.SidecarDir)
	return &app{
		cwd:    cwd,
		root:   root,
		cfg:    cfg,
		logger: logger,
		store:  st,
		svc:    svc,
		out:    out,
		stdout: cmd.OutOrStdout(),
	}, nil
}

// path turns a command-line path into an absolute one. Relative paths are
// relative to the directory the command runs in, not the project root.
func (a *app) path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.cwd, p)
}

// author resolves who is writing: flag, then config, then the OS user.
func (a *app) author(flagAuthor, flagKind string) (string, model.AuthorKind, error) {
	name := strings.TrimSpace(flagAuthor)
	if name == "" {
		name = a.cfg.Author
	}
	if name == "" {
		if u, err := user.Current(); err == nil {
			name = u.Username
		}
	}
	if name == "" {
		return "", "", usagef("no author: pass --author or set MARGIN_AUTHOR")
	}
	kindStr := flagKind
	if kindStr == "" {
		kindStr = a.cfg.AuthorKind
	}
	kind, err := model.ParseAuthorKind(kindStr)
	if err != nil {
		return "", "", err
	}
	return name, kind, nil
}

// readBody returns text, reading stdin when text is "-".
func readBody(cmd *cobra.Command, text string) (string, error) {
	if text != "-" {
		return text, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
