package cli

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/margin/internal/gitctx"
	"github.com/dshills/margin/internal/reconcile"
	"github.com/dshills/margin/internal/store"
)

func newReconcileCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile [file...]",
		Short: "Re-anchor threads to the current source",
		Long: "Reconcile runs anchor reconciliation for the given files, or for every sidecar\n" +
			"when no file is named, and saves the new placements.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				reports, err := a.svc.ReconcileAll(cmd.Context())
				if werr := a.out.WriteReports(a.stdout, reports); werr != nil {
					return errors.Join(err, werr)
				}
				return err
			}
			var (
				reports []*reconcile.Report
				errs    []error
			)
			for _, f := range args {
				report, err := a.svc.Reconcile(cmd.Context(), a.path(f))
				if err != nil {
					errs = append(errs, err)
					continue
				}
				reports = append(reports, report)
			}
			if err := a.out.WriteReports(a.stdout, reports); err != nil {
				errs = append(errs, err)
			}
			return errors.Join(errs...)
		},
	}
}

func newRenameCmd(g *globals) *cobra.Command {
	var (
		fromGit  bool
		revRange string
	)
	cmd := &cobra.Command{
		Use:   "rename [<old> <new>]...",
		Short: "Move sidecars to follow renamed source files",
		Example: `  margin rename old/path.go new/path.go
  margin rename --git                 # renames in the last commit
  margin rename --git main..HEAD`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromGit == (len(args) > 0) {
				return usagef("pass either <old> <new> pairs or --git")
			}
			if len(args)%2 != 0 {
				return usagef("paths must come in <old> <new> pairs")
			}
			a, err := g.open(cmd)
			if err != nil {
				return err
			}
			mapping := make(map[string]string)
			if fromGit {
				if mapping, err = gitRenames(cmd, a, revRange); err != nil {
					return err
				}
			} else {
				for i := 0; i < len(args); i += 2 {
					old := a.path(args[i])
					if _, dup := mapping[old]; dup {
						return usagef("%s is renamed twice", args[i])
					}
					mapping[old] = a.path(args[i+1])
				}
			}
			moves, err := a.svc.Rename(cmd.Context(), mapping)
			if werr := a.out.WriteMoves(a.stdout, moves); werr != nil {
				return errors.Join(err, werr)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&fromGit, "git", false, "Take renames from git history")
	cmd.Flags().StringVar(&revRange, "range", gitctx.DefaultRange, "Revision range inspected with --git")
	return cmd
}

// gitRenames maps git-detected renames to absolute paths, dropping those
// outside the project root.
func gitRenames(cmd *cobra.Command, a *app, revRange string) (map[string]string, error) {
	top, err := gitctx.TopLevel(cmd.Context(), a.root)
	if err != nil {
		return nil, err
	}
	renames, err := gitctx.Renames(cmd.Context(), top, revRange)
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(renames))
	for _, r := range renames {
		from := filepath.Join(top, filepath.FromSlash(r.From))
		to := filepath.Join(top, filepath.FromSlash(r.To))
		if _, err := a.store.Rel(from); err != nil {
			if errors.Is(err, store.ErrOutsideRoot) {
				a.logger.Debug("ignoring rename outside project", "from", r.From, "to", r.To)
				continue
			}
			return nil, err
		}
		mapping[from] = to
	}
	a.logger.Info("renames from git", "range", revRange, "count", len(mapping))
	return mapping, nil
}
