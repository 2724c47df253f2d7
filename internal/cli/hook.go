package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const (
	hookName        = "post-commit"
	hookMarkerStart = "# >>> margin post-commit hook >>>"
	hookMarkerEnd   = "# <<< margin post-commit hook <<<"
)

func newHookCmd() *cobra.Command {
	var (
		dir     string
		noMoves bool
	)
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Manage the git post-commit hook that keeps sidecars in step",
	}
	cmd.PersistentFlags().StringVar(&dir, "repo", "", "Repository to install into (default: current directory)")

	install := &cobra.Command{
		Use:   "install",
		Short: "Install margin as a git post-commit hook",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			hookPath, err := getHookPath(dir)
			if err != nil {
				return err
			}
			section := generateHookScript(!noMoves)

			existing, err := os.ReadFile(hookPath)
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("reading hook file: %w", err)
			}
			var content string
			if len(existing) == 0 {
				content = "#!/bin/sh\n" + section
			} else {
				content = replaceMarginSection(string(existing), section)
			}

			if err := os.MkdirAll(filepath.Dir(hookPath), 0o755); err != nil {
				return fmt.Errorf("creating hooks directory: %w", err)
			}
			if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
				return fmt.Errorf("writing hook file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed margin %s hook at %s\n", hookName, hookPath)
			return nil
		},
	}
	install.Flags().BoolVar(&noMoves, "no-renames", false, "Only reconcile; do not follow renames")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the margin post-commit hook",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			hookPath, err := getHookPath(dir)
			if err != nil {
				return err
			}
			existing, err := os.ReadFile(hookPath)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					fmt.Fprintf(cmd.OutOrStdout(), "No %s hook found.\n", hookName)
					return nil
				}
				return fmt.Errorf("reading hook file: %w", err)
			}

			content := removeMarginSection(string(existing))
			// Delete the file when only a shebang is left.
			trimmed := strings.TrimSpace(content)
			if trimmed == "" || trimmed == "#!/bin/sh" || trimmed == "#!/bin/bash" {
				if err := os.Remove(hookPath); err != nil {
					return fmt.Errorf("removing hook file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed margin %s hook at %s\n", hookName, hookPath)
				return nil
			}
			if err := os.WriteFile(hookPath, []byte(content), 0o755); err != nil {
				return fmt.Errorf("writing hook file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed margin section from %s\n", hookPath)
			return nil
		},
	}

	cmd.AddCommand(install, uninstall)
	return cmd
}

func getHookPath(dir string) (string, error) {
	c := exec.Command("git", "rev-parse", "--git-path", "hooks")
	c.Dir = dir
	out, err := c.Output()
	if err != nil {
		return "", errors.New("not a git repository (git rev-parse --git-path failed)")
	}
	hooks := strings.TrimSpace(string(out))
	if !filepath.IsAbs(hooks) && dir != "" {
		hooks = filepath.Join(dir, hooks)
	}
	return filepath.Join(hooks, hookName), nil
}

// generateHookScript returns the marked hook section. A post-commit hook
// cannot stop the commit, so failures are only reported.
func generateHookScript(followRenames bool) string {
	var b strings.Builder
	b.WriteString(hookMarkerStart + "\n")
	if followRenames {
		b.WriteString("margin rename --git --range HEAD~1..HEAD --log-level error >/dev/null\n")
	}
	b.WriteString("margin reconcile --log-level error >/dev/null\n")
	b.WriteString("MARGIN_EXIT=$?\n")
	b.WriteString("if [ $MARGIN_EXIT -ne 0 ]; then\n")
	b.WriteString("  echo \"margin: reconciling review anchors failed (exit $MARGIN_EXIT)\" >&2\n")
	b.WriteString("fi\n")
	b.WriteString(hookMarkerEnd + "\n")
	return b.String()
}

func replaceMarginSection(existing, section string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		if !strings.HasSuffix(existing, "\n") {
			existing += "\n"
		}
		return existing + section
	}
	before := existing[:startIdx]
	after := strings.TrimPrefix(existing[endIdx+len(hookMarkerEnd):], "\n")
	return before + section + after
}

func removeMarginSection(existing string) string {
	startIdx := strings.Index(existing, hookMarkerStart)
	endIdx := strings.Index(existing, hookMarkerEnd)
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return existing
	}
	before := existing[:startIdx]
	after := strings.TrimPrefix(existing[endIdx+len(hookMarkerEnd):], "\n")
	return before + after
}
