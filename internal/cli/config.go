package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/margin/internal/config"
)

func newConfigCmd(g *globals) *cobra.Command {
	var project bool

	// target picks the file init and set write to.
	target := func() (string, error) {
		if !project {
			return config.UserConfigPath()
		}
		_, root, cfg, err := g.loadConfig()
		if err != nil {
			return "", err
		}
		return config.ProjectConfigPath(root, cfg.SidecarDir), nil
	}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage margin configuration",
	}
	cmd.PersistentFlags().BoolVar(&project, "project", false, "Use the project config file instead of the user one")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default configuration file",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := target()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Config file already exists at %s\n", path)
				return nil
			}
			cfg := config.Default()
			if project {
				// The project file cannot move the directory it lives in.
				cfg.SidecarDir = ""
			}
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("writing config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file created at %s\n", path)
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  checkArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := target()
			if err != nil {
				return err
			}
			cfg, err := config.LoadFile(path)
			if err != nil {
				return err
			}
			if err := config.SetField(&cfg, args[0], args[1]); err != nil {
				return &usageError{err: err}
			}
			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("saving config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", args[0], args[1], path)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  checkArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, root, cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# project root: %s\n", root)
			for _, p := range configSources(root, cfg.SidecarDir) {
				fmt.Fprintf(out, "# loaded: %s\n", p)
			}
			_, err = out.Write(data)
			return err
		},
	}

	cmd.AddCommand(initCmd, setCmd, showCmd)
	return cmd
}

// configSources lists the config files that exist and were merged.
func configSources(root, sidecarDir string) []string {
	var paths []string
	if p, err := config.UserConfigPath(); err == nil {
		paths = append(paths, p)
	}
	paths = append(paths, config.ProjectConfigPath(root, sidecarDir))

	var found []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			found = append(found, p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			found = append(found, p+" (unreadable)")
		}
	}
	return found
}
