package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dshills/margin/internal/redact"
)

// FileName is the name of both the user and the project config file.
const FileName = "config.yaml"

// Config represents the margin configuration.
type Config struct {
	SidecarDir     string        `yaml:"sidecarDir,omitempty" env:"MARGIN_SIDECAR_DIR"`
	LockTimeout    time.Duration `yaml:"lockTimeout,omitempty" env:"MARGIN_LOCK_TIMEOUT"`
	ContextWindow  int           `yaml:"contextWindow,omitempty" env:"MARGIN_CONTEXT_WINDOW"`
	FuzzyWindow    int           `yaml:"fuzzyWindow,omitempty" env:"MARGIN_FUZZY_WINDOW"`
	FuzzyThreshold float64       `yaml:"fuzzyThreshold,omitempty" env:"MARGIN_FUZZY_THRESHOLD"`
	TieMargin      float64       `yaml:"tieMargin,omitempty" env:"MARGIN_TIE_MARGIN"`
	MaxAttempts    int           `yaml:"maxAttempts,omitempty" env:"MARGIN_MAX_ATTEMPTS"`
	Author         string        `yaml:"author,omitempty" env:"MARGIN_AUTHOR"`
	AuthorKind     string        `yaml:"authorKind,omitempty" env:"MARGIN_AUTHOR_KIND"`
	Format         string        `yaml:"format,omitempty" env:"MARGIN_FORMAT"`
	LogLevel       string        `yaml:"logLevel,omitempty" env:"MARGIN_LOG_LEVEL"`
	// RedactPaths are globs of files whose snippets are never printed.
	RedactPaths []string `yaml:"redactPaths,omitempty" env:"MARGIN_REDACT_PATHS"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		SidecarDir:     ".margin",
		LockTimeout:    5 * time.Second,
		ContextWindow:  10,
		FuzzyWindow:    500,
		FuzzyThreshold: 0.6,
		TieMargin:      0.05,
		MaxAttempts:    3,
		AuthorKind:     "human",
		Format:         "text",
		LogLevel:       "warn",
		RedactPaths:    slices.Clone(redact.DefaultPaths),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.SidecarDir) == "":
		return errors.New("sidecarDir must not be empty")
	case c.LockTimeout <= 0:
		return errors.New("lockTimeout must be positive")
	case c.ContextWindow <= 0:
		return errors.New("contextWindow must be positive")
	case c.FuzzyWindow <= 0:
		return errors.New("fuzzyWindow must be positive")
	case c.FuzzyThreshold <= 0 || c.FuzzyThreshold >= 1:
		return fmt.Errorf("fuzzyThreshold must be between 0 and 1, got %v", c.FuzzyThreshold)
	case c.TieMargin <= 0 || c.TieMargin >= 1:
		return fmt.Errorf("tieMargin must be between 0 and 1, got %v", c.TieMargin)
	case c.MaxAttempts < 1:
		return errors.New("maxAttempts must be at least 1")
	}
	switch c.AuthorKind {
	case "human", "agent":
	default:
		return fmt.Errorf("authorKind must be human or agent, got %q", c.AuthorKind)
	}
	switch c.Format {
	case "text", "json", "markdown":
	default:
		return fmt.Errorf("format must be text, json or markdown, got %q", c.Format)
	}
	return nil
}

// ConfigDir returns the platform-appropriate user config directory for margin.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "margin"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "margin"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "margin"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "margin"), nil
	default:
		return filepath.Join(home, ".config", "margin"), nil
	}
}

// UserConfigPath returns the full path to the user config file.
func UserConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// ProjectConfigPath returns the project config file inside the sidecar
// directory of root.
func ProjectConfigPath(root, sidecarDir string) string {
	return filepath.Join(root, filepath.FromSlash(sidecarDir), FileName)
}

// LoadFile reads one YAML config file. A missing file yields a zero Config and
// nil error. Unknown keys are rejected.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config for the project at root by merging:
// defaults <- user file <- project file <- env <- overrides. The overrides map
// comes from CLI flags (only flags the user set should be present). An empty
// root skips the project file.
func Load(root string, overrides map[string]string) (Config, error) {
	cfg := Default()

	userPath, err := UserConfigPath()
	if err != nil {
		return Config{}, err
	}
	userCfg, err := LoadFile(userPath)
	if err != nil {
		return Config{}, err
	}
	mergeFile(&cfg, userCfg)

	if root != "" {
		// The project file lives in the sidecar directory, so it cannot move
		// that directory itself; env and flags still can.
		pre := cfg
		if err := mergeEnv(&pre); err != nil {
			return Config{}, err
		}
		if err := mergeOverrides(&pre, overrides); err != nil {
			return Config{}, err
		}

		projectCfg, err := LoadFile(ProjectConfigPath(root, pre.SidecarDir))
		if err != nil {
			return Config{}, err
		}
		projectCfg.SidecarDir = ""
		mergeFile(&cfg, projectCfg)
	}

	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func mergeFile(dst *Config, src Config) {
	if src.SidecarDir != "" {
		dst.SidecarDir = src.SidecarDir
	}
	if src.LockTimeout > 0 {
		dst.LockTimeout = src.LockTimeout
	}
	if src.ContextWindow > 0 {
		dst.ContextWindow = src.ContextWindow
	}
	if src.FuzzyWindow > 0 {
		dst.FuzzyWindow = src.FuzzyWindow
	}
	if src.FuzzyThreshold > 0 {
		dst.FuzzyThreshold = src.FuzzyThreshold
	}
	if src.TieMargin > 0 {
		dst.TieMargin = src.TieMargin
	}
	if src.MaxAttempts > 0 {
		dst.MaxAttempts = src.MaxAttempts
	}
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.AuthorKind != "" {
		dst.AuthorKind = src.AuthorKind
	}
	if src.Format != "" {
		dst.Format = src.Format
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if len(src.RedactPaths) > 0 {
		dst.RedactPaths = src.RedactPaths
	}
}

// mergeEnv overlays MARGIN_* variables.
func mergeEnv(cfg *Config) error {
	var fromEnv Config
	if err := env.Parse(&fromEnv); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	mergeFile(cfg, fromEnv)
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		if err := SetField(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

func splitComma(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Keys lists the settable configuration keys.
func Keys() []string {
	return []string{
		"sidecarDir", "lockTimeout", "contextWindow", "fuzzyWindow", "fuzzyThreshold",
		"tieMargin", "maxAttempts", "author", "authorKind", "format", "logLevel", "redactPaths",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "sidecarDir":
		cfg.SidecarDir = value
	case "lockTimeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("lockTimeout must be a duration such as 5s: %w", err)
		}
		cfg.LockTimeout = d
	case "contextWindow":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("contextWindow must be an integer: %w", err)
		}
		cfg.ContextWindow = n
	case "fuzzyWindow":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("fuzzyWindow must be an integer: %w", err)
		}
		cfg.FuzzyWindow = n
	case "fuzzyThreshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("fuzzyThreshold must be a number: %w", err)
		}
		cfg.FuzzyThreshold = f
	case "tieMargin":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("tieMargin must be a number: %w", err)
		}
		cfg.TieMargin = f
	case "maxAttempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxAttempts must be an integer: %w", err)
		}
		cfg.MaxAttempts = n
	case "author":
		cfg.Author = value
	case "authorKind":
		cfg.AuthorKind = value
	case "format":
		cfg.Format = value
	case "logLevel":
		cfg.LogLevel = value
	case "redactPaths":
		cfg.RedactPaths = splitComma(value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}
