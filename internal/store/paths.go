package store

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DefaultDir is the sidecar directory name used when none is configured.
const DefaultDir = ".margin"

// FindRoot walks up from start to the first directory containing sidecarDir
// or a .git entry. If neither is found, start itself is returned.
func FindRoot(start, sidecarDir string) (string, error) {
	if sidecarDir == "" {
		sidecarDir = DefaultDir
	}
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", start, err)
	}
	for dir := abs; ; {
		for _, marker := range []string{sidecarDir, ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

// Rel normalizes p to a slash-separated path relative to the project root.
// Relative inputs are taken relative to the root. Paths that escape the root
// or point into the sidecar directory are rejected with ErrOutsideRoot.
func (s *Store) Rel(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path: %w", ErrOutsideRoot)
	}
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.root, filepath.FromSlash(p))
	}
	rel, err := filepath.Rel(s.root, filepath.Clean(abs))
	if err != nil {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	if rel == s.dir || strings.HasPrefix(rel, s.dir+"/") {
		return "", fmt.Errorf("%s is inside the sidecar directory: %w", p, ErrOutsideRoot)
	}
	return path.Clean(rel), nil
}

// SidecarPath returns the sidecar file path for a project-relative source path.
func (s *Store) SidecarPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(s.dir), filepath.FromSlash(rel)+sidecarExt)
}

// Abs returns the absolute path of a project-relative source path.
func (s *Store) Abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// Root returns the project root.
func (s *Store) Root() string { return s.root }

// Dir returns the sidecar directory, relative to the root.
func (s *Store) Dir() string { return s.dir }

func lockPath(sidecar string) string {
	return sidecar + lockExt
}
