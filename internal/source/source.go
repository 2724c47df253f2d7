// Package source reads the files that threads are anchored to. It never writes
// them.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/dshills/margin/internal/textsim"
)

// ErrBinary is returned for files that look binary or are not valid UTF-8.
var ErrBinary = errors.New("binary file")

// sniffLen is how many leading bytes are checked for NUL bytes.
const sniffLen = 8000

// File is the content and hash of a source file.
type File struct {
	Path    string
	Content []byte
	Hash    string
}

// Lines returns the file's lines.
func (f File) Lines() []string {
	return textsim.SplitLines(string(f.Content))
}

// Provider reads source files by project-relative, slash-separated path.
// Missing files are reported with an error wrapping fs.ErrNotExist.
type Provider interface {
	Read(relPath string) (File, error)
}

// FS reads files below a root directory.
type FS struct {
	Root string
}

// NewFS returns a Provider rooted at root.
func NewFS(root string) *FS {
	return &FS{Root: root}
}

// Read loads relPath, rejecting binary and non-UTF-8 content.
func (p *FS) Read(relPath string) (File, error) {
	data, err := os.ReadFile(filepath.Join(p.Root, filepath.FromSlash(relPath)))
	if err != nil {
		return File{}, fmt.Errorf("reading source %s: %w", relPath, err)
	}
	if IsBinary(data) {
		return File{}, fmt.Errorf("reading source %s: %w", relPath, ErrBinary)
	}
	return File{Path: relPath, Content: data, Hash: textsim.Hash(data)}, nil
}

// IsBinary reports whether data contains a NUL byte near its start or is
// not valid UTF-8. Snippets are stored as JSON strings, which cannot carry
// invalid UTF-8 verbatim.
func IsBinary(data []byte) bool {
	n := min(len(data), sniffLen)
	return bytes.IndexByte(data[:n], 0) >= 0 || !utf8.Valid(data)
}

// IsNotExist reports whether err means the source file is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// Memory is an in-memory Provider, useful for callers that already hold the
// content (editor buffers) and for tests.
type Memory map[string]string

// Read returns the stored content for relPath.
func (m Memory) Read(relPath string) (File, error) {
	s, ok := m[relPath]
	if !ok {
		return File{}, fmt.Errorf("reading source %s: %w", relPath, fs.ErrNotExist)
	}
	data := []byte(s)
	if IsBinary(data) {
		return File{}, fmt.Errorf("reading source %s: %w", relPath, ErrBinary)
	}
	return File{Path: relPath, Content: data, Hash: textsim.Hash(data)}, nil
}
