package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dshills/margin/internal/model"
	"github.com/dshills/margin/internal/textsim"
)

const (
	sidecarExt = ".json"
	lockExt    = ".lock"
	tmpInfix   = ".tmp-"

	// DefaultLockTimeout bounds how long a call waits for a sidecar lock.
	DefaultLockTimeout = 5 * time.Second
)

// Options configures a Store.
type Options struct {
	// Dir is the sidecar directory relative to the root. Defaults to DefaultDir.
	Dir string
	// LockTimeout defaults to DefaultLockTimeout.
	LockTimeout time.Duration
	// Logger defaults to a logger that discards everything.
	Logger *slog.Logger
}

// Store reads and writes sidecar records below a project root.
type Store struct {
	root        string
	dir         string
	lockTimeout time.Duration
	logger      *slog.Logger
}

// New returns a Store for the project at root.
func New(root string, opts Options) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}
	dir := filepath.ToSlash(filepath.Clean(opts.Dir))
	if opts.Dir == "" {
		dir = DefaultDir
	}
	if filepath.IsAbs(opts.Dir) || dir == "." || dir == ".." || strings.HasPrefix(dir, "../") {
		return nil, fmt.Errorf("sidecar directory %q must be a subdirectory of the root", opts.Dir)
	}
	timeout := opts.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		root:        abs,
		dir:         dir,
		lockTimeout: timeout,
		logger:      logger.With("component", "store"),
	}, nil
}

// Load reads the sidecar for a source path under a shared lock. It returns
// ErrNotFound when no sidecar exists and *CorruptRecordError when the file
// cannot be decoded or fails validation.
func (s *Store) Load(p string) (*model.Record, error) {
	rel, err := s.Rel(p)
	if err != nil {
		return nil, err
	}
	sidecar := s.SidecarPath(rel)
	if _, err := os.Stat(sidecar); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
	}

	lock, err := s.acquire(lockPath(sidecar), false)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	rec, _, err := s.read(rel, sidecar)
	return rec, err
}

// Exists reports whether a sidecar exists for the source path.
func (s *Store) Exists(p string) (bool, error) {
	rel, err := s.Rel(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(s.SidecarPath(rel))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking sidecar for %s: %w", rel, err)
	}
}

// Save writes r under an exclusive lock. The write is refused with
// *ConflictError when the sidecar on disk no longer carries
// expectedSourceHash, or when r was loaded and the file has been rewritten
// since. A record that was never persisted may not replace an existing
// sidecar. On success r.Revision is updated to the new content.
func (s *Store) Save(p string, r *model.Record, expectedSourceHash string) error {
	rel, err := s.Rel(p)
	if err != nil {
		return err
	}
	if r.SourceFile != rel {
		return fmt.Errorf("record is for %q, not %q: %w", r.SourceFile, rel, model.ValidationError{Field: "source_file", Message: "does not match the sidecar path"})
	}
	data, err := encode(r)
	if err != nil {
		return err
	}

	sidecar := s.SidecarPath(rel)
	lock, err := s.acquire(lockPath(sidecar), true)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := s.checkCurrent(rel, sidecar, r.Revision, expectedSourceHash); err != nil {
		return err
	}
	if err := writeAtomic(sidecar, data); err != nil {
		return fmt.Errorf("saving sidecar for %s: %w", rel, err)
	}
	r.Revision = textsim.Hash(data)
	s.logger.Debug("sidecar saved", "file", rel, "threads", len(r.Threads), "bytes", len(data))
	return nil
}

// Delete removes the sidecar for a source path under an exclusive lock,
// subject to the same optimistic check as Save.
func (s *Store) Delete(p string, r *model.Record) error {
	rel, err := s.Rel(p)
	if err != nil {
		return err
	}
	sidecar := s.SidecarPath(rel)
	lock, err := s.acquire(lockPath(sidecar), true)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := s.checkCurrent(rel, sidecar, r.Revision, r.SourceHash); err != nil {
		return err
	}
	if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing sidecar for %s: %w", rel, err)
	}
	s.logger.Debug("sidecar removed", "file", rel)
	return nil
}

// Move renames the sidecar of oldPath to newPath, locking both in a fixed
// order. If newPath already has a sidecar the threads are merged and the
// stored source hash is cleared so the next access reconciles against the
// file now at newPath. It returns the record now stored at newPath.
func (s *Store) Move(oldPath, newPath string) (*model.Record, error) {
	oldRel, err := s.Rel(oldPath)
	if err != nil {
		return nil, err
	}
	newRel, err := s.Rel(newPath)
	if err != nil {
		return nil, err
	}
	if oldRel == newRel {
		return nil, model.ValidationError{Field: "path", Message: fmt.Sprintf("source and destination are the same: %q", oldRel)}
	}
	oldSidecar, newSidecar := s.SidecarPath(oldRel), s.SidecarPath(newRel)

	first, second := oldSidecar, newSidecar
	if second < first {
		first, second = second, first
	}
	l1, err := s.acquire(lockPath(first), true)
	if err != nil {
		return nil, err
	}
	defer l1.release()
	l2, err := s.acquire(lockPath(second), true)
	if err != nil {
		return nil, err
	}
	defer l2.release()

	rec, _, err := s.read(oldRel, oldSidecar)
	if err != nil {
		return nil, err
	}
	rec.SourceFile = newRel

	existing, _, err := s.read(newRel, newSidecar)
	switch {
	case err == nil:
		merged := 0
		for _, t := range existing.Threads {
			if rec.Thread(t.ID) == nil {
				rec.AddThread(t)
				merged++
			}
		}
		rec.SourceHash = ""
		s.logger.Info("merging sidecars", "from", oldRel, "to", newRel, "merged", merged)
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	data, err := encode(rec)
	if err != nil {
		return nil, err
	}
	if err := writeAtomic(newSidecar, data); err != nil {
		return nil, fmt.Errorf("moving sidecar to %s: %w", newRel, err)
	}
	if err := os.Remove(oldSidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("removing old sidecar %s: %w", oldRel, err)
	}
	rec.Revision = textsim.Hash(data)
	s.logger.Debug("sidecar moved", "from", oldRel, "to", newRel)
	return rec, nil
}

// Walk calls fn with the source path of every sidecar, in lexical order.
// Temporary files, lock files and other non-sidecar files are skipped.
func (s *Store) Walk(fn func(rel string) error) error {
	base := filepath.Join(s.root, filepath.FromSlash(s.dir))
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !isSidecarName(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		return fn(strings.TrimSuffix(filepath.ToSlash(rel), sidecarExt))
	})
	if err != nil {
		return fmt.Errorf("walking sidecars: %w", err)
	}
	return nil
}

// Stats summarizes the sidecar directory.
type Stats struct {
	Dir        string `json:"dir"`
	Sidecars   int    `json:"sidecars"`
	TotalBytes int64  `json:"totalBytes"`
	StrayTemps int    `json:"strayTemps"`
}

// Stats reports how many sidecars exist and how many temporary files were
// left behind by interrupted writes.
func (s *Store) Stats() (Stats, error) {
	base := filepath.Join(s.root, filepath.FromSlash(s.dir))
	st := Stats{Dir: base}
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch {
		case isSidecarName(d.Name()):
			info, err := d.Info()
			if err != nil {
				return nil
			}
			st.Sidecars++
			st.TotalBytes += info.Size()
		case strings.Contains(d.Name(), sidecarExt+tmpInfix):
			st.StrayTemps++
		}
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("reading sidecar directory: %w", err)
	}
	return st, nil
}

// CleanTemps removes temporary files older than minAge, left behind by
// writers that died before renaming. It returns how many were removed.
func (s *Store) CleanTemps(minAge time.Duration) (int, error) {
	base := filepath.Join(s.root, filepath.FromSlash(s.dir))
	cutoff := time.Now().Add(-minAge)
	var removed int
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == base && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !strings.Contains(d.Name(), sidecarExt+tmpInfix) {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
			s.logger.Info("removed stray temp file", "path", path)
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleaning sidecar directory: %w", err)
	}
	return removed, nil
}

// read loads and validates a sidecar. The caller holds a lock.
func (s *Store) read(rel, sidecar string) (*model.Record, []byte, error) {
	data, err := os.ReadFile(sidecar)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%s: %w", rel, ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading sidecar for %s: %w", rel, err)
	}
	rec, err := model.Unmarshal(data)
	if err != nil {
		s.logger.Warn("corrupt sidecar", "path", sidecar, "err", err)
		return nil, nil, &CorruptRecordError{Path: sidecar, Err: err}
	}
	problems := model.Validate(rec)
	if rec.SourceFile != rel {
		problems = append(problems, model.ValidationError{
			Field:   "source_file",
			Message: fmt.Sprintf("%q does not match sidecar location %q", rec.SourceFile, rel),
		})
	}
	if len(problems) > 0 {
		s.logger.Warn("invalid sidecar", "path", sidecar, "problems", len(problems))
		return nil, nil, &CorruptRecordError{Path: sidecar, Problems: problems}
	}
	rec.Revision = textsim.Hash(data)
	return rec, data, nil
}

// checkCurrent enforces the optimistic concurrency rule. The caller holds the
// exclusive lock.
func (s *Store) checkCurrent(rel, sidecar, revision, expectedSourceHash string) error {
	current, data, err := s.read(rel, sidecar)
	if errors.Is(err, ErrNotFound) {
		if revision != "" {
			return &ConflictError{Path: rel, Expected: revision, Reason: "sidecar was removed"}
		}
		return nil
	}
	if err != nil {
		return err
	}
	if revision == "" {
		return &ConflictError{Path: rel, Actual: textsim.Hash(data), Reason: "sidecar was created by another writer"}
	}
	if current.SourceHash != expectedSourceHash {
		return &ConflictError{Path: rel, Expected: expectedSourceHash, Actual: current.SourceHash, Reason: "source hash differs"}
	}
	if actual := textsim.Hash(data); actual != revision {
		return &ConflictError{Path: rel, Expected: revision, Actual: actual, Reason: "sidecar was rewritten"}
	}
	return nil
}

// encode serializes r and validates exactly what will be written.
func encode(r *model.Record) ([]byte, error) {
	data, err := model.Marshal(r)
	if err != nil {
		return nil, err
	}
	check, err := model.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if problems := model.Validate(check); len(problems) > 0 {
		return nil, fmt.Errorf("refusing to write invalid record (%d problems): %w", len(problems), problems[0])
	}
	return data, nil
}

func isSidecarName(name string) bool {
	return strings.HasSuffix(name, sidecarExt) && !strings.Contains(name, tmpInfix)
}
