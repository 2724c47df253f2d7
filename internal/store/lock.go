package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// pollInterval is how often a contended lock is retried.
const pollInterval = 20 * time.Millisecond

// errWouldBlock is returned by tryLock when another holder has the lock.
var errWouldBlock = errors.New("lock held")

// fileLock is an advisory lock held on an open lock file.
type fileLock struct {
	f         *os.File
	exclusive bool
}

// acquire locks path, creating it if needed, polling until timeout elapses.
func (s *Store) acquire(path string, exclusive bool) (*fileLock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating sidecar directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock %s: %w", path, err)
	}

	deadline := time.Now().Add(s.lockTimeout)
	waited := false
	for {
		err := tryLock(f, exclusive)
		if err == nil {
			if waited {
				s.logger.Debug("lock acquired after wait", "path", path, "exclusive", exclusive)
			}
			return &fileLock{f: f, exclusive: exclusive}, nil
		}
		if !errors.Is(err, errWouldBlock) {
			f.Close()
			return nil, fmt.Errorf("locking %s: %w", path, err)
		}
		if !time.Now().Before(deadline) {
			f.Close()
			s.logger.Warn("lock timeout", "path", path, "exclusive", exclusive, "timeout", s.lockTimeout)
			return nil, &LockTimeoutError{Path: path, Exclusive: exclusive, Timeout: s.lockTimeout}
		}
		if !waited {
			s.logger.Debug("waiting for lock", "path", path, "exclusive", exclusive)
			waited = true
		}
		time.Sleep(pollInterval)
	}
}

// release drops the lock. The lock file itself is left in place so that
// concurrent waiters keep contending on the same inode.
func (l *fileLock) release() {
	if l == nil || l.f == nil {
		return
	}
	_ = unlock(l.f)
	_ = l.f.Close()
	l.f = nil
}
