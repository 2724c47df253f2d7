//go:build !unix && !windows

package store

import "os"

// Platforms without advisory locks only serialize callers in this process;
// the optimistic check in Save still catches other writers.
var processLocks inProcLocks

func tryLock(f *os.File, exclusive bool) error { return processLocks.tryLock(f, exclusive) }

func unlock(f *os.File) error { return processLocks.unlock(f) }
