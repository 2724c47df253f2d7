package store

import (
	"os"
	"sync"
)

// inProcLocks serializes lock holders within one process on platforms
// without advisory file locks. Keys are lock file paths.
type inProcLocks struct {
	byPath sync.Map // string -> *sync.RWMutex
	held   sync.Map // *os.File -> exclusive bool
}

func (l *inProcLocks) tryLock(f *os.File, exclusive bool) error {
	v, _ := l.byPath.LoadOrStore(f.Name(), new(sync.RWMutex))
	mu := v.(*sync.RWMutex)
	var ok bool
	if exclusive {
		ok = mu.TryLock()
	} else {
		ok = mu.TryRLock()
	}
	if !ok {
		return errWouldBlock
	}
	l.held.Store(f, exclusive)
	return nil
}

func (l *inProcLocks) unlock(f *os.File) error {
	v, ok := l.held.LoadAndDelete(f)
	if !ok {
		return nil
	}
	m, _ := l.byPath.Load(f.Name())
	mu := m.(*sync.RWMutex)
	if v.(bool) {
		mu.Unlock()
	} else {
		mu.RUnlock()
	}
	return nil
}
