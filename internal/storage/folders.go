package storage

import "sync"

// folderLocks serializes folder resolution per (name, parent) so concurrent
// callers cannot both create the same folder
type folderLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newFolderLocks() *folderLocks {
	return &folderLocks{locks: make(map[string]*sync.Mutex)}
}

func folderKey(name, parentID string) string {
	return parentID + "\x00" + name
}

// Lock acquires the per-key mutex and returns its release
func (s *folderLocks) Lock(key string) func() {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}
