package session

import "sync"

// MemoryTokenStore is a mutex-guarded in-process TokenStore, used by tests
// and by short-lived processes that have no reason to persist credentials.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns an empty store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Get implements TokenStore.
func (s *MemoryTokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set implements TokenStore.
func (s *MemoryTokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Remove implements TokenStore.
func (s *MemoryTokenStore) Remove() {
	s.Set("")
}

// MemorySnapshotStore is the in-process SnapshotStore counterpart.
type MemorySnapshotStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// NewMemorySnapshotStore returns an empty store.
func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{}
}

// Load implements SnapshotStore.
func (s *MemorySnapshotStore) Load() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, nil
	}
	out := *s.snap
	if s.snap.User != nil {
		u := *s.snap.User
		out.User = &u
	}
	return &out, nil
}

// Save implements SnapshotStore.
func (s *MemorySnapshotStore) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := snap
	if snap.User != nil {
		u := *snap.User
		copied.User = &u
	}
	s.snap = &copied
	return nil
}

// Clear implements SnapshotStore.
func (s *MemorySnapshotStore) Clear() error {
	s.mu.Lock()
	s.snap = nil
	s.mu.Unlock()
	return nil
}
