package storage

import (
	"fmt"
	"sync"
)

// MockStorage implements Storage for testing. It keeps the last saved
// snapshot in memory and can inject errors and count calls.
type MockStorage struct {
	mu            sync.Mutex
	snapshot      *Snapshot
	saveError     error
	loadError     error
	saveCallCount int
	loadCallCount int
}

// NewMockStorage creates a new mock storage for testing.
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// Load returns a copy of the stored snapshot, or ErrNoState.
func (m *MockStorage) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCallCount++
	if m.loadError != nil {
		return nil, m.loadError
	}
	if m.snapshot == nil {
		return nil, ErrNoState
	}
	return m.snapshot.Copy(), nil
}

// Save stores a copy of the snapshot, stamping the header like the
// real implementation does.
func (m *MockStorage) Save(snap *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCallCount++
	if m.saveError != nil {
		return m.saveError
	}
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}
	snap.Magic = SnapshotMagic
	snap.Version = SnapshotVersion
	m.snapshot = snap.Copy()
	return nil
}

// SetSaveError makes subsequent Save calls fail with err.
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetLoadError makes subsequent Load calls fail with err.
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// SetSnapshot seeds the stored snapshot directly.
func (m *MockStorage) SetSnapshot(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap.Copy()
}

// LastSaved returns a copy of the most recently saved snapshot, or nil.
func (m *MockStorage) LastSaved() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Copy()
}

// GetSaveCallCount returns how many times Save was called.
func (m *MockStorage) GetSaveCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCallCount
}

// GetLoadCallCount returns how many times Load was called.
func (m *MockStorage) GetLoadCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCallCount
}
