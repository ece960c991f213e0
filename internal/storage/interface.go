// Package storage persists engine snapshots as versioned JSON files and
// runs the background flusher that keeps disk state close to memory.
package storage

// Storage is the contract for snapshot persistence.
//
// Implementations must be safe for concurrent use: the background
// flusher, explicit saves and the shutdown path may overlap.
type Storage interface {
	// Load reads the last saved snapshot. It returns ErrNoState when no
	// state file exists and ErrIncompatibleSnapshot when one exists but
	// cannot be read by this build.
	Load() (*Snapshot, error)

	// Save atomically replaces the persisted snapshot.
	Save(snap *Snapshot) error
}

// NewStorage creates the default JSON-file-backed implementation. The
// indirection leaves room for other backends without touching callers.
func NewStorage(path string) (Storage, error) {
	return NewJSONStorage(path)
}

// Ensure both implementations satisfy Storage at compile time.
var (
	_ Storage = (*JSONStorage)(nil)
	_ Storage = (*MockStorage)(nil)
)
