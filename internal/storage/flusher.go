package storage

import (
	"context"
	"log"
	"os"
	"time"
)

// Snapshotter exposes the engine state the flusher persists.
type Snapshotter interface {
	// Snapshot returns a deep copy of the current state.
	Snapshot() *Snapshot
	// Generation increases on every state mutation.
	Generation() uint64
}

// FlusherConfig controls the background persistence cadence.
type FlusherConfig struct {
	// PollInterval is how often the flusher checks for dirty state.
	PollInterval time.Duration
	// FlushInterval is the minimum spacing between disk writes.
	FlushInterval time.Duration
}

// DefaultFlusherConfig provides sensible defaults for the flusher.
var DefaultFlusherConfig = FlusherConfig{
	PollInterval:  time.Second,
	FlushInterval: 30 * time.Second,
}

// Flusher persists dirty engine state in the background. It wakes every
// PollInterval, writes at most once per FlushInterval, and writes one
// final time on shutdown so no mutation outlives the process. Clean
// state is never rewritten.
type Flusher struct {
	store    Storage
	source   Snapshotter
	logger   *log.Logger
	config   FlusherConfig
	savedGen uint64
	lastSave time.Time
}

// NewFlusher creates a flusher. The config parameter is optional; if
// not provided, DefaultFlusherConfig is used. Panics if store or source
// is nil since the flusher cannot function without them.
func NewFlusher(store Storage, source Snapshotter, logger *log.Logger, config ...FlusherConfig) *Flusher {
	if logger == nil {
		logger = log.New(os.Stderr, "flusher: ", log.LstdFlags)
	}
	if store == nil {
		panic("flusher: store cannot be nil")
	}
	if source == nil {
		panic("flusher: snapshot source cannot be nil")
	}

	cfg := DefaultFlusherConfig
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultFlusherConfig.PollInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlusherConfig.FlushInterval
	}

	return &Flusher{
		store:  store,
		source: source,
		logger: logger,
		config: cfg,
	}
}

// Run blocks until ctx is done, then flushes once more if state is
// dirty. The caller is expected to have saved the initial state before
// starting the loop.
func (f *Flusher) Run(ctx context.Context) {
	f.savedGen = f.source.Generation()
	f.lastSave = time.Now()

	ticker := time.NewTicker(f.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.flush("shutdown")
			return
		case <-ticker.C:
			if time.Since(f.lastSave) < f.config.FlushInterval {
				continue
			}
			f.flush("interval")
		}
	}
}

// flush writes the current state when it changed since the last write.
func (f *Flusher) flush(reason string) {
	gen := f.source.Generation()
	if gen == f.savedGen {
		return
	}
	if err := f.store.Save(f.source.Snapshot()); err != nil {
		f.logger.Printf("state flush (%s) failed: %v", reason, err)
		return
	}
	f.savedGen = gen
	f.lastSave = time.Now()
	f.logger.Printf("state flushed (%s), generation %d", reason, gen)
}
