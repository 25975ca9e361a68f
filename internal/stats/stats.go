// Package stats tracks generation counts and timestamps behind an injected
// recorder interface, keeping the pipeline itself stateless.
package stats

import (
	"context"
	"sync"
	"time"
)

// Snapshot is a point-in-time view of the generation stats.
type Snapshot struct {
	GenerationCount    int64            `json:"generationCount"`
	LastGenerationTime time.Time        `json:"lastGenerationTime,omitzero"`
	LastHealthTime     time.Time        `json:"lastHealthTime,omitzero"`
	ByMode             map[string]int64 `json:"byMode,omitempty"`
}

// Recorder records pipeline outcomes. Implementations must be safe for
// concurrent use; invocations run under request-driven concurrency.
type Recorder interface {
	RecordGeneration(ctx context.Context, mode string) error
	TouchHealth(ctx context.Context) error
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// MemoryRecorder is the in-process fallback used when Redis is not
// configured.
type MemoryRecorder struct {
	mu       sync.Mutex
	count    int64
	byMode   map[string]int64
	lastGen  time.Time
	lastPing time.Time
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{byMode: make(map[string]int64)}
}

func (r *MemoryRecorder) RecordGeneration(_ context.Context, mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	r.byMode[mode]++
	r.lastGen = time.Now().UTC()
	return nil
}

func (r *MemoryRecorder) TouchHealth(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPing = time.Now().UTC()
	return nil
}

func (r *MemoryRecorder) Snapshot(_ context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byMode := make(map[string]int64, len(r.byMode))
	for k, v := range r.byMode {
		byMode[k] = v
	}
	return &Snapshot{
		GenerationCount:    r.count,
		LastGenerationTime: r.lastGen,
		LastHealthTime:     r.lastPing,
		ByMode:             byMode,
	}, nil
}
