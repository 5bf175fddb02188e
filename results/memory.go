package results

import (
	"context"
	"sync"
)

// MemoryRecorder keeps records in memory. It is the default backend for
// tests and for runs that only need the progress log.
type MemoryRecorder struct {
	mu      sync.Mutex
	records []BatchRecord
}

// NewMemoryRecorder creates an empty in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record implements Recorder.
func (m *MemoryRecorder) Record(_ context.Context, rec BatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// Records returns a copy of everything recorded so far.
func (m *MemoryRecorder) Records() []BatchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]BatchRecord, len(m.records))
	copy(out, m.records)
	return out
}

// Close implements Recorder.
func (m *MemoryRecorder) Close() error { return nil }
