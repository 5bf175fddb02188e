// Package results persists per-episode-batch evaluation outcomes so reward
// curves can be analyzed after a run. A Recorder receives one record per
// completed episode-batch; backends cover in-memory (tests), CSV files,
// SQLite, and Redis, selected through NewRecorder.
package results

import (
	"context"
	"time"
)

// BatchRecord is one completed episode-batch's outcome.
type BatchRecord struct {
	// RunID identifies the evaluation run; all batches of one session share it.
	RunID string `json:"run_id"`
	// Batch is the 1-based episode-batch ordinal within the run.
	Batch int `json:"batch"`
	// GamesCompleted is the cumulative number of finished games.
	GamesCompleted int `json:"games_completed"`
	// MeanReward is the mean final delayed reward across the batch's
	// instance slots.
	MeanReward float64 `json:"mean_reward"`
	// PlayedAt is when the batch completed.
	PlayedAt time.Time `json:"played_at"`
}

// Recorder persists batch records. Implementations need not be safe for
// concurrent use; the session records from a single thread.
type Recorder interface {
	// Record persists one batch record.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - rec: The record to persist
	//
	// Returns:
	//   - An error if persisting fails
	Record(ctx context.Context, rec BatchRecord) error

	// Close releases backend resources (file handles, connections). Safe to
	// call multiple times.
	Close() error
}

// nopRecorder discards every record.
type nopRecorder struct{}

// NewNopRecorder returns a Recorder that discards all records, for runs
// where no results sink is configured.
func NewNopRecorder() Recorder {
	return nopRecorder{}
}

// Record implements Recorder.
func (nopRecorder) Record(context.Context, BatchRecord) error { return nil }

// Close implements Recorder.
func (nopRecorder) Close() error { return nil }
