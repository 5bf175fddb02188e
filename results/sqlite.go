package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists batch records to a SQLite database, one row per
// episode-batch.
type SQLiteRecorder struct {
	db *sql.DB
}

// NewSQLiteRecorder opens (creating if needed) the database at path and
// ensures the batches table exists.
//
// Parameters:
//   - ctx: Context for the connection check and schema setup
//   - path: SQLite database file path
//
// Returns:
//   - The recorder, or an error if the database cannot be opened or migrated
func NewSQLiteRecorder(ctx context.Context, path string) (*SQLiteRecorder, error) {
	if path == "" {
		return nil, errors.New("results: sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("results: open sqlite %s: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("results: ping sqlite: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS batches (
			run_id          TEXT NOT NULL,
			batch           INTEGER NOT NULL,
			games_completed INTEGER NOT NULL,
			mean_reward     REAL NOT NULL,
			played_at       TEXT NOT NULL,
			PRIMARY KEY (run_id, batch)
		)
	`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("results: create batches table: %w", err)
	}

	return &SQLiteRecorder{db: db}, nil
}

// Record implements Recorder.
func (s *SQLiteRecorder) Record(ctx context.Context, rec BatchRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO batches (run_id, batch, games_completed, mean_reward, played_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, batch) DO UPDATE SET
			games_completed = excluded.games_completed,
			mean_reward = excluded.mean_reward,
			played_at = excluded.played_at
	`, rec.RunID, rec.Batch, rec.GamesCompleted, rec.MeanReward, rec.PlayedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("results: insert batch record: %w", err)
	}
	return nil
}

// Records returns all batch records for a run, ordered by batch.
//
// Parameters:
//   - ctx: Context for the query
//   - runID: The run to fetch
//
// Returns:
//   - The run's records in batch order, or an error if the query fails
func (s *SQLiteRecorder) Records(ctx context.Context, runID string) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, batch, games_completed, mean_reward, played_at
		FROM batches WHERE run_id = ? ORDER BY batch
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("results: query batch records: %w", err)
	}
	defer rows.Close()

	var records []BatchRecord
	for rows.Next() {
		var rec BatchRecord
		var playedAt string
		if err := rows.Scan(&rec.RunID, &rec.Batch, &rec.GamesCompleted, &rec.MeanReward, &playedAt); err != nil {
			return nil, fmt.Errorf("results: scan batch record: %w", err)
		}
		if rec.PlayedAt, err = time.Parse(time.RFC3339Nano, playedAt); err != nil {
			return nil, fmt.Errorf("results: parse played_at: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Close implements Recorder.
func (s *SQLiteRecorder) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
