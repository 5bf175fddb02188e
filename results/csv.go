package results

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// csvHeader matches the column layout the reward-plotting tooling expects.
var csvHeader = []string{"run_id", "batch", "games_completed", "mean_reward", "played_at"}

// CSVRecorder appends one row per episode-batch to a CSV file, flushing
// after every record so a crash loses at most the in-flight row.
type CSVRecorder struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVRecorder creates (or truncates) the CSV file at path and writes the
// header row.
//
// Parameters:
//   - path: Destination file path
//
// Returns:
//   - The recorder, or an error if the file cannot be created or the header
//     cannot be written
func NewCSVRecorder(path string) (*CSVRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("results: create %s: %w", path, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeader); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("results: write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("results: flush csv header: %w", err)
	}

	return &CSVRecorder{file: file, writer: writer}, nil
}

// Record implements Recorder.
func (c *CSVRecorder) Record(_ context.Context, rec BatchRecord) error {
	row := []string{
		rec.RunID,
		strconv.Itoa(rec.Batch),
		strconv.Itoa(rec.GamesCompleted),
		strconv.FormatFloat(rec.MeanReward, 'g', -1, 64),
		rec.PlayedAt.UTC().Format(time.RFC3339),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("results: write csv row: %w", err)
	}
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return fmt.Errorf("results: flush csv: %w", err)
	}
	return nil
}

// Close implements Recorder.
func (c *CSVRecorder) Close() error {
	if c.file == nil {
		return nil
	}
	c.writer.Flush()
	err := c.file.Close()
	c.file = nil
	return err
}
