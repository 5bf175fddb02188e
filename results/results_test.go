package results

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(batch int) BatchRecord {
	return BatchRecord{
		RunID:          "run-1",
		Batch:          batch,
		GamesCompleted: batch * 2,
		MeanReward:     -1.5,
		PlayedAt:       time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC),
	}
}

func TestMemoryRecorder_RecordsInOrder(t *testing.T) {
	rec := NewMemoryRecorder()
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, sampleRecord(1)))
	require.NoError(t, rec.Record(ctx, sampleRecord(2)))

	records := rec.Records()
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].Batch)
	assert.Equal(t, 2, records[1].Batch)
	require.NoError(t, rec.Close())
}

func TestCSVRecorder_WritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.csv")
	rec, err := NewCSVRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Record(context.Background(), sampleRecord(1)))
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"run-1", "1", "2", "-1.5", "2025-11-03T12:00:00Z"}, rows[1])
}

func TestCSVRecorder_CloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.csv")
	rec, err := NewCSVRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Close())
	require.NoError(t, rec.Close())
}

func TestSQLiteRecorder_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	ctx := context.Background()

	rec, err := NewSQLiteRecorder(ctx, path)
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, rec.Record(ctx, sampleRecord(1)))
	require.NoError(t, rec.Record(ctx, sampleRecord(2)))
	// Re-record batch 1 to exercise the upsert.
	updated := sampleRecord(1)
	updated.MeanReward = 4
	require.NoError(t, rec.Record(ctx, updated))

	records, err := rec.Records(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 4.0, records[0].MeanReward)
	assert.Equal(t, 2, records[1].Batch)
}

func TestSQLiteRecorder_RequiresPath(t *testing.T) {
	_, err := NewSQLiteRecorder(context.Background(), "")
	assert.Error(t, err)
}

func TestNewRecorder_Factory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
		want any
	}{
		{"default is nop", Options{}, nopRecorder{}},
		{"none", Options{Kind: "none"}, nopRecorder{}},
		{"memory", Options{Kind: "memory"}, &MemoryRecorder{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NewRecorder(ctx, tt.opts)
			require.NoError(t, err)
			assert.IsType(t, tt.want, rec)
		})
	}

	_, err := NewRecorder(ctx, Options{Kind: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNopRecorder_Discards(t *testing.T) {
	rec := NewNopRecorder()
	require.NoError(t, rec.Record(context.Background(), sampleRecord(1)))
	require.NoError(t, rec.Close())
}
