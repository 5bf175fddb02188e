package results

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisRecorder appends JSON-encoded batch records to a per-run Redis list,
// so a dashboard or collector can consume results while the run is live.
type RedisRecorder struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRecorder creates a recorder publishing to the given Redis client.
// Records for run R land in the list "<keyPrefix>:<R>".
//
// Parameters:
//   - client: Connected Redis client
//   - keyPrefix: List key prefix; empty defaults to "hearts:results"
//
// Returns:
//   - The new RedisRecorder
func NewRedisRecorder(client *redis.Client, keyPrefix string) *RedisRecorder {
	if keyPrefix == "" {
		keyPrefix = "hearts:results"
	}
	return &RedisRecorder{client: client, keyPrefix: keyPrefix}
}

// Record implements Recorder.
func (r *RedisRecorder) Record(ctx context.Context, rec BatchRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("results: marshal batch record: %w", err)
	}

	key := fmt.Sprintf("%s:%s", r.keyPrefix, rec.RunID)
	if err := r.client.RPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("results: rpush %s: %w", key, err)
	}
	return nil
}

// Close implements Recorder.
func (r *RedisRecorder) Close() error {
	return r.client.Close()
}
