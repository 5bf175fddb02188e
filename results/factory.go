package results

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Options selects and configures a results backend.
type Options struct {
	// Kind names the backend: "none", "memory", "csv", "sqlite", or "redis".
	Kind string
	// Path is the output file path for the csv and sqlite backends.
	Path string
	// RedisAddr is the "host:port" of the Redis server for the redis backend.
	RedisAddr string
	// RedisKeyPrefix overrides the default Redis list key prefix.
	RedisKeyPrefix string
}

// NewRecorder constructs the backend named in the options.
//
// Parameters:
//   - ctx: Context for backend setup (schema creation, connection checks)
//   - opts: Backend selection and settings
//
// Returns:
//   - The constructed Recorder
//   - An error for an unknown kind or failed backend setup
func NewRecorder(ctx context.Context, opts Options) (Recorder, error) {
	switch opts.Kind {
	case "", "none":
		return NewNopRecorder(), nil
	case "memory":
		return NewMemoryRecorder(), nil
	case "csv":
		return NewCSVRecorder(opts.Path)
	case "sqlite":
		return NewSQLiteRecorder(ctx, opts.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("results: ping redis %s: %w", opts.RedisAddr, err)
		}
		return NewRedisRecorder(client, opts.RedisKeyPrefix), nil
	default:
		return nil, fmt.Errorf("results: unsupported backend: %s", opts.Kind)
	}
}
