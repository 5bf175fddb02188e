// Command hearts-agent connects to a remote evaluation server and plays
// many simultaneous card-game instances over one connection, using a locally
// selected policy. It exits 0 when the server finishes or the configured
// game count is reached.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/hearts-agent/logging"
	"github.com/cyberinferno/hearts-agent/policy"
	"github.com/cyberinferno/hearts-agent/results"
	"github.com/cyberinferno/hearts-agent/session"
	"github.com/cyberinferno/hearts-agent/transport"
	"github.com/cyberinferno/hearts-agent/wire"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envOr returns the environment variable's value or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, args []string) error {
	// Optional .env for local defaults; absence is fine.
	_ = godotenv.Load()

	fs := flag.NewFlagSet("hearts-agent", flag.ContinueOnError)
	name := fs.String("name", "", "display name to register with the server")
	algorithm := fs.String("algorithm", "rulebased", "policy algorithm to use")
	framework := fs.String("framework", envOr("HEARTS_FRAMEWORK", "cpu"), "compute framework a learned policy was trained with")
	serverAddress := fs.String("server-address", envOr("HEARTS_SERVER_ADDRESS", "localhost"), "server address to connect to")
	port := fs.Int("port", 6000, "server port to connect to")
	resultsKind := fs.String("results", envOr("HEARTS_RESULTS", "none"), "results backend: none|memory|csv|sqlite|redis")
	resultsPath := fs.String("results-path", "results.csv", "output path for the csv and sqlite results backends")
	redisAddr := fs.String("redis-addr", envOr("HEARTS_REDIS_ADDR", "localhost:6379"), "redis address for the redis results backend")
	logLevel := fs.String("log-level", "info", "minimum log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// The checkpoint path is positional. The built-in heuristics ignore it,
	// so it may be omitted.
	checkpointPath := fs.Arg(0)
	if checkpointPath != "" {
		info, err := os.Stat(checkpointPath)
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("checkpoint: %s is a directory, pass the checkpoint file", checkpointPath)
		}
	}

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	log := logging.New("hearts-agent", level)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder, err := results.NewRecorder(ctx, results.Options{
		Kind:      *resultsKind,
		Path:      *resultsPath,
		RedisAddr: *redisAddr,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Warn("failed closing results backend", logging.F("error", err.Error()))
		}
	}()

	cfg := transport.DefaultConfig(net.JoinHostPort(*serverAddress, strconv.Itoa(*port)))
	conn, err := transport.Dial(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("connected to server", logging.F("address", cfg.Address))

	sess := session.New(conn, wire.DefaultConfig(), session.Options{
		Name: *name,
		NewPolicy: func(meta session.Metadata) (policy.Policy, error) {
			return policy.New(*algorithm, policy.Config{
				CheckpointPath: checkpointPath,
				Framework:      *framework,
				MaskActions:    meta.MaskActions,
				NumPlayers:     meta.NumPlayers,
				DeckSize:       meta.DeckSize,
			})
		},
		Recorder: recorder,
		Logger:   log,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Cancelling on return unblocks the watcher, so Wait does not hang
		// on it after a clean completion.
		defer stop()
		return sess.Run(ctx)
	})
	g.Go(func() error {
		// Unblock the session's blocking reads when the run is cancelled or
		// finished.
		<-ctx.Done()
		_ = conn.Close()
		return nil
	})
	return g.Wait()
}
