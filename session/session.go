// Package session drives one evaluation session against the server: the
// name-registration handshake, the notice/acknowledge flow, and repeated
// episode-batches of multiplexed game rounds until the configured game count
// is reached or the server closes the connection.
//
// The whole session is single-threaded and strictly synchronous: one receive,
// one response, in alternation, with any number of notice/ack pairs in
// between. All per-instance memory is private to this thread.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/cyberinferno/hearts-agent/logging"
	"github.com/cyberinferno/hearts-agent/mux"
	"github.com/cyberinferno/hearts-agent/policy"
	"github.com/cyberinferno/hearts-agent/results"
	"github.com/cyberinferno/hearts-agent/transport"
	"github.com/cyberinferno/hearts-agent/wire"
)

// ErrNameTooLong is returned before anything is sent when the display name
// exceeds the protocol's encoded length limit.
var ErrNameTooLong = errors.New("session: display name is too long")

const (
	// progressEvery is the episode-batch interval between progress log lines.
	progressEvery = 100

	// noticeDedupTTL is how long a notice text suppresses identical
	// notices from the info log.
	noticeDedupTTL = 30 * time.Second
)

// Options configures a Session.
type Options struct {
	// Name is the display name to register; empty registers anonymously.
	Name string
	// NewPolicy builds the decision policy once the session metadata is
	// known. Required.
	NewPolicy func(meta Metadata) (policy.Policy, error)
	// Recorder receives one record per completed episode-batch. Defaults to
	// the no-op recorder.
	Recorder results.Recorder
	// Logger used for session progress and notices. Defaults to a no-op
	// logger.
	Logger logging.Logger
}

// Session plays games against the server over one connection. Not safe for
// concurrent use; create one per connection and call Run once.
type Session struct {
	conn  *transport.Conn
	proto wire.Config
	dec   *wire.Decoder
	opts  Options
	log   logging.Logger
	runID string

	// Seen notice texts, to keep a chatty server from flooding the log.
	notices *cache.Cache

	meta      Metadata
	playerKey string
	pol       policy.Policy

	gamesPlayed int
	batches     int
}

// New creates a Session over an established connection.
//
// Parameters:
//   - conn: The dialed server connection
//   - proto: Protocol constants shared with the server
//   - opts: Session options; NewPolicy is required
//
// Returns:
//   - The new Session, ready for Run
func New(conn *transport.Conn, proto wire.Config, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Recorder == nil {
		opts.Recorder = results.NewNopRecorder()
	}

	s := &Session{
		conn:    conn,
		proto:   proto,
		opts:    opts,
		runID:   uuid.NewString(),
		notices: cache.New(noticeDedupTTL, 5*time.Minute),
	}
	s.log = opts.Logger.With(logging.F("run_id", s.runID))
	s.dec = wire.NewDecoder(proto, conn.ReadShard, s.log)
	return s
}

// RunID returns the identifier under which this session's results are
// recorded.
func (s *Session) RunID() string {
	return s.runID
}

// GamesPlayed returns the cumulative number of finished games.
func (s *Session) GamesPlayed() int {
	return s.gamesPlayed
}

// Run registers with the server and plays episode-batches until the
// configured game count is reached or the server closes the connection.
// Server closure is the expected way an unbounded run ends and is returned
// as success.
//
// Parameters:
//   - ctx: Context for cancellation between rounds and inside the policy
//
// Returns:
//   - nil on normal completion or graceful server shutdown; a fatal
//     protocol, transport, or policy error otherwise
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	if errors.Is(err, transport.ErrServerClosed) {
		s.log.Info("server stopped, exiting",
			logging.F("games_played", s.gamesPlayed))
		return nil
	}
	return err
}

func (s *Session) run(ctx context.Context) error {
	if err := s.handshake(); err != nil {
		return err
	}

	for !s.meta.Done(s.gamesPlayed) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.playEpisodeBatch(ctx); err != nil {
			return err
		}
	}

	s.log.Info("evaluation complete",
		logging.F("games_played", s.gamesPlayed),
		logging.F("episode_batches", s.batches))
	return nil
}

// handshake registers the display name, awaits the session metadata, builds
// the policy, and acknowledges readiness.
func (s *Session) handshake() error {
	if len(s.opts.Name) > s.proto.MaxNameBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrNameTooLong, len(s.opts.Name), s.proto.MaxNameBytes)
	}

	// The registration frame is always sent; an absent name goes as null.
	var name any
	if s.opts.Name != "" {
		name = s.opts.Name
	}
	if err := s.send(name); err != nil {
		return err
	}

	data, err := s.awaitData()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, &s.meta); err != nil {
		return fmt.Errorf("session: decode metadata: %w", err)
	}
	if err := s.meta.Validate(); err != nil {
		return err
	}
	s.playerKey = s.meta.PlayerKey()

	// The server may aggregate one observation per parallel instance into a
	// single frame.
	s.dec.SetFrameLimit(s.conn.Config().ReceiveBufferSize * s.meta.NumParallelGames)

	if s.pol, err = s.opts.NewPolicy(s.meta); err != nil {
		return fmt.Errorf("session: build policy: %w", err)
	}

	s.log.Info("registered with server",
		logging.F("player_index", s.meta.PlayerIndex),
		logging.F("num_players", s.meta.NumPlayers),
		logging.F("num_parallel_games", s.meta.NumParallelGames))

	return s.sendAck()
}

// playEpisodeBatch runs all parallel instances from fresh slots to the
// shared completion signal, then acknowledges and accounts the batch.
func (s *Session) playEpisodeBatch(ctx context.Context) error {
	table := mux.NewTable(s.meta.NumParallelGames, s.pol)

	for {
		data, err := s.awaitData()
		if err != nil {
			return err
		}

		round, err := mux.ParseRound(data, s.playerKey)
		if err != nil {
			return err
		}
		if round.Empty() {
			// No instance needs an action this round.
			if err := s.sendActions(nil); err != nil {
				return err
			}
			continue
		}

		if round.HasRewards {
			if err := table.ApplyRewards(round); err != nil {
				return err
			}
			if round.AllDone {
				break
			}
		}

		actions, err := table.Decide(ctx, round, s.pol)
		if err != nil {
			return err
		}
		if err := s.sendActions(actions); err != nil {
			return err
		}
	}

	if err := s.sendAck(); err != nil {
		return err
	}
	s.gamesPlayed += s.meta.NumParallelGames
	s.batches++

	rec := results.BatchRecord{
		RunID:          s.runID,
		Batch:          s.batches,
		GamesCompleted: s.gamesPlayed,
		MeanReward:     table.MeanFinalReward(),
		PlayedAt:       time.Now(),
	}
	if err := s.opts.Recorder.Record(ctx, rec); err != nil {
		// A broken results sink must not abort a multi-hour run.
		s.log.Warn("failed recording batch results", logging.F("error", err.Error()))
	}

	if s.batches%progressEvery == 0 {
		s.log.Info("progress",
			logging.F("games_played", humanize.Comma(int64(s.gamesPlayed))),
			logging.F("episode_batches", humanize.Comma(int64(s.batches))))
	}
	return nil
}

// awaitData decodes frames until structured data arrives, printing and
// acknowledging every notice on the way. This keeps the client synchronized
// while the server interleaves free-form status text with the protocol.
func (s *Session) awaitData() (json.RawMessage, error) {
	for {
		msg, err := s.dec.Next()
		if err != nil {
			return nil, err
		}
		if msg.Kind == wire.KindData {
			return msg.Data, nil
		}

		s.logNotice(msg.Notice)
		if err := s.sendAck(); err != nil {
			return nil, err
		}
	}
}

// logNotice surfaces a server notice, demoting exact repeats within the
// dedup window to debug level.
func (s *Session) logNotice(notice string) {
	if _, seen := s.notices.Get(notice); seen {
		s.log.Debug("server notice (repeated)", logging.F("notice", notice))
		return
	}
	s.notices.SetDefault(notice, struct{}{})
	s.log.Info("server notice", logging.F("notice", notice))
}

// sendActions sends the round's action list, aligned with the round's
// instance-index order. A nil list is sent as an empty one.
func (s *Session) sendActions(actions []policy.Action) error {
	if actions == nil {
		actions = []policy.Action{}
	}
	return s.send(actions)
}

// sendAck sends the fixed acknowledgment token.
func (s *Session) sendAck() error {
	return s.send(s.proto.AckToken)
}

// send encodes a value into a frame and writes it out.
func (s *Session) send(v any) error {
	frame, err := wire.Encode(s.proto, v)
	if err != nil {
		return fmt.Errorf("session: encode payload: %w", err)
	}
	return s.conn.Send(frame)
}
