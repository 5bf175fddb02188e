package session

import (
	"errors"
	"strconv"
)

// Metadata is the one-time structured payload the server delivers after name
// registration.
type Metadata struct {
	// PlayerIndex is this client's 0-based seat.
	PlayerIndex int `json:"player_index"`
	// NumPlayers is the number of seats at the table.
	NumPlayers int `json:"num_players"`
	// DeckSize is the number of cards in the deck.
	DeckSize int `json:"deck_size"`
	// MaskActions reports whether observations carry a legal-action mask.
	MaskActions bool `json:"mask_actions"`
	// MaxNumGames is the total game count to play; nil means unbounded.
	MaxNumGames *int `json:"max_num_games"`
	// NumParallelGames is the number of game instances multiplexed per
	// episode-batch.
	NumParallelGames int `json:"num_parallel_games"`
}

// Validate checks the invariants the session relies on.
func (m Metadata) Validate() error {
	if m.NumParallelGames < 1 {
		return errors.New("session: metadata: num_parallel_games must be at least 1")
	}
	if m.PlayerIndex < 0 || (m.NumPlayers > 0 && m.PlayerIndex >= m.NumPlayers) {
		return errors.New("session: metadata: player_index out of range")
	}
	return nil
}

// PlayerKey returns the player index in its wire form; observation and
// reward maps are keyed by the string form of the index.
func (m Metadata) PlayerKey() string {
	return strconv.Itoa(m.PlayerIndex)
}

// Done reports whether the configured number of games has been played. With
// no maximum configured it never reports done; the run then lasts until the
// server closes the connection.
//
// Parameters:
//   - gamesPlayed: Cumulative number of finished games
//
// Returns:
//   - true once gamesPlayed reaches the configured maximum
func (m Metadata) Done(gamesPlayed int) bool {
	return m.MaxNumGames != nil && gamesPlayed >= *m.MaxNumGames
}
