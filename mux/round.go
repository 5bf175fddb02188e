// Package mux multiplexes many concurrent game instances over the one
// connection. It parses each round's batched server payload into a typed
// Round and maintains the per-instance memory (decision state, previous
// action, previous reward) that the delayed-reward protocol requires: a
// player's own reward arrives one message late, attributed to the turn after
// the one it resulted from.
package mux

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cyberinferno/hearts-agent/policy"
)

// allDoneKey is the reserved key in an entry's done map that signals the end
// of the whole episode-batch.
const allDoneKey = "__all__"

// Protocol violations in a round payload. These indicate desynchronization
// or a server speaking a different protocol version; callers treat them as
// fatal.
var (
	// ErrBadRoundShape is returned when a batch entry does not have the
	// plain (index, observation) or extended (index, observation, reward,
	// done, info) arity, or when entries in one batch disagree on shape.
	ErrBadRoundShape = errors.New("mux: malformed round batch entry")

	// ErrMissingPlayerKey is returned when an observation or reward map has
	// no entry for this client's player index.
	ErrMissingPlayerKey = errors.New("mux: received wrong data: player key missing")
)

// Entry arities on the wire.
const (
	plainEntryLen    = 2
	extendedEntryLen = 5
)

// Round is one decoded round batch: the instance indices the server wants
// actions for, this client's own observation per instance, and, when a trick
// or episode boundary was crossed, this client's own delayed reward per
// instance plus the episode-batch completion flag.
//
// Indices, Observations, and Rewards are index-aligned; Rewards is only
// meaningful when HasRewards is set, and Observations is nil on a completion
// round (AllDone). The alignment is load-bearing: reward
// scatter, the gather for the decision call, and the action scatter-back all
// traverse Indices in this order.
type Round struct {
	Indices      []int
	Observations []policy.Observation
	Rewards      []float64
	HasRewards   bool
	AllDone      bool
}

// Empty reports whether the server requested actions for no instances this
// round. The response to an empty round is an empty action list.
func (r Round) Empty() bool {
	return len(r.Indices) == 0
}

// ParseRound decodes a structured data payload into a Round. The entry shape
// (plain vs extended) is decided once, from the first entry's arity, and
// every other entry is validated against it; the protocol guarantees batch
// homogeneity and a violation is treated as corruption.
//
// On a completion round (AllDone set) the observations are never acted on,
// so they are not extracted and Observations stays nil; the final delayed
// rewards are still required.
//
// Parameters:
//   - data: The raw structured payload of one round
//   - playerKey: This client's player index in its wire form (string)
//
// Returns:
//   - The decoded Round
//   - ErrBadRoundShape or ErrMissingPlayerKey on protocol violations, or the
//     underlying JSON error
func ParseRound(data json.RawMessage, playerKey string) (Round, error) {
	var entries [][]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return Round{}, fmt.Errorf("%w: %v", ErrBadRoundShape, err)
	}
	if len(entries) == 0 {
		return Round{}, nil
	}

	extended := len(entries[0]) >= 4
	arity := plainEntryLen
	if extended {
		arity = extendedEntryLen
	}

	round := Round{
		Indices:    make([]int, len(entries)),
		HasRewards: extended,
	}
	if extended {
		round.Rewards = make([]float64, len(entries))

		// The completion flag lives in the first entry's done map; the
		// server repeats it across the batch.
		var done map[string]bool
		if err := json.Unmarshal(entries[0][3], &done); err != nil {
			return Round{}, fmt.Errorf("%w: done flags: %v", ErrBadRoundShape, err)
		}
		round.AllDone = done[allDoneKey]
	}
	if !round.AllDone {
		round.Observations = make([]policy.Observation, len(entries))
	}

	for i, entry := range entries {
		if len(entry) != arity {
			return Round{}, fmt.Errorf("%w: entry %d has %d fields, expected %d",
				ErrBadRoundShape, i, len(entry), arity)
		}

		if err := json.Unmarshal(entry[0], &round.Indices[i]); err != nil {
			return Round{}, fmt.Errorf("%w: entry %d index: %v", ErrBadRoundShape, i, err)
		}

		if !round.AllDone {
			obs, err := ownValue[json.RawMessage](entry[1], playerKey)
			if err != nil {
				return Round{}, fmt.Errorf("entry %d observation: %w", i, err)
			}
			round.Observations[i] = policy.Observation(obs)
		}

		if extended {
			reward, err := ownValue[float64](entry[2], playerKey)
			if err != nil {
				return Round{}, fmt.Errorf("entry %d reward: %w", i, err)
			}
			round.Rewards[i] = reward
		}
	}

	return round, nil
}

// ownValue extracts this client's component from a map keyed by stringified
// player indices.
func ownValue[T any](raw json.RawMessage, playerKey string) (T, error) {
	var zero T
	var byPlayer map[string]T
	if err := json.Unmarshal(raw, &byPlayer); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrBadRoundShape, err)
	}
	value, ok := byPlayer[playerKey]
	if !ok {
		return zero, fmt.Errorf("%w %q", ErrMissingPlayerKey, playerKey)
	}
	return value, nil
}
