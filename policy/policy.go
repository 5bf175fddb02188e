// Package policy defines the decision-making collaborator of the evaluation
// client. The session and multiplexer treat a Policy as an opaque function
// from a batch of observations (plus per-instance memory) to a batch of
// actions; how actions are chosen, what a checkpoint contains, and the game's
// legality rules are entirely the policy's concern.
package policy

import (
	"context"
	"encoding/json"
)

// Observation is one game instance's view of the game state as delivered by
// the server. Its structure is policy-defined; the client never inspects it.
type Observation = json.RawMessage

// Action identifies the card to play, as an index into the action space.
type Action int

// State is a policy's opaque per-instance decision state (e.g. a recurrent
// model's hidden state). The multiplexer stores and returns it untouched.
type State any

// History carries the previous actions and previous rewards for the slots
// selected in a round. Either side is present as a complete, index-aligned
// slice or absent as a whole: if any selected slot has no recorded action
// (or reward) yet, that entire side is withheld and the policy must treat
// the call as history-free for all selected instances simultaneously.
type History struct {
	HasActions bool
	Actions    []Action
	HasRewards bool
	Rewards    []float64
}

// NoHistory returns the marker for a history-free call.
func NoHistory() History {
	return History{}
}

// Policy computes actions for batches of game instances.
type Policy interface {
	// InitialState returns a fresh decision state for one game instance. It
	// is called once per instance at the start of every episode-batch.
	InitialState() State

	// ComputeActions returns one action and one updated decision state per
	// observation, in the same order. The i-th entries of observations,
	// states, and any present history sides all describe the same instance.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - observations: One observation per selected instance
	//   - states: The instances' current decision states, index-aligned
	//   - history: Previous actions/rewards, or the no-history marker
	//
	// Returns:
	//   - One action per observation, index-aligned
	//   - One updated decision state per observation, index-aligned
	//   - An error if the decision computation fails
	ComputeActions(
		ctx context.Context,
		observations []Observation,
		states []State,
		history History,
	) ([]Action, []State, error)
}

// Config carries everything a policy constructor may need. Checkpoint
// semantics are owned by the individual policy; built-in heuristics ignore
// the path entirely.
type Config struct {
	// CheckpointPath locates the model checkpoint, when the policy uses one.
	CheckpointPath string
	// Framework selects the compute framework a learned policy was trained
	// with. Opaque to the client.
	Framework string
	// MaskActions reports whether the server wraps observations with a
	// legal-action mask.
	MaskActions bool
	// NumPlayers is the number of seats at the table.
	NumPlayers int
	// DeckSize is the number of cards in the deck.
	DeckSize int
}

// HandSize returns the maximum number of cards on a hand, which is the size
// of the action space.
func (c Config) HandSize() int {
	if c.NumPlayers <= 0 {
		return 0
	}
	return c.DeckSize / c.NumPlayers
}

// maskedObservation mirrors the wrapped observation shape the server sends
// when action masking is enabled.
type maskedObservation struct {
	ActionMask []int `json:"action_mask"`
}

// legalActions extracts the indices allowed by the observation's action
// mask. It returns nil when no mask is present or none of its entries are
// set, in which case the caller falls back to the full action space.
func legalActions(obs Observation) []Action {
	var wrapped maskedObservation
	if err := json.Unmarshal(obs, &wrapped); err != nil {
		return nil
	}

	var legal []Action
	for i, allowed := range wrapped.ActionMask {
		if allowed != 0 {
			legal = append(legal, Action(i))
		}
	}
	return legal
}
