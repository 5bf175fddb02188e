package mux

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyberinferno/hearts-agent/policy"
)

// Gather/scatter violations. Both indicate protocol desynchronization and
// are unrecoverable.
var (
	// ErrIndexOutOfRange is returned when a round names an instance index
	// outside the table's fixed capacity.
	ErrIndexOutOfRange = errors.New("mux: instance index out of range")

	// ErrMisaligned is returned when the policy's output is not aligned
	// one-to-one with the round's index list.
	ErrMisaligned = errors.New("mux: action list not aligned with instance indices")
)

// maybe is an explicit optional: per-slot history starts undefined and only
// becomes set once the instance has taken a turn (action) or crossed a
// boundary (reward).
type maybe[T any] struct {
	value T
	set   bool
}

func (m *maybe[T]) put(v T) {
	m.value = v
	m.set = true
}

// slot is one game instance's client-side memory.
type slot struct {
	state      policy.State
	prevAction maybe[policy.Action]
	prevReward maybe[float64]
}

// Table is a fixed-capacity arena of instance slots for one episode-batch.
// It is created fresh at every episode-batch start and discarded at the
// next; slots are addressed by the instance indices the server names in each
// round. Not safe for concurrent use — the session is single-threaded.
type Table struct {
	slots []slot
}

// NewTable creates a table of n fresh slots, each holding a new initial
// decision state and undefined previous action and reward.
//
// Parameters:
//   - n: Number of game instances run in parallel per episode-batch
//   - p: Policy supplying the initial decision states
//
// Returns:
//   - The new Table
func NewTable(n int, p policy.Policy) *Table {
	slots := make([]slot, n)
	for i := range slots {
		slots[i].state = p.InitialState()
	}
	return &Table{slots: slots}
}

// Size returns the table's fixed capacity.
func (t *Table) Size() int {
	return len(t.slots)
}

// ApplyRewards scatters the round's delayed rewards into the previous-reward
// slots named by the round's index list, in round order. It must be called
// before Decide for rounds that carry rewards, including the final round of
// an episode-batch.
//
// Parameters:
//   - r: The round; must have HasRewards set
//
// Returns:
//   - ErrIndexOutOfRange or ErrMisaligned on protocol violations
func (t *Table) ApplyRewards(r Round) error {
	if !r.HasRewards {
		return nil
	}
	if len(r.Rewards) != len(r.Indices) {
		return fmt.Errorf("%w: %d rewards for %d indices", ErrMisaligned, len(r.Rewards), len(r.Indices))
	}
	if err := t.checkIndices(r.Indices); err != nil {
		return err
	}

	for i, idx := range r.Indices {
		t.slots[idx].prevReward.put(r.Rewards[i])
	}
	return nil
}

// Decide gathers the selected slots' memory in round order, invokes the
// policy once for the whole batch, scatters the resulting actions and
// updated states back over the identical index list, and returns the actions
// aligned with the round's index order.
//
// If any selected slot's previous action (or previous reward) is still
// undefined, that entire side of the history is replaced by the no-history
// marker rather than a partially-defined collection.
//
// Parameters:
//   - ctx: Context for cancellation
//   - r: The round to act on; must not be empty
//   - p: The decision policy
//
// Returns:
//   - One action per round entry, in round order
//   - An error on index violations, misaligned policy output, or policy
//     failure
func (t *Table) Decide(ctx context.Context, r Round, p policy.Policy) ([]policy.Action, error) {
	if err := t.checkIndices(r.Indices); err != nil {
		return nil, err
	}

	states := make([]policy.State, len(r.Indices))
	for i, idx := range r.Indices {
		states[i] = t.slots[idx].state
	}

	actions, newStates, err := p.ComputeActions(ctx, r.Observations, states, t.gatherHistory(r.Indices))
	if err != nil {
		return nil, err
	}
	if len(actions) != len(r.Indices) || len(newStates) != len(r.Indices) {
		return nil, fmt.Errorf("%w: got %d actions and %d states for %d indices",
			ErrMisaligned, len(actions), len(newStates), len(r.Indices))
	}

	for i, idx := range r.Indices {
		t.slots[idx].state = newStates[i]
		t.slots[idx].prevAction.put(actions[i])
	}
	return actions, nil
}

// gatherHistory collects previous actions and rewards for the given indices,
// collapsing each side to absent when any selected slot is still undefined.
func (t *Table) gatherHistory(indices []int) policy.History {
	hist := policy.History{
		HasActions: true,
		Actions:    make([]policy.Action, len(indices)),
		HasRewards: true,
		Rewards:    make([]float64, len(indices)),
	}

	for i, idx := range indices {
		s := t.slots[idx]
		if !s.prevAction.set {
			hist.HasActions = false
		}
		if !s.prevReward.set {
			hist.HasRewards = false
		}
		hist.Actions[i] = s.prevAction.value
		hist.Rewards[i] = s.prevReward.value
	}

	if !hist.HasActions {
		hist.Actions = nil
	}
	if !hist.HasRewards {
		hist.Rewards = nil
	}
	return hist
}

// MeanFinalReward averages the previous-reward values of every slot that has
// one. At episode-batch end this is the mean of the final delayed rewards,
// which the results recorder persists per batch. Returns 0 when no slot has
// a reward yet.
func (t *Table) MeanFinalReward() float64 {
	var sum float64
	var n int
	for _, s := range t.slots {
		if s.prevReward.set {
			sum += s.prevReward.value
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// checkIndices rejects indices outside the arena's fixed capacity.
func (t *Table) checkIndices(indices []int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= len(t.slots) {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, idx, len(t.slots))
		}
	}
	return nil
}
