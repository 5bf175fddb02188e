package policy

import (
	"context"
	"math/rand"
)

func init() {
	Register("random", func(cfg Config) (Policy, error) {
		return NewRandomPolicy(cfg, rand.Int63()), nil
	})
}

// RandomPolicy plays a uniformly random action each turn, restricted to the
// legal actions when the server provides a mask. It keeps no decision state
// and serves as the evaluation baseline.
type RandomPolicy struct {
	cfg Config
	rng *rand.Rand
}

// NewRandomPolicy creates a RandomPolicy with a deterministic seed, which
// tests use for reproducible action sequences.
//
// Parameters:
//   - cfg: Policy configuration; DeckSize and NumPlayers size the fallback
//     action space when no mask is present
//   - seed: Seed for the policy's private random source
//
// Returns:
//   - The new RandomPolicy
func NewRandomPolicy(cfg Config, seed int64) *RandomPolicy {
	return &RandomPolicy{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// InitialState implements Policy. The random policy is stateless.
func (p *RandomPolicy) InitialState() State {
	return nil
}

// ComputeActions implements Policy.
func (p *RandomPolicy) ComputeActions(
	ctx context.Context,
	observations []Observation,
	states []State,
	history History,
) ([]Action, []State, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	actions := make([]Action, len(observations))
	for i, obs := range observations {
		if legal := legalActions(obs); len(legal) > 0 {
			actions[i] = legal[p.rng.Intn(len(legal))]
		} else if n := p.cfg.HandSize(); n > 0 {
			actions[i] = Action(p.rng.Intn(n))
		}
	}
	return actions, states, nil
}
