package policy

import "context"

func init() {
	Register("rulebased", func(cfg Config) (Policy, error) {
		return NewRuleBasedPolicy(cfg), nil
	})
}

// RuleBasedPolicy plays the lowest-indexed legal action every turn. The
// action space orders a hand by ascending rank, so this approximates the
// classic "duck low" Hearts heuristic while staying independent of the
// game's rules, which the client does not model.
type RuleBasedPolicy struct {
	cfg Config
}

// NewRuleBasedPolicy creates a RuleBasedPolicy.
//
// Parameters:
//   - cfg: Policy configuration
//
// Returns:
//   - The new RuleBasedPolicy
func NewRuleBasedPolicy(cfg Config) *RuleBasedPolicy {
	return &RuleBasedPolicy{cfg: cfg}
}

// InitialState implements Policy. The rule-based policy is stateless.
func (p *RuleBasedPolicy) InitialState() State {
	return nil
}

// ComputeActions implements Policy.
func (p *RuleBasedPolicy) ComputeActions(
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
			actions[i] = legal[0]
		}
	}
	return actions, states, nil
}
