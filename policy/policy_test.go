package policy

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func maskedObs(t *testing.T, mask []int) Observation {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"action_mask": mask, "obs": []int{1, 2, 3}})
	require.NoError(t, err)
	return raw
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("nope", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestNew_BuiltinsRegistered(t *testing.T) {
	algos := Algorithms()
	assert.Contains(t, algos, "random")
	assert.Contains(t, algos, "rulebased")
}

func TestConfig_HandSize(t *testing.T) {
	assert.Equal(t, 13, Config{DeckSize: 52, NumPlayers: 4}.HandSize())
	assert.Equal(t, 0, Config{DeckSize: 52}.HandSize())
}

func TestRandomPolicy_RespectsActionMask(t *testing.T) {
	p := NewRandomPolicy(Config{MaskActions: true, DeckSize: 52, NumPlayers: 4}, 1)

	obs := maskedObs(t, []int{0, 0, 1, 0, 1})
	for i := 0; i < 20; i++ {
		actions, states, err := p.ComputeActions(
			context.Background(), []Observation{obs}, []State{nil}, NoHistory())
		require.NoError(t, err)
		require.Len(t, actions, 1)
		require.Len(t, states, 1)
		assert.Contains(t, []Action{2, 4}, actions[0])
	}
}

func TestRandomPolicy_UnmaskedStaysInActionSpace(t *testing.T) {
	p := NewRandomPolicy(Config{DeckSize: 52, NumPlayers: 4}, 7)

	obs := Observation(`{"obs": [0]}`)
	actions, _, err := p.ComputeActions(
		context.Background(), []Observation{obs, obs, obs}, make([]State, 3), NoHistory())
	require.NoError(t, err)
	for _, a := range actions {
		assert.GreaterOrEqual(t, int(a), 0)
		assert.Less(t, int(a), 13)
	}
}

func TestRuleBasedPolicy_PlaysLowestLegal(t *testing.T) {
	p := NewRuleBasedPolicy(Config{MaskActions: true, DeckSize: 52, NumPlayers: 4})

	actions, _, err := p.ComputeActions(
		context.Background(),
		[]Observation{maskedObs(t, []int{0, 0, 0, 1, 1}), maskedObs(t, []int{1, 1, 0})},
		make([]State, 2),
		NoHistory(),
	)
	require.NoError(t, err)
	assert.Equal(t, []Action{3, 0}, actions)
}

func TestComputeActions_CancelledContext(t *testing.T) {
	p := NewRuleBasedPolicy(Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.ComputeActions(ctx, nil, nil, NoHistory())
	assert.ErrorIs(t, err, context.Canceled)
}
