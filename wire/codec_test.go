package wire

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/cyberinferno/hearts-agent/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shardQueue feeds a decoder from pre-split byte shards, mimicking arbitrary
// TCP read boundaries.
type shardQueue struct {
	shards [][]byte
	err    error
}

func (q *shardQueue) read() ([]byte, error) {
	if len(q.shards) == 0 {
		if q.err != nil {
			return nil, q.err
		}
		return nil, assert.AnError
	}
	shard := q.shards[0]
	q.shards = q.shards[1:]
	return shard, nil
}

// splitBytes cuts data into consecutive shards of at most size bytes.
func splitBytes(data []byte, size int) [][]byte {
	var shards [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		shards = append(shards, data[:n])
		data = data[n:]
	}
	return shards
}

func mustEncode(t *testing.T, cfg Config, v any) []byte {
	t.Helper()
	frame, err := Encode(cfg, v)
	require.NoError(t, err)
	return frame
}

func newTestDecoder(cfg Config, q *shardQueue) *Decoder {
	return NewDecoder(cfg, q.read, logging.Nop())
}

func TestDecoder_RoundTrip_AnyShardSize(t *testing.T) {
	cfg := DefaultConfig()
	payload := map[string]any{
		"player_index": float64(1),
		"num_players":  float64(4),
		"note":         "round trip",
	}
	frame := mustEncode(t, cfg, payload)

	for _, shardSize := range []int{1, 2, 3, 7, 64, len(frame)} {
		q := &shardQueue{shards: splitBytes(frame, shardSize)}
		dec := newTestDecoder(cfg, q)

		msg, err := dec.Next()
		require.NoError(t, err, "shard size %d", shardSize)
		require.Equal(t, KindData, msg.Kind)

		var got map[string]any
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, payload, got, "shard size %d", shardSize)
	}
}

func TestDecoder_SeparatorSplitAcrossShards(t *testing.T) {
	cfg := DefaultConfig()
	frame := mustEncode(t, cfg, "hello")

	// Cut exactly inside the separator sequence.
	sepStart := bytes.Index(frame, cfg.Separator)
	cut := sepStart + 1
	q := &shardQueue{shards: [][]byte{frame[:cut], frame[cut:]}}
	dec := newTestDecoder(cfg, q)

	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, KindNotice, msg.Kind)
	assert.Equal(t, "hello", msg.Notice)
}

func TestDecoder_BackToBackFramesCarryForward(t *testing.T) {
	cfg := DefaultConfig()
	first := mustEncode(t, cfg, "first")
	second := mustEncode(t, cfg, "second")

	// Both frames arrive in a single shard; the decoder must consume exactly
	// one frame per call and reuse the surplus.
	q := &shardQueue{shards: [][]byte{append(append([]byte{}, first...), second...)}}
	dec := newTestDecoder(cfg, q)

	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "first", msg.Notice)

	msg, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, "second", msg.Notice)
}

func TestDecoder_NoticeVsData(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name  string
		value any
		kind  Kind
	}{
		{"string payload is a notice", "server says hi", KindNotice},
		{"object payload is data", map[string]int{"deck_size": 52}, KindData},
		{"array payload is data", []any{[]any{0, map[string]any{}}}, KindData},
		{"empty array is data", []any{}, KindData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &shardQueue{shards: [][]byte{mustEncode(t, cfg, tt.value)}}
			dec := newTestDecoder(cfg, q)

			msg, err := dec.Next()
			require.NoError(t, err)
			assert.Equal(t, tt.kind, msg.Kind)
		})
	}
}

func TestDecoder_PrefixSearchBudgetExceeded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPrefixBytes = 8

	// Digits forever, never a separator.
	q := &shardQueue{shards: [][]byte{[]byte("123"), []byte("456"), []byte("789")}}
	dec := newTestDecoder(cfg, q)

	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrNoLengthPrefix)
}

func TestDecoder_MalformedLengthPrefix(t *testing.T) {
	cfg := DefaultConfig()
	q := &shardQueue{shards: [][]byte{append([]byte("12x"), cfg.Separator...)}}
	dec := newTestDecoder(cfg, q)

	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrBadLengthPrefix)
}

func TestDecoder_DeclaredLengthOverLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameBytes = 16

	head := append([]byte("100"), cfg.Separator...)
	q := &shardQueue{shards: [][]byte{head}}
	dec := newTestDecoder(cfg, q)

	_, err := dec.Next()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestDecoder_SetFrameLimitRaisesBound(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFrameBytes = 4

	frame := mustEncode(t, cfg, "a frame bigger than four payload bytes")
	q := &shardQueue{shards: [][]byte{frame, frame}}
	dec := newTestDecoder(cfg, q)

	_, err := dec.Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)

	dec = newTestDecoder(cfg, &shardQueue{shards: [][]byte{frame}})
	dec.SetFrameLimit(1 << 16)
	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, KindNotice, msg.Kind)
}

func TestDecoder_DecodeFailureYieldsSentinelAndRecovers(t *testing.T) {
	cfg := DefaultConfig()

	// Valid framing around a payload that is not zlib data.
	junk := []byte("this is not compressed")
	bad := append([]byte(strconv.Itoa(len(junk))), cfg.Separator...)
	bad = append(bad, junk...)

	good := mustEncode(t, cfg, map[string]int{"ok": 1})

	q := &shardQueue{shards: [][]byte{bad, good}}
	dec := newTestDecoder(cfg, q)

	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, KindNotice, msg.Kind)
	assert.Equal(t, DecodeFailureNotice, msg.Notice)

	// A subsequent well-formed frame is still processed correctly.
	msg, err = dec.Next()
	require.NoError(t, err)
	assert.Equal(t, KindData, msg.Kind)
}

func TestDecoder_CompressedGarbageJSONYieldsSentinel(t *testing.T) {
	cfg := DefaultConfig()

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	_, err := zw.Write([]byte("{not json"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	frame := append([]byte(strconv.Itoa(compressed.Len())), cfg.Separator...)
	frame = append(frame, compressed.Bytes()...)

	dec := newTestDecoder(cfg, &shardQueue{shards: [][]byte{frame}})
	msg, err := dec.Next()
	require.NoError(t, err)
	assert.Equal(t, DecodeFailureNotice, msg.Notice)
}

func TestDecoder_TransportErrorPropagates(t *testing.T) {
	cfg := DefaultConfig()
	q := &shardQueue{err: assert.AnError}
	dec := newTestDecoder(cfg, q)

	_, err := dec.Next()
	assert.ErrorIs(t, err, assert.AnError)
}
