package wire

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cyberinferno/hearts-agent/logging"
)

// ShardReader returns the bytes of one blocking read from the connection.
// It must return at least one byte on success; transport-level conditions
// (peer closure, timeout) are reported through the error.
type ShardReader func() ([]byte, error)

// Decoder turns a raw shard stream into decoded Messages. Each call to Next
// consumes exactly one frame's worth of bytes; anything read past the frame
// boundary is carried forward to the following call, so frames may arrive
// split or coalesced arbitrarily.
//
// Decoder is not safe for concurrent use; the session owns exactly one.
type Decoder struct {
	cfg  Config
	read ShardReader
	log  logging.Logger

	carry    []byte
	maxFrame int
}

// NewDecoder creates a Decoder reading shards from the given function.
//
// Parameters:
//   - cfg: Protocol configuration (separator, prefix and frame limits)
//   - read: Function performing one blocking read from the connection
//   - log: Logger for decode-failure diagnostics
//
// Returns:
//   - A Decoder with the frame limit initialized from cfg.MaxFrameBytes
func NewDecoder(cfg Config, read ShardReader, log logging.Logger) *Decoder {
	return &Decoder{
		cfg:      cfg,
		read:     read,
		log:      log,
		maxFrame: cfg.MaxFrameBytes,
	}
}

// SetFrameLimit replaces the maximum accepted payload length. The session
// calls this after the handshake, when the server may start batching up to
// num_parallel_games observations into a single frame.
//
// Parameters:
//   - n: The new maximum payload length in bytes; values below 1 are ignored
func (d *Decoder) SetFrameLimit(n int) {
	if n > 0 {
		d.maxFrame = n
	}
}

// Next reads and decodes exactly one frame.
//
// Malformed payloads (decompression or JSON failures) are reported as a
// KindNotice Message carrying DecodeFailureNotice, with the raw bytes logged
// for the operator; they never abort the stream. Framing violations (missing
// or malformed length prefix, oversized frame) and transport errors from the
// shard reader are returned as errors and must be treated as fatal.
//
// Returns:
//   - The decoded Message
//   - An error on framing violations or transport failure
func (d *Decoder) Next() (Message, error) {
	length, rest, err := d.readLength()
	if err != nil {
		return Message{}, err
	}

	payload, err := d.readPayload(length, rest)
	if err != nil {
		return Message{}, err
	}

	return d.decode(payload), nil
}

// readLength discovers the decimal length prefix, reading shards until the
// separator appears. It returns the declared payload length and any bytes
// received past the separator, which belong to the payload.
func (d *Decoder) readLength() (int, []byte, error) {
	buf := d.carry
	d.carry = nil

	sep := d.cfg.Separator
	end := bytes.Index(buf, sep)
	for end < 0 && len(buf) < d.cfg.MaxPrefixBytes {
		shard, err := d.read()
		if err != nil {
			return 0, nil, err
		}
		buf = append(buf, shard...)
		end = bytes.Index(buf, sep)
	}
	if end < 0 {
		return 0, nil, fmt.Errorf("%w after %d bytes", ErrNoLengthPrefix, len(buf))
	}

	length, err := strconv.Atoi(string(buf[:end]))
	if err != nil || length < 0 {
		return 0, nil, fmt.Errorf("%w: %q", ErrBadLengthPrefix, buf[:end])
	}
	if length > d.maxFrame {
		return 0, nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFrameTooLarge, length, d.maxFrame)
	}

	return length, buf[end+len(sep):], nil
}

// readPayload accumulates shards until the declared payload length is
// available, keeping any surplus for the next frame.
func (d *Decoder) readPayload(length int, rest []byte) ([]byte, error) {
	buf := rest
	for len(buf) < length {
		shard, err := d.read()
		if err != nil {
			return nil, err
		}
		buf = append(buf, shard...)
	}

	payload := buf[:length]
	if extra := buf[length:]; len(extra) > 0 {
		d.carry = append([]byte(nil), extra...)
	}
	return payload, nil
}

// decode decompresses and JSON-decodes an assembled payload, classifying the
// result as notice or data.
func (d *Decoder) decode(payload []byte) Message {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return d.decodeFailure(payload, err)
	}
	body, err := io.ReadAll(zr)
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return d.decodeFailure(payload, err)
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return d.decodeFailure(body, err)
	}

	if notice, ok := value.(string); ok {
		return Message{Kind: KindNotice, Notice: notice}
	}
	return Message{Kind: KindData, Data: json.RawMessage(body)}
}

// decodeFailure logs the raw bytes alongside the underlying error and folds
// the failure into the notice flow so the session keeps running.
func (d *Decoder) decodeFailure(raw []byte, err error) Message {
	d.log.Error("failed decoding message payload",
		logging.F("error", err.Error()),
		logging.F("raw", fmt.Sprintf("%q", raw)),
	)
	return Message{Kind: KindNotice, Notice: DecodeFailureNotice}
}
