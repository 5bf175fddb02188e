// Package wire implements the length-prefixed frame protocol spoken by the
// evaluation server. Every frame on the wire is the ASCII decimal byte length
// of the payload, a fixed separator sequence, and exactly that many payload
// bytes. Payloads are zlib-compressed JSON encoding either a human-readable
// notice string or structured game data; the two variants are distinguished
// once, at decode time, and exposed as a tagged Message.
package wire

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"errors"
	"strconv"
)

// DecodeFailureNotice is the sentinel notice returned in place of a payload
// whose decompression or JSON decoding failed. A malformed payload is a
// recoverable protocol hiccup, not a transport fault, so it is folded into
// the notice flow instead of aborting the session.
const DecodeFailureNotice = "[See decoding error message.]"

// Protocol errors. All of these indicate a transport bug or a peer speaking
// a different protocol version; callers are expected to treat them as fatal.
var (
	// ErrNoLengthPrefix is returned when the separator was not found within
	// the bounded prefix-search budget.
	ErrNoLengthPrefix = errors.New("wire: message length prefix not found")

	// ErrBadLengthPrefix is returned when the bytes before the separator do
	// not parse as a non-negative decimal integer.
	ErrBadLengthPrefix = errors.New("wire: malformed message length prefix")

	// ErrFrameTooLarge is returned when a declared payload length exceeds
	// the configured maximum frame size.
	ErrFrameTooLarge = errors.New("wire: message is too long")
)

// Config holds the protocol limits and constants shared by the codec and the
// session. It is immutable after construction and passed explicitly rather
// than kept as package state.
type Config struct {
	// Separator is the byte sequence terminating the decimal length prefix.
	// It must not contain ASCII digits.
	Separator []byte
	// MaxPrefixBytes bounds how many bytes may be read while searching for
	// the separator before the stream is declared corrupt.
	MaxPrefixBytes int
	// MaxFrameBytes bounds the declared payload length of a single frame.
	// The session raises this after the handshake, once the number of
	// parallel game instances is known.
	MaxFrameBytes int
	// AckToken is the payload acknowledging a notice or a finished
	// episode-batch.
	AckToken string
	// MaxNameBytes bounds the encoded length of the display name sent
	// during registration.
	MaxNameBytes int
}

// DefaultConfig returns the protocol constants the evaluation server ships
// with. Override individual fields only when talking to a server configured
// differently.
//
// Returns:
//   - A Config with the standard separator, limits, and ack token
func DefaultConfig() Config {
	return Config{
		Separator:      []byte("::"),
		MaxPrefixBytes: 64,
		MaxFrameBytes:  8192,
		AckToken:       "OK",
		MaxNameBytes:   64,
	}
}

// Kind discriminates the two payload variants a frame can carry.
type Kind int

const (
	// KindNotice marks a human-readable text message from the server. It is
	// out-of-band: the client prints it, acknowledges it, and keeps waiting
	// for structured data.
	KindNotice Kind = iota
	// KindData marks structured game or session content.
	KindData
)

// Message is the decoded form of a frame's payload: either a notice string
// or raw structured data, never both. The variant is decided once at decode
// time from the decoded JSON value's shape (a JSON string is a notice,
// anything else is data).
type Message struct {
	Kind   Kind
	Notice string          // set only when Kind == KindNotice
	Data   json.RawMessage // set only when Kind == KindData
}

// Encode serializes a value into a complete frame: JSON-encode, compress,
// and prepend the decimal length prefix and separator.
//
// Parameters:
//   - cfg: Protocol configuration supplying the separator
//   - v: The value to send; marshaled with encoding/json
//
// Returns:
//   - The full frame bytes ready to write to the connection
//   - An error if JSON marshaling fails
func Encode(cfg Config, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var frame bytes.Buffer
	frame.WriteString(strconv.Itoa(compressed.Len()))
	frame.Write(cfg.Separator)
	frame.Write(compressed.Bytes())
	return frame.Bytes(), nil
}
