// Package protocol implements the wire format exchanged between the driver
// and the Tcl child process: a flat key/value RawMessage frame and the four
// typed messages built on top of it (TclHello, PyProcedureCall,
// TclProcedureResult, PyExit).
package protocol

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
)

// keyPattern is the grammar enforced for RawMessage keys. The source this
// bridge is based on applied two different patterns in different places
// ("[A-Za-z_]+" on decode, "[a-zA-Z_+]*" on encode); this implementation
// uses the stricter, underscore-only form and checks it in Encode. Decode
// does not check keys.
var keyPattern = regexp.MustCompile(`^[A-Za-z_]+$`)

// ErrMalformedFrame is returned when a byte stream does not decode into a
// well-formed RawMessage: an odd number of newline-separated tokens, or a
// value token that is not valid base64.
var ErrMalformedFrame = errors.New("protocol: malformed frame")

// ErrInvalidKey is returned by Encode when a key does not match the
// RawMessage key grammar.
var ErrInvalidKey = errors.New("protocol: invalid key")

// classKey is the reserved key that carries the message tag.
const classKey = "class"

// RawMessage is an ordered mapping of ASCII keys to UTF-8 text values.
// Insertion order is preserved across Decode -> Encode round trips but
// carries no semantic meaning.
type RawMessage struct {
	keys   []string
	values map[string]string
}

// NewRawMessage returns an empty RawMessage ready for Set calls.
func NewRawMessage() *RawMessage {
	return &RawMessage{values: make(map[string]string)}
}

// Set assigns value to key, preserving the position of an existing key or
// appending a new one at the end.
func (m *RawMessage) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key and whether it was present.
func (m *RawMessage) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *RawMessage) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len reports the number of key/value pairs.
func (m *RawMessage) Len() int {
	return len(m.keys)
}

// Equal reports whether two RawMessages carry the same key/value pairs.
// Key order is not compared.
func (m *RawMessage) Equal(other *RawMessage) bool {
	if other == nil || len(m.keys) != len(other.keys) {
		return false
	}
	for k, v := range m.values {
		ov, ok := other.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Encode renders the message as the wire format: 2N newline-joined tokens,
// no trailing newline. Each key is written as its ASCII bytes, each value
// as the base64 encoding of its UTF-8 bytes.
func (m *RawMessage) Encode() ([]byte, error) {
	var buf bytes.Buffer
	for i, key := range m.keys {
		if !keyPattern.MatchString(key) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(key)
		buf.WriteByte('\n')
		buf.WriteString(base64.StdEncoding.EncodeToString([]byte(m.values[key])))
	}
	return buf.Bytes(), nil
}

// Decode parses the wire format produced by Encode. It reads the entire
// byte slice (the caller is expected to have read a FIFO to EOF first).
func Decode(data []byte) (*RawMessage, error) {
	if len(data) == 0 {
		return NewRawMessage(), nil
	}
	tokens := bytes.Split(data, []byte("\n"))
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of tokens (%d)", ErrMalformedFrame, len(tokens))
	}

	msg := NewRawMessage()
	for i := 0; i < len(tokens); i += 2 {
		key := string(tokens[i])
		decoded, err := base64.StdEncoding.DecodeString(string(tokens[i+1]))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64 value for key %q: %v", ErrMalformedFrame, key, err)
		}
		msg.Set(key, string(decoded))
	}
	return msg, nil
}

// Class returns the value of the reserved "class" key, if present.
func (m *RawMessage) Class() (string, bool) {
	return m.Get(classKey)
}
