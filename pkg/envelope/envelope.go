// Package envelope implements the self-describing binary wrapper persisted
// in place of raw content: a 4-byte big-endian header discriminant followed
// by a compact CBOR body whose variant is either an independently compressed
// Single blob or a Packed multi-entry container.
package envelope

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// HeaderCompactV0 is the only recognized header discriminant. Any other
// value is a hard decode error: future header kinds must be introduced
// without old readers silently misparsing them.
const HeaderCompactV0 uint32 = 0

const headerLength = 4

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	// Unknown fields in an envelope body are foreign format extensions and
	// must fail explicitly rather than be silently dropped.
	decMode, err = cbor.DecOptions{ExtraReturnErrors: cbor.ExtraDecErrorUnknownField}.DecMode()
	if err != nil {
		panic(err)
	}
}

// UnknownHeaderError reports an envelope whose header discriminant is not in
// the recognized set.
type UnknownHeaderError struct {
	Header uint32
}

func (e *UnknownHeaderError) Error() string {
	return fmt.Sprintf("unknown envelope header %d", e.Header)
}

// Envelope is the decoded body of a storage envelope. Exactly one variant is
// set.
type Envelope struct {
	Single *Single `cbor:"1,keyasint,omitempty"`
	Packed *Packed `cbor:"2,keyasint,omitempty"`
}

// EncodeWithHeader frames body with a 4-byte big-endian header. The output
// buffer is allocated once at its final size.
func EncodeWithHeader(header uint32, body []byte) []byte {
	out := make([]byte, headerLength+len(body))
	binary.BigEndian.PutUint32(out[:headerLength], header)
	copy(out[headerLength:], body)
	return out
}

// SplitHeader reads the 4-byte header off raw and returns it with the
// remaining body bytes.
func SplitHeader(raw []byte) (uint32, []byte, error) {
	if len(raw) < headerLength {
		return 0, nil, fmt.Errorf("envelope too short: %d bytes, need at least %d for header", len(raw), headerLength)
	}
	return binary.BigEndian.Uint32(raw[:headerLength]), raw[headerLength:], nil
}

// Encode serializes the envelope body and frames it under HeaderCompactV0.
func (e Envelope) Encode() ([]byte, error) {
	if (e.Single == nil) == (e.Packed == nil) {
		return nil, fmt.Errorf("envelope must have exactly one of Single or Packed set")
	}
	body, err := encMode.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope body: %w", err)
	}
	return EncodeWithHeader(HeaderCompactV0, body), nil
}

// Decode parses a framed envelope. An unrecognized header discriminant is an
// UnknownHeaderError; malformed body bytes are a decode error, never a
// silent default.
func Decode(raw []byte) (Envelope, error) {
	header, body, err := SplitHeader(raw)
	if err != nil {
		return Envelope{}, err
	}
	if header != HeaderCompactV0 {
		return Envelope{}, &UnknownHeaderError{Header: header}
	}

	var env Envelope
	if err := decMode.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope body: %w", err)
	}
	if (env.Single == nil) == (env.Packed == nil) {
		return Envelope{}, fmt.Errorf("corrupt envelope: expected exactly one of Single or Packed")
	}
	return env, nil
}
