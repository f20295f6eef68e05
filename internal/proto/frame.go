// Package proto defines the wire protocol shared between vex (client) and
// vexd (daemon): a length-prefixed framing layer, the command taxonomy
// carried over it, and the PTY streaming sub-protocol used after a
// successful attach.
//
// Every frame, on both the local Unix transport and the authenticated TLS
// transport, has the same shape: a big-endian uint32 byte count followed by
// that many bytes of a self-describing tagged JSON envelope. There is no
// compression and no keepalive; callers that need timeouts apply them at
// the net.Conn level.
package proto

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// MaxFrameSize is the largest frame either side will send or accept.
// A sender that would exceed it fails loudly instead of emitting a
// truncated or misleading frame; a receiver that sees a larger length
// prefix rejects it without consuming the (unread) body, so the
// connection is left in a terminal but at least honestly-reported state.
const MaxFrameSize = 16 << 20 // 16 MiB

// Envelope is the self-describing tagged object every frame carries:
// a discriminator naming the payload's shape plus the payload itself.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WriteFrame marshals v, wraps it in an Envelope tagged with typ, and
// writes the length-prefixed frame to w.
func WriteFrame(w io.Writer, typ string, v any) error {
	var payload json.RawMessage
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("proto: marshal %s payload: %w", typ, err)
		}
		payload = b
	}
	env := Envelope{Type: typ, Payload: payload}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("proto: marshal envelope: %w", err)
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("proto: frame of %d bytes exceeds max %d", len(body), MaxFrameSize)
	}
	hdr := make([]byte, 4)
	binary.BigEndian.PutUint32(hdr, uint32(len(body)))
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// ReadEnvelope reads one length-prefixed frame from r and returns its
// still-tagged envelope. Callers decode Envelope.Payload into the concrete
// type implied by Envelope.Type. A short read (fewer than len bytes
// available) is a terminal error: readers never resynchronize mid-stream.
func ReadEnvelope(r io.Reader) (Envelope, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(hdr)
	if n > MaxFrameSize {
		return Envelope{}, fmt.Errorf("proto: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("proto: unmarshal envelope: %w", err)
	}
	return env, nil
}

// Decode unmarshals env's payload into v.
func (env Envelope) Decode(v any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(env.Payload, v)
}
