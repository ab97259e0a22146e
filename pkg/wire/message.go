// Package wire defines the CBOR-encoded messages exchanged between the
// collaboration service and client synchronization adapters. Messages are
// scoped to one page session and carry op batches; the initial full-state
// transfer and incremental updates use the same shape.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/canvaspad/canvaspad/pkg/crdt"
	"github.com/canvaspad/canvaspad/pkg/models"
)

// MessageType discriminates session messages.
type MessageType string

const (
	// MessageSnapshot is the full document state, sent by the service once a
	// session is admitted. Receiving it is what flips an adapter to connected.
	MessageSnapshot MessageType = "snapshot"
	// MessageUpdate is an incremental op batch, sent in either direction.
	MessageUpdate MessageType = "update"
)

// Message is the session envelope.
type Message struct {
	Type   MessageType   `cbor:"t"`
	PageID models.PageID `cbor:"page"`
	Ops    []crdt.Op     `cbor:"ops,omitempty"`
}

// Encode renders a message to its CBOR wire form.
func Encode(msg *Message) ([]byte, error) {
	data, err := cbor.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}
	return data, nil
}

// Decode parses a CBOR wire frame into a message.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := cbor.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	switch msg.Type {
	case MessageSnapshot, MessageUpdate:
	default:
		return nil, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return &msg, nil
}
