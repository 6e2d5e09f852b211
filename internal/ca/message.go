package ca

import (
	"encoding/json"
	"fmt"
)

// MessageKind is the application-level message kinds a Cell Agent
// accepts from a border port, per section 4.F.
type MessageKind int

const (
	Interapplication MessageKind = iota
	StackTree
	Manifest
	TreeName
	DeleteTree
	Query
)

func (k MessageKind) String() string {
	switch k {
	case Interapplication:
		return "Interapplication"
	case StackTree:
		return "StackTree"
	case Manifest:
		return "Manifest"
	case TreeName:
		return "TreeName"
	case DeleteTree:
		return "DeleteTree"
	case Query:
		return "Query"
	default:
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
}

// Message is the application-level envelope a Cell Agent exchanges
// with the NOC or a peer CA over a boundary port. Body's shape depends
// on Kind; this layer does not interpret it further than routing and
// tree bookkeeping require.
type Message struct {
	Kind     MessageKind     `json:"kind"`
	TreeName string          `json:"tree_name,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// Encode serializes m for transmission as a Packet payload.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode parses a Packet payload as an application Message.
func Decode(payload []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return Message{}, fmt.Errorf("ca.Decode: %w", err)
	}
	return m, nil
}
