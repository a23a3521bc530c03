package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for every websocket message exchanged between a
// client and the relay, in both directions.
type Message struct {
	Type string `json:"type" msgpack:"type"`

	// RoomID is set on client to server messages only. The relay never
	// tells a client who sent something or which room it came from.
	RoomID string `json:"room_id,omitempty" msgpack:"room_id,omitempty"`

	// Payload is an opaque JSON document (session description, ICE
	// candidate, chat text). The relay forwards it byte for byte.
	Payload json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Client to server.
const (
	TypeJoin        = "join"
	TypeSendMessage = "send-message"
)

// Server to client.
const (
	TypeRoomCreated    = "room:created"
	TypeRoomJoined     = "room:joined"
	TypeFull           = "full"
	TypeReceiveMessage = "receive-message"
	TypeError          = "error"
)

// Both directions.
const (
	TypeReady        = "ready"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypeLeave        = "leave"
)

// ChatPayload carries the text of a chat message.
type ChatPayload struct {
	Text string `json:"text"`
}

// ErrorPayload is sent by the relay when it rejects a message.
type ErrorPayload struct {
	Error string `json:"error"`
}

// NewMessage builds a message of type t for roomID, encoding payload as JSON
// when it is not nil.
func NewMessage(t, roomID string, payload any) (*Message, error) {
	msg := &Message{Type: t, RoomID: roomID}
	if payload == nil {
		return msg, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = b
	return msg, nil
}

// NewError builds an error reply.
func NewError(text string) *Message {
	msg, _ := NewMessage(TypeError, "", ErrorPayload{Error: text})
	return msg
}

// DecodePayload decodes the message payload into v.
func (m *Message) DecodePayload(v any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", m.Type)
	}
	return json.Unmarshal(m.Payload, v)
}

// Forward returns the server to client copy of m with the given type. The
// room id is stripped and the payload is shared, not re-encoded.
func (m *Message) Forward(t string) *Message {
	return &Message{Type: t, Payload: m.Payload}
}
