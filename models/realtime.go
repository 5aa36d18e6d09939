package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Realtime event names. Control events flow client to server, push events
// server to client.
const (
	EventRegisterUser = "register-user"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventAck          = "ack"
	EventNewMessage   = "nouveau_message"
	EventNotify       = "notif_message"
)

// EnvelopeVersion is the only wire version either side accepts. Frames with
// any other version are dropped, never half-parsed.
const EnvelopeVersion = 1

var ErrBadFrame = errors.New("malformed realtime frame")

// Envelope frames every websocket message in both directions. Ack is a
// client-chosen correlation id; the server echoes it on an EventAck frame.
type Envelope struct {
	V     int             `json:"v"`
	Event string          `json:"event"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RegisterUserPayload declares "I am user X" on a fresh connection.
type RegisterUserPayload struct {
	UserID uint `json:"userId"`
}

// RoomPayload carries the advisory room name for join-room / leave-room.
type RoomPayload struct {
	Room string `json:"room"`
}

// NewMessagePayload is the full-message push. Message carries the persisted
// row including its server-assigned id, which clients dedup against.
type NewMessagePayload struct {
	Message Message `json:"message"`
	From    uint    `json:"from"`
	To      uint    `json:"to"`
}

// NotifyPayload is the lightweight digest push used to refresh a
// conversation list without re-fetching history.
type NotifyPayload struct {
	SenderID   uint      `json:"senderId"`
	ReceiverID uint      `json:"receiverId"`
	Excerpt    string    `json:"excerpt"`
	Timestamp  time.Time `json:"timestamp"`
}

// EncodeEvent frames a payload for the wire.
func EncodeEvent(event string, ack uint64, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", event, err)
		}
		data = b
	}
	return json.Marshal(Envelope{V: EnvelopeVersion, Event: event, Ack: ack, Data: data})
}

// DecodeEnvelope parses a raw frame, failing closed on anything that is not
// a well-formed, current-version envelope with a named event.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if env.V != EnvelopeVersion {
		return Envelope{}, fmt.Errorf("%w: unsupported version %d", ErrBadFrame, env.V)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrBadFrame)
	}
	return env, nil
}

// DecodePayload strictly unmarshals an envelope's data into out. Unknown
// fields are rejected so a schema drift surfaces as a dropped frame rather
// than silently partial data.
func DecodePayload(env Envelope, out any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s carries no payload", ErrBadFrame, env.Event)
	}
	dec := json.NewDecoder(bytes.NewReader(env.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrBadFrame, env.Event, err)
	}
	return nil
}
