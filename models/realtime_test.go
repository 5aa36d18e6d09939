package models

import (
	"errors"
	"testing"
)

func TestDecodeEnvelopeFailsClosed(t *testing.T) {
	cases := map[string]string{
		"garbage":         `{not json`,
		"wrong version":   `{"v":2,"event":"nouveau_message"}`,
		"missing version": `{"event":"nouveau_message"}`,
		"missing event":   `{"v":1}`,
	}
	for name, raw := range cases {
		if _, err := DecodeEnvelope([]byte(raw)); !errors.Is(err, ErrBadFrame) {
			t.Errorf("%s: expected ErrBadFrame, got %v", name, err)
		}
	}
}

func TestDecodeEnvelopeAcceptsCurrentVersion(t *testing.T) {
	frame, err := EncodeEvent(EventRegisterUser, 3, RegisterUserPayload{UserID: 12})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	env, err := DecodeEnvelope(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Event != EventRegisterUser || env.Ack != 3 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	var p RegisterUserPayload
	if err := DecodePayload(env, &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.UserID != 12 {
		t.Fatalf("expected user 12, got %d", p.UserID)
	}
}

func TestDecodePayloadRejectsUnknownFields(t *testing.T) {
	env := Envelope{
		V:     EnvelopeVersion,
		Event: EventRegisterUser,
		Data:  []byte(`{"userId":4,"extra":"field"}`),
	}
	var p RegisterUserPayload
	if err := DecodePayload(env, &p); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("expected ErrBadFrame for unknown field, got %v", err)
	}
}

func TestDecodePayloadRequiresData(t *testing.T) {
	env := Envelope{V: EnvelopeVersion, Event: EventJoinRoom}
	var p RoomPayload
	if err := DecodePayload(env, &p); !errors.Is(err, ErrBadFrame) {
		t.Fatalf("expected ErrBadFrame for empty payload, got %v", err)
	}
}
