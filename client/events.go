package client

import (
	"fmt"

	"github.com/yassineAchour0609/MediLink-sub000/models"
)

// EventKind tags the client-side event union.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventConnectError
	EventReconnectAttempt
	EventReconnected
	EventReconnectError
	EventReconnectFailed
	EventNewMessage
	EventDigest
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventConnectError:
		return "connect_error"
	case EventReconnectAttempt:
		return "reconnect_attempt"
	case EventReconnected:
		return "reconnect"
	case EventReconnectError:
		return "reconnect_error"
	case EventReconnectFailed:
		return "reconnect_failed"
	case EventNewMessage:
		return models.EventNewMessage
	case EventDigest:
		return models.EventNotify
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is the tagged union handlers receive. Only the fields belonging to
// Kind are set: Attempt for reconnect events, Err for failures, Message for
// full-message pushes, Digest for conversation-list digests.
type Event struct {
	Kind    EventKind
	Attempt int
	Err     error
	Message *models.NewMessagePayload
	Digest  *models.NotifyPayload
}

// Handler receives events on the manager's dispatch goroutine. A panicking
// handler is logged and isolated from the others.
type Handler func(Event)

// decodePush maps a server push envelope onto the event union, failing
// closed on anything it does not recognize.
func decodePush(env models.Envelope) (Event, error) {
	switch env.Event {
	case models.EventNewMessage:
		var p models.NewMessagePayload
		if err := models.DecodePayload(env, &p); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventNewMessage, Message: &p}, nil
	case models.EventNotify:
		var p models.NotifyPayload
		if err := models.DecodePayload(env, &p); err != nil {
			return Event{}, err
		}
		return Event{Kind: EventDigest, Digest: &p}, nil
	}
	return Event{}, fmt.Errorf("%w: unexpected push event %q", models.ErrBadFrame, env.Event)
}
