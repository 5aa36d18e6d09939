package services

import (
	"log"

	"github.com/yassineAchour0609/MediLink-sub000/models"
)

const excerptRunes = 30

// Dispatcher pushes persisted messages to the receiver's registered
// connection. Delivery is best-effort at-most-once: if the receiver has no
// registration, or the connection cannot take the frame, the push is dropped
// and nobody is told. The REST response is the sender's only confirmation.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// DispatchMessage emits the full-message event followed by the conversation
// digest event. msg must already be persisted: a push without a stable id
// would leave the client nothing to dedup against.
func (d *Dispatcher) DispatchMessage(msg models.Message) {
	if msg.ID == 0 {
		log.Printf("dispatcher: refusing to push unpersisted message from %d to %d", msg.SenderID, msg.ReceiverID)
		return
	}
	conn, ok := d.registry.Lookup(msg.ReceiverID)
	if !ok {
		return
	}

	full, err := models.EncodeEvent(models.EventNewMessage, 0, models.NewMessagePayload{
		Message: msg,
		From:    msg.SenderID,
		To:      msg.ReceiverID,
	})
	if err != nil {
		log.Printf("dispatcher: encode %s: %v", models.EventNewMessage, err)
		return
	}
	digest, err := models.EncodeEvent(models.EventNotify, 0, models.NotifyPayload{
		SenderID:   msg.SenderID,
		ReceiverID: msg.ReceiverID,
		Excerpt:    Excerpt(msg),
		Timestamp:  msg.CreatedAt,
	})
	if err != nil {
		log.Printf("dispatcher: encode %s: %v", models.EventNotify, err)
		return
	}

	if !conn.Send(full) {
		log.Printf("dispatcher: dropped %s for user %d", models.EventNewMessage, msg.ReceiverID)
		return
	}
	if !conn.Send(digest) {
		log.Printf("dispatcher: dropped %s for user %d", models.EventNotify, msg.ReceiverID)
	}
}

// Excerpt produces the short preview used by digest events and conversation
// summaries. Attachment-only messages fall back to the display name.
func Excerpt(msg models.Message) string {
	text := msg.Text()
	if text == "" {
		text = msg.AttachmentName
	}
	runes := []rune(text)
	if len(runes) <= excerptRunes {
		return text
	}
	return string(runes[:excerptRunes])
}
