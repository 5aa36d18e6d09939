package models

import "time"

// Message kinds accepted by the platform.
const (
	KindText     = "text"
	KindDocument = "document"
	KindImage    = "image"
)

// Message is the single source of truth for everything exchanged between a
// patient and a doctor. Rows are immutable after creation except for the
// read flag / read timestamp pair, which only ever moves from unread to read.
type Message struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID       uint       `gorm:"index;not null" json:"senderId"`
	ReceiverID     uint       `gorm:"index;not null" json:"receiverId"`
	Content        *string    `json:"content"`
	Kind           string     `gorm:"type:varchar(10);not null" json:"kind"`
	AttachmentURL  string     `json:"attachmentUrl,omitempty"`
	AttachmentName string     `json:"attachmentName,omitempty"`
	IsRead         bool       `gorm:"default:false" json:"isRead"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReadAt         *time.Time `json:"readAt"`
}

func ValidKind(kind string) bool {
	switch kind {
	case KindText, KindDocument, KindImage:
		return true
	}
	return false
}

// Text returns the content of the message, or "" for attachment-only rows.
func (m Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// Counterpart returns the other participant relative to userID.
func (m Message) Counterpart(userID uint) uint {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}
