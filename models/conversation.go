package models

import "time"

// ConversationSummary is the derived view of one counterpart's thread as
// seen by the requesting user. It is recomputed from Message rows on every
// request and never stored.
type ConversationSummary struct {
	CounterpartID uint      `json:"counterpartId"`
	LastMessage   string    `json:"lastMessage"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int64     `json:"unreadCount"`
}
