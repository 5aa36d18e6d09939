package client

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/yassineAchour0609/MediLink-sub000/models"
)

// OutgoingState tracks one in-flight send.
type OutgoingState int

const (
	StateComposing OutgoingState = iota
	StateUploading
	StateSending
	StateSent
	StateFailed
)

func (s OutgoingState) String() string {
	switch s {
	case StateComposing:
		return "composing"
	case StateUploading:
		return "uploading"
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

var ErrNoOpenConversation = errors.New("no open conversation")

// SyncEngine maintains one consistent, deduplicated, creation-ordered
// message list for the open conversation and drives read-state transitions.
// The REST fetch is the authoritative baseline; realtime pushes merge into
// it by message id. All state lives behind the engine's lock — transport
// callbacks marshal through it and never touch caller state directly, and
// callers observe changes through the On* callbacks with snapshot copies.
type SyncEngine struct {
	api    *API
	cm     *ConnectionManager
	userID uint

	mu        sync.Mutex
	open      uint
	epoch     uint64
	cancel    context.CancelFunc
	messages  []models.Message
	seen      map[uint]struct{}
	summaries []models.ConversationSummary

	// Callbacks run outside the lock on whichever goroutine triggered the
	// change; the owner of the UI state decides how to marshal further.
	OnMessages  func([]models.Message)
	OnSummaries func([]models.ConversationSummary)
	OnSendState func(OutgoingState)
	OnError     func(error)
}

func NewSyncEngine(api *API, cm *ConnectionManager, userID uint) *SyncEngine {
	return &SyncEngine{
		api:    api,
		cm:     cm,
		userID: userID,
		seen:   make(map[uint]struct{}),
	}
}

// Start subscribes to realtime events and declares the session identity so
// the server can target pushes at this connection.
func (e *SyncEngine) Start() {
	e.cm.On(EventNewMessage, e.handleNewMessage)
	e.cm.On(EventDigest, e.handleDigest)
	e.cm.RegisterUser(e.userID, nil)
}

// OpenConversation switches the engine to the thread with otherID: it
// cancels any fetch still in flight for the previous conversation, discards
// the old list, fetches the authoritative baseline, and scopes realtime
// handling to the new counterpart. A response arriving for a superseded
// fetch is discarded, never merged.
func (e *SyncEngine) OpenConversation(ctx context.Context, otherID uint) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.epoch++
	epoch := e.epoch
	prev := e.open
	e.open = otherID
	e.messages = nil
	e.seen = make(map[uint]struct{})
	e.mu.Unlock()

	if prev != 0 && prev != otherID {
		e.cm.LeaveRoom(prev)
	}
	e.cm.JoinRoom(otherID)

	msgs, err := e.api.Conversation(fetchCtx, otherID)

	e.mu.Lock()
	if e.epoch != epoch {
		// A later OpenConversation superseded this fetch.
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		e.mu.Unlock()
		return err
	}
	// The baseline replaces the list wholesale, then any rows pushed while
	// the fetch was in flight are re-appended unless the baseline already
	// has their id. Push-before-fetch ordering therefore cannot duplicate.
	pushed := e.messages
	list := make([]models.Message, 0, len(msgs)+len(pushed))
	seen := make(map[uint]struct{}, len(msgs)+len(pushed))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		list = append(list, m)
	}
	for _, m := range pushed {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		list = append(list, m)
	}
	e.messages = list
	e.seen = seen
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.notifyMessages(snapshot)
	return nil
}

// CloseConversation leaves the current scope and discards its list.
func (e *SyncEngine) CloseConversation() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	prev := e.open
	e.open = 0
	e.messages = nil
	e.seen = make(map[uint]struct{})
	e.mu.Unlock()
	if prev != 0 {
		e.cm.LeaveRoom(prev)
	}
}

func (e *SyncEngine) handleNewMessage(ev Event) {
	p := ev.Message
	if p == nil {
		return
	}
	other := p.Message.Counterpart(e.userID)

	e.mu.Lock()
	if e.open == 0 || other != e.open {
		e.mu.Unlock()
		return
	}
	if _, dup := e.seen[p.Message.ID]; dup {
		e.mu.Unlock()
		return
	}
	e.seen[p.Message.ID] = struct{}{}
	e.messages = append(e.messages, p.Message)
	snapshot := e.snapshotLocked()
	autoRead := p.Message.SenderID == other && !p.Message.IsRead
	id := p.Message.ID
	e.mu.Unlock()

	e.notifyMessages(snapshot)
	if autoRead {
		// The conversation is open, so the counterpart's message is read
		// the moment it lands.
		go e.markRead(id)
	}
}

func (e *SyncEngine) handleDigest(ev Event) {
	if ev.Digest == nil {
		return
	}
	// The digest refreshes the conversation list regardless of which
	// conversation is open; the open message list is untouched.
	go func() {
		if err := e.RefreshSummaries(context.Background()); err != nil {
			e.reportError(err)
		}
	}()
}

func (e *SyncEngine) markRead(id uint) {
	msg, err := e.api.MarkRead(context.Background(), id)
	if err != nil {
		e.reportError(err)
		return
	}
	e.mu.Lock()
	for i := range e.messages {
		if e.messages[i].ID == id {
			e.messages[i] = msg
		}
	}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.notifyMessages(snapshot)
}

// Send runs the outgoing state machine: composing, uploading when an
// attachment is present, sending, then sent or failed. The message joins
// the local list only from the server's response row, which carries the
// authoritative id — there is no optimistic echo and no automatic retry.
func (e *SyncEngine) Send(ctx context.Context, content, kind string, attachment io.Reader, attachmentName string) (models.Message, error) {
	e.mu.Lock()
	other := e.open
	e.mu.Unlock()
	if other == 0 {
		return models.Message{}, ErrNoOpenConversation
	}

	e.setSendState(StateComposing)
	var attachmentURL, storedName string
	if attachment != nil {
		e.setSendState(StateUploading)
		result, err := e.api.Upload(ctx, attachmentName, attachment)
		if err != nil {
			e.setSendState(StateFailed)
			e.reportError(err)
			return models.Message{}, err
		}
		attachmentURL = result.URL
		storedName = result.Filename
	}

	e.setSendState(StateSending)
	msg, err := e.api.SendMessage(ctx, SendMessageInput{
		ReceiverID:     other,
		Content:        content,
		Kind:           kind,
		AttachmentURL:  attachmentURL,
		AttachmentName: storedName,
	})
	if err != nil {
		e.setSendState(StateFailed)
		e.reportError(err)
		return models.Message{}, err
	}
	e.setSendState(StateSent)

	e.mu.Lock()
	if e.open == other {
		if _, dup := e.seen[msg.ID]; !dup {
			e.seen[msg.ID] = struct{}{}
			e.messages = append(e.messages, msg)
		}
	}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()
	e.notifyMessages(snapshot)
	return msg, nil
}

// RefreshSummaries re-fetches the conversation aggregates.
func (e *SyncEngine) RefreshSummaries(ctx context.Context) error {
	summaries, err := e.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.summaries = summaries
	snapshot := append([]models.ConversationSummary(nil), summaries...)
	e.mu.Unlock()
	if e.OnSummaries != nil {
		e.OnSummaries(snapshot)
	}
	return nil
}

// Resync re-fetches the open conversation and the summaries. Call it on the
// Reconnected event: the transport layer deliberately does not do this.
func (e *SyncEngine) Resync(ctx context.Context) error {
	e.mu.Lock()
	open := e.open
	e.mu.Unlock()
	if open != 0 {
		if err := e.OpenConversation(ctx, open); err != nil {
			return err
		}
	}
	return e.RefreshSummaries(ctx)
}

// Messages returns a snapshot of the open conversation's list.
func (e *SyncEngine) Messages() []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Summaries returns a snapshot of the last fetched conversation list.
func (e *SyncEngine) Summaries() []models.ConversationSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.ConversationSummary(nil), e.summaries...)
}

func (e *SyncEngine) snapshotLocked() []models.Message {
	return append([]models.Message(nil), e.messages...)
}

func (e *SyncEngine) notifyMessages(snapshot []models.Message) {
	if e.OnMessages != nil {
		e.OnMessages(snapshot)
	}
}

func (e *SyncEngine) setSendState(s OutgoingState) {
	if e.OnSendState != nil {
		e.OnSendState(s)
	}
}

func (e *SyncEngine) reportError(err error) {
	if e.OnError != nil {
		e.OnError(err)
		return
	}
	log.Printf("client: %v", err)
}
