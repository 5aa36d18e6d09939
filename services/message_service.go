package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yassineAchour0609/MediLink-sub000/models"
)

// MessageService is the authoritative store behind the messaging REST
// surface. Realtime push happens after, and only after, these methods have
// durably assigned an id.
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// SendInput carries one outgoing message. AttachmentURL comes from a prior
// upload call; the service never touches file storage itself.
type SendInput struct {
	SenderID       uint
	ReceiverID     uint
	Content        string
	Kind           string
	AttachmentURL  string
	AttachmentName string
}

// Send validates and persists a new unread message, returning the row with
// its generated id. Validation failures happen before any write.
func (s *MessageService) Send(in SendInput) (models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.AttachmentURL == "" {
		return models.Message{}, fmt.Errorf("%w: message needs content or an attachment", ErrValidation)
	}
	if !models.ValidKind(in.Kind) {
		return models.Message{}, fmt.Errorf("%w: unknown message kind %q", ErrValidation, in.Kind)
	}
	if in.ReceiverID == 0 || in.ReceiverID == in.SenderID {
		return models.Message{}, fmt.Errorf("%w: invalid receiver", ErrValidation)
	}
	var receiver models.User
	if err := s.db.First(&receiver, in.ReceiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Message{}, fmt.Errorf("%w: receiver %d", ErrNotFound, in.ReceiverID)
		}
		return models.Message{}, err
	}

	msg := models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Kind:       in.Kind,
		IsRead:     false,
	}
	if content != "" {
		msg.Content = &content
	}
	msg.AttachmentURL = in.AttachmentURL
	msg.AttachmentName = in.AttachmentName

	if err := s.db.Create(&msg).Error; err != nil {
		return models.Message{}, fmt.Errorf("persist message: %w", err)
	}
	return msg, nil
}

// Conversation returns every message between caller and other in creation
// order and, in the same transaction, marks the caller's unread incoming
// rows as read. The fetch a client renders from therefore always agrees
// with the unread counts a later ListConversations reports.
func (s *MessageService) Conversation(callerID, otherID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
				callerID, otherID, otherID, callerID).
			Order("created_at ASC, id ASC").
			Find(&msgs).Error; err != nil {
			return err
		}
		now := time.Now()
		if err := tx.Model(&models.Message{}).
			Where("sender_id = ? AND receiver_id = ? AND is_read = ?", otherID, callerID, false).
			Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			return err
		}
		// Reflect the batch transition in the rows we are about to return.
		for i := range msgs {
			if msgs[i].ReceiverID == callerID && !msgs[i].IsRead {
				msgs[i].IsRead = true
				msgs[i].ReadAt = &now
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return msgs, nil
}

// ListConversations derives one summary per counterpart: last-message
// preview and timestamp plus the caller's unread count, most recent first.
func (s *MessageService) ListConversations(callerID uint) ([]models.ConversationSummary, error) {
	var msgs []models.Message
	if err := s.db.
		Where("sender_id = ? OR receiver_id = ?", callerID, callerID).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	index := make(map[uint]int)
	summaries := make([]models.ConversationSummary, 0)
	for _, m := range msgs {
		other := m.Counterpart(callerID)
		i, ok := index[other]
		if !ok {
			// First hit in descending order is the last message.
			summaries = append(summaries, models.ConversationSummary{
				CounterpartID: other,
				LastMessage:   Excerpt(m),
				LastMessageAt: m.CreatedAt,
			})
			i = len(summaries) - 1
			index[other] = i
		}
		if m.ReceiverID == callerID && !m.IsRead {
			summaries[i].UnreadCount++
		}
	}
	return summaries, nil
}

// EnsureConversation validates the counterpart and optionally seeds the
// thread with an initial text message. Conversations are derived views, so
// with no initial message there is nothing to create; the caller just gets
// the current summary back.
func (s *MessageService) EnsureConversation(callerID, otherID uint, initial string) (models.ConversationSummary, *models.Message, error) {
	if otherID == 0 || otherID == callerID {
		return models.ConversationSummary{}, nil, fmt.Errorf("%w: invalid counterpart", ErrValidation)
	}
	var other models.User
	if err := s.db.First(&other, otherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ConversationSummary{}, nil, fmt.Errorf("%w: user %d", ErrNotFound, otherID)
		}
		return models.ConversationSummary{}, nil, err
	}

	var seeded *models.Message
	if strings.TrimSpace(initial) != "" {
		msg, err := s.Send(SendInput{
			SenderID:   callerID,
			ReceiverID: otherID,
			Content:    initial,
			Kind:       models.KindText,
		})
		if err != nil {
			return models.ConversationSummary{}, nil, err
		}
		seeded = &msg
	}

	summaries, err := s.ListConversations(callerID)
	if err != nil {
		return models.ConversationSummary{}, nil, err
	}
	for _, sum := range summaries {
		if sum.CounterpartID == otherID {
			return sum, seeded, nil
		}
	}
	return models.ConversationSummary{CounterpartID: otherID}, seeded, nil
}

// MarkRead flips one message to read. Idempotent; only the receiver may do
// it.
func (s *MessageService) MarkRead(callerID, messageID uint) (models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Message{}, fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return models.Message{}, err
	}
	if msg.ReceiverID != callerID {
		return models.Message{}, fmt.Errorf("%w: only the receiver can mark a message read", ErrForbidden)
	}
	if msg.IsRead {
		return msg, nil
	}
	now := time.Now()
	if err := s.db.Model(&msg).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return models.Message{}, fmt.Errorf("mark read: %w", err)
	}
	msg.IsRead = true
	msg.ReadAt = &now
	return msg, nil
}

// Delete removes one message. Only the original sender may delete; the
// counterpart is not notified in realtime and learns on their next fetch.
func (s *MessageService) Delete(callerID, messageID uint) error {
	var msg models.Message
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: message %d", ErrNotFound, messageID)
		}
		return err
	}
	if msg.SenderID != callerID {
		return fmt.Errorf("%w: only the sender can delete a message", ErrForbidden)
	}
	return s.db.Delete(&msg).Error
}

// DeleteConversation removes every message in both directions between the
// caller and the counterpart.
func (s *MessageService) DeleteConversation(callerID, otherID uint) error {
	return s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			callerID, otherID, otherID, callerID).
		Delete(&models.Message{}).Error
}
