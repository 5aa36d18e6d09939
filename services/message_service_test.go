package services

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yassineAchour0609/MediLink-sub000/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, username, role string) models.User {
	t.Helper()
	user := models.User{Username: username, Password: "x", Role: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func mustSend(t *testing.T, svc *MessageService, from, to uint, content string) models.Message {
	t.Helper()
	msg, err := svc.Send(SendInput{SenderID: from, ReceiverID: to, Content: content, Kind: models.KindText})
	if err != nil {
		t.Fatalf("send %q: %v", content, err)
	}
	return msg
}

func TestSendValidation(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	cases := []struct {
		name string
		in   SendInput
		want error
	}{
		{"no content and no attachment", SendInput{SenderID: patient.ID, ReceiverID: doctor.ID, Kind: models.KindText}, ErrValidation},
		{"unknown kind", SendInput{SenderID: patient.ID, ReceiverID: doctor.ID, Content: "hi", Kind: "video"}, ErrValidation},
		{"self send", SendInput{SenderID: patient.ID, ReceiverID: patient.ID, Content: "hi", Kind: models.KindText}, ErrValidation},
		{"unknown receiver", SendInput{SenderID: patient.ID, ReceiverID: 999, Content: "hi", Kind: models.KindText}, ErrNotFound},
	}
	for _, tc := range cases {
		if _, err := svc.Send(tc.in); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Fatalf("validation failures must not write rows, found %d", count)
	}
}

func TestSendPersistsExactlyOneUnreadRow(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	msg := mustSend(t, svc, patient.ID, doctor.ID, "Bonjour docteur")
	if msg.ID == 0 {
		t.Fatalf("persisted message must carry its generated id")
	}
	if msg.IsRead || msg.ReadAt != nil {
		t.Fatalf("new messages must start unread")
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly 1 row, got %d", count)
	}
}

func TestSendWithAttachmentOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	msg, err := svc.Send(SendInput{
		SenderID:       patient.ID,
		ReceiverID:     doctor.ID,
		Kind:           models.KindImage,
		AttachmentURL:  "/uploads/scan.png",
		AttachmentName: "scan.png",
	})
	if err != nil {
		t.Fatalf("attachment-only send: %v", err)
	}
	if msg.Content != nil {
		t.Fatalf("attachment-only messages keep a null content")
	}
}

func TestConversationOrdersAndBatchMarksRead(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	mustSend(t, svc, patient.ID, doctor.ID, "first")
	mustSend(t, svc, doctor.ID, patient.ID, "second")
	mustSend(t, svc, patient.ID, doctor.ID, "third")

	msgs, err := svc.Conversation(doctor.ID, patient.ID)
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("messages out of creation order at index %d", i)
		}
	}
	for _, m := range msgs {
		if m.ReceiverID == doctor.ID && (!m.IsRead || m.ReadAt == nil) {
			t.Fatalf("message %d should be read after the fetch", m.ID)
		}
	}

	// The doctor's own sent message stays untouched on the patient's side.
	var unreadForPatient int64
	db.Model(&models.Message{}).
		Where("receiver_id = ? AND is_read = ?", patient.ID, false).
		Count(&unreadForPatient)
	if unreadForPatient != 1 {
		t.Fatalf("patient's unread count should be unaffected, got %d", unreadForPatient)
	}
}

func TestUnreadCountZeroAfterFetch(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	mustSend(t, svc, patient.ID, doctor.ID, "un")
	mustSend(t, svc, patient.ID, doctor.ID, "deux")

	summaries, err := svc.ListConversations(doctor.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].UnreadCount != 2 {
		t.Fatalf("expected unread count 2 before fetch, got %+v", summaries)
	}

	if _, err := svc.Conversation(doctor.ID, patient.ID); err != nil {
		t.Fatalf("conversation: %v", err)
	}

	summaries, err = svc.ListConversations(doctor.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].UnreadCount != 0 {
		t.Fatalf("expected unread count 0 after fetch, got %+v", summaries)
	}
}

func TestListConversationsAggregates(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)
	second := createUser(t, db, "dr-carol", models.RoleDoctor)

	mustSend(t, svc, doctor.ID, patient.ID, "older thread")
	time.Sleep(5 * time.Millisecond)
	mustSend(t, svc, second.ID, patient.ID, "newer")
	mustSend(t, svc, second.ID, patient.ID, "newest")

	summaries, err := svc.ListConversations(patient.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 counterparts, got %d", len(summaries))
	}
	if summaries[0].CounterpartID != second.ID {
		t.Fatalf("most recent counterpart should come first, got %+v", summaries)
	}
	if summaries[0].LastMessage != "newest" || summaries[0].UnreadCount != 2 {
		t.Fatalf("unexpected summary %+v", summaries[0])
	}
	if summaries[1].CounterpartID != doctor.ID || summaries[1].UnreadCount != 1 {
		t.Fatalf("unexpected summary %+v", summaries[1])
	}
}

func TestMarkReadIdempotentAndReceiverOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	msg := mustSend(t, svc, patient.ID, doctor.ID, "hello")

	if _, err := svc.MarkRead(patient.ID, msg.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("sender must not mark its own message read, got %v", err)
	}
	if _, err := svc.MarkRead(doctor.ID, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	first, err := svc.MarkRead(doctor.ID, msg.ID)
	if err != nil || !first.IsRead || first.ReadAt == nil {
		t.Fatalf("mark read failed: %+v %v", first, err)
	}
	again, err := svc.MarkRead(doctor.ID, msg.ID)
	if err != nil {
		t.Fatalf("second mark read must be a no-op, got %v", err)
	}
	if !again.ReadAt.Equal(*first.ReadAt) {
		t.Fatalf("read timestamp moved on repeat mark-read")
	}
}

func TestDeleteIsSenderOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	msg := mustSend(t, svc, patient.ID, doctor.ID, "hello")

	if err := svc.Delete(doctor.ID, msg.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-sender delete must be forbidden, got %v", err)
	}
	var still models.Message
	if err := db.First(&still, msg.ID).Error; err != nil {
		t.Fatalf("message must remain retrievable after forbidden delete: %v", err)
	}

	if err := svc.Delete(patient.ID, msg.ID); err != nil {
		t.Fatalf("sender delete: %v", err)
	}
	if err := db.First(&still, msg.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("message should be gone, got %v", err)
	}
}

func TestDeleteConversationBothDirections(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)
	second := createUser(t, db, "dr-carol", models.RoleDoctor)

	mustSend(t, svc, patient.ID, doctor.ID, "a")
	mustSend(t, svc, doctor.ID, patient.ID, "b")
	keep := mustSend(t, svc, patient.ID, second.ID, "c")

	if err := svc.DeleteConversation(patient.ID, doctor.ID); err != nil {
		t.Fatalf("delete conversation: %v", err)
	}

	var count int64
	db.Model(&models.Message{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected only the unrelated message to survive, got %d rows", count)
	}
	var survivor models.Message
	if err := db.First(&survivor, keep.ID).Error; err != nil {
		t.Fatalf("unrelated conversation was deleted: %v", err)
	}
}

func TestEnsureConversation(t *testing.T) {
	db := openTestDB(t)
	svc := NewMessageService(db)
	patient := createUser(t, db, "alice", models.RolePatient)
	doctor := createUser(t, db, "dr-bob", models.RoleDoctor)

	if _, _, err := svc.EnsureConversation(patient.ID, 404, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown counterpart: expected ErrNotFound, got %v", err)
	}

	summary, seeded, err := svc.EnsureConversation(patient.ID, doctor.ID, "")
	if err != nil {
		t.Fatalf("ensure without initial message: %v", err)
	}
	if seeded != nil || summary.CounterpartID != doctor.ID {
		t.Fatalf("unexpected result %+v seeded=%v", summary, seeded)
	}

	summary, seeded, err = svc.EnsureConversation(patient.ID, doctor.ID, "Bonjour")
	if err != nil {
		t.Fatalf("ensure with initial message: %v", err)
	}
	if seeded == nil || seeded.ID == 0 {
		t.Fatalf("initial message was not persisted")
	}
	if summary.LastMessage != "Bonjour" {
		t.Fatalf("summary should reflect the seeded message, got %+v", summary)
	}
}
