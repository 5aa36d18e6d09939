package controllers_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yassineAchour0609/MediLink-sub000/client"
	"github.com/yassineAchour0609/MediLink-sub000/controllers"
	"github.com/yassineAchour0609/MediLink-sub000/models"
	"github.com/yassineAchour0609/MediLink-sub000/routes"
	"github.com/yassineAchour0609/MediLink-sub000/services"

	"net/http/httptest"
)

type testEnv struct {
	srv      *httptest.Server
	db       *gorm.DB
	tokens   *services.TokenService
	registry *services.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tokens := services.NewTokenService("test-secret")
	registry := services.NewRegistry()
	uploads, err := services.NewUploadStore(t.TempDir(), "", 1<<20)
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}

	r := routes.New(routes.Deps{
		Tokens:   tokens,
		Accounts: &controllers.AccountController{DB: db, Tokens: tokens},
		Messages: &controllers.MessageController{
			Messages:   services.NewMessageService(db),
			Dispatcher: services.NewDispatcher(registry),
			Uploads:    uploads,
		},
		WS:        &controllers.WSController{Registry: registry, Tokens: tokens},
		UploadDir: uploads.Dir(),
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, db: db, tokens: tokens, registry: registry}
}

func (e *testEnv) user(t *testing.T, username, role string) (models.User, string) {
	t.Helper()
	user := models.User{Username: username, Password: "x", Role: role}
	if err := e.db.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	token, err := e.tokens.Generate(user)
	if err != nil {
		t.Fatalf("token for %s: %v", username, err)
	}
	return user, token
}

func TestSendFetchAndUnreadFlow(t *testing.T) {
	env := newTestEnv(t)
	patient, patientToken := env.user(t, "alice", models.RolePatient)
	doctor, doctorToken := env.user(t, "dr-bob", models.RoleDoctor)
	patientAPI := client.NewAPI(env.srv.URL, patientToken)
	doctorAPI := client.NewAPI(env.srv.URL, doctorToken)
	ctx := context.Background()

	msg, err := patientAPI.SendMessage(ctx, client.SendMessageInput{
		ReceiverID: doctor.ID,
		Content:    "Bonjour docteur",
		Kind:       models.KindText,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == 0 || msg.IsRead {
		t.Fatalf("unexpected response row %+v", msg)
	}

	summaries, err := doctorAPI.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].CounterpartID != patient.ID || summaries[0].UnreadCount != 1 {
		t.Fatalf("unexpected summaries %+v", summaries)
	}

	msgs, err := doctorAPI.Conversation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].IsRead || msgs[0].ReadAt == nil {
		t.Fatalf("fetch should return the message already read-marked, got %+v", msgs)
	}

	summaries, err = doctorAPI.ListConversations(ctx)
	if err != nil {
		t.Fatalf("list after fetch: %v", err)
	}
	if summaries[0].UnreadCount != 0 {
		t.Fatalf("unread count should be 0 after fetch, got %d", summaries[0].UnreadCount)
	}
}

func TestSendValidationRejectedBeforeWrite(t *testing.T) {
	env := newTestEnv(t)
	_, patientToken := env.user(t, "alice", models.RolePatient)
	doctor, _ := env.user(t, "dr-bob", models.RoleDoctor)
	api := client.NewAPI(env.srv.URL, patientToken)

	_, err := api.SendMessage(context.Background(), client.SendMessageInput{
		ReceiverID: doctor.ID,
		Kind:       models.KindText,
	})
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != 400 {
		t.Fatalf("expected 400, got %v", err)
	}

	var count int64
	env.db.Model(&models.Message{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected send must not persist, found %d rows", count)
	}
}

func TestDeleteByNonSenderForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, patientToken := env.user(t, "alice", models.RolePatient)
	doctor, doctorToken := env.user(t, "dr-bob", models.RoleDoctor)
	patientAPI := client.NewAPI(env.srv.URL, patientToken)
	doctorAPI := client.NewAPI(env.srv.URL, doctorToken)
	ctx := context.Background()

	msg, err := patientAPI.SendMessage(ctx, client.SendMessageInput{
		ReceiverID: doctor.ID, Content: "mine", Kind: models.KindText,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	err = doctorAPI.DeleteMessage(ctx, msg.ID)
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != 403 {
		t.Fatalf("expected 403 for non-sender delete, got %v", err)
	}

	var still models.Message
	if err := env.db.First(&still, msg.ID).Error; err != nil {
		t.Fatalf("message must remain intact: %v", err)
	}

	if err := patientAPI.DeleteMessage(ctx, msg.ID); err != nil {
		t.Fatalf("sender delete should succeed: %v", err)
	}
}

func TestMarkReadBySenderForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, patientToken := env.user(t, "alice", models.RolePatient)
	doctor, _ := env.user(t, "dr-bob", models.RoleDoctor)
	api := client.NewAPI(env.srv.URL, patientToken)
	ctx := context.Background()

	msg, err := api.SendMessage(ctx, client.SendMessageInput{
		ReceiverID: doctor.ID, Content: "mine", Kind: models.KindText,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	_, err = api.MarkRead(ctx, msg.ID)
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != 403 {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	env := newTestEnv(t)
	api := client.NewAPI(env.srv.URL, "not-a-token")

	_, err := api.ListConversations(context.Background())
	var reqErr *client.RequestError
	if !errors.As(err, &reqErr) || reqErr.Status != 401 {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestUploadReturnsOpaqueReference(t *testing.T) {
	env := newTestEnv(t)
	_, patientToken := env.user(t, "alice", models.RolePatient)
	api := client.NewAPI(env.srv.URL, patientToken)

	content := []byte("%PDF-1.4 fake prescription")
	result, err := api.Upload(context.Background(), "ordonnance.pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Filename != "ordonnance.pdf" {
		t.Fatalf("expected original display name, got %q", result.Filename)
	}
	if result.Size != int64(len(content)) {
		t.Fatalf("expected size %d, got %d", len(content), result.Size)
	}
	if !strings.Contains(result.URL, "/uploads/") || !strings.HasSuffix(result.URL, ".pdf") {
		t.Fatalf("unexpected url %q", result.URL)
	}
}

func TestSendToDisconnectedReceiverIsSilentlyBestEffort(t *testing.T) {
	env := newTestEnv(t)
	patient, patientToken := env.user(t, "alice", models.RolePatient)
	doctor, doctorToken := env.user(t, "dr-bob", models.RoleDoctor)
	patientAPI := client.NewAPI(env.srv.URL, patientToken)
	doctorAPI := client.NewAPI(env.srv.URL, doctorToken)
	ctx := context.Background()

	// No websocket registration exists for the doctor.
	if env.registry.Count() != 0 {
		t.Fatalf("expected empty registry")
	}

	msg, err := patientAPI.SendMessage(ctx, client.SendMessageInput{
		ReceiverID: doctor.ID, Content: "pendant la coupure", Kind: models.KindText,
	})
	if err != nil {
		t.Fatalf("send must succeed with the receiver offline: %v", err)
	}

	// On the next fetch the message is present and read-marked.
	msgs, err := doctorAPI.Conversation(ctx, patient.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID || !msgs[0].IsRead {
		t.Fatalf("offline message must appear read-marked on fetch, got %+v", msgs)
	}
}
