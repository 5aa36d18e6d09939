package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/yassineAchour0609/MediLink-sub000/models"
	"github.com/yassineAchour0609/MediLink-sub000/services"
)

// API is the bearer-authenticated REST client for the messaging surface.
// Failures are surfaced to the caller and never retried automatically.
type API struct {
	base  string
	token string
	http  *http.Client
}

func NewAPI(base, token string) *API {
	return &API{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

// RequestError reports a non-2xx response.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Body)
}

type apiEnvelope struct {
	Code  int             `json:"code"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func (a *API) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

func (a *API) send(req *http.Request, out interface{}) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{Status: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}
	if out == nil {
		return nil
	}
	var env apiEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("decode response envelope: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// SendMessageInput mirrors the POST /messages body.
type SendMessageInput struct {
	ReceiverID     uint   `json:"receiverId"`
	Content        string `json:"content,omitempty"`
	Kind           string `json:"kind"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	AttachmentName string `json:"attachmentName,omitempty"`
}

func (a *API) SendMessage(ctx context.Context, in SendMessageInput) (models.Message, error) {
	var msg models.Message
	err := a.do(ctx, http.MethodPost, "/messages", in, &msg)
	return msg, err
}

func (a *API) Conversation(ctx context.Context, otherID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := a.do(ctx, http.MethodGet, fmt.Sprintf("/messages/conversation/%d", otherID), nil, &msgs)
	return msgs, err
}

func (a *API) ListConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := a.do(ctx, http.MethodGet, "/messages/list/all", nil, &summaries)
	return summaries, err
}

func (a *API) EnsureConversation(ctx context.Context, otherID uint, initial string) (models.ConversationSummary, error) {
	var summary models.ConversationSummary
	body := map[string]interface{}{"receiverId": otherID, "content": initial}
	err := a.do(ctx, http.MethodPost, "/messages/conversations", body, &summary)
	return summary, err
}

func (a *API) MarkRead(ctx context.Context, messageID uint) (models.Message, error) {
	var msg models.Message
	err := a.do(ctx, http.MethodPut, fmt.Sprintf("/messages/%d/read", messageID), nil, &msg)
	return msg, err
}

func (a *API) DeleteMessage(ctx context.Context, messageID uint) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/%d", messageID), nil, nil)
}

func (a *API) DeleteConversation(ctx context.Context, otherID uint) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/messages/conversation/%d", otherID), nil, nil)
}

// Upload sends one attachment as multipart form data and returns the opaque
// reference a later SendMessage carries.
func (a *API) Upload(ctx context.Context, filename string, r io.Reader) (services.UploadResult, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return services.UploadResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return services.UploadResult{}, fmt.Errorf("buffer upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return services.UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/messages/upload", &buf)
	if err != nil {
		return services.UploadResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", w.FormDataContentType())

	var result services.UploadResult
	err = a.send(req, &result)
	return result, err
}
