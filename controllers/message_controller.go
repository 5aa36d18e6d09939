package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yassineAchour0609/MediLink-sub000/middlewares"
	"github.com/yassineAchour0609/MediLink-sub000/services"
	"github.com/yassineAchour0609/MediLink-sub000/utils"
)

// MessageController exposes the messaging REST surface. Every handler runs
// behind TokenAuth and trusts the resolved caller identity.
type MessageController struct {
	Messages   *services.MessageService
	Dispatcher *services.Dispatcher
	Uploads    *services.UploadStore
}

func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		utils.RespondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		utils.RespondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrNotFound):
		utils.RespondError(c, http.StatusNotFound, err.Error())
	default:
		log.Printf("messages: %v", err)
		utils.RespondError(c, http.StatusInternalServerError, "internal error")
	}
}

func callerID(c *gin.Context) (uint, bool) {
	id, ok := middlewares.CurrentUserID(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, "unauthenticated")
	}
	return id, ok
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(n), true
}

// Send persists a message and then, and only then, hands it to the realtime
// dispatcher.
func (mc *MessageController) Send(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var input struct {
		ReceiverID     uint   `json:"receiverId" binding:"required"`
		Content        string `json:"content"`
		Kind           string `json:"kind" binding:"required"`
		AttachmentURL  string `json:"attachmentUrl"`
		AttachmentName string `json:"attachmentName"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := mc.Messages.Send(services.SendInput{
		SenderID:       caller,
		ReceiverID:     input.ReceiverID,
		Content:        input.Content,
		Kind:           input.Kind,
		AttachmentURL:  input.AttachmentURL,
		AttachmentName: input.AttachmentName,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	mc.Dispatcher.DispatchMessage(msg)
	utils.RespondSuccess(c, msg, nil)
}

// Conversation returns the full thread with :otherId and batch-marks the
// caller's unread incoming messages as read.
func (mc *MessageController) Conversation(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	other, ok := uintParam(c, "otherId")
	if !ok {
		return
	}
	msgs, err := mc.Messages.Conversation(caller, other)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, msgs, nil)
}

func (mc *MessageController) ListAll(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	summaries, err := mc.Messages.ListConversations(caller)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, summaries, nil)
}

func (mc *MessageController) EnsureConversation(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var input struct {
		ReceiverID uint   `json:"receiverId" binding:"required"`
		Content    string `json:"content"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}
	summary, seeded, err := mc.Messages.EnsureConversation(caller, input.ReceiverID, input.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if seeded != nil {
		mc.Dispatcher.DispatchMessage(*seeded)
	}
	utils.RespondSuccess(c, summary, nil)
}

func (mc *MessageController) MarkRead(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	msg, err := mc.Messages.MarkRead(caller, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, msg, nil)
}

func (mc *MessageController) Delete(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := mc.Messages.Delete(caller, id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"deleted": id}, nil)
}

func (mc *MessageController) DeleteConversation(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	other, ok := uintParam(c, "otherId")
	if !ok {
		return
	}
	if err := mc.Messages.DeleteConversation(caller, other); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, gin.H{"deletedWith": other}, nil)
}

// Upload stores one attachment and returns the opaque reference a later
// Send carries.
func (mc *MessageController) Upload(c *gin.Context) {
	if _, ok := callerID(c); !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "missing file field")
		return
	}
	result, err := mc.Uploads.Save(fh)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondSuccess(c, result, nil)
}
