package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/blob"
	"github.com/toikobi401/MessengerClone/internal/middleware"
	"github.com/toikobi401/MessengerClone/internal/model"
	"github.com/toikobi401/MessengerClone/internal/store"
	"github.com/toikobi401/MessengerClone/internal/upload"
)

type MessageHandler struct {
	Store store.Store
	Blob  *blob.Client
}

type addMessageBody struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Message        string `json:"message"`
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// Add stores a message. Text arrives as JSON; small media files arrive as a
// multipart form and are proxied to the media store before the message row is
// written. Large files never pass through here; clients chunk them directly
// against a signed credential.
func (h *MessageHandler) Add(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.addFileMessage(c, userID)
		return
	}

	var body addMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	if body.From == "" {
		body.From = userID
	}
	if body.From != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Cannot send as another user"})
		return
	}
	if body.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Message is required"})
		return
	}

	msgType, err := model.ParseMessageType(body.Type)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unknown message type"})
		return
	}

	h.storeMessage(c, model.Message{
		ConversationID: body.ConversationID,
		SenderID:       userID,
		Content:        body.Message,
		Type:           msgType,
	})
}

func (h *MessageHandler) addFileMessage(c *gin.Context, userID string) {
	if h.Blob == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Media uploads are not configured"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "File is required"})
		return
	}
	defer file.Close()

	if header.Size > upload.SmallFileThreshold {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "File too large for direct upload; use the chunked flow"})
		return
	}

	url, err := h.Blob.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Upload failed"})
		return
	}

	mime := header.Header.Get("Content-Type")
	h.storeMessage(c, model.Message{
		ConversationID: c.Request.FormValue("conversationId"),
		SenderID:       userID,
		Content:        url,
		Type:           model.MessageTypeForMIME(mime),
	})
}

func (h *MessageHandler) storeMessage(c *gin.Context, msg model.Message) {
	created, err := h.Store.CreateMessage(msg)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Conversation not found"})
		case errors.Is(err, store.ErrNotPartOfConv):
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not part of this conversation"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not store message"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": created})
}

type historyEntry struct {
	ID             string            `json:"id"`
	FromSelf       bool              `json:"fromSelf"`
	Message        string            `json:"message"`
	Type           model.MessageType `json:"type"`
	IsEdited       bool              `json:"isEdited"`
	ConversationID string            `json:"conversationId"`
	CreatedAt      int64             `json:"createdAt"`
}

// History returns a conversation's messages oldest first.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	conversationID := c.Param("conversationId")
	member, err := h.Store.IsParticipant(conversationID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Conversation not found"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not part of this conversation"})
		return
	}

	msgs, err := h.Store.ListConversationMessages(conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not load messages"})
		return
	}

	entries := make([]historyEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, historyEntry{
			ID:             m.ID,
			FromSelf:       m.SenderID == userID,
			Message:        m.Content,
			Type:           m.Type,
			IsEdited:       m.IsEdited,
			ConversationID: m.ConversationID,
			CreatedAt:      m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

type editMessageBody struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
}

// Edit replaces a message's content. Only the sender may edit, and only the
// content and edited flag change.
func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	var body editMessageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	if body.MessageID == "" || body.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Message id and content are required"})
		return
	}

	msg, err := h.Store.GetMessage(body.MessageID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Message not found"})
		return
	}
	if msg.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Only the sender can edit a message"})
		return
	}

	updated, err := h.Store.UpdateMessageContent(body.MessageID, body.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not edit message"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
}

// GenerateSignature hands the client a short-lived credential for uploading
// directly to the media store.
func (h *MessageHandler) GenerateSignature(c *gin.Context) {
	if _, ok := middleware.UserIDFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}
	if h.Blob == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Media uploads are not configured"})
		return
	}

	cred := h.Blob.SignUpload(time.Now())
	c.JSON(http.StatusOK, gin.H{"success": true, "data": cred})
}
