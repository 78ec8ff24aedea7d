package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/middleware"
	"github.com/toikobi401/MessengerClone/internal/model"
	"github.com/toikobi401/MessengerClone/internal/store"
)

type ConversationHandler struct {
	Store store.Store
}

type initConversationBody struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// Init resolves the private conversation between two users, creating it on
// first contact. Find-then-create is not atomic; two racing inits can briefly
// produce duplicate rows, and the first one found wins thereafter.
func (h *ConversationHandler) Init(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	var body initConversationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	if body.SenderID == "" {
		body.SenderID = userID
	}
	if body.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Cannot open a conversation for another user"})
		return
	}
	if body.ReceiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Receiver is required"})
		return
	}
	if body.ReceiverID == body.SenderID {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot open a conversation with yourself"})
		return
	}
	if _, err := h.Store.GetUser(body.ReceiverID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	conv, err := h.Store.FindPrivateConversation(body.SenderID, body.ReceiverID)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": conv, "isNew": false})
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not open conversation"})
		return
	}

	conv, err = h.Store.CreateConversation(model.ConversationPrivate, []string{body.SenderID, body.ReceiverID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not open conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": conv, "isNew": true})
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	summaries, err := h.Store.ListUserConversations(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": summaries})
}

func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	conv, err := h.Store.GetConversation(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Conversation not found"})
		return
	}

	member, err := h.Store.IsParticipant(conv.ID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Not part of this conversation"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": conv})
}
