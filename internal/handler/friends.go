package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/middleware"
	"github.com/toikobi401/MessengerClone/internal/model"
	"github.com/toikobi401/MessengerClone/internal/store"
)

type FriendHandler struct {
	Store store.Store
}

func (h *FriendHandler) Search(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Search query is required"})
		return
	}

	users, err := h.Store.SearchUsers(query, userID, 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Search failed"})
		return
	}

	profiles := make([]model.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": profiles})
}

type addFriendBody struct {
	ReceiverID string `json:"receiverId"`
}

func (h *FriendHandler) Add(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	var body addFriendBody
	if err := c.ShouldBindJSON(&body); err != nil || body.ReceiverID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Receiver is required"})
		return
	}
	if body.ReceiverID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Cannot send a friend request to yourself"})
		return
	}
	if _, err := h.Store.GetUser(body.ReceiverID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	req, err := h.Store.CreateFriendRequest(model.FriendRequest{
		SenderID:   userID,
		ReceiverID: body.ReceiverID,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "A request between these users already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not send friend request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": req})
}

type pendingRequestEntry struct {
	model.FriendRequest
	Sender *model.Profile `json:"sender,omitempty"`
}

func (h *FriendHandler) Requests(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	reqs, err := h.Store.ListPendingFriendRequests(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not list friend requests"})
		return
	}

	entries := make([]pendingRequestEntry, 0, len(reqs))
	for _, req := range reqs {
		entry := pendingRequestEntry{FriendRequest: req}
		if sender, err := h.Store.GetUser(req.SenderID); err == nil {
			profile := sender.Profile()
			entry.Sender = &profile
		}
		entries = append(entries, entry)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}

type answerRequestBody struct {
	RequestID string `json:"requestId"`
}

func (h *FriendHandler) resolvePending(c *gin.Context) (model.FriendRequest, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return model.FriendRequest{}, false
	}

	var body answerRequestBody
	if err := c.ShouldBindJSON(&body); err != nil || body.RequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Request id is required"})
		return model.FriendRequest{}, false
	}

	req, err := h.Store.GetFriendRequest(body.RequestID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Friend request not found"})
		return model.FriendRequest{}, false
	}
	if req.ReceiverID != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Only the receiver can answer a friend request"})
		return model.FriendRequest{}, false
	}
	if req.Status != model.FriendRequestPending {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Friend request already answered"})
		return model.FriendRequest{}, false
	}
	return req, true
}

func (h *FriendHandler) Accept(c *gin.Context) {
	req, ok := h.resolvePending(c)
	if !ok {
		return
	}
	if err := h.Store.UpdateFriendRequestStatus(req.ID, model.FriendRequestAccepted); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not accept friend request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend request accepted"})
}

func (h *FriendHandler) Reject(c *gin.Context) {
	req, ok := h.resolvePending(c)
	if !ok {
		return
	}
	if err := h.Store.UpdateFriendRequestStatus(req.ID, model.FriendRequestRejected); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not reject friend request"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Friend request rejected"})
}

func (h *FriendHandler) List(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}

	friendIDs, err := h.Store.ListFriends(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not list friends"})
		return
	}

	profiles := make([]model.Profile, 0, len(friendIDs))
	for _, id := range friendIDs {
		if user, err := h.Store.GetUser(id); err == nil {
			profiles = append(profiles, user.Profile())
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": profiles})
}
