package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/middleware"
	"github.com/toikobi401/MessengerClone/internal/store"
)

type UserHandler struct {
	Store store.Store
}

func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.Store.GetUser(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user.Profile()})
}

type updateUserBody struct {
	Username    string `json:"username"`
	AvatarImage string `json:"avatarImage"`
}

func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}
	if c.Param("id") != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Cannot update another user's profile"})
		return
	}

	var body updateUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	user, err := h.Store.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	if username := strings.TrimSpace(body.Username); username != "" {
		user.Username = username
	}
	if body.AvatarImage != "" {
		user.AvatarImage = body.AvatarImage
		user.IsAvatarImageSet = true
	}

	if err := h.Store.UpdateUser(user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Username already used"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not update profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": user.Profile()})
}
