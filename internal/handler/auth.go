package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/toikobi401/MessengerClone/internal/auth"
	"github.com/toikobi401/MessengerClone/internal/email"
	"github.com/toikobi401/MessengerClone/internal/middleware"
	"github.com/toikobi401/MessengerClone/internal/model"
	"github.com/toikobi401/MessengerClone/internal/store"
)

type AuthHandler struct {
	Store       store.Store
	TokenConfig auth.TokenConfig
	Email       email.Sender
	OTPLimiter  *middleware.RateLimiter
}

type registerBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOTPBody struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type resendOTPBody struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

func (h *AuthHandler) issueOTP(email, purpose string) error {
	code, err := auth.GenerateOTP()
	if err != nil {
		return err
	}
	hash, err := auth.HashOTP(code)
	if err != nil {
		return err
	}

	otp := model.EmailOTP{
		Email:     email,
		CodeHash:  hash,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(auth.OTPExpiry).UnixMilli(),
	}
	if err := h.Store.UpsertOTP(otp); err != nil {
		return err
	}

	// The code must reach the mailbox before it is considered issued.
	if err := h.Email.SendOTP(email, code, purpose); err != nil {
		_ = h.Store.DeleteOTP(email, purpose)
		return err
	}
	return nil
}

func (h *AuthHandler) checkOTP(emailAddr, purpose, code string) (bool, string) {
	otp, err := h.Store.GetOTP(emailAddr, purpose)
	if err != nil {
		return false, "No verification code found. Request a new one."
	}
	if otp.Expired(time.Now().UnixMilli()) {
		_ = h.Store.DeleteOTP(emailAddr, purpose)
		return false, "Verification code expired. Request a new one."
	}
	if !auth.CheckOTP(otp.CodeHash, code) {
		return false, "Incorrect verification code"
	}
	_ = h.Store.DeleteOTP(emailAddr, purpose)
	return true, ""
}

func (h *AuthHandler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}

	body.Username = strings.TrimSpace(body.Username)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	if body.Username == "" || body.Email == "" || len(body.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Username, email and a password of at least 8 characters are required"})
		return
	}

	if _, err := h.Store.GetUserByEmail(body.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Email already used"})
		return
	}
	if _, err := h.Store.GetUserByUsername(body.Username); err == nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Username already used"})
		return
	}

	if h.OTPLimiter != nil && !h.OTPLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Rate limit exceeded"})
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}
	pending := model.PendingRegistration{
		Email:    body.Email,
		Username: body.Username,
		Password: hash,
	}
	if err := h.Store.UpsertPendingRegistration(pending); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}

	if err := h.issueOTP(body.Email, model.OTPPurposeRegistration); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not send verification code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}

func (h *AuthHandler) VerifyRegistration(c *gin.Context) {
	var body verifyOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	pending, err := h.Store.GetPendingRegistration(body.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No pending registration for this email"})
		return
	}

	ok, msg := h.checkOTP(body.Email, model.OTPPurposeRegistration, body.OTP)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
		return
	}

	user := model.User{
		Username: pending.Username,
		Email:    pending.Email,
		Password: pending.Password,
	}
	created, err := h.Store.CreateUser(user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Email or username already used"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Registration failed"})
		return
	}
	_ = h.Store.DeletePendingRegistration(body.Email)

	c.JSON(http.StatusOK, gin.H{"success": true, "user": created})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	user, err := h.Store.GetUserByEmail(body.Email)
	if err != nil || !auth.CheckPassword(user.Password, body.Password) {
		// Same message for unknown email and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Incorrect email or password"})
		return
	}

	if h.OTPLimiter != nil && !h.OTPLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Rate limit exceeded"})
		return
	}

	if err := h.issueOTP(body.Email, model.OTPPurposeLogin2FA); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not send login code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Login code sent"})
}

func (h *AuthHandler) VerifyLogin(c *gin.Context) {
	var body verifyOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	user, err := h.Store.GetUserByEmail(body.Email)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Incorrect email or password"})
		return
	}

	ok, msg := h.checkOTP(body.Email, model.OTPPurposeLogin2FA, body.OTP)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": msg})
		return
	}

	token, err := auth.CreateToken(user.ID, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Token creation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "user": user, "token": token})
}

func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var body resendOTPBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request"})
		return
	}
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))

	switch body.Purpose {
	case model.OTPPurposeRegistration:
		if _, err := h.Store.GetPendingRegistration(body.Email); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No pending registration for this email"})
			return
		}
	case model.OTPPurposeLogin2FA:
		if _, err := h.Store.GetUserByEmail(body.Email); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "No account found for this email"})
			return
		}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Unknown purpose"})
		return
	}

	if h.OTPLimiter != nil && !h.OTPLimiter.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "Rate limit exceeded"})
		return
	}

	if err := h.issueOTP(body.Email, body.Purpose); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not send verification code"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Verification code sent"})
}

// AllUsers lists everyone except the requesting user, for the contact picker.
func (h *AuthHandler) AllUsers(c *gin.Context) {
	id := c.Param("id")
	users, err := h.Store.ListUsersExcept(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not list users"})
		return
	}

	profiles := make([]model.Profile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Profile())
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": profiles})
}

type setAvatarBody struct {
	Image string `json:"image"`
}

func (h *AuthHandler) SetAvatar(c *gin.Context) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid authentication token"})
		return
	}
	if c.Param("id") != userID {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Cannot change another user's avatar"})
		return
	}

	var body setAvatarBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Image is required"})
		return
	}

	user, err := h.Store.GetUser(userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
		return
	}

	user.AvatarImage = body.Image
	user.IsAvatarImageSet = true
	if err := h.Store.UpdateUser(user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Could not update avatar"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "isSet": true, "image": body.Image})
}
