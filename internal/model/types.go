package model

import (
	"fmt"
	"strings"
)

// MessageType is the closed set of message payload kinds. The payload of a
// text message is the text itself; for the other kinds it is the blob-store
// URL of the uploaded attachment.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageFile  MessageType = "file"
)

func ParseMessageType(s string) (MessageType, error) {
	switch MessageType(s) {
	case MessageText, MessageImage, MessageVideo, MessageFile:
		return MessageType(s), nil
	case "":
		return MessageText, nil
	}
	return "", fmt.Errorf("unknown message type %q", s)
}

// MessageTypeForMIME maps an attachment's MIME type to its message kind.
func MessageTypeForMIME(contentType string) MessageType {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return MessageImage
	case strings.HasPrefix(contentType, "video/"):
		return MessageVideo
	default:
		return MessageFile
	}
}

type User struct {
	ID               string `gorm:"primaryKey;type:uuid" json:"id"`
	Username         string `gorm:"uniqueIndex;not null" json:"username"`
	Email            string `gorm:"uniqueIndex;not null" json:"email"`
	Password         string `gorm:"not null" json:"-"`
	AvatarImage      string `json:"avatarImage"`
	IsAvatarImageSet bool   `json:"isAvatarImageSet"`
	CreatedAt        int64  `gorm:"autoCreateTime:milli" json:"createdAt"`
	UpdatedAt        int64  `gorm:"autoUpdateTime:milli" json:"updatedAt"`
}

// Profile is the public projection of a User sent to other clients.
type Profile struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	AvatarImage      string `json:"avatarImage"`
	IsAvatarImageSet bool   `json:"isAvatarImageSet"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		AvatarImage:      u.AvatarImage,
		IsAvatarImageSet: u.IsAvatarImageSet,
	}
}

const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

type Conversation struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	Type      string `gorm:"index;not null;default:private" json:"type"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"createdAt"`
	// UpdatedAt is bumped on every new message; it is the sort key for a
	// user's conversation list.
	UpdatedAt int64 `gorm:"index:,sort:desc" json:"updatedAt"`
}

type ConversationParticipant struct {
	ConversationID string `gorm:"primaryKey;type:uuid" json:"conversationId"`
	UserID         string `gorm:"primaryKey;type:uuid;index" json:"userId"`
	JoinedAt       int64  `gorm:"autoCreateTime:milli" json:"joinedAt"`
}

type Message struct {
	ID string `gorm:"primaryKey;type:uuid" json:"id"`
	// ConversationID is empty for legacy messages created before the
	// conversation table existed.
	ConversationID string      `gorm:"type:uuid;index" json:"conversationId"`
	SenderID       string      `gorm:"type:uuid;index;not null" json:"senderId"`
	Content        string      `gorm:"type:text;not null" json:"message"`
	Type           MessageType `gorm:"index;not null;default:text" json:"type"`
	IsEdited       bool        `gorm:"not null;default:false" json:"isEdited"`
	// CreatedAt is immutable; edits never re-timestamp a message.
	CreatedAt int64 `gorm:"autoCreateTime:milli" json:"createdAt"`
}

const (
	FriendRequestPending  = "pending"
	FriendRequestAccepted = "accepted"
	FriendRequestRejected = "rejected"
)

type FriendRequest struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	SenderID   string `gorm:"type:uuid;not null;uniqueIndex:uniq_friend_request" json:"senderId"`
	ReceiverID string `gorm:"type:uuid;not null;uniqueIndex:uniq_friend_request" json:"receiverId"`
	Status     string `gorm:"index;not null;default:pending" json:"status"`
	CreatedAt  int64  `gorm:"autoCreateTime:milli" json:"createdAt"`
	UpdatedAt  int64  `gorm:"autoUpdateTime:milli" json:"updatedAt"`
}

const (
	OTPPurposeRegistration = "registration"
	OTPPurposeLogin2FA     = "login_2fa"
)

// EmailOTP holds a bcrypt-hashed one-time code. At most one active code per
// (email, purpose); issuing a new code replaces the previous one.
type EmailOTP struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string `gorm:"index;not null" json:"email"`
	CodeHash  string `gorm:"not null" json:"-"`
	Purpose   string `gorm:"not null;default:registration" json:"purpose"`
	ExpiresAt int64  `gorm:"index" json:"expiresAt"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"createdAt"`
}

func (o EmailOTP) Expired(nowMillis int64) bool {
	return nowMillis > o.ExpiresAt
}

// PendingRegistration is a registration awaiting e-mail verification. The
// user row is created only once the registration OTP checks out.
type PendingRegistration struct {
	Email     string `gorm:"primaryKey" json:"email"`
	Username  string `gorm:"not null" json:"username"`
	Password  string `gorm:"not null" json:"-"`
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"createdAt"`
}
