// Package store defines the durable-store query surface the rest of the
// server programs against. The in-memory implementation in this package backs
// tests and single-node development; internal/database provides the
// postgres-backed implementation used in production.
package store

import (
	"errors"

	"github.com/toikobi401/MessengerClone/internal/model"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already exists")
	ErrSelfPair      = errors.New("cannot pair a user with themselves")
	ErrNotPartOfConv = errors.New("not a participant of this conversation")
)

// ConversationSummary is one row of a user's conversation list.
type ConversationSummary struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Participant *model.Profile `json:"participant"`
	LastMessage *model.Message `json:"lastMessage"`
	UpdatedAt   int64          `json:"updatedAt"`
}

type Store interface {
	// Users.
	CreateUser(user model.User) (model.User, error)
	GetUser(id string) (model.User, error)
	GetUserByEmail(email string) (model.User, error)
	GetUserByUsername(username string) (model.User, error)
	UpdateUser(user model.User) error
	ListUsersExcept(excludeID string) ([]model.User, error)
	SearchUsers(query, excludeID string, limit int) ([]model.User, error)

	// Registration & one-time codes.
	UpsertPendingRegistration(reg model.PendingRegistration) error
	GetPendingRegistration(email string) (model.PendingRegistration, error)
	DeletePendingRegistration(email string) error
	UpsertOTP(otp model.EmailOTP) error
	GetOTP(email, purpose string) (model.EmailOTP, error)
	DeleteOTP(email, purpose string) error

	// Conversations. FindPrivateConversation returns ErrNotFound when the
	// pair has never conversed; CreateConversation inserts the conversation
	// row plus one participant row per user, in that order.
	FindPrivateConversation(userA, userB string) (model.Conversation, error)
	CreateConversation(convType string, participantIDs []string) (model.Conversation, error)
	GetConversation(id string) (model.Conversation, error)
	IsParticipant(conversationID, userID string) (bool, error)
	ListUserConversations(userID string) ([]ConversationSummary, error)

	// Messages. CreateMessage bumps the owning conversation's UpdatedAt.
	CreateMessage(msg model.Message) (model.Message, error)
	GetMessage(id string) (model.Message, error)
	ListConversationMessages(conversationID string) ([]model.Message, error)
	UpdateMessageContent(id, content string) (model.Message, error)

	// Friend requests.
	CreateFriendRequest(req model.FriendRequest) (model.FriendRequest, error)
	FindFriendRequestBetween(userA, userB string) (model.FriendRequest, error)
	GetFriendRequest(id string) (model.FriendRequest, error)
	ListPendingFriendRequests(receiverID string) ([]model.FriendRequest, error)
	UpdateFriendRequestStatus(id, status string) error
	DeleteFriendRequest(id string) error
	ListFriends(userID string) ([]string, error)
}
