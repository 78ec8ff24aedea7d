// Package database implements store.Store on postgres via gorm. It is
// selected in production when MESSENGER_DATABASE_URL is set; the in-memory
// store backs everything else.
package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/toikobi401/MessengerClone/internal/model"
	"github.com/toikobi401/MessengerClone/internal/store"
)

type GormDB struct {
	DB *gorm.DB
}

var _ store.Store = (*GormDB)(nil)

func New(dsn string, debug bool) (*GormDB, error) {
	gormConfig := &gorm.Config{TranslateError: true}
	if debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}), gormConfig)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres")
	}
	if err := migrate(db); err != nil {
		return nil, errors.Wrap(err, "running migrations")
	}
	return &GormDB{DB: db}, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.PendingRegistration{},
		&model.EmailOTP{},
		&model.Conversation{},
		&model.ConversationParticipant{},
		&model.Message{},
		&model.FriendRequest{},
	)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrConflict
	default:
		return err
	}
}

func (g *GormDB) CreateUser(user model.User) (model.User, error) {
	var count int64
	if err := g.DB.Model(&model.User{}).
		Where("email = ? OR username = ?", user.Email, user.Username).
		Count(&count).Error; err != nil {
		return model.User{}, errors.Wrap(err, "checking user uniqueness")
	}
	if count > 0 {
		return model.User{}, store.ErrConflict
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := g.DB.Create(&user).Error; err != nil {
		return model.User{}, translate(err)
	}
	return user, nil
}

func (g *GormDB) GetUser(id string) (model.User, error) {
	var user model.User
	err := g.DB.First(&user, "id = ?", id).Error
	return user, translate(err)
}

func (g *GormDB) GetUserByEmail(email string) (model.User, error) {
	var user model.User
	err := g.DB.First(&user, "email = ?", email).Error
	return user, translate(err)
}

func (g *GormDB) GetUserByUsername(username string) (model.User, error) {
	var user model.User
	err := g.DB.First(&user, "username = ?", username).Error
	return user, translate(err)
}

func (g *GormDB) UpdateUser(user model.User) error {
	res := g.DB.Model(&model.User{ID: user.ID}).Updates(map[string]any{
		"username":            user.Username,
		"password":            user.Password,
		"avatar_image":        user.AvatarImage,
		"is_avatar_image_set": user.IsAvatarImageSet,
		"updated_at":          nowMillis(),
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (g *GormDB) ListUsersExcept(excludeID string) ([]model.User, error) {
	var users []model.User
	err := g.DB.Where("id <> ?", excludeID).Order("username asc").Find(&users).Error
	return users, translate(err)
}

func (g *GormDB) SearchUsers(query, excludeID string, limit int) ([]model.User, error) {
	var users []model.User
	pattern := "%" + query + "%"
	err := g.DB.Where("id <> ? AND (username ILIKE ? OR email ILIKE ?)", excludeID, pattern, pattern).
		Order("username asc").
		Limit(limit).
		Find(&users).Error
	return users, translate(err)
}

func (g *GormDB) UpsertPendingRegistration(reg model.PendingRegistration) error {
	return translate(g.DB.Save(&reg).Error)
}

func (g *GormDB) GetPendingRegistration(email string) (model.PendingRegistration, error) {
	var reg model.PendingRegistration
	err := g.DB.First(&reg, "email = ?", email).Error
	return reg, translate(err)
}

func (g *GormDB) DeletePendingRegistration(email string) error {
	return translate(g.DB.Delete(&model.PendingRegistration{}, "email = ?", email).Error)
}

func (g *GormDB) UpsertOTP(otp model.EmailOTP) error {
	// Replace any previous code for the same (email, purpose).
	if err := g.DB.Delete(&model.EmailOTP{}, "email = ? AND purpose = ?", otp.Email, otp.Purpose).Error; err != nil {
		return translate(err)
	}
	return translate(g.DB.Create(&otp).Error)
}

func (g *GormDB) GetOTP(email, purpose string) (model.EmailOTP, error) {
	var otp model.EmailOTP
	err := g.DB.First(&otp, "email = ? AND purpose = ?", email, purpose).Error
	return otp, translate(err)
}

func (g *GormDB) DeleteOTP(email, purpose string) error {
	return translate(g.DB.Delete(&model.EmailOTP{}, "email = ? AND purpose = ?", email, purpose).Error)
}

func (g *GormDB) FindPrivateConversation(userA, userB string) (model.Conversation, error) {
	if userA == userB {
		return model.Conversation{}, store.ErrSelfPair
	}

	var conv model.Conversation
	err := g.DB.
		Joins("INNER JOIN conversation_participants cp1 ON conversations.id = cp1.conversation_id").
		Joins("INNER JOIN conversation_participants cp2 ON conversations.id = cp2.conversation_id").
		Where("conversations.type = ? AND cp1.user_id = ? AND cp2.user_id = ?", model.ConversationPrivate, userA, userB).
		First(&conv).Error
	return conv, translate(err)
}

func (g *GormDB) CreateConversation(convType string, participantIDs []string) (model.Conversation, error) {
	now := nowMillis()
	conv := model.Conversation{
		ID:        uuid.NewString(),
		Type:      convType,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := g.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for _, userID := range participantIDs {
			p := model.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         userID,
				JoinedAt:       now,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Conversation{}, errors.Wrap(err, "creating conversation")
	}
	return conv, nil
}

func (g *GormDB) GetConversation(id string) (model.Conversation, error) {
	var conv model.Conversation
	err := g.DB.First(&conv, "id = ?", id).Error
	return conv, translate(err)
}

func (g *GormDB) IsParticipant(conversationID, userID string) (bool, error) {
	if _, err := g.GetConversation(conversationID); err != nil {
		return false, err
	}
	var count int64
	err := g.DB.Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, translate(err)
}

func (g *GormDB) ListUserConversations(userID string) ([]store.ConversationSummary, error) {
	var convs []model.Conversation
	err := g.DB.
		Joins("INNER JOIN conversation_participants cp ON conversations.id = cp.conversation_id").
		Where("cp.user_id = ?", userID).
		Order("conversations.updated_at desc").
		Find(&convs).Error
	if err != nil {
		return nil, translate(err)
	}

	result := make([]store.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := store.ConversationSummary{
			ID:        conv.ID,
			Type:      conv.Type,
			UpdatedAt: conv.UpdatedAt,
		}

		var other model.ConversationParticipant
		err := g.DB.
			Where("conversation_id = ? AND user_id <> ?", conv.ID, userID).
			First(&other).Error
		if err == nil {
			if user, err := g.GetUser(other.UserID); err == nil {
				profile := user.Profile()
				summary.Participant = &profile
			}
		}

		var last model.Message
		err = g.DB.
			Where("conversation_id = ?", conv.ID).
			Order("created_at desc").
			First(&last).Error
		if err == nil {
			summary.LastMessage = &last
		}

		result = append(result, summary)
	}
	return result, nil
}

func (g *GormDB) CreateMessage(msg model.Message) (model.Message, error) {
	if msg.ConversationID != "" {
		ok, err := g.IsParticipant(msg.ConversationID, msg.SenderID)
		if err != nil {
			return model.Message{}, err
		}
		if !ok {
			return model.Message{}, store.ErrNotPartOfConv
		}
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.IsEdited = false

	err := g.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		if msg.ConversationID != "" {
			return tx.Model(&model.Conversation{}).
				Where("id = ?", msg.ConversationID).
				Update("updated_at", nowMillis()).Error
		}
		return nil
	})
	if err != nil {
		return model.Message{}, errors.Wrap(err, "creating message")
	}
	return msg, nil
}

func (g *GormDB) GetMessage(id string) (model.Message, error) {
	var msg model.Message
	err := g.DB.First(&msg, "id = ?", id).Error
	return msg, translate(err)
}

func (g *GormDB) ListConversationMessages(conversationID string) ([]model.Message, error) {
	if _, err := g.GetConversation(conversationID); err != nil {
		return nil, err
	}
	var msgs []model.Message
	err := g.DB.Where("conversation_id = ?", conversationID).
		Order("created_at asc").
		Find(&msgs).Error
	return msgs, translate(err)
}

func (g *GormDB) UpdateMessageContent(id, content string) (model.Message, error) {
	msg, err := g.GetMessage(id)
	if err != nil {
		return model.Message{}, err
	}

	err = g.DB.Model(&model.Message{ID: id}).Updates(map[string]any{
		"content":   content,
		"is_edited": true,
	}).Error
	if err != nil {
		return model.Message{}, translate(err)
	}

	msg.Content = content
	msg.IsEdited = true
	return msg, nil
}

func (g *GormDB) CreateFriendRequest(req model.FriendRequest) (model.FriendRequest, error) {
	existing, err := g.FindFriendRequestBetween(req.SenderID, req.ReceiverID)
	switch {
	case err == nil && existing.Status != model.FriendRequestRejected:
		return model.FriendRequest{}, store.ErrConflict
	case err == nil:
		// A rejected request does not block a new attempt.
		if err := g.DeleteFriendRequest(existing.ID); err != nil {
			return model.FriendRequest{}, err
		}
	case !errors.Is(err, store.ErrNotFound):
		return model.FriendRequest{}, err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.Status = model.FriendRequestPending
	if err := g.DB.Create(&req).Error; err != nil {
		return model.FriendRequest{}, translate(err)
	}
	return req, nil
}

func (g *GormDB) FindFriendRequestBetween(userA, userB string) (model.FriendRequest, error) {
	var req model.FriendRequest
	err := g.DB.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		First(&req).Error
	return req, translate(err)
}

func (g *GormDB) GetFriendRequest(id string) (model.FriendRequest, error) {
	var req model.FriendRequest
	err := g.DB.First(&req, "id = ?", id).Error
	return req, translate(err)
}

func (g *GormDB) ListPendingFriendRequests(receiverID string) ([]model.FriendRequest, error) {
	var reqs []model.FriendRequest
	err := g.DB.
		Where("receiver_id = ? AND status = ?", receiverID, model.FriendRequestPending).
		Order("created_at desc").
		Find(&reqs).Error
	return reqs, translate(err)
}

func (g *GormDB) UpdateFriendRequestStatus(id, status string) error {
	res := g.DB.Model(&model.FriendRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": nowMillis()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (g *GormDB) DeleteFriendRequest(id string) error {
	res := g.DB.Delete(&model.FriendRequest{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (g *GormDB) ListFriends(userID string) ([]string, error) {
	var reqs []model.FriendRequest
	err := g.DB.
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", userID, userID, model.FriendRequestAccepted).
		Find(&reqs).Error
	if err != nil {
		return nil, translate(err)
	}

	result := make([]string, 0, len(reqs))
	for _, req := range reqs {
		if req.SenderID == userID {
			result = append(result, req.ReceiverID)
		} else {
			result = append(result, req.SenderID)
		}
	}
	return result, nil
}
