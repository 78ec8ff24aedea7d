package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/toikobi401/MessengerClone/internal/model"
)

// Memory is the in-memory Store. All state lives behind one RWMutex; ids are
// uuids and timestamps Unix milliseconds.
type Memory struct {
	mu sync.RWMutex

	usersByID      map[string]model.User
	userIDByName   map[string]string
	userIDByEmail  map[string]string
	pendingByEmail map[string]model.PendingRegistration
	otpsByKey      map[string]model.EmailOTP

	conversationsByID  map[string]model.Conversation
	participantsByConv map[string][]model.ConversationParticipant

	messagesByID   map[string]model.Message
	messagesByConv map[string][]string

	friendRequestsByID map[string]model.FriendRequest
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		usersByID:          make(map[string]model.User),
		userIDByName:       make(map[string]string),
		userIDByEmail:      make(map[string]string),
		pendingByEmail:     make(map[string]model.PendingRegistration),
		otpsByKey:          make(map[string]model.EmailOTP),
		conversationsByID:  make(map[string]model.Conversation),
		participantsByConv: make(map[string][]model.ConversationParticipant),
		messagesByID:       make(map[string]model.Message),
		messagesByConv:     make(map[string][]string),
		friendRequestsByID: make(map[string]model.FriendRequest),
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func otpKey(email, purpose string) string {
	return email + "|" + purpose
}

func (m *Memory) CreateUser(user model.User) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.userIDByEmail[user.Email]; ok {
		return model.User{}, ErrConflict
	}
	if _, ok := m.userIDByName[user.Username]; ok {
		return model.User{}, ErrConflict
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := nowMillis()
	user.CreatedAt = now
	user.UpdatedAt = now

	m.usersByID[user.ID] = user
	m.userIDByEmail[user.Email] = user.ID
	m.userIDByName[user.Username] = user.ID
	return user, nil
}

func (m *Memory) GetUser(id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.usersByID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) GetUserByEmail(email string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.userIDByEmail[email]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return m.usersByID[id], nil
}

func (m *Memory) GetUserByUsername(username string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.userIDByName[username]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return m.usersByID[id], nil
}

func (m *Memory) UpdateUser(user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.usersByID[user.ID]
	if !ok {
		return ErrNotFound
	}
	if user.Username != existing.Username {
		if _, taken := m.userIDByName[user.Username]; taken {
			return ErrConflict
		}
		delete(m.userIDByName, existing.Username)
		m.userIDByName[user.Username] = user.ID
	}

	user.CreatedAt = existing.CreatedAt
	user.Email = existing.Email
	user.UpdatedAt = nowMillis()
	m.usersByID[user.ID] = user
	return nil
}

func (m *Memory) ListUsersExcept(excludeID string) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.User, 0, len(m.usersByID))
	for _, u := range m.usersByID {
		if u.ID != excludeID {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *Memory) SearchUsers(query, excludeID string, limit int) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	result := make([]model.User, 0)
	for _, u := range m.usersByID {
		if u.ID == excludeID {
			continue
		}
		if strings.Contains(strings.ToLower(u.Username), q) || strings.Contains(strings.ToLower(u.Email), q) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *Memory) UpsertPendingRegistration(reg model.PendingRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg.CreatedAt = nowMillis()
	m.pendingByEmail[reg.Email] = reg
	return nil
}

func (m *Memory) GetPendingRegistration(email string) (model.PendingRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.pendingByEmail[email]
	if !ok {
		return model.PendingRegistration{}, ErrNotFound
	}
	return reg, nil
}

func (m *Memory) DeletePendingRegistration(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pendingByEmail, email)
	return nil
}

func (m *Memory) UpsertOTP(otp model.EmailOTP) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	otp.CreatedAt = nowMillis()
	m.otpsByKey[otpKey(otp.Email, otp.Purpose)] = otp
	return nil
}

func (m *Memory) GetOTP(email, purpose string) (model.EmailOTP, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	otp, ok := m.otpsByKey[otpKey(email, purpose)]
	if !ok {
		return model.EmailOTP{}, ErrNotFound
	}
	return otp, nil
}

func (m *Memory) DeleteOTP(email, purpose string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.otpsByKey, otpKey(email, purpose))
	return nil
}

func (m *Memory) FindPrivateConversation(userA, userB string) (model.Conversation, error) {
	if userA == userB {
		return model.Conversation{}, ErrSelfPair
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for convID, participants := range m.participantsByConv {
		conv := m.conversationsByID[convID]
		if conv.Type != model.ConversationPrivate {
			continue
		}
		var hasA, hasB bool
		for _, p := range participants {
			if p.UserID == userA {
				hasA = true
			}
			if p.UserID == userB {
				hasB = true
			}
		}
		if hasA && hasB {
			return conv, nil
		}
	}
	return model.Conversation{}, ErrNotFound
}

func (m *Memory) CreateConversation(convType string, participantIDs []string) (model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := nowMillis()
	conv := model.Conversation{
		ID:        uuid.NewString(),
		Type:      convType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversationsByID[conv.ID] = conv

	participants := make([]model.ConversationParticipant, 0, len(participantIDs))
	for _, userID := range participantIDs {
		participants = append(participants, model.ConversationParticipant{
			ConversationID: conv.ID,
			UserID:         userID,
			JoinedAt:       now,
		})
	}
	m.participantsByConv[conv.ID] = participants
	return conv, nil
}

func (m *Memory) GetConversation(id string) (model.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversationsByID[id]
	if !ok {
		return model.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (m *Memory) IsParticipant(conversationID, userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.conversationsByID[conversationID]; !ok {
		return false, ErrNotFound
	}
	for _, p := range m.participantsByConv[conversationID] {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) ListUserConversations(userID string) ([]ConversationSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ConversationSummary, 0)
	for convID, participants := range m.participantsByConv {
		var member bool
		var otherID string
		for _, p := range participants {
			if p.UserID == userID {
				member = true
			} else {
				otherID = p.UserID
			}
		}
		if !member {
			continue
		}

		conv := m.conversationsByID[convID]
		summary := ConversationSummary{
			ID:        conv.ID,
			Type:      conv.Type,
			UpdatedAt: conv.UpdatedAt,
		}
		if other, ok := m.usersByID[otherID]; ok {
			profile := other.Profile()
			summary.Participant = &profile
		}
		if ids := m.messagesByConv[convID]; len(ids) > 0 {
			last := m.messagesByID[ids[len(ids)-1]]
			summary.LastMessage = &last
		}
		result = append(result, summary)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt > result[j].UpdatedAt })
	return result, nil
}

func (m *Memory) CreateMessage(msg model.Message) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.ConversationID != "" {
		conv, ok := m.conversationsByID[msg.ConversationID]
		if !ok {
			return model.Message{}, ErrNotFound
		}
		var sender bool
		for _, p := range m.participantsByConv[msg.ConversationID] {
			if p.UserID == msg.SenderID {
				sender = true
				break
			}
		}
		if !sender {
			return model.Message{}, ErrNotPartOfConv
		}

		conv.UpdatedAt = nowMillis()
		m.conversationsByID[msg.ConversationID] = conv
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = nowMillis()
	msg.IsEdited = false

	m.messagesByID[msg.ID] = msg
	if msg.ConversationID != "" {
		m.messagesByConv[msg.ConversationID] = append(m.messagesByConv[msg.ConversationID], msg.ID)
	}
	return msg, nil
}

func (m *Memory) GetMessage(id string) (model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messagesByID[id]
	if !ok {
		return model.Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *Memory) ListConversationMessages(conversationID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.conversationsByID[conversationID]; !ok {
		return nil, ErrNotFound
	}

	ids := m.messagesByConv[conversationID]
	result := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.messagesByID[id])
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt < result[j].CreatedAt })
	return result, nil
}

func (m *Memory) UpdateMessageContent(id, content string) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messagesByID[id]
	if !ok {
		return model.Message{}, ErrNotFound
	}

	// Sender, conversation, type and creation time never change on edit.
	msg.Content = content
	msg.IsEdited = true
	m.messagesByID[id] = msg
	return msg, nil
}

func (m *Memory) CreateFriendRequest(req model.FriendRequest) (model.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, existing := range m.friendRequestsByID {
		samePair := (existing.SenderID == req.SenderID && existing.ReceiverID == req.ReceiverID) ||
			(existing.SenderID == req.ReceiverID && existing.ReceiverID == req.SenderID)
		if !samePair {
			continue
		}
		if existing.Status != model.FriendRequestRejected {
			return model.FriendRequest{}, ErrConflict
		}
		// A rejected request does not block a new attempt.
		delete(m.friendRequestsByID, id)
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := nowMillis()
	req.Status = model.FriendRequestPending
	req.CreatedAt = now
	req.UpdatedAt = now
	m.friendRequestsByID[req.ID] = req
	return req, nil
}

func (m *Memory) FindFriendRequestBetween(userA, userB string) (model.FriendRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, req := range m.friendRequestsByID {
		if (req.SenderID == userA && req.ReceiverID == userB) ||
			(req.SenderID == userB && req.ReceiverID == userA) {
			return req, nil
		}
	}
	return model.FriendRequest{}, ErrNotFound
}

func (m *Memory) GetFriendRequest(id string) (model.FriendRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.friendRequestsByID[id]
	if !ok {
		return model.FriendRequest{}, ErrNotFound
	}
	return req, nil
}

func (m *Memory) ListPendingFriendRequests(receiverID string) ([]model.FriendRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]model.FriendRequest, 0)
	for _, req := range m.friendRequestsByID {
		if req.ReceiverID == receiverID && req.Status == model.FriendRequestPending {
			result = append(result, req)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt > result[j].CreatedAt })
	return result, nil
}

func (m *Memory) UpdateFriendRequestStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.friendRequestsByID[id]
	if !ok {
		return ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = nowMillis()
	m.friendRequestsByID[id] = req
	return nil
}

func (m *Memory) DeleteFriendRequest(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.friendRequestsByID[id]; !ok {
		return ErrNotFound
	}
	delete(m.friendRequestsByID, id)
	return nil
}

func (m *Memory) ListFriends(userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0)
	for _, req := range m.friendRequestsByID {
		if req.Status != model.FriendRequestAccepted {
			continue
		}
		if req.SenderID == userID {
			result = append(result, req.ReceiverID)
		} else if req.ReceiverID == userID {
			result = append(result, req.SenderID)
		}
	}
	sort.Strings(result)
	return result, nil
}
