package app

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"huddle/api/internal/authpw"
	"huddle/api/internal/config"
	"huddle/api/internal/store"
)

// memStore is a stateful in-memory dataStore and sessionStore used by
// the HTTP tests so flows run end to end against Handler().
type memStore struct {
	mu sync.Mutex

	users        map[string]store.User
	usersByEmail map[string]string
	userOrder    []string

	profiles     map[string]store.Profile
	profileOrder []string

	channels     map[string]store.Channel
	channelOrder []string

	threads     map[string]store.Thread
	threadOrder []string

	messages     map[string]store.Message
	messageOrder []string

	attachments map[string][]store.Attachment

	refresh    map[string]refreshRec
	revokedJTI map[string]bool
}

type refreshRec struct {
	userID    string
	expiresAt time.Time
}

type uniqueErr struct{}

func (e *uniqueErr) Error() string    { return "duplicate key value violates unique constraint" }
func (e *uniqueErr) SQLState() string { return "23505" }

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]store.User),
		usersByEmail: make(map[string]string),
		profiles:     make(map[string]store.Profile),
		channels:     make(map[string]store.Channel),
		threads:      make(map[string]store.Thread),
		messages:     make(map[string]store.Message),
		attachments:  make(map[string][]store.Attachment),
		refresh:      make(map[string]refreshRec),
		revokedJTI:   make(map[string]bool),
	}
}

func (m *memStore) Ping(context.Context) error { return nil }

// ── users (dataStore + authpw.UserStore) ──

func (m *memStore) CreateUser(_ context.Context, user store.User) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.usersByEmail[user.Email]; exists {
		return store.User{}, &uniqueErr{}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.ChannelIDs = []string{}
	m.users[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	m.userOrder = append(m.userOrder, user.ID)
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.usersByEmail[email]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return m.users[id], nil
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return store.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) ListUsers(context.Context) ([]store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.User, 0, len(m.userOrder))
	for _, id := range m.userOrder {
		items = append(items, m.users[id])
	}
	return items, nil
}

func (m *memStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

// ── sessions ──

func (m *memStore) SaveRefreshSession(_ context.Context, tokenHash, userID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = refreshRec{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.refresh[tokenHash]
	if !ok || time.Now().After(rec.expiresAt) {
		return store.User{}, sql.ErrNoRows
	}
	return m.users[rec.userID], nil
}

func (m *memStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *memStore) RevokeAccessToken(_ context.Context, jti string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revokedJTI[jti] = true
	return nil
}

func (m *memStore) IsAccessTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revokedJTI[jti], nil
}

// ── profiles ──

func (m *memStore) ListProfiles(context.Context) ([]store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Profile, 0, len(m.profileOrder))
	for _, id := range m.profileOrder {
		items = append(items, m.profiles[id])
	}
	return items, nil
}

func (m *memStore) GetProfile(_ context.Context, profileID string) (store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	profile, ok := m.profiles[profileID]
	if !ok {
		return store.Profile{}, sql.ErrNoRows
	}
	return profile, nil
}

func (m *memStore) InsertProfile(_ context.Context, profile store.Profile) (store.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	m.profiles[profile.ID] = profile
	m.profileOrder = append(m.profileOrder, profile.ID)
	if user, ok := m.users[profile.OwnerID]; ok {
		profileID := profile.ID
		user.ProfileID = &profileID
		m.users[profile.OwnerID] = user
	}
	return profile, nil
}

func (m *memStore) UpdateProfile(_ context.Context, profile store.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.profiles[profile.ID]
	if !ok {
		return sql.ErrNoRows
	}
	profile.CreatedAt = existing.CreatedAt
	profile.UpdatedAt = time.Now()
	m.profiles[profile.ID] = profile
	return nil
}

func (m *memStore) DeleteProfile(_ context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, profileID)
	for i, id := range m.profileOrder {
		if id == profileID {
			m.profileOrder = append(m.profileOrder[:i], m.profileOrder[i+1:]...)
			break
		}
	}
	for userID, user := range m.users {
		if user.ProfileID != nil && *user.ProfileID == profileID {
			user.ProfileID = nil
			m.users[userID] = user
		}
	}
	return nil
}

// ── channels ──

func (m *memStore) ListChannels(context.Context) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Channel, 0, len(m.channelOrder))
	for _, id := range m.channelOrder {
		items = append(items, m.channels[id])
	}
	return items, nil
}

func (m *memStore) ListChannelsForUser(_ context.Context, userID string) ([]store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Channel, 0)
	for _, id := range m.channelOrder {
		channel := m.channels[id]
		if channel.OwnerID == userID {
			items = append(items, channel)
			continue
		}
		for _, member := range channel.MemberIDs {
			if member == userID {
				items = append(items, channel)
				break
			}
		}
	}
	return items, nil
}

func (m *memStore) GetChannel(_ context.Context, channelID string) (store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return store.Channel{}, sql.ErrNoRows
	}
	return channel, nil
}

func (m *memStore) CreateChannelCascade(_ context.Context, channel store.Channel, welcome store.Message, thread store.Thread) (store.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()

	inThread := thread.ID
	welcome.InThread = &inThread
	welcome.CreatedAt = now
	welcome.UpdatedAt = now
	m.messages[welcome.ID] = welcome
	m.messageOrder = append(m.messageOrder, welcome.ID)

	thread.ReplyIDs = []string{}
	thread.CreatedAt = now
	thread.UpdatedAt = now
	m.threads[thread.ID] = thread
	m.threadOrder = append(m.threadOrder, thread.ID)

	channel.MemberIDs = []string{}
	channel.ThreadIDs = []string{thread.ID}
	channel.CreatedAt = now
	channel.UpdatedAt = now
	m.channels[channel.ID] = channel
	m.channelOrder = append(m.channelOrder, channel.ID)
	return channel, nil
}

func (m *memStore) UpdateChannel(_ context.Context, channel store.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.channels[channel.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Name = channel.Name
	existing.Description = channel.Description
	existing.Type = channel.Type
	existing.UpdatedAt = time.Now()
	m.channels[channel.ID] = existing
	return nil
}

func (m *memStore) DeleteChannel(_ context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.channels, channelID)
	for i, id := range m.channelOrder {
		if id == channelID {
			m.channelOrder = append(m.channelOrder[:i], m.channelOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) AttachThread(_ context.Context, channelID, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return nil
	}
	for _, id := range channel.ThreadIDs {
		if id == threadID {
			return nil
		}
	}
	channel.ThreadIDs = append(channel.ThreadIDs, threadID)
	channel.UpdatedAt = time.Now()
	m.channels[channelID] = channel
	return nil
}

func (m *memStore) AddMember(_ context.Context, channelID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return nil
	}
	for _, id := range channel.MemberIDs {
		if id == userID {
			return nil
		}
	}
	channel.MemberIDs = append(channel.MemberIDs, userID)
	channel.UpdatedAt = time.Now()
	m.channels[channelID] = channel
	return nil
}

func (m *memStore) RemoveMember(_ context.Context, channelID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	channel, ok := m.channels[channelID]
	if !ok {
		return nil
	}
	members := make([]string, 0, len(channel.MemberIDs))
	for _, id := range channel.MemberIDs {
		if id != userID {
			members = append(members, id)
		}
	}
	channel.MemberIDs = members
	channel.UpdatedAt = time.Now()
	m.channels[channelID] = channel
	return nil
}

// ── threads ──

func (m *memStore) ListThreads(context.Context) ([]store.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Thread, 0, len(m.threadOrder))
	for _, id := range m.threadOrder {
		items = append(items, m.threads[id])
	}
	return items, nil
}

func (m *memStore) GetThread(_ context.Context, threadID string) (store.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread, ok := m.threads[threadID]
	if !ok {
		return store.Thread{}, sql.ErrNoRows
	}
	return thread, nil
}

func (m *memStore) GetThreadViews(_ context.Context, threadIDs []string) ([]store.ThreadView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.ThreadView, 0, len(threadIDs))
	for _, id := range threadIDs {
		thread, ok := m.threads[id]
		if !ok {
			continue
		}
		view := store.ThreadView{Thread: thread}
		if message, ok := m.messages[thread.FirstMessageID]; ok {
			view.FirstMessage = &message
		}
		if owner, ok := m.users[thread.OwnerID]; ok {
			owner.PasswordHash = ""
			view.Owner = &owner
		}
		items = append(items, view)
	}
	return items, nil
}

func (m *memStore) InsertThread(_ context.Context, thread store.Thread) (store.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	thread.ReplyIDs = []string{}
	thread.CreatedAt = now
	thread.UpdatedAt = now
	m.threads[thread.ID] = thread
	m.threadOrder = append(m.threadOrder, thread.ID)
	return thread, nil
}

func (m *memStore) UpdateThread(_ context.Context, thread store.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.threads[thread.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.FirstMessageID = thread.FirstMessageID
	existing.OwnerID = thread.OwnerID
	existing.UpdatedAt = time.Now()
	m.threads[thread.ID] = existing
	return nil
}

func (m *memStore) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	for i, id := range m.threadOrder {
		if id == threadID {
			m.threadOrder = append(m.threadOrder[:i], m.threadOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) AppendReply(_ context.Context, threadID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread, ok := m.threads[threadID]
	if !ok {
		return nil
	}
	thread.ReplyIDs = append(thread.ReplyIDs, messageID)
	thread.UpdatedAt = time.Now()
	m.threads[threadID] = thread
	return nil
}

// ── messages ──

func (m *memStore) ListMessages(context.Context) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]store.Message, 0, len(m.messageOrder))
	for _, id := range m.messageOrder {
		items = append(items, m.messages[id])
	}
	return items, nil
}

func (m *memStore) GetMessage(_ context.Context, messageID string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	message, ok := m.messages[messageID]
	if !ok {
		return store.Message{}, sql.ErrNoRows
	}
	return message, nil
}

func (m *memStore) InsertMessage(_ context.Context, message store.Message) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now
	m.messages[message.ID] = message
	m.messageOrder = append(m.messageOrder, message.ID)
	return message, nil
}

func (m *memStore) UpdateMessage(_ context.Context, message store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.messages[message.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Content = message.Content
	existing.UpdatedAt = time.Now()
	m.messages[message.ID] = existing
	return nil
}

func (m *memStore) DeleteMessage(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, messageID)
	delete(m.attachments, messageID)
	for i, id := range m.messageOrder {
		if id == messageID {
			m.messageOrder = append(m.messageOrder[:i], m.messageOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (m *memStore) CreateReply(_ context.Context, message store.Message, threadID string) (store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	thread, ok := m.threads[threadID]
	if !ok {
		return store.Message{}, sql.ErrNoRows
	}
	now := time.Now()
	inThread := threadID
	message.InThread = &inThread
	message.CreatedAt = now
	message.UpdatedAt = now
	m.messages[message.ID] = message
	m.messageOrder = append(m.messageOrder, message.ID)
	thread.ReplyIDs = append(thread.ReplyIDs, message.ID)
	thread.UpdatedAt = now
	m.threads[threadID] = thread
	return message, nil
}

// ── attachments ──

func (m *memStore) InsertAttachment(_ context.Context, attachment store.Attachment) (store.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	attachment.CreatedAt = time.Now()
	m.attachments[attachment.MessageID] = append(m.attachments[attachment.MessageID], attachment)
	return attachment, nil
}

func (m *memStore) ListAttachments(_ context.Context, messageID string) ([]store.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attachments[messageID], nil
}

func newTestService(ms *memStore) *Service {
	return &Service{
		cfg: config.Config{
			TokenSecret: "test-secret",
			AccessTTL:   time.Hour,
			RefreshTTL:  24 * time.Hour,
		},
		store:    ms,
		sessions: ms,
		accounts: authpw.NewService(ms),
	}
}
