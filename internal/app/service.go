package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"huddle/api/internal/auth"
	"huddle/api/internal/authpw"
	"huddle/api/internal/config"
	"huddle/api/internal/objstore"
	"huddle/api/internal/policy"
	"huddle/api/internal/realtime"
	"huddle/api/internal/search"
	"huddle/api/internal/store"
	"huddle/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type CreateProfileInput struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	Location string `json:"location"`
	Pronouns string `json:"pronouns"`
}

type CreateChannelInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type CreateThreadInput struct {
	FirstMessageID string `json:"firstMessage"`
}

type CreateMessageInput struct {
	Content  string  `json:"content"`
	InThread *string `json:"inThread"`
}

// sessionStore holds refresh sessions. Redis when configured, the
// Postgres store otherwise.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type dataStore interface {
	ListUsers(context.Context) ([]store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)

	ListProfiles(context.Context) ([]store.Profile, error)
	GetProfile(context.Context, string) (store.Profile, error)
	InsertProfile(context.Context, store.Profile) (store.Profile, error)
	UpdateProfile(context.Context, store.Profile) error
	DeleteProfile(context.Context, string) error

	ListChannels(context.Context) ([]store.Channel, error)
	ListChannelsForUser(context.Context, string) ([]store.Channel, error)
	GetChannel(context.Context, string) (store.Channel, error)
	CreateChannelCascade(context.Context, store.Channel, store.Message, store.Thread) (store.Channel, error)
	UpdateChannel(context.Context, store.Channel) error
	DeleteChannel(context.Context, string) error
	AttachThread(context.Context, string, string) error
	AddMember(context.Context, string, string) error
	RemoveMember(context.Context, string, string) error

	ListThreads(context.Context) ([]store.Thread, error)
	GetThread(context.Context, string) (store.Thread, error)
	GetThreadViews(context.Context, []string) ([]store.ThreadView, error)
	InsertThread(context.Context, store.Thread) (store.Thread, error)
	UpdateThread(context.Context, store.Thread) error
	DeleteThread(context.Context, string) error
	AppendReply(context.Context, string, string) error

	ListMessages(context.Context) ([]store.Message, error)
	GetMessage(context.Context, string) (store.Message, error)
	InsertMessage(context.Context, store.Message) (store.Message, error)
	UpdateMessage(context.Context, store.Message) error
	DeleteMessage(context.Context, string) error
	CreateReply(context.Context, store.Message, string) (store.Message, error)

	InsertAttachment(context.Context, store.Attachment) (store.Attachment, error)
	ListAttachments(context.Context, string) ([]store.Attachment, error)

	Ping(ctx context.Context) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	accounts *authpw.Service
	search   *search.Service
	objects  objstore.ObjectStore
	hub      *realtime.Hub
}

func New(cfg config.Config, pg *store.PostgresStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    pg,
		sessions: pg,
		accounts: authpw.NewService(pg),
	}
}

// SetSessionStore swaps the refresh-session backend; the Postgres
// fallback is used until this is called.
func (s *Service) SetSessionStore(sessions sessionStore) { s.sessions = sessions }

func (s *Service) SetSearch(svc *search.Service) { s.search = svc }

func (s *Service) SetObjectStore(objects objstore.ObjectStore) { s.objects = objects }

// SetHub lets mutations publish refresh events alongside the
// client-driven WebSocket path.
func (s *Service) SetHub(hub *realtime.Hub) { s.hub = hub }

func (s *Service) notify(kind realtime.Kind, channelID string) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(nil, realtime.Event{Kind: kind, ChannelID: channelID})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ── Auth ──

func (s *Service) SignUp(ctx context.Context, email, password string) (store.User, error) {
	user, err := s.accounts.SignUp(ctx, email, password)
	if err != nil {
		switch {
		case errors.Is(err, authpw.ErrEmailTaken),
			errors.Is(err, authpw.ErrWeakPassword),
			errors.Is(err, authpw.ErrMissingFields):
			return store.User{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
		}
		return store.User{}, err
	}
	return user, nil
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.accounts.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	found, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Refresh token invalid", nil)
	}
	// The session record carries just the user id; reload for fresh
	// claims.
	user, err := s.store.GetUserByID(ctx, found.ID)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Refresh token invalid", nil)
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.TokenSecret), auth.Claims{
		Sub:   user.ID,
		Email: user.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		Email:     user.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) ChangePassword(ctx context.Context, session Session, oldPassword, newPassword string) error {
	err := s.accounts.ChangePassword(ctx, session.UserID, oldPassword, newPassword)
	switch {
	case errors.Is(err, authpw.ErrInvalidCredentials):
		return domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid password", nil)
	case errors.Is(err, authpw.ErrWeakPassword):
		return domainError(http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
	}
	return err
}

func (s *Service) SignOut(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// ── Users ──

func (s *Service) ListUsers(ctx context.Context) ([]store.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *Service) GetUser(ctx context.Context, userID string) (store.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// ── Profiles ──

func (s *Service) ListProfiles(ctx context.Context) ([]store.Profile, error) {
	return s.store.ListProfiles(ctx)
}

func (s *Service) GetProfile(ctx context.Context, profileID string) (store.Profile, error) {
	return s.store.GetProfile(ctx, profileID)
}

func (s *Service) CreateProfile(ctx context.Context, session Session, input CreateProfileInput) (store.Profile, error) {
	if strings.TrimSpace(input.Username) == "" {
		return store.Profile{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "username is required", nil)
	}
	return s.store.InsertProfile(ctx, store.Profile{
		ID:       util.NewID("prf"),
		Username: strings.TrimSpace(input.Username),
		FullName: input.FullName,
		Location: input.Location,
		Pronouns: input.Pronouns,
		OwnerID:  session.UserID,
	})
}

func (s *Service) UpdateProfile(ctx context.Context, session Session, profileID string, input CreateProfileInput) error {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, profile.OwnerID); err != nil {
		return errNotOwner()
	}
	// Partial merge: blank fields keep their current values and the
	// owner can never change through this path.
	if strings.TrimSpace(input.Username) != "" {
		profile.Username = strings.TrimSpace(input.Username)
	}
	if input.FullName != "" {
		profile.FullName = input.FullName
	}
	if input.Location != "" {
		profile.Location = input.Location
	}
	if input.Pronouns != "" {
		profile.Pronouns = input.Pronouns
	}
	return s.store.UpdateProfile(ctx, profile)
}

func (s *Service) DeleteProfile(ctx context.Context, session Session, profileID string) error {
	profile, err := s.store.GetProfile(ctx, profileID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, profile.OwnerID); err != nil {
		return errNotOwner()
	}
	return s.store.DeleteProfile(ctx, profileID)
}

// ── Channels ──

func (s *Service) ListChannels(ctx context.Context) ([]store.Channel, error) {
	return s.store.ListChannels(ctx)
}

func (s *Service) ListMyChannels(ctx context.Context, session Session) ([]store.Channel, error) {
	return s.store.ListChannelsForUser(ctx, session.UserID)
}

func (s *Service) GetChannel(ctx context.Context, channelID string) (store.Channel, error) {
	return s.store.GetChannel(ctx, channelID)
}

func (s *Service) CreateChannel(ctx context.Context, session Session, input CreateChannelInput) (store.Channel, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return store.Channel{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "name is required", nil)
	}
	channelType := store.ChannelType(input.Type)
	if channelType == "" {
		channelType = store.ChannelGroup
	}
	if channelType != store.ChannelDM && channelType != store.ChannelGroup {
		return store.Channel{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "type must be DM or GROUP", nil)
	}

	welcome := store.Message{
		ID:      util.NewID("msg"),
		OwnerID: session.UserID,
		Content: "Welcome to " + name + "!",
	}
	thread := store.Thread{
		ID:             util.NewID("thr"),
		FirstMessageID: welcome.ID,
		OwnerID:        session.UserID,
	}
	channel := store.Channel{
		ID:          util.NewID("chn"),
		Name:        name,
		Description: input.Description,
		Type:        channelType,
		OwnerID:     session.UserID,
	}

	created, err := s.store.CreateChannelCascade(ctx, channel, welcome, thread)
	if err != nil {
		return store.Channel{}, err
	}
	if s.search != nil {
		s.search.IndexMessage(search.MessageRecord{ID: welcome.ID, OwnerID: welcome.OwnerID, Content: welcome.Content, InThread: thread.ID})
	}
	s.notify(realtime.ThreadsChanged, created.ID)
	return created, nil
}

func (s *Service) UpdateChannel(ctx context.Context, session Session, channelID string, input CreateChannelInput) error {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, channel.OwnerID); err != nil {
		return errNotOwner()
	}
	if strings.TrimSpace(input.Name) != "" {
		channel.Name = strings.TrimSpace(input.Name)
	}
	if input.Description != "" {
		channel.Description = input.Description
	}
	if input.Type != "" {
		channelType := store.ChannelType(input.Type)
		if channelType != store.ChannelDM && channelType != store.ChannelGroup {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION", "type must be DM or GROUP", nil)
		}
		channel.Type = channelType
	}
	return s.store.UpdateChannel(ctx, channel)
}

func (s *Service) DeleteChannel(ctx context.Context, session Session, channelID string) error {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, channel.OwnerID); err != nil {
		return errNotOwner()
	}
	return s.store.DeleteChannel(ctx, channelID)
}

// AttachThread links an existing thread into a channel. Already-linked
// threads are a silent no-op; otherwise the caller must own the thread.
func (s *Service) AttachThread(ctx context.Context, session Session, channelID, threadID string) error {
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	for _, id := range channel.ThreadIDs {
		if id == threadID {
			return nil
		}
	}
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, thread.OwnerID); err != nil {
		return errNotOwner()
	}
	if err := s.store.AttachThread(ctx, channelID, threadID); err != nil {
		return err
	}
	s.notify(realtime.ThreadsChanged, channelID)
	return nil
}

// UpdateMembers adds or removes a channel member. Only the channel
// owner may change membership; add is idempotent and removing an
// absent member succeeds without effect.
func (s *Service) UpdateMembers(ctx context.Context, session Session, channelID, op, userID string) error {
	if op != "add" && op != "remove" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION", "operation must be add or remove", nil)
	}
	channel, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, channel.OwnerID); err != nil {
		return errNotOwner()
	}

	isMember := false
	for _, id := range channel.MemberIDs {
		if id == userID {
			isMember = true
			break
		}
	}

	switch op {
	case "add":
		if isMember {
			return nil
		}
		if _, err := s.store.GetUserByID(ctx, userID); err != nil {
			return err
		}
		if err := s.store.AddMember(ctx, channelID, userID); err != nil {
			return err
		}
	case "remove":
		if !isMember {
			return nil
		}
		if _, err := s.store.GetUserByID(ctx, userID); err != nil {
			return err
		}
		if err := s.store.RemoveMember(ctx, channelID, userID); err != nil {
			return err
		}
	}
	s.notify(realtime.MembersChanged, channelID)
	return nil
}

// ── Threads ──

func (s *Service) ListThreads(ctx context.Context) ([]store.Thread, error) {
	return s.store.ListThreads(ctx)
}

func (s *Service) GetThread(ctx context.Context, threadID string) (store.Thread, error) {
	return s.store.GetThread(ctx, threadID)
}

// GetThreadViews resolves a batch of threads with their firstMessage
// and owner documents embedded.
func (s *Service) GetThreadViews(ctx context.Context, threadIDs []string) ([]store.ThreadView, error) {
	if len(threadIDs) == 0 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION", "threads query parameter is required", nil)
	}
	return s.store.GetThreadViews(ctx, threadIDs)
}

func (s *Service) CreateThread(ctx context.Context, session Session, input CreateThreadInput) (store.Thread, error) {
	if strings.TrimSpace(input.FirstMessageID) == "" {
		return store.Thread{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "firstMessage is required", nil)
	}
	if _, err := s.store.GetMessage(ctx, input.FirstMessageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Thread{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "firstMessage does not exist", nil)
		}
		return store.Thread{}, err
	}
	return s.store.InsertThread(ctx, store.Thread{
		ID:             util.NewID("thr"),
		FirstMessageID: input.FirstMessageID,
		OwnerID:        session.UserID,
	})
}

func (s *Service) UpdateThread(ctx context.Context, session Session, threadID string, input CreateThreadInput) error {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, thread.OwnerID); err != nil {
		return errNotOwner()
	}
	if strings.TrimSpace(input.FirstMessageID) != "" {
		if _, err := s.store.GetMessage(ctx, input.FirstMessageID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domainError(http.StatusUnprocessableEntity, "VALIDATION", "firstMessage does not exist", nil)
			}
			return err
		}
		thread.FirstMessageID = input.FirstMessageID
	}
	return s.store.UpdateThread(ctx, thread)
}

func (s *Service) DeleteThread(ctx context.Context, session Session, threadID string) error {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, thread.OwnerID); err != nil {
		return errNotOwner()
	}
	return s.store.DeleteThread(ctx, threadID)
}

// AppendReply links an existing message into a thread's reply sequence.
// The append is unconditional: repeating it duplicates the reference.
func (s *Service) AppendReply(ctx context.Context, threadID, messageID string) error {
	if _, err := s.store.GetThread(ctx, threadID); err != nil {
		return err
	}
	if _, err := s.store.GetMessage(ctx, messageID); err != nil {
		return err
	}
	if err := s.store.AppendReply(ctx, threadID, messageID); err != nil {
		return err
	}
	s.notify(realtime.RepliesChanged, "")
	return nil
}

// ── Messages ──

func (s *Service) ListMessages(ctx context.Context) ([]store.Message, error) {
	return s.store.ListMessages(ctx)
}

func (s *Service) GetMessage(ctx context.Context, messageID string) (store.Message, error) {
	return s.store.GetMessage(ctx, messageID)
}

func (s *Service) CreateMessage(ctx context.Context, session Session, input CreateMessageInput) (store.Message, error) {
	if strings.TrimSpace(input.Content) == "" {
		return store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "content is required", nil)
	}
	message, err := s.store.InsertMessage(ctx, store.Message{
		ID:       util.NewID("msg"),
		OwnerID:  session.UserID,
		Content:  input.Content,
		InThread: input.InThread,
	})
	if err != nil {
		return store.Message{}, err
	}
	s.indexMessage(message)
	return message, nil
}

func (s *Service) UpdateMessage(ctx context.Context, session Session, messageID string, input CreateMessageInput) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, message.OwnerID); err != nil {
		return errNotOwner()
	}
	if strings.TrimSpace(input.Content) != "" {
		message.Content = input.Content
	}
	if err := s.store.UpdateMessage(ctx, message); err != nil {
		return err
	}
	s.indexMessage(message)
	return nil
}

func (s *Service) DeleteMessage(ctx context.Context, session Session, messageID string) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if err := policy.RequireOwner(session.UserID, message.OwnerID); err != nil {
		return errNotOwner()
	}

	// Attachment rows cascade with the message; the blobs do not, so
	// collect their keys first and remove them after the delete.
	var orphanKeys []string
	if s.objects != nil {
		attachments, err := s.store.ListAttachments(ctx, messageID)
		if err != nil {
			return err
		}
		for _, attachment := range attachments {
			orphanKeys = append(orphanKeys, attachment.ObjectKey)
		}
	}

	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	for _, key := range orphanKeys {
		if err := s.objects.Delete(ctx, key); err != nil {
			log.Printf("objstore: delete %s: %v", key, err)
		}
	}
	if s.search != nil {
		s.search.DeleteMessage(messageID)
	}
	return nil
}

// CreateReply persists a new message inside the thread and appends it
// to the reply sequence atomically; a missing thread persists nothing.
func (s *Service) CreateReply(ctx context.Context, session Session, threadID string, input CreateMessageInput) (store.Message, error) {
	if strings.TrimSpace(input.Content) == "" {
		return store.Message{}, domainError(http.StatusUnprocessableEntity, "VALIDATION", "content is required", nil)
	}
	message, err := s.store.CreateReply(ctx, store.Message{
		ID:      util.NewID("msg"),
		OwnerID: session.UserID,
		Content: input.Content,
	}, threadID)
	if err != nil {
		return store.Message{}, err
	}
	s.indexMessage(message)
	s.notify(realtime.RepliesChanged, "")
	return message, nil
}

func (s *Service) SearchMessages(ctx context.Context, text, threadID string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	return s.search.Search(search.Query{
		Text:           text,
		FilterThreadID: threadID,
		Limit:          limit,
		Offset:         offset,
	}), nil
}

func (s *Service) indexMessage(message store.Message) {
	if s.search == nil {
		return
	}
	inThread := ""
	if message.InThread != nil {
		inThread = *message.InThread
	}
	s.search.IndexMessage(search.MessageRecord{
		ID:       message.ID,
		OwnerID:  message.OwnerID,
		Content:  message.Content,
		InThread: inThread,
	})
}

// ── Attachments ──

const presignTTL = 15 * time.Minute

type AttachmentView struct {
	store.Attachment
	URL string `json:"url"`
}

func (s *Service) AddAttachment(ctx context.Context, session Session, messageID, fileName, contentType string, size int64, r io.Reader) (store.Attachment, error) {
	if s.objects == nil {
		return store.Attachment{}, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return store.Attachment{}, err
	}
	if err := policy.RequireOwner(session.UserID, message.OwnerID); err != nil {
		return store.Attachment{}, errNotOwner()
	}

	id := util.NewID("att")
	key := fmt.Sprintf("%s/%s/%s", messageID, id, fileName)
	if err := s.objects.Put(ctx, key, r, size, contentType); err != nil {
		return store.Attachment{}, err
	}
	return s.store.InsertAttachment(ctx, store.Attachment{
		ID:        id,
		MessageID: messageID,
		ObjectKey: key,
		FileName:  fileName,
		Size:      size,
	})
}

func (s *Service) ListAttachments(ctx context.Context, messageID string) ([]AttachmentView, error) {
	if s.objects == nil {
		return nil, domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Attachment storage is not configured", nil)
	}
	if _, err := s.store.GetMessage(ctx, messageID); err != nil {
		return nil, err
	}
	attachments, err := s.store.ListAttachments(ctx, messageID)
	if err != nil {
		return nil, err
	}
	views := make([]AttachmentView, 0, len(attachments))
	for _, attachment := range attachments {
		url, err := s.objects.PresignGet(ctx, attachment.ObjectKey, presignTTL)
		if err != nil {
			return nil, err
		}
		views = append(views, AttachmentView{Attachment: attachment, URL: url})
	}
	return views, nil
}

func errNotOwner() *DomainError {
	return domainError(http.StatusUnauthorized, "AUTHORIZATION", "Caller does not own this resource", nil)
}
