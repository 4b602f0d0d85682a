package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// idList renders reference arrays for scanning. Ids never contain
// commas, so array_to_string(col, ',') round-trips safely.
func idList(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}

// ── Users ──

func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, user.ID, user.Email, user.PasswordHash).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.ChannelIDs = []string{}
	return user, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, profile_id, array_to_string(channel_ids, ','), created_at, updated_at
		FROM users WHERE email=$1
	`, email))
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, profile_id, array_to_string(channel_ids, ','), created_at, updated_at
		FROM users WHERE id=$1
	`, userID))
}

func (s *PostgresStore) scanUser(row *sql.Row) (User, error) {
	var user User
	var channels string
	if err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &user.ProfileID, &channels, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	user.ChannelIDs = idList(channels)
	return user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, password_hash, profile_id, array_to_string(channel_ids, ','), created_at, updated_at
		FROM users
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		var item User
		var channels string
		if err := rows.Scan(&item.ID, &item.Email, &item.PasswordHash, &item.ProfileID, &channels, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		item.ChannelIDs = idList(channels)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetUserProfile(ctx context.Context, userID, profileID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET profile_id=$2, updated_at=NOW() WHERE id=$1
	`, userID, profileID)
	if err != nil {
		return fmt.Errorf("set user profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearUserProfile(ctx context.Context, profileID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET profile_id=NULL, updated_at=NOW() WHERE profile_id=$1
	`, profileID)
	if err != nil {
		return fmt.Errorf("clear user profile: %w", err)
	}
	return nil
}

// ── Refresh sessions (Postgres fallback when Redis is not configured) ──

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	const query = `
		SELECT u.id, u.email, u.password_hash, u.profile_id, array_to_string(u.channel_ids, ','), u.created_at, u.updated_at
		FROM refresh_sessions rs
		JOIN users u ON u.id = rs.user_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, tokenHash))
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// ── Profiles ──

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, full_name, location, pronouns, owner_id, created_at, updated_at
		FROM profiles
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	items := make([]Profile, 0)
	for rows.Next() {
		var item Profile
		if err := rows.Scan(&item.ID, &item.Username, &item.FullName, &item.Location, &item.Pronouns, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, profileID string) (Profile, error) {
	var item Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, full_name, location, pronouns, owner_id, created_at, updated_at
		FROM profiles WHERE id=$1
	`, profileID).Scan(&item.ID, &item.Username, &item.FullName, &item.Location, &item.Pronouns, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertProfile(ctx context.Context, profile Profile) (Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("begin insert profile: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO profiles (id, username, full_name, location, pronouns, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, profile.ID, profile.Username, profile.FullName, profile.Location, profile.Pronouns, profile.OwnerID).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET profile_id=$2, updated_at=NOW() WHERE id=$1
	`, profile.OwnerID, profile.ID); err != nil {
		return Profile{}, fmt.Errorf("link profile to user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Profile{}, fmt.Errorf("commit insert profile: %w", err)
	}
	return profile, nil
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, profile Profile) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET username=$2, full_name=$3, location=$4, pronouns=$5, updated_at=NOW()
		WHERE id=$1
	`, profile.ID, profile.Username, profile.FullName, profile.Location, profile.Pronouns)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, profileID string) error {
	if err := s.ClearUserProfile(ctx, profileID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id=$1`, profileID)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

// ── Channels ──

const channelColumns = `id, name, description, channel_type, owner_id, array_to_string(member_ids, ','), array_to_string(thread_ids, ','), created_at, updated_at`

func scanChannel(scan func(...any) error) (Channel, error) {
	var item Channel
	var members, threads string
	if err := scan(&item.ID, &item.Name, &item.Description, &item.Type, &item.OwnerID, &members, &threads, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Channel{}, err
	}
	item.MemberIDs = idList(members)
	item.ThreadIDs = idList(threads)
	return item, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context) ([]Channel, error) {
	return s.queryChannels(ctx, `SELECT `+channelColumns+` FROM channels ORDER BY created_at ASC`)
}

func (s *PostgresStore) ListChannelsForUser(ctx context.Context, userID string) ([]Channel, error) {
	return s.queryChannels(ctx, `
		SELECT `+channelColumns+`
		FROM channels
		WHERE owner_id=$1 OR $1 = ANY(member_ids)
		ORDER BY created_at ASC
	`, userID)
}

func (s *PostgresStore) queryChannels(ctx context.Context, query string, args ...any) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	items := make([]Channel, 0)
	for rows.Next() {
		item, err := scanChannel(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (Channel, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id=$1`, channelID)
	return scanChannel(row.Scan)
}

// CreateChannelCascade persists the channel together with its welcome
// message and wrapping thread in one transaction, so a failure partway
// leaves no orphaned records.
func (s *PostgresStore) CreateChannelCascade(ctx context.Context, channel Channel, welcome Message, thread Thread) (Channel, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Channel{}, fmt.Errorf("begin create channel: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, owner_id, content, in_thread)
		VALUES ($1, $2, $3, $4)
	`, welcome.ID, welcome.OwnerID, welcome.Content, thread.ID); err != nil {
		return Channel{}, fmt.Errorf("insert welcome message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, first_message_id, owner_id)
		VALUES ($1, $2, $3)
	`, thread.ID, welcome.ID, thread.OwnerID); err != nil {
		return Channel{}, fmt.Errorf("insert welcome thread: %w", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO channels (id, name, description, channel_type, owner_id, thread_ids)
		VALUES ($1, $2, $3, $4, $5, ARRAY[$6])
		RETURNING created_at, updated_at
	`, channel.ID, channel.Name, channel.Description, channel.Type, channel.OwnerID, thread.ID).Scan(&channel.CreatedAt, &channel.UpdatedAt)
	if err != nil {
		return Channel{}, fmt.Errorf("insert channel: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Channel{}, fmt.Errorf("commit create channel: %w", err)
	}
	channel.MemberIDs = []string{}
	channel.ThreadIDs = []string{thread.ID}
	return channel, nil
}

func (s *PostgresStore) UpdateChannel(ctx context.Context, channel Channel) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE channels
		SET name=$2, description=$3, channel_type=$4, updated_at=NOW()
		WHERE id=$1
	`, channel.ID, channel.Name, channel.Description, channel.Type)
	if err != nil {
		return fmt.Errorf("update channel: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id=$1`, channelID)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

// AttachThread appends threadID only if it is not already referenced.
func (s *PostgresStore) AttachThread(ctx context.Context, channelID, threadID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE channels
		SET thread_ids = array_append(thread_ids, $2), updated_at=NOW()
		WHERE id=$1 AND NOT ($2 = ANY(thread_ids))
	`, channelID, threadID)
	if err != nil {
		return fmt.Errorf("attach thread: %w", err)
	}
	return nil
}

// AddMember is idempotent: the append only runs while userID is absent.
func (s *PostgresStore) AddMember(ctx context.Context, channelID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE channels
		SET member_ids = array_append(member_ids, $2), updated_at=NOW()
		WHERE id=$1 AND NOT ($2 = ANY(member_ids))
	`, channelID, userID)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveMember(ctx context.Context, channelID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE channels
		SET member_ids = array_remove(member_ids, $2), updated_at=NOW()
		WHERE id=$1 AND $2 = ANY(member_ids)
	`, channelID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// ── Threads ──

const threadColumns = `id, first_message_id, array_to_string(reply_ids, ','), owner_id, created_at, updated_at`

func scanThread(scan func(...any) error) (Thread, error) {
	var item Thread
	var replies string
	if err := scan(&item.ID, &item.FirstMessageID, &replies, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return Thread{}, err
	}
	item.ReplyIDs = idList(replies)
	return item, nil
}

func (s *PostgresStore) ListThreads(ctx context.Context) ([]Thread, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+threadColumns+` FROM threads ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]Thread, 0)
	for rows.Next() {
		item, err := scanThread(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (Thread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM threads WHERE id=$1`, threadID)
	return scanThread(row.Scan)
}

// GetThreadViews batch-fetches threads and resolves firstMessage and
// owner references with explicit joins. Missing references come back
// nil rather than failing the whole batch.
func (s *PostgresStore) GetThreadViews(ctx context.Context, threadIDs []string) ([]ThreadView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.first_message_id, array_to_string(t.reply_ids, ','), t.owner_id, t.created_at, t.updated_at,
			m.id, m.owner_id, m.content, m.in_thread, m.created_at, m.updated_at,
			u.id, u.email, u.profile_id, array_to_string(u.channel_ids, ','), u.created_at, u.updated_at
		FROM threads t
		LEFT JOIN messages m ON m.id = t.first_message_id
		LEFT JOIN users u ON u.id = t.owner_id
		WHERE t.id = ANY(string_to_array($1, ','))
		ORDER BY t.created_at ASC
	`, strings.Join(threadIDs, ","))
	if err != nil {
		return nil, fmt.Errorf("batch threads: %w", err)
	}
	defer rows.Close()

	items := make([]ThreadView, 0)
	for rows.Next() {
		var item ThreadView
		var replies string
		var msgID, msgOwner, msgContent, msgThread sql.NullString
		var msgCreated, msgUpdated sql.NullTime
		var usrID, usrEmail, usrProfile, usrChannels sql.NullString
		var usrCreated, usrUpdated sql.NullTime
		if err := rows.Scan(
			&item.ID, &item.FirstMessageID, &replies, &item.OwnerID, &item.CreatedAt, &item.UpdatedAt,
			&msgID, &msgOwner, &msgContent, &msgThread, &msgCreated, &msgUpdated,
			&usrID, &usrEmail, &usrProfile, &usrChannels, &usrCreated, &usrUpdated,
		); err != nil {
			return nil, fmt.Errorf("scan thread view: %w", err)
		}
		item.ReplyIDs = idList(replies)
		if msgID.Valid {
			message := Message{ID: msgID.String, OwnerID: msgOwner.String, Content: msgContent.String, CreatedAt: msgCreated.Time, UpdatedAt: msgUpdated.Time}
			if msgThread.Valid {
				inThread := msgThread.String
				message.InThread = &inThread
			}
			item.FirstMessage = &message
		}
		if usrID.Valid {
			owner := User{ID: usrID.String, Email: usrEmail.String, ChannelIDs: idList(usrChannels.String), CreatedAt: usrCreated.Time, UpdatedAt: usrUpdated.Time}
			if usrProfile.Valid {
				profileID := usrProfile.String
				owner.ProfileID = &profileID
			}
			item.Owner = &owner
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread views: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertThread(ctx context.Context, thread Thread) (Thread, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO threads (id, first_message_id, owner_id)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, thread.ID, thread.FirstMessageID, thread.OwnerID).Scan(&thread.CreatedAt, &thread.UpdatedAt)
	if err != nil {
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	thread.ReplyIDs = []string{}
	return thread, nil
}

func (s *PostgresStore) UpdateThread(ctx context.Context, thread Thread) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads
		SET first_message_id=$2, owner_id=$3, updated_at=NOW()
		WHERE id=$1
	`, thread.ID, thread.FirstMessageID, thread.OwnerID)
	if err != nil {
		return fmt.Errorf("update thread: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM threads WHERE id=$1`, threadID)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// AppendReply appends unconditionally; the direct reply path performs
// no duplicate check.
func (s *PostgresStore) AppendReply(ctx context.Context, threadID, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE threads
		SET reply_ids = array_append(reply_ids, $2), updated_at=NOW()
		WHERE id=$1
	`, threadID, messageID)
	if err != nil {
		return fmt.Errorf("append reply: %w", err)
	}
	return nil
}

// ── Messages ──

const messageColumns = `id, owner_id, content, in_thread, created_at, updated_at`

func (s *PostgresStore) ListMessages(ctx context.Context) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Content, &item.InThread, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, messageID string) (Message, error) {
	var item Message
	err := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID).
		Scan(&item.ID, &item.OwnerID, &item.Content, &item.InThread, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return Message{}, err
	}
	return item, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, message Message) (Message, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, owner_id, content, in_thread)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, message.ID, message.OwnerID, message.Content, message.InThread).Scan(&message.CreatedAt, &message.UpdatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

func (s *PostgresStore) UpdateMessage(ctx context.Context, message Message) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET content=$2, updated_at=NOW() WHERE id=$1
	`, message.ID, message.Content)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// CreateReply inserts the message and appends it to the thread's reply
// sequence in one transaction; a missing thread persists nothing.
func (s *PostgresStore) CreateReply(ctx context.Context, message Message, threadID string) (Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin create reply: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM threads WHERE id=$1)`, threadID).Scan(&exists); err != nil {
		return Message{}, fmt.Errorf("check reply thread: %w", err)
	}
	if !exists {
		return Message{}, sql.ErrNoRows
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, owner_id, content, in_thread)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, message.ID, message.OwnerID, message.Content, threadID).Scan(&message.CreatedAt, &message.UpdatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert reply message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE threads SET reply_ids = array_append(reply_ids, $2), updated_at=NOW() WHERE id=$1
	`, threadID, message.ID); err != nil {
		return Message{}, fmt.Errorf("append reply to thread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit create reply: %w", err)
	}
	inThread := threadID
	message.InThread = &inThread
	return message, nil
}

// ── Attachments ──

func (s *PostgresStore) InsertAttachment(ctx context.Context, attachment Attachment) (Attachment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attachments (id, message_id, object_key, file_name, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, attachment.ID, attachment.MessageID, attachment.ObjectKey, attachment.FileName, attachment.Size).Scan(&attachment.CreatedAt)
	if err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return attachment, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, messageID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, message_id, object_key, file_name, size_bytes, created_at
		FROM attachments
		WHERE message_id=$1
		ORDER BY created_at ASC
	`, messageID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		if err := rows.Scan(&item.ID, &item.MessageID, &item.ObjectKey, &item.FileName, &item.Size, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation, used to map duplicate emails to a validation error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr interface{ SQLState() string }
	if errors.As(err, &sqlErr) {
		return sqlErr.SQLState() == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value")
}
