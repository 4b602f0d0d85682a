package store

import "time"

type ChannelType string

const (
	ChannelDM    ChannelType = "DM"
	ChannelGroup ChannelType = "GROUP"
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	ProfileID    *string   `json:"profile,omitempty"`
	ChannelIDs   []string  `json:"channels"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Profile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FullName  string    `json:"fullName"`
	Location  string    `json:"location"`
	Pronouns  string    `json:"pronouns"`
	OwnerID   string    `json:"userRef"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Channel struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Type        ChannelType `json:"type"`
	OwnerID     string      `json:"owner"`
	MemberIDs   []string    `json:"members"`
	ThreadIDs   []string    `json:"threads"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type Thread struct {
	ID             string    `json:"id"`
	FirstMessageID string    `json:"firstMessage"`
	ReplyIDs       []string  `json:"replies"`
	OwnerID        string    `json:"owner"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Message struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Content   string    `json:"content"`
	InThread  *string   `json:"inThread,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ThreadView is a thread with its referenced documents resolved. The
// batch endpoint returns these instead of relying on implicit populate
// behavior in the persistence layer.
type ThreadView struct {
	Thread
	FirstMessage *Message `json:"firstMessageDoc,omitempty"`
	Owner        *User    `json:"ownerDoc,omitempty"`
}

type Attachment struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message"`
	ObjectKey string    `json:"-"`
	FileName  string    `json:"fileName"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
