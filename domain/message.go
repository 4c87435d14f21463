package domain

import "time"

type MessageID int64

// MaxContentLength bounds message content after trimming.
const MaxContentLength = 4096

// Message represents an immutable chat event. CreatedAt is assigned at
// persistence time, never by the caller.
type Message struct {
	ID        MessageID
	ChatID    ChatID
	SenderID  UserID
	Content   string
	CreatedAt time.Time
}
