package domain

import "time"

type ChatID int64

// Chat groups a fixed set of members. The member set is immutable once
// the chat is created.
type Chat struct {
	ID        ChatID
	IsGroup   bool
	CreatedAt time.Time
}
