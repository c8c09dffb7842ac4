package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// SessionRecord is the durable form of a conversation session. The live
// turn history is kept in conversation_entries, not on the session row.
type SessionRecord struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Entry is one completed conversation turn: a user query and the bot
// response it received. Entries are immutable once written and ordered
// by timestamp within a session.
type Entry struct {
	ID          string
	SessionID   string
	UserQuery   string
	BotResponse string
	Timestamp   time.Time
}
