package storage

import "time"

// Entry is one applied change of a user's impression fields.
// Entries are appended in chronological order and never rewritten.
type Entry struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	UserID    string            `json:"user_id"`
	GroupID   string            `json:"group_id,omitempty"`
	Source    string            `json:"source"`
	Fields    map[string]string `json:"fields"`
}

// Recorder abstracts persistence of journal entries.
// LoadEntries should return entries in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendEntry(entry Entry) error
	LoadEntries() ([]Entry, error)
	EntriesFor(userID string) ([]Entry, error)
}
