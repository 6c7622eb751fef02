// Package eventlog implements the append-only Event Log (spec §4.5):
// immutable records with stable ids, paginated retrieval, and a durable
// SQLite-backed store. Grounded on the teacher's internal/persistence/db.go
// migrate/prepared-statement idiom.
package eventlog

import "github.com/talgya/ascendant/internal/clock"

// Event is an immutable record produced by any phase and appended to the log
// in phase 19, after dedup by id (spec §3).
type Event struct {
	ID           int64            `db:"id" json:"id"`
	Stamp        clock.MonthStamp `db:"stamp" json:"stamp"`
	Content      string           `db:"content" json:"content"`
	Participants []string         `db:"-" json:"participants"`
	IsMajor      bool             `db:"is_major" json:"is_major"`
	IsStory      bool             `db:"is_story" json:"is_story"`
}

// NewEvent builds an Event with no id yet assigned (the store assigns one on
// Append). Events produced within a tick keep ID 0 until Append assigns the
// store's autoincrement id.
func NewEvent(stamp clock.MonthStamp, content string, participants []string, isMajor, isStory bool) Event {
	return Event{
		Stamp:        stamp,
		Content:      content,
		Participants: participants,
		IsMajor:      isMajor,
		IsStory:      isStory,
	}
}

// HasParticipant reports whether id appears in the event's participant list.
func (e Event) HasParticipant(id string) bool {
	for _, p := range e.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// HasBothParticipants reports whether both a and b appear in the event.
func (e Event) HasBothParticipants(a, b string) bool {
	return e.HasParticipant(a) && e.HasParticipant(b)
}
