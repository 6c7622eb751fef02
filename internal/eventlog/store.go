package eventlog

import (
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/ascendant/internal/clock"
)

// Store is the durable SQLite-backed Event Log, the only component
// permitted to persist to a durable store (spec §4.5). Grounded on the
// teacher's internal/persistence/db.go Open/migrate pattern.
type Store struct {
	conn *sqlx.DB
}

// Open opens or creates the SQLite event log at path.
func Open(path string) (*Store, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("eventlog: open db: %w", err)
	}
	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		stamp INTEGER NOT NULL,
		content TEXT NOT NULL,
		is_major INTEGER NOT NULL,
		is_story INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_stamp ON events(stamp DESC);

	CREATE TABLE IF NOT EXISTS event_participants (
		event_id INTEGER NOT NULL,
		avatar_id TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_participants_avatar ON event_participants(avatar_id);
	CREATE INDEX IF NOT EXISTS idx_participants_event ON event_participants(event_id);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Append writes a batch of events in one transaction, deduplicated by id
// beforehand by the caller (spec §4.2.19 — finalize phase). Each event is
// assigned a fresh autoincrement id; Events passed in with ID == 0 are
// treated as new.
func (s *Store) Append(evs []Event) error {
	if len(evs) == 0 {
		return nil
	}
	tx, err := s.conn.Beginx()
	if err != nil {
		return fmt.Errorf("eventlog: begin tx: %w", err)
	}
	defer tx.Rollback()

	insertEvent, err := tx.Preparex(`INSERT INTO events (stamp, content, is_major, is_story) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertEvent.Close()

	insertParticipant, err := tx.Preparex(`INSERT INTO event_participants (event_id, avatar_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertParticipant.Close()

	for _, e := range evs {
		res, err := insertEvent.Exec(int64(e.Stamp), e.Content, e.IsMajor, e.IsStory)
		if err != nil {
			return fmt.Errorf("eventlog: insert event: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, p := range e.Participants {
			if _, err := insertParticipant.Exec(id, p); err != nil {
				return fmt.Errorf("eventlog: insert participant: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Recent returns the N most recent events, newest first.
func (s *Store) Recent(n int) ([]Event, error) {
	var rows []rawRow
	if err := s.conn.Select(&rows, `SELECT id, stamp, content, is_major, is_story FROM events ORDER BY stamp DESC, id DESC LIMIT ?`, n); err != nil {
		return nil, fmt.Errorf("eventlog: recent: %w", err)
	}
	return s.hydrate(rows)
}

type rawRow struct {
	ID      int64  `db:"id"`
	Stamp   int64  `db:"stamp"`
	Content string `db:"content"`
	IsMajor bool   `db:"is_major"`
	IsStory bool   `db:"is_story"`
}

func (s *Store) hydrate(rows []rawRow) ([]Event, error) {
	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		var participants []string
		if err := s.conn.Select(&participants, `SELECT avatar_id FROM event_participants WHERE event_id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("eventlog: participants for event %d: %w", r.ID, err)
		}
		out = append(out, Event{
			ID:           r.ID,
			Stamp:        clock.MonthStamp(r.Stamp),
			Content:      r.Content,
			Participants: participants,
			IsMajor:      r.IsMajor,
			IsStory:      r.IsStory,
		})
	}
	return out, nil
}

// ByParticipant returns events mentioning avatarID, paginated stamp-descending
// by a (stamp, id) cursor; majorOnly filters to is_major when true, nonMajor
// filters to !is_major when true (both false returns every flag combination).
func (s *Store) ByParticipant(avatarID string, cursorStamp int64, cursorID int64, limit int, majorOnly, nonMajorOnly bool) ([]Event, int64, int64, error) {
	query := `
	SELECT e.id, e.stamp, e.content, e.is_major, e.is_story FROM events e
	JOIN event_participants p ON p.event_id = e.id
	WHERE p.avatar_id = ? AND (e.stamp < ? OR (e.stamp = ? AND e.id < ?))`
	args := []any{avatarID, cursorStamp, cursorStamp, cursorID}
	if majorOnly {
		query += ` AND e.is_major = 1`
	}
	if nonMajorOnly {
		query += ` AND e.is_major = 0`
	}
	query += ` ORDER BY e.stamp DESC, e.id DESC LIMIT ?`
	args = append(args, limit)

	var rows []rawRow
	if err := s.conn.Select(&rows, query, args...); err != nil {
		return nil, 0, 0, fmt.Errorf("eventlog: by participant: %w", err)
	}
	evs, err := s.hydrate(rows)
	if err != nil {
		return nil, 0, 0, err
	}
	nextStamp, nextID := int64(0), int64(0)
	if len(evs) > 0 {
		last := evs[len(evs)-1]
		nextStamp, nextID = int64(last.Stamp), last.ID
	}
	return evs, nextStamp, nextID, nil
}

// BetweenParticipants returns events where both ids appear among the
// participants, paginated the same way as ByParticipant.
func (s *Store) BetweenParticipants(a, b string, cursorStamp, cursorID int64, limit int, majorOnly, nonMajorOnly bool) ([]Event, int64, int64, error) {
	query := `
	SELECT e.id, e.stamp, e.content, e.is_major, e.is_story FROM events e
	WHERE e.id IN (
		SELECT event_id FROM event_participants WHERE avatar_id = ?
		INTERSECT
		SELECT event_id FROM event_participants WHERE avatar_id = ?
	) AND (e.stamp < ? OR (e.stamp = ? AND e.id < ?))`
	args := []any{a, b, cursorStamp, cursorStamp, cursorID}
	if majorOnly {
		query += ` AND e.is_major = 1`
	}
	if nonMajorOnly {
		query += ` AND e.is_major = 0`
	}
	query += ` ORDER BY e.stamp DESC, e.id DESC LIMIT ?`
	args = append(args, limit)

	var rows []rawRow
	if err := s.conn.Select(&rows, query, args...); err != nil {
		return nil, 0, 0, fmt.Errorf("eventlog: between participants: %w", err)
	}
	evs, err := s.hydrate(rows)
	if err != nil {
		return nil, 0, 0, err
	}
	nextStamp, nextID := int64(0), int64(0)
	if len(evs) > 0 {
		last := evs[len(evs)-1]
		nextStamp, nextID = int64(last.Stamp), last.ID
	}
	return evs, nextStamp, nextID, nil
}

// CleanupOptions configures the bulk cleanup operation (spec §4.5); the only
// delete path the log supports.
type CleanupOptions struct {
	KeepMajor   bool
	BeforeStamp *clock.MonthStamp
}

// Cleanup prunes noise per opts, used by the UI to reduce log size.
func (s *Store) Cleanup(opts CleanupOptions) error {
	query := `DELETE FROM events WHERE 1=1`
	var args []any
	if opts.KeepMajor {
		query += ` AND is_major = 0`
	}
	if opts.BeforeStamp != nil {
		query += ` AND stamp < ?`
		args = append(args, int64(*opts.BeforeStamp))
	}
	if _, err := s.conn.Exec(query, args...); err != nil {
		return fmt.Errorf("eventlog: cleanup: %w", err)
	}
	_, err := s.conn.Exec(`
		DELETE FROM event_participants
		WHERE event_id NOT IN (SELECT id FROM events)`)
	return err
}

// MarshalParticipants encodes a participant id list as a JSON array string.
// The events table does not use it: participants are stored as rows of
// event_participants.
func MarshalParticipants(ids []string) (string, error) {
	b, err := json.Marshal(ids)
	return string(b), err
}
