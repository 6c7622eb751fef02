package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/talgya/ascendant/internal/clock"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndRecent(t *testing.T) {
	s := openTestStore(t)

	evs := []Event{
		NewEvent(clock.NewMonthStamp(1, 1), "first event", []string{"a"}, false, false),
		NewEvent(clock.NewMonthStamp(1, 2), "second event", []string{"a", "b"}, true, true),
	}
	if err := s.Append(evs); err != nil {
		t.Fatalf("append: %v", err)
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	if recent[0].Content != "second event" {
		t.Fatalf("expected newest-first ordering, got %q", recent[0].Content)
	}
	if !recent[0].HasBothParticipants("a", "b") {
		t.Fatalf("expected participants a and b on second event")
	}
	if recent[0].ID == 0 {
		t.Fatalf("expected an autoincrement id assigned")
	}
}

func TestByParticipantFiltersAndPaginates(t *testing.T) {
	s := openTestStore(t)

	for i := 1; i <= 3; i++ {
		ev := NewEvent(clock.NewMonthStamp(1, i), "event", []string{"a"}, i == 2, false)
		if err := s.Append([]Event{ev}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	// event not involving "a"
	if err := s.Append([]Event{NewEvent(clock.NewMonthStamp(1, 4), "unrelated", []string{"z"}, false, false)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	evs, _, _, err := s.ByParticipant("a", int64(clock.NewMonthStamp(2, 1))+1, 0, 10, false, false)
	if err != nil {
		t.Fatalf("by participant: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events for 'a', got %d", len(evs))
	}

	majorOnly, _, _, err := s.ByParticipant("a", int64(clock.NewMonthStamp(2, 1))+1, 0, 10, true, false)
	if err != nil {
		t.Fatalf("by participant major only: %v", err)
	}
	if len(majorOnly) != 1 {
		t.Fatalf("expected 1 major event for 'a', got %d", len(majorOnly))
	}
}

func TestBetweenParticipantsRequiresBoth(t *testing.T) {
	s := openTestStore(t)

	if err := s.Append([]Event{NewEvent(1, "together", []string{"a", "b"}, false, false)}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append([]Event{NewEvent(2, "a only", []string{"a"}, false, false)}); err != nil {
		t.Fatalf("append: %v", err)
	}

	evs, _, _, err := s.BetweenParticipants("a", "b", 1000, 0, 10, false, false)
	if err != nil {
		t.Fatalf("between participants: %v", err)
	}
	if len(evs) != 1 || evs[0].Content != "together" {
		t.Fatalf("expected only the shared event, got %v", evs)
	}
}

func TestCleanupKeepsMajorWhenRequested(t *testing.T) {
	s := openTestStore(t)

	if err := s.Append([]Event{
		NewEvent(1, "minor", nil, false, false),
		NewEvent(1, "major", nil, true, false),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := s.Cleanup(CleanupOptions{KeepMajor: true}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "major" {
		t.Fatalf("expected only the major event to survive cleanup, got %v", recent)
	}
}
