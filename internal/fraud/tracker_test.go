package fraud

import (
	"testing"
	"time"
)

func TestTrackerRecordAndCount(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base

	tracker := NewTracker()
	tracker.now = func() time.Time { return current }

	for i := 1; i <= 3; i++ {
		lastHour, lastDay := tracker.RecordAndCount("user-1")
		if lastHour != i || lastDay != i {
			t.Fatalf("attempt %d: got (%d, %d), want (%d, %d)", i, lastHour, lastDay, i, i)
		}
	}

	// Two hours later the hourly window is empty but the daily one is not.
	current = base.Add(2 * time.Hour)
	lastHour, lastDay := tracker.RecordAndCount("user-1")
	if lastHour != 1 {
		t.Errorf("lastHour = %d, want 1", lastHour)
	}
	if lastDay != 4 {
		t.Errorf("lastDay = %d, want 4", lastDay)
	}
}

func TestTrackerPrunesBeyondDay(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base

	tracker := NewTracker()
	tracker.now = func() time.Time { return current }

	tracker.RecordAndCount("user-1")
	tracker.RecordAndCount("user-1")

	current = base.Add(25 * time.Hour)
	_, lastDay := tracker.RecordAndCount("user-1")
	if lastDay != 1 {
		t.Errorf("lastDay after prune = %d, want 1", lastDay)
	}

	lastHour, lastDay := tracker.Counts("user-1")
	if lastHour != 1 || lastDay != 1 {
		t.Errorf("Counts = (%d, %d), want (1, 1)", lastHour, lastDay)
	}
}

func TestTrackerCountsDoesNotRecord(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordAndCount("user-1")
	tracker.Counts("user-1")
	tracker.Counts("user-1")

	lastHour, _ := tracker.Counts("user-1")
	if lastHour != 1 {
		t.Errorf("lastHour = %d, want 1", lastHour)
	}
}

func TestTrackerIsolatesUsers(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordAndCount("user-1")
	tracker.RecordAndCount("user-1")
	lastHour, _ := tracker.RecordAndCount("user-2")
	if lastHour != 1 {
		t.Errorf("user-2 lastHour = %d, want 1", lastHour)
	}
}

func TestTrackerLastAttempt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := base

	tracker := NewTracker()
	tracker.now = func() time.Time { return current }

	if _, ok := tracker.LastAttempt("user-1"); ok {
		t.Fatal("expected no attempts for fresh user")
	}

	tracker.RecordAndCount("user-1")
	current = base.Add(10 * time.Minute)
	tracker.RecordAndCount("user-1")

	last, ok := tracker.LastAttempt("user-1")
	if !ok {
		t.Fatal("expected a recorded attempt")
	}
	if !last.Equal(base.Add(10 * time.Minute)) {
		t.Errorf("LastAttempt = %v, want %v", last, base.Add(10*time.Minute))
	}
}
