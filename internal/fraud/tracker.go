// Package fraud provides behavioral risk scoring for verification attempts.
package fraud

import (
	"hash/fnv"
	"sync"
	"time"
)

const (
	trackerShards  = 64
	historyWindow  = 24 * time.Hour
	hourlyWindow   = time.Hour
)

// Tracker keeps a sliding-window attempt history per user. State is sharded
// by FNV hash of the user ID into independently locked shards so concurrent
// attempts by different users do not contend on one lock.
type Tracker struct {
	shards [trackerShards]trackerShard

	// now is swappable for tests.
	now func() time.Time
}

type trackerShard struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

// NewTracker creates an empty attempt tracker.
func NewTracker() *Tracker {
	t := &Tracker{now: time.Now}
	for i := range t.shards {
		t.shards[i].attempts = make(map[string][]time.Time)
	}
	return t
}

// RecordAndCount appends the current attempt, prunes entries older than the
// 24-hour window, and returns the hourly and daily counts over the pruned
// list. The current attempt is included in both counts.
func (t *Tracker) RecordAndCount(userID string) (lastHour, lastDay int) {
	now := t.now()
	shard := t.shard(userID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	attempts := append(shard.attempts[userID], now)

	// Prune to the 24h window; this bounds per-user memory.
	kept := attempts[:0]
	for _, a := range attempts {
		if now.Sub(a) < historyWindow {
			kept = append(kept, a)
		}
	}
	shard.attempts[userID] = kept

	for _, a := range kept {
		if now.Sub(a) < hourlyWindow {
			lastHour++
		}
	}
	return lastHour, len(kept)
}

// Counts returns the hourly and daily counts without recording an attempt.
func (t *Tracker) Counts(userID string) (lastHour, lastDay int) {
	now := t.now()
	shard := t.shard(userID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	for _, a := range shard.attempts[userID] {
		if now.Sub(a) >= historyWindow {
			continue
		}
		lastDay++
		if now.Sub(a) < hourlyWindow {
			lastHour++
		}
	}
	return lastHour, lastDay
}

// LastAttempt returns the most recent attempt time for the user, or zero
// time when the user has no recorded attempts.
func (t *Tracker) LastAttempt(userID string) (time.Time, bool) {
	shard := t.shard(userID)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	attempts := shard.attempts[userID]
	if len(attempts) == 0 {
		return time.Time{}, false
	}
	return attempts[len(attempts)-1], true
}

func (t *Tracker) shard(userID string) *trackerShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &t.shards[h.Sum32()%trackerShards]
}
