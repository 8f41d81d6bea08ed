package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultTTL is how long a user counts as online after their last request
const DefaultTTL = 5 * time.Minute

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker is a process-local record of when each user was last active.
// Entries older than the TTL are treated as offline and evicted lazily
// on read; there is no background sweep.
// State is lost on restart and not shared between processes.
type Tracker struct {
	mu       sync.Mutex
	lastSeen map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// New creates a Tracker. A non-positive ttl falls back to DefaultTTL.
func New(ttl time.Duration, opts ...Option) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &Tracker{
		lastSeen: make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TTL returns the staleness threshold
func (t *Tracker) TTL() time.Duration {
	return t.ttl
}

// MarkActive records the user as active now
func (t *Tracker) MarkActive(userID string) {
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen[userID] = t.now()
}

// MarkOffline removes the user's entry
func (t *Tracker) MarkOffline(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.lastSeen, userID)
}

// IsOnline reports whether the user was active within the TTL.
// A stale entry is removed as part of the check.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.liveEntry(userID, t.now())
	return ok
}

// LastSeen returns the last activity time for a user who is still online
func (t *Tracker) LastSeen(userID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.liveEntry(userID, t.now())
}

// Online returns the sorted ids of all users currently online, evicting
// stale entries along the way
func (t *Tracker) Online() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	ids := make([]string, 0, len(t.lastSeen))
	for id := range t.lastSeen {
		if _, ok := t.liveEntry(id, now); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracked entries, stale ones included
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.lastSeen)
}

// Clear drops every entry. Called on shutdown.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastSeen = make(map[string]time.Time)
}

// liveEntry returns the entry for id if it is fresh and deletes it otherwise
// (must be called with lock held)
func (t *Tracker) liveEntry(id string, now time.Time) (time.Time, bool) {
	last, exists := t.lastSeen[id]
	if !exists {
		return time.Time{}, false
	}
	if now.Sub(last) > t.ttl {
		delete(t.lastSeen, id)
		return time.Time{}, false
	}
	return last, true
}
