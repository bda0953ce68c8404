package realtime

import (
	"sync"
	"time"

	"campushub/contract"
	"campushub/domain"
)

type typingEntry struct {
	userID     string
	startedAt  time.Time
	lastSignal time.Time
	notifiedAt time.Time
}

// TypingKey identifies one expired typing entry for stop dispatch.
type TypingKey struct {
	Room   domain.Room
	UserID string
}

// TypingTracker holds the ephemeral "X is typing in Y" state. Entries expire
// both actively (Sweep) and passively (checked on read). Duplicate start
// signals inside the timeout window are debounced so key-repeat-rate client
// signals do not become event storms.
type TypingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	now     contract.Clock
	// rooms keeps insertion order for UI display; index backs O(1) lookup.
	rooms map[domain.Room][]*typingEntry
	index map[TypingKey]*typingEntry
}

func NewTypingTracker(timeout time.Duration) *TypingTracker {
	return &TypingTracker{
		timeout: timeout,
		now:     time.Now,
		rooms:   make(map[domain.Room][]*typingEntry),
		index:   make(map[TypingKey]*typingEntry),
	}
}

// Start upserts the entry and reports whether a "typing started" event
// should be dispatched: on a fresh entry, or when the previous notification
// is older than the timeout window.
func (t *TypingTracker) Start(room domain.Room, userID string) (notify bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	key := TypingKey{Room: room, UserID: userID}
	if entry, ok := t.index[key]; ok {
		entry.lastSignal = now
		if now.Sub(entry.notifiedAt) < t.timeout {
			return false
		}
		entry.notifiedAt = now
		return true
	}

	entry := &typingEntry{userID: userID, startedAt: now, lastSignal: now, notifiedAt: now}
	t.index[key] = entry
	t.rooms[room] = append(t.rooms[room], entry)
	return true
}

// Stop removes the entry and reports whether it existed, so the caller only
// dispatches "typing stopped" for state peers actually saw.
func (t *TypingTracker) Stop(room domain.Room, userID string) (existed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(TypingKey{Room: room, UserID: userID})
}

func (t *TypingTracker) removeLocked(key TypingKey) bool {
	entry, ok := t.index[key]
	if !ok {
		return false
	}
	delete(t.index, key)
	entries := t.rooms[key.Room]
	for i, e := range entries {
		if e == entry {
			t.rooms[key.Room] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	if len(t.rooms[key.Room]) == 0 {
		delete(t.rooms, key.Room)
	}
	return true
}

// ActiveTypists returns the room's typists in insertion order, skipping
// entries past the timeout even before the sweep reclaims them.
func (t *TypingTracker) ActiveTypists(room domain.Room) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.timeout)
	var typists []string
	for _, entry := range t.rooms[room] {
		if entry.lastSignal.Before(cutoff) {
			continue
		}
		typists = append(typists, entry.userID)
	}
	return typists
}

// ClearIdentity removes every entry of a departing identity and returns the
// rooms that need a "typing stopped" event.
func (t *TypingTracker) ClearIdentity(userID string) []domain.Room {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cleared []domain.Room
	for key := range t.index {
		if key.UserID == userID {
			t.removeLocked(key)
			cleared = append(cleared, key.Room)
		}
	}
	return cleared
}

// Sweep removes every expired entry and returns the keys so the caller can
// emit the stop events.
func (t *TypingTracker) Sweep() []TypingKey {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.timeout)
	var expired []TypingKey
	for key, entry := range t.index {
		if entry.lastSignal.Before(cutoff) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		t.removeLocked(key)
	}
	return expired
}
