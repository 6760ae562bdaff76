package internal

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type PresenceEntry struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	LastSeen time.Time `json:"lastSeen"`
}

// PresenceTracker keeps best-effort "who is online" state per channel.
// Entries are refreshed by heartbeats and subscription auth, and removed only
// by an explicit disconnect (or the optional Sweep). Writes for the same
// (channel, user) pair are last-writer-wins, so a single RWMutex is enough.
type PresenceTracker struct {
	channels map[string]map[string]PresenceEntry
	mux      *sync.RWMutex
	log      *zap.Logger
}

func NewPresenceTracker(log *zap.Logger) *PresenceTracker {
	return &PresenceTracker{
		channels: make(map[string]map[string]PresenceEntry),
		mux:      &sync.RWMutex{},
		log:      log,
	}
}

func (t *PresenceTracker) MarkOnline(channelName, userID, userName string) {
	if channelName == "" || userID == "" {
		return
	}

	t.mux.Lock()
	defer t.mux.Unlock()

	users, ok := t.channels[channelName]
	if !ok {
		users = make(map[string]PresenceEntry)
		t.channels[channelName] = users
	}
	users[userID] = PresenceEntry{
		UserID:   userID,
		UserName: userName,
		LastSeen: time.Now().UTC(),
	}
}

// MarkOffline is a no-op when the user was never marked online.
func (t *PresenceTracker) MarkOffline(channelName, userID string) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if users, ok := t.channels[channelName]; ok {
		delete(users, userID)
	}
}

func (t *PresenceTracker) ListOnline(channelName string) []PresenceEntry {
	t.mux.RLock()
	defer t.mux.RUnlock()

	users, ok := t.channels[channelName]
	if !ok {
		return []PresenceEntry{}
	}

	out := make([]PresenceEntry, 0, len(users))
	for _, entry := range users {
		out = append(out, entry)
	}
	return out
}

// ClearChannel drops all presence for a channel, used when the delivery
// network reports the channel vacated.
func (t *PresenceTracker) ClearChannel(channelName string) {
	t.mux.Lock()
	defer t.mux.Unlock()

	delete(t.channels, channelName)
}

// Sweep removes entries whose last heartbeat is older than maxAge and
// returns how many were dropped. Callers that want no expiry simply never
// call it.
func (t *PresenceTracker) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	t.mux.Lock()
	defer t.mux.Unlock()

	swept := 0
	for channelName, users := range t.channels {
		for userID, entry := range users {
			if entry.LastSeen.Before(cutoff) {
				delete(users, userID)
				swept++
			}
		}
		if len(users) == 0 {
			delete(t.channels, channelName)
		}
	}

	if swept > 0 {
		t.log.Info("swept stale presence entries", zap.Int("count", swept))
	}
	return swept
}
