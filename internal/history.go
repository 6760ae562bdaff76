package internal

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	historyCapacity    = 100
	defaultRecentLimit = 50
)

// Message is the flat wire shape a channel message travels in: the caller's
// payload fields merged with the server-assigned ones ("id", "ts",
// "timestamp", sender identity).
type Message map[string]any

type channelLog struct {
	mux      sync.Mutex
	messages []Message
}

// HistoryRing keeps the most recent messages per channel for replay to late
// joiners. The outer mutex guards the channel map; each channel's log has its
// own mutex so append-and-evict is atomic per channel without serializing
// unrelated channels.
type HistoryRing struct {
	channels map[string]*channelLog
	mux      *sync.RWMutex
	log      *zap.Logger
}

func NewHistoryRing(log *zap.Logger) *HistoryRing {
	return &HistoryRing{
		channels: make(map[string]*channelLog),
		mux:      &sync.RWMutex{},
		log:      log,
	}
}

// Append stores a copy of msg with server-assigned id and timestamps,
// evicting from the front so the channel never holds more than the capacity
// once the call returns. Caller-supplied values for the server-owned keys are
// discarded.
func (h *HistoryRing) Append(channelName string, msg Message) Message {
	now := time.Now().UTC()
	stamp := now.Format(time.RFC3339Nano)

	stored := make(Message, len(msg)+3)
	for k, v := range msg {
		stored[k] = v
	}
	stored["id"] = newMessageID(now)
	stored["ts"] = stamp
	stored["timestamp"] = stamp

	cl := h.channel(channelName)

	cl.mux.Lock()
	cl.messages = append(cl.messages, stored)
	if n := len(cl.messages); n > historyCapacity {
		copy(cl.messages, cl.messages[n-historyCapacity:])
		cl.messages = cl.messages[:historyCapacity]
	}
	cl.mux.Unlock()

	return stored
}

// Recent returns up to limit of the newest messages, oldest first, along with
// the total number currently stored. A non-positive limit falls back to the
// default of 50. Unknown channels yield an empty slice, not an error.
func (h *HistoryRing) Recent(channelName string, limit int) ([]Message, int) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	h.mux.RLock()
	cl, ok := h.channels[channelName]
	h.mux.RUnlock()

	if !ok {
		return []Message{}, 0
	}

	cl.mux.Lock()
	defer cl.mux.Unlock()

	total := len(cl.messages)
	start := 0
	if total > limit {
		start = total - limit
	}
	out := make([]Message, total-start)
	copy(out, cl.messages[start:])
	return out, total
}

func (h *HistoryRing) channel(channelName string) *channelLog {
	h.mux.RLock()
	cl, ok := h.channels[channelName]
	h.mux.RUnlock()
	if ok {
		return cl
	}

	h.mux.Lock()
	defer h.mux.Unlock()
	if cl, ok = h.channels[channelName]; ok {
		return cl
	}
	cl = &channelLog{}
	h.channels[channelName] = cl
	h.log.Debug("history started for channel", zap.String("channel", channelName))
	return cl
}

// newMessageID mirrors the send time with a random tie-breaker. Uniqueness is
// probabilistic, which is all replay needs.
func newMessageID(now time.Time) string {
	return fmt.Sprintf("%d.%06d", now.UnixMilli(), rand.Intn(1_000_000))
}
