package internal_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channel-relay/internal"
)

func newHistory() *internal.HistoryRing {
	return internal.NewHistoryRing(zap.NewNop())
}

func TestAppend_AssignsServerFields(t *testing.T) {
	h := newHistory()

	stored := h.Append("room", internal.Message{
		"text": "hello",
		"id":   "caller-supplied",
		"ts":   "caller-supplied",
	})

	assert.Equal(t, "hello", stored["text"])
	assert.NotEqual(t, "caller-supplied", stored["id"])
	assert.NotEqual(t, "caller-supplied", stored["ts"])
	assert.Equal(t, stored["ts"], stored["timestamp"])
}

func TestAppend_EvictsOldestBeyondCapacity(t *testing.T) {
	h := newHistory()

	for i := 1; i <= 150; i++ {
		h.Append("room", internal.Message{"seq": i})
	}

	messages, total := h.Recent("room", 100)
	require.Len(t, messages, 100)
	assert.Equal(t, 100, total)

	// Oldest first: the surviving window is messages 51..150.
	assert.Equal(t, 51, messages[0]["seq"])
	assert.Equal(t, 150, messages[99]["seq"])
}

func TestAppend_HundredFirstEvictsTheFirst(t *testing.T) {
	h := newHistory()

	for i := 1; i <= 101; i++ {
		h.Append("X", internal.Message{"seq": i})
	}

	messages, total := h.Recent("X", 200)
	require.Len(t, messages, 100)
	assert.Equal(t, 100, total)
	assert.Equal(t, 2, messages[0]["seq"])
}

func TestRecent_LimitOne(t *testing.T) {
	h := newHistory()

	h.Append("room", internal.Message{"seq": 1})
	h.Append("room", internal.Message{"seq": 2})

	messages, total := h.Recent("room", 1)
	require.Len(t, messages, 1)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, messages[0]["seq"])
}

func TestRecent_DefaultLimit(t *testing.T) {
	h := newHistory()

	for i := 1; i <= 80; i++ {
		h.Append("room", internal.Message{"seq": i})
	}

	messages, total := h.Recent("room", 0)
	require.Len(t, messages, 50)
	assert.Equal(t, 80, total)
	assert.Equal(t, 31, messages[0]["seq"])

	messages, _ = h.Recent("room", -7)
	assert.Len(t, messages, 50)
}

func TestRecent_UnknownChannel(t *testing.T) {
	h := newHistory()

	messages, total := h.Recent("nope", 10)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
	assert.Zero(t, total)
}

func TestAppend_ConcurrentKeepsCapacityInvariant(t *testing.T) {
	h := newHistory()

	const (
		writers = 8
		each    = 50
	)

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				h.Append("room", internal.Message{"writer": w, "seq": i})
			}
		}(w)
	}
	wg.Wait()

	messages, total := h.Recent("room", 200)
	assert.Len(t, messages, 100)
	assert.Equal(t, 100, total)
}

func TestAppend_ChannelsAreIndependent(t *testing.T) {
	h := newHistory()

	for i := 0; i < 10; i++ {
		h.Append(fmt.Sprintf("room-%d", i%2), internal.Message{"seq": i})
	}

	_, totalA := h.Recent("room-0", 100)
	_, totalB := h.Recent("room-1", 100)
	assert.Equal(t, 5, totalA)
	assert.Equal(t, 5, totalB)
}
