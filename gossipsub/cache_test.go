package gossipsub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageCachePutIsNoOpOnDuplicate(t *testing.T) {
	c := newMessageCache(10)
	topic := strPtr("T")
	first := &Message{Id: "X", Topic: topic, Content: []byte("first")}
	second := &Message{Id: "X", Topic: topic, Content: []byte("second")}

	c.put(first, 100)
	c.put(second, 200)

	got, ok := c.get("X")
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got.Content)
	assert.Equal(t, 1, c.size())
}

func TestMessageCacheEvictsOverCapacity(t *testing.T) {
	c := newMessageCache(2)
	c.put(&Message{Id: "A"}, 1)
	c.put(&Message{Id: "B"}, 2)
	c.put(&Message{Id: "C"}, 3)

	assert.Equal(t, 2, c.size())
	assert.False(t, c.has("A"))
	assert.True(t, c.has("B"))
	assert.True(t, c.has("C"))
}

func TestMessageCacheCleanupExpired(t *testing.T) {
	c := newMessageCache(10)
	c.put(&Message{Id: "old"}, 0)
	c.put(&Message{Id: "new"}, 29_000)

	c.cleanupExpired(30_001, 30_000) // "old" is now 1ms past its TTL, "new" is still within it
	assert.False(t, c.has("old"))
	assert.True(t, c.has("new"))
}

func TestSeenSetBoundedByCapacity(t *testing.T) {
	s := newSeenSet(2)
	s.add("A")
	s.add("B")
	s.add("C")

	assert.False(t, s.has("A")) // evicted, least-recently-used
	assert.True(t, s.has("B"))
	assert.True(t, s.has("C"))
}

func TestIwantPendingTrackFulfillCleanup(t *testing.T) {
	p := newIwantPending()
	p.track("X", 0)
	p.track("X", 500) // second track is a no-op, keeps the first timestamp

	assert.Equal(t, 1, p.size())
	p.cleanupExpired(30_001, 30_000)
	assert.Equal(t, 0, p.size(), "entry past the TTL boundary should be evicted")

	p.track("Y", 0)
	p.fulfill("Y")
	assert.Equal(t, 0, p.size())
}
