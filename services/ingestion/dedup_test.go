package ingestion

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupSet_RejectsDuplicates(t *testing.T) {
	d := newDedupSet(10)

	assert.True(t, d.CheckAndRecord("n-1"))
	assert.False(t, d.CheckAndRecord("n-1"))
	assert.True(t, d.CheckAndRecord("n-2"))
	assert.Equal(t, 2, d.Len())
}

func TestDedupSet_EvictsOldestAtCapacity(t *testing.T) {
	d := newDedupSet(3)

	assert.True(t, d.CheckAndRecord("a"))
	assert.True(t, d.CheckAndRecord("b"))
	assert.True(t, d.CheckAndRecord("c"))
	assert.Equal(t, 3, d.Len())

	// "a" is the oldest and gets evicted
	assert.True(t, d.CheckAndRecord("d"))
	assert.Equal(t, 3, d.Len())

	// an evicted id is accepted again
	assert.True(t, d.CheckAndRecord("a"))

	// "c" survived both evictions so far
	assert.False(t, d.CheckAndRecord("d"))
}

func TestDedupSet_NeverExceedsCapacity(t *testing.T) {
	d := newDedupSet(100)

	for i := 0; i < 500; i++ {
		assert.True(t, d.CheckAndRecord(fmt.Sprintf("n-%d", i)))
	}

	assert.Equal(t, 100, d.Len())
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()

	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(notification("n-1", "a@b.com", "1"))
	q.Push(notification("n-2", "a@b.com", "2"))
	assert.Equal(t, 2, q.Len())

	first, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "n-1", first.NotificationID)

	second, ok := q.Pop()
	assert.True(t, ok)
	assert.Equal(t, "n-2", second.NotificationID)

	assert.Equal(t, 0, q.Len())
}
