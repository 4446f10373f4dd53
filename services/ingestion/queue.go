package ingestion

import (
	"sync"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
)

// memoryQueue is the best-effort in-process FIFO queue of pending
// notifications. It does not survive a restart.
type memoryQueue struct {
	mu      sync.Mutex
	entries []dto.InboundNotification
}

func NewMemoryQueue() interfaces.NotificationQueue {
	return &memoryQueue{}
}

func (q *memoryQueue) Push(notification dto.InboundNotification) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, notification)
}

func (q *memoryQueue) Pop() (dto.InboundNotification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return dto.InboundNotification{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

func (q *memoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
