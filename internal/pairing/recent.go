package pairing

import (
	"context"
	"sync"
)

// DefaultRecentCapacity is how many recently shown entity ids are avoided.
const DefaultRecentCapacity = 10

// RecentSet remembers recently presented entity ids, oldest first.
type RecentSet interface {
	Recent(ctx context.Context) ([]string, error)
	Push(ctx context.Context, ids ...string) error
}

// RecentBuffer is an in-process bounded FIFO of entity ids. Safe for
// concurrent use; it never holds more than its capacity.
type RecentBuffer struct {
	mu       sync.Mutex
	ids      []string
	capacity int
}

var _ RecentSet = (*RecentBuffer)(nil)

func NewRecentBuffer(capacity int) *RecentBuffer {
	if capacity <= 0 {
		capacity = DefaultRecentCapacity
	}
	return &RecentBuffer{
		ids:      make([]string, 0, capacity),
		capacity: capacity,
	}
}

func (b *RecentBuffer) Recent(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.ids))
	copy(out, b.ids)
	return out, nil
}

func (b *RecentBuffer) Push(_ context.Context, ids ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ids = append(b.ids, ids...)
	if over := len(b.ids) - b.capacity; over > 0 {
		// shift instead of reslicing so the backing array doesn't grow forever
		n := copy(b.ids, b.ids[over:])
		b.ids = b.ids[:n]
	}
	return nil
}

func (b *RecentBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ids)
}

func (b *RecentBuffer) Capacity() int {
	return b.capacity
}
