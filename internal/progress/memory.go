package progress

import (
	"context"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize caps the number of batches kept by a MemoryTracker.
const DefaultMemorySize = 1024

// MemoryTracker keeps snapshots in process. Entries expire ttl after their
// last write and the least recently used batch is evicted once size is
// reached.
type MemoryTracker struct {
	entries *expirable.LRU[uuid.UUID, Snapshot]
	now     func() time.Time
}

// NewMemoryTracker builds an in-process tracker.
func NewMemoryTracker(ttl time.Duration, size int) *MemoryTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryTracker{
		entries: expirable.NewLRU[uuid.UUID, Snapshot](size, nil, ttl),
		now:     time.Now,
	}
}

func (t *MemoryTracker) Update(_ context.Context, logID uuid.UUID, processed, total int) error {
	t.entries.Add(logID, running(logID, processed, total, t.now()))
	return nil
}

func (t *MemoryTracker) Finish(_ context.Context, logID uuid.UUID, results []domain.ImportResult) error {
	t.entries.Add(logID, finished(logID, results, t.now()))
	return nil
}

func (t *MemoryTracker) Get(_ context.Context, logID uuid.UUID) (Snapshot, error) {
	snapshot, ok := t.entries.Get(logID)
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return snapshot, nil
}

// Len reports how many batches are currently held.
func (t *MemoryTracker) Len() int {
	return t.entries.Len()
}
