package auditrepo

import (
	"context"
	"sync"

	"github.com/yanqian/horizon/internal/domain/auditlog"
)

// MemoryRepository keeps a bounded audit log in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	entries  []auditlog.Entry
	capacity int
}

// NewMemoryRepository constructs a repository holding at most capacity entries.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryRepository{capacity: capacity}
}

// Insert appends an entry, evicting the oldest one when full.
func (r *MemoryRepository) Insert(_ context.Context, entry auditlog.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	if overflow := len(r.entries) - r.capacity; overflow > 0 {
		r.entries = append([]auditlog.Entry(nil), r.entries[overflow:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]auditlog.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.entries) {
		limit = len(r.entries)
	}
	out := make([]auditlog.Entry, 0, limit)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.entries[i])
	}
	return out, nil
}

var _ auditlog.Repository = (*MemoryRepository)(nil)
