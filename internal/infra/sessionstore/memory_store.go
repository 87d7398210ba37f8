package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/yanqian/horizon/internal/domain/session"
)

type snapshotRecord struct {
	snap      session.Snapshot
	expiresAt time.Time
}

// MemoryStore keeps session snapshots in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]snapshotRecord
	now     func() time.Time
}

// NewMemoryStore constructs a store backed by process memory.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]snapshotRecord),
		now:     time.Now,
	}
}

// Get implements session.Store.
func (s *MemoryStore) Get(_ context.Context, id string) (session.Snapshot, bool, error) {
	s.mu.RLock()
	record, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return session.Snapshot{}, false, nil
	}
	if s.hasExpired(record.expiresAt) {
		s.mu.Lock()
		delete(s.records, id)
		s.mu.Unlock()
		return session.Snapshot{}, false, nil
	}
	return record.snap, true, nil
}

// Save stores the snapshot, replacing any previous one, with optional TTL.
func (s *MemoryStore) Save(_ context.Context, snap session.Snapshot, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[snap.ID] = snapshotRecord{snap: snap, expiresAt: exp}
	return nil
}

// Delete removes the snapshot if present.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(s.now())
}

var _ session.Store = (*MemoryStore)(nil)
