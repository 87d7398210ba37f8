package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/horizon/internal/domain/session"
)

// ValkeyStore persists session snapshots in a Valkey-compatible database so
// several instances can serve the same browser.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a new store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "horizon"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// Get implements session.Store.
func (s *ValkeyStore) Get(ctx context.Context, id string) (session.Snapshot, bool, error) {
	cmd := s.client.B().Get().Key(s.sessionKey(id)).Build()
	payload, err := s.client.Do(ctx, cmd).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return session.Snapshot{}, false, nil
		}
		return session.Snapshot{}, false, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("decode session %s: %w", id, err)
	}
	return snap, true, nil
}

// Save implements session.Store.
func (s *ValkeyStore) Save(ctx context.Context, snap session.Snapshot, ttl time.Duration) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	builder := s.client.B().Set().Key(s.sessionKey(snap.ID)).Value(string(payload))
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return s.client.Do(ctx, cmd).Error()
}

// Delete implements session.Store.
func (s *ValkeyStore) Delete(ctx context.Context, id string) error {
	return s.client.Do(ctx, s.client.B().Del().Key(s.sessionKey(id)).Build()).Error()
}

func (s *ValkeyStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

var _ session.Store = (*ValkeyStore)(nil)
