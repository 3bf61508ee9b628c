package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chorex/chore-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache keyed by chore id. Writes go to the primary store and refresh the
// cache; reads check Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) GetByChoreID(ctx context.Context, choreID string) (*model.ChoreSnapshot, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, snapshotKey(choreID)).Bytes()
	if err == nil {
		var snap model.ChoreSnapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	// Cache miss: read from primary.
	snap, err := s.primary.GetByChoreID(ctx, choreID)
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

func (s *CachedStore) Create(ctx context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error) {
	committed, err := s.primary.Create(ctx, snap)
	if err != nil {
		return nil, err
	}
	s.cacheSnapshot(ctx, committed)
	return committed, nil
}

func (s *CachedStore) Update(ctx context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error) {
	committed, err := s.primary.Update(ctx, snap)
	if err != nil {
		// Drop any stale cached copy; next read re-populates.
		s.rdb.Del(ctx, snapshotKey(snap.ChoreID))
		return nil, err
	}
	s.cacheSnapshot(ctx, committed)
	return committed, nil
}

// ListOpen is not cached: the sweeper is the only caller and must not act on
// stale status.
func (s *CachedStore) ListOpen(ctx context.Context) ([]model.ChoreSnapshot, error) {
	return s.primary.ListOpen(ctx)
}

func (s *CachedStore) cacheSnapshot(ctx context.Context, snap *model.ChoreSnapshot) {
	if data, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, snapshotKey(snap.ChoreID), data, s.ttl)
	}
}

func snapshotKey(choreID string) string { return fmt.Sprintf("chore:%s", choreID) }
