package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/chorex/chore-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	snaps  map[string]*model.ChoreSnapshot
	nextID int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*model.ChoreSnapshot)}
}

func (s *MemoryStore) GetByChoreID(_ context.Context, choreID string) (*model.ChoreSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[choreID]
	if !ok {
		return nil, fmt.Errorf("%w: chore %s", ErrNotFound, choreID)
	}
	copy := *snap
	return &copy, nil
}

func (s *MemoryStore) Create(_ context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snaps[snap.ChoreID]; ok {
		return nil, fmt.Errorf("%w: chore %s", ErrDuplicate, snap.ChoreID)
	}

	s.nextID++
	stored := *snap
	stored.SnapshotID = s.nextID
	s.snaps[snap.ChoreID] = &stored

	copy := stored
	return &copy, nil
}

func (s *MemoryStore) Update(_ context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.snaps[snap.ChoreID]
	if !ok {
		return nil, fmt.Errorf("%w: chore %s", ErrNotFound, snap.ChoreID)
	}

	stored := *snap
	stored.SnapshotID = existing.SnapshotID
	s.snaps[snap.ChoreID] = &stored

	copy := stored
	return &copy, nil
}

func (s *MemoryStore) ListOpen(_ context.Context) ([]model.ChoreSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]model.ChoreSnapshot, 0, len(s.snaps))
	for _, snap := range s.snaps {
		if snap.Status.Terminal() {
			continue
		}
		open = append(open, *snap)
	}
	return open, nil
}
