// Package store defines the persistence interface for chore snapshots.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/chorex/chore-engine/internal/model"
)

// ErrNotFound is returned when no snapshot exists for a chore id.
var ErrNotFound = errors.New("store: snapshot not found")

// ErrDuplicate is returned when Create sees an existing snapshot for the
// same chore id.
var ErrDuplicate = errors.New("store: snapshot already exists")

// Store is the snapshot persistence interface. The engine holds its own lock
// around the read-modify-write cycle; implementations only need to keep
// individual calls atomic.
type Store interface {
	// GetByChoreID retrieves the current snapshot for a chore.
	GetByChoreID(ctx context.Context, choreID string) (*model.ChoreSnapshot, error)

	// Create persists a new snapshot and returns it with the
	// store-assigned monotonic snapshot id merged back.
	Create(ctx context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error)

	// Update persists a mutated snapshot and returns the committed copy.
	Update(ctx context.Context, snap *model.ChoreSnapshot) (*model.ChoreSnapshot, error)

	// ListOpen returns every snapshot not in a terminal status.
	ListOpen(ctx context.Context) ([]model.ChoreSnapshot, error)
}
