package store

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/model"
)

func snap(choreID string, status model.ChoreStatus) *model.ChoreSnapshot {
	return &model.ChoreSnapshot{
		ChoreID: choreID,
		Brief: model.ChoreBrief{
			SecurityID: "CB-ACME-2030A",
			Side:       model.SideBuy,
			Px:         decimal.NewFromInt(100),
			Qty:        decimal.NewFromInt(10),
		},
		Status: status,
	}
}

func TestMemoryStore_CreateAssignsMonotonicIDs(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	first, err := ms.Create(ctx, snap("c1", model.StatusUnack))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := ms.Create(ctx, snap("c2", model.StatusUnack))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.SnapshotID == 0 || second.SnapshotID <= first.SnapshotID {
		t.Errorf("ids not monotonic: %d, %d", first.SnapshotID, second.SnapshotID)
	}
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.Create(ctx, snap("c1", model.StatusUnack)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := ms.Create(ctx, snap("c1", model.StatusUnack)); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.Create(ctx, snap("c1", model.StatusUnack)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	got, err := ms.GetByChoreID(ctx, "c1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	// Mutating the returned copy must not leak into the store.
	got.Status = model.StatusFilled
	again, _ := ms.GetByChoreID(ctx, "c1")
	if again.Status != model.StatusUnack {
		t.Errorf("store mutated through returned copy: %s", again.Status)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	ms := NewMemoryStore()
	if _, err := ms.GetByChoreID(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdatePreservesSnapshotID(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	created, err := ms.Create(ctx, snap("c1", model.StatusUnack))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	mutated := *created
	mutated.Status = model.StatusAcked
	mutated.SnapshotID = 0 // the store owns the id
	updated, err := ms.Update(ctx, &mutated)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.SnapshotID != created.SnapshotID {
		t.Errorf("snapshot id changed on update: %d -> %d",
			created.SnapshotID, updated.SnapshotID)
	}
	if updated.Status != model.StatusAcked {
		t.Errorf("update lost status change: %s", updated.Status)
	}
}

func TestMemoryStore_UpdateMissing(t *testing.T) {
	ms := NewMemoryStore()
	if _, err := ms.Update(context.Background(), snap("ghost", model.StatusAcked)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ListOpenExcludesTerminal(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	for id, status := range map[string]model.ChoreStatus{
		"open1": model.StatusAcked,
		"open2": model.StatusCxlUnack,
		"dead1": model.StatusDOD,
		"dead2": model.StatusFilled,
		"dead3": model.StatusOverFilled,
	} {
		if _, err := ms.Create(ctx, snap(id, status)); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	open, err := ms.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 open snapshots, got %d", len(open))
	}
	for _, s := range open {
		if s.Status.Terminal() {
			t.Errorf("terminal snapshot %s in open listing", s.ChoreID)
		}
	}
}
