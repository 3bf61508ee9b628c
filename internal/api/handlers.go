// Package api provides the HTTP handlers feeding the chore engine. The
// handlers are deliberately thin: decode, hand to the engine, map the result
// to a wire status. Business-rule rejections surface as 204 No Content; the
// engine has already alerted and nothing was persisted.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/chorex/chore-engine/internal/engine"
	"github.com/chorex/chore-engine/internal/fxrate"
	"github.com/chorex/chore-engine/internal/metrics"
	"github.com/chorex/chore-engine/internal/model"
	"github.com/chorex/chore-engine/internal/store"
)

// Service handles the chore engine's HTTP surface.
type Service struct {
	engine *engine.Engine
	store  store.Store
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new API service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(eng *engine.Engine, st store.Store, hub *WSHub) *Service {
	return &Service{
		engine: eng,
		store:  st,
		wsHub:  hub,
	}
}

// HandleChoreEvent handles POST /api/v1/chore-events
func (s *Service) HandleChoreEvent(w http.ResponseWriter, r *http.Request) {
	var ledger model.ChoreLedger
	if err := json.NewDecoder(r.Body).Decode(&ledger); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if ledger.ChoreID == "" {
		writeError(w, "chore_id is required", http.StatusBadRequest)
		return
	}
	if ledger.Event == "" {
		writeError(w, "chore_event is required", http.StatusBadRequest)
		return
	}
	if ledger.ID == "" {
		ledger.ID = uuid.New().String()
	}

	snap, err := s.engine.HandleChoreEvent(r.Context(), ledger)
	outcome := outcomeLabel(snap, err)
	metrics.ChoreEventsTotal.WithLabelValues(string(ledger.Event), outcome).Inc()

	if err != nil {
		slog.Error("chore event failed", "chore_id", ledger.ChoreID,
			"event", string(ledger.Event), "err", err)
		writeError(w, err.Error(), statusForError(err))
		return
	}
	if snap == nil {
		// Deliberately ignored; the engine already alerted.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.broadcastSnapshot("chore_updated", snap)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// HandleDeal handles POST /api/v1/deals
func (s *Service) HandleDeal(w http.ResponseWriter, r *http.Request) {
	var deal model.Deal
	if err := json.NewDecoder(r.Body).Decode(&deal); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if deal.ChoreID == "" {
		writeError(w, "chore_id is required", http.StatusBadRequest)
		return
	}
	if !deal.FillQty.IsPositive() {
		writeError(w, "fill_qty must be positive", http.StatusBadRequest)
		return
	}
	if deal.ID == "" {
		deal.ID = uuid.New().String()
	}

	snap, err := s.engine.HandleDeal(r.Context(), deal)
	if err != nil {
		slog.Error("deal failed", "chore_id", deal.ChoreID, "err", err)
		writeError(w, err.Error(), statusForError(err))
		return
	}
	if snap == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.broadcastSnapshot("deal_applied", snap)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// GetChore handles GET /api/v1/chores/{choreID}
func (s *Service) GetChore(w http.ResponseWriter, r *http.Request) {
	choreID := chi.URLParam(r, "choreID")

	snap, err := s.store.GetByChoreID(r.Context(), choreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "chore not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to load chore", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// ListOpenChores handles GET /api/v1/chores
// Returns all snapshots in a non-terminal status.
func (s *Service) ListOpenChores(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.store.ListOpen(r.Context())
	if err != nil {
		writeError(w, "failed to list chores", http.StatusInternalServerError)
		return
	}
	if snaps == nil {
		snaps = []model.ChoreSnapshot{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snaps)
}

// SweepExpired handles POST /api/v1/sweep
// Manual trigger for the residual sweep; the cron schedule calls the same
// engine entry point.
func (s *Service) SweepExpired(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.SweepExpired(r.Context()); err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Service) broadcastSnapshot(msgType string, snap *model.ChoreSnapshot) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:       msgType,
		ChoreID:    snap.ChoreID,
		SnapshotID: snap.SnapshotID,
		Status:     string(snap.Status),
		FilledQty:  snap.FilledQty.String(),
		CxledQty:   snap.CxledQty.String(),
		AvgFillPx:  snap.AvgFillPx.String(),
	})
}

func outcomeLabel(snap *model.ChoreSnapshot, err error) string {
	switch {
	case err != nil:
		return "error"
	case snap == nil:
		return "ignored"
	default:
		return "applied"
	}
}

// statusForError maps engine failures to wire status codes. Missing mandatory
// reference data is a server-side configuration fault.
func statusForError(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoQuote), errors.Is(err, fxrate.ErrNoRate):
		return http.StatusInternalServerError
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
