package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/chorex/chore-engine/internal/metrics"
	"github.com/chorex/chore-engine/internal/model"
)

// OrderGateway places cancel requests with the external order-placement
// layer. Requests must be idempotent at the gateway; the sweeper may re-issue
// a cancel for the same chore on a later cycle.
type OrderGateway interface {
	PlaceCancel(ctx context.Context, choreID string, side model.Side, symbol, brokerSymbol, account string) error
}

// ExecutorCallbacks receives post-update hooks and owns the pause switch.
// The engine never acts on the pause state itself; pausing exists so a human
// intervenes before more flow reaches a damaged chore.
type ExecutorCallbacks interface {
	// OnChoreUpdate fires after a ledger event committed a new snapshot.
	OnChoreUpdate(snap *model.ChoreSnapshot)

	// OnDealUpdate fires after a deal committed a new snapshot.
	// filledAfterDOD marks the fill-after-DOD race.
	OnDealUpdate(deal model.Deal, snap *model.ChoreSnapshot, filledAfterDOD bool)

	// PausePlan halts the owning execution plan until a human resumes it.
	PausePlan(reason string)

	// ResumePlan lifts a pause set by PausePlan.
	ResumePlan(reason string)
}

// LogCallbacks is the default ExecutorCallbacks: structured logs plus
// Prometheus counters. Pause state is a process-local flag exposed to the
// health surface.
type LogCallbacks struct {
	Logger *slog.Logger
	paused atomic.Bool
}

// NewLogCallbacks creates callbacks over the given logger; nil uses
// slog.Default.
func NewLogCallbacks(logger *slog.Logger) *LogCallbacks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogCallbacks{Logger: logger}
}

func (c *LogCallbacks) OnChoreUpdate(snap *model.ChoreSnapshot) {
	c.Logger.Info("chore snapshot committed",
		"chore_id", snap.ChoreID,
		"snapshot_id", snap.SnapshotID,
		"status", string(snap.Status),
		"filled_qty", snap.FilledQty.String(),
		"cxled_qty", snap.CxledQty.String(),
	)
}

func (c *LogCallbacks) OnDealUpdate(deal model.Deal, snap *model.ChoreSnapshot, filledAfterDOD bool) {
	c.Logger.Info("deal applied",
		"chore_id", snap.ChoreID,
		"fill_qty", deal.FillQty.String(),
		"fill_px", deal.FillPx.String(),
		"status", string(snap.Status),
		"filled_after_dod", filledAfterDOD,
	)
	metrics.DealsTotal.WithLabelValues(string(snap.Status)).Inc()
}

func (c *LogCallbacks) PausePlan(reason string) {
	if c.paused.Swap(true) {
		return
	}
	c.Logger.Error("plan paused", "reason", reason)
	metrics.PausesTotal.Inc()
	metrics.PlanPaused.Set(1)
}

func (c *LogCallbacks) ResumePlan(reason string) {
	if !c.paused.Swap(false) {
		return
	}
	c.Logger.Warn("plan resumed", "reason", reason)
	metrics.PlanPaused.Set(0)
}

// Paused reports the current pause state.
func (c *LogCallbacks) Paused() bool { return c.paused.Load() }

// LogGateway is an OrderGateway that only records the request; the real
// broker transport lives in another process.
type LogGateway struct {
	Logger *slog.Logger
}

func (g *LogGateway) PlaceCancel(_ context.Context, choreID string, side model.Side, symbol, brokerSymbol, account string) error {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("cancel requested at gateway",
		"chore_id", choreID,
		"side", string(side),
		"symbol", symbol,
		"broker_symbol", brokerSymbol,
		"account", account,
	)
	return nil
}
