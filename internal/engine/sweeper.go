package engine

import (
	"context"
	"strings"
	"time"

	"github.com/chorex/chore-engine/internal/metrics"
	"github.com/chorex/chore-engine/internal/model"
)

// SweepExpired issues a cancel request for every open chore owned by this
// executor whose age exceeds the residual mark. The sweep is stateless: a
// missed cycle just delays the cancel, and the gateway de-duplicates
// re-issued requests.
func (e *Engine) SweepExpired(ctx context.Context) error {
	if e.policy.ResidualMarkSeconds <= 0 {
		return nil
	}
	residualMark := time.Duration(e.policy.ResidualMarkSeconds) * time.Second

	e.mu.Lock()
	defer e.mu.Unlock()

	snaps, err := e.store.ListOpen(ctx)
	if err != nil {
		return err
	}
	metrics.OpenChores.Set(float64(len(snaps)))

	now := e.now()
	for _, snap := range snaps {
		if snap.Status.Terminal() {
			// Shouldn't appear in an open listing; flags a read race.
			e.alerts.Warn("terminal snapshot observed during sweep",
				"chore_id", snap.ChoreID, "status", string(snap.Status))
			continue
		}
		if snap.Status == model.StatusCxlUnack {
			continue
		}
		if !strings.HasPrefix(snap.Brief.UserData, e.policy.InstanceID) {
			// Not owned by this executor.
			continue
		}
		if now.Sub(snap.CreatedAt) <= residualMark {
			continue
		}

		broker := snap.Brief.Broker
		if broker == "" {
			broker = deriveBroker(snap.Brief.UnderlyingAccount, snap.Brief.InstrumentType)
		}
		if err := e.gateway.PlaceCancel(ctx, snap.ChoreID, snap.Brief.Side,
			snap.Brief.SecurityID, broker, snap.Brief.UnderlyingAccount); err != nil {
			e.alerts.Error("sweep cancel request failed",
				"chore_id", snap.ChoreID, "err", err.Error())
			continue
		}
		metrics.SweepCancelsTotal.Inc()
		e.alerts.Info("sweep cancel issued",
			"chore_id", snap.ChoreID,
			"age_seconds", int64(now.Sub(snap.CreatedAt).Seconds()))
	}
	return nil
}
