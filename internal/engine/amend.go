package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/amend"
	"github.com/chorex/chore-engine/internal/model"
)

// amendRollback stashes every field a risky amend mutates so an amend-reject
// restores the snapshot to its pre-amend values exactly.
type amendRollback struct {
	px            decimal.Decimal
	qty           decimal.Decimal
	notional      decimal.Decimal
	cxledQty      decimal.Decimal
	cxledNotional decimal.Decimal
	totalAmendDn  decimal.Decimal
	totalAmendUp  decimal.Decimal
}

func stashRollback(snap *model.ChoreSnapshot) amendRollback {
	return amendRollback{
		px:            snap.Brief.Px,
		qty:           snap.Brief.Qty,
		notional:      snap.Brief.Notional,
		cxledQty:      snap.CxledQty,
		cxledNotional: snap.CxledNotional,
		totalAmendDn:  snap.TotalAmendDnQty,
		totalAmendUp:  snap.TotalAmendUpQty,
	}
}

func (r amendRollback) restore(snap *model.ChoreSnapshot) {
	snap.Brief.Px = r.px
	snap.Brief.Qty = r.qty
	snap.Brief.Notional = r.notional
	snap.CxledQty = r.cxledQty
	snap.CxledNotional = r.cxledNotional
	snap.TotalAmendDnQty = r.totalAmendDn
	snap.TotalAmendUpQty = r.totalAmendUp
	snap.RefreshAvgCxledPx()
}

// --- AMD_DN_UNACK / AMD_UP_UNACK ---

func (e *Engine) onAmendUnack(ctx context.Context, ledger model.ChoreLedger, dir amend.Direction) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	if snap.Status != model.StatusAcked {
		e.alerts.Error("amend unack on chore not in ACKED",
			"chore_id", snap.ChoreID, "event", string(ledger.Event),
			"status", string(snap.Status))
		return nil, nil
	}

	amendQty := ledger.Chore.Qty
	amendPx := ledger.Chore.Px
	if amendQty.IsZero() && amendPx.IsZero() {
		e.alerts.Error("amend unack carries neither qty nor px",
			"chore_id", snap.ChoreID, "event", string(ledger.Event))
		return nil, nil
	}

	last := snap.Status
	snap.ResetPendingAmend()
	if dir == amend.DirectionDn {
		snap.PendingAmendDnQty = amendQty
		snap.PendingAmendDnPx = amendPx
	} else {
		snap.PendingAmendUpQty = amendQty
		snap.PendingAmendUpPx = amendPx
	}

	if !amend.Risky(dir, snap.Brief.Side) {
		// Non-risky: staged only, applied when the ack arrives.
		if dir == amend.DirectionDn {
			snap.Status = model.StatusAmdDnUnacked
		} else {
			snap.Status = model.StatusAmdUpUnacked
		}
		snap.UpdatedAt = ledger.EventTime
		return e.store.Update(ctx, snap)
	}

	// Risky: shrinks exposure on this side, applied immediately. Stash the
	// pre-amend terms so a reject can restore them exactly.
	rollback := stashRollback(snap)
	if err := e.applyAmend(snap, dir, amendQty, amendPx); err != nil {
		return nil, err
	}

	outcome, policyErr := amend.Applied(true, dir, snap.OpenQty(), last)
	if policyErr != nil {
		e.alerts.Error("risky amend produced unexpected open qty, dropped",
			"chore_id", snap.ChoreID, "event", string(ledger.Event),
			"open_qty", snap.OpenQty().String())
		return nil, nil
	}

	e.rollbacks[snap.ChoreID] = rollback
	e.applyOutcome(snap, outcome)
	snap.UpdatedAt = ledger.EventTime
	return e.store.Update(ctx, snap)
}

// --- AMD_ACK ---

func (e *Engine) onAmendAck(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}
	if !amendResolvable(snap.Status) {
		e.alerts.Error("amend ack on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}

	dir, dirErr := amend.PendingDirection(snap)
	if dirErr != nil {
		e.alerts.Error("amend ack with ambiguous pending amend, dropped",
			"chore_id", snap.ChoreID,
			"pending_dn_qty", snap.PendingAmendDnQty.String(),
			"pending_up_qty", snap.PendingAmendUpQty.String())
		return nil, nil
	}

	last := snap.Status
	if !amend.Risky(dir, snap.Brief.Side) {
		// Staged at unack time; the bookkeeping lands now.
		qty, px := pendingTerms(snap, dir)
		if err := e.applyAmend(snap, dir, qty, px); err != nil {
			return nil, err
		}
	} else {
		// Already applied at unack time; the ack just resolves status.
		delete(e.rollbacks, snap.ChoreID)
	}

	outcome, policyErr := amend.Applied(false, dir, snap.OpenQty(), last)
	if policyErr != nil {
		e.alerts.Error("amend ack outcome unresolved, dropped",
			"chore_id", snap.ChoreID, "open_qty", snap.OpenQty().String())
		return nil, nil
	}

	e.applyOutcome(snap, outcome)
	snap.ResetPendingAmend()
	snap.UpdatedAt = ledger.EventTime
	return e.store.Update(ctx, snap)
}

// --- AMD_REJ ---

func (e *Engine) onAmendRej(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}
	if !amendResolvable(snap.Status) {
		e.alerts.Error("amend reject on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}

	dir, dirErr := amend.PendingDirection(snap)
	if dirErr != nil {
		e.alerts.Error("amend reject with ambiguous pending amend, dropped",
			"chore_id", snap.ChoreID,
			"pending_dn_qty", snap.PendingAmendDnQty.String(),
			"pending_up_qty", snap.PendingAmendUpQty.String())
		return nil, nil
	}

	last := snap.Status
	if amend.Risky(dir, snap.Brief.Side) {
		rollback, ok := e.rollbacks[snap.ChoreID]
		if !ok {
			e.alerts.Error("amend reject with no rollback for risky amend, dropped",
				"chore_id", snap.ChoreID)
			return nil, nil
		}
		rollback.restore(snap)
		delete(e.rollbacks, snap.ChoreID)
	}
	// Non-risky amends were never applied; discarding the staged fields is
	// the whole reversal.

	outcome, policyErr := amend.Rejected(dir, snap.OpenQty(), last)
	if policyErr != nil {
		e.alerts.Error("amend reject outcome unresolved, dropped",
			"chore_id", snap.ChoreID, "open_qty", snap.OpenQty().String())
		return nil, nil
	}

	e.applyOutcome(snap, outcome)
	snap.ResetPendingAmend()
	snap.UpdatedAt = ledger.EventTime
	return e.store.Update(ctx, snap)
}

// --- bookkeeping ---

// applyAmend lands an amend's field mutations on the snapshot. Amend-down
// moves qty into the cancelled bucket at the pre-amend px; amend-up grows the
// brief. A px amend replaces the brief px and recomputes the notional.
func (e *Engine) applyAmend(snap *model.ChoreSnapshot, dir amend.Direction, qty, px decimal.Decimal) error {
	usdPx, err := e.fx.Usd(snap.Brief.Px, snap.Brief.SecurityID)
	if err != nil {
		return err
	}

	if !qty.IsZero() {
		if dir == amend.DirectionDn {
			snap.CxledQty = snap.CxledQty.Add(qty)
			snap.CxledNotional = snap.CxledNotional.Add(qty.Mul(usdPx))
			snap.RefreshAvgCxledPx()
			snap.TotalAmendDnQty = snap.TotalAmendDnQty.Add(qty)
		} else {
			snap.Brief.Qty = snap.Brief.Qty.Add(qty)
			snap.TotalAmendUpQty = snap.TotalAmendUpQty.Add(qty)
		}
	}

	if !px.IsZero() {
		snap.Brief.Px = px
		usdPx, err = e.fx.Usd(px, snap.Brief.SecurityID)
		if err != nil {
			return err
		}
	}
	snap.Brief.Notional = snap.Brief.Qty.Mul(usdPx)
	return nil
}

func (e *Engine) applyOutcome(snap *model.ChoreSnapshot, outcome amend.Outcome) {
	if outcome.Warn != "" {
		e.alerts.Warn(outcome.Warn, "chore_id", snap.ChoreID)
	}
	switch outcome.Action {
	case amend.ActionPause:
		e.alerts.Critical("amend outcome requires pause",
			"chore_id", snap.ChoreID, "status", string(outcome.Status))
		e.callbacks.PausePlan("amend outcome on chore " + snap.ChoreID)
	case amend.ActionUnpause:
		e.callbacks.ResumePlan("amend outcome on chore " + snap.ChoreID)
	}
	snap.Status = outcome.Status
}

func pendingTerms(snap *model.ChoreSnapshot, dir amend.Direction) (qty, px decimal.Decimal) {
	if dir == amend.DirectionDn {
		return snap.PendingAmendDnQty, snap.PendingAmendDnPx
	}
	return snap.PendingAmendUpQty, snap.PendingAmendUpPx
}

func amendResolvable(status model.ChoreStatus) bool {
	switch status {
	case model.StatusAmdDnUnacked, model.StatusAmdUpUnacked, model.StatusFilled,
		model.StatusOverFilled, model.StatusCxlUnack, model.StatusDOD:
		return true
	default:
		return false
	}
}
