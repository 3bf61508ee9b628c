package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/model"
)

// HandleDeal reconciles one fill against its chore snapshot. It returns the
// committed snapshot, or (nil, nil) when the fill was rejected (unknown
// chore, dead status, or a paused fill-after-DOD).
func (e *Engine) HandleDeal(ctx context.Context, deal model.Deal) (*model.ChoreSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !deal.FillQty.IsPositive() {
		e.alerts.Error("fill with non-positive qty",
			"chore_id", deal.ChoreID, "deal_id", deal.ID,
			"fill_qty", deal.FillQty.String())
		return nil, nil
	}

	snap, err := e.loadDealSnap(ctx, deal)
	if snap == nil {
		return nil, err
	}

	switch snap.Status {
	case model.StatusFilled:
		e.alerts.Critical("fill on fully filled chore",
			"chore_id", snap.ChoreID, "fill_qty", deal.FillQty.String())
		e.callbacks.PausePlan("fill on fully filled chore " + snap.ChoreID)
		return nil, nil
	case model.StatusUnack, model.StatusAcked, model.StatusAmdDnUnacked,
		model.StatusAmdUpUnacked, model.StatusDOD, model.StatusCxlUnack:
		// Fillable.
	default:
		e.alerts.Error("fill on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}

	wasDOD := snap.Status == model.StatusDOD
	wasUnack := snap.Status == model.StatusUnack

	available := snap.AvailableFillQty()
	updatedTotalFilled := snap.FilledQty.Add(deal.FillQty)

	switch {
	case updatedTotalFilled.Equal(available):
		// Exact fulfillment.
		if wasDOD {
			if e.policy.PauseFulfillPostChoreDOD {
				e.alerts.Critical("fill fulfilling chore after DOD rejected by policy",
					"chore_id", snap.ChoreID, "fill_qty", deal.FillQty.String())
				e.callbacks.PausePlan("fill after DOD on chore " + snap.ChoreID)
				return nil, nil
			}
			e.alerts.Warn("fill fulfilling chore after DOD, reversing cancelled bucket",
				"chore_id", snap.ChoreID, "fill_qty", deal.FillQty.String())
			if err := e.reverseCxled(snap, deal.FillQty); err != nil {
				return nil, err
			}
			if !snap.CxledQty.Equal(snap.Brief.Qty.Sub(available)) {
				e.alerts.Error("cancelled bucket did not zero out after post-DOD reversal",
					"chore_id", snap.ChoreID, "cxled_qty", snap.CxledQty.String())
			}
		}
		snap.Status = model.StatusFilled

	case updatedTotalFilled.GreaterThan(available):
		// Over-fill; always pause.
		vacant := available.Sub(snap.FilledQty)
		excess := deal.FillQty.Sub(vacant)
		e.alerts.Critical("over-fill on chore",
			"key", snap.Brief.SecurityID+"-"+string(snap.Brief.Side),
			"chore_id", snap.ChoreID, "deal_id", deal.ID,
			"fill_after_dod", wasDOD, "fill_before_ack", wasUnack,
			"vacant_qty", vacant.String(), "excess_qty", excess.String())
		snap.Status = model.StatusOverFilled
		e.callbacks.PausePlan("over-fill on chore " + snap.ChoreID)

	default:
		// Still open after this fill.
		if wasDOD {
			e.alerts.Warn("partial fill after DOD, reversing cancelled bucket",
				"chore_id", snap.ChoreID, "fill_qty", deal.FillQty.String())
			if err := e.reverseCxled(snap, deal.FillQty); err != nil {
				return nil, err
			}
			// The chore stays fully accounted: booked fills plus the
			// cancelled remainder, so it resolves as FILLED.
			snap.Status = model.StatusFilled
		} else if wasUnack {
			e.alerts.Warn("fill before ack, promoting chore to ACKED",
				"chore_id", snap.ChoreID)
			snap.Status = model.StatusAcked
		}
	}

	usdPx, err := e.fx.Usd(deal.FillPx, snap.Brief.SecurityID)
	if err != nil {
		return nil, err
	}
	fillNotional := deal.FillNotional
	if fillNotional.IsZero() {
		fillNotional = deal.FillQty.Mul(usdPx)
	}

	snap.FilledQty = updatedTotalFilled
	snap.FillNotional = snap.FillNotional.Add(fillNotional)
	localNotional, err := e.fx.Local(snap.FillNotional, snap.Brief.SecurityID)
	if err != nil {
		return nil, err
	}
	snap.AvgFillPx = localNotional.Div(snap.FilledQty)
	snap.LastUpdateFillQty = deal.FillQty
	snap.LastUpdateFillPx = deal.FillPx
	snap.UpdatedAt = deal.FillTime

	committed, err := e.store.Update(ctx, snap)
	if err != nil {
		return nil, err
	}
	e.callbacks.OnDealUpdate(deal, committed, wasDOD)
	return committed, nil
}

// reverseCxled backs a late fill's quantity out of the cancelled bucket at
// the brief px.
func (e *Engine) reverseCxled(snap *model.ChoreSnapshot, qty decimal.Decimal) error {
	usdPx, err := e.fx.Usd(snap.Brief.Px, snap.Brief.SecurityID)
	if err != nil {
		return err
	}

	snap.CxledQty = snap.CxledQty.Sub(qty)
	if snap.CxledQty.Sign() < 0 {
		e.alerts.Error("cancelled bucket went negative on reversal",
			"chore_id", snap.ChoreID, "cxled_qty", snap.CxledQty.String())
	}
	snap.CxledNotional = snap.CxledNotional.Sub(qty.Mul(usdPx))
	if snap.CxledQty.IsZero() {
		snap.CxledNotional = decimal.Zero
	}
	snap.RefreshAvgCxledPx()
	return nil
}

func (e *Engine) loadDealSnap(ctx context.Context, deal model.Deal) (*model.ChoreSnapshot, error) {
	snap, err := e.store.GetByChoreID(ctx, deal.ChoreID)
	if err != nil {
		if isNotFound(err) {
			e.alerts.Error("deal for unknown chore",
				"chore_id", deal.ChoreID, "deal_id", deal.ID)
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}
