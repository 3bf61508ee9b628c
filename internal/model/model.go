// Package model defines the core domain types shared across the chore engine.
// All quantities, prices, and notionals use shopspring/decimal, never float64
// for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a chore.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ChoreStatus is the lifecycle state of a chore snapshot.
type ChoreStatus string

const (
	StatusUnack        ChoreStatus = "UNACK"
	StatusAcked        ChoreStatus = "ACKED"
	StatusAmdDnUnacked ChoreStatus = "AMD_DN_UNACKED"
	StatusAmdUpUnacked ChoreStatus = "AMD_UP_UNACKED"
	StatusCxlUnack     ChoreStatus = "CXL_UNACK"
	StatusDOD          ChoreStatus = "DOD"
	StatusFilled       ChoreStatus = "FILLED"
	StatusOverFilled   ChoreStatus = "OVER_FILLED"
	StatusOverCxled    ChoreStatus = "OVER_CXLED"
)

// Terminal reports whether s is a terminal-class status. Fills and amends can
// still legally mutate FILLED/OVER_FILLED snapshots under explicit race rules,
// but cancel-class events are idempotently ignored once this returns true.
func (s ChoreStatus) Terminal() bool {
	switch s {
	case StatusDOD, StatusFilled, StatusOverFilled, StatusOverCxled:
		return true
	default:
		return false
	}
}

// ChoreEvent identifies one kind of chore-ledger lifecycle event.
type ChoreEvent string

const (
	EventNew        ChoreEvent = "NEW"
	EventAck        ChoreEvent = "ACK"
	EventCxl        ChoreEvent = "CXL"
	EventCxlAck     ChoreEvent = "CXL_ACK"
	EventUnsolCxl   ChoreEvent = "UNSOL_CXL"
	EventCxlIntRej  ChoreEvent = "CXL_INT_REJ"
	EventCxlBrkRej  ChoreEvent = "CXL_BRK_REJ"
	EventCxlExhRej  ChoreEvent = "CXL_EXH_REJ"
	EventIntRej     ChoreEvent = "INT_REJ"
	EventBrkRej     ChoreEvent = "BRK_REJ"
	EventExhRej     ChoreEvent = "EXH_REJ"
	EventLapse      ChoreEvent = "LAPSE"
	EventAmdDnUnack ChoreEvent = "AMD_DN_UNACK"
	EventAmdUpUnack ChoreEvent = "AMD_UP_UNACK"
	EventAmdAck     ChoreEvent = "AMD_ACK"
	EventAmdRej     ChoreEvent = "AMD_REJ"
)

// ChoreBrief is the working copy of a chore's economic terms at an instant.
// Amend application mutates it in place on the owning snapshot.
type ChoreBrief struct {
	ChoreID           string          `json:"chore_id" db:"chore_id"`
	SecurityID        string          `json:"security_id" db:"security_id"`
	Side              Side            `json:"side" db:"side"`
	Px                decimal.Decimal `json:"px" db:"px"`
	Qty               decimal.Decimal `json:"qty" db:"qty"`
	Notional          decimal.Decimal `json:"notional" db:"notional"` // USD
	UserData          string          `json:"user_data" db:"user_data"`
	UnderlyingAccount string          `json:"underlying_account" db:"underlying_account"`
	InstrumentType    string          `json:"instrument_type" db:"instrument_type"`
	Broker            string          `json:"broker,omitempty" db:"broker"` // override; empty = derive
}

// ChoreSnapshot is the authoritative per-chore state, rebuilt by folding
// ledger and deal events. Mutated only through the engine entry points.
type ChoreSnapshot struct {
	SnapshotID int64      `json:"snapshot_id" db:"snapshot_id"` // monotonic, store-assigned
	ChoreID    string     `json:"chore_id" db:"chore_id"`
	Brief      ChoreBrief `json:"chore_brief"`

	Status ChoreStatus `json:"chore_status" db:"chore_status"`

	FilledQty         decimal.Decimal `json:"filled_qty" db:"filled_qty"`
	AvgFillPx         decimal.Decimal `json:"avg_fill_px" db:"avg_fill_px"`
	FillNotional      decimal.Decimal `json:"fill_notional" db:"fill_notional"` // USD
	LastUpdateFillQty decimal.Decimal `json:"last_update_fill_qty" db:"last_update_fill_qty"`
	LastUpdateFillPx  decimal.Decimal `json:"last_update_fill_px" db:"last_update_fill_px"`

	CxledQty      decimal.Decimal `json:"cxled_qty" db:"cxled_qty"`
	CxledNotional decimal.Decimal `json:"cxled_notional" db:"cxled_notional"` // USD
	AvgCxledPx    decimal.Decimal `json:"avg_cxled_px" db:"avg_cxled_px"`

	PendingAmendDnQty decimal.Decimal `json:"pending_amend_dn_qty" db:"pending_amend_dn_qty"`
	PendingAmendDnPx  decimal.Decimal `json:"pending_amend_dn_px" db:"pending_amend_dn_px"`
	PendingAmendUpQty decimal.Decimal `json:"pending_amend_up_qty" db:"pending_amend_up_qty"`
	PendingAmendUpPx  decimal.Decimal `json:"pending_amend_up_px" db:"pending_amend_up_px"`
	TotalAmendDnQty   decimal.Decimal `json:"total_amend_dn_qty" db:"total_amend_dn_qty"`
	TotalAmendUpQty   decimal.Decimal `json:"total_amend_up_qty" db:"total_amend_up_qty"`

	LastLapsedQty  decimal.Decimal `json:"last_lapsed_qty" db:"last_lapsed_qty"`
	TotalLapsedQty decimal.Decimal `json:"total_lapsed_qty" db:"total_lapsed_qty"`

	CreatedAt time.Time `json:"create_date_time" db:"create_date_time"`
	UpdatedAt time.Time `json:"last_update_date_time" db:"last_update_date_time"`
}

// OpenQty is the quantity not yet consumed by fills or the cancelled bucket.
// Negative only in the over-filled/over-cancelled escape states.
func (s *ChoreSnapshot) OpenQty() decimal.Decimal {
	return s.Brief.Qty.Sub(s.FilledQty).Sub(s.CxledQty)
}

// AvailableFillQty is the quantity still legally fillable: the original terms
// less everything amended down or lapsed away.
func (s *ChoreSnapshot) AvailableFillQty() decimal.Decimal {
	return s.Brief.Qty.Sub(s.TotalAmendDnQty).Sub(s.TotalLapsedQty)
}

// RefreshAvgCxledPx recomputes avg_cxled_px from the cancelled bucket. Applying
// it twice yields the same value; it is never left stale after a bucket change.
func (s *ChoreSnapshot) RefreshAvgCxledPx() {
	if s.CxledQty.IsPositive() {
		s.AvgCxledPx = s.CxledNotional.Div(s.CxledQty)
	} else {
		s.AvgCxledPx = decimal.Zero
	}
}

// ResetPendingAmend zeroes both pending-amend field groups. Called immediately
// before staging a new pending amend so exactly one direction is ever active.
func (s *ChoreSnapshot) ResetPendingAmend() {
	s.PendingAmendDnQty = decimal.Zero
	s.PendingAmendDnPx = decimal.Zero
	s.PendingAmendUpQty = decimal.Zero
	s.PendingAmendUpPx = decimal.Zero
}

// ChoreLedger is one immutable lifecycle event for a chore. For amend events
// Chore carries the delta terms: Qty is the amend-by quantity and Px the
// replacement price; zero means the field is not being amended.
type ChoreLedger struct {
	ID        string          `json:"id"`
	ChoreID   string          `json:"chore_id"`
	Event     ChoreEvent      `json:"chore_event"`
	EventTime time.Time       `json:"event_date_time"`
	Chore     ChoreBrief      `json:"chore"`
	LapseQty  decimal.Decimal `json:"lapse_qty,omitempty"` // LAPSE only; zero = lapse all open
}

// Deal is one fill reported against a chore.
type Deal struct {
	ID                string          `json:"id"`
	ChoreID           string          `json:"chore_id"`
	FillQty           decimal.Decimal `json:"fill_qty"`
	FillPx            decimal.Decimal `json:"fill_px"`
	FillNotional      decimal.Decimal `json:"fill_notional"` // USD; zero = derive from qty*px
	FillTime          time.Time       `json:"fill_date_time"`
	UnderlyingAccount string          `json:"underlying_account"`
}
