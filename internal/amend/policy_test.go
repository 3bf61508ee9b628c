package amend

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Risky classification ---

func TestRisky(t *testing.T) {
	cases := []struct {
		dir  Direction
		side model.Side
		want bool
	}{
		{DirectionDn, model.SideSell, true},
		{DirectionDn, model.SideBuy, false},
		{DirectionUp, model.SideBuy, true},
		{DirectionUp, model.SideSell, false},
	}
	for _, c := range cases {
		if got := Risky(c.dir, c.side); got != c.want {
			t.Errorf("Risky(%s, %s) = %v, want %v", c.dir, c.side, got, c.want)
		}
	}
}

// --- Pending direction inference ---

func TestPendingDirection_Dn(t *testing.T) {
	snap := &model.ChoreSnapshot{PendingAmendDnQty: d(10)}
	dir, err := PendingDirection(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != DirectionDn {
		t.Errorf("expected DN, got %s", dir)
	}
}

func TestPendingDirection_UpPxOnly(t *testing.T) {
	snap := &model.ChoreSnapshot{PendingAmendUpPx: d(105)}
	dir, err := PendingDirection(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != DirectionUp {
		t.Errorf("expected UP, got %s", dir)
	}
}

func TestPendingDirection_Both(t *testing.T) {
	snap := &model.ChoreSnapshot{
		PendingAmendDnQty: d(10),
		PendingAmendUpQty: d(20),
	}
	if _, err := PendingDirection(snap); err != ErrAmbiguousPending {
		t.Errorf("expected ErrAmbiguousPending for both directions, got %v", err)
	}
}

func TestPendingDirection_Neither(t *testing.T) {
	snap := &model.ChoreSnapshot{}
	if _, err := PendingDirection(snap); err != ErrAmbiguousPending {
		t.Errorf("expected ErrAmbiguousPending for empty pending, got %v", err)
	}
}

// --- Applied table, unack-time rows ---

func TestApplied_AtUnack(t *testing.T) {
	cases := []struct {
		name       string
		dir        Direction
		open       decimal.Decimal
		last       model.ChoreStatus
		wantStatus model.ChoreStatus
		wantWarn   bool
		wantErr    error
	}{
		{"dn open positive", DirectionDn, d(70), model.StatusAcked, model.StatusAmdDnUnacked, false, nil},
		{"dn open zero", DirectionDn, d(0), model.StatusAcked, model.StatusDOD, true, nil},
		{"dn open negative", DirectionDn, d(-5), model.StatusAcked, model.StatusAcked, false, ErrUnexpectedOpenQty},
		{"up open positive", DirectionUp, d(150), model.StatusAcked, model.StatusAmdUpUnacked, false, nil},
		{"up open zero", DirectionUp, d(0), model.StatusAcked, model.StatusAcked, false, ErrUnexpectedOpenQty},
		{"up open negative", DirectionUp, d(-5), model.StatusAcked, model.StatusAcked, false, ErrUnexpectedOpenQty},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Applied(true, c.dir, c.open, c.last)
			if err != c.wantErr {
				t.Fatalf("error = %v, want %v", err, c.wantErr)
			}
			if out.Status != c.wantStatus {
				t.Errorf("status = %s, want %s", out.Status, c.wantStatus)
			}
			if (out.Warn != "") != c.wantWarn {
				t.Errorf("warn = %q, want warn=%v", out.Warn, c.wantWarn)
			}
		})
	}
}

// --- Applied table, ack-time rows ---

func TestApplied_AtAck(t *testing.T) {
	cases := []struct {
		name       string
		dir        Direction
		open       decimal.Decimal
		last       model.ChoreStatus
		wantStatus model.ChoreStatus
		wantAction Action
	}{
		{"dn open positive reopens", DirectionDn, d(70), model.StatusAmdDnUnacked, model.StatusAcked, ActionNone},
		{"dn open positive keeps cxl unack", DirectionDn, d(70), model.StatusCxlUnack, model.StatusCxlUnack, ActionNone},
		{"dn open zero", DirectionDn, d(0), model.StatusAmdDnUnacked, model.StatusDOD, ActionNone},
		{"dn open negative over-cancels", DirectionDn, d(-10), model.StatusAmdDnUnacked, model.StatusOverCxled, ActionPause},
		{"up open positive reopens", DirectionUp, d(50), model.StatusAmdUpUnacked, model.StatusAcked, ActionNone},
		{"up open positive clears over-fill", DirectionUp, d(20), model.StatusOverFilled, model.StatusAcked, ActionUnpause},
		{"up open positive clears filled", DirectionUp, d(20), model.StatusFilled, model.StatusAcked, ActionUnpause},
		{"up open zero from over-filled", DirectionUp, d(0), model.StatusOverFilled, model.StatusFilled, ActionUnpause},
		{"up open zero", DirectionUp, d(0), model.StatusAmdUpUnacked, model.StatusDOD, ActionNone},
		{"up open negative keeps last", DirectionUp, d(-10), model.StatusOverFilled, model.StatusOverFilled, ActionNone},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Applied(false, c.dir, c.open, c.last)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Status != c.wantStatus {
				t.Errorf("status = %s, want %s", out.Status, c.wantStatus)
			}
			if out.Action != c.wantAction {
				t.Errorf("action = %d, want %d", out.Action, c.wantAction)
			}
		})
	}
}

// --- Rejected table ---

func TestRejected(t *testing.T) {
	cases := []struct {
		name       string
		dir        Direction
		open       decimal.Decimal
		last       model.ChoreStatus
		wantStatus model.ChoreStatus
		wantAction Action
		wantWarn   bool
	}{
		{"dn open positive reopens", DirectionDn, d(70), model.StatusAmdDnUnacked, model.StatusAcked, ActionNone, false},
		{"dn open positive keeps cxl unack", DirectionDn, d(70), model.StatusCxlUnack, model.StatusCxlUnack, ActionNone, false},
		{"dn open positive clears over-fill", DirectionDn, d(70), model.StatusOverFilled, model.StatusAcked, ActionUnpause, false},
		{"dn open zero", DirectionDn, d(0), model.StatusAmdDnUnacked, model.StatusFilled, ActionNone, false},
		{"dn open zero from dod", DirectionDn, d(0), model.StatusDOD, model.StatusDOD, ActionNone, false},
		{"dn open zero from over-filled", DirectionDn, d(0), model.StatusOverFilled, model.StatusFilled, ActionUnpause, false},
		{"dn open negative keeps last", DirectionDn, d(-10), model.StatusOverCxled, model.StatusOverCxled, ActionNone, false},
		{"up open positive reopens", DirectionUp, d(50), model.StatusAmdUpUnacked, model.StatusAcked, ActionNone, false},
		{"up open zero", DirectionUp, d(0), model.StatusAmdUpUnacked, model.StatusFilled, ActionNone, false},
		{"up open zero from dod", DirectionUp, d(0), model.StatusDOD, model.StatusDOD, ActionNone, false},
		{"up open negative pauses", DirectionUp, d(-10), model.StatusAmdUpUnacked, model.StatusOverFilled, ActionPause, false},
		{"up open negative already over-filled", DirectionUp, d(-10), model.StatusOverFilled, model.StatusOverFilled, ActionNone, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := Rejected(c.dir, c.open, c.last)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Status != c.wantStatus {
				t.Errorf("status = %s, want %s", out.Status, c.wantStatus)
			}
			if out.Action != c.wantAction {
				t.Errorf("action = %d, want %d", out.Action, c.wantAction)
			}
			if (out.Warn != "") != c.wantWarn {
				t.Errorf("warn = %q, want warn=%v", out.Warn, c.wantWarn)
			}
		})
	}
}
