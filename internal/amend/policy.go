// Package amend holds the pure decision tables that resolve a chore's status
// after an amend is applied or rejected. The tables are keyed on the amend
// direction, the sign of the open quantity after the bookkeeping mutation,
// and the status the chore held going in. No I/O and no snapshot mutation
// happens here; the engine owns both.
package amend

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/model"
)

var (
	// ErrUnexpectedOpenQty marks a table row that should be unreachable
	// (e.g. negative open quantity right after a risky amend-down). The
	// caller keeps the last status and alerts.
	ErrUnexpectedOpenQty = errors.New("amend: unexpected open qty for amend outcome")

	// ErrAmbiguousPending is returned when the pending-amend fields do not
	// identify exactly one direction. The update carrying it must be
	// dropped; guessing a direction would corrupt the snapshot.
	ErrAmbiguousPending = errors.New("amend: ambiguous pending amend direction")
)

// Direction is the amend direction.
type Direction string

const (
	DirectionDn Direction = "DN"
	DirectionUp Direction = "UP"
)

// Action is the side effect the engine must take alongside a status outcome.
type Action int

const (
	ActionNone Action = iota
	ActionPause
	ActionUnpause
)

// Outcome is the resolved status plus any required side effect. Warn, when
// non-empty, is a message the engine logs at warn severity.
type Outcome struct {
	Status model.ChoreStatus
	Action Action
	Warn   string
}

// Risky reports whether an amend in dir on side applies immediately at
// unack time. Amend-down can only shrink SELL exposure, amend-up can only
// shrink BUY exposure; the opposite sides are staged until acknowledged.
func Risky(dir Direction, side model.Side) bool {
	switch dir {
	case DirectionDn:
		return side == model.SideSell
	case DirectionUp:
		return side == model.SideBuy
	default:
		return false
	}
}

// PendingDirection infers the direction of the staged amend from which of
// the snapshot's pending-amend field groups is populated. Both or neither
// populated is an unrecoverable ambiguity.
func PendingDirection(snap *model.ChoreSnapshot) (Direction, error) {
	dnSet := !snap.PendingAmendDnQty.IsZero() || !snap.PendingAmendDnPx.IsZero()
	upSet := !snap.PendingAmendUpQty.IsZero() || !snap.PendingAmendUpPx.IsZero()

	switch {
	case dnSet && upSet:
		return "", ErrAmbiguousPending
	case dnSet:
		return DirectionDn, nil
	case upSet:
		return DirectionUp, nil
	default:
		return "", ErrAmbiguousPending
	}
}

// Applied resolves the status after the amend's bookkeeping has been applied.
// atUnack selects the risky rows evaluated at amend-unack time; the non-risky
// rows are evaluated at amend-ack time regardless of which side staged the
// amend.
func Applied(atUnack bool, dir Direction, open decimal.Decimal, last model.ChoreStatus) (Outcome, error) {
	if atUnack {
		return appliedAtUnack(dir, open, last)
	}
	return appliedAtAck(dir, open, last)
}

func appliedAtUnack(dir Direction, open decimal.Decimal, last model.ChoreStatus) (Outcome, error) {
	switch dir {
	case DirectionDn:
		switch open.Sign() {
		case 1:
			return Outcome{Status: model.StatusAmdDnUnacked}, nil
		case 0:
			return Outcome{
				Status: model.StatusDOD,
				Warn:   "risky amend down consumed entire open qty",
			}, nil
		default:
			return Outcome{Status: last}, ErrUnexpectedOpenQty
		}
	case DirectionUp:
		if open.Sign() > 0 {
			return Outcome{Status: model.StatusAmdUpUnacked}, nil
		}
		return Outcome{Status: last}, ErrUnexpectedOpenQty
	}
	return Outcome{Status: last}, ErrAmbiguousPending
}

func appliedAtAck(dir Direction, open decimal.Decimal, last model.ChoreStatus) (Outcome, error) {
	switch dir {
	case DirectionDn:
		switch open.Sign() {
		case 1:
			return Outcome{Status: revertOpenStatus(last)}, nil
		case 0:
			return Outcome{Status: model.StatusDOD}, nil
		default:
			return Outcome{Status: model.StatusOverCxled, Action: ActionPause}, nil
		}
	case DirectionUp:
		switch open.Sign() {
		case 1:
			out := Outcome{Status: revertOpenStatus(last)}
			if last == model.StatusFilled || last == model.StatusOverFilled {
				out.Action = ActionUnpause
			}
			return out, nil
		case 0:
			if last == model.StatusOverFilled {
				return Outcome{Status: model.StatusFilled, Action: ActionUnpause}, nil
			}
			return Outcome{Status: model.StatusDOD}, nil
		default:
			return Outcome{Status: last}, nil
		}
	}
	return Outcome{Status: last}, ErrAmbiguousPending
}

// Rejected resolves the status after an amend-reject rollback. The same table
// serves risky and non-risky amends; only the engine's bookkeeping reversal
// differs between them.
func Rejected(dir Direction, open decimal.Decimal, last model.ChoreStatus) (Outcome, error) {
	switch dir {
	case DirectionDn:
		switch open.Sign() {
		case 1:
			out := Outcome{Status: revertOpenStatus(last)}
			if last == model.StatusOverFilled {
				out.Action = ActionUnpause
			}
			return out, nil
		case 0:
			out := Outcome{Status: model.StatusFilled}
			if last == model.StatusDOD {
				out.Status = model.StatusDOD
			}
			if last == model.StatusOverFilled {
				out.Action = ActionUnpause
			}
			return out, nil
		default:
			return Outcome{Status: last}, nil
		}
	case DirectionUp:
		switch open.Sign() {
		case 1:
			return Outcome{Status: revertOpenStatus(last)}, nil
		case 0:
			if last == model.StatusDOD {
				return Outcome{Status: model.StatusDOD}, nil
			}
			return Outcome{Status: model.StatusFilled}, nil
		default:
			if last == model.StatusOverFilled {
				return Outcome{
					Status: model.StatusOverFilled,
					Warn:   "amend up reject on already over-filled chore",
				}, nil
			}
			return Outcome{Status: model.StatusOverFilled, Action: ActionPause}, nil
		}
	}
	return Outcome{Status: last}, ErrAmbiguousPending
}

// revertOpenStatus is the shared "chore still open" resolution: a chore that
// was cancel-unacked stays cancel-unacked, anything else returns to ACKED.
func revertOpenStatus(last model.ChoreStatus) model.ChoreStatus {
	if last == model.StatusCxlUnack {
		return model.StatusCxlUnack
	}
	return model.StatusAcked
}
