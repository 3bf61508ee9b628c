// Package engine implements the chore lifecycle state machine and its
// coupled fill reconciliation. Every persistence event for chores, chore
// ledgers, and deals flows through the entry points here; each one performs
// a locked read-modify-write against the snapshot store so event n+1 always
// observes the fully-committed result of event n for the same chore.
//
// Business-rule rejections (wrong prior status, malformed trails, ambiguous
// amends) are alerted and swallowed: the entry points return (nil, nil) and
// the caller persists nothing. Only infrastructure failures (store errors,
// missing FX rates, missing mandatory quotes) propagate as errors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/alert"
	"github.com/chorex/chore-engine/internal/amend"
	"github.com/chorex/chore-engine/internal/exposure"
	"github.com/chorex/chore-engine/internal/fxrate"
	"github.com/chorex/chore-engine/internal/model"
	"github.com/chorex/chore-engine/internal/position"
	"github.com/chorex/chore-engine/internal/quote"
	"github.com/chorex/chore-engine/internal/security"
	"github.com/chorex/chore-engine/internal/store"
)

// ErrNoQuote is returned when a NEW chore carries no price and no top-of-book
// is available to resolve one. There is no safe default price.
var ErrNoQuote = errors.New("engine: no top-of-book available to resolve px")

// trailDepth bounds the per-chore ledger trail kept for cancel-reject
// resolution. Three events are inspected; a little slack absorbs idempotent
// re-sends.
const trailDepth = 8

// Policy is the engine's behavioral configuration.
type Policy struct {
	// InstanceID prefixes the user_data of chores owned by this executor.
	InstanceID string

	// PauseFulfillPostChoreDOD rejects (and pauses on) fills that would
	// exactly fulfill a chore already marked DOD, instead of reversing
	// the cancelled bucket.
	PauseFulfillPostChoreDOD bool

	// ResidualMarkSeconds is the age beyond which open chores are swept
	// with a cancel request. Zero disables the sweep.
	ResidualMarkSeconds int
}

// Engine is the chore lifecycle state machine plus fill reconciler. One
// mutex serializes all snapshot mutation; per-chore contention is naturally
// low and the sweeper iterates under the same "never observe a half-updated
// snapshot" rule.
type Engine struct {
	mu sync.Mutex

	store     store.Store
	quotes    quote.Source
	fx        *fxrate.Converter
	alerts    alert.Sink
	positions position.Cache
	limiter   *exposure.Limiter
	gateway   OrderGateway
	callbacks ExecutorCallbacks
	policy    Policy

	// trails keeps the recent ledger events per chore for cancel-reject
	// resolution. rollbacks stashes pre-amend terms of risky amends until
	// their ack/reject arrives.
	trails    map[string][]model.ChoreLedger
	rollbacks map[string]amendRollback

	now func() time.Time
}

// Deps are the collaborators an Engine consumes. Limiter is optional; nil
// disables the exposure check on NEW chores.
type Deps struct {
	Store     store.Store
	Quotes    quote.Source
	FX        *fxrate.Converter
	Alerts    alert.Sink
	Positions position.Cache
	Limiter   *exposure.Limiter
	Gateway   OrderGateway
	Callbacks ExecutorCallbacks
}

// New creates an engine over the given collaborators.
func New(deps Deps, policy Policy) *Engine {
	return &Engine{
		store:     deps.Store,
		quotes:    deps.Quotes,
		fx:        deps.FX,
		alerts:    deps.Alerts,
		positions: deps.Positions,
		limiter:   deps.Limiter,
		gateway:   deps.Gateway,
		callbacks: deps.Callbacks,
		policy:    policy,
		trails:    make(map[string][]model.ChoreLedger),
		rollbacks: make(map[string]amendRollback),
		now:       time.Now,
	}
}

// HandleChoreEvent consumes one ledger event. It returns the committed
// snapshot, or (nil, nil) when the event was deliberately ignored (idempotent
// no-op or a validation failure already alerted).
func (e *Engine) HandleChoreEvent(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var snap *model.ChoreSnapshot
	var err error

	switch ledger.Event {
	case model.EventNew:
		snap, err = e.onNew(ctx, ledger)
	case model.EventAck:
		snap, err = e.onAck(ctx, ledger)
	case model.EventCxl:
		snap, err = e.onCxl(ctx, ledger)
	case model.EventCxlAck, model.EventUnsolCxl:
		snap, err = e.onCxlAck(ctx, ledger)
	case model.EventCxlIntRej, model.EventCxlBrkRej, model.EventCxlExhRej:
		snap, err = e.onCxlRej(ctx, ledger)
	case model.EventIntRej, model.EventBrkRej, model.EventExhRej:
		snap, err = e.onNewRej(ctx, ledger)
	case model.EventLapse:
		snap, err = e.onLapse(ctx, ledger)
	case model.EventAmdDnUnack:
		snap, err = e.onAmendUnack(ctx, ledger, amend.DirectionDn)
	case model.EventAmdUpUnack:
		snap, err = e.onAmendUnack(ctx, ledger, amend.DirectionUp)
	case model.EventAmdAck:
		snap, err = e.onAmendAck(ctx, ledger)
	case model.EventAmdRej:
		snap, err = e.onAmendRej(ctx, ledger)
	default:
		e.alerts.Error("unknown chore event", "chore_id", ledger.ChoreID, "event", string(ledger.Event))
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	e.appendTrail(ledger)
	if snap != nil {
		e.callbacks.OnChoreUpdate(snap)
	}
	return snap, nil
}

// --- NEW ---

func (e *Engine) onNew(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	if _, err := e.store.GetByChoreID(ctx, ledger.ChoreID); err == nil {
		e.alerts.Error("duplicate NEW for existing chore", "chore_id", ledger.ChoreID)
		return nil, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	brief := ledger.Chore
	brief.ChoreID = ledger.ChoreID

	if brief.Px.IsZero() {
		px, ok := e.resolvePx(brief.SecurityID)
		if !ok {
			e.alerts.Critical("no top-of-book to resolve px for NEW chore",
				"chore_id", ledger.ChoreID, "security", brief.SecurityID)
			return nil, fmt.Errorf("%w: %s", ErrNoQuote, brief.SecurityID)
		}
		brief.Px = px
	}

	usdPx, err := e.fx.Usd(brief.Px, brief.SecurityID)
	if err != nil {
		return nil, err
	}
	brief.Notional = brief.Qty.Mul(usdPx)

	if brief.InstrumentType == "" {
		if sec, perr := security.Parse(brief.SecurityID); perr != nil {
			e.alerts.Warn("security id did not parse, instrument type unknown",
				"chore_id", ledger.ChoreID, "security", brief.SecurityID)
		} else {
			brief.InstrumentType = sec.InstrumentType
		}
	}

	if e.limiter != nil {
		openNotional, lerr := e.openNotionalBySecurity(ctx)
		if lerr != nil {
			return nil, lerr
		}
		if cerr := e.limiter.Check(brief.SecurityID, brief.Notional, openNotional); cerr != nil {
			e.alerts.Critical("NEW chore rejected by exposure limiter",
				"chore_id", ledger.ChoreID, "security", brief.SecurityID,
				"notional", brief.Notional.String(), "err", cerr.Error())
			return nil, nil
		}
	}

	if e.externalChore(brief) {
		e.gateExternalChore(brief)
	}

	snap := &model.ChoreSnapshot{
		ChoreID:   ledger.ChoreID,
		Brief:     brief,
		Status:    model.StatusUnack,
		CreatedAt: ledger.EventTime,
		UpdatedAt: ledger.EventTime,
	}
	return e.store.Create(ctx, snap)
}

// openNotionalBySecurity sums the remaining open USD notional of every
// non-terminal snapshot, keyed by security id.
func (e *Engine) openNotionalBySecurity(ctx context.Context) (map[string]decimal.Decimal, error) {
	snaps, err := e.store.ListOpen(ctx)
	if err != nil {
		return nil, err
	}

	open := make(map[string]decimal.Decimal, len(snaps))
	for _, snap := range snaps {
		usdPx, ferr := e.fx.Usd(snap.Brief.Px, snap.Brief.SecurityID)
		if ferr != nil {
			return nil, ferr
		}
		sec := snap.Brief.SecurityID
		open[sec] = open[sec].Add(snap.OpenQty().Mul(usdPx))
	}
	return open, nil
}

// resolvePx picks a price from the top of book: last trade, else the mid.
func (e *Engine) resolvePx(symbol string) (decimal.Decimal, bool) {
	tob, ok := e.quotes.TopOfBook(symbol)
	if !ok {
		return decimal.Decimal{}, false
	}
	if tob.LastTradePx.IsPositive() {
		return tob.LastTradePx, true
	}
	if tob.BidPx.IsPositive() && tob.AskPx.IsPositive() {
		two := decimal.NewFromInt(2)
		return tob.BidPx.Add(tob.AskPx).Div(two), true
	}
	return decimal.Decimal{}, false
}

// --- ACK ---

func (e *Engine) onAck(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	if snap.Status != model.StatusUnack {
		e.alerts.Error("ACK on chore not in UNACK",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}

	snap.Status = model.StatusAcked
	snap.UpdatedAt = ledger.EventTime
	return e.store.Update(ctx, snap)
}

// --- CXL ---

func (e *Engine) onCxl(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	switch snap.Status {
	case model.StatusCxlUnack, model.StatusDOD:
		// Idempotent re-request.
		e.alerts.Info("CXL on chore already cancelling or DOD",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	case model.StatusUnack, model.StatusAcked, model.StatusAmdDnUnacked, model.StatusAmdUpUnacked:
		snap.Status = model.StatusCxlUnack
		snap.UpdatedAt = ledger.EventTime
		return e.store.Update(ctx, snap)
	default:
		e.alerts.Error("CXL on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}
}

// --- CXL_ACK / UNSOL_CXL ---

func (e *Engine) onCxlAck(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	switch snap.Status {
	case model.StatusDOD:
		e.alerts.Info("cancel ack on chore already DOD", "chore_id", snap.ChoreID)
		return nil, nil
	case model.StatusCxlUnack, model.StatusAcked, model.StatusUnack, model.StatusFilled,
		model.StatusAmdDnUnacked, model.StatusAmdUpUnacked:
		return e.choreDOD(ctx, snap, ledger.EventTime)
	default:
		e.alerts.Error("cancel ack on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}
}

// choreDOD moves the unfilled remainder into the cancelled bucket and marks
// the chore dead-or-done. A fully filled chore receiving a late cancel-class
// event is logged and left untouched.
func (e *Engine) choreDOD(ctx context.Context, snap *model.ChoreSnapshot, at time.Time) (*model.ChoreSnapshot, error) {
	if snap.Status == model.StatusFilled {
		e.alerts.Info("cancel-class event after full fill, ignored", "chore_id", snap.ChoreID)
		return nil, nil
	}

	unfilled := snap.OpenQty()
	if unfilled.Sign() < 0 {
		e.alerts.Error("negative open qty on DOD transition",
			"chore_id", snap.ChoreID, "status", string(snap.Status),
			"open_qty", unfilled.String())
		return nil, nil
	}
	if unfilled.IsZero() {
		// Everything was already lapsed or amended away; the cancel ack
		// just closes the chore.
		snap.Status = model.StatusDOD
		snap.UpdatedAt = at
		return e.store.Update(ctx, snap)
	}

	usdPx, err := e.fx.Usd(snap.Brief.Px, snap.Brief.SecurityID)
	if err != nil {
		return nil, err
	}

	snap.CxledQty = snap.CxledQty.Add(unfilled)
	snap.CxledNotional = snap.CxledNotional.Add(unfilled.Mul(usdPx))
	snap.RefreshAvgCxledPx()
	snap.Status = model.StatusDOD
	snap.UpdatedAt = at
	return e.store.Update(ctx, snap)
}

// --- CXL_INT_REJ / CXL_BRK_REJ / CXL_EXH_REJ ---

func (e *Engine) onCxlRej(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	switch snap.Status {
	case model.StatusFilled:
		// Nothing to revert: the cancel raced a full fill and lost.
		e.alerts.Warn("cancel reject after full fill, ignored", "chore_id", snap.ChoreID)
		return nil, nil
	case model.StatusCxlUnack:
		prior, ok := e.statusFromTrail(snap.ChoreID)
		if !ok {
			e.alerts.Critical("cancel reject with malformed ledger trail",
				"chore_id", snap.ChoreID, "event", string(ledger.Event))
			return nil, nil
		}
		snap.Status = prior
		snap.UpdatedAt = ledger.EventTime
		return e.store.Update(ctx, snap)
	default:
		e.alerts.Error("cancel reject on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}
}

// statusFromTrail inspects the last three ledger events for the chore to
// decide what status a rejected cancel reverts to. Cancel requests are
// skipped; the first substantive event decides.
func (e *Engine) statusFromTrail(choreID string) (model.ChoreStatus, bool) {
	trail := e.trails[choreID]
	lo := len(trail) - 3
	if lo < 0 {
		lo = 0
	}
	for i := len(trail) - 1; i >= lo; i-- {
		switch trail[i].Event {
		case model.EventCxl:
			continue
		case model.EventAck, model.EventAmdAck, model.EventAmdRej:
			return model.StatusAcked, true
		case model.EventNew:
			return model.StatusUnack, true
		default:
			return "", false
		}
	}
	return "", false
}

// --- INT_REJ / BRK_REJ / EXH_REJ ---

func (e *Engine) onNewRej(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	switch snap.Status {
	case model.StatusUnack, model.StatusAcked:
		return e.choreDOD(ctx, snap, ledger.EventTime)
	default:
		e.alerts.Error("chore reject in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}
}

// --- LAPSE ---

func (e *Engine) onLapse(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.loadSnap(ctx, ledger)
	if snap == nil {
		return nil, err
	}

	switch snap.Status {
	case model.StatusUnack, model.StatusAcked, model.StatusAmdDnUnacked,
		model.StatusAmdUpUnacked, model.StatusCxlUnack:
	default:
		e.alerts.Error("LAPSE on chore in unexpected status",
			"chore_id", snap.ChoreID, "status", string(snap.Status))
		return nil, nil
	}

	open := snap.OpenQty()
	lapseQty := ledger.LapseQty

	// Oversized lapse is forced through the DOD path, never applied
	// partially.
	if lapseQty.GreaterThan(snap.Brief.Qty) {
		e.alerts.Critical("lapse qty exceeds chore qty, forcing DOD",
			"chore_id", snap.ChoreID, "lapse_qty", lapseQty.String(),
			"chore_qty", snap.Brief.Qty.String())
		return e.choreDOD(ctx, snap, ledger.EventTime)
	}
	if lapseQty.GreaterThan(open) {
		e.alerts.Critical("lapse qty exceeds open qty, forcing DOD",
			"chore_id", snap.ChoreID, "lapse_qty", lapseQty.String(),
			"open_qty", open.String())
		return e.choreDOD(ctx, snap, ledger.EventTime)
	}

	if lapseQty.IsZero() {
		lapseQty = open
	}
	if lapseQty.Sign() <= 0 {
		e.alerts.Error("nothing left to lapse", "chore_id", snap.ChoreID,
			"open_qty", open.String())
		return nil, nil
	}

	usdPx, err := e.fx.Usd(snap.Brief.Px, snap.Brief.SecurityID)
	if err != nil {
		return nil, err
	}

	snap.CxledQty = snap.CxledQty.Add(lapseQty)
	snap.CxledNotional = snap.CxledNotional.Add(lapseQty.Mul(usdPx))
	snap.RefreshAvgCxledPx()
	snap.LastLapsedQty = lapseQty
	snap.TotalLapsedQty = snap.TotalLapsedQty.Add(lapseQty)
	if snap.OpenQty().IsZero() && ledger.LapseQty.IsZero() {
		// Full lapse: the chore is dead.
		snap.Status = model.StatusDOD
	}
	snap.UpdatedAt = ledger.EventTime
	return e.store.Update(ctx, snap)
}

// --- shared helpers ---

// loadSnap fetches the current snapshot for the ledger's chore. A missing
// snapshot is a validation failure (alerted, nil/nil); store failures
// propagate.
func (e *Engine) loadSnap(ctx context.Context, ledger model.ChoreLedger) (*model.ChoreSnapshot, error) {
	snap, err := e.store.GetByChoreID(ctx, ledger.ChoreID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			e.alerts.Error("chore event for unknown chore",
				"chore_id", ledger.ChoreID, "event", string(ledger.Event))
			return nil, nil
		}
		return nil, err
	}
	return snap, nil
}

func (e *Engine) appendTrail(ledger model.ChoreLedger) {
	trail := append(e.trails[ledger.ChoreID], ledger)
	if len(trail) > trailDepth {
		trail = trail[len(trail)-trailDepth:]
	}
	e.trails[ledger.ChoreID] = trail
}

func (e *Engine) externalChore(brief model.ChoreBrief) bool {
	return !strings.HasPrefix(brief.UserData, e.policy.InstanceID)
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }
