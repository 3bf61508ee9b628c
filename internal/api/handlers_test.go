package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/alert"
	"github.com/chorex/chore-engine/internal/api"
	"github.com/chorex/chore-engine/internal/engine"
	"github.com/chorex/chore-engine/internal/fxrate"
	"github.com/chorex/chore-engine/internal/model"
	"github.com/chorex/chore-engine/internal/position"
	"github.com/chorex/chore-engine/internal/quote"
	"github.com/chorex/chore-engine/internal/store"
)

const testSym = "CB-ACME-2030A"

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service over an in-memory engine and chi router.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms := store.NewMemoryStore()
	eng := engine.New(engine.Deps{
		Store:     ms,
		Quotes:    quote.NewMemorySource(),
		FX:        fxrate.NewConverter(map[string]decimal.Decimal{testSym: d(1)}),
		Alerts:    alert.NewCaptureSink(),
		Positions: position.NewMemoryCache(),
		Gateway:   &engine.LogGateway{Logger: quiet},
		Callbacks: engine.NewLogCallbacks(quiet),
	}, engine.Policy{InstanceID: "chorex-1"})
	svc := api.NewService(eng, ms, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/chore-events", svc.HandleChoreEvent)
	r.Post("/api/v1/deals", svc.HandleDeal)
	r.Get("/api/v1/chores", svc.ListOpenChores)
	r.Get("/api/v1/chores/{choreID}", svc.GetChore)
	r.Post("/api/v1/sweep", svc.SweepExpired)

	return ms, r
}

func post(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func newLedger(choreID string, event model.ChoreEvent) model.ChoreLedger {
	return model.ChoreLedger{
		ChoreID:   choreID,
		Event:     event,
		EventTime: time.Now().UTC(),
		Chore: model.ChoreBrief{
			SecurityID: testSym,
			Side:       model.SideBuy,
			Px:         d(100),
			Qty:        d(100),
			UserData:   "chorex-1:plan-a",
		},
	}
}

// --- Chore event endpoint ---

func TestHandleChoreEvent_New(t *testing.T) {
	_, router := newTestEnv(t)

	w := post(t, router, "/api/v1/chore-events", newLedger("c1", model.EventNew))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap model.ChoreSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if snap.Status != model.StatusUnack {
		t.Errorf("expected UNACK, got %s", snap.Status)
	}
	if snap.SnapshotID == 0 {
		t.Error("expected snapshot id in response")
	}
}

func TestHandleChoreEvent_MissingChoreID(t *testing.T) {
	_, router := newTestEnv(t)

	ledger := newLedger("", model.EventNew)
	w := post(t, router, "/api/v1/chore-events", ledger)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChoreEvent_MissingEvent(t *testing.T) {
	_, router := newTestEnv(t)

	w := post(t, router, "/api/v1/chore-events", model.ChoreLedger{ChoreID: "c1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleChoreEvent_IgnoredEventIs204(t *testing.T) {
	_, router := newTestEnv(t)

	// ACK for a chore that was never created: engine alerts and drops.
	w := post(t, router, "/api/v1/chore-events", newLedger("ghost", model.EventAck))
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204 for ignored event, got %d", w.Code)
	}
}

func TestHandleChoreEvent_ConfigFaultIs500(t *testing.T) {
	_, router := newTestEnv(t)

	ledger := newLedger("c1", model.EventNew)
	ledger.Chore.Px = decimal.Zero // no quote source entry either
	w := post(t, router, "/api/v1/chore-events", ledger)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 without quote, got %d", w.Code)
	}
}

// --- Deal endpoint ---

func TestHandleDeal_AppliesFill(t *testing.T) {
	_, router := newTestEnv(t)
	post(t, router, "/api/v1/chore-events", newLedger("c1", model.EventNew))
	post(t, router, "/api/v1/chore-events", newLedger("c1", model.EventAck))

	w := post(t, router, "/api/v1/deals", model.Deal{
		ChoreID:  "c1",
		FillQty:  d(40),
		FillPx:   d(101),
		FillTime: time.Now().UTC(),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap model.ChoreSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !snap.FilledQty.Equal(d(40)) {
		t.Errorf("expected filled_qty 40, got %s", snap.FilledQty)
	}
}

func TestHandleDeal_RejectsNonPositiveQty(t *testing.T) {
	_, router := newTestEnv(t)

	w := post(t, router, "/api/v1/deals", model.Deal{ChoreID: "c1", FillQty: d(-5)})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleDeal_UnknownChoreIs204(t *testing.T) {
	_, router := newTestEnv(t)

	w := post(t, router, "/api/v1/deals", model.Deal{ChoreID: "ghost", FillQty: d(5)})
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
}

// --- Snapshot queries ---

func TestGetChore(t *testing.T) {
	_, router := newTestEnv(t)
	post(t, router, "/api/v1/chore-events", newLedger("c1", model.EventNew))

	req := httptest.NewRequest("GET", "/api/v1/chores/c1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snap model.ChoreSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if snap.ChoreID != "c1" {
		t.Errorf("wrong snapshot: %s", snap.ChoreID)
	}
}

func TestGetChore_NotFound(t *testing.T) {
	_, router := newTestEnv(t)

	req := httptest.NewRequest("GET", "/api/v1/chores/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListOpenChores(t *testing.T) {
	_, router := newTestEnv(t)
	post(t, router, "/api/v1/chore-events", newLedger("c1", model.EventNew))
	post(t, router, "/api/v1/chore-events", newLedger("c2", model.EventNew))

	req := httptest.NewRequest("GET", "/api/v1/chores", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var snaps []model.ChoreSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snaps); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(snaps) != 2 {
		t.Errorf("expected 2 open chores, got %d", len(snaps))
	}
}

func TestSweepEndpoint_Accepted(t *testing.T) {
	_, router := newTestEnv(t)

	w := post(t, router, "/api/v1/sweep", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
}
