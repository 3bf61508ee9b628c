package store

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

// fakeRow feeds canned column values through the rowScanner interface so
// scanSnapshot can be exercised without a database.
type fakeRow struct {
	vals []any
}

func (r *fakeRow) Scan(dest ...any) error {
	if len(dest) != len(r.vals) {
		panic("fakeRow: column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *int64:
			*p = r.vals[i].(int64)
		case *string:
			*p = r.vals[i].(string)
		case *time.Time:
			*p = r.vals[i].(time.Time)
		default:
			panic("fakeRow: unsupported dest type")
		}
	}
	return nil
}

// snapshotRow builds the 30 scan values in column order, with the brief
// price taken from px so tests can inject a corrupt NUMERIC.
func snapshotRow(px string) []any {
	now := time.Now().UTC()
	vals := []any{
		int64(7), "c1", "CB-ACME-2030A", "BUY",
		px, "100", "10000",
		"chorex-1:p", "ACC1", "CB", "", "ACKED",
	}
	for i := 0; i < 16; i++ {
		vals = append(vals, "0")
	}
	return append(vals, now, now)
}

func TestScanSnapshot_Valid(t *testing.T) {
	snap, err := scanSnapshot(&fakeRow{vals: snapshotRow("99.5")})
	if err != nil {
		t.Fatalf("scanSnapshot failed: %v", err)
	}
	if snap.ChoreID != "c1" || snap.Brief.ChoreID != "c1" {
		t.Errorf("chore id not propagated: %q / %q", snap.ChoreID, snap.Brief.ChoreID)
	}
	if !snap.Brief.Px.Equal(decimal.RequireFromString("99.5")) {
		t.Errorf("expected px 99.5, got %s", snap.Brief.Px)
	}
	if !snap.Brief.Qty.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected qty 100, got %s", snap.Brief.Qty)
	}
}

func TestScanSnapshot_CorruptNumeric(t *testing.T) {
	_, err := scanSnapshot(&fakeRow{vals: snapshotRow("not-a-number")})
	if err == nil {
		t.Fatal("expected error for unparseable numeric column")
	}
	if !strings.Contains(err.Error(), "parse numeric column") {
		t.Errorf("unexpected error: %v", err)
	}
}
