package fxrate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestUsd_DividesByRate(t *testing.T) {
	c := NewConverter(map[string]decimal.Decimal{"CB-ACME-2030A": d(150)})

	usd, err := c.Usd(d(300), "CB-ACME-2030A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usd.Equal(d(2)) {
		t.Errorf("expected 2, got %s", usd)
	}
}

func TestLocal_MultipliesByRate(t *testing.T) {
	c := NewConverter(map[string]decimal.Decimal{"CB-ACME-2030A": d(150)})

	local, err := c.Local(d(2), "CB-ACME-2030A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !local.Equal(d(300)) {
		t.Errorf("expected 300, got %s", local)
	}
}

func TestRoundTrip(t *testing.T) {
	c := NewConverter(map[string]decimal.Decimal{"EQT-ACME-CASH": d(7.25)})

	usd, err := c.Usd(d(101.5), "EQT-ACME-CASH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	local, err := c.Local(usd, "EQT-ACME-CASH")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !local.Equal(d(101.5)) {
		t.Errorf("round trip drifted: %s", local)
	}
}

func TestMissingRate(t *testing.T) {
	c := NewConverter(nil)
	if _, err := c.Usd(d(100), "CB-NOWHERE-1"); !errors.Is(err, ErrNoRate) {
		t.Errorf("expected ErrNoRate, got %v", err)
	}
}

func TestZeroRate(t *testing.T) {
	c := NewConverter(map[string]decimal.Decimal{"CB-ACME-2030A": decimal.Zero})
	if _, err := c.Usd(d(100), "CB-ACME-2030A"); !errors.Is(err, ErrNoRate) {
		t.Errorf("zero rate must be unusable, got %v", err)
	}
}

func TestSetRate_Replaces(t *testing.T) {
	c := NewConverter(map[string]decimal.Decimal{"CB-ACME-2030A": d(100)})
	c.SetRate("CB-ACME-2030A", d(200))

	usd, err := c.Usd(d(400), "CB-ACME-2030A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !usd.Equal(d(2)) {
		t.Errorf("expected refreshed rate to apply, got %s", usd)
	}
}
