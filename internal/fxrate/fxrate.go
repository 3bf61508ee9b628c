// Package fxrate converts prices and notionals between local currency and USD
// using a process-wide FX rate table refreshed out-of-band.
package fxrate

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// ErrNoRate is returned when a symbol has no usable FX rate. A zero or missing
// rate is a fatal configuration error for the caller; there is no safe default.
var ErrNoRate = errors.New("fxrate: no usable fx rate for symbol")

// Converter holds local-per-USD rates keyed by symbol. Reads are lock-free
// from the caller's perspective; refreshes arrive through SetRate.
type Converter struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// NewConverter creates a converter seeded with the given local-per-USD rates.
func NewConverter(rates map[string]decimal.Decimal) *Converter {
	c := &Converter{rates: make(map[string]decimal.Decimal, len(rates))}
	for sym, rate := range rates {
		c.rates[sym] = rate
	}
	return c
}

// SetRate installs or replaces the rate for one symbol.
func (c *Converter) SetRate(symbol string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[symbol] = rate
}

func (c *Converter) rate(symbol string) (decimal.Decimal, error) {
	c.mu.RLock()
	rate, ok := c.rates[symbol]
	c.mu.RUnlock()
	if !ok || rate.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrNoRate, symbol)
	}
	return rate, nil
}

// Usd converts a local-currency price to USD: px / rate.
func (c *Converter) Usd(px decimal.Decimal, symbol string) (decimal.Decimal, error) {
	rate, err := c.rate(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return px.Div(rate), nil
}

// Local converts a USD price or notional back to local currency: value * rate.
func (c *Converter) Local(value decimal.Decimal, symbol string) (decimal.Decimal, error) {
	rate, err := c.rate(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return value.Mul(rate), nil
}
