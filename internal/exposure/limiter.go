// Package exposure enforces notional limits on new chores.
//
// A plan accumulating open chores on one convertible and its sibling series
// carries correlated issuer risk. This package groups open notional by the
// issuer segment of the security identifier and enforces a per-security and
// a per-issuer aggregate limit before a new chore is accepted.
package exposure

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/chorex/chore-engine/internal/security"
)

var (
	// ErrPerSecurityLimitExceeded is returned when a chore would push one
	// security's open notional beyond the per-security maximum.
	ErrPerSecurityLimitExceeded = errors.New("exposure: per-security notional limit exceeded")

	// ErrIssuerLimitExceeded is returned when a chore would push the
	// aggregate open notional across one issuer's securities beyond the
	// issuer maximum.
	ErrIssuerLimitExceeded = errors.New("exposure: issuer notional limit exceeded")
)

// Limiter enforces open-notional limits. Zero limits disable the
// corresponding check.
type Limiter struct {
	// MaxPerSecurity is the maximum open USD notional on any single
	// security.
	MaxPerSecurity decimal.Decimal

	// MaxPerIssuer is the maximum aggregate open USD notional across all
	// securities sharing an issuer.
	MaxPerIssuer decimal.Decimal
}

// NewLimiter creates a limiter with the given per-security and per-issuer
// notional limits.
func NewLimiter(maxPerSecurity, maxPerIssuer decimal.Decimal) *Limiter {
	return &Limiter{
		MaxPerSecurity: maxPerSecurity,
		MaxPerIssuer:   maxPerIssuer,
	}
}

// Check validates whether adding notionalDelta on securityID respects the
// limits, given the current open notional per security.
func (l *Limiter) Check(
	securityID string,
	notionalDelta decimal.Decimal,
	openNotional map[string]decimal.Decimal,
) error {
	newOnSecurity := openNotional[securityID].Add(notionalDelta)

	if l.MaxPerSecurity.IsPositive() && newOnSecurity.Abs().GreaterThan(l.MaxPerSecurity) {
		return ErrPerSecurityLimitExceeded
	}

	if !l.MaxPerIssuer.IsPositive() {
		return nil
	}

	issuer := security.Issuer(securityID)
	if issuer == "" {
		return nil
	}

	totalOnIssuer := newOnSecurity.Abs()
	for id, notional := range openNotional {
		if id == securityID {
			continue // already counted via newOnSecurity above
		}
		if security.Issuer(id) == issuer {
			totalOnIssuer = totalOnIssuer.Add(notional.Abs())
		}
	}

	if totalOnIssuer.GreaterThan(l.MaxPerIssuer) {
		return ErrIssuerLimitExceeded
	}
	return nil
}
