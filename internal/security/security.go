// Package security handles security identifier parsing and validation.
// Identifiers carry the instrument type and issuer, which drive broker
// forcing and exposure grouping.
package security

import (
	"errors"
	"fmt"
	"regexp"
)

// Supported instrument types.
const (
	TypeCB  = "CB"  // convertible bond
	TypeEQT = "EQT" // cash equity
	TypeFUT = "FUT" // future
	TypeOPT = "OPT" // option
)

var validTypes = map[string]bool{
	TypeCB:  true,
	TypeEQT: true,
	TypeFUT: true,
	TypeOPT: true,
}

// idRegex matches: {TYPE}-{ISSUER}-{SERIES}
// Example: CB-ACME-2030A
var idRegex = regexp.MustCompile(
	`^([A-Z]+)-([A-Z0-9]+)-([A-Z0-9]+)$`,
)

var (
	ErrInvalidID   = errors.New("security: invalid identifier format")
	ErrInvalidType = errors.New("security: unsupported instrument type")
)

// Security is a parsed security identifier.
type Security struct {
	ID             string `json:"id"`
	InstrumentType string `json:"instrument_type"`
	Issuer         string `json:"issuer"`
	Series         string `json:"series"`
}

// Parse parses and validates a security identifier.
// Format: {TYPE}-{ISSUER}-{SERIES}
func Parse(id string) (*Security, error) {
	matches := idRegex.FindStringSubmatch(id)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected {TYPE}-{ISSUER}-{SERIES})",
			ErrInvalidID, id)
	}

	instrumentType := matches[1]
	if !validTypes[instrumentType] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, instrumentType)
	}

	return &Security{
		ID:             id,
		InstrumentType: instrumentType,
		Issuer:         matches[2],
		Series:         matches[3],
	}, nil
}

// Issuer returns the issuer segment of an identifier, or "" when the
// identifier does not parse. Used for exposure grouping where a hard parse
// failure should degrade to no grouping rather than an error.
func Issuer(id string) string {
	sec, err := Parse(id)
	if err != nil {
		return ""
	}
	return sec.Issuer
}
