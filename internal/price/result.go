// Package price resolves unit prices asynchronously and hands out results
// that are safe against stale responses.
package price

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol is returned by a Feed that has no price for a symbol. It is
// terminal and never retried.
var ErrUnknownSymbol = errors.New("unknown symbol")

// ErrFeedUnavailable is a transient feed failure
var ErrFeedUnavailable = errors.New("price feed unavailable")

// State describes where a price query stands.
type State int

const (
	// Idle means no symbol is selected
	Idle State = iota
	Pending
	Resolved
	Unknown
	// Cancelled is only seen by the issuer of a superseded query. Slots never
	// publish it.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Unknown:
		return "unknown"
	case Cancelled:
		return "cancelled"
	default:
		return "invalid"
	}
}

// MarshalText renders the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of a price query. Price is only meaningful when State
// is Resolved.
type Result struct {
	State State           `json:"state"`
	Price decimal.Decimal `json:"price"`
}

// Loading reports whether the query is still in flight
func (r Result) Loading() bool {
	return r.State == Pending
}

// Value returns the price if it is resolved
func (r Result) Value() (decimal.Decimal, bool) {
	if r.State != Resolved {
		return decimal.Zero, false
	}
	return r.Price, true
}

// Query identifies one issued request. Generation orders queries within a
// slot; a result is applied only if its generation is still current.
type Query struct {
	ID         uuid.UUID
	Symbol     string
	Generation uint64
}
