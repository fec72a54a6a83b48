// Package quote looks up current stock prices and company names from an
// external market-data provider.
package quote

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the provider has no quote for a symbol.
	ErrNotFound = errors.New("quote: symbol not found")
	// ErrRateLimited is returned when the provider refuses the call because of its request quota.
	ErrRateLimited = errors.New("quote: provider rate limit reached")
	// ErrUnavailable wraps transport and protocol failures talking to the provider.
	ErrUnavailable = errors.New("quote: provider unavailable")
)

// Quote is the current price of a listed symbol.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Provider resolves a ticker symbol to a Quote.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (*Quote, error)
}

// Normalize trims and upper-cases a user supplied ticker.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
