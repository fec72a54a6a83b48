package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is one holding of a user. Rows are derived from the Transaction
// ledger and are kept in step with it inside the same database transaction.
// A row is removed once its quantity reaches zero.
type Portfolio struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_portfolio_user_symbol"`
	Symbol    string    `gorm:"not null;size:16;uniqueIndex:idx_portfolio_user_symbol"`
	Quantity  int64     `gorm:"not null"`
	UpdatedAt time.Time
}

// Transaction is an append-only ledger row. Quantity is negative for sells.
type Transaction struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"not null;index"`
	Symbol    string          `gorm:"not null;size:16"`
	Quantity  int64           `gorm:"not null"`
	Price     decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Timestamp time.Time       `gorm:"not null"`
}

// Type is "buy" or "sell".
func (t Transaction) Type() string {
	if t.Quantity < 0 {
		return "sell"
	}
	return "buy"
}

// Shares is the unsigned number of shares moved.
func (t Transaction) Shares() int64 {
	if t.Quantity < 0 {
		return -t.Quantity
	}
	return t.Quantity
}

// Total is the cash value of the trade at execution price.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Shares()))
}
