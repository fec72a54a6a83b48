package trading

import (
	"context"
	"errors"
	"time"

	"stocks-trader/database"
	"stocks-trader/models"
	"stocks-trader/quote"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const maxConcurrentQuotes = 4

// Position is one row of the portfolio page.
type Position struct {
	Symbol string
	Name   string
	Shares int64
	Price  decimal.Decimal
	Total  decimal.Decimal
}

// PortfolioView is a user's cash, positions at current prices and the sum of both.
type PortfolioView struct {
	Cash     decimal.Decimal
	Holdings []Position
	Total    decimal.Decimal
}

// Buy debits shares × current price from the user's cash, appends a ledger
// row and grows the holding, all in one database transaction.
func (s *Service) Buy(ctx context.Context, userID uint, symbol string, shares int64) (*models.Transaction, error) {
	l := s.logger.WithFields(logrus.Fields{
		"method":       "Buy",
		"param_userId": userID,
		"param_symbol": symbol,
		"param_shares": shares,
	})
	l.Debugf("Attempting")

	if shares <= 0 {
		return nil, ErrInvalidShares
	}

	symbol = quote.Normalize(symbol)
	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		l.Debugf("Quote lookup failed: %v", err)
		return nil, err
	}
	cost := q.Price.Mul(decimal.NewFromInt(shares))

	unlock := s.lock(userID)
	defer unlock()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var user models.User
	if err := database.ForUpdate(tx).First(&user, userID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		l.Errorf("Failed to load user: %v", err)
		return nil, err
	}

	if cost.GreaterThan(user.Cash) {
		tx.Rollback()
		l.Debugf("Cost %s exceeds cash %s", cost, user.Cash)
		return nil, ErrNotEnoughCash
	}

	if err := tx.Model(&user).Update("cash", user.Cash.Sub(cost)).Error; err != nil {
		tx.Rollback()
		l.Errorf("Failed to debit cash: %v", err)
		return nil, err
	}

	record := &models.Transaction{
		UserID:    userID,
		Symbol:    symbol,
		Quantity:  shares,
		Price:     q.Price,
		Timestamp: time.Now().UTC(),
	}
	if err := tx.Create(record).Error; err != nil {
		tx.Rollback()
		l.Errorf("Failed to record transaction: %v", err)
		return nil, err
	}

	if err := addToHolding(tx, userID, symbol, shares); err != nil {
		tx.Rollback()
		l.Errorf("Failed to update holding: %v", err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		l.Errorf("Failed to commit: %v", err)
		return nil, err
	}

	l.Infof("Bought %d %s at %s", shares, symbol, q.Price)
	return record, nil
}

// Sell credits shares × current price to the user's cash, appends a negative
// ledger row and shrinks the holding, deleting it once it reaches zero.
func (s *Service) Sell(ctx context.Context, userID uint, symbol string, shares int64) (*models.Transaction, error) {
	l := s.logger.WithFields(logrus.Fields{
		"method":       "Sell",
		"param_userId": userID,
		"param_symbol": symbol,
		"param_shares": shares,
	})
	l.Debugf("Attempting")

	if shares <= 0 {
		return nil, ErrInvalidShares
	}

	symbol = quote.Normalize(symbol)
	held, err := s.held(s.db.WithContext(ctx), userID, symbol)
	if err != nil {
		return nil, err
	}
	if shares > held {
		return nil, ErrNotEnoughShares
	}

	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		l.Debugf("Quote lookup failed: %v", err)
		return nil, err
	}
	proceeds := q.Price.Mul(decimal.NewFromInt(shares))

	unlock := s.lock(userID)
	defer unlock()

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	var user models.User
	if err := database.ForUpdate(tx).First(&user, userID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		l.Errorf("Failed to load user: %v", err)
		return nil, err
	}

	// another request may have sold in the meantime
	held, err = s.held(tx, userID, symbol)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if shares > held {
		tx.Rollback()
		return nil, ErrNotEnoughShares
	}

	if err := tx.Model(&user).Update("cash", user.Cash.Add(proceeds)).Error; err != nil {
		tx.Rollback()
		l.Errorf("Failed to credit cash: %v", err)
		return nil, err
	}

	record := &models.Transaction{
		UserID:    userID,
		Symbol:    symbol,
		Quantity:  -shares,
		Price:     q.Price,
		Timestamp: time.Now().UTC(),
	}
	if err := tx.Create(record).Error; err != nil {
		tx.Rollback()
		l.Errorf("Failed to record transaction: %v", err)
		return nil, err
	}

	if err := addToHolding(tx, userID, symbol, -shares); err != nil {
		tx.Rollback()
		l.Errorf("Failed to update holding: %v", err)
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		l.Errorf("Failed to commit: %v", err)
		return nil, err
	}

	l.Infof("Sold %d %s at %s", shares, symbol, q.Price)
	return record, nil
}

func (s *Service) held(db *gorm.DB, userID uint, symbol string) (int64, error) {
	var h models.Portfolio
	err := db.Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.Quantity, nil
}

// addToHolding applies delta to the (user, symbol) holding, creating it on
// first buy and removing it when it drops to zero.
func addToHolding(tx *gorm.DB, userID uint, symbol string, delta int64) error {
	var h models.Portfolio
	err := tx.Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if delta <= 0 {
			return ErrNotEnoughShares
		}
		return tx.Create(&models.Portfolio{UserID: userID, Symbol: symbol, Quantity: delta}).Error
	}
	if err != nil {
		return err
	}

	if h.Quantity+delta == 0 {
		return tx.Delete(&h).Error
	}
	if h.Quantity+delta < 0 {
		return ErrNotEnoughShares
	}
	return tx.Model(&h).Update("quantity", gorm.Expr("quantity + ?", delta)).Error
}

// Portfolio prices every holding at the current quote. It never writes.
func (s *Service) Portfolio(ctx context.Context, userID uint) (*PortfolioView, error) {
	user, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}

	holdings, err := s.Holdings(ctx, userID)
	if err != nil {
		return nil, err
	}

	positions := make([]Position, len(holdings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQuotes)
	for i, h := range holdings {
		i, h := i, h
		g.Go(func() error {
			q, err := s.quotes.Lookup(gctx, h.Symbol)
			if err != nil {
				return err
			}
			positions[i] = Position{
				Symbol: h.Symbol,
				Name:   q.Name,
				Shares: h.Quantity,
				Price:  q.Price,
				Total:  q.Price.Mul(decimal.NewFromInt(h.Quantity)),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.WithFields(logrus.Fields{
			"method":       "Portfolio",
			"param_userId": userID,
		}).Warnf("Pricing holdings failed: %v", err)
		return nil, err
	}

	view := &PortfolioView{Cash: user.Cash, Holdings: positions, Total: user.Cash}
	for _, p := range positions {
		view.Total = view.Total.Add(p.Total)
	}
	return view, nil
}
