// Package trading holds the account and order logic of the simulator. All
// writes to cash, the transaction ledger and holdings go through Service.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"stocks-trader/database"
	"stocks-trader/models"
	"stocks-trader/password"
	"stocks-trader/quote"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrNotEnoughCash      = errors.New("can't afford")
	ErrNotEnoughShares    = errors.New("too many shares")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid username and/or password")
	ErrInvalidShares      = errors.New("shares must be a positive integer")
	ErrUserNotFound       = errors.New("user not found")
)

// DefaultStartingCash is credited to new accounts when Options leaves it unset.
var DefaultStartingCash = decimal.NewFromInt(10000)

const rebuildBatchSize = 100

type Options struct {
	StartingCash decimal.Decimal
	BcryptCost   int
}

type Service struct {
	db     *gorm.DB
	quotes quote.Provider
	logger *logrus.Entry

	startingCash decimal.Decimal
	bcryptCost   int

	// per user mutexes serializing buy and sell
	locks sync.Map
}

func NewService(db *gorm.DB, quotes quote.Provider, opts Options, logger *logrus.Entry) *Service {
	if opts.StartingCash.IsZero() {
		opts.StartingCash = DefaultStartingCash
	}
	return &Service{
		db:           db,
		quotes:       quotes,
		logger:       logger.WithField("module", "trading"),
		startingCash: opts.StartingCash,
		bcryptCost:   opts.BcryptCost,
	}
}

func (s *Service) lock(userID uint) func() {
	v, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// Register creates a user with the starting cash balance. Usernames are
// compared exactly, case included.
func (s *Service) Register(ctx context.Context, username, plain string) (*models.User, error) {
	l := s.logger.WithFields(logrus.Fields{
		"method":         "Register",
		"param_username": username,
	})
	l.Debugf("Attempting")

	if username == "" || plain == "" {
		return nil, ErrInvalidCredentials
	}

	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		l.Errorf("Failed to check username: %v", err)
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}

	hash, err := password.Hash(plain, s.bcryptCost)
	if err != nil {
		l.Errorf("Failed to hash password: %v", err)
		return nil, err
	}

	user := &models.User{Username: username, Hash: hash, Cash: s.startingCash}
	if err := db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		l.Errorf("Failed to create user: %v", err)
		return nil, err
	}

	l.Infof("Registered user %d", user.ID)
	return user, nil
}

// Authenticate returns the user whose password matches, or ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, plain string) (*models.User, error) {
	l := s.logger.WithFields(logrus.Fields{
		"method":         "Authenticate",
		"param_username": username,
	})

	if username == "" || plain == "" {
		return nil, ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.Debugf("Unknown username")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		l.Errorf("Failed to load user: %v", err)
		return nil, err
	}

	if !password.Verify(user.Hash, plain) {
		l.Debugf("Wrong password")
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// User loads a user by id.
func (s *Service) User(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RebuildHoldings replaces the user's holdings with the per-symbol sums of
// the ledger. Other users' rows are untouched.
func (s *Service) RebuildHoldings(ctx context.Context, userID uint) error {
	l := s.logger.WithFields(logrus.Fields{
		"method":       "RebuildHoldings",
		"param_userId": userID,
	})

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.Portfolio{}).Error; err != nil {
			l.Errorf("Failed to clear holdings: %v", err)
			return err
		}

		var rows []models.Portfolio
		err := tx.Model(&models.Transaction{}).
			Select("user_id, symbol, SUM(quantity) AS quantity").
			Where("user_id = ?", userID).
			Group("user_id, symbol").
			Having("SUM(quantity) <> 0").
			Order("symbol").
			Scan(&rows).Error
		if err != nil {
			l.Errorf("Failed to aggregate ledger: %v", err)
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		if err := database.CreateInBatches(tx, rows, rebuildBatchSize); err != nil {
			l.Errorf("Failed to insert holdings: %v", err)
			return err
		}
		l.Debugf("Rebuilt %d holdings", len(rows))
		return nil
	})
}

// ReconcileAll rebuilds holdings for every user and returns how many users
// were processed.
func (s *Service) ReconcileAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := s.RebuildHoldings(ctx, id); err != nil {
			return i, fmt.Errorf("user %d: %w", id, err)
		}
	}
	s.logger.WithField("method", "ReconcileAll").Infof("Reconciled holdings of %d users", len(ids))
	return len(ids), nil
}

// Holdings returns the user's current positions ordered by symbol.
func (s *Service) Holdings(ctx context.Context, userID uint) ([]models.Portfolio, error) {
	var holdings []models.Portfolio
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("symbol").
		Find(&holdings).Error
	return holdings, err
}

// History returns the user's ledger in the order it was written.
func (s *Service) History(ctx context.Context, userID uint) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&txs).Error
	return txs, err
}
