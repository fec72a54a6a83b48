package trading

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"stocks-trader/database"
	"stocks-trader/mocks"
	"stocks-trader/models"
	"stocks-trader/password"
	"stocks-trader/quote"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	svc    *Service
	db     *gorm.DB
	quotes *mocks.MockProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "finance.db") + "?_busy_timeout=5000&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mockCtrl := gomock.NewController(t)
	quotes := mocks.NewMockProvider(mockCtrl)

	svc := NewService(db, quotes, Options{
		StartingCash: dec("10000.00"),
		BcryptCost:   bcrypt.MinCost,
	}, logrus.NewEntry(logrus.New()))

	return &fixture{svc: svc, db: db, quotes: quotes}
}

func (f *fixture) price(symbol, price string) {
	f.quotes.EXPECT().
		Lookup(gomock.Any(), symbol).
		Return(&quote.Quote{Symbol: symbol, Name: symbol + " Corp", Price: dec(price)}, nil)
}

func (f *fixture) register(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), name, "hunter2")
	require.NoError(t, err)
	return u
}

func (f *fixture) cash(t *testing.T, userID uint) decimal.Decimal {
	t.Helper()
	u, err := f.svc.User(context.Background(), userID)
	require.NoError(t, err)
	return u.Cash
}

func (f *fixture) holding(t *testing.T, userID uint, symbol string) (int64, bool) {
	t.Helper()
	var h models.Portfolio
	err := f.db.Where("user_id = ? AND symbol = ?", userID, symbol).First(&h).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false
	}
	require.NoError(t, err)
	return h.Quantity, true
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u := f.register(t, "alice")
	assert.NotZero(t, u.ID)
	assert.True(t, u.Cash.Equal(dec("10000")))
	assert.NotEqual(t, "hunter2", u.Hash)

	_, err := f.svc.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("username = ?", "alice").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = f.svc.Register(ctx, "Alice", "hunter2")
	assert.NoError(t, err, "usernames are case sensitive")
}

func TestRegisterConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), "bob", "pw")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrUsernameTaken)
	}
	assert.Equal(t, 1, ok)
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	got, err := f.svc.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = f.svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "mallory", "hunter2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Authenticate(ctx, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestBuyThenSellUpdatesCashAndHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("AAPL", "150.00")
	tx, err := f.svc.Buy(ctx, u.ID, "AAPL", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(10), tx.Quantity)
	assert.True(t, tx.Price.Equal(dec("150.00")))

	assert.True(t, f.cash(t, u.ID).Equal(dec("8500.00")))
	qty, ok := f.holding(t, u.ID, "AAPL")
	assert.True(t, ok)
	assert.Equal(t, int64(10), qty)

	f.price("AAPL", "160.00")
	tx, err = f.svc.Sell(ctx, u.ID, "aapl", 4)
	require.NoError(t, err)
	assert.Equal(t, int64(-4), tx.Quantity)
	assert.Equal(t, "AAPL", tx.Symbol)

	assert.True(t, f.cash(t, u.ID).Equal(dec("9140.00")))
	qty, _ = f.holding(t, u.ID, "AAPL")
	assert.Equal(t, int64(6), qty)

	history, err := f.svc.History(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "buy", history[0].Type())
	assert.Equal(t, "sell", history[1].Type())
	assert.True(t, history[1].Price.Equal(dec("160")))
}

func TestBuyIncrementsExistingHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("MSFT", "10")
	_, err := f.svc.Buy(ctx, u.ID, "MSFT", 3)
	require.NoError(t, err)
	f.price("MSFT", "12.5")
	_, err = f.svc.Buy(ctx, u.ID, "MSFT", 2)
	require.NoError(t, err)

	qty, _ := f.holding(t, u.ID, "MSFT")
	assert.Equal(t, int64(5), qty)
	assert.True(t, f.cash(t, u.ID).Equal(dec("9945")))
}

func TestBuyCannotAfford(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("BRK.A", "600000")
	_, err := f.svc.Buy(ctx, u.ID, "BRK.A", 1)
	assert.ErrorIs(t, err, ErrNotEnoughCash)

	assert.True(t, f.cash(t, u.ID).Equal(dec("10000")))
	_, ok := f.holding(t, u.ID, "BRK.A")
	assert.False(t, ok)

	history, err := f.svc.History(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestBuyExactCashIsAllowed(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice")

	f.price("X", "1000")
	_, err := f.svc.Buy(context.Background(), u.ID, "X", 10)
	require.NoError(t, err)
	assert.True(t, f.cash(t, u.ID).IsZero())
}

func TestBuyRejectsBadInputBeforeQuoting(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice")

	for _, n := range []int64{0, -3} {
		_, err := f.svc.Buy(context.Background(), u.ID, "AAPL", n)
		assert.ErrorIs(t, err, ErrInvalidShares)
	}
}

func TestBuyUnknownSymbol(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice")

	f.quotes.EXPECT().Lookup(gomock.Any(), "ZZZZ").Return(nil, quote.ErrNotFound)
	_, err := f.svc.Buy(context.Background(), u.ID, "ZZZZ", 1)
	assert.ErrorIs(t, err, quote.ErrNotFound)
	assert.True(t, f.cash(t, u.ID).Equal(dec("10000")))
}

func TestSellMoreThanHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("AAPL", "100")
	_, err := f.svc.Buy(ctx, u.ID, "AAPL", 2)
	require.NoError(t, err)

	// no quote expected: the holding check comes first
	_, err = f.svc.Sell(ctx, u.ID, "AAPL", 3)
	assert.ErrorIs(t, err, ErrNotEnoughShares)

	_, err = f.svc.Sell(ctx, u.ID, "NFLX", 1)
	assert.ErrorIs(t, err, ErrNotEnoughShares)

	assert.True(t, f.cash(t, u.ID).Equal(dec("9800")))
	qty, _ := f.holding(t, u.ID, "AAPL")
	assert.Equal(t, int64(2), qty)
}

func TestSellAllRemovesHolding(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("AAPL", "100")
	_, err := f.svc.Buy(ctx, u.ID, "AAPL", 2)
	require.NoError(t, err)

	f.price("AAPL", "90")
	_, err = f.svc.Sell(ctx, u.ID, "AAPL", 2)
	require.NoError(t, err)

	_, ok := f.holding(t, u.ID, "AAPL")
	assert.False(t, ok)
	assert.True(t, f.cash(t, u.ID).Equal(dec("9980")))
}

func TestConcurrentBuysNeverOverdraw(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice")

	f.quotes.EXPECT().
		Lookup(gomock.Any(), "AAPL").
		Return(&quote.Quote{Symbol: "AAPL", Name: "Apple", Price: dec("1500")}, nil).
		AnyTimes()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		poor int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Buy(context.Background(), u.ID, "AAPL", 1)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrNotEnoughCash):
				poor++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, ok)
	assert.Equal(t, 4, poor)
	assert.True(t, f.cash(t, u.ID).Equal(dec("1000")))
	qty, _ := f.holding(t, u.ID, "AAPL")
	assert.Equal(t, int64(6), qty)
}

func TestRebuildHoldingsIsScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	f.price("AAPL", "10")
	_, err := f.svc.Buy(ctx, alice.ID, "AAPL", 5)
	require.NoError(t, err)
	f.price("MSFT", "10")
	_, err = f.svc.Buy(ctx, bob.ID, "MSFT", 7)
	require.NoError(t, err)

	// drift alice's cache away from her ledger
	require.NoError(t, f.db.Model(&models.Portfolio{}).
		Where("user_id = ?", alice.ID).Update("quantity", 99).Error)
	require.NoError(t, f.db.Create(&models.Portfolio{UserID: alice.ID, Symbol: "GHOST", Quantity: 1}).Error)

	require.NoError(t, f.svc.RebuildHoldings(ctx, alice.ID))

	holdings, err := f.svc.Holdings(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, int64(5), holdings[0].Quantity)

	qty, ok := f.holding(t, bob.ID, "MSFT")
	assert.True(t, ok)
	assert.Equal(t, int64(7), qty)
}

func TestRebuildHoldingsDropsClosedPositions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("AAPL", "10")
	_, err := f.svc.Buy(ctx, u.ID, "AAPL", 5)
	require.NoError(t, err)
	f.price("AAPL", "10")
	_, err = f.svc.Sell(ctx, u.ID, "AAPL", 5)
	require.NoError(t, err)

	require.NoError(t, f.svc.RebuildHoldings(ctx, u.ID))
	holdings, err := f.svc.Holdings(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, holdings)
}

func TestReconcileAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")

	require.NoError(t, f.db.Create(&[]models.Transaction{
		{UserID: a.ID, Symbol: "AAPL", Quantity: 3, Price: dec("1")},
		{UserID: b.ID, Symbol: "AAPL", Quantity: 4, Price: dec("1")},
		{UserID: b.ID, Symbol: "AAPL", Quantity: -1, Price: dec("1")},
	}).Error)

	n, err := f.svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	qa, _ := f.holding(t, a.ID, "AAPL")
	qb, _ := f.holding(t, b.ID, "AAPL")
	assert.Equal(t, int64(3), qa)
	assert.Equal(t, int64(3), qb)
}

func TestPortfolioIsAPureRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("AAPL", "150")
	_, err := f.svc.Buy(ctx, u.ID, "AAPL", 10)
	require.NoError(t, err)
	f.price("MSFT", "100")
	_, err = f.svc.Buy(ctx, u.ID, "MSFT", 2)
	require.NoError(t, err)

	f.price("AAPL", "160")
	f.price("MSFT", "90")
	view, err := f.svc.Portfolio(ctx, u.ID)
	require.NoError(t, err)

	assert.True(t, view.Cash.Equal(dec("8300")))
	require.Len(t, view.Holdings, 2)
	assert.Equal(t, "AAPL", view.Holdings[0].Symbol)
	assert.Equal(t, "AAPL Corp", view.Holdings[0].Name)
	assert.True(t, view.Holdings[0].Total.Equal(dec("1600")))
	assert.True(t, view.Holdings[1].Total.Equal(dec("180")))
	assert.True(t, view.Total.Equal(dec("10080")))

	assert.True(t, f.cash(t, u.ID).Equal(dec("8300")), "viewing must not write")
}

func TestPortfolioEmpty(t *testing.T) {
	f := newFixture(t)
	u := f.register(t, "alice")

	view, err := f.svc.Portfolio(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Holdings)
	assert.True(t, view.Total.Equal(dec("10000")))
}

func TestPortfolioQuoteFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	f.price("AAPL", "1")
	_, err := f.svc.Buy(ctx, u.ID, "AAPL", 1)
	require.NoError(t, err)

	f.quotes.EXPECT().Lookup(gomock.Any(), "AAPL").Return(nil, quote.ErrRateLimited)
	_, err = f.svc.Portfolio(ctx, u.ID)
	assert.ErrorIs(t, err, quote.ErrRateLimited)
}

func TestUserNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.User(context.Background(), 404)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegisterRejectsLongPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), "long", strings.Repeat("p", 80))
	assert.ErrorIs(t, err, password.ErrTooLong)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestConcurrentBuysAcrossUsers(t *testing.T) {
	f := newFixture(t)

	f.quotes.EXPECT().
		Lookup(gomock.Any(), "AAPL").
		Return(&quote.Quote{Symbol: "AAPL", Name: "Apple", Price: dec("10")}, nil).
		AnyTimes()

	users := make([]*models.User, 8)
	for i := range users {
		users[i] = f.register(t, fmt.Sprintf("user%d", i))
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, u := range users {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(id uint) {
				defer wg.Done()
				if _, err := f.svc.Buy(context.Background(), id, "AAPL", 1); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
			}(u.ID)
		}
	}
	wg.Wait()

	assert.Empty(t, errs)
	for _, u := range users {
		assert.True(t, f.cash(t, u.ID).Equal(dec("9950")), u.Username)
		qty, _ := f.holding(t, u.ID, "AAPL")
		assert.Equal(t, int64(5), qty, u.Username)
	}
}

func TestBuyAndSellUseTheRequestedSymbol(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.register(t, "alice")

	// the provider reports its own spelling of the ticker
	f.quotes.EXPECT().
		Lookup(gomock.Any(), "BRK.B").
		Return(&quote.Quote{Symbol: "BRK-B", Name: "Berkshire", Price: dec("400")}, nil).
		Times(2)

	tx, err := f.svc.Buy(ctx, u.ID, "brk.b", 2)
	require.NoError(t, err)
	assert.Equal(t, "BRK.B", tx.Symbol)

	_, err = f.svc.Sell(ctx, u.ID, "BRK.B", 2)
	require.NoError(t, err)

	_, ok := f.holding(t, u.ID, "BRK.B")
	assert.False(t, ok)
	assert.True(t, f.cash(t, u.ID).Equal(dec("10000")))
}
