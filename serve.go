package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocks-trader/config"
	"stocks-trader/handlers"
	"stocks-trader/quote"
	"stocks-trader/session"
	"stocks-trader/templates"
	"stocks-trader/trading"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

const (
	quoteCacheItems = 10000
	shutdownTimeout = 10 * time.Second
)

type serveCmd struct{}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run the web server" }
func (*serveCmd) Usage() string {
	return `serve

  Serves the trading site on PORT. API_KEY must be set.
`
}
func (*serveCmd) SetFlags(*flag.FlagSet) {}

func (*serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup(true, true)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeDB(logger)

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Errorf("Server stopped: %v", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func serve(ctx context.Context, cfg *config.Config, logger *logrus.Entry) error {
	if err := config.InitRedis(cfg); err != nil {
		return err
	}

	quotes, closeQuotes, err := newQuoteProvider(cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuotes()

	store, err := newSessionStore(cfg)
	if err != nil {
		return err
	}
	sweeper, err := session.StartSweeper(store, cfg.SessionSweep, logger)
	if err != nil {
		return err
	}
	if sweeper != nil {
		defer sweeper.Stop()
	}

	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		logger.Warn("JWT_SECRET not set, sessions will not survive a restart")
		secret = randomSecret()
	}

	tmpl, err := templates.Load()
	if err != nil {
		return err
	}

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	h := &handlers.Handler{
		Trading: trading.NewService(config.DB, quotes, trading.Options{
			StartingCash: cfg.StartingCash,
			BcryptCost:   cfg.BcryptCost,
		}, logger),
		Quotes: quotes,
		Sessions: session.NewManager(store, session.Options{
			Secret:   secret,
			Lifetime: cfg.SessionLifetime,
			Secure:   cfg.IsProd(),
		}, logger),
		Logger: logger,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(h, tmpl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Infof("Listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newQuoteProvider builds the Alpha Vantage client behind a cache: Redis when
// configured, in process otherwise. A zero TTL disables caching.
func newQuoteProvider(cfg *config.Config, logger *logrus.Entry) (quote.Provider, func(), error) {
	av := quote.NewAlphaVantage(cfg.QuoteBaseURL, cfg.APIKey, cfg.QuoteTimeout, logger)
	if cfg.QuoteCacheTTL <= 0 {
		return av, func() {}, nil
	}

	if config.Rdb != nil {
		return quote.NewCached(av, quote.NewRedisCache(config.Rdb, cfg.QuoteCacheTTL), logger), func() {}, nil
	}

	mem, err := quote.NewMemoryCache(quoteCacheItems, cfg.QuoteCacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return quote.NewCached(av, mem, logger), mem.Close, nil
}

func newSessionStore(cfg *config.Config) (session.Store, error) {
	var base session.Store
	switch cfg.SessionStore {
	case "redis":
		base = session.NewRedisStore(config.Rdb)
	default:
		fs, err := session.NewFileStore(cfg.SessionDir)
		if err != nil {
			return nil, err
		}
		base = fs
	}

	if cfg.SessionCacheSize <= 0 {
		return base, nil
	}
	return session.NewCachedStore(base, cfg.SessionCacheSize)
}

func randomSecret() []byte {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return []byte(hex.EncodeToString(b))
}
