package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database connection.
var DB *gorm.DB

// Rdb is the global Redis client. It stays nil when REDIS_ADDR is not set.
var Rdb *redis.Client

// Ctx is the context for Redis operations.
var Ctx = context.Background()

var ErrMissingAPIKey = errors.New("API_KEY not set")

// Config contains all the configuration options. Values come from the
// process environment, optionally seeded from a .env file.
type Config struct {
	// Stage is the current execution environment. One of "dev", "test" or "prod".
	Stage string `env:"STAGE" envDefault:"dev"`
	Port  string `env:"PORT" envDefault:"8080"`

	// Quote provider related options

	// APIKey is the market-data provider credential. serve refuses to start without it.
	APIKey        string        `env:"API_KEY"`
	QuoteBaseURL  string        `env:"QUOTE_BASE_URL" envDefault:"https://www.alphavantage.co"`
	QuoteTimeout  time.Duration `env:"QUOTE_TIMEOUT" envDefault:"10s"`
	QuoteCacheTTL time.Duration `env:"QUOTE_CACHE_TTL" envDefault:"1m"`

	// Database related options

	// DBDriver is either "sqlite" (a local database file) or "postgres".
	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBPath     string `env:"DB_PATH" envDefault:"finance.db"`
	DBHost     string `env:"DB_HOST"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`

	// Redis is optional. When RedisAddr is empty quotes are cached in process
	// and sessions can only use the file store.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Session related options

	JWTSecret        string        `env:"JWT_SECRET"`
	SessionStore     string        `env:"SESSION_STORE" envDefault:"file"`
	SessionDir       string        `env:"SESSION_DIR"`
	SessionLifetime  time.Duration `env:"SESSION_LIFETIME" envDefault:"24h"`
	SessionCacheSize int           `env:"SESSION_CACHE_SIZE" envDefault:"1000"`
	SessionSweep     string        `env:"SESSION_SWEEP" envDefault:"@every 15m"`

	// Account related options

	StartingCash decimal.Decimal `env:"STARTING_CASH" envDefault:"10000.00"`
	BcryptCost   int             `env:"BCRYPT_COST" envDefault:"10"`

	// Logging related options

	// LogFileName is the log file, or "stdout".
	LogFileName string `env:"LOG_FILE" envDefault:"stdout"`
	// LogMaxSize is the maximum size(MB) of a log file before it gets rotated
	LogMaxSize int    `env:"LOG_MAX_SIZE" envDefault:"50"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks the options the web server cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.SessionStore {
	case "file":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("SESSION_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}
	return nil
}

func (c *Config) IsProd() bool {
	return strings.Contains(strings.ToLower(c.Stage), "prod")
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			c.DBHost,
			c.DBUser,
			c.DBPassword,
			c.DBName,
			c.DBPort,
		)
	}
	return c.DBPath + "?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
}

// OpenDB opens a gorm connection for the configured driver.
func OpenDB(c *Config) (*gorm.DB, error) {
	level := logger.Warn
	if c.Stage == "dev" {
		level = logger.Info
	}

	var dialector gorm.Dialector
	switch c.DBDriver {
	case "postgres":
		dialector = postgres.Open(c.DSN())
	case "sqlite":
		dialector = sqlite.Open(c.DSN())
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}

	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
}

// InitDB initializes the global database connection.
func InitDB(c *Config) error {
	db, err := OpenDB(c)
	if err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}
	DB = db
	return nil
}

// InitRedis initializes the Redis connection. It is a no-op without REDIS_ADDR.
func InitRedis(c *Config) error {
	if c.RedisAddr == "" {
		return nil
	}

	Rdb = redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})

	if err := Rdb.Ping(Ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}
