package main

import (
	"fmt"
	"os"

	"stocks-trader/config"
	"stocks-trader/database"

	"github.com/sirupsen/logrus"
)

// setup loads the configuration, starts the logger and opens the database,
// migrating it when asked to. With validate set it refuses configurations
// the web server cannot run with before touching anything.
func setup(validate, migrate bool) (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}

	if err := config.InitLogger(cfg); err != nil {
		return nil, nil, fmt.Errorf("starting logger: %w", err)
	}
	logger := config.Logger.WithField("stage", cfg.Stage)

	if err := config.InitDB(cfg); err != nil {
		return nil, nil, err
	}
	if migrate {
		if err := database.Migrate(config.DB); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate models: %w", err)
		}
	}
	return cfg, logger, nil
}

func closeDB(logger *logrus.Entry) {
	if config.DB == nil {
		return
	}
	sqlDB, err := config.DB.DB()
	if err != nil {
		logger.Warnf("Failed to get database instance: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warnf("Closing database: %v", err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
}
