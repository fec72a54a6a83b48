package main

import (
	"context"
	"flag"
	"fmt"

	"stocks-trader/config"
	"stocks-trader/trading"

	"github.com/google/subcommands"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or update the database tables" }
func (*migrateCmd) Usage() string {
	return `migrate

  Creates the users, portfolios and transactions tables, or brings them up
  to date, in the database configured by DB_DRIVER.
`
}
func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	_, logger, err := setup(false, true)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeDB(logger)

	logger.Info("Database migrated")
	return subcommands.ExitSuccess
}

type reconcileCmd struct {
	userID uint
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "rebuild holdings from the transaction ledger" }
func (*reconcileCmd) Usage() string {
	return `reconcile [-user <id>]

  Recomputes every holding as the sum of its ledger rows, for one user or
  for all of them.
`
}

func (r *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.UintVar(&r.userID, "user", 0, "Only rebuild this user's holdings.")
}

func (r *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger, err := setup(false, true)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer closeDB(logger)

	// rebuilding never needs a quote
	svc := trading.NewService(config.DB, nil, trading.Options{
		StartingCash: cfg.StartingCash,
		BcryptCost:   cfg.BcryptCost,
	}, logger)

	if r.userID != 0 {
		if err := svc.RebuildHoldings(ctx, r.userID); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("rebuilt holdings of user %d\n", r.userID)
		return subcommands.ExitSuccess
	}

	n, err := svc.ReconcileAll(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("rebuilt holdings of %d users\n", n)
	return subcommands.ExitSuccess
}
