// The renewal binary extends active auto-renewing subscriptions that expire
// within the next day. It runs once and exits by default; with -interval it
// keeps running on a fixed schedule, for deployments without an external
// scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/volkanakin/storefront-checkout/internal/renewal"
	"github.com/volkanakin/storefront-checkout/internal/repository"
	"github.com/volkanakin/storefront-checkout/internal/vcs"
)

func main() {
	var (
		dsn      string
		interval time.Duration
	)

	flag.StringVar(&dsn, "db-dsn", "", "PostgreSQL DSN")
	flag.DurationVar(&interval, "interval", 0, "Run continuously with this interval between sweeps (0 = run once)")
	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", vcs.Version())
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	err := run(dsn, interval, logger)
	if err != nil {
		logger.Error("renewal job failed", "error", err)
		os.Exit(1)
	}
}

func run(dsn string, interval time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
	defer pingCancel()

	err = db.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	service := renewal.NewService(repository.NewPostgresSubscriptionRepository(db), logger)

	sweep := func() error {
		renewed, err := service.CheckAndRenewSubscriptions(ctx)
		if err != nil {
			return err
		}
		logger.Info("renewal sweep finished", "renewed", renewed)
		return nil
	}

	if interval <= 0 {
		return sweep()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	err = sweep()
	if err != nil {
		logger.Error("renewal sweep failed", "error", err)
	}

	for {
		select {
		case s := <-quit:
			logger.Info("shutting down renewal job", "signal", s.String())
			return nil
		case <-ticker.C:
			err := sweep()
			if err != nil {
				logger.Error("renewal sweep failed", "error", err)
			}
		}
	}
}
