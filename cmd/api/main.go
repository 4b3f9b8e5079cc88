package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/referearn/internal/api"
	"github.com/fastprodman/referearn/internal/events"
	"github.com/fastprodman/referearn/internal/infra/logging"
	"github.com/fastprodman/referearn/internal/infra/pgutils"
	"github.com/fastprodman/referearn/internal/repos/accounts"
	boltaccounts "github.com/fastprodman/referearn/internal/repos/accounts/bolt"
	pgaccounts "github.com/fastprodman/referearn/internal/repos/accounts/postgres"
	"github.com/fastprodman/referearn/internal/services/rewards"
	"github.com/fastprodman/referearn/pkg/envconf"
	"github.com/fastprodman/referearn/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON("api", cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	shutdownqueue.Add("account store", func(context.Context) error {
		return store.Close()
	})

	publisher, err := openPublisher(cfg)
	if err != nil {
		return fmt.Errorf("open publisher: %w", err)
	}

	shutdownqueue.Add("event publisher", func(context.Context) error {
		return publisher.Close()
	})

	rewardsSrv := rewards.New(store, publisher, rewards.Config{
		OwnerID:                 cfg.OwnerID,
		ReferralReward:          cfg.Rewards.ReferralReward,
		ReferralBonus:           cfg.Rewards.ReferralBonus,
		ConversionRate:          cfg.Rewards.ConversionRate,
		DailyBonus:              cfg.Rewards.DailyBonus,
		MinWithdrawalMultiplier: cfg.Rewards.MinWithdrawalMultiplier,
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, rewardsSrv, cfg.RequiredChannels)

	// Register HTTP server graceful shutdown
	shutdownqueue.Add("http server", func(c context.Context) error {
		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "store_backend", cfg.StoreBackend)

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStore(ctx context.Context, cfg *apiConfig) (accounts.Store, error) {
	switch cfg.StoreBackend {
	case "bolt":
		return boltaccounts.Open(cfg.StorePath)
	case "postgres":
		db, err := pgutils.OpenDB(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}

		return pgaccounts.New(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func openPublisher(cfg *apiConfig) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		slog.Warn("AMQP_URL not set, withdrawal events will only be logged")

		return events.LogPublisher{}, nil
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("connect amqp: %w", err)
	}

	return pub, nil
}
