package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/svcctl/internal/api"
	"github.com/edvin/svcctl/internal/config"
	"github.com/edvin/svcctl/internal/db"
	"github.com/edvin/svcctl/internal/logging"
	"github.com/edvin/svcctl/internal/metrics"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/reconciler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := openLedger(ctx, cfg, logger)
	if pool != nil {
		defer pool.Close()
	}

	tlsConfig, err := cfg.TemporalTLS.ClientConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure temporal TLS")
	}
	dialOpts := temporalclient.Options{HostPort: cfg.TemporalAddress}
	if tlsConfig != nil {
		dialOpts.ConnectionOptions = temporalclient.ConnectionOptions{TLS: tlsConfig}
		logger.Info().Msg("temporal mTLS enabled")
	}
	tc, err := temporalclient.Dial(dialOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	runner, err := newRunner(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure reconciler")
	}

	srv := api.NewServer(logger, runner, pool, tc, cfg.TaskQueue)

	// Reconciliations run for minutes, so there is no write timeout.
	httpServer := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting svcctl API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

// openLedger connects to the run ledger, or returns nil when DATABASE_URL is
// unset.
func openLedger(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		logger.Info().Msg("DATABASE_URL not set, run ledger disabled")
		return nil
	}
	if err := db.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	metrics.RegisterPgxPoolMetrics(pool)
	return pool
}

func newRunner(cfg *config.Config, logger zerolog.Logger) (*reconciler.Runner, error) {
	tlsConfig, err := cfg.ControlPlaneTLS.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("control-plane TLS: %w", err)
	}
	return &reconciler.Runner{
		Endpoint:     cfg.Endpoint(),
		TLS:          tlsConfig,
		PollInterval: cfg.PollInterval,
		Options: reconciler.Options{
			SettleDelay:  cfg.SettleDelay,
			StartTimeout: cfg.StartTimeout,
			StopTimeout:  cfg.StopTimeout,
			Logger:       logger,
			Observer:     metrics.Commands{},
		},
		OnReport: func(rep *model.Report) {
			if rep != nil {
				metrics.ObserveReport(rep)
			}
		},
	}, nil
}
