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

	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/svcctl/internal/activity"
	"github.com/edvin/svcctl/internal/config"
	"github.com/edvin/svcctl/internal/db"
	"github.com/edvin/svcctl/internal/history"
	"github.com/edvin/svcctl/internal/logging"
	"github.com/edvin/svcctl/internal/metrics"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/reconciler"
	"github.com/edvin/svcctl/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var ledger *history.Store
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		metrics.RegisterPgxPoolMetrics(pool)
		ledger = history.NewStore(pool)
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

	w := worker.New(tc, cfg.TaskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{&workflow.ErrorTypingInterceptor{}},
	})

	w.RegisterActivity(activity.NewReconcile(runner, ledger))
	w.RegisterActivity(activity.NewNotify(cfg.NotifyWebhookURL, cfg.NotifyTemplate))
	w.RegisterWorkflow(workflow.ReconcileServiceWorkflow)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr)
		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		logger.Info().Str("taskQueue", cfg.TaskQueue).Msg("starting temporal worker")
		stopCh := make(chan interface{})
		go func() {
			<-gctx.Done()
			close(stopCh)
		}()
		if err := w.Run(stopCh); err != nil {
			return fmt.Errorf("worker: %w", err)
		}
		logger.Info().Msg("shutting down worker")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker failed")
	}
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
