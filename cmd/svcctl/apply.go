package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/edvin/svcctl/internal/apiclient"
	"github.com/edvin/svcctl/internal/config"
	"github.com/edvin/svcctl/internal/logging"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/reconciler"
	"github.com/edvin/svcctl/internal/report"
	"github.com/edvin/svcctl/internal/svcerr"
)

type applyOptions struct {
	file        string
	server      string
	async       bool
	callbackURL string
	timeout     time.Duration
}

// applyFunc reconciles one request.
type applyFunc func(ctx context.Context, req model.DesiredState) (*model.Report, error)

func newApplyCmd(root *rootOptions) *cobra.Command {
	o := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the services described in a request file",
		Long: `Reconcile every request in a YAML file, in order, stopping at the first
failure. A file may hold several requests separated by "---".

By default svcctl talks to the cluster manager directly, using CM_API_URL,
CM_USERNAME and CM_PASSWORD unless a request sets its own endpoint. With
--server the requests are sent to a running svcctl-api instead.

Examples:
  # Create and start HDFS
  svcctl apply -f hdfs.yaml

  # Run through the API server as a workflow and wait for it
  svcctl apply -f hive.yaml --server http://svcctl:8090 --async`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, root, o)
		},
	}

	cmd.Flags().StringVarP(&o.file, "file", "f", "", "YAML request file, or - for stdin (required)")
	cmd.Flags().StringVar(&o.server, "server", "", "svcctl-api base URL; when empty the control plane is contacted directly")
	cmd.Flags().BoolVar(&o.async, "async", false, "Run as a workflow on the server (requires --server)")
	cmd.Flags().StringVar(&o.callbackURL, "callback-url", "", "URL notified when an async run finishes")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "Give up after this long (0 waits for the remote timeouts)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runApply(cmd *cobra.Command, root *rootOptions, o *applyOptions) error {
	if o.async && o.server == "" {
		return fmt.Errorf("--async requires --server")
	}
	if o.callbackURL != "" && !o.async {
		return fmt.Errorf("--callback-url requires --async")
	}
	format, err := root.format()
	if err != nil {
		return err
	}
	reqs, err := loadRequests(o.file, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	logger := logging.NewConsoleLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	var apply applyFunc
	if o.server != "" {
		apply = remoteApply(apiclient.NewClient(o.server), o, logger)
	} else {
		apply, err = localApply(cfg, logger)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	for _, req := range reqs {
		rep, err := apply(ctx, req)
		if rep != nil {
			if werr := report.Write(out, rep, format); werr != nil {
				return werr
			}
		}
		if err != nil {
			if rep != nil && rep.Error != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", report.FailureMessage(rep.Error))
				return &failedError{err: err}
			}
			return err
		}
	}
	return nil
}

func loadConfig(root *rootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if root.logLevel != "" {
		cfg.LogLevel = root.logLevel
	}
	if err := cfg.Validate("cli"); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func localApply(cfg *config.Config, logger zerolog.Logger) (applyFunc, error) {
	tlsConfig, err := cfg.ControlPlaneTLS.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("control-plane TLS: %w", err)
	}
	runner := &reconciler.Runner{
		Endpoint:     cfg.Endpoint(),
		TLS:          tlsConfig,
		PollInterval: cfg.PollInterval,
		Options: reconciler.Options{
			SettleDelay:  cfg.SettleDelay,
			StartTimeout: cfg.StartTimeout,
			StopTimeout:  cfg.StopTimeout,
			Logger:       logger,
		},
	}
	return func(ctx context.Context, req model.DesiredState) (*model.Report, error) {
		if req.Endpoint.URL == "" && cfg.ControlPlaneURL == "" {
			return nil, svcerr.Configuration("no control-plane URL: set CM_API_URL or endpoint.url in the request")
		}
		return runner.Run(ctx, req)
	}, nil
}

func remoteApply(client *apiclient.Client, o *applyOptions, logger zerolog.Logger) applyFunc {
	if !o.async {
		return client.Reconcile
	}
	return func(ctx context.Context, req model.DesiredState) (*model.Report, error) {
		id, err := client.StartReconcile(ctx, req, o.callbackURL)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("workflow_id", id).Msg("reconciliation queued, waiting")
		return client.AwaitWorkflow(ctx, id)
	}
}
