// Package reconciler drives one service in a cluster from its observed state
// to a desired lifecycle state. A single engine serves every service type;
// type-specific behaviour comes from catalog descriptors.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/edvin/svcctl/internal/controlplane"
	"github.com/edvin/svcctl/internal/dependency"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

const (
	DefaultSettleDelay  = 5 * time.Second
	DefaultStartTimeout = 300 * time.Second
	DefaultStopTimeout  = 300 * time.Second
)

// Observer is told about every polled command outcome.
type Observer interface {
	CommandFinished(t model.ServiceType, command string, outcome model.CommandOutcome)
}

// Options configures a Reconciler.
type Options struct {
	// SettleDelay is slept between role creation and the first init
	// command, giving the control plane time to register new roles. It is a
	// workaround, not a readiness check. Zero disables it.
	SettleDelay time.Duration
	// StartTimeout and StopTimeout bound the start/stop polls unless the
	// request overrides them. Zero means the package default.
	StartTimeout time.Duration
	StopTimeout  time.Duration
	Logger       zerolog.Logger
	Observer     Observer
}

// DefaultOptions returns the options used by the binaries when nothing is
// configured.
func DefaultOptions() Options {
	return Options{
		SettleDelay:  DefaultSettleDelay,
		StartTimeout: DefaultStartTimeout,
		StopTimeout:  DefaultStopTimeout,
		Logger:       zerolog.Nop(),
	}
}

// Reconciler applies desired-state requests through a control-plane client.
type Reconciler struct {
	client controlplane.Client
	deps   *dependency.Resolver
	opts   Options
}

// New creates a reconciler. The client should be fresh per invocation; no
// state is kept between calls to Reconcile.
func New(client controlplane.Client, opts Options) *Reconciler {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = DefaultStartTimeout
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}
	return &Reconciler{
		client: client,
		deps:   dependency.NewResolver(client),
		opts:   opts,
	}
}

// run is the state of a single invocation.
type run struct {
	*Reconciler
	req    model.DesiredState
	plan   *plan
	report *model.Report
	logger zerolog.Logger
}

// Reconcile drives the requested service to req.Target. The returned report
// is never nil; on failure it carries the error and the actions issued
// before the abort.
func (r *Reconciler) Reconcile(ctx context.Context, req model.DesiredState) (*model.Report, error) {
	rep := &model.Report{
		RunID:     uuid.NewString(),
		Cluster:   req.Cluster,
		Service:   req.Service,
		Name:      req.Name,
		Target:    req.Target,
		State:     model.StateNotFound,
		StartedAt: time.Now().UTC(),
	}
	ru := &run{
		Reconciler: r,
		req:        req,
		report:     rep,
		logger: r.opts.Logger.With().
			Str("component", "reconciler").
			Str("run_id", rep.RunID).
			Str("cluster", req.Cluster).
			Str("service", string(req.Service)).
			Logger(),
	}

	err := ru.execute(ctx)

	rep.Changed = len(rep.Actions) > 0
	rep.FinishedAt = time.Now().UTC()
	if err != nil {
		rep.Error = svcerr.ToReport(err)
		ru.logger.Error().Err(err).Strs("actions", rep.Actions).Msg("reconciliation failed")
		return rep, err
	}
	ru.logger.Info().
		Bool("changed", rep.Changed).
		Str("state", rep.State).
		Str("target", string(rep.Target)).
		Msg("reconciliation complete")
	return rep, nil
}

func (ru *run) execute(ctx context.Context) error {
	p, err := buildPlan(&ru.req)
	if err != nil {
		return err
	}
	ru.plan = p
	ru.report.Service = ru.req.Service
	ru.report.Target = ru.req.Target
	ru.report.Name = p.name
	ru.report.Placements = p.placements()

	cluster, err := ru.client.FindCluster(ctx, ru.req.Cluster)
	if err != nil {
		return lookupFailed("cluster", "look up cluster", err)
	}
	if cluster == nil {
		return svcerr.Newf(svcerr.KindClusterNotFound, "cluster", "cluster %s not found", ru.req.Cluster)
	}

	svc, err := ru.client.FindService(ctx, ru.req.Cluster, ru.req.Service)
	if err != nil {
		return lookupFailed("service", "look up service", err)
	}
	if svc != nil {
		ru.report.Name = svc.Name
		ru.report.State = svc.State.Reported()
		ru.logger.Debug().Str("name", svc.Name).Str("state", string(svc.State)).Msg("observed service")
	}

	if ru.req.Target == model.TargetAbsent {
		return ru.ensureAbsent(ctx, svc)
	}

	if svc == nil {
		if svc, err = ru.create(ctx); err != nil {
			return err
		}
	}

	switch ru.req.Target {
	case model.TargetStarted:
		return ru.ensureRunState(ctx, svc, model.StateStarted)
	case model.TargetStopped:
		return ru.ensureRunState(ctx, svc, model.StateStopped)
	}
	_, err = ru.observe(ctx, svc)
	return err
}

// action records a mutating call about to be issued.
func (ru *run) action(format string, args ...any) {
	a := fmt.Sprintf(format, args...)
	ru.report.Actions = append(ru.report.Actions, a)
	ru.logger.Info().Str("action", a).Msg("applying")
}

// observe re-reads the service state and records it in the report.
func (ru *run) observe(ctx context.Context, svc *model.Service) (model.LifecycleState, error) {
	state, err := ru.client.ServiceState(ctx, svc)
	if err != nil {
		return "", lookupFailed("observe", "read service state", err)
	}
	ru.report.State = state.Reported()
	return state, nil
}

// poll waits for cmd and converts a non-success outcome into a typed error.
// A timeout is always KindTimedOut; failKind covers outright failure.
func (ru *run) poll(ctx context.Context, cmd *model.Command, timeout time.Duration, failKind svcerr.Kind, stage string) error {
	res, err := ru.client.PollCommand(ctx, cmd, timeout)
	if err != nil {
		return wrap(failKind, stage, "wait for "+cmd.Name, err)
	}
	if ru.opts.Observer != nil {
		ru.opts.Observer.CommandFinished(ru.req.Service, cmd.Name, res.Outcome)
	}
	ru.logger.Debug().
		Str("command", cmd.Name).
		Int64("command_id", cmd.ID).
		Str("outcome", string(res.Outcome)).
		Msg("command finished")

	switch res.Outcome {
	case model.OutcomeSucceeded:
		return nil
	case model.OutcomeTimedOut:
		return &svcerr.Error{
			Kind:    svcerr.KindTimedOut,
			Stage:   stage,
			Message: fmt.Sprintf("%s did not finish within %s", cmd.Name, timeout),
			Outcome: res.Outcome,
		}
	default:
		return &svcerr.Error{
			Kind:    failKind,
			Stage:   stage,
			Message: fmt.Sprintf("%s failed: %s", cmd.Name, res.Message()),
			Outcome: res.Outcome,
		}
	}
}

// wrap attaches kind and stage to err unless it is already a connectivity
// failure, which is surfaced unchanged.
func wrap(kind svcerr.Kind, stage, msg string, err error) error {
	if svcerr.IsConnectivity(err) {
		return err
	}
	return svcerr.New(kind, stage, msg, err)
}

// lookupFailed types a failed read. An error status from the control plane is
// reported with its code rather than as an unreachable endpoint.
func lookupFailed(stage, what string, err error) error {
	var se *controlplane.StatusError
	if !svcerr.IsConnectivity(err) && errors.As(err, &se) {
		return svcerr.New(svcerr.KindConnectivity, stage,
			fmt.Sprintf("%s: control plane returned status %d", what, se.StatusCode), err)
	}
	return wrap(svcerr.KindConnectivity, stage, what, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
