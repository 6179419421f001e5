package activity

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/svcctl/internal/history"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// Runner runs one reconciliation. *reconciler.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, req model.DesiredState) (*model.Report, error)
}

// Reconcile contains the reconciliation activities.
type Reconcile struct {
	runner Runner
	ledger *history.Store
}

// NewReconcile creates the activity struct. ledger may be nil, in which case
// RecordRun does nothing.
func NewReconcile(runner Runner, ledger *history.Store) *Reconcile {
	return &Reconcile{runner: runner, ledger: ledger}
}

// ReconcileService drives one service to its desired state. Every
// reconciliation failure is non-retryable: the error type is the failure
// kind and the report travels as the error details.
func (a *Reconcile) ReconcileService(ctx context.Context, req model.DesiredState) (*model.Report, error) {
	rep, err := a.runner.Run(ctx, req)
	if err != nil {
		kind := string(svcerr.KindOf(err))
		if kind == "" {
			kind = "ReconcileError"
		}
		if rep == nil {
			rep = &model.Report{Cluster: req.Cluster, Service: req.Service, Name: req.Name, Target: req.Target}
		}
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), kind, err, *rep)
	}
	return rep, nil
}

// RecordRunParams holds the parameters for RecordRun.
type RecordRunParams struct {
	Source string       `json:"source"`
	Report model.Report `json:"report"`
}

// RecordRun appends a finished run to the ledger.
func (a *Reconcile) RecordRun(ctx context.Context, params RecordRunParams) error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Record(ctx, params.Source, &params.Report)
}
