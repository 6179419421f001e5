package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/svcctl/internal/activity"
	"github.com/edvin/svcctl/internal/history"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// ReconcileParams is the input of ReconcileServiceWorkflow.
type ReconcileParams struct {
	Request model.DesiredState `json:"request"`
	// CallbackURL receives the final report when set.
	CallbackURL string `json:"callback_url,omitempty"`
}

// WorkflowID is the ID used for a service's reconciliation workflow. At most
// one reconciliation per cluster and service type runs at a time.
func WorkflowID(cluster string, t model.ServiceType) string {
	return fmt.Sprintf("reconcile-%s-%s", cluster, strings.ToLower(string(t)))
}

// ReconcileServiceWorkflow runs one reconciliation, records it in the ledger
// and notifies the callback and alert webhooks. The reconciliation itself is
// never retried: a failed run may have left a partially created service that
// needs an operator.
func ReconcileServiceWorkflow(ctx workflow.Context, params ReconcileParams) (*model.Report, error) {
	logger := workflow.GetLogger(ctx)
	startedAt := workflow.Now(ctx)

	reconcileCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var rep model.Report
	runErr := workflow.ExecuteActivity(reconcileCtx, "ReconcileService", params.Request).Get(ctx, &rep)
	if runErr != nil {
		rep = reportFromError(ctx, params.Request, startedAt, runErr)
	}

	sideCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts:    5,
			InitialInterval:    2 * time.Second,
			MaximumInterval:    30 * time.Second,
			BackoffCoefficient: 2.0,
		},
	})

	if err := workflow.ExecuteActivity(sideCtx, "RecordRun", activity.RecordRunParams{
		Source: history.SourceWorkflow,
		Report: rep,
	}).Get(ctx, nil); err != nil {
		logger.Warn("failed to record reconciliation run", "run_id", rep.RunID, "error", err)
	}

	if params.CallbackURL != "" {
		if err := workflow.ExecuteActivity(sideCtx, "SendCallback", activity.SendCallbackParams{
			URL:    params.CallbackURL,
			Report: rep,
		}).Get(ctx, nil); err != nil {
			logger.Warn("failed to send callback", "url", params.CallbackURL, "error", err)
		}
	}

	if rep.Error != nil {
		if err := workflow.ExecuteActivity(sideCtx, "SendAlert", rep).Get(ctx, nil); err != nil {
			logger.Warn("failed to send alert", "error", err)
		}
		return nil, temporal.NewNonRetryableApplicationError(rep.Error.Message, rep.Error.Kind, nil, rep)
	}
	return &rep, nil
}

// reportFromError recovers the report carried by a failed ReconcileService
// activity. Errors without one (worker timeouts, cancellation) get a
// minimal report describing the failure.
func reportFromError(ctx workflow.Context, req model.DesiredState, startedAt time.Time, err error) model.Report {
	var rep model.Report
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() || appErr.Details(&rep) != nil || rep.Error == nil {
		rep = model.Report{
			Cluster: req.Cluster,
			Service: req.Service,
			Name:    req.Name,
			Target:  req.Target,
			State:   model.StateUnknown,
			Error: &model.ErrorReport{
				Kind:    failureKind(err),
				Stage:   "workflow",
				Message: err.Error(),
			},
		}
	}

	if rep.RunID == "" {
		var id string
		if workflow.SideEffect(ctx, func(workflow.Context) interface{} {
			return uuid.NewString()
		}).Get(&id) == nil {
			rep.RunID = id
		}
	}
	if rep.StartedAt.IsZero() {
		rep.StartedAt = startedAt
	}
	if rep.FinishedAt.IsZero() {
		rep.FinishedAt = workflow.Now(ctx)
	}
	return rep
}

// failureKind names the error kind of an activity failure that carried no
// report.
func failureKind(err error) string {
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return string(svcerr.KindTimedOut)
	}
	return "ReconcileError"
}
