package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/edvin/svcctl/internal/api/request"
	"github.com/edvin/svcctl/internal/api/response"
	"github.com/edvin/svcctl/internal/history"
	"github.com/edvin/svcctl/internal/model"
)

// Runner runs one reconciliation.
type Runner interface {
	Run(ctx context.Context, req model.DesiredState) (*model.Report, error)
}

// Ledger is the run history. *history.Store satisfies it.
type Ledger interface {
	Record(ctx context.Context, source string, rep *model.Report) error
	Get(ctx context.Context, id string) (*history.Run, error)
	List(ctx context.Context, f history.Filter) ([]history.Run, error)
}

type Reconcile struct {
	runner Runner
	ledger Ledger
}

// NewReconcile creates the synchronous reconcile handler. ledger may be nil.
func NewReconcile(runner Runner, ledger Ledger) *Reconcile {
	return &Reconcile{runner: runner, ledger: ledger}
}

// Run reconciles a service and responds with the report once the service
// has reached its target or the run has failed.
func (h *Reconcile) Run(w http.ResponseWriter, r *http.Request) {
	var body request.Reconcile
	if err := request.Decode(r, &body); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.CallbackURL != "" {
		response.WriteError(w, http.StatusBadRequest, "callback_url is only supported by the async endpoint")
		return
	}
	req := body.DesiredState(chi.URLParam(r, "cluster"), chi.URLParam(r, "service"))

	// A started run goes to completion even if the client disconnects, so
	// the service is never abandoned between two control-plane calls.
	ctx := context.WithoutCancel(r.Context())
	rep, err := h.runner.Run(ctx, req)
	if rep == nil {
		response.WriteServiceError(w, err)
		return
	}

	if h.ledger != nil {
		if lerr := h.ledger.Record(ctx, history.SourceAPI, rep); lerr != nil {
			zerolog.Ctx(r.Context()).Warn().Err(lerr).Str("run_id", rep.RunID).Msg("failed to record run")
		}
	}
	response.WriteReport(w, rep)
}
