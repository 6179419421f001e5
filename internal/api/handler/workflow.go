package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.temporal.io/api/serviceerror"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/svcctl/internal/api/request"
	"github.com/edvin/svcctl/internal/api/response"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/workflow"
)

type Workflow struct {
	tc        temporalclient.Client
	taskQueue string
}

func NewWorkflow(tc temporalclient.Client, taskQueue string) *Workflow {
	return &Workflow{tc: tc, taskQueue: taskQueue}
}

// Start queues a reconciliation as a Temporal workflow and returns its ID.
// Only one reconciliation per cluster and service type may run at a time;
// a second request while one is running gets 409.
func (h *Workflow) Start(w http.ResponseWriter, r *http.Request) {
	var body request.Reconcile
	if err := request.Decode(r, &body); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	req := body.DesiredState(chi.URLParam(r, "cluster"), chi.URLParam(r, "service"))
	if err := req.Normalize(); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := workflow.WorkflowID(req.Cluster, req.Service)
	run, err := h.tc.ExecuteWorkflow(r.Context(), temporalclient.StartWorkflowOptions{
		ID:                                       id,
		TaskQueue:                                h.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, "ReconcileServiceWorkflow", workflow.ReconcileParams{
		Request:     req,
		CallbackURL: body.CallbackURL,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			response.WriteJSON(w, http.StatusConflict, map[string]string{
				"error":       "a reconciliation is already running for this service",
				"workflow_id": id,
			})
			return
		}
		response.WriteError(w, http.StatusInternalServerError, "start workflow: "+err.Error())
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"workflow_id": run.GetID(),
		"run_id":      run.GetRunID(),
	})
}

// Await blocks until the workflow completes and responds with its report.
func (h *Workflow) Await(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowID")
	if workflowID == "" {
		response.WriteError(w, http.StatusBadRequest, "missing workflow ID")
		return
	}

	var rep *model.Report
	err := h.tc.GetWorkflow(r.Context(), workflowID, "").Get(r.Context(), &rep)
	if err == nil && rep != nil {
		response.WriteReport(w, rep)
		return
	}
	if err == nil {
		response.WriteError(w, http.StatusInternalServerError, "workflow returned no report")
		return
	}

	var notFound *serviceerror.NotFound
	if errors.As(err, &notFound) {
		response.WriteError(w, http.StatusNotFound, "workflow not found: "+workflowID)
		return
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.HasDetails() {
		var failed model.Report
		if derr := appErr.Details(&failed); derr == nil && failed.Error != nil {
			response.WriteReport(w, &failed)
			return
		}
	}
	response.WriteError(w, http.StatusInternalServerError, err.Error())
}
