package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	temporalclient "go.temporal.io/sdk/client"
	temporalmocks "go.temporal.io/sdk/mocks"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/workflow"
)

func asyncRequest(body any) *http.Request {
	r := newRequest(http.MethodPost, "/api/v1/clusters/c1/services/solr/reconcile/async", body)
	return withChiURLParams(r, map[string]string{"cluster": "c1", "service": "solr"})
}

func TestWorkflowStart(t *testing.T) {
	tc := &temporalmocks.Client{}
	wfRun := &temporalmocks.WorkflowRun{}
	wfRun.On("GetID").Return("reconcile-c1-solr")
	wfRun.On("GetRunID").Return("run-abc")

	tc.On("ExecuteWorkflow", mock.Anything,
		mock.MatchedBy(func(o temporalclient.StartWorkflowOptions) bool {
			return o.ID == "reconcile-c1-solr" && o.TaskQueue == "svcctl-reconcile" && o.WorkflowExecutionErrorWhenAlreadyStarted
		}),
		"ReconcileServiceWorkflow",
		mock.MatchedBy(func(p workflow.ReconcileParams) bool {
			return p.Request.Service == model.ServiceTypeSolr &&
				p.Request.Target == model.TargetStopped &&
				p.CallbackURL == "https://hooks.example.com/done"
		}),
	).Return(wfRun, nil)

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "svcctl-reconcile").Start(rec, asyncRequest(map[string]any{
		"state":        "stopped",
		"callback_url": "https://hooks.example.com/done",
	}))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Equal(t, "reconcile-c1-solr", body["workflow_id"])
	assert.Equal(t, "run-abc", body["run_id"])
	tc.AssertExpectations(t)
}

func TestWorkflowStart_AlreadyRunning(t *testing.T) {
	tc := &temporalmocks.Client{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "ReconcileServiceWorkflow", mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "run-old"))

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "q").Start(rec, asyncRequest(map[string]any{}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "reconcile-c1-solr", decodeErrorResponse(rec)["workflow_id"])
}

func TestWorkflowStart_TemporalDown(t *testing.T) {
	tc := &temporalmocks.Client{}
	tc.On("ExecuteWorkflow", mock.Anything, mock.Anything, "ReconcileServiceWorkflow", mock.Anything).
		Return(nil, errors.New("temporal down"))

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "q").Start(rec, asyncRequest(map[string]any{}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeErrorResponse(rec)["error"], "temporal down")
}

func TestWorkflowStart_UnknownServiceType(t *testing.T) {
	tc := &temporalmocks.Client{}
	r := newRequest(http.MethodPost, "/api/v1/clusters/c1/services/kafka/reconcile/async", map[string]any{})
	r = withChiURLParams(r, map[string]string{"cluster": "c1", "service": "kafka"})

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "q").Start(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	tc.AssertNotCalled(t, "ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func awaitRequest(id string) *http.Request {
	r := newRequest(http.MethodGet, "/api/v1/workflows/"+id+"/await", nil)
	return withChiURLParams(r, map[string]string{"workflowID": id})
}

func TestWorkflowAwait_Completed(t *testing.T) {
	tc := &temporalmocks.Client{}
	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("GetWorkflow", mock.Anything, "reconcile-c1-hdfs", "").Return(wfRun)
	wfRun.On("Get", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ptr := args.Get(1).(**model.Report)
		*ptr = &model.Report{RunID: "run-1", State: string(model.StateStarted)}
	}).Return(nil)

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "q").Await(rec, awaitRequest("reconcile-c1-hdfs"))

	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
}

func TestWorkflowAwait_FailedWithReport(t *testing.T) {
	tc := &temporalmocks.Client{}
	wfRun := &temporalmocks.WorkflowRun{}
	failed := model.Report{
		RunID: "run-2",
		State: model.StateNotFound,
		Error: &model.ErrorReport{Kind: "ClusterNotFound", Message: "cluster c9 not found"},
	}
	tc.On("GetWorkflow", mock.Anything, "reconcile-c9-hdfs", "").Return(wfRun)
	wfRun.On("Get", mock.Anything, mock.Anything).
		Return(temporal.NewNonRetryableApplicationError("cluster c9 not found", "ClusterNotFound", nil, failed))

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "q").Await(rec, awaitRequest("reconcile-c9-hdfs"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var got model.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Error)
	assert.Equal(t, "ClusterNotFound", got.Error.Kind)
}

func TestWorkflowAwait_NotFound(t *testing.T) {
	tc := &temporalmocks.Client{}
	wfRun := &temporalmocks.WorkflowRun{}
	tc.On("GetWorkflow", mock.Anything, "nope", "").Return(wfRun)
	wfRun.On("Get", mock.Anything, mock.Anything).Return(serviceerror.NewNotFound("workflow not found"))

	rec := httptest.NewRecorder()
	NewWorkflow(tc, "q").Await(rec, awaitRequest("nope"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowAwait_MissingID(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWorkflow(&temporalmocks.Client{}, "q").Await(rec, awaitRequest(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
