// Package api serves the reconciliation HTTP API.
//
//	POST /api/v1/clusters/{cluster}/services/{service}/reconcile        run and wait
//	POST /api/v1/clusters/{cluster}/services/{service}/reconcile/async  start a workflow
//	GET  /api/v1/workflows/{workflowID}/await                           wait for a workflow
//	GET  /api/v1/runs, /api/v1/runs/{runID}                             run ledger
//	GET  /api/v1/catalog                                                supported service types
package api
