// Package apiclient talks to a running svcctl API server. The CLI uses it
// when --server is set instead of contacting the control plane directly.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// NewClient creates a client for the server at baseURL. Requests have no
// client-side timeout because a synchronous reconcile lasts as long as the
// slowest remote command; bound them with the context instead.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
	}
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// do sends one request. Non-2xx responses are returned together with a
// *StatusError so callers can still decode the body.
func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	r := &Response{StatusCode: resp.StatusCode, Body: json.RawMessage(respBody)}
	if resp.StatusCode >= 400 {
		return r, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return r, nil
}

// StatusError is a non-2xx response from the server.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Items extracts the "items" array from a list response.
func (r *Response) Items() (json.RawMessage, error) {
	var page struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(r.Body, &page); err != nil {
		return nil, fmt.Errorf("parse list response: %w", err)
	}
	return page.Items, nil
}

type reconcileBody struct {
	model.DesiredState
	CallbackURL string `json:"callback_url,omitempty"`
}

func reconcilePath(req model.DesiredState) string {
	return fmt.Sprintf("/api/v1/clusters/%s/services/%s/reconcile",
		url.PathEscape(req.Cluster), url.PathEscape(string(req.Service)))
}

// Reconcile runs a synchronous reconciliation on the server. A failed run
// returns its report together with a *svcerr.Error rebuilt from it.
func (c *Client) Reconcile(ctx context.Context, req model.DesiredState) (*model.Report, error) {
	resp, err := c.Post(ctx, reconcilePath(req), reconcileBody{DesiredState: req})
	return decodeReport(resp, err)
}

// StartReconcile queues an asynchronous reconciliation and returns the
// workflow id to await.
func (c *Client) StartReconcile(ctx context.Context, req model.DesiredState, callbackURL string) (string, error) {
	resp, err := c.Post(ctx, reconcilePath(req)+"/async", reconcileBody{DesiredState: req, CallbackURL: callbackURL})
	if err != nil {
		return "", err
	}
	var started struct {
		WorkflowID string `json:"workflow_id"`
	}
	if err := json.Unmarshal(resp.Body, &started); err != nil {
		return "", fmt.Errorf("parse async response: %w", err)
	}
	return started.WorkflowID, nil
}

// AwaitWorkflow blocks until the workflow completes. The server holds the
// request open until then.
func (c *Client) AwaitWorkflow(ctx context.Context, workflowID string) (*model.Report, error) {
	resp, err := c.Get(ctx, fmt.Sprintf("/api/v1/workflows/%s/await", url.PathEscape(workflowID)))
	return decodeReport(resp, err)
}

// Catalog lists the service types the server supports.
func (c *Client) Catalog(ctx context.Context) ([]catalog.Descriptor, error) {
	resp, err := c.Get(ctx, "/api/v1/catalog")
	if err != nil {
		return nil, err
	}
	items, err := resp.Items()
	if err != nil {
		return nil, err
	}
	var descs []catalog.Descriptor
	if err := json.Unmarshal(items, &descs); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return descs, nil
}

func decodeReport(resp *Response, err error) (*model.Report, error) {
	var statusErr *StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return nil, err
	}

	var rep model.Report
	if derr := json.Unmarshal(resp.Body, &rep); derr != nil || (statusErr != nil && rep.Error == nil) {
		if statusErr != nil {
			return nil, statusErr
		}
		return nil, fmt.Errorf("parse report: %w", derr)
	}
	if rep.Error != nil {
		e := svcerr.New(svcerr.Kind(rep.Error.Kind), rep.Error.Stage, rep.Error.Message, nil)
		e.Outcome = model.CommandOutcome(rep.Error.Outcome)
		return &rep, e
	}
	return &rep, nil
}
