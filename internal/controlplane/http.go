package controlplane

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/svcctl/internal/model"
	"github.com/edvin/svcctl/internal/svcerr"
)

// DefaultAPIVersion is used when the endpoint does not name one.
const DefaultAPIVersion = 19

// DefaultPollInterval is how often PollCommand re-reads a command.
const DefaultPollInterval = 2 * time.Second

// HTTPClient talks to the control plane's REST API. One HTTPClient serves a
// single reconciliation; its host cache is never shared across invocations.
type HTTPClient struct {
	BaseURL      string
	Username     string
	Password     string
	PollInterval time.Duration
	HTTPClient   *http.Client

	logger zerolog.Logger
	hosts  map[string]string
}

// Response is a raw API response.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the control plane.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// NewClient creates a client for the given endpoint.
func NewClient(ep model.Endpoint, logger zerolog.Logger) *HTTPClient {
	version := ep.APIVersion
	if version == 0 {
		version = DefaultAPIVersion
	}
	return &HTTPClient{
		BaseURL:      fmt.Sprintf("%s/api/v%d", strings.TrimRight(ep.URL, "/"), version),
		Username:     ep.Username,
		Password:     ep.Password,
		PollInterval: DefaultPollInterval,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With().Str("component", "controlplane").Logger(),
	}
}

// WithTLS makes the client use cfg for HTTPS. A nil cfg is a no-op.
func (c *HTTPClient) WithTLS(cfg *tls.Config) *HTTPClient {
	if cfg == nil {
		return c
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = cfg
	c.HTTPClient.Transport = transport
	return c
}

func (c *HTTPClient) post(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *HTTPClient) get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *HTTPClient) put(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *HTTPClient) delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*Response, error) {
	url := c.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("control plane request")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, svcerr.Connectivity(method+" "+path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, svcerr.Connectivity(method+" "+path, fmt.Errorf("read response body: %w", err))
	}

	r := &Response{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(respBody),
	}

	if resp.StatusCode >= 400 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return r, svcerr.Connectivity(method+" "+path, se)
		}
		return r, se
	}

	return r, nil
}

// Items extracts the "items" array from a list response.
func (r *Response) Items() (json.RawMessage, error) {
	var page struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(r.Body, &page); err != nil {
		return nil, fmt.Errorf("parse list response: %w", err)
	}
	if page.Items == nil {
		return json.RawMessage("[]"), nil
	}
	return page.Items, nil
}

func (r *Response) decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (r *Response) decodeItems(v any) error {
	items, err := r.Items()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(items, v); err != nil {
		return fmt.Errorf("parse list items: %w", err)
	}
	return nil
}
