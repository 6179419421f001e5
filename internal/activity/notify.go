package activity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/svcctl/internal/model"
)

// Alert webhook payload templates.
const (
	TemplateGeneric = "generic"
	TemplateSlack   = "slack"
)

// Notify contains activities that tell the outside world about finished
// reconciliations.
type Notify struct {
	client        *http.Client
	alertURL      string
	alertTemplate string
}

// NewNotify creates the activity struct. An empty alertURL disables alerts.
func NewNotify(alertURL, alertTemplate string) *Notify {
	return &Notify{
		client:        &http.Client{Timeout: 30 * time.Second},
		alertURL:      alertURL,
		alertTemplate: alertTemplate,
	}
}

// Event is the generic JSON payload.
type Event struct {
	Event  string       `json:"event"`
	Report model.Report `json:"report"`
}

func eventName(rep model.Report) string {
	if rep.Error != nil {
		return "reconcile.failed"
	}
	return "reconcile.completed"
}

// SendCallbackParams holds parameters for the SendCallback activity.
type SendCallbackParams struct {
	URL    string       `json:"url"`
	Report model.Report `json:"report"`
}

// SendCallback POSTs the report to the caller-supplied URL.
func (a *Notify) SendCallback(ctx context.Context, params SendCallbackParams) error {
	body, err := json.Marshal(Event{Event: eventName(params.Report), Report: params.Report})
	if err != nil {
		return temporal.NewNonRetryableApplicationError("marshal callback payload", "MARSHAL_ERROR", err)
	}
	return a.post(ctx, "callback", params.URL, body)
}

// SendAlert posts a failed report to the configured alert webhook. It is a
// no-op for successful reports or when no webhook is configured.
func (a *Notify) SendAlert(ctx context.Context, rep model.Report) error {
	if a.alertURL == "" || rep.Error == nil {
		return nil
	}

	var body []byte
	var err error
	switch a.alertTemplate {
	case TemplateSlack:
		body, err = buildSlackPayload(rep)
	default:
		body, err = json.Marshal(Event{Event: eventName(rep), Report: rep})
	}
	if err != nil {
		return temporal.NewNonRetryableApplicationError("build alert payload", "MARSHAL_ERROR", err)
	}
	return a.post(ctx, "alert", a.alertURL, body)
}

// post sends body as JSON.
//   - 2xx → success
//   - 4xx → non-retryable error
//   - 5xx / network error → retryable error
func (a *Notify) post(ctx context.Context, what, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return temporal.NewNonRetryableApplicationError("create "+what+" request", "REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s POST to %s: %w", what, url, err)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("%s returned %d", what, resp.StatusCode),
			"CLIENT_ERROR", nil)
	}
	return fmt.Errorf("%s returned %d", what, resp.StatusCode)
}

// buildSlackPayload creates a Slack Block Kit message for a failed run.
func buildSlackPayload(rep model.Report) ([]byte, error) {
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Cluster:* %s", rep.Cluster)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Service:* %s (%s)", rep.Name, rep.Service)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Target:* %s", rep.Target)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*State:* %s", rep.State)},
	}

	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]string{
				"type": "plain_text",
				"text": fmt.Sprintf("Reconciliation failed: %s", rep.Error.Kind),
			},
		},
		{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf(":rotating_light: *%s* at `%s`", rep.Error.Message, rep.Error.Stage),
			},
		},
		{
			"type":   "section",
			"fields": fields,
		},
	}

	if len(rep.Actions) > 0 {
		blocks = append(blocks, map[string]any{
			"type": "section",
			"text": map[string]string{
				"type": "mrkdwn",
				"text": fmt.Sprintf("```%s```", strings.Join(rep.Actions, "\n")),
			},
		})
	}

	return json.Marshal(map[string]any{"blocks": blocks})
}
