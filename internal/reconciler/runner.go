package reconciler

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/edvin/svcctl/internal/controlplane"
	"github.com/edvin/svcctl/internal/model"
)

// Runner reconciles requests with a fresh control-plane client each time,
// filling endpoint fields the request leaves empty from Endpoint.
type Runner struct {
	Endpoint     model.Endpoint
	TLS          *tls.Config
	PollInterval time.Duration
	Options      Options
	// OnReport, when set, sees every report, failed runs included.
	OnReport func(*model.Report)
}

// Run reconciles one request.
func (r *Runner) Run(ctx context.Context, req model.DesiredState) (*model.Report, error) {
	req.Endpoint = req.Endpoint.WithDefaults(r.Endpoint)

	client := controlplane.NewClient(req.Endpoint, r.Options.Logger).WithTLS(r.TLS)
	if r.PollInterval > 0 {
		client.PollInterval = r.PollInterval
	}

	rep, err := New(client, r.Options).Reconcile(ctx, req)
	if r.OnReport != nil {
		r.OnReport(rep)
	}
	return rep, err
}
