package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/edvin/svcctl/internal/model"
)

var (
	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcctl_reconcile_total",
			Help: "Total reconciliations by service type, target and result",
		},
		[]string{"service", "target", "result"},
	)

	reconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "svcctl_reconcile_duration_seconds",
			Help:    "Wall-clock duration of a reconciliation",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"service", "target"},
	)

	commandOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "svcctl_command_outcomes_total",
			Help: "Polled control-plane commands by name and outcome",
		},
		[]string{"service", "command", "outcome"},
	)
)

// Result is the result label for a report: the error kind for failures,
// otherwise "changed" or "unchanged".
func Result(rep *model.Report) string {
	switch {
	case rep.Error != nil && rep.Error.Kind != "":
		return rep.Error.Kind
	case rep.Error != nil:
		return "error"
	case rep.Changed:
		return "changed"
	}
	return "unchanged"
}

// ObserveReport records a finished reconciliation.
func ObserveReport(rep *model.Report) {
	if rep == nil {
		return
	}
	service, target := string(rep.Service), string(rep.Target)
	reconcileTotal.WithLabelValues(service, target, Result(rep)).Inc()
	if !rep.StartedAt.IsZero() && !rep.FinishedAt.IsZero() {
		reconcileDuration.WithLabelValues(service, target).Observe(rep.FinishedAt.Sub(rep.StartedAt).Seconds())
	}
}

// Commands counts command outcomes. It satisfies reconciler.Observer.
type Commands struct{}

func (Commands) CommandFinished(t model.ServiceType, command string, outcome model.CommandOutcome) {
	commandOutcomes.WithLabelValues(string(t), command, string(outcome)).Inc()
}
