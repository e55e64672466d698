// Package metrics exports the booking core's counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/venue-booking/internal/apperr"
	"github.com/iliyamo/venue-booking/internal/model"
)

// Recorder implements service.Metrics on a private registry.
type Recorder struct {
	registry       *prometheus.Registry
	transitions    *prometheus.CounterVec
	materializes   *prometheus.CounterVec
	audits         *prometheus.CounterVec
	lineupFailures prometheus.Counter
}

// New registers the collectors on a fresh registry.  Go runtime and
// process collectors are included.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "status_transitions_total",
			Help:      "Status change calls by category, target status and result.",
		}, []string{"category", "from", "to", "result"}),
		materializes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "materialize_total",
			Help:      "Materialize outcomes by category.",
		}, []string{"category", "outcome"}),
		audits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "event_audits_total",
			Help:      "Confirmed events removed by a downgrade.",
		}, []string{"category"}),
		lineupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "booking",
			Name:      "lineup_reconcile_failures_total",
			Help:      "Lineup reconcile failures swallowed by a status change.",
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.transitions, r.materializes, r.audits, r.lineupFailures,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) RecordTransition(category model.Category, from, to model.Status, err error) {
	result := "ok"
	if err != nil {
		result = apperr.GetKind(err).String()
	}
	r.transitions.WithLabelValues(label(string(category)), label(string(from)), label(string(to)), result).Inc()
}

func (r *Recorder) RecordMaterialize(category model.Category, outcome string) {
	r.materializes.WithLabelValues(label(string(category)), outcome).Inc()
}

func (r *Recorder) RecordAudit(category model.Category) {
	r.audits.WithLabelValues(label(string(category))).Inc()
}

func (r *Recorder) RecordLineupFailure() { r.lineupFailures.Inc() }

func label(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
