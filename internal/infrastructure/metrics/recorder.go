// Package metrics exposes subscription engine counters to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rackgrid"

// Recorder implements the use-case MetricsRecorder port.
type Recorder struct {
	renewals      *prometheus.CounterVec
	gatewayEvents *prometheus.CounterVec
	tieringRuns   *prometheus.CounterVec
	queueRepairs  prometheus.Counter
	gatherer      prometheus.Gatherer
}

// NewRecorder registers the collectors on a private registry so several
// recorders can coexist in one process.
func NewRecorder() *Recorder {
	return NewRecorderWith(prometheus.NewRegistry())
}

// NewRecorderWith registers the collectors on reg.
func NewRecorderWith(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		renewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renewals_total",
				Help:      "Automatic renewal attempts by outcome.",
			},
			[]string{"outcome"},
		),
		gatewayEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_events_total",
				Help:      "Payment gateway events by type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		tieringRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tiering_runs_total",
				Help:      "Tiering engine applications by trigger.",
			},
			[]string{"trigger"},
		),
		queueRepairs: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tier_queue_repairs_total",
				Help:      "Corrupt tier queues discarded and rebuilt.",
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		r.renewals,
		r.gatewayEvents,
		r.tieringRuns,
		r.queueRepairs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) RenewalAttempt(outcome string) {
	r.renewals.WithLabelValues(outcome).Inc()
}

func (r *Recorder) GatewayEvent(eventType, outcome string) {
	r.gatewayEvents.WithLabelValues(eventType, outcome).Inc()
}

func (r *Recorder) TieringRun(trigger string) {
	r.tieringRuns.WithLabelValues(trigger).Inc()
}

func (r *Recorder) TierQueueRepaired() {
	r.queueRepairs.Inc()
}

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
