// Package metrics receives one event per processed migration. The engine
// emits through the Sink interface; Noop discards, Prometheus exports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Event describes one migration execution.
type Event struct {
	Filename   string
	Direction  string // "up" or "down"
	Statements int
	Duration   time.Duration
	Failed     bool
}

// Sink consumes migration events.
type Sink interface {
	Observe(event Event)
}

// Noop is the default sink; it discards every event.
type Noop struct{}

// Observe discards the event.
func (Noop) Observe(Event) {}

// Prometheus exports migration counts and durations.
type Prometheus struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheus creates a sink registered with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "schemact_migrations_total",
			Help: "Number of processed migrations by direction and outcome.",
		}, []string{"direction", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schemact_migration_duration_seconds",
			Help:    "Wall time spent executing a single migration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"direction"}),
	}

	reg.MustRegister(p.total, p.duration)

	return p
}

// Counter returns the labeled counter child, mainly for assertions in
// tests.
func (p *Prometheus) Counter(direction, outcome string) (prometheus.Counter, error) {
	return p.total.GetMetricWithLabelValues(direction, outcome)
}

// Observe records the event's outcome and duration.
func (p *Prometheus) Observe(event Event) {
	outcome := "success"
	if event.Failed {
		outcome = "failure"
	}

	p.total.WithLabelValues(event.Direction, outcome).Inc()
	p.duration.WithLabelValues(event.Direction).Observe(event.Duration.Seconds())
}
