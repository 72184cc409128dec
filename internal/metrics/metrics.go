// Package metrics provides Prometheus metrics for the sweeper.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	SweepsTotal       *prometheus.CounterVec
	SweepDuration     *prometheus.HistogramVec
	MessagesDeleted   *prometheus.CounterVec
	DeleteFailures    *prometheus.CounterVec
	CommandsTotal     *prometheus.CounterVec
	ChannelsScheduled prometheus.Gauge

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		SweepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeper_sweeps_total",
				Help: "Total number of channel sweeps by profile and outcome.",
			},
			[]string{"profile", "outcome"},
		),
		SweepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sweeper_sweep_duration_seconds",
				Help:    "Channel sweep duration by profile.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"profile"},
		),
		MessagesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeper_messages_deleted_total",
				Help: "Total number of deleted messages by profile.",
			},
			[]string{"profile"},
		),
		DeleteFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeper_delete_failures_total",
				Help: "Total failed message deletions by error kind.",
			},
			[]string{"kind"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweeper_commands_total",
				Help: "Total chat commands by name and status.",
			},
			[]string{"command", "status"},
		),
		ChannelsScheduled: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sweeper_channels_scheduled",
				Help: "Number of channels with an active sweep schedule.",
			},
		),
		registry: reg,
	}

	reg.MustRegister(m.SweepsTotal)
	reg.MustRegister(m.SweepDuration)
	reg.MustRegister(m.MessagesDeleted)
	reg.MustRegister(m.DeleteFailures)
	reg.MustRegister(m.CommandsTotal)
	reg.MustRegister(m.ChannelsScheduled)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordSweep records a finished sweep.
func (m *Metrics) RecordSweep(profile, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(profile, outcome).Inc()
	m.SweepDuration.WithLabelValues(profile).Observe(seconds)
}

// RecordDeleted adds n deleted messages.
func (m *Metrics) RecordDeleted(profile string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesDeleted.WithLabelValues(profile).Add(float64(n))
}

// RecordDeleteFailure increments the failure counter for an error kind.
func (m *Metrics) RecordDeleteFailure(kind string) {
	if m == nil {
		return
	}
	m.DeleteFailures.WithLabelValues(kind).Inc()
}

// RecordCommand increments the command counter.
func (m *Metrics) RecordCommand(command, status string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(command, status).Inc()
}

// SetChannelsScheduled sets the scheduled channel count.
func (m *Metrics) SetChannelsScheduled(n int) {
	if m == nil {
		return
	}
	m.ChannelsScheduled.Set(float64(n))
}
