// Package metrics records what a tpcreds run did, for node_exporter's
// textfile collector.
package metrics

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/tpcreds/pkg/exec"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds one run's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	processInvocations *prometheus.CounterVec
	processDuration    *prometheus.HistogramVec
	updates            *prometheus.CounterVec
	lastSuccess        prometheus.Gauge
}

// New creates the collectors and registers them.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		processInvocations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpcreds_process_invocations_total",
				Help: "External tool invocations by tool and result",
			},
			[]string{"tool", "result"},
		),
		processDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tpcreds_process_duration_seconds",
				Help:    "Duration of external tool invocations in seconds",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"tool"},
		),
		updates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tpcreds_updates_total",
				Help: "Connection credential updates by result",
			},
			[]string{"result"},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tpcreds_last_success_timestamp_seconds",
				Help: "Unix time of the last successful update",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordUpdate counts one update attempt. A nil receiver is a no-op.
func (m *Metrics) RecordUpdate(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.updates.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.updates.WithLabelValues(ResultSuccess).Inc()
	m.lastSuccess.SetToCurrentTime()
}

// WriteTextfile writes every collected metric to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// InstrumentExecutor wraps next so every invocation is counted and timed.
func (m *Metrics) InstrumentExecutor(next exec.CommandExecutor) exec.CommandExecutor {
	if m == nil {
		return next
	}
	return &instrumentedExecutor{next: next, metrics: m}
}

type instrumentedExecutor struct {
	next    exec.CommandExecutor
	metrics *Metrics
}

func (e *instrumentedExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	tool := ToolLabel(name, args...)
	start := time.Now()

	stdout, stderr, err := e.next.Execute(ctx, name, args...)

	e.metrics.processDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	e.metrics.processInvocations.WithLabelValues(tool, result).Inc()
	return stdout, stderr, err
}

// ToolLabel names an invocation without any of its arguments' values:
// the binary's base name, plus the subcommand for security(1).
func ToolLabel(name string, args ...string) string {
	tool := filepath.Base(name)
	if tool == "security" && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return tool + ":" + args[0]
	}
	return tool
}
