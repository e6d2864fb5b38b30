package engine

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts what an engine did during a run.
//
// Each engine registers its collectors on its own registry so several
// engines can live in one process, as they do in the test harness.
type Metrics struct {
	registry *prometheus.Registry

	// captures counts every capture that reached the sequencer
	captures prometheus.Counter

	// changePoints counts captures that could affect ordering
	changePoints prometheus.Counter

	// switches counts decisions that handed control to another task
	switches prometheus.Counter

	// records counts records appended to the output trace, by kind
	records *prometheus.CounterVec

	// divergences counts replays that left their trace
	divergences prometheus.Counter

	// clock tracks the logical clock
	clock prometheus.Gauge
}

// NewMetrics creates the engine collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		captures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "engine",
			Name:      "captures_total",
			Help:      "Total capture points sequenced",
		}),
		changePoints: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "engine",
			Name:      "change_points_total",
			Help:      "Total captures that were change points",
		}),
		switches: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "engine",
			Name:      "switches_total",
			Help:      "Total decisions that switched to another task",
		}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "recorder",
			Name:      "records_total",
			Help:      "Total records appended to the output trace by kind",
		}, []string{"kind"}),
		divergences: f.NewCounter(prometheus.CounterOpts{
			Namespace: "lockstep",
			Subsystem: "replay",
			Name:      "divergences_total",
			Help:      "Total replays that diverged from their trace",
		}),
		clock: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "lockstep",
			Subsystem: "engine",
			Name:      "clock",
			Help:      "Current logical clock",
		}),
	}
}

// Registry returns the registry holding the engine collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

const recordsFamily = "lockstep_recorder_records_total"

// RecordsByKind gathers the records appended to the output trace, keyed
// by kind name. Kinds never appended are absent.
func (m *Metrics) RecordsByKind() (map[string]uint64, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	out := map[string]uint64{}
	for _, mf := range families {
		if mf.GetName() != recordsFamily {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "kind" {
					out[lp.GetValue()] = uint64(metric.GetCounter().GetValue())
				}
			}
		}
	}
	return out, nil
}

// WriteTextfile writes every collector to path in the text exposition
// format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
