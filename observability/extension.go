// Package observability provides a metrics extension for the vesting
// engine that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/vesting/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnGrantCreated      = (*MetricsExtension)(nil)
	_ plugin.OnScheduleGenerated = (*MetricsExtension)(nil)
	_ plugin.OnEventsRealized    = (*MetricsExtension)(nil)
	_ plugin.OnEventCancelled    = (*MetricsExtension)(nil)
	_ plugin.OnSweepCompleted    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track vesting metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Grant metrics
	GrantCreated       Counter
	ScheduleGenerated  Counter
	ScheduleEventCount Histogram

	// Realization metrics
	EventsProcessed Counter
	EventsCancelled Counter

	// Sweep metrics
	SweepRuns     Counter
	SweepGrants   Histogram
	SweepDuration Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Grant metrics
		GrantCreated:       factory.Counter("vesting.grant.created"),
		ScheduleGenerated:  factory.Counter("vesting.schedule.generated"),
		ScheduleEventCount: factory.Histogram("vesting.schedule.event_count"),

		// Realization metrics
		EventsProcessed: factory.Counter("vesting.events.processed"),
		EventsCancelled: factory.Counter("vesting.events.cancelled"),

		// Sweep metrics
		SweepRuns:     factory.Counter("vesting.sweep.runs"),
		SweepGrants:   factory.Histogram("vesting.sweep.grants"),
		SweepDuration: factory.Histogram("vesting.sweep.duration_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// OnGrantCreated implements plugin.OnGrantCreated.
func (m *MetricsExtension) OnGrantCreated(_ context.Context, _ interface{}) error {
	m.GrantCreated.Inc()
	return nil
}

// OnScheduleGenerated implements plugin.OnScheduleGenerated.
func (m *MetricsExtension) OnScheduleGenerated(_ context.Context, _ string, eventCount int) error {
	m.ScheduleGenerated.Inc()
	m.ScheduleEventCount.Observe(float64(eventCount))
	return nil
}

// OnEventsRealized implements plugin.OnEventsRealized.
func (m *MetricsExtension) OnEventsRealized(_ context.Context, _ interface{}) error {
	m.EventsProcessed.Inc()
	return nil
}

// OnEventCancelled implements plugin.OnEventCancelled.
func (m *MetricsExtension) OnEventCancelled(_ context.Context, _, _, _ string) error {
	m.EventsCancelled.Inc()
	return nil
}

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(_ context.Context, grants, _, _ int, elapsed time.Duration) error {
	m.SweepRuns.Inc()
	m.SweepGrants.Observe(float64(grants))
	m.SweepDuration.Observe(float64(elapsed.Milliseconds()))
	return nil
}
