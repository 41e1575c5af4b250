// Package audithook bridges vesting lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// an audit backend directly. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/vesting/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnGrantCreated      = (*Extension)(nil)
	_ plugin.OnScheduleGenerated = (*Extension)(nil)
	_ plugin.OnEventsRealized    = (*Extension)(nil)
	_ plugin.OnEventCancelled    = (*Extension)(nil)
	_ plugin.OnSweepCompleted    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so the package carries no backend dependency;
// callers inject the concrete recorder at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges vesting lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// OnGrantCreated implements plugin.OnGrantCreated.
func (e *Extension) OnGrantCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionGrantCreated, SeverityInfo, OutcomeSuccess,
		ResourceGrant, "", CategoryEquity, nil,
		"event", "grant_created",
	)
}

// OnScheduleGenerated implements plugin.OnScheduleGenerated.
func (e *Extension) OnScheduleGenerated(ctx context.Context, grantID string, eventCount int) error {
	return e.record(ctx, ActionScheduleGenerated, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, grantID, CategoryEquity, nil,
		"grant_id", grantID,
		"event_count", eventCount,
	)
}

// ──────────────────────────────────────────────────
// Realization hooks
// ──────────────────────────────────────────────────

// OnEventsRealized implements plugin.OnEventsRealized.
func (e *Extension) OnEventsRealized(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionEventsRealized, SeverityInfo, OutcomeSuccess,
		ResourceEvent, "", CategoryRealization, nil,
		"event", "events_realized",
	)
}

// OnEventCancelled implements plugin.OnEventCancelled.
func (e *Extension) OnEventCancelled(ctx context.Context, grantID, eventID, reason string) error {
	return e.record(ctx, ActionEventCancelled, SeverityWarning, OutcomePartial,
		ResourceEvent, eventID, CategoryRealization, nil,
		"grant_id", grantID,
		"event_id", eventID,
		"cancel_reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Sweep hooks
// ──────────────────────────────────────────────────

// OnSweepCompleted implements plugin.OnSweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, grants, processed, cancelled int, elapsed time.Duration) error {
	return e.record(ctx, ActionSweepCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSweep, "", CategoryOperations, nil,
		"grants", grants,
		"processed", processed,
		"cancelled", cancelled,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
