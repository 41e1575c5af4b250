// Package plugin provides an extensible plugin system for the vesting
// engine. Plugins can hook into various lifecycle events to extend
// functionality.
package plugin

import (
	"context"
	"time"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Grant lifecycle hooks
// ──────────────────────────────────────────────────

// OnGrantCreated is called when a new grant is created.
type OnGrantCreated interface {
	Plugin
	OnGrantCreated(ctx context.Context, grant interface{}) error
}

// OnScheduleGenerated is called after a grant's vesting events are
// generated and persisted.
type OnScheduleGenerated interface {
	Plugin
	OnScheduleGenerated(ctx context.Context, grantID string, eventCount int) error
}

// ──────────────────────────────────────────────────
// Realization hooks
// ──────────────────────────────────────────────────

// OnEventsRealized is called after a realization batch commits.
type OnEventsRealized interface {
	Plugin
	OnEventsRealized(ctx context.Context, result interface{}) error
}

// OnEventCancelled is called when an event is cancelled during
// realization, typically for insufficient unvested shares.
type OnEventCancelled interface {
	Plugin
	OnEventCancelled(ctx context.Context, grantID, eventID, reason string) error
}

// OnSweepCompleted is called when a calendar sweep finishes.
type OnSweepCompleted interface {
	Plugin
	OnSweepCompleted(ctx context.Context, grants, processed, cancelled int, elapsed time.Duration) error
}
