package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onGrantCreated      []OnGrantCreated
	onScheduleGenerated []OnScheduleGenerated
	onEventsRealized    []OnEventsRealized
	onEventCancelled    []OnEventCancelled
	onSweepCompleted    []OnSweepCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnGrantCreated); ok {
		r.onGrantCreated = append(r.onGrantCreated, v)
	}
	if v, ok := p.(OnScheduleGenerated); ok {
		r.onScheduleGenerated = append(r.onScheduleGenerated, v)
	}
	if v, ok := p.(OnEventsRealized); ok {
		r.onEventsRealized = append(r.onEventsRealized, v)
	}
	if v, ok := p.(OnEventCancelled); ok {
		r.onEventCancelled = append(r.onEventCancelled, v)
	}
	if v, ok := p.(OnSweepCompleted); ok {
		r.onSweepCompleted = append(r.onSweepCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnGrantCreated)(nil)).Elem(), "OnGrantCreated")
	checkInterface(reflect.TypeOf((*OnScheduleGenerated)(nil)).Elem(), "OnScheduleGenerated")
	checkInterface(reflect.TypeOf((*OnEventsRealized)(nil)).Elem(), "OnEventsRealized")
	checkInterface(reflect.TypeOf((*OnEventCancelled)(nil)).Elem(), "OnEventCancelled")
	checkInterface(reflect.TypeOf((*OnSweepCompleted)(nil)).Elem(), "OnSweepCompleted")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitGrantCreated emits a grant created event.
func (r *Registry) EmitGrantCreated(ctx context.Context, grant interface{}) {
	r.mu.RLock()
	plugins := r.onGrantCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnGrantCreated(ctx, grant)
		}); err != nil {
			r.logger.Warn("plugin OnGrantCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitScheduleGenerated emits a schedule generated event.
func (r *Registry) EmitScheduleGenerated(ctx context.Context, grantID string, eventCount int) {
	r.mu.RLock()
	plugins := r.onScheduleGenerated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnScheduleGenerated(ctx, grantID, eventCount)
		}); err != nil {
			r.logger.Warn("plugin OnScheduleGenerated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEventsRealized emits a realization completed event.
func (r *Registry) EmitEventsRealized(ctx context.Context, result interface{}) {
	r.mu.RLock()
	plugins := r.onEventsRealized
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEventsRealized(ctx, result)
		}); err != nil {
			r.logger.Warn("plugin OnEventsRealized failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEventCancelled emits an event cancelled event.
func (r *Registry) EmitEventCancelled(ctx context.Context, grantID, eventID, reason string) {
	r.mu.RLock()
	plugins := r.onEventCancelled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEventCancelled(ctx, grantID, eventID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnEventCancelled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSweepCompleted emits a sweep completed event.
func (r *Registry) EmitSweepCompleted(ctx context.Context, grants, processed, cancelled int, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSweepCompleted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSweepCompleted(ctx, grants, processed, cancelled, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSweepCompleted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the realization pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
