package vesting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/vesting/plugin"
	"github.com/xraph/vesting/store"
)

// Engine is the main vesting engine.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	// now is swappable so realization can be driven from test clocks.
	now func() time.Time

	// Background sweep
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	sweepInterval time.Duration
	sweepRetries  uint
}

// New creates a new Engine instance.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		now:           time.Now,
		stopChan:      make(chan struct{}),
		sweepInterval: time.Hour,
		sweepRetries:  3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithSweepInterval sets how often the calendar sweep runs. Zero
// disables the background sweep; callers then drive RealizeDueEvents
// themselves.
func WithSweepInterval(interval time.Duration) Option {
	return func(e *Engine) {
		e.sweepInterval = interval
	}
}

// WithSweepRetries sets the per-grant retry budget for transient store
// failures during a sweep.
func WithSweepRetries(n uint) Option {
	return func(e *Engine) {
		e.sweepRetries = n
	}
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// Start migrates the store, initializes plugins, and begins the
// background sweep.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	if e.sweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepWorker(ctx)
	}

	e.logger.Info("vesting engine started",
		"sweep_interval", e.sweepInterval,
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	close(e.stopChan)
	e.wg.Wait()

	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// sweepWorker runs the calendar sweep on a fixed interval.
func (e *Engine) sweepWorker(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return

		case <-ticker.C:
			if _, err := e.RealizeDueEvents(ctx, e.now()); err != nil {
				e.logger.Error("calendar sweep failed", "error", err)
			}
		}
	}
}
