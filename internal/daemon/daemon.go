// Package daemon keeps one Poller running for every item the store wants
// watched, and stops the rest.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/marcin-skalski/seatwatch/internal/notify"
	"github.com/marcin-skalski/seatwatch/internal/store"
	"github.com/marcin-skalski/seatwatch/internal/telemetry"
	"github.com/marcin-skalski/seatwatch/internal/tui"
	"github.com/marcin-skalski/seatwatch/internal/worker"
)

var ErrAlreadyStarted = errors.New("daemon already started")

type Options struct {
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	ShutdownTimeout   time.Duration
	// SiteURL is quoted in welcome notices.
	SiteURL string
	Metrics *telemetry.Metrics
}

type Daemon struct {
	store    store.DesiredState
	fetcher  worker.Fetcher
	notifier notify.Notifier
	opts     Options
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	registry *Registry

	// base parents every Poller; it outlives the caller's context so that
	// Shutdown decides when pollers stop.
	base       context.Context
	baseCancel context.CancelFunc
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	// spawnMu orders spawn against Shutdown so no poller registers after
	// the registry is drained.
	spawnMu sync.Mutex

	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
	stopErr  error

	statusMu         sync.Mutex
	lastReconcile    time.Time
	lastReconcileErr error
}

func New(st store.DesiredState, f worker.Fetcher, n notify.Notifier, opts Options, logger *slog.Logger) *Daemon {
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = 10 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	return &Daemon{
		store:    st,
		fetcher:  f,
		notifier: n,
		opts:     opts,
		metrics:  opts.Metrics,
		logger:   logger,
		registry: NewRegistry(),
		loopDone: make(chan struct{}),
	}
}

// Start resumes a Poller for every item already marked running, without
// onboarding, then launches the reconcile loop. It returns once both are
// in place.
func (d *Daemon) Start(ctx context.Context) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}

	running, err := d.store.ListAlreadyRunning(ctx)
	if err != nil {
		return fmt.Errorf("load running items: %w", err)
	}

	d.base, d.baseCancel = context.WithCancel(context.WithoutCancel(ctx))
	for _, item := range running {
		d.spawn(item, false)
	}
	d.logger.Info("daemon started",
		"resumed", len(running),
		"poll_interval", d.opts.PollInterval,
		"reconcile_interval", d.opts.ReconcileInterval)

	loopCtx, cancel := context.WithCancel(d.base)
	d.loopCancel = cancel
	go func() {
		defer close(d.loopDone)
		d.loop(loopCtx)
	}()

	d.started = true
	return nil
}

func (d *Daemon) loop(ctx context.Context) {
	// Initial reconcile
	if err := d.reconcile(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("reconcile failed", "err", err)
	}

	ticker := time.NewTicker(d.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.reconcile(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("reconcile failed", "err", err)
			}
		}
	}
}

// Shutdown stops the reconcile loop, then cancels and joins every Poller.
// Calling it before Start is a no-op; after a started daemon has been shut
// down, later calls return the first result. Every poller is cancelled even
// when ctx ends first, in which case the error says what was left running.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.startMu.Lock()
	started := d.started
	d.startMu.Unlock()
	if !started {
		return nil
	}

	d.stopOnce.Do(func() {
		d.stopErr = d.shutdown(ctx)
	})
	return d.stopErr
}

func (d *Daemon) shutdown(ctx context.Context) error {
	d.logger.Info("shutting down, stopping reconciler")
	d.loopCancel()
	var loopErr error
	select {
	case <-d.loopDone:
	case <-ctx.Done():
		loopErr = fmt.Errorf("reconciler did not stop: %w", ctx.Err())
	}

	pollers := d.cancelPollers()
	if loopErr != nil {
		d.logger.Warn("reconciler still busy, pollers cancelled without waiting", "count", len(pollers))
		return loopErr
	}

	d.logger.Info("waiting for pollers", "count", len(pollers))
	for i, p := range pollers {
		select {
		case <-p.Done():
		case <-ctx.Done():
			return fmt.Errorf("%d pollers still running: %w", len(pollers)-i, ctx.Err())
		}
	}

	d.logger.Info("all pollers stopped")
	return nil
}

// cancelPollers closes the base context, so no later spawn takes effect,
// then drains the registry and cancels what it held.
func (d *Daemon) cancelPollers() []*worker.Poller {
	d.spawnMu.Lock()
	d.baseCancel()
	pollers := d.registry.Drain()
	d.spawnMu.Unlock()

	for _, p := range pollers {
		p.Cancel()
	}
	return pollers
}

// Run starts the daemon, blocks until ctx is cancelled, then shuts down
// within the configured timeout.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.ShutdownTimeout)
	defer cancel()
	return d.Shutdown(shutdownCtx)
}

// PollerCount reports how many pollers are registered.
func (d *Daemon) PollerCount() int {
	return d.registry.Len()
}

func (d *Daemon) GetSnapshot() tui.Snapshot {
	pollers := d.registry.List()

	courses := make([]tui.CourseState, 0, len(pollers))
	for _, p := range pollers {
		st := p.Status()
		courses = append(courses, tui.CourseState{
			ID:         st.ID,
			Name:       st.Name,
			Recipients: st.Recipients,
			HasReading: st.HasReading,
			Capacity:   st.Reading.Capacity,
			Actual:     st.Reading.Actual,
			Remaining:  st.Reading.Remaining,
			LastCheck:  st.LastCheck,
			LastChange: st.LastChange,
			LastError:  st.LastError,
			Alerts:     st.Alerts,
		})
	}
	sort.SliceStable(courses, func(i, j int) bool { return courses[i].Name < courses[j].Name })

	d.statusMu.Lock()
	last := d.lastReconcile
	var lastErr string
	if d.lastReconcileErr != nil {
		lastErr = d.lastReconcileErr.Error()
	}
	d.statusMu.Unlock()

	return tui.Snapshot{
		Timestamp:        time.Now(),
		Courses:          courses,
		PollerCount:      len(pollers),
		LastReconcile:    last,
		LastReconcileErr: lastErr,
	}
}
