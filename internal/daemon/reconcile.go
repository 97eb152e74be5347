package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/marcin-skalski/seatwatch/internal/notify"
	"github.com/marcin-skalski/seatwatch/internal/store"
	"github.com/marcin-skalski/seatwatch/internal/telemetry"
	"github.com/marcin-skalski/seatwatch/internal/worker"
)

// reconcile runs one tick: activations first, then deactivations. A store
// listing error aborts the tick; the next tick retries.
func (d *Daemon) reconcile(ctx context.Context) error {
	start := time.Now()
	err := d.reconcileOnce(ctx)
	d.metrics.RecordReconcile(ctx, time.Since(start), err == nil)

	d.statusMu.Lock()
	d.lastReconcile = time.Now()
	d.lastReconcileErr = err
	d.statusMu.Unlock()
	return err
}

func (d *Daemon) reconcileOnce(ctx context.Context) error {
	toStart, err := d.store.ListDesiredActiveNotRunning(ctx)
	if err != nil {
		return fmt.Errorf("list newly desired items: %w", err)
	}
	for _, item := range toStart {
		d.activate(ctx, item)
	}

	toStop, err := d.store.ListDesiredInactiveButRunning(ctx)
	if err != nil {
		return fmt.Errorf("list undesired items: %w", err)
	}
	for _, item := range toStop {
		d.deactivate(ctx, item)
	}

	if len(toStart) > 0 || len(toStop) > 0 {
		d.logger.Info("reconciled", "started", len(toStart), "stopped", len(toStop), "pollers", d.registry.Len())
	}
	return nil
}

// activate marks the item running and onboards its recipients before the
// Poller starts, so the welcome notice precedes the first seat alert.
func (d *Daemon) activate(ctx context.Context, item store.WatchedItem) {
	logger := d.logger.With("course", item.Name, "id", item.ID)

	if err := d.store.MarkRunning(ctx, item.ID); err != nil {
		logger.Error("mark running failed", "err", err)
		return
	}

	if _, exists := d.registry.Get(item.ID); exists {
		logger.Warn("poller already registered, not starting another")
		return
	}

	fresh, err := d.store.OnboardRecipientsIfNew(ctx, item)
	if err != nil {
		logger.Error("onboarding failed", "err", err)
	}
	for _, r := range fresh {
		d.welcome(ctx, r)
	}

	d.spawn(item, true)
}

func (d *Daemon) deactivate(ctx context.Context, item store.WatchedItem) {
	logger := d.logger.With("course", item.Name, "id", item.ID)

	if err := d.store.MarkNotRunning(ctx, item.ID); err != nil {
		logger.Error("mark not running failed", "err", err)
		return
	}

	p, ok := d.registry.Remove(item.ID)
	if !ok {
		logger.Debug("no poller registered")
		return
	}
	p.Cancel()
	<-p.Done()
	logger.Info("poller stopped and joined")
}

func (d *Daemon) welcome(ctx context.Context, r store.Recipient) {
	body := notify.WelcomeBody(r.DeactivationCode, d.opts.SiteURL)
	err := d.notifier.Notify(ctx, []string{r.Address}, notify.WelcomeSubject, body)
	d.metrics.RecordNotification(ctx, telemetry.KindWelcome, err == nil)
	if err != nil {
		d.logger.Error("welcome delivery failed", "to", r.Address, "err", err)
		return
	}
	d.logger.Info("welcomed recipient", "to", r.Address)
}

// spawn starts a Poller under the daemon's base context and registers it.
func (d *Daemon) spawn(item store.WatchedItem, announce bool) {
	d.spawnMu.Lock()
	defer d.spawnMu.Unlock()
	if d.base.Err() != nil {
		d.logger.Debug("shutting down, not starting poller", "id", item.ID)
		return
	}

	p := worker.New(item, d.fetcher, d.notifier, worker.Options{
		Interval: d.opts.PollInterval,
		Announce: announce,
		Metrics:  d.metrics,
	}, d.logger)

	if !d.registry.Insert(p) {
		d.logger.Warn("poller already registered", "id", item.ID)
		return
	}
	p.Start(d.base)
}
