// Package worker runs the per-course polling loop.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marcin-skalski/seatwatch/internal/notify"
	"github.com/marcin-skalski/seatwatch/internal/seats"
	"github.com/marcin-skalski/seatwatch/internal/store"
	"github.com/marcin-skalski/seatwatch/internal/telemetry"
)

// Fetcher returns the current seating numbers of a seat page.
type Fetcher interface {
	Fetch(ctx context.Context, target string) (seats.Reading, error)
}

type state int

const (
	stateFetchFailed state = iota
	stateSeeded
	stateUnchanged
	stateChanged
)

// Options tune a Poller. Zero values fall back to defaults.
type Options struct {
	Interval time.Duration
	// Announce sends the current seat count once the first reading arrives.
	Announce bool
	Metrics  *telemetry.Metrics
}

const DefaultInterval = 500 * time.Second

// Status is the published view of a Poller, safe to read from any goroutine.
type Status struct {
	ID         string
	Name       string
	Target     string
	Recipients int
	Reading    seats.Reading
	HasReading bool
	LastCheck  time.Time
	LastChange time.Time
	LastError  string
	Alerts     int
}

// Poller watches one item. Start it once; Stop cancels and waits.
type Poller struct {
	item     store.WatchedItem
	fetcher  Fetcher
	notifier notify.Notifier
	metrics  *telemetry.Metrics
	interval time.Duration
	announce bool
	logger   *slog.Logger

	// snap and seeded are touched only by the polling goroutine.
	snap   seats.Snapshot
	seeded bool

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	status Status
}

func New(item store.WatchedItem, f Fetcher, n notify.Notifier, opts Options, logger *slog.Logger) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		item:     item,
		fetcher:  f,
		notifier: n,
		metrics:  opts.Metrics,
		interval: interval,
		announce: opts.Announce,
		logger:   logger.With("course", item.Name, "id", item.ID),
		done:     make(chan struct{}),
		status: Status{
			ID:         item.ID,
			Name:       item.Name,
			Target:     item.Target,
			Recipients: len(item.Recipients),
		},
	}
}

func (p *Poller) ID() string {
	return p.item.ID
}

// Start launches the polling goroutine. The first fetch happens immediately
// on that goroutine, so Start never blocks on the network.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go func() {
		defer close(p.done)
		p.Run(ctx)
	}()
}

// Cancel signals the loop to exit. An in-flight fetch is abandoned through
// its context; no new cycle begins.
func (p *Poller) Cancel() {
	if p.cancel != nil {
		p.cancel()
	}
}

// Done is closed once the polling goroutine has returned.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Stop cancels the poller and blocks until it exits or ctx ends.
func (p *Poller) Stop(ctx context.Context) error {
	p.Cancel()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run polls until ctx is cancelled. Fetch failures never end the loop.
func (p *Poller) Run(ctx context.Context) {
	p.metrics.PollerStarted(ctx)
	defer p.metrics.PollerStopped(context.WithoutCancel(ctx))

	p.logger.Info("poller started", "interval", p.interval, "recipients", len(p.item.Recipients))

	p.step(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.step(ctx)
		}
	}
}

func (p *Poller) step(ctx context.Context) {
	s := p.cycle(ctx)
	p.logger.Debug("cycle finished", "state", stateString(s))
}

func (p *Poller) cycle(ctx context.Context) state {
	reading, err := p.fetcher.Fetch(ctx, p.item.Target)
	p.metrics.RecordFetch(ctx, err == nil)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("fetch failed", "target", p.item.Target, "err", err)
		}
		p.publish(func(s *Status) {
			s.LastCheck = time.Now()
			s.LastError = err.Error()
		})
		return stateFetchFailed
	}

	if !p.seeded {
		p.snap.Seed(reading)
		p.seeded = true
		p.publishReading(reading, false)
		if p.announce {
			p.alert(ctx, p.snap.DescribeRemaining())
		}
		return stateSeeded
	}

	p.snap.Update(reading)
	change := p.snap.DescribeChange()
	p.publishReading(reading, change != "")
	if change == "" {
		return stateUnchanged
	}

	p.logger.Info("remaining seats changed",
		"previous", p.snap.Remaining.Previous,
		"current", p.snap.Remaining.Current,
		"delta", p.snap.RemainingDelta())
	p.alert(ctx, change)
	return stateChanged
}

// Status returns a copy of the latest published state.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) publish(fn func(*Status)) {
	p.mu.Lock()
	fn(&p.status)
	p.mu.Unlock()
}

func (p *Poller) publishReading(r seats.Reading, changed bool) {
	now := time.Now()
	p.publish(func(s *Status) {
		s.Reading = r
		s.HasReading = true
		s.LastCheck = now
		s.LastError = ""
		if changed {
			s.LastChange = now
		}
	})
}

func stateString(s state) string {
	switch s {
	case stateFetchFailed:
		return "fetch_failed"
	case stateSeeded:
		return "seeded"
	case stateUnchanged:
		return "unchanged"
	case stateChanged:
		return "changed"
	default:
		return "unknown"
	}
}
