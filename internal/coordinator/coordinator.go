// Package coordinator turns raw venue activity into analysis cycles. It owns
// the event loop: feeds push swap events into a bounded channel, the
// coordinator deduplicates them, tracks per-venue price deviation against a
// baseline, and launches at most one analysis cycle at a time when the
// deviation threshold is crossed.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/crossarb/internal/domain"
	"github.com/alanyoungcy/crossarb/internal/tracker"
)

// CycleRunner executes one full analysis cycle for a trigger event. The
// coordinator does not care how the cycle ends; every terminal status releases
// the single-flight guard the same way.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger domain.TradeEvent) (domain.CycleOutcome, error)
}

// VenueDecimals carries the token decimals needed to price a venue's events.
type VenueDecimals struct {
	Base  uint8
	Quote uint8
}

// Config tunes the coordinator's trigger behaviour.
type Config struct {
	// DeviationPct is the per-venue price movement from baseline, in percent,
	// that triggers a cycle.
	DeviationPct float64
	// Cooldown is the minimum gap between cycle starts. Events arriving inside
	// the cooldown still update the tracker but never trigger.
	Cooldown time.Duration
	// EventBuffer is the capacity of the event channel between feeds and the
	// loop.
	EventBuffer int
}

// Defaults returns the coordinator defaults.
func Defaults() Config {
	return Config{
		DeviationPct: 0.5,
		Cooldown:     3 * time.Second,
		EventBuffer:  256,
	}
}

// Coordinator runs the trigger loop. One instance owns one single-flight
// guard; the guard is per-instance state, never package state, so tests and
// multi-market deployments stay independent.
type Coordinator struct {
	cfg      Config
	feeds    []domain.EventFeed
	dedup    domain.EventDedup
	tracker  *tracker.PriceTracker
	runner   CycleRunner
	decimals map[domain.VenueID]VenueDecimals
	logger   *slog.Logger

	inFlight      atomic.Bool
	lastCycleNano atomic.Int64

	// cycles tracks in-flight cycle goroutines so Run drains before returning.
	cycles sync.WaitGroup
}

// New creates a Coordinator over the given feeds.
func New(
	cfg Config,
	feeds []domain.EventFeed,
	dedup domain.EventDedup,
	runner CycleRunner,
	decimals map[domain.VenueID]VenueDecimals,
	logger *slog.Logger,
) *Coordinator {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	return &Coordinator{
		cfg:      cfg,
		feeds:    feeds,
		dedup:    dedup,
		tracker:  tracker.New(),
		runner:   runner,
		decimals: decimals,
		logger:   logger.With(slog.String("component", "coordinator")),
	}
}

// Run starts the feeds and processes events until the context is cancelled.
// A feed error is retried with backoff rather than ending the loop; Run
// returns only on context cancellation, after any in-flight cycle goroutine
// has finished.
func (c *Coordinator) Run(ctx context.Context) error {
	events := make(chan domain.TradeEvent, c.cfg.EventBuffer)

	g, ctx := errgroup.WithContext(ctx)
	for _, feed := range c.feeds {
		feed := feed
		g.Go(func() error {
			return c.runFeed(ctx, feed, events)
		})
	}
	g.Go(func() error {
		c.loop(ctx, events)
		return ctx.Err()
	})

	err := g.Wait()
	c.cycles.Wait()
	if err != nil && !isCancel(err) {
		return fmt.Errorf("coordinator: %w", err)
	}
	return nil
}

// runFeed keeps one feed alive, reconnecting with doubling backoff capped at
// 30s until the context ends.
func (c *Coordinator) runFeed(ctx context.Context, feed domain.EventFeed, out chan<- domain.TradeEvent) error {
	backoff := time.Second
	for {
		err := feed.Run(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("feed stopped, reconnecting",
			slog.String("venue", string(feed.VenueID())),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (c *Coordinator) loop(ctx context.Context, events <-chan domain.TradeEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			c.handle(ctx, ev)
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, ev domain.TradeEvent) {
	if ev.TxID != "" {
		dup, err := c.dedup.Seen(ctx, ev.TxID)
		if err != nil {
			// Dedup backend trouble must not stall the loop; prefer a rare
			// duplicate cycle over missing a trigger.
			c.logger.Warn("dedup check failed", slog.Any("error", err))
		} else if dup {
			return
		}
	}

	dec, ok := c.decimals[ev.Venue]
	if !ok {
		c.logger.Warn("event from unknown venue", slog.String("venue", string(ev.Venue)))
		return
	}
	price, ok := ev.Price(dec.Base, dec.Quote)
	if !ok {
		return
	}

	deviation := c.tracker.Update(ev.Venue, price, ev.ObservedAt)
	c.logger.Debug("event tracked",
		slog.String("venue", string(ev.Venue)),
		slog.Float64("price", price),
		slog.Float64("deviation_pct", deviation),
	)

	if !c.tracker.Exceeded(c.cfg.DeviationPct) {
		return
	}
	if last := c.lastCycleNano.Load(); last > 0 && time.Since(time.Unix(0, last)) < c.cfg.Cooldown {
		return
	}

	// Single flight: events arriving while a cycle runs update the tracker
	// above but never start a second cycle.
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Debug("cycle in flight, trigger skipped", slog.String("tx", ev.TxID))
		return
	}

	c.cycles.Add(1)
	go func(trigger domain.TradeEvent) {
		defer func() {
			// Baseline resets whatever the cycle outcome so the next trigger
			// measures movement from here, not from startup.
			c.tracker.ResetBaseline()
			c.lastCycleNano.Store(time.Now().UnixNano())
			c.inFlight.Store(false)
			c.cycles.Done()
		}()

		outcome, err := c.runner.RunCycle(ctx, trigger)
		if err != nil {
			c.logger.Error("cycle failed",
				slog.String("cycle", outcome.ID),
				slog.String("status", string(outcome.Status)),
				slog.Any("error", err),
			)
			return
		}
		c.logger.Info("cycle finished",
			slog.String("cycle", outcome.ID),
			slog.String("status", string(outcome.Status)),
			slog.Float64("net_usd", outcome.NetUSD),
		)
	}(ev)
}

// Deviations exposes the tracker's current per-venue deviation for the status
// API.
func (c *Coordinator) Deviations() map[domain.VenueID]float64 {
	return c.tracker.Deviations()
}

// InFlight reports whether a cycle is currently running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
