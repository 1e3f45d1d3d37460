package coordinator

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var solDecimals = map[domain.VenueID]VenueDecimals{
	domain.VenueSolana: {Base: 6, Quote: 9},
}

// event builds a 1-token swap whose implied price is quoteLamports * 1e-3
// lamports-per-microtoken, normalized.
func event(tx string, quoteLamports int64) domain.TradeEvent {
	return domain.TradeEvent{
		Venue:       domain.VenueSolana,
		Side:        domain.SideBuy,
		BaseAmount:  big.NewInt(1_000_000),
		QuoteAmount: big.NewInt(quoteLamports),
		TxID:        tx,
		ObservedAt:  time.Now(),
	}
}

type stubRunner struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (r *stubRunner) RunCycle(_ context.Context, _ domain.TradeEvent) (domain.CycleOutcome, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		<-r.release
	}
	return domain.CycleOutcome{ID: "cycle-1", Status: domain.CycleNoOpportunity}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestCoordinator(cfg Config, runner CycleRunner) *Coordinator {
	return New(cfg, nil, NewMemoryDedup(time.Minute), runner, solDecimals, testLogger())
}

func TestMemoryDedup(t *testing.T) {
	d := NewMemoryDedup(20 * time.Millisecond)
	ctx := context.Background()

	if seen, _ := d.Seen(ctx, "tx-1"); seen {
		t.Fatal("first sighting must not be a duplicate")
	}
	if seen, _ := d.Seen(ctx, "tx-1"); !seen {
		t.Fatal("second sighting inside TTL must be a duplicate")
	}

	time.Sleep(30 * time.Millisecond)
	if seen, _ := d.Seen(ctx, "tx-1"); seen {
		t.Fatal("sighting after TTL expiry must not be a duplicate")
	}
}

func TestSingleCycleWhileInFlight(t *testing.T) {
	runner := &stubRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	c := newTestCoordinator(Config{DeviationPct: 1, Cooldown: 0, EventBuffer: 8}, runner)
	ctx := context.Background()

	c.handle(ctx, event("seed", 30_000_000))  // seeds baseline at 0.03
	c.handle(ctx, event("move1", 30_600_000)) // +2%, triggers

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("cycle did not start")
	}
	if !c.InFlight() {
		t.Fatal("guard not held during cycle")
	}

	// Two more qualifying events while the cycle runs: tracked, not triggered.
	c.handle(ctx, event("move2", 30_700_000))
	c.handle(ctx, event("move3", 30_800_000))
	if got := runner.callCount(); got != 1 {
		t.Fatalf("cycles started got=%d want=1", got)
	}

	close(runner.release)
	c.cycles.Wait()
	if c.InFlight() {
		t.Fatal("guard not released after cycle")
	}
}

func TestBaselineResetsAfterCycle(t *testing.T) {
	runner := &stubRunner{started: make(chan struct{}, 1)}
	c := newTestCoordinator(Config{DeviationPct: 1, Cooldown: 0, EventBuffer: 8}, runner)
	ctx := context.Background()

	c.handle(ctx, event("seed", 30_000_000))
	c.handle(ctx, event("move1", 30_600_000))
	<-runner.started
	c.cycles.Wait()

	// The last tracked price (30.6M) is the new baseline: a nearby price must
	// not trigger, a further 2%+ move must.
	c.handle(ctx, event("near", 30_800_000)) // +0.65% from new baseline
	if got := runner.callCount(); got != 1 {
		t.Fatalf("near-baseline event retriggered: cycles=%d", got)
	}

	c.handle(ctx, event("move2", 31_416_000)) // +2.7% from new baseline
	<-runner.started
	c.cycles.Wait()
	if got := runner.callCount(); got != 2 {
		t.Fatalf("cycles got=%d want=2", got)
	}
}

func TestCooldownSuppressesRetrigger(t *testing.T) {
	runner := &stubRunner{started: make(chan struct{}, 1)}
	c := newTestCoordinator(Config{DeviationPct: 1, Cooldown: time.Hour, EventBuffer: 8}, runner)
	ctx := context.Background()

	c.handle(ctx, event("seed", 30_000_000))
	c.handle(ctx, event("move1", 30_600_000))
	<-runner.started
	c.cycles.Wait()

	c.handle(ctx, event("move2", 31_416_000))
	if got := runner.callCount(); got != 1 {
		t.Fatalf("cooldown violated: cycles=%d", got)
	}
}

func TestDuplicateTxSuppressed(t *testing.T) {
	runner := &stubRunner{}
	c := newTestCoordinator(Config{DeviationPct: 1, Cooldown: 0, EventBuffer: 8}, runner)
	ctx := context.Background()

	c.handle(ctx, event("seed", 30_000_000))
	// Redelivery of the seed tx with a moved price: dedup wins, no trigger.
	c.handle(ctx, event("seed", 30_600_000))

	if got := runner.callCount(); got != 0 {
		t.Fatalf("duplicate tx started a cycle: %d", got)
	}
}

type scriptedFeed struct {
	venue  domain.VenueID
	events []domain.TradeEvent
}

func (f *scriptedFeed) VenueID() domain.VenueID { return f.venue }

func (f *scriptedFeed) Run(ctx context.Context, out chan<- domain.TradeEvent) error {
	for _, ev := range f.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunConsumesFeedEvents(t *testing.T) {
	runner := &stubRunner{started: make(chan struct{}, 1)}
	feed := &scriptedFeed{
		venue: domain.VenueSolana,
		events: []domain.TradeEvent{
			event("seed", 30_000_000),
			event("move1", 30_600_000),
		},
	}
	c := New(
		Config{DeviationPct: 1, Cooldown: 0, EventBuffer: 8},
		[]domain.EventFeed{feed},
		NewMemoryDedup(time.Minute),
		runner,
		solDecimals,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-runner.started:
	case <-time.After(2 * time.Second):
		t.Fatal("feed event did not trigger a cycle")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on cancellation", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
