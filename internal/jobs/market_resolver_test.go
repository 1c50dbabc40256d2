package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"minimarket/internal/logging"
	"minimarket/internal/models"
)

type fakeResolver struct {
	mu       sync.Mutex
	due      []models.Market
	listErr  error
	failing  map[string]bool
	resolved []string
	asked    time.Time
}

func (f *fakeResolver) DueMarkets(_ context.Context, now time.Time, _ int) ([]models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = now
	return f.due, f.listErr
}

func (f *fakeResolver) ResolveFromOracle(_ context.Context, marketID string) (*models.Market, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[marketID] {
		return nil, errors.New("feed unavailable")
	}
	f.resolved = append(f.resolved, marketID)
	return &models.Market{MarketID: marketID, MarketStatus: models.MarketStatusResolved, Result: true}, nil
}

func TestRunOnceResolvesDueMarkets(t *testing.T) {
	fake := &fakeResolver{
		due:     []models.Market{{MarketID: "a"}, {MarketID: "b"}, {MarketID: "c"}},
		failing: map[string]bool{"b": true},
	}
	fixed := time.UnixMilli(1700000000000)
	mr := NewMarketResolver(fake, time.Minute, logging.Nop())
	mr.now = func() time.Time { return fixed }

	if got := mr.RunOnce(context.Background()); got != 2 {
		t.Errorf("resolved = %d, want 2", got)
	}
	if len(fake.resolved) != 2 || fake.resolved[0] != "a" || fake.resolved[1] != "c" {
		t.Errorf("resolved markets = %v", fake.resolved)
	}
	if !fake.asked.Equal(fixed) {
		t.Errorf("queried at %v, want %v", fake.asked, fixed)
	}

	// the failed market is retried on the next tick
	fake.failing = nil
	fake.due = []models.Market{{MarketID: "b"}}
	if got := mr.RunOnce(context.Background()); got != 1 {
		t.Errorf("retry resolved = %d, want 1", got)
	}
}

func TestRunOnceListError(t *testing.T) {
	fake := &fakeResolver{listErr: errors.New("db down")}
	mr := NewMarketResolver(fake, time.Minute, logging.Nop())
	if got := mr.RunOnce(context.Background()); got != 0 {
		t.Errorf("resolved = %d, want 0", got)
	}
}

func TestStartStop(t *testing.T) {
	fake := &fakeResolver{due: []models.Market{{MarketID: "x"}}}
	mr := NewMarketResolver(fake, 5*time.Millisecond, logging.Nop())

	done := make(chan struct{})
	go func() {
		mr.Start()
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		fake.mu.Lock()
		n := len(fake.resolved)
		fake.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("resolver never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mr.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver did not stop")
	}
}

type blockingResolver struct {
	entered chan struct{}
	calls   int
	err     error
}

func (b *blockingResolver) DueMarkets(context.Context, time.Time, int) ([]models.Market, error) {
	return []models.Market{{MarketID: "slow"}, {MarketID: "next"}}, nil
}

// ResolveFromOracle hangs like an unresponsive feed until ctx ends
func (b *blockingResolver) ResolveFromOracle(ctx context.Context, _ string) (*models.Market, error) {
	b.calls++
	if b.calls == 1 {
		close(b.entered)
	}
	<-ctx.Done()
	b.err = ctx.Err()
	return nil, ctx.Err()
}

func TestStopCancelsInFlightTick(t *testing.T) {
	slow := &blockingResolver{entered: make(chan struct{})}
	mr := NewMarketResolver(slow, 5*time.Millisecond, logging.Nop())

	done := make(chan struct{})
	go func() {
		mr.Start()
		close(done)
	}()

	select {
	case <-slow.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver never reached the feed read")
	}

	mr.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver stayed blocked on the feed after Stop")
	}
	if !errors.Is(slow.err, context.Canceled) {
		t.Errorf("feed read ended with %v, want context.Canceled", slow.err)
	}
	if slow.calls != 1 {
		t.Errorf("resolve calls = %d, want 1: the tick should stop after cancellation", slow.calls)
	}

	// a second Stop is harmless
	mr.Stop()
}
