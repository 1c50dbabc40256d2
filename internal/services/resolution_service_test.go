package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"minimarket/internal/logging"
	"minimarket/internal/models"
	"minimarket/internal/oracle"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func TestOutcome(t *testing.T) {
	value := decimal.NewFromInt(100)
	tests := []struct {
		observed string
		rng      uint8
		want     bool
	}{
		{"100", 0, true},
		{"100.01", 0, false},
		{"105", 5, true},
		{"95", 5, true},
		{"105.5", 5, false},
		{"94.99", 5, false},
	}
	for _, tt := range tests {
		if got := Outcome(value, tt.rng, decimal.RequireFromString(tt.observed)); got != tt.want {
			t.Errorf("Outcome(100, %d, %s) = %v, want %v", tt.rng, tt.observed, got, tt.want)
		}
	}
}

func TestResolveRequiresActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createMarket(t, "early", 1000)

	if _, err := env.resolution.Resolve(ctx, "early", decimal.NewFromInt(100)); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}

	env.activeMarket(t, "ready", 1000)
	market, err := env.resolution.Resolve(ctx, "ready", decimal.NewFromInt(103))
	if err != nil {
		t.Fatal(err)
	}
	if market.MarketStatus != models.MarketStatusResolved || !market.Result {
		t.Errorf("status=%s result=%v", market.MarketStatus, market.Result)
	}
	if _, err := env.resolution.Resolve(ctx, "ready", decimal.NewFromInt(0)); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("second resolve: expected ErrInvalidStatus, got %v", err)
	}

	if _, err := env.trading.PlaceBet(ctx, env.creator, models.BettingParams{MarketID: "ready", Amount: 1, IsYes: true}); !errors.Is(err, ErrNotTradable) {
		t.Errorf("bet on RESOLVED market: expected ErrNotTradable, got %v", err)
	}
}

func TestResolveFromOracle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	source := oracle.StaticSource{env.feed: decimal.NewFromInt(120)}
	env.resolution = NewResolutionService(env.repo, source, logging.Nop())
	env.activeMarket(t, "oracle", 1000)

	market, err := env.resolution.ResolveFromOracle(ctx, "oracle")
	if err != nil {
		t.Fatal(err)
	}
	if market.MarketStatus != models.MarketStatusResolved || market.Result {
		t.Errorf("status=%s result=%v, want RESOLVED/false", market.MarketStatus, market.Result)
	}

	if _, err := env.resolution.ResolveFromOracle(ctx, "oracle"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

type invalidatingSource struct {
	oracle.StaticSource
	dropped []string
}

func (s *invalidatingSource) Invalidate(feed string) {
	s.dropped = append(s.dropped, feed)
}

func TestRegisterFeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := solana.NewWallet().PublicKey().String()
	feed := solana.NewWallet().PublicKey().String()
	source := &invalidatingSource{}
	env.resolution = NewResolutionService(env.repo, source, logging.Nop())

	req := models.RegisterFeedRequest{
		Feed:    feed,
		Name:    "SOL/USD",
		DataURL: "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd",
		Task:    "$.solana.usd",
	}

	bad := req
	bad.Feed = "bad"
	if _, err := env.resolution.RegisterFeed(ctx, owner, bad); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams, got %v", err)
	}
	bad = req
	bad.Task = "$..usd"
	if _, err := env.resolution.RegisterFeed(ctx, owner, bad); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for bad task, got %v", err)
	}

	if _, err := env.resolution.RegisterFeed(ctx, owner, req); err != nil {
		t.Fatal(err)
	}

	got, err := env.resolution.GetFeed(ctx, feed)
	if err != nil {
		t.Fatal(err)
	}
	if got.Task != "$.solana.usd" || got.Registrant != owner {
		t.Errorf("feed = %+v", got)
	}
	if _, err := env.resolution.GetFeed(ctx, "unknown"); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("expected ErrFeedNotFound, got %v", err)
	}

	// the owner may repoint a feed nothing depends on yet
	req.Task = "$.solana.eur"
	if _, err := env.resolution.RegisterFeed(ctx, owner, req); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if len(source.dropped) != 2 || source.dropped[1] != feed {
		t.Errorf("invalidated = %v", source.dropped)
	}
}

func TestRegisterFeedRejectsOtherWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := solana.NewWallet().PublicKey().String()
	attacker := solana.NewWallet().PublicKey().String()

	req := models.RegisterFeedRequest{
		Feed:    env.feed,
		Name:    "SOL/USD",
		DataURL: "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd",
		Task:    "$.solana.usd",
	}
	if _, err := env.resolution.RegisterFeed(ctx, owner, req); err != nil {
		t.Fatal(err)
	}

	hijack := req
	hijack.DataURL = "https://attacker.example/price"
	if _, err := env.resolution.RegisterFeed(ctx, attacker, hijack); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	got, err := env.resolution.GetFeed(ctx, env.feed)
	if err != nil {
		t.Fatal(err)
	}
	if got.DataURL != req.DataURL || got.Registrant != owner {
		t.Errorf("feed was overwritten: %+v", got)
	}
}

func TestRegisterFeedLockedByOpenMarket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	req := models.RegisterFeedRequest{
		Feed:    env.feed,
		Name:    "SOL/USD",
		DataURL: "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd",
		Task:    "$.solana.usd",
	}
	if _, err := env.resolution.RegisterFeed(ctx, env.creator, req); err != nil {
		t.Fatal(err)
	}
	env.activeMarket(t, "locked", 1000)

	req.Task = "$.solana.eur"
	if _, err := env.resolution.RegisterFeed(ctx, env.creator, req); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus while market is open, got %v", err)
	}

	if _, err := env.resolution.Resolve(ctx, "locked", decimal.NewFromInt(100)); err != nil {
		t.Fatal(err)
	}
	if _, err := env.resolution.RegisterFeed(ctx, env.creator, req); err != nil {
		t.Errorf("update after resolution: %v", err)
	}
}

func TestRegisterFeedRejectsInternalURL(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := solana.NewWallet().PublicKey().String()

	for _, raw := range []string{
		"http://169.254.169.254/latest/meta-data/iam/security-credentials/",
		"http://localhost:6379/",
		"http://10.1.2.3/price",
		"file:///etc/passwd",
	} {
		_, err := env.resolution.RegisterFeed(ctx, owner, models.RegisterFeedRequest{
			Feed:    env.feed,
			Name:    "internal",
			DataURL: raw,
			Task:    "$.price",
		})
		if !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: expected ErrInvalidParams, got %v", raw, err)
		}
	}
	if _, err := env.resolution.GetFeed(ctx, env.feed); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("internal feed was stored: %v", err)
	}
}

func TestDueMarkets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activeMarket(t, "due", 1000)
	env.createMarket(t, "not-active", 1000)

	before := time.UnixMilli(1700000000000 - 1)
	if due, err := env.resolution.DueMarkets(ctx, before, 10); err != nil || len(due) != 0 {
		t.Fatalf("before date: due=%v err=%v", due, err)
	}

	due, err := env.resolution.DueMarkets(ctx, time.UnixMilli(1700000000000), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].MarketID != "due" {
		t.Errorf("due = %+v", due)
	}
}
