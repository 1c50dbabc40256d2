package jobs

import (
	"context"
	"sync"
	"time"

	"minimarket/internal/models"

	"github.com/rs/zerolog"
)

// Resolver is the part of the resolution service the job drives
type Resolver interface {
	DueMarkets(ctx context.Context, now time.Time, limit int) ([]models.Market, error)
	ResolveFromOracle(ctx context.Context, marketID string) (*models.Market, error)
}

// batchSize bounds the markets settled per tick
const batchSize = 100

// MarketResolver settles ACTIVE markets once their date has passed
type MarketResolver struct {
	resolver Resolver
	interval time.Duration
	now      func() time.Time
	log      zerolog.Logger
	stopChan chan struct{}
	stopOnce sync.Once

	// ctx is cancelled by Stop so an in-flight tick stops its feed reads
	ctx    context.Context
	cancel context.CancelFunc
}

// NewMarketResolver creates a new market resolver job
func NewMarketResolver(resolver Resolver, interval time.Duration, log zerolog.Logger) *MarketResolver {
	ctx, cancel := context.WithCancel(context.Background())
	return &MarketResolver{
		resolver: resolver,
		interval: interval,
		now:      time.Now,
		log:      log,
		stopChan: make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the resolution loop. It blocks until Stop is called.
func (mr *MarketResolver) Start() {
	mr.log.Info().Dur("interval", mr.interval).Msg("starting market resolver")

	ticker := time.NewTicker(mr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mr.RunOnce(mr.ctx)
		case <-mr.stopChan:
			mr.log.Info().Msg("stopping market resolver")
			return
		}
	}
}

// Stop stops the resolution loop and cancels the tick in progress
func (mr *MarketResolver) Stop() {
	mr.stopOnce.Do(func() {
		mr.cancel()
		close(mr.stopChan)
	})
}

// RunOnce resolves every due market and returns how many were settled.
// Failures are logged and retried on the next tick.
func (mr *MarketResolver) RunOnce(ctx context.Context) int {
	markets, err := mr.resolver.DueMarkets(ctx, mr.now(), batchSize)
	if err != nil {
		mr.log.Error().Err(err).Msg("failed to list due markets")
		return 0
	}
	if len(markets) == 0 {
		return 0
	}

	mr.log.Debug().Int("count", len(markets)).Msg("checking due markets")

	resolved := 0
	for _, market := range markets {
		if ctx.Err() != nil {
			mr.log.Info().Int("resolved", resolved).Msg("resolver tick cancelled")
			return resolved
		}
		m, err := mr.resolver.ResolveFromOracle(ctx, market.MarketID)
		if err != nil {
			mr.log.Warn().Err(err).Str("market_id", market.MarketID).Msg("failed to resolve market")
			continue
		}
		resolved++
		mr.log.Info().Str("market_id", m.MarketID).Bool("result", m.Result).Msg("market resolved by job")
	}

	if resolved > 0 {
		mr.log.Info().Int("resolved", resolved).Msg("resolver tick complete")
	}
	return resolved
}
