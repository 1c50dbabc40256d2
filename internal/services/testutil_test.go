package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"minimarket/internal/cache"
	"minimarket/internal/database"
	"minimarket/internal/logging"
	"minimarket/internal/models"
	"minimarket/internal/oracle"
	"minimarket/internal/repository"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testProgramID = solana.MustPublicKeyFromBase58("EgEc7fuse6eQ3UwqeWGFncDtbTwozWCy4piydbeRaNrU")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// one connection keeps the shared in-memory database alive and serializes
	// transactions
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	return db
}

type recordingCache struct {
	mu     sync.Mutex
	quotes []cache.Quote
}

func (c *recordingCache) SetQuote(_ context.Context, q cache.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = append(c.quotes, q)
	return nil
}

func (c *recordingCache) GetQuote(_ context.Context, marketID string) (cache.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.quotes) - 1; i >= 0; i-- {
		if c.quotes[i].MarketID == marketID {
			return c.quotes[i], nil
		}
	}
	return cache.Quote{}, cache.ErrQuoteNotFound
}

type testEnv struct {
	repo       *repository.Repository
	markets    *MarketService
	trading    *TradingService
	resolution *ResolutionService
	payouts    *PayoutService
	quotes     *recordingCache
	creator    string
	feed       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := repository.NewRepository(setupTestDB(t))
	quotes := &recordingCache{}
	env := &testEnv{
		repo:    repo,
		quotes:  quotes,
		creator: solana.NewWallet().PublicKey().String(),
		feed:    solana.NewWallet().PublicKey().String(),
	}
	env.markets = NewMarketService(repo, testProgramID, nil, MarketSettings{
		MinLiquidity:        100000,
		ActivationThreshold: 100000000,
	}, logging.Nop())
	env.trading = NewTradingService(repo, quotes, logging.Nop())
	env.resolution = NewResolutionService(repo, oracle.StaticSource{}, logging.Nop())
	env.payouts = NewPayoutService(repo, logging.Nop())
	return env
}

func (e *testEnv) createMarket(t *testing.T, marketID string, tokenAmount uint64) *models.Market {
	t.Helper()
	market, err := e.markets.CreateMarket(context.Background(), e.creator, models.CreateMarketRequest{
		MarketParams: models.MarketParams{
			MarketID:    marketID,
			Value:       decimal.NewFromInt(100),
			Range:       5,
			TokenAmount: tokenAmount,
			TokenPrice:  500000,
			Date:        1700000000000,
		},
		Feed: e.feed,
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return market
}

// activeMarket creates a market and funds it past the activation threshold
func (e *testEnv) activeMarket(t *testing.T, marketID string, tokenAmount uint64) *models.Market {
	t.Helper()
	ctx := context.Background()
	e.createMarket(t, marketID, tokenAmount)
	if _, err := e.markets.PrepareMarket(ctx, marketID, e.creator); err != nil {
		t.Fatalf("PrepareMarket: %v", err)
	}
	market, err := e.markets.AddLiquidity(ctx, marketID, e.creator, 100000000)
	if err != nil {
		t.Fatalf("AddLiquidity: %v", err)
	}
	if market.MarketStatus != models.MarketStatusActive {
		t.Fatalf("market not active after funding: %s", market.MarketStatus)
	}
	return market
}
