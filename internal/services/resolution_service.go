package services

import (
	"context"
	"fmt"
	"time"

	"minimarket/internal/models"
	"minimarket/internal/oracle"
	"minimarket/internal/repository"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ResolutionService settles ACTIVE markets against their oracle feed
type ResolutionService struct {
	repo   *repository.Repository
	source oracle.Source
	log    zerolog.Logger
}

func NewResolutionService(repo *repository.Repository, source oracle.Source, log zerolog.Logger) *ResolutionService {
	return &ResolutionService{repo: repo, source: source, log: log}
}

// Outcome is YES when the observed price lies within value ± range.
func Outcome(value decimal.Decimal, rng uint8, observed decimal.Decimal) bool {
	return observed.Sub(value).Abs().LessThanOrEqual(decimal.NewFromInt(int64(rng)))
}

// Resolve settles a market with an observed price
func (s *ResolutionService) Resolve(ctx context.Context, marketID string, observed decimal.Decimal) (*models.Market, error) {
	market, err := s.repo.WithMarket(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		if err := advance(m, models.MarketStatusResolved); err != nil {
			return err
		}
		m.Result = Outcome(m.Value, m.Range, observed)
		return nil
	})
	if err != nil {
		return nil, lookupErr(err)
	}

	s.log.Info().
		Str("market_id", marketID).
		Str("observed", observed.String()).
		Str("value", market.Value.String()).
		Uint8("range", market.Range).
		Bool("result", market.Result).
		Msg("market resolved")
	return market, nil
}

// ResolveFromOracle reads the market's feed and settles it
func (s *ResolutionService) ResolveFromOracle(ctx context.Context, marketID string) (*models.Market, error) {
	market, err := s.repo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if market.MarketStatus != models.MarketStatusActive {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, market.MarketStatus)
	}

	observed, err := s.source.LatestPrice(ctx, market.Feed)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed %s: %w", market.Feed, err)
	}
	return s.Resolve(ctx, marketID, observed)
}

// DueMarkets returns ACTIVE markets whose date has passed at now
func (s *ResolutionService) DueMarkets(ctx context.Context, now time.Time, limit int) ([]models.Market, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListExpiredMarkets(ctx, models.MarketStatusActive, now.UnixMilli(), limit)
}

// RegisterFeed stores the HTTP source behind a feed address. The first
// registrant owns the feed; later updates must come from the same wallet
// and are refused while an unresolved market settles against it.
func (s *ResolutionService) RegisterFeed(ctx context.Context, registrant string, req models.RegisterFeedRequest) (*models.OracleFeed, error) {
	if _, err := solana.PublicKeyFromBase58(req.Feed); err != nil {
		return nil, fmt.Errorf("%w: feed: %v", ErrInvalidParams, err)
	}
	if err := oracle.ValidateDataURL(req.DataURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if err := oracle.ValidateTask(req.Task); err != nil {
		return nil, fmt.Errorf("%w: task: %v", ErrInvalidParams, err)
	}

	existing, err := s.repo.GetFeed(ctx, req.Feed)
	switch {
	case err == nil:
		if existing.Registrant != registrant {
			return nil, fmt.Errorf("%w: feed %s belongs to %s", ErrForbidden, req.Feed, existing.Registrant)
		}
		open, err := s.repo.CountOpenMarketsForFeed(ctx, req.Feed)
		if err != nil {
			return nil, fmt.Errorf("failed to check markets on feed: %w", err)
		}
		if open > 0 {
			return nil, fmt.Errorf("%w: %d unresolved markets use feed %s", ErrInvalidStatus, open, req.Feed)
		}
	case !repository.IsNotFound(err):
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	feed := &models.OracleFeed{
		Feed:       req.Feed,
		Registrant: registrant,
		Name:       req.Name,
		DataURL:    req.DataURL,
		Task:       req.Task,
	}
	if existing != nil {
		feed.CreatedAt = existing.CreatedAt
		err = s.repo.SaveFeed(ctx, feed)
	} else {
		err = s.repo.CreateFeed(ctx, feed)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register feed: %w", err)
	}
	if c, ok := s.source.(interface{ Invalidate(feed string) }); ok {
		c.Invalidate(feed.Feed)
	}

	s.log.Info().
		Str("feed", feed.Feed).
		Str("name", feed.Name).
		Str("registrant", registrant).
		Bool("update", existing != nil).
		Msg("feed registered")
	return feed, nil
}

// GetFeed retrieves a registered feed
func (s *ResolutionService) GetFeed(ctx context.Context, address string) (*models.OracleFeed, error) {
	feed, err := s.repo.GetFeed(ctx, address)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrFeedNotFound
		}
		return nil, err
	}
	return feed, nil
}
