package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"minimarket/internal/cache"
	"minimarket/internal/fixedpoint"
	"minimarket/internal/models"
	"minimarket/internal/repository"

	"github.com/rs/zerolog"
)

// TradingService executes bets against market pools
type TradingService struct {
	repo   *repository.Repository
	quotes cache.QuoteCache
	log    zerolog.Logger
}

func NewTradingService(repo *repository.Repository, quotes cache.QuoteCache, log zerolog.Logger) *TradingService {
	if quotes == nil {
		quotes = cache.NopQuoteCache{}
	}
	return &TradingService{repo: repo, quotes: quotes, log: log}
}

// ============================================================================
// QUOTES
// ============================================================================

// betCost is the collateral owed for amount tokens at the side's current price
func betCost(m *models.Market, params models.BettingParams) (uint64, error) {
	return fixedpoint.MulDiv(params.Amount, m.PriceOf(params.IsYes), fixedpoint.PriceScale)
}

func checkTradable(m *models.Market, params models.BettingParams) error {
	if params.Amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParams)
	}
	if !m.MarketStatus.Tradable() {
		return fmt.Errorf("%w: status %s", ErrNotTradable, m.MarketStatus)
	}
	return nil
}

// QuoteBet returns the pool a bet would produce without executing it
func (s *TradingService) QuoteBet(ctx context.Context, params models.BettingParams) (*models.BetQuote, error) {
	market, err := s.repo.GetMarket(ctx, params.MarketID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if err := checkTradable(market, params); err != nil {
		return nil, err
	}

	cost, err := betCost(market, params)
	if err != nil {
		return nil, err
	}
	pool, err := market.QuoteTokenPrice(params.Amount, params.IsYes)
	if err != nil {
		return nil, err
	}
	if err := pool.Storable(); err != nil {
		return nil, err
	}

	return &models.BetQuote{
		MarketID:    market.MarketID,
		IsYes:       params.IsYes,
		Amount:      params.Amount,
		Cost:        cost,
		PriceBefore: market.PriceOf(params.IsYes),
		Pool:        pool,
	}, nil
}

// ============================================================================
// EXECUTION
// ============================================================================

// PlaceBet buys amount of one side for user. The pool update, the bet record
// and the position change commit together or not at all.
func (s *TradingService) PlaceBet(ctx context.Context, user string, params models.BettingParams) (*models.Bet, error) {
	var bet *models.Bet

	market, err := s.repo.WithMarket(ctx, params.MarketID, func(tx *repository.Repository, m *models.Market) error {
		if err := checkTradable(m, params); err != nil {
			return err
		}

		priceBefore := m.PriceOf(params.IsYes)
		cost, err := betCost(m, params)
		if err != nil {
			return err
		}

		if err := m.SetTokenPrice(params.Amount, params.IsYes); err != nil {
			return err
		}
		if err := m.Pool().Storable(); err != nil {
			return err
		}

		position, err := tx.GetOrInitPosition(ctx, m.MarketID, user)
		if err != nil {
			return fmt.Errorf("failed to load position: %w", err)
		}
		if params.IsYes {
			position.YesShares, err = fixedpoint.Add(position.YesShares, params.Amount)
		} else {
			position.NoShares, err = fixedpoint.Add(position.NoShares, params.Amount)
		}
		if err != nil {
			return err
		}
		if position.Cost, err = fixedpoint.Add(position.Cost, cost); err != nil {
			return err
		}
		if err := tx.SavePosition(ctx, position); err != nil {
			return fmt.Errorf("failed to save position: %w", err)
		}

		bet = &models.Bet{
			MarketID:    m.MarketID,
			UserAddress: user,
			IsYes:       params.IsYes,
			Amount:      params.Amount,
			Cost:        cost,
			PriceBefore: priceBefore,
			TokenPriceA: m.TokenPriceA,
			TokenPriceB: m.TokenPriceB,
		}
		return tx.CreateBet(ctx, bet)
	})
	if err != nil {
		err = lookupErr(err)
		if errors.Is(err, fixedpoint.ErrArithmetic) {
			s.log.Warn().Str("market_id", params.MarketID).Uint64("amount", params.Amount).Bool("is_yes", params.IsYes).Msg("bet rejected by pool arithmetic")
		}
		return nil, err
	}

	if err := s.quotes.SetQuote(ctx, cache.QuoteFromMarket(market, time.Now())); err != nil {
		s.log.Warn().Err(err).Str("market_id", market.MarketID).Msg("failed to publish quote")
	}

	s.log.Info().
		Str("market_id", market.MarketID).
		Str("user", user).
		Str("side", models.SideFor(params.IsYes)).
		Uint64("amount", params.Amount).
		Uint64("cost", bet.Cost).
		Uint64("price_a", market.TokenPriceA).
		Uint64("price_b", market.TokenPriceB).
		Msg("bet placed")
	return bet, nil
}

// GetPrices returns the latest quoted prices, from cache when available
func (s *TradingService) GetPrices(ctx context.Context, marketID string) (*models.MarketPricesResponse, error) {
	if q, err := s.quotes.GetQuote(ctx, marketID); err == nil {
		m := models.Market{
			MarketID:     q.MarketID,
			TokenAAmount: q.TokenAAmount,
			TokenBAmount: q.TokenBAmount,
			TokenPriceA:  q.TokenPriceA,
			TokenPriceB:  q.TokenPriceB,
			UpdatedAt:    q.UpdatedAt,
		}
		resp := m.ToPricesResponse()
		return &resp, nil
	} else if !errors.Is(err, cache.ErrQuoteNotFound) {
		s.log.Warn().Err(err).Str("market_id", marketID).Msg("quote cache read failed")
	}

	market, err := s.repo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, lookupErr(err)
	}
	resp := market.ToPricesResponse()
	return &resp, nil
}

// ListBets returns a market's bets, newest first
func (s *TradingService) ListBets(ctx context.Context, marketID string, limit, offset int) ([]models.Bet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListBets(ctx, marketID, limit, offset)
}

// ListPositions returns all positions held by a user
func (s *TradingService) ListPositions(ctx context.Context, user string) ([]models.Position, error) {
	return s.repo.ListPositions(ctx, user)
}
