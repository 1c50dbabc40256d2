package services

import (
	"context"
	"errors"
	"fmt"

	"minimarket/internal/blockchain"
	"minimarket/internal/fixedpoint"
	"minimarket/internal/models"
	"minimarket/internal/repository"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

// MarketReader reads a market account from the chain
type MarketReader interface {
	FetchMarket(ctx context.Context, address solana.PublicKey) (*blockchain.MarketAccount, error)
}

// MarketSettings holds the lifecycle thresholds of markets
type MarketSettings struct {
	MinLiquidity        uint64
	ActivationThreshold uint64
}

// MarketService creates markets and walks them through preparation and
// funding until they open for trading.
type MarketService struct {
	repo      *repository.Repository
	programID solana.PublicKey
	chain     MarketReader
	settings  MarketSettings
	log       zerolog.Logger
}

func NewMarketService(
	repo *repository.Repository,
	programID solana.PublicKey,
	chain MarketReader,
	settings MarketSettings,
	log zerolog.Logger,
) *MarketService {
	return &MarketService{
		repo:      repo,
		programID: programID,
		chain:     chain,
		settings:  settings,
		log:       log,
	}
}

// lookupErr maps store errors to service errors
func lookupErr(err error) error {
	if repository.IsNotFound(err) {
		return ErrMarketNotFound
	}
	return err
}

// ============================================================================
// CREATION
// ============================================================================

// CreateMarket derives the market and mint addresses and stores a freshly
// initialized market in CREATED status.
func (s *MarketService) CreateMarket(ctx context.Context, creator string, req models.CreateMarketRequest) (*models.Market, error) {
	if _, err := solana.PublicKeyFromBase58(creator); err != nil {
		return nil, fmt.Errorf("%w: creator: %v", ErrInvalidParams, err)
	}
	if _, err := solana.PublicKeyFromBase58(req.Feed); err != nil {
		return nil, fmt.Errorf("%w: feed: %v", ErrInvalidParams, err)
	}
	if err := blockchain.ValidateMarketID(req.MarketID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if req.TokenAmount == 0 {
		return nil, fmt.Errorf("%w: token_amount must be positive", ErrInvalidParams)
	}
	if req.TokenAmount > fixedpoint.MaxStored {
		return nil, fmt.Errorf("%w: token_amount above %d", ErrInvalidParams, fixedpoint.MaxStored)
	}
	if req.TokenPrice > fixedpoint.PriceScale {
		return nil, fmt.Errorf("%w: token_price above %d", ErrInvalidParams, fixedpoint.PriceScale)
	}
	if req.Date <= 0 {
		return nil, fmt.Errorf("%w: date must be positive", ErrInvalidParams)
	}

	exists, err := s.repo.MarketExists(ctx, req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("failed to check market: %w", err)
	}
	if exists {
		return nil, ErrMarketExists
	}

	address, bump, err := blockchain.FindMarketAddress(s.programID, req.MarketID)
	if err != nil {
		return nil, err
	}
	mintA, mintB, err := blockchain.FindMintAddresses(s.programID, address)
	if err != nil {
		return nil, err
	}

	market := &models.Market{
		MarketID: req.MarketID,
		Address:  address.String(),
		Bump:     bump,
	}
	market.UpdateMarketSettings(req.MarketParams, models.MarketIdentity{
		Creator: creator,
		Feed:    req.Feed,
		TokenA:  mintA.String(),
		TokenB:  mintB.String(),
	})

	if err := s.repo.CreateMarket(ctx, market); err != nil {
		return nil, fmt.Errorf("failed to create market: %w", err)
	}

	s.log.Info().
		Str("market_id", market.MarketID).
		Str("address", market.Address).
		Str("creator", creator).
		Uint64("token_amount", req.TokenAmount).
		Msg("market created")
	return market, nil
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// PrepareMarket marks the position tokens as minted: CREATED -> PREPARE.
// Only the creator may prepare a market.
func (s *MarketService) PrepareMarket(ctx context.Context, marketID, caller string) (*models.Market, error) {
	market, err := s.repo.WithMarket(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		if m.Creator != caller {
			return ErrForbidden
		}
		return advance(m, models.MarketStatusPrepare)
	})
	if err != nil {
		return nil, lookupErr(err)
	}

	s.log.Info().Str("market_id", marketID).Msg("market prepared")
	return market, nil
}

// AddLiquidity credits a deposit to a PREPARE market and opens it once the
// total reserve reaches the activation threshold.
func (s *MarketService) AddLiquidity(ctx context.Context, marketID, investor string, amount uint64) (*models.Market, error) {
	if amount < s.settings.MinLiquidity {
		return nil, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, s.settings.MinLiquidity)
	}

	market, err := s.repo.WithMarket(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		if m.MarketStatus != models.MarketStatusPrepare {
			return fmt.Errorf("%w: %s", ErrInvalidStatus, m.MarketStatus)
		}

		total, err := fixedpoint.Add(m.TotalReserve, amount)
		if err != nil {
			return err
		}
		m.TotalReserve = total

		if m.TotalReserve >= s.settings.ActivationThreshold {
			if err := advance(m, models.MarketStatusActive); err != nil {
				return err
			}
		}

		return tx.CreateDeposit(ctx, &models.LiquidityDeposit{
			MarketID: m.MarketID,
			Investor: investor,
			Amount:   amount,
		})
	})
	if err != nil {
		return nil, lookupErr(err)
	}

	s.log.Info().
		Str("market_id", marketID).
		Str("investor", investor).
		Uint64("amount", amount).
		Uint64("total_reserve", market.TotalReserve).
		Str("status", string(market.MarketStatus)).
		Msg("liquidity added")
	return market, nil
}

// TransitionStatus advances a market by exactly one lifecycle step
func (s *MarketService) TransitionStatus(ctx context.Context, marketID string, next models.MarketStatus) (*models.Market, error) {
	market, err := s.repo.WithMarket(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		return advance(m, next)
	})
	if err != nil {
		return nil, lookupErr(err)
	}
	return market, nil
}

// advance applies a status change after checking it is a single forward step
func advance(m *models.Market, next models.MarketStatus) error {
	if !m.MarketStatus.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatus, m.MarketStatus, next)
	}
	m.UpdateMarketStatus(next)
	return nil
}

// ============================================================================
// QUERIES
// ============================================================================

// GetMarket retrieves a market by id
func (s *MarketService) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	market, err := s.repo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, lookupErr(err)
	}
	return market, nil
}

// ListMarkets returns markets filtered by an optional status
func (s *MarketService) ListMarkets(ctx context.Context, status models.MarketStatus, limit, offset int) ([]models.Market, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidParams, status)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListMarkets(ctx, status, limit, offset)
}

// SyncFromChain overwrites a market's pool state with its on-chain account.
// The stored row must still re-derive its address from the market id and
// bump, and the account must carry the same bump.
func (s *MarketService) SyncFromChain(ctx context.Context, marketID string) (*models.Market, error) {
	if s.chain == nil {
		return nil, errors.New("chain reader not configured")
	}

	stored, err := s.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	address, err := solana.PublicKeyFromBase58(stored.Address)
	if err != nil {
		return nil, fmt.Errorf("stored address of %s is invalid: %w", marketID, err)
	}

	account, err := s.chain.FetchMarket(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read market %s from chain: %w", marketID, err)
	}

	market, err := s.repo.WithMarket(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		if err := blockchain.VerifyMarketAuthority(s.programID, m); err != nil {
			return err
		}
		if account.Bump != m.Bump {
			return fmt.Errorf("on-chain bump %d differs from stored %d", account.Bump, m.Bump)
		}
		return account.ApplyTo(m)
	})
	if err != nil {
		return nil, lookupErr(err)
	}

	s.log.Info().Str("market_id", marketID).Str("status", string(market.MarketStatus)).Msg("market synced from chain")
	return market, nil
}
