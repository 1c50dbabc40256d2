package services

import (
	"context"
	"fmt"

	"minimarket/internal/fixedpoint"
	"minimarket/internal/models"
	"minimarket/internal/repository"

	"github.com/rs/zerolog"
)

// PayoutService settles claims on resolved markets. The winning side shares
// the pool (liquidity plus every bet's cost) pro rata to its volume.
type PayoutService struct {
	repo *repository.Repository
	log  zerolog.Logger
}

func NewPayoutService(repo *repository.Repository, log zerolog.Logger) *PayoutService {
	return &PayoutService{repo: repo, log: log}
}

// ComputePayout returns the amount owed for shares of the winning side
func ComputePayout(shares, pool, winningVolume uint64) (uint64, error) {
	if shares == 0 || winningVolume == 0 {
		return 0, ErrNothingToClaim
	}
	return fixedpoint.MulDiv(shares, pool, winningVolume)
}

// Claim pays out a user's winning position exactly once
func (ps *PayoutService) Claim(ctx context.Context, marketID, user string) (*models.Payout, error) {
	var payout *models.Payout

	_, err := ps.repo.WithMarket(ctx, marketID, func(tx *repository.Repository, m *models.Market) error {
		if m.MarketStatus != models.MarketStatusResolved {
			return fmt.Errorf("%w: %s", ErrInvalidStatus, m.MarketStatus)
		}

		position, err := tx.GetPosition(ctx, marketID, user)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrNothingToClaim
			}
			return err
		}
		if position.Claimed {
			return ErrAlreadyClaimed
		}

		winningVolume := m.NoAmount
		if m.Result {
			winningVolume = m.YesAmount
		}
		shares := position.SharesFor(m.Result)

		betCosts, err := tx.SumBetCost(ctx, marketID)
		if err != nil {
			return fmt.Errorf("failed to sum bet costs: %w", err)
		}
		pool, err := fixedpoint.Add(m.TotalReserve, betCosts)
		if err != nil {
			return err
		}

		amount, err := ComputePayout(shares, pool, winningVolume)
		if err != nil {
			return err
		}

		position.Claimed = true
		if err := tx.SavePosition(ctx, position); err != nil {
			return fmt.Errorf("failed to mark position claimed: %w", err)
		}

		payout = &models.Payout{
			MarketID:    marketID,
			UserAddress: user,
			Shares:      shares,
			Amount:      amount,
		}
		return tx.CreatePayout(ctx, payout)
	})
	if err != nil {
		return nil, lookupErr(err)
	}

	ps.log.Info().
		Str("market_id", marketID).
		Str("user", user).
		Uint64("shares", payout.Shares).
		Uint64("amount", payout.Amount).
		Msg("payout claimed")
	return payout, nil
}
