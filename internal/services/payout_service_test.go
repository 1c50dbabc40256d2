package services

import (
	"context"
	"errors"
	"testing"

	"minimarket/internal/fixedpoint"
	"minimarket/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

func TestComputePayout(t *testing.T) {
	got, err := ComputePayout(100, 100000072, 100)
	if err != nil || got != 100000072 {
		t.Errorf("sole winner: got %d, %v", got, err)
	}
	got, err = ComputePayout(25, 1000, 100)
	if err != nil || got != 250 {
		t.Errorf("quarter share: got %d, %v", got, err)
	}
	if _, err := ComputePayout(0, 1000, 100); !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("expected ErrNothingToClaim, got %v", err)
	}
	if _, err := ComputePayout(1<<63, 1<<63, 1); !errors.Is(err, fixedpoint.ErrArithmetic) {
		t.Errorf("expected ErrArithmetic, got %v", err)
	}
}

func TestClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.activeMarket(t, "claim", 1000)

	yesUser := solana.NewWallet().PublicKey().String()
	noUser := solana.NewWallet().PublicKey().String()

	if _, err := env.trading.PlaceBet(ctx, yesUser, models.BettingParams{MarketID: "claim", Amount: 100, IsYes: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.trading.PlaceBet(ctx, noUser, models.BettingParams{MarketID: "claim", Amount: 50, IsYes: false}); err != nil {
		t.Fatal(err)
	}

	if _, err := env.payouts.Claim(ctx, "claim", yesUser); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("claim before resolution: expected ErrInvalidStatus, got %v", err)
	}

	market, err := env.resolution.Resolve(ctx, "claim", decimal.NewFromInt(101))
	if err != nil {
		t.Fatal(err)
	}
	if !market.Result {
		t.Fatal("expected YES outcome")
	}

	// pool = 100000000 liquidity + 50 + 22 bet costs, all to the only YES holder
	payout, err := env.payouts.Claim(ctx, "claim", yesUser)
	if err != nil {
		t.Fatal(err)
	}
	if payout.Shares != 100 || payout.Amount != 100000072 {
		t.Errorf("payout = %+v", payout)
	}

	if _, err := env.payouts.Claim(ctx, "claim", yesUser); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("second claim: expected ErrAlreadyClaimed, got %v", err)
	}
	if _, err := env.payouts.Claim(ctx, "claim", noUser); !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("losing side: expected ErrNothingToClaim, got %v", err)
	}
	if _, err := env.payouts.Claim(ctx, "claim", solana.NewWallet().PublicKey().String()); !errors.Is(err, ErrNothingToClaim) {
		t.Errorf("no position: expected ErrNothingToClaim, got %v", err)
	}

	after, _ := env.markets.GetMarket(ctx, "claim")
	if after.Pool() != market.Pool() {
		t.Error("claims must not touch pricing state")
	}
}
