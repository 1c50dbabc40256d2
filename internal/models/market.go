package models

import (
	"time"

	"minimarket/internal/fixedpoint"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seeds of the program-derived addresses owned by a market.
const (
	MarketSeed  = "market_seed"
	MintSeedA   = "mint_a_seed"
	MintSeedB   = "mint_b_seed"
	MaxMarketID = 32
)

// MarketStatus is the lifecycle stage of a market
type MarketStatus string

const (
	MarketStatusCreated  MarketStatus = "CREATED"
	MarketStatusPrepare  MarketStatus = "PREPARE"
	MarketStatusActive   MarketStatus = "ACTIVE"
	MarketStatusResolved MarketStatus = "RESOLVED"
)

var statusOrder = []MarketStatus{
	MarketStatusCreated,
	MarketStatusPrepare,
	MarketStatusActive,
	MarketStatusResolved,
}

func (s MarketStatus) rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is one of the four lifecycle stages.
func (s MarketStatus) Valid() bool {
	return s.rank() >= 0
}

// Next returns the stage that follows s. Resolved is terminal.
func (s MarketStatus) Next() (MarketStatus, bool) {
	r := s.rank()
	if r < 0 || r == len(statusOrder)-1 {
		return "", false
	}
	return statusOrder[r+1], true
}

// CanTransitionTo allows only single forward steps.
func (s MarketStatus) CanTransitionTo(next MarketStatus) bool {
	n, ok := s.Next()
	return ok && n == next
}

// Tradable reports whether bets may execute against the pool.
func (s MarketStatus) Tradable() bool {
	return s == MarketStatusActive
}

// Market is a binary prediction market and its constant-product pool.
// TokenA is the YES side, TokenB the NO side.
type Market struct {
	MarketID     string          `gorm:"primaryKey;size:32" json:"market_id"`
	Address      string          `gorm:"size:64;uniqueIndex;not null" json:"address"`
	Value        decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"value"`
	Range        uint8           `gorm:"not null;default:0" json:"range"`
	Creator      string          `gorm:"size:64;not null;index" json:"creator"`
	Feed         string          `gorm:"size:64;not null" json:"feed"`
	TokenA       string          `gorm:"size:64;not null" json:"token_a"`
	TokenB       string          `gorm:"size:64;not null" json:"token_b"`
	MarketStatus MarketStatus    `gorm:"size:20;not null;index" json:"market_status"`
	TokenAAmount uint64          `gorm:"not null" json:"token_a_amount"`
	TokenBAmount uint64          `gorm:"not null" json:"token_b_amount"`
	TokenPriceA  uint64          `gorm:"not null" json:"token_price_a"`
	TokenPriceB  uint64          `gorm:"not null" json:"token_price_b"`
	TotalReserve uint64          `gorm:"not null;default:0" json:"total_reserve"`
	YesAmount    uint64          `gorm:"not null;default:0" json:"yes_amount"`
	NoAmount     uint64          `gorm:"not null;default:0" json:"no_amount"`
	Result       bool            `gorm:"not null;default:false" json:"result"`
	Bump         uint8           `gorm:"not null" json:"bump"`
	Date         int64           `gorm:"not null;index" json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Market) TableName() string {
	return "markets"
}

// MarketParams carries the creation parameters of a market.
type MarketParams struct {
	MarketID    string          `json:"market_id" binding:"required,max=32"`
	Value       decimal.Decimal `json:"value"`
	Range       uint8           `json:"range"`
	TokenAmount uint64          `json:"token_amount" binding:"required,min=1"`
	TokenPrice  uint64          `json:"token_price" binding:"max=1000000"`
	Date        int64           `json:"date" binding:"required"`
}

// MarketIdentity groups the immutable keys a market is created with.
type MarketIdentity struct {
	Creator string
	Feed    string
	TokenA  string
	TokenB  string
}

// BettingParams describes a single buy of one side.
type BettingParams struct {
	MarketID string `json:"market_id"`
	Amount   uint64 `json:"amount" binding:"required,min=1"`
	IsYes    bool   `json:"is_yes"`
}

// PoolState is the pricing-relevant part of a market after a trade.
type PoolState struct {
	TokenAAmount uint64 `json:"token_a_amount"`
	TokenBAmount uint64 `json:"token_b_amount"`
	TokenPriceA  uint64 `json:"token_price_a"`
	TokenPriceB  uint64 `json:"token_price_b"`
	YesAmount    uint64 `json:"yes_amount"`
	NoAmount     uint64 `json:"no_amount"`
}

// UpdateMarketSettings initializes a fresh market. Both reserves start at
// TokenAmount and both prices at TokenPrice; counters are zeroed.
func (m *Market) UpdateMarketSettings(params MarketParams, id MarketIdentity) {
	m.Value = params.Value
	m.Range = params.Range
	m.Creator = id.Creator
	m.Feed = id.Feed
	m.TokenA = id.TokenA
	m.TokenB = id.TokenB
	m.MarketStatus = MarketStatusCreated
	m.TokenAAmount = params.TokenAmount
	m.TokenBAmount = params.TokenAmount
	m.TokenPriceA = params.TokenPrice
	m.TokenPriceB = params.TokenPrice
	m.TotalReserve = 0
	m.YesAmount = 0
	m.NoAmount = 0
	m.Result = false
	m.Date = params.Date
}

// UpdateMarketStatus overwrites the status. Transition legality is checked by
// the caller.
func (m *Market) UpdateMarketStatus(status MarketStatus) {
	m.MarketStatus = status
}

// Pool returns the current pricing state.
func (m *Market) Pool() PoolState {
	return PoolState{
		TokenAAmount: m.TokenAAmount,
		TokenBAmount: m.TokenBAmount,
		TokenPriceA:  m.TokenPriceA,
		TokenPriceB:  m.TokenPriceB,
		YesAmount:    m.YesAmount,
		NoAmount:     m.NoAmount,
	}
}

// QuoteTokenPrice computes the pool after buying amount of one side without
// touching m.
func (m *Market) QuoteTokenPrice(amount uint64, isYes bool) (PoolState, error) {
	next := m.Pool()

	k, err := fixedpoint.Widen(m.TokenAAmount).MulUint64(m.TokenBAmount)
	if err != nil {
		return PoolState{}, err
	}

	if isYes {
		if next.YesAmount, err = fixedpoint.Add(m.YesAmount, amount); err != nil {
			return PoolState{}, err
		}
		if next.TokenAAmount, next.TokenBAmount, err = rebalance(m.TokenAAmount, amount, k); err != nil {
			return PoolState{}, err
		}
	} else {
		if next.NoAmount, err = fixedpoint.Add(m.NoAmount, amount); err != nil {
			return PoolState{}, err
		}
		if next.TokenBAmount, next.TokenAAmount, err = rebalance(m.TokenBAmount, amount, k); err != nil {
			return PoolState{}, err
		}
	}

	next.TokenPriceA, next.TokenPriceB, err = quotePrices(next.TokenAAmount, next.TokenBAmount, m.TokenPriceA, m.TokenPriceB)
	if err != nil {
		return PoolState{}, err
	}
	return next, nil
}

// Storable reports ErrArithmetic when a field cannot be persisted.
func (p PoolState) Storable() error {
	return fixedpoint.Storable(p.TokenAAmount, p.TokenBAmount, p.TokenPriceA, p.TokenPriceB, p.YesAmount, p.NoAmount)
}

// BeforeSave refuses to write amounts the bigint columns cannot hold.
func (m *Market) BeforeSave(tx *gorm.DB) error {
	if err := m.Pool().Storable(); err != nil {
		return err
	}
	return fixedpoint.Storable(m.TotalReserve)
}

// SetTokenPrice executes a buy of amount on one side: it credits the volume
// counter, moves reserves along x*y=k and requotes both prices. On error m is
// left untouched.
func (m *Market) SetTokenPrice(amount uint64, isYes bool) error {
	next, err := m.QuoteTokenPrice(amount, isYes)
	if err != nil {
		return err
	}
	m.TokenAAmount = next.TokenAAmount
	m.TokenBAmount = next.TokenBAmount
	m.TokenPriceA = next.TokenPriceA
	m.TokenPriceB = next.TokenPriceB
	m.YesAmount = next.YesAmount
	m.NoAmount = next.NoAmount
	return nil
}

// rebalance removes amount from the consumed reserve and returns it together
// with the opposite reserve that keeps the product at k.
func rebalance(consumed, amount uint64, k fixedpoint.Wide) (uint64, uint64, error) {
	remaining, err := fixedpoint.Sub(consumed, amount)
	if err != nil {
		return 0, 0, err
	}
	paired, err := k.DivUint64(remaining)
	if err != nil {
		return 0, 0, err
	}
	pairedAmount, err := paired.Uint64()
	if err != nil {
		return 0, 0, err
	}
	return remaining, pairedAmount, nil
}

// quotePrices prices each side by the share of the opposite reserve. An empty
// pool keeps the previous prices.
func quotePrices(a, b, prevA, prevB uint64) (uint64, uint64, error) {
	total, err := fixedpoint.Add(a, b)
	if err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return prevA, prevB, nil
	}
	priceA, err := fixedpoint.MulDiv(b, fixedpoint.PriceScale, total)
	if err != nil {
		return 0, 0, err
	}
	priceB, err := fixedpoint.MulDiv(a, fixedpoint.PriceScale, total)
	if err != nil {
		return 0, 0, err
	}
	return priceA, priceB, nil
}

// GetSigner returns the seeds that re-derive the market address:
// MarketSeed, the market id and the bump.
func GetSigner(bump uint8, marketID []byte) [3][]byte {
	return [3][]byte{[]byte(MarketSeed), marketID, {bump}}
}

// Signer returns the signer seeds of m.
func (m *Market) Signer() [3][]byte {
	return GetSigner(m.Bump, []byte(m.MarketID))
}

// SideFor returns "YES" or "NO".
func SideFor(isYes bool) string {
	if isYes {
		return "YES"
	}
	return "NO"
}

// PriceOf returns the current quoted price of one side.
func (m *Market) PriceOf(isYes bool) uint64 {
	if isYes {
		return m.TokenPriceA
	}
	return m.TokenPriceB
}

// PriceDecimal converts a scaled price to a decimal in [0, 1].
func PriceDecimal(price uint64) decimal.Decimal {
	return decimal.NewFromUint64(price).Div(decimal.NewFromUint64(fixedpoint.PriceScale))
}

// ---- Request/Response DTOs ----

// CreateMarketRequest is the body of a market creation call.
type CreateMarketRequest struct {
	MarketParams
	Feed string `json:"feed" binding:"required"`
}

// LiquidityRequest is the body of a liquidity deposit.
type LiquidityRequest struct {
	Amount uint64 `json:"amount" binding:"required,min=1"`
}

// ResolveRequest optionally carries an observed price; without one the
// market's feed is read.
type ResolveRequest struct {
	Price *decimal.Decimal `json:"price"`
}

// MarketPricesResponse exposes the quoted prices of both sides.
type MarketPricesResponse struct {
	MarketID     string          `json:"market_id"`
	TokenAAmount uint64          `json:"token_a_amount"`
	TokenBAmount uint64          `json:"token_b_amount"`
	TokenPriceA  uint64          `json:"token_price_a"`
	TokenPriceB  uint64          `json:"token_price_b"`
	YesPrice     decimal.Decimal `json:"yes_price"`
	NoPrice      decimal.Decimal `json:"no_price"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ToPricesResponse converts a market into its price view.
func (m *Market) ToPricesResponse() MarketPricesResponse {
	return MarketPricesResponse{
		MarketID:     m.MarketID,
		TokenAAmount: m.TokenAAmount,
		TokenBAmount: m.TokenBAmount,
		TokenPriceA:  m.TokenPriceA,
		TokenPriceB:  m.TokenPriceB,
		YesPrice:     PriceDecimal(m.TokenPriceA),
		NoPrice:      PriceDecimal(m.TokenPriceB),
		UpdatedAt:    m.UpdatedAt,
	}
}
