package models

import (
	"time"

	"minimarket/internal/fixedpoint"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LiquidityDeposit records collateral added to a market before it opens.
type LiquidityDeposit struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID  string    `gorm:"size:32;not null;index" json:"market_id"`
	Investor  string    `gorm:"size:64;not null;index" json:"investor"`
	Amount    uint64    `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (LiquidityDeposit) TableName() string {
	return "liquidity_deposits"
}

func (d *LiquidityDeposit) BeforeSave(tx *gorm.DB) error {
	return fixedpoint.Storable(d.Amount)
}

func (d *LiquidityDeposit) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Bet is an executed buy against a market pool
type Bet struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID    string    `gorm:"size:32;not null;index" json:"market_id"`
	UserAddress string    `gorm:"size:64;not null;index" json:"user_address"`
	IsYes       bool      `gorm:"not null" json:"is_yes"`
	Amount      uint64    `gorm:"not null" json:"amount"`
	Cost        uint64    `gorm:"not null" json:"cost"`         // collateral paid at PriceBefore
	PriceBefore uint64    `gorm:"not null" json:"price_before"` // side price before the trade, scaled by 1e6
	TokenPriceA uint64    `gorm:"not null" json:"token_price_a"`
	TokenPriceB uint64    `gorm:"not null" json:"token_price_b"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Bet) TableName() string {
	return "bets"
}

func (b *Bet) BeforeSave(tx *gorm.DB) error {
	return fixedpoint.Storable(b.Amount, b.Cost, b.PriceBefore, b.TokenPriceA, b.TokenPriceB)
}

func (b *Bet) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Position aggregates a user's shares in one market
type Position struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID    string    `gorm:"size:32;not null;uniqueIndex:idx_position_market_user" json:"market_id"`
	UserAddress string    `gorm:"size:64;not null;uniqueIndex:idx_position_market_user" json:"user_address"`
	YesShares   uint64    `gorm:"not null;default:0" json:"yes_shares"`
	NoShares    uint64    `gorm:"not null;default:0" json:"no_shares"`
	Cost        uint64    `gorm:"not null;default:0" json:"cost"`
	Claimed     bool      `gorm:"not null;default:false" json:"claimed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

func (p *Position) BeforeSave(tx *gorm.DB) error {
	return fixedpoint.Storable(p.YesShares, p.NoShares, p.Cost)
}

func (p *Position) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SharesFor returns the shares held on the given side.
func (p *Position) SharesFor(isYes bool) uint64 {
	if isYes {
		return p.YesShares
	}
	return p.NoShares
}

// Payout records a settled claim on a resolved market.
type Payout struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID    string    `gorm:"size:32;not null;index" json:"market_id"`
	UserAddress string    `gorm:"size:64;not null;index" json:"user_address"`
	Shares      uint64    `gorm:"not null" json:"shares"`
	Amount      uint64    `gorm:"not null" json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

func (Payout) TableName() string {
	return "payouts"
}

func (p *Payout) BeforeSave(tx *gorm.DB) error {
	return fixedpoint.Storable(p.Shares, p.Amount)
}

func (p *Payout) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BetQuote is the outcome of a trade computed without executing it.
type BetQuote struct {
	MarketID    string    `json:"market_id"`
	IsYes       bool      `json:"is_yes"`
	Amount      uint64    `json:"amount"`
	Cost        uint64    `json:"cost"`
	PriceBefore uint64    `json:"price_before"`
	Pool        PoolState `json:"pool"`
}
