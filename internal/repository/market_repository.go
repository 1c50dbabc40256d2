package repository

import (
	"context"
	"errors"

	"minimarket/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the gorm-backed market store. All methods operate on the
// handle it was built with, so a Repository returned by WithMarket runs inside
// that transaction.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// ============================================================================
// MARKETS
// ============================================================================

// CreateMarket inserts a new market
func (r *Repository) CreateMarket(ctx context.Context, market *models.Market) error {
	return r.db.WithContext(ctx).Create(market).Error
}

// MarketExists reports whether a market id is taken
func (r *Repository) MarketExists(ctx context.Context, marketID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Market{}).Where("market_id = ?", marketID).Count(&count).Error
	return count > 0, err
}

// GetMarket retrieves a market by its market id
func (r *Repository) GetMarket(ctx context.Context, marketID string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).Where("market_id = ?", marketID).First(&market).Error
	if err != nil {
		return nil, err
	}
	return &market, nil
}

// ListMarkets returns markets, newest first, optionally filtered by status
func (r *Repository) ListMarkets(ctx context.Context, status models.MarketStatus, limit, offset int) ([]models.Market, error) {
	var markets []models.Market
	query := r.db.WithContext(ctx).Model(&models.Market{})
	if status != "" {
		query = query.Where("market_status = ?", status)
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&markets).Error
	return markets, err
}

// ListExpiredMarkets returns markets in the given status whose date is at or
// before nowMillis
func (r *Repository) ListExpiredMarkets(ctx context.Context, status models.MarketStatus, nowMillis int64, limit int) ([]models.Market, error) {
	var markets []models.Market
	err := r.db.WithContext(ctx).
		Where("market_status = ? AND date <= ?", status, nowMillis).
		Order("date ASC").
		Limit(limit).
		Find(&markets).Error
	return markets, err
}

// WithMarket loads a market under a row lock, runs fn and saves the market
// when fn succeeds. Any error rolls back everything fn wrote.
func (r *Repository) WithMarket(ctx context.Context, marketID string, fn func(tx *Repository, market *models.Market) error) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("market_id = ?", marketID).
			First(&market).Error; err != nil {
			return err
		}

		if err := fn(&Repository{db: tx}, &market); err != nil {
			return err
		}

		return tx.Save(&market).Error
	})
	if err != nil {
		return nil, err
	}
	return &market, nil
}

// ============================================================================
// LEDGER
// ============================================================================

// CreateDeposit records a liquidity deposit
func (r *Repository) CreateDeposit(ctx context.Context, deposit *models.LiquidityDeposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

// CreateBet records an executed bet
func (r *Repository) CreateBet(ctx context.Context, bet *models.Bet) error {
	return r.db.WithContext(ctx).Create(bet).Error
}

// ListBets returns a market's bets, newest first
func (r *Repository) ListBets(ctx context.Context, marketID string, limit, offset int) ([]models.Bet, error) {
	var bets []models.Bet
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	return bets, err
}

// SumBetCost returns the collateral paid into a market by all bets
func (r *Repository) SumBetCost(ctx context.Context, marketID string) (uint64, error) {
	var total uint64
	err := r.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("market_id = ?", marketID).
		Select("COALESCE(SUM(cost), 0)").
		Row().
		Scan(&total)
	return total, err
}

// GetPosition returns the position of a user in a market
func (r *Repository) GetPosition(ctx context.Context, marketID, user string) (*models.Position, error) {
	var position models.Position
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND user_address = ?", marketID, user).
		First(&position).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// GetOrInitPosition returns the stored position or an unsaved empty one
func (r *Repository) GetOrInitPosition(ctx context.Context, marketID, user string) (*models.Position, error) {
	position, err := r.GetPosition(ctx, marketID, user)
	if IsNotFound(err) {
		return &models.Position{MarketID: marketID, UserAddress: user}, nil
	}
	return position, err
}

// SavePosition inserts or updates a position
func (r *Repository) SavePosition(ctx context.Context, position *models.Position) error {
	return r.db.WithContext(ctx).Save(position).Error
}

// ListPositions returns all positions of a user
func (r *Repository) ListPositions(ctx context.Context, user string) ([]models.Position, error) {
	var positions []models.Position
	err := r.db.WithContext(ctx).Where("user_address = ?", user).Order("created_at DESC").Find(&positions).Error
	return positions, err
}

// CreatePayout records a settled claim
func (r *Repository) CreatePayout(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// ============================================================================
// ORACLE FEEDS
// ============================================================================

// CreateFeed registers a new oracle feed. It fails if the address is taken.
func (r *Repository) CreateFeed(ctx context.Context, feed *models.OracleFeed) error {
	return r.db.WithContext(ctx).Create(feed).Error
}

// SaveFeed registers or replaces an oracle feed
func (r *Repository) SaveFeed(ctx context.Context, feed *models.OracleFeed) error {
	return r.db.WithContext(ctx).Save(feed).Error
}

// CountOpenMarketsForFeed counts markets on a feed that are not yet resolved
func (r *Repository) CountOpenMarketsForFeed(ctx context.Context, feed string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Market{}).
		Where("feed = ? AND market_status <> ?", feed, models.MarketStatusResolved).
		Count(&count).Error
	return count, err
}

// GetFeed retrieves a registered feed by address
func (r *Repository) GetFeed(ctx context.Context, address string) (*models.OracleFeed, error) {
	var feed models.OracleFeed
	if err := r.db.WithContext(ctx).Where("feed = ?", address).First(&feed).Error; err != nil {
		return nil, err
	}
	return &feed, nil
}

// ============================================================================
// USERS
// ============================================================================

// FindOrCreateUser returns the user owning a wallet, creating it on first login
func (r *Repository) FindOrCreateUser(ctx context.Context, wallet string) (*models.User, error) {
	user := models.User{WalletAddress: wallet}
	err := r.db.WithContext(ctx).
		Where("wallet_address = ?", wallet).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AdvanceLoginTime records signedAt as the user's newest login message. It
// reports false when a message at or after signedAt was already accepted.
func (r *Repository) AdvanceLoginTime(ctx context.Context, userID uint, signedAt int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND last_signed_at < ?", userID, signedAt).
		Update("last_signed_at", signedAt)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
