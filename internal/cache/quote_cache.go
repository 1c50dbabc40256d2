// Package cache keeps the latest quoted prices of each market in redis.
package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"time"

	"minimarket/internal/models"

	"github.com/redis/go-redis/v9"
)

var ErrQuoteNotFound = errors.New("quote not found")

// Quote is the pool snapshot published after each trade
type Quote struct {
	MarketID     string
	TokenAAmount uint64
	TokenBAmount uint64
	TokenPriceA  uint64
	TokenPriceB  uint64
	UpdatedAt    time.Time
}

// QuoteFromMarket snapshots a market's pool
func QuoteFromMarket(m *models.Market, at time.Time) Quote {
	return Quote{
		MarketID:     m.MarketID,
		TokenAAmount: m.TokenAAmount,
		TokenBAmount: m.TokenBAmount,
		TokenPriceA:  m.TokenPriceA,
		TokenPriceB:  m.TokenPriceB,
		UpdatedAt:    at,
	}
}

// QuoteCache stores and reads quotes
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, marketID string) (Quote, error)
}

// Config holds redis connection parameters
type Config struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// NewClient connects to redis and pings it
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return rdb, nil
}

// RedisQuoteCache stores each quote as a hash at "quote:{market_id}"
type RedisQuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisQuoteCache wraps a client. A zero ttl keeps quotes until overwritten.
func NewRedisQuoteCache(rdb *redis.Client, ttl time.Duration) *RedisQuoteCache {
	return &RedisQuoteCache{rdb: rdb, ttl: ttl}
}

func quoteKey(marketID string) string {
	return "quote:" + marketID
}

func (c *RedisQuoteCache) SetQuote(ctx context.Context, q Quote) error {
	key := quoteKey(q.MarketID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, quoteFields(q))
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", q.MarketID, err)
	}
	return nil
}

func (c *RedisQuoteCache) GetQuote(ctx context.Context, marketID string) (Quote, error) {
	vals, err := c.rdb.HGetAll(ctx, quoteKey(marketID)).Result()
	if err != nil {
		return Quote{}, fmt.Errorf("redis: get quote %s: %w", marketID, err)
	}
	return parseQuote(marketID, vals)
}

func quoteFields(q Quote) map[string]interface{} {
	return map[string]interface{}{
		"token_a": strconv.FormatUint(q.TokenAAmount, 10),
		"token_b": strconv.FormatUint(q.TokenBAmount, 10),
		"price_a": strconv.FormatUint(q.TokenPriceA, 10),
		"price_b": strconv.FormatUint(q.TokenPriceB, 10),
		"ts":      strconv.FormatInt(q.UpdatedAt.UnixNano(), 10),
	}
}

func parseQuote(marketID string, vals map[string]string) (Quote, error) {
	if len(vals) == 0 {
		return Quote{}, ErrQuoteNotFound
	}

	q := Quote{MarketID: marketID}
	fields := []struct {
		name string
		dst  *uint64
	}{
		{"token_a", &q.TokenAAmount},
		{"token_b", &q.TokenBAmount},
		{"price_a", &q.TokenPriceA},
		{"price_b", &q.TokenPriceB},
	}
	for _, f := range fields {
		raw, ok := vals[f.name]
		if !ok {
			return Quote{}, ErrQuoteNotFound
		}
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return Quote{}, fmt.Errorf("redis: parse %s of %s: %w", f.name, marketID, err)
		}
		*f.dst = n
	}

	ts, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("redis: parse ts of %s: %w", marketID, err)
	}
	q.UpdatedAt = time.Unix(0, ts)
	return q, nil
}

// NopQuoteCache is used when redis is not configured
type NopQuoteCache struct{}

func (NopQuoteCache) SetQuote(context.Context, Quote) error { return nil }

func (NopQuoteCache) GetQuote(context.Context, string) (Quote, error) {
	return Quote{}, ErrQuoteNotFound
}
