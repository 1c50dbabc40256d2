// Package oracle reads the observed value of a market's price feed.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"minimarket/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrFeedNotFound   = errors.New("feed not registered")
	ErrNoPrice        = errors.New("no price in feed response")
	ErrAmbiguousPrice = errors.New("feed response holds several prices")
)

// Source returns the latest observed price of a feed
type Source interface {
	LatestPrice(ctx context.Context, feed string) (decimal.Decimal, error)
}

// FeedStore looks up feed registrations
type FeedStore interface {
	GetFeed(ctx context.Context, address string) (*models.OracleFeed, error)
}

type cachedPrice struct {
	price     decimal.Decimal
	fetchedAt time.Time
}

// HTTPSource fetches registered feeds over HTTP and extracts the price with
// the feed's JSON path task. Prices are cached for ttl.
type HTTPSource struct {
	feeds  FeedStore
	client *http.Client
	ttl    time.Duration
	log    zerolog.Logger

	mu    sync.RWMutex
	cache map[string]cachedPrice
}

func NewHTTPSource(feeds FeedStore, client *http.Client, ttl time.Duration, log zerolog.Logger) *HTTPSource {
	if client == nil {
		client = newPublicClient()
	}
	return &HTTPSource{
		feeds:  feeds,
		client: client,
		ttl:    ttl,
		log:    log,
		cache:  make(map[string]cachedPrice),
	}
}

// LatestPrice returns the feed's current price
func (s *HTTPSource) LatestPrice(ctx context.Context, feed string) (decimal.Decimal, error) {
	s.mu.RLock()
	cached, ok := s.cache[feed]
	s.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < s.ttl {
		return cached.price, nil
	}

	reg, err := s.feeds.GetFeed(ctx, feed)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feed)
	}

	price, err := s.fetch(ctx, reg)
	if err != nil {
		return decimal.Decimal{}, err
	}

	s.mu.Lock()
	s.cache[feed] = cachedPrice{price: price, fetchedAt: time.Now()}
	s.mu.Unlock()

	s.log.Debug().Str("feed", feed).Str("price", price.String()).Msg("feed price fetched")
	return price, nil
}

func (s *HTTPSource) fetch(ctx context.Context, reg *models.OracleFeed) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reg.DataURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("feed %s request failed: %w", reg.Feed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Decimal{}, fmt.Errorf("feed %s returned %d: %s", reg.Feed, resp.StatusCode, string(body))
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return decimal.Decimal{}, fmt.Errorf("feed %s parse error: %w", reg.Feed, err)
	}

	return Extract(doc, reg.Task)
}

// Extract reads a number at a JSON path such as "$.solana.usd" or
// "$.pairs[0].priceUsd". An empty path takes the sole numeric leaf and
// fails when the document holds more than one.
func Extract(doc interface{}, path string) (decimal.Decimal, error) {
	if strings.TrimSpace(path) == "" {
		return soleNumber(doc)
	}

	steps, err := parsePath(path)
	if err != nil {
		return decimal.Decimal{}, err
	}

	node := doc
	for _, st := range steps {
		if st.key != "" {
			obj, ok := node.(map[string]interface{})
			if !ok {
				return decimal.Decimal{}, fmt.Errorf("%w: %q is not an object", ErrNoPrice, st.key)
			}
			if node, ok = obj[st.key]; !ok {
				return decimal.Decimal{}, fmt.Errorf("%w: missing key %q", ErrNoPrice, st.key)
			}
			continue
		}
		arr, ok := node.([]interface{})
		if !ok || st.index >= len(arr) {
			return decimal.Decimal{}, fmt.Errorf("%w: index %d out of range", ErrNoPrice, st.index)
		}
		node = arr[st.index]
	}

	return toDecimal(node)
}

type pathStep struct {
	key   string
	index int
}

func parsePath(path string) ([]pathStep, error) {
	path = strings.TrimPrefix(strings.TrimSpace(path), "$")
	path = strings.TrimPrefix(path, ".")

	var steps []pathStep
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return nil, fmt.Errorf("invalid path %q", path)
		}
		key := segment
		rest := ""
		if i := strings.IndexByte(segment, '['); i >= 0 {
			key, rest = segment[:i], segment[i:]
		}
		if key != "" {
			steps = append(steps, pathStep{key: key})
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if rest[0] != '[' || end < 0 {
				return nil, fmt.Errorf("invalid index in %q", segment)
			}
			n, err := strconv.Atoi(rest[1:end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid index in %q", segment)
			}
			steps = append(steps, pathStep{index: n})
			rest = rest[end+1:]
		}
	}
	return steps, nil
}

func toDecimal(node interface{}) (decimal.Decimal, error) {
	switch v := node.(type) {
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q is not numeric", ErrNoPrice, v)
		}
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: unexpected %T", ErrNoPrice, node)
	}
}

// soleNumber returns the only numeric leaf under node. Responses carrying
// several numbers need an explicit task.
func soleNumber(node interface{}) (decimal.Decimal, error) {
	var found []decimal.Decimal
	collectNumbers(node, &found)
	switch len(found) {
	case 0:
		return decimal.Decimal{}, ErrNoPrice
	case 1:
		return found[0], nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %d numeric values, a task path is required", ErrAmbiguousPrice, len(found))
	}
}

func collectNumbers(node interface{}, found *[]decimal.Decimal) {
	switch v := node.(type) {
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			*found = append(*found, d)
		}
	case map[string]interface{}:
		for _, child := range v {
			collectNumbers(child, found)
		}
	case []interface{}:
		for _, child := range v {
			collectNumbers(child, found)
		}
	}
}

// ValidateTask reports whether path is a usable feed task. An empty task
// is allowed and selects the response's sole numeric value.
func ValidateTask(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	_, err := parsePath(path)
	return err
}

// Invalidate drops the cached price of a feed
func (s *HTTPSource) Invalidate(feed string) {
	s.mu.Lock()
	delete(s.cache, feed)
	s.mu.Unlock()
}

// StaticSource serves fixed prices. Used for manual resolution and tests.
type StaticSource map[string]decimal.Decimal

func (s StaticSource) LatestPrice(_ context.Context, feed string) (decimal.Decimal, error) {
	price, ok := s[feed]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: %s", ErrFeedNotFound, feed)
	}
	return price, nil
}
