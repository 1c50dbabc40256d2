package handlers

import (
	"net/http"

	"minimarket/internal/models"
	"minimarket/internal/services"

	"github.com/gin-gonic/gin"
)

// MarketHandler serves market lifecycle endpoints
type MarketHandler struct {
	markets    *services.MarketService
	resolution *services.ResolutionService
}

// NewMarketHandler creates a new MarketHandler
func NewMarketHandler(markets *services.MarketService, resolution *services.ResolutionService) *MarketHandler {
	return &MarketHandler{
		markets:    markets,
		resolution: resolution,
	}
}

// ListMarkets returns markets, optionally filtered by status
// GET /api/markets?status=ACTIVE&limit=20&offset=0
func (h *MarketHandler) ListMarkets(c *gin.Context) {
	limit, offset := pagination(c)
	status := models.MarketStatus(c.Query("status"))

	markets, err := h.markets.ListMarkets(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"markets": markets,
		"limit":   limit,
		"offset":  offset,
	})
}

// GetMarket returns a single market
// GET /api/markets/:id
func (h *MarketHandler) GetMarket(c *gin.Context) {
	market, err := h.markets.GetMarket(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

// CreateMarket registers a new market owned by the caller
// POST /api/markets
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	market, err := h.markets.CreateMarket(c.Request.Context(), wallet, req)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Info().
		Str("market_id", market.MarketID).
		Str("creator", wallet).
		Msg("market created")
	c.JSON(http.StatusCreated, market)
}

// PrepareMarket moves a market from CREATED to PREPARE
// POST /api/markets/:id/prepare
func (h *MarketHandler) PrepareMarket(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	market, err := h.markets.PrepareMarket(c.Request.Context(), c.Param("id"), wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

// AddLiquidity deposits collateral into a preparing market
// POST /api/markets/:id/liquidity
func (h *MarketHandler) AddLiquidity(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.LiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	market, err := h.markets.AddLiquidity(c.Request.Context(), c.Param("id"), wallet, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

// ResolveMarket settles a market. Only the creator may resolve manually; an
// empty body reads the market's oracle feed instead of a supplied price.
// POST /api/markets/:id/resolve
func (h *MarketHandler) ResolveMarket(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.ResolveRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	marketID := c.Param("id")

	existing, err := h.markets.GetMarket(ctx, marketID)
	if err != nil {
		respondError(c, err)
		return
	}
	if existing.Creator != wallet {
		respondError(c, services.ErrForbidden)
		return
	}

	var market *models.Market
	if req.Price != nil {
		market, err = h.resolution.Resolve(ctx, marketID, *req.Price)
	} else {
		market, err = h.resolution.ResolveFromOracle(ctx, marketID)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, market)
}

// SyncMarket reconciles a market's pool with its on-chain account
// POST /api/markets/:id/sync
func (h *MarketHandler) SyncMarket(c *gin.Context) {
	if _, ok := callerWallet(c); !ok {
		return
	}

	market, err := h.markets.SyncFromChain(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, market)
}

// RegisterFeed stores an oracle feed definition
// POST /api/oracle/feeds
func (h *MarketHandler) RegisterFeed(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.RegisterFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feed, err := h.resolution.RegisterFeed(c.Request.Context(), wallet, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, feed)
}
