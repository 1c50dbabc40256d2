package handlers

import (
	"net/http"
	"strconv"

	"minimarket/internal/models"
	"minimarket/internal/services"

	"github.com/gin-gonic/gin"
)

// TradingHandler serves betting, pricing and payout endpoints
type TradingHandler struct {
	trading *services.TradingService
	payouts *services.PayoutService
}

// NewTradingHandler creates a new TradingHandler
func NewTradingHandler(trading *services.TradingService, payouts *services.PayoutService) *TradingHandler {
	return &TradingHandler{
		trading: trading,
		payouts: payouts,
	}
}

// GetQuote previews the pool and cost of a bet without placing it
// GET /api/markets/:id/quote?amount=1000&is_yes=true
func (h *TradingHandler) GetQuote(c *gin.Context) {
	amount, err := strconv.ParseUint(c.Query("amount"), 10, 64)
	if err != nil || amount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be a positive integer"})
		return
	}
	isYes, err := strconv.ParseBool(c.DefaultQuery("is_yes", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_yes must be a boolean"})
		return
	}

	quote, err := h.trading.QuoteBet(c.Request.Context(), models.BettingParams{
		MarketID: c.Param("id"),
		Amount:   amount,
		IsYes:    isYes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetPrices returns the current YES/NO prices of a market
// GET /api/markets/:id/prices
func (h *TradingHandler) GetPrices(c *gin.Context) {
	prices, err := h.trading.GetPrices(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

// ListBets returns the bet history of a market
// GET /api/markets/:id/bets?limit=20&offset=0
func (h *TradingHandler) ListBets(c *gin.Context) {
	limit, offset := pagination(c)

	bets, err := h.trading.ListBets(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":   bets,
		"limit":  limit,
		"offset": offset,
	})
}

// PlaceBet buys YES or NO tokens for the caller
// POST /api/markets/:id/bets
func (h *TradingHandler) PlaceBet(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	var req models.BettingParams
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.MarketID = c.Param("id")

	bet, err := h.trading.PlaceBet(c.Request.Context(), wallet, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

// Claim pays out the caller's winning shares of a resolved market
// POST /api/markets/:id/claim
func (h *TradingHandler) Claim(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	payout, err := h.payouts.Claim(c.Request.Context(), c.Param("id"), wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payout)
}

// ListPositions returns the caller's positions across markets
// GET /api/positions
func (h *TradingHandler) ListPositions(c *gin.Context) {
	wallet, ok := callerWallet(c)
	if !ok {
		return
	}

	positions, err := h.trading.ListPositions(c.Request.Context(), wallet)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}
