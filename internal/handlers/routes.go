package handlers

import (
	"net/http"
	"time"

	"minimarket/internal/auth"

	"github.com/gin-gonic/gin"
)

// Routes groups the handlers mounted on the API router
type Routes struct {
	Auth    *AuthHandler
	Markets *MarketHandler
	Trading *TradingHandler
}

// Register mounts every endpoint on router
func (r Routes) Register(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	router.POST("/auth/wallet", r.Auth.WalletLogin)

	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", r.Auth.GetMe)
	}

	// Public market routes
	router.GET("/api/markets", r.Markets.ListMarkets)
	router.GET("/api/markets/:id", r.Markets.GetMarket)
	router.GET("/api/markets/:id/quote", r.Trading.GetQuote)
	router.GET("/api/markets/:id/prices", r.Trading.GetPrices)
	router.GET("/api/markets/:id/bets", r.Trading.ListBets)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		api.POST("/markets", r.Markets.CreateMarket)
		api.POST("/markets/:id/prepare", r.Markets.PrepareMarket)
		api.POST("/markets/:id/liquidity", r.Markets.AddLiquidity)
		api.POST("/markets/:id/resolve", r.Markets.ResolveMarket)
		api.POST("/markets/:id/sync", r.Markets.SyncMarket)

		api.POST("/markets/:id/bets", r.Trading.PlaceBet)
		api.POST("/markets/:id/claim", r.Trading.Claim)
		api.GET("/positions", r.Trading.ListPositions)

		api.POST("/oracle/feeds", r.Markets.RegisterFeed)
	}
}
