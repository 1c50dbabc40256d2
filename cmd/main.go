package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"minimarket/internal/auth"
	"minimarket/internal/blockchain"
	"minimarket/internal/cache"
	"minimarket/internal/config"
	"minimarket/internal/database"
	"minimarket/internal/handlers"
	"minimarket/internal/jobs"
	"minimarket/internal/logging"
	"minimarket/internal/oracle"
	"minimarket/internal/repository"
	"minimarket/internal/services"
)

// quoteTTL bounds how long a published quote stays in redis
const quoteTTL = 10 * time.Minute

func main() {
	log := logging.New("main")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.Database.Driver, cfg.GetDSN()); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	repo := repository.NewRepository(database.GetDB())

	// Solana program reads
	chain, err := blockchain.NewChainClient(cfg.Solana.RPCURL, cfg.Solana.ProgramID)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize chain client")
	}

	// Quote cache (optional)
	var quotes cache.QuoteCache = cache.NopQuoteCache{}
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := cache.NewClient(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cancel()
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, quote cache disabled")
		} else {
			defer rdb.Close()
			quotes = cache.NewRedisQuoteCache(rdb, quoteTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("quote cache enabled")
		}
	}

	// Initialize services
	authService := services.NewAuthService(repo)
	marketService := services.NewMarketService(
		repo,
		chain.ProgramID(),
		chain,
		services.MarketSettings{
			MinLiquidity:        cfg.Market.MinLiquidity,
			ActivationThreshold: cfg.Market.ActivationThreshold,
		},
		logging.New("markets"),
	)
	tradingService := services.NewTradingService(repo, quotes, logging.New("trading"))
	priceSource := oracle.NewHTTPSource(repo, nil, 30*time.Second, logging.New("oracle"))
	resolutionService := services.NewResolutionService(repo, priceSource, logging.New("resolution"))
	payoutService := services.NewPayoutService(repo, logging.New("payouts"))

	// Start market resolver job
	resolver := jobs.NewMarketResolver(resolutionService, cfg.Market.ResolverInterval, logging.New("resolver"))
	go resolver.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if cfg.Server.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.Server.FrontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.Routes{
		Auth:    handlers.NewAuthHandler(authService),
		Markets: handlers.NewMarketHandler(marketService, resolutionService),
		Trading: handlers.NewTradingHandler(tradingService, payoutService),
	}.Register(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	resolver.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}
