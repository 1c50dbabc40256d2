package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	App      AppConfig
	Solana   SolanaConfig
	Market   MarketConfig
	Redis    RedisConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string // postgres or sqlite
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port        string
	FrontendURL string
}

// AppConfig holds application-specific settings
type AppConfig struct {
	JWTSecret string
	LogLevel  string
}

// SolanaConfig holds chain settings used for address derivation and reads
type SolanaConfig struct {
	RPCURL    string
	ProgramID string
}

// MarketConfig holds market lifecycle thresholds
type MarketConfig struct {
	MinLiquidity        uint64
	ActivationThreshold uint64
	ResolverInterval    time.Duration
}

// RedisConfig holds the quote cache connection. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	minLiquidity, err := getEnvUint("MIN_LIQUIDITY", 100000)
	if err != nil {
		return nil, err
	}
	threshold, err := getEnvUint("ACTIVATION_THRESHOLD", 100000000)
	if err != nil {
		return nil, err
	}
	interval, err := time.ParseDuration(getEnv("RESOLVER_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid RESOLVER_INTERVAL: %w", err)
	}
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "minimarket"),
			SQLitePath: getEnv("SQLITE_PATH", "minimarket.db"),
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		App: AppConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
		},
		Solana: SolanaConfig{
			RPCURL:    getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
			ProgramID: getEnv("PROGRAM_ID", "EgEc7fuse6eQ3UwqeWGFncDtbTwozWCy4piydbeRaNrU"),
		},
		Market: MarketConfig{
			MinLiquidity:        minLiquidity,
			ActivationThreshold: threshold,
			ResolverInterval:    interval,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
	}

	// Validate required fields
	if config.App.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", config.Database.Driver)
	}

	return config, nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
