package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"minimarket/internal/logging"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// pendingMigrations returns the .sql files in dir not yet in applied, in
// name order
func pendingMigrations(dir string, applied map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") || applied[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func main() {
	log := logging.New("migrate")
	dir := flag.String("dir", "migrations", "directory holding numbered .sql migrations")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", ""),
		getEnv("DB_NAME", "minimarket"),
	)

	// Connect to database
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		log.Fatal().Err(err).Msg("failed to create schema_migrations")
	}

	rows, err := db.Query(`SELECT name FROM schema_migrations`)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read applied migrations")
	}
	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			log.Fatal().Err(err).Msg("failed to scan migration name")
		}
		applied[name] = true
	}
	rows.Close()

	pending, err := pendingMigrations(*dir, applied)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list migrations")
	}
	if len(pending) == 0 {
		log.Info().Msg("schema is up to date")
		return
	}

	for _, name := range pending {
		sqlBytes, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			log.Fatal().Err(err).Str("migration", name).Msg("failed to read migration file")
		}

		tx, err := db.Begin()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to begin transaction")
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			log.Fatal().Err(err).Str("migration", name).Msg("failed to apply migration")
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			tx.Rollback()
			log.Fatal().Err(err).Str("migration", name).Msg("failed to record migration")
		}
		if err := tx.Commit(); err != nil {
			log.Fatal().Err(err).Str("migration", name).Msg("failed to commit migration")
		}
		log.Info().Str("migration", name).Msg("migration applied")
	}
}
