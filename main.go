package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mipyme/backend/repository"
	"github.com/mipyme/backend/services"
)

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	config := services.LoadConfig()

	// Connect to the database (Postgres DSN or sqlite file path)
	db, err := repository.Open(
		config.Database.URL,
		config.Database.LogLevel,
		config.Database.MaxIdleConns,
		config.Database.MaxOpenConns,
	)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connection established")

	repo := repository.NewGORMRepository(db)

	// Run migrations
	if config.Database.Migrate {
		if err := repo.AutoMigrate(); err != nil {
			slog.Error("Failed to run migrations", "error", err)
			os.Exit(1)
		}
		slog.Info("Database migrations completed")
	}

	// Create server
	server := services.NewServer(config)
	server.SetDatabase(repo, db)

	// Postgres deployments get a dedicated pool for health checks
	if strings.HasPrefix(config.Database.URL, "postgres://") || strings.HasPrefix(config.Database.URL, "postgresql://") {
		pool, err := pgxpool.New(context.Background(), config.Database.URL)
		if err != nil {
			slog.Error("Failed to create connection pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(context.Background()); err != nil {
			slog.Error("Failed to ping database", "error", err)
			os.Exit(1)
		}
		server.SetPGPool(pool)
	}

	// Initialize services
	if err := server.InitializeServices(); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Start server
	server.Start()
}
