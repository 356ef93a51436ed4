package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"prreviewer/internal/api"
	"prreviewer/internal/config"
	"prreviewer/internal/migration"
	"prreviewer/internal/repository/postgres"
	"prreviewer/internal/seed"
	"prreviewer/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := config.LoadFromEnv()
	logger.Info("application starting", "port", cfg.Port, "max_reviewers", cfg.MaxReviewers)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBConn)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migration.Run(ctx, pool); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	repo := postgres.NewRepo(pool)
	svc := service.NewService(repo, service.NewRandomPicker(), logger, cfg.MaxReviewers)

	if cfg.SeedDemoData {
		if err := seed.Run(ctx, svc, logger); err != nil {
			logger.Warn("demo data seeding failed", "error", err)
		}
	}

	h := api.NewHandler(svc, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	logger.Info("server starting", "address", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
