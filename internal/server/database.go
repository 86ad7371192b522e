package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	repo "github.com/joseph-ayodele/handwriting-extractor/internal/repository"
)

// ConnectDB opens the configured database and applies the form_data schema.
func ConnectDB(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if err := repo.Migrate(ctx, db, logger); err != nil {
		repo.Close(db, logger)
		return nil, err
	}

	logger.Info("successfully connected to database", "dialect", db.Dialect())
	return db, nil
}

// PingDB pings the database to ensure it's responsive
func PingDB(ctx context.Context, db *repo.DB, logger *slog.Logger, timeout time.Duration) error {
	if db == nil {
		return common.NewAppError("DB_UNAVAILABLE", "database not configured", common.ErrUnavailable)
	}
	if err := repo.HealthCheck(ctx, db, timeout, logger); err != nil {
		return err
	}
	return nil
}
