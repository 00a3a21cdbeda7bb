package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

const GameIDCounter = "gameid"

type CounterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewCounterRepository(sqlDB *sql.DB, logger zerolog.Logger) *CounterRepository {
	return &CounterRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Next atomically increments the named counter and returns the new value.
func (r *CounterRepository) Next(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = value + 1
		RETURNING value`, name,
	).Scan(&value)
	if err != nil {
		r.logger.Error().Err(err).Str("counter", name).Msg("failed to increment counter")
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	return value, nil
}
