package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	return Open(cfg.DBPath, logger)
}

// Open connects to the sqlite file at path, tunes it and applies migrations.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("path", path).Msg("connecting to database")

	// busy_timeout is per connection, so it goes into the DSN
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(constants.DBMaxOpenConns)
	db.SetMaxIdleConns(constants.DBMaxIdleConns)
	db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(constants.DBMaxIdleTime)

	if err := optimizeSQLite(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to optimize SQLite")
		return nil, fmt.Errorf("failed to optimize SQLite: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		logger.Error().Err(err).Msg("failed to run migrations")
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database connection established and optimized")
	return db, nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info().Msg("migrations completed successfully")
	return nil
}

func optimizeSQLite(sqlDB *sql.DB, logger zerolog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"cache_size", "-16000"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := sqlDB.Exec(query); err != nil {
			logger.Warn().
				Err(err).
				Str("pragma", pragma.name).
				Str("value", pragma.value).
				Msg("failed to set pragma")
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		logger.Debug().
			Str("pragma", pragma.name).
			Str("value", pragma.value).
			Msg("SQLite pragma set")
	}

	return nil
}

// Keeper guards the shared handle. database/sql reopens broken connections on
// its own; Ensure pings with backoff so callers see ErrStoreUnavailable only
// after the retry schedule is exhausted.
type Keeper struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewKeeper(db *sql.DB, logger zerolog.Logger) *Keeper {
	return &Keeper{db: db, logger: logger}
}

func (k *Keeper) Ensure(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = constants.StoreRetryInitial
	b.Multiplier = constants.StoreRetryMultiplier
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
		defer cancel()
		return k.db.PingContext(pingCtx)
	}
	notify := func(err error, wait time.Duration) {
		k.logger.Warn().Err(err).Dur("retry_in", wait).Msg("store ping failed, reconnecting")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, constants.StoreRetryAttempts-1), ctx)
	if err := backoff.RetryNotify(ping, policy, notify); err != nil {
		k.logger.Error().Err(err).Msg("store unavailable")
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}
