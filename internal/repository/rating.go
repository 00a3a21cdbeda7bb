package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/rating"

	"github.com/rs/zerolog"
)

type RatingBandRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRatingBandRepository(sqlDB *sql.DB, logger zerolog.Logger) *RatingBandRepository {
	return &RatingBandRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// List returns all bands ordered by minelo.
func (r *RatingBandRepository) List(ctx context.Context) ([]domain.RatingBand, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT roleid, rankname, minelo, maxelo, winelo, loselo, mvpelo
		FROM elos ORDER BY minelo ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rating bands: %w", err)
	}
	defer rows.Close()

	var bands []domain.RatingBand
	for rows.Next() {
		var (
			b      domain.RatingBand
			mvpElo any
		)
		if err := rows.Scan(&b.RoleID, &b.RankName, &b.MinElo, &b.MaxElo, &b.WinElo, &b.LoseElo, &mvpElo); err != nil {
			return nil, fmt.Errorf("failed to scan rating band: %w", err)
		}
		b.MVPElo = rating.CoerceElo(mvpElo)
		bands = append(bands, b)
	}
	return bands, rows.Err()
}

// Upsert writes a band keyed by its role id.
func (r *RatingBandRepository) Upsert(ctx context.Context, b domain.RatingBand) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO elos (roleid, rankname, minelo, maxelo, winelo, loselo, mvpelo)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (roleid) DO UPDATE SET
			rankname = excluded.rankname,
			minelo = excluded.minelo,
			maxelo = excluded.maxelo,
			winelo = excluded.winelo,
			loselo = excluded.loselo,
			mvpelo = excluded.mvpelo`,
		b.RoleID, b.RankName, b.MinElo, b.MaxElo, b.WinElo, b.LoseElo, b.MVPElo,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rating band %s: %w", b.RoleID, err)
	}
	return nil
}

func (r *RatingBandRepository) Delete(ctx context.Context, roleID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM elos WHERE roleid = ?`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete rating band %s: %w", roleID, err)
	}
	return requireAffected(res, "rating band", roleID)
}

type BoosterRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBoosterRepository(sqlDB *sql.DB, logger zerolog.Logger) *BoosterRepository {
	return &BoosterRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Multiplier returns the raw stored multiplier, or "" when none is set.
func (r *BoosterRepository) Multiplier(ctx context.Context) (string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT CAST(multiplier AS TEXT) FROM booster WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load booster: %w", err)
	}
	return raw, nil
}

func (r *BoosterRepository) SetMultiplier(ctx context.Context, raw string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO booster (id, multiplier) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET multiplier = excluded.multiplier`, raw)
	if err != nil {
		return fmt.Errorf("failed to set booster: %w", err)
	}
	return nil
}
