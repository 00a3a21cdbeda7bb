package service

import (
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/rating"
	"regexp"

	"github.com/rs/zerolog"
)

var roleID = regexp.MustCompile(`^\d{15,21}$`)

// RatingTable reads the rating bands and the booster multiplier.
type RatingTable struct {
	bands   BandStore
	booster BoosterStore
	logger  zerolog.Logger
}

func NewRatingTable(bands BandStore, booster BoosterStore, logger zerolog.Logger) *RatingTable {
	return &RatingTable{bands: bands, booster: booster, logger: logger}
}

// Bands returns every band sorted by MinElo. An empty result means no rating
// changes can be applied.
func (t *RatingTable) Bands(ctx context.Context) ([]domain.RatingBand, error) {
	bands, err := t.bands.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating bands: %w", err)
	}
	rating.SortBands(bands)
	return bands, nil
}

// Multiplier never fails: a missing or malformed booster means 1.
func (t *RatingTable) Multiplier(ctx context.Context) float64 {
	raw, err := t.booster.Multiplier(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("failed to load booster, using 1")
		return 1
	}
	m, err := rating.ParseMultiplier(raw)
	if err != nil {
		t.logger.Warn().Err(err).Str("raw", raw).Msg("malformed booster multiplier, using 1")
	}
	return m
}

// SetBand validates and stores b, replacing the band with the same role.
func (t *RatingTable) SetBand(ctx context.Context, b domain.RatingBand) error {
	var errs []error
	if !roleID.MatchString(b.RoleID) {
		errs = append(errs, fmt.Errorf("roleid %q is not a snowflake", b.RoleID))
	}
	if b.MinElo < 0 || b.MaxElo <= b.MinElo {
		errs = append(errs, fmt.Errorf("range [%d, %d) is empty or negative", b.MinElo, b.MaxElo))
	}
	if b.WinElo <= 0 {
		errs = append(errs, fmt.Errorf("winelo %d must be positive", b.WinElo))
	}
	if b.LoseElo > 0 {
		errs = append(errs, fmt.Errorf("loselo %d must not be positive", b.LoseElo))
	}
	if b.MVPElo < 0 {
		errs = append(errs, fmt.Errorf("mvpelo %d must not be negative", b.MVPElo))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBadConfig, err)
	}

	bands, err := t.Bands(ctx)
	if err != nil {
		return err
	}
	for _, other := range bands {
		if other.RoleID != b.RoleID && other.MinElo < b.MaxElo && b.MinElo < other.MaxElo {
			return fmt.Errorf("%w: band overlaps %s [%d, %d)", domain.ErrBadConfig, other.RankName, other.MinElo, other.MaxElo)
		}
	}

	if err := t.bands.Upsert(ctx, b); err != nil {
		return err
	}
	t.logger.Info().Str("role_id", b.RoleID).Str("rank", b.RankName).Int("min_elo", b.MinElo).Int("max_elo", b.MaxElo).Msg("rating band stored")
	return nil
}

func (t *RatingTable) RemoveBand(ctx context.Context, roleID string) error {
	return t.bands.Delete(ctx, roleID)
}

func (t *RatingTable) SetBooster(ctx context.Context, raw string) error {
	if _, err := rating.ParseMultiplier(raw); err != nil {
		return err
	}
	if err := t.booster.SetMultiplier(ctx, raw); err != nil {
		return err
	}
	t.logger.Info().Str("multiplier", raw).Msg("booster updated")
	return nil
}
