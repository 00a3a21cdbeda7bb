package repository

import (
	"context"
	"database/sql"
	"fmt"
	"ranked-bedwars/internal/domain"

	"github.com/rs/zerolog"
)

type SettingsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSettingsRepository(sqlDB *sql.DB, logger zerolog.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// GetOrCreate loads the player's settings, inserting the defaults first when
// none exist.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, discordID string) (*domain.Settings, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO settings (discordid) VALUES (?) ON CONFLICT (discordid) DO NOTHING`, discordID); err != nil {
		return nil, fmt.Errorf("failed to create settings for %s: %w", discordID, err)
	}

	s := domain.Settings{DiscordID: discordID}
	err := r.db.QueryRowContext(ctx, `
		SELECT isprefixtoggled, staticnickname, nickname, isscoringpingtoggled
		FROM settings WHERE discordid = ?`, discordID,
	).Scan(&s.IsPrefixToggled, &s.StaticNickname, &s.Nickname, &s.IsScoringPingToggled)
	if err != nil {
		return nil, notFound(err, "settings", discordID)
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s *domain.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (discordid, isprefixtoggled, staticnickname, nickname, isscoringpingtoggled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (discordid) DO UPDATE SET
			isprefixtoggled = excluded.isprefixtoggled,
			staticnickname = excluded.staticnickname,
			nickname = excluded.nickname,
			isscoringpingtoggled = excluded.isscoringpingtoggled`,
		s.DiscordID, s.IsPrefixToggled, s.StaticNickname, s.Nickname, s.IsScoringPingToggled,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings for %s: %w", s.DiscordID, err)
	}
	return nil
}
