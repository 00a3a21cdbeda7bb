package repository

import (
	"context"
	"database/sql"
	"fmt"
	"ranked-bedwars/internal/domain"

	"github.com/rs/zerolog"
)

type GameChannelsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGameChannelsRepository(sqlDB *sql.DB, logger zerolog.Logger) *GameChannelsRepository {
	return &GameChannelsRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *GameChannelsRepository) Get(ctx context.Context, gameID int64) (*domain.GameChannels, error) {
	c := domain.GameChannels{GameID: gameID}
	err := r.db.QueryRowContext(ctx, `SELECT textchannel, team1vc, team2vc FROM gameschannels WHERE gameid = ?`, gameID).
		Scan(&c.TextChannel, &c.Team1VC, &c.Team2VC)
	if err != nil {
		return nil, notFound(err, "game channels", gameID)
	}
	return &c, nil
}

func (r *GameChannelsRepository) Upsert(ctx context.Context, c *domain.GameChannels) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gameschannels (gameid, textchannel, team1vc, team2vc) VALUES (?, ?, ?, ?)
		ON CONFLICT (gameid) DO UPDATE SET
			textchannel = excluded.textchannel,
			team1vc = excluded.team1vc,
			team2vc = excluded.team2vc`,
		c.GameID, c.TextChannel, c.Team1VC, c.Team2VC,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channels for game %d: %w", c.GameID, err)
	}
	return nil
}

func (r *GameChannelsRepository) Delete(ctx context.Context, gameID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM gameschannels WHERE gameid = ?`, gameID); err != nil {
		return fmt.Errorf("failed to delete channels for game %d: %w", gameID, err)
	}
	return nil
}
