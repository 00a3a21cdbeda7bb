package service

import (
	"context"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"

	"github.com/rs/zerolog"
)

// GameDetail is a game with the per-player rows recorded for it.
type GameDetail struct {
	Game    *domain.Game
	Players []domain.RecentGame
}

type GameService struct {
	games       GameStore
	recentGames RecentGameStore
	channels    GameChannelsStore
	logger      zerolog.Logger
}

func NewGameService(stores Stores, logger zerolog.Logger) *GameService {
	return &GameService{games: stores.Games, recentGames: stores.RecentGames, channels: stores.Channels, logger: logger}
}

func (s *GameService) GetGame(ctx context.Context, gameID int64) (*GameDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	s.logger.Debug().Int64("game_id", gameID).Msg("getting game")

	g, err := s.games.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	rows, err := s.recentGames.ListByGame(ctx, gameID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("game_id", gameID).Msg("failed to load per-player rows")
		return nil, err
	}
	return &GameDetail{Game: g, Players: rows}, nil
}

// AttachChannels records the chat and voice channels created for a game so
// teardown can remove them once it is scored or voided.
func (s *GameService) AttachChannels(ctx context.Context, c *domain.GameChannels) error {
	if _, err := s.games.Get(ctx, c.GameID); err != nil {
		return err
	}
	if err := s.channels.Upsert(ctx, c); err != nil {
		return err
	}
	s.logger.Info().
		Int64("game_id", c.GameID).
		Str("text_channel", c.TextChannel).
		Strs("voice_channels", c.VoiceChannels()).
		Msg("game channels attached")
	return nil
}
