package platform

import (
	"context"
	"fmt"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// NewActor opens the primary bot session, and the worker session when a
// worker token is configured, for the lifetime of the app.
func NewActor(lc fx.Lifecycle, cfg *config.Config, m *metrics.Collectors, logger zerolog.Logger) (Actor, error) {
	primary, err := NewSession(cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	sessions := []*discordgo.Session{primary}

	var worker Actor
	if cfg.DiscordWorkerToken != "" {
		ws, err := NewSession(cfg.DiscordWorkerToken)
		if err != nil {
			return nil, fmt.Errorf("worker: %w", err)
		}
		sessions = append(sessions, ws)
		worker = NewDiscord(ws, "worker", m, logger)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			for _, s := range sessions {
				if err := s.Open(); err != nil {
					return fmt.Errorf("failed to open discord session: %w", err)
				}
			}
			logger.Info().Int("sessions", len(sessions)).Msg("discord sessions opened")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			for _, s := range sessions {
				if err := s.Close(); err != nil {
					logger.Warn().Err(err).Msg("error closing discord session")
				}
			}
			return nil
		},
	})

	return NewFallback(NewDiscord(primary, "primary", m, logger), worker, logger), nil
}

var Module = fx.Provide(NewActor)
