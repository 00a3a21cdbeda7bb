package service

import (
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/announce"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

var ignPattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,16}$`)

type PlayerService struct {
	users       UserStore
	recentGames RecentGameStore
	settings    SettingsStore
	reconciler  *Reconciler
	announcer   Announcer
	logger      zerolog.Logger
}

func NewPlayerService(stores Stores, reconciler *Reconciler, announcer Announcer, logger zerolog.Logger) *PlayerService {
	return &PlayerService{
		users:       stores.Users,
		recentGames: stores.RecentGames,
		settings:    stores.Settings,
		reconciler:  reconciler,
		announcer:   announcer,
		logger:      logger,
	}
}

// Register stores a fresh player for discordID and syncs their roles. The IGN
// must be free case-insensitively.
func (s *PlayerService) Register(ctx context.Context, discordID, ign string) (*domain.Player, error) {
	ign = strings.TrimSpace(ign)
	if !ignPattern.MatchString(ign) {
		return nil, fmt.Errorf("ign %q is not a valid handle: %w", ign, domain.ErrIneligibleState)
	}

	if _, err := s.users.Get(ctx, discordID); err == nil {
		return nil, fmt.Errorf("%s is already registered: %w", discordID, domain.ErrIneligibleState)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing, err := s.users.GetByIGN(ctx, ign); err == nil {
		return nil, fmt.Errorf("ign %q is taken by %s: %w", ign, existing.DiscordID, domain.ErrIneligibleState)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	p := domain.NewPlayer(discordID, ign)
	if err := s.users.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("discord_id", discordID).Str("ign", ign).Msg("player registered")

	if err := s.reconciler.Reconcile(ctx, discordID); err != nil {
		s.logger.Warn().Err(err).Str("discord_id", discordID).Msg("reconcile after register failed")
		s.announcer.Notify(ctx, announce.NoticeRegistration, "Registration sync failed", 0, err)
	}
	return p, nil
}

// Unregister deletes the player row; their recent games stay.
func (s *PlayerService) Unregister(ctx context.Context, discordID string) error {
	if err := s.users.Delete(ctx, discordID); err != nil {
		return err
	}
	s.logger.Info().Str("discord_id", discordID).Msg("player unregistered")

	if err := s.reconciler.Reconcile(ctx, discordID); err != nil {
		s.logger.Warn().Err(err).Str("discord_id", discordID).Msg("reconcile after unregister failed")
		s.announcer.Notify(ctx, announce.NoticeRegistration, "Unregister sync failed", 0, err)
	}
	return nil
}

func (s *PlayerService) GetPlayer(ctx context.Context, discordID string) (*domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()
	return s.users.Get(ctx, discordID)
}

func (s *PlayerService) RecentGames(ctx context.Context, discordID string, limit int) ([]domain.RecentGame, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if limit <= 0 || limit > constants.RecentGamesLimit {
		limit = constants.RecentGamesLimit
	}
	if _, err := s.users.Get(ctx, discordID); err != nil {
		return nil, err
	}
	return s.recentGames.ListByPlayer(ctx, discordID, limit)
}

func (s *PlayerService) Leaderboard(ctx context.Context, limit int) ([]domain.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if limit <= 0 || limit > constants.LeaderboardLimit {
		limit = constants.LeaderboardLimit
	}
	return s.users.Leaderboard(ctx, limit)
}

// UpdateSettings stores the player's display settings and re-syncs their
// nickname.
func (s *PlayerService) UpdateSettings(ctx context.Context, settings *domain.Settings) error {
	settings.Nickname = strings.TrimSpace(settings.Nickname)
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return err
	}
	if err := s.reconciler.Reconcile(ctx, settings.DiscordID); err != nil {
		s.logger.Warn().Err(err).Str("discord_id", settings.DiscordID).Msg("reconcile after settings change failed")
	}
	return nil
}

func (s *PlayerService) Settings(ctx context.Context, discordID string) (*domain.Settings, error) {
	return s.settings.GetOrCreate(ctx, discordID)
}

// ResetDailyElo zeroes every player's daily rating change.
func (s *PlayerService) ResetDailyElo(ctx context.Context) (int64, error) {
	n, err := s.users.ResetDailyElo(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("daily elo reset failed")
		return 0, err
	}
	s.logger.Info().Int64("players", n).Msg("daily elo reset")
	return n, nil
}
