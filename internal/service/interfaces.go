package service

import (
	"context"
	"ranked-bedwars/internal/announce"
	"ranked-bedwars/internal/domain"
	"time"
)

type UserStore interface {
	Get(ctx context.Context, discordID string) (*domain.Player, error)
	GetByIGN(ctx context.Context, ign string) (*domain.Player, error)
	Create(ctx context.Context, p *domain.Player) error
	Delete(ctx context.Context, discordID string) error
	SetRating(ctx context.Context, discordID string, u domain.RatingUpdate) error
	IncrementCounters(ctx context.Context, discordID string, c domain.Counters) error
	ResetDailyElo(ctx context.Context) (int64, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.Player, error)
}

type GameStore interface {
	Get(ctx context.Context, gameID int64) (*domain.Game, error)
	Create(ctx context.Context, g *domain.Game) error
	MarkSubmitted(ctx context.Context, gameID int64, submittedBy string) (bool, error)
	MarkScored(ctx context.Context, gameID int64, rec domain.ScoreRecord) (bool, error)
	MarkVoided(ctx context.Context, gameID int64, voidedBy string, at time.Time) (bool, error)
}

type RecentGameStore interface {
	Upsert(ctx context.Context, rg *domain.RecentGame) error
	ListByGame(ctx context.Context, gameID int64) ([]domain.RecentGame, error)
	ListByPlayer(ctx context.Context, discordID string, limit int) ([]domain.RecentGame, error)
	ResetForVoid(ctx context.Context, gameID int64) (int64, error)
}

type BandStore interface {
	List(ctx context.Context) ([]domain.RatingBand, error)
	Upsert(ctx context.Context, b domain.RatingBand) error
	Delete(ctx context.Context, roleID string) error
}

type BoosterStore interface {
	Multiplier(ctx context.Context) (string, error)
	SetMultiplier(ctx context.Context, raw string) error
}

type SettingsStore interface {
	GetOrCreate(ctx context.Context, discordID string) (*domain.Settings, error)
	Upsert(ctx context.Context, s *domain.Settings) error
}

type CounterStore interface {
	Next(ctx context.Context, name string) (int64, error)
}

type GameChannelsStore interface {
	Get(ctx context.Context, gameID int64) (*domain.GameChannels, error)
	Upsert(ctx context.Context, c *domain.GameChannels) error
}

type Announcer interface {
	AnnounceScore(ctx context.Context, s announce.Scored) error
	AnnounceVoid(ctx context.Context, v announce.Voided) error
	Notify(ctx context.Context, kind announce.NoticeKind, title string, gameID int64, reason error)
}

type TeardownScheduler interface {
	Schedule(gameID int64)
}

// StatsSource hands out statistics the game server reported for a game.
// Peek leaves them buffered and Take removes them; bedBreakers holds
// lower-cased IGNs.
type StatsSource interface {
	Peek(gameID int64) (stats domain.StatsByIGN, bedBreakers []string, ok bool)
	Take(gameID int64) (stats domain.StatsByIGN, bedBreakers []string, ok bool)
}

// StoreHealth confirms the store is reachable, reconnecting if needed.
type StoreHealth interface {
	Ensure(ctx context.Context) error
}

// Stores bundles the persistence the services need.
type Stores struct {
	Users       UserStore
	Games       GameStore
	RecentGames RecentGameStore
	Bands       BandStore
	Booster     BoosterStore
	Settings    SettingsStore
	Counters    CounterStore
	Channels    GameChannelsStore
	// Health is optional.
	Health StoreHealth
}
