package fx

import (
	"database/sql"
	"ranked-bedwars/internal/announce"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/database"
	"ranked-bedwars/internal/logger"
	"ranked-bedwars/internal/metrics"
	"ranked-bedwars/internal/platform"
	"ranked-bedwars/internal/repository"
	"ranked-bedwars/internal/server"
	"ranked-bedwars/internal/service"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
)

const tracerName = "ranked-bedwars"

type repositories struct {
	fx.In

	Users       *repository.UserRepository
	Games       *repository.GameRepository
	RecentGames *repository.RecentGameRepository
	Bands       *repository.RatingBandRepository
	Booster     *repository.BoosterRepository
	Settings    *repository.SettingsRepository
	Counters    *repository.CounterRepository
	Channels    *repository.GameChannelsRepository
}

func ProvideStores(r repositories, keeper *database.Keeper) service.Stores {
	return service.Stores{
		Users:       r.Users,
		Games:       r.Games,
		RecentGames: r.RecentGames,
		Bands:       r.Bands,
		Booster:     r.Booster,
		Settings:    r.Settings,
		Counters:    r.Counters,
		Channels:    r.Channels,
		Health:      keeper,
	}
}

func ProvideTracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func ProvideRatingTable(stores service.Stores, logger zerolog.Logger) *service.RatingTable {
	return service.NewRatingTable(stores.Bands, stores.Booster, logger)
}

func ProvideTeardown(lc fx.Lifecycle, actor platform.Actor, channels *repository.GameChannelsRepository, cfg *config.Config, m *metrics.Collectors, logger zerolog.Logger) *announce.Teardown {
	return announce.NewLifecycleTeardown(lc, actor, channels, cfg, m, logger)
}

func ProvideCloser(lc fx.Lifecycle, db *sql.DB, logger zerolog.Logger) {
	lc.Append(fx.StopHook(func() {
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing database connection")
		}
	}))
}

// Core is everything both binaries share: config, storage, platform and the
// scoring services.
var Core = fx.Options(
	logger.Module,
	config.Module,
	fx.Provide(database.New),
	fx.Provide(database.NewKeeper),
	fx.Invoke(ProvideCloser),
	// repos
	fx.Provide(repository.NewUserRepository),
	fx.Provide(repository.NewGameRepository),
	fx.Provide(repository.NewRecentGameRepository),
	fx.Provide(repository.NewRatingBandRepository),
	fx.Provide(repository.NewBoosterRepository),
	fx.Provide(repository.NewSettingsRepository),
	fx.Provide(repository.NewCounterRepository),
	fx.Provide(repository.NewGameChannelsRepository),
	fx.Provide(ProvideStores),
	// observability
	fx.Provide(metrics.NewRegistry),
	fx.Provide(metrics.NewFromRegistry),
	fx.Provide(ProvideTracer),
	// platform
	platform.Module,
	fx.Provide(fx.Annotate(announce.NewAnnouncer, fx.As(new(service.Announcer)))),
	fx.Provide(fx.Annotate(ProvideTeardown, fx.As(fx.Self()), fx.As(new(service.TeardownScheduler)))),
	fx.Provide(fx.Annotate(server.NewStatsHub, fx.As(fx.Self()), fx.As(new(service.StatsSource)))),
	// svc
	fx.Provide(ProvideRatingTable),
	fx.Provide(service.NewReconciler),
	fx.Provide(fx.Annotate(service.NewCoordinator, fx.As(fx.Self()), fx.As(new(server.Scorer)))),
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewGameService),
)

// Module adds the HTTP surface served by the daemon.
var Module = fx.Options(
	Core,
	fx.Provide(server.NewAPI),
	fx.Provide(server.NewFeed),
	fx.Provide(server.NewRouter),
)
