package server

import (
	"net/http"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

const (
	MetricsPath = "/metrics"
	FeedPath    = "/ws/games"
)

// NewRouter mounts /metrics always, the read API when api.enabled and the
// game server feed when websocket.enabled.
func NewRouter(cfg *config.Config, api *API, feed *Feed, reg *prometheus.Registry, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID(logger, MetricsPath))

	r.Handle(MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if cfg.Bot.API.Enabled {
		c := cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		})
		r.Mount(cfg.Bot.API.Path, c.Handler(api.Routes()))
		logger.Info().Str("path", cfg.Bot.API.Path).Msg("read api mounted")
	}

	if cfg.Bot.Websocket.Enabled {
		r.Handle(FeedPath, feed)
		logger.Info().Str("path", FeedPath).Msg("game server feed mounted")
	}

	return r
}
