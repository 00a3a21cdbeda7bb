package config

import (
	"fmt"
	"os"
	"ranked-bedwars/internal/domain"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken       string
	DiscordWorkerToken string
	WebsocketToken     string
	DBPath             string
	ServerPort         string
	LogLevel           string
	ConfigPath         string

	Bot Document
}

// Document is the structured bot configuration read from CONFIG_PATH.
type Document struct {
	GuildID   string          `yaml:"guildid"`
	Roles     RolesConfig     `yaml:"roles"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Logging   LoggingConfig   `yaml:"logging"`
	Websocket WebsocketConfig `yaml:"websocket"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Voiding   VoidingConfig   `yaml:"voiding"`
}

type RolesConfig struct {
	Registered   string `yaml:"registered"`
	Unregistered string `yaml:"unregistered"`
	Frozen       string `yaml:"frozen"`
}

type ChannelsConfig struct {
	Scoring     string `yaml:"scoring"`
	Games       string `yaml:"games"`
	Transcripts string `yaml:"transcripts"`
	WaitingVC   string `yaml:"waitingvc"`
	Alerts      string `yaml:"alerts"`
}

type LoggingConfig struct {
	Scoring      string `yaml:"scoring"`
	Voiding      string `yaml:"voiding"`
	Modification string `yaml:"modification"`
	RegAndRename string `yaml:"regandrename"`
}

// WebsocketConfig gates ingestion of advanced per-player statistics.
type WebsocketConfig struct {
	Enabled bool `yaml:"enabled"`
}

type ServerConfig struct {
	ServerName string `yaml:"servername"`
	InviteLink string `yaml:"invitelink"`
}

type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type VoidingConfig struct {
	// RevertLosses makes void decrement losses for rows recorded as "lose".
	// Off by default: the historical void path never matched those rows.
	RevertLosses bool `yaml:"revertlosses"`
}

var snowflake = regexp.MustCompile(`^\d{15,21}$`)

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		DiscordToken:       getEnv("DISCORD_TOKEN", ""),
		DiscordWorkerToken: getEnv("DISCORD_WORKER_TOKEN", ""),
		WebsocketToken:     getEnv("WEBSOCKET_TOKEN", ""),
		DBPath:             getEnv("DB_PATH", "rankedbedwars.db"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ConfigPath:         getEnv("CONFIG_PATH", "config.yaml"),
	}

	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}

	doc, err := LoadDocument(cfg.ConfigPath, logger)
	if err != nil {
		return nil, err
	}
	cfg.Bot = *doc

	if cfg.Bot.Websocket.Enabled && cfg.WebsocketToken == "" {
		logger.Warn().Msg("WEBSOCKET_TOKEN is not set, the game feed will refuse every connection")
	}

	logger.Info().
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("guild_id", cfg.Bot.GuildID).
		Bool("worker_actor", cfg.DiscordWorkerToken != "").
		Bool("websocket", cfg.Bot.Websocket.Enabled).
		Bool("api", cfg.Bot.API.Enabled).
		Msg("configuration loaded")

	return cfg, nil
}

// LoadDocument reads and sanitizes the YAML bot document. Malformed ids are
// logged and cleared so that the steps depending on them are skipped.
func LoadDocument(path string, logger zerolog.Logger) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config document %s: %w", path, err)
	}
	return ParseDocument(data, logger)
}

func ParseDocument(data []byte, logger zerolog.Logger) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config document: %w", err)
	}

	if !snowflake.MatchString(doc.GuildID) {
		return nil, fmt.Errorf("%w: guildid %q is not a snowflake", domain.ErrBadConfig, doc.GuildID)
	}

	ids := map[string]*string{
		"roles.registered":     &doc.Roles.Registered,
		"roles.unregistered":   &doc.Roles.Unregistered,
		"roles.frozen":         &doc.Roles.Frozen,
		"channels.scoring":     &doc.Channels.Scoring,
		"channels.games":       &doc.Channels.Games,
		"channels.transcripts": &doc.Channels.Transcripts,
		"channels.waitingvc":   &doc.Channels.WaitingVC,
		"channels.alerts":      &doc.Channels.Alerts,
		"logging.scoring":      &doc.Logging.Scoring,
		"logging.voiding":      &doc.Logging.Voiding,
		"logging.modification": &doc.Logging.Modification,
		"logging.regandrename": &doc.Logging.RegAndRename,
	}
	for key, id := range ids {
		*id = strings.TrimSpace(*id)
		if *id == "" {
			continue
		}
		if !snowflake.MatchString(*id) {
			logger.Warn().
				Str("key", key).
				Str("value", *id).
				Err(domain.ErrBadConfig).
				Msg("malformed id in config, step will be skipped")
			*id = ""
		}
	}

	doc.API.Path = "/" + strings.Trim(doc.API.Path, "/")
	if doc.API.Path == "/" {
		doc.API.Path = "/api"
	}

	return &doc, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var Module = fx.Provide(Load)
