package constants

import "time"

const (
	PlatformCallTimeout = 5 * time.Second
	TeardownGrace       = 30 * time.Second
	AnnouncementTimeout = 15 * time.Second
)

// per guild or channel call budget
const (
	PlatformCallsPerSecond = 5
	PlatformBurst          = 5
)

const (
	DatabaseTimeout = 5 * time.Second
	RequestTimeout  = 30 * time.Second
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

// store reconnect schedule
const (
	StoreRetryInitial    = 1 * time.Second
	StoreRetryMultiplier = 2
	StoreRetryAttempts   = 3
)

const (
	ShutdownTimeout   = 5 * time.Second
	DailyResetHourUTC = 0
)

const (
	ParticipantConcurrency = 4
	RecentGamesLimit       = 25
	LeaderboardLimit       = 50
	MaxNicknameLength      = 32
	StatsBufferGames       = 256
	StatsMessageLimit      = 64 << 10
)

const (
	WinExp      = 10
	LoseExp     = 5
	MVPExp      = 5
	ExpPerLevel = 100
)
