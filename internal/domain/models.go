package domain

import (
	"fmt"
	"strings"
	"time"
)

type GameState int

const (
	GamePending GameState = iota
	GameSubmitted
	GameScored
	GameVoided
)

var gameStateLabels = map[GameState]string{
	GamePending:   "pending",
	GameSubmitted: "submitted",
	GameScored:    "scored",
	GameVoided:    "voided",
}

func (s GameState) String() string {
	if label, ok := gameStateLabels[s]; ok {
		return label
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

func ParseGameState(label string) (GameState, error) {
	for state, l := range gameStateLabels {
		if l == label {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown game state %q", label)
}

// Scorable reports whether score may run from this state. Voided games may be
// rescored after a mistaken void.
func (s GameState) Scorable() bool {
	return s == GamePending || s == GameSubmitted || s == GameVoided
}

// PerPlayerResult is the outcome recorded in recentgames for one participant.
type PerPlayerResult int

const (
	ResultWin PerPlayerResult = iota + 1
	ResultLose
	ResultVoided
)

var resultLabels = map[PerPlayerResult]string{
	ResultWin:    "win",
	ResultLose:   "lose",
	ResultVoided: "voided",
}

func (r PerPlayerResult) String() string {
	if label, ok := resultLabels[r]; ok {
		return label
	}
	return fmt.Sprintf("PerPlayerResult(%d)", int(r))
}

// ParsePerPlayerResult maps stored labels onto results. The label "loss" is
// not a result: it is only ever compared against by the void path.
func ParsePerPlayerResult(label string) (PerPlayerResult, error) {
	for result, l := range resultLabels {
		if l == label {
			return result, nil
		}
	}
	return 0, fmt.Errorf("unknown per-player result %q", label)
}

type GameType string

const (
	GameTypeRanked GameType = "ranked"
	GameTypeCasual GameType = "casual"
)

// Counters are the additive per-player statistics. The same shape carries
// totals on a Player and signed increments for a store update.
type Counters struct {
	MVPs         int
	BedsBroken   int
	Kills        int
	Deaths       int
	FinalKills   int
	Diamonds     int
	Irons        int
	Gold         int
	Emeralds     int
	BlocksPlaced int
}

func (c Counters) Negate() Counters {
	return Counters{
		MVPs:         -c.MVPs,
		BedsBroken:   -c.BedsBroken,
		Kills:        -c.Kills,
		Deaths:       -c.Deaths,
		FinalKills:   -c.FinalKills,
		Diamonds:     -c.Diamonds,
		Irons:        -c.Irons,
		Gold:         -c.Gold,
		Emeralds:     -c.Emeralds,
		BlocksPlaced: -c.BlocksPlaced,
	}
}

func (c Counters) IsZero() bool {
	return c == Counters{}
}

type Player struct {
	DiscordID string
	IGN       string

	Elo        int
	DailyElo   int
	HighestElo int

	Exp      int
	TotalExp int
	Level    int

	Wins             int
	Losses           int
	WinStreak        int
	LoseStreak       int
	HighestWinStreak int

	Counters

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewPlayer returns a freshly registered player.
func NewPlayer(discordID, ign string) *Player {
	now := time.Now().UTC()
	return &Player{
		DiscordID: discordID,
		IGN:       ign,
		Level:     1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RatingUpdate is the set of rating fields written together after a score or
// a void.
type RatingUpdate struct {
	Elo              int
	DailyElo         int
	HighestElo       int
	Exp              int
	TotalExp         int
	Level            int
	Wins             int
	Losses           int
	WinStreak        int
	LoseStreak       int
	HighestWinStreak int
}

func (p *Player) RatingUpdate() RatingUpdate {
	return RatingUpdate{
		Elo:              p.Elo,
		DailyElo:         p.DailyElo,
		HighestElo:       p.HighestElo,
		Exp:              p.Exp,
		TotalExp:         p.TotalExp,
		Level:            p.Level,
		Wins:             p.Wins,
		Losses:           p.Losses,
		WinStreak:        p.WinStreak,
		LoseStreak:       p.LoseStreak,
		HighestWinStreak: p.HighestWinStreak,
	}
}

// RatingBand maps the half-open rating interval [MinElo, MaxElo) to its
// per-outcome deltas and display role.
type RatingBand struct {
	MinElo   int
	MaxElo   int
	WinElo   int
	LoseElo  int
	MVPElo   int
	RoleID   string
	RankName string
}

func (b RatingBand) Contains(elo int) bool {
	return elo >= b.MinElo && elo < b.MaxElo
}

// MatchStats are the advanced statistics reported for one player in one match.
type MatchStats struct {
	Kills        int `json:"kills"`
	Deaths       int `json:"deaths"`
	FinalKills   int `json:"finalkills"`
	Diamonds     int `json:"diamonds"`
	Irons        int `json:"irons"`
	Gold         int `json:"gold"`
	Emeralds     int `json:"emeralds"`
	BlocksPlaced int `json:"blocksplaced"`
}

// StatsByIGN keys match statistics by lower-cased IGN.
type StatsByIGN map[string]MatchStats

func (s StatsByIGN) For(ign string) (MatchStats, bool) {
	if s == nil {
		return MatchStats{}, false
	}
	stats, ok := s[strings.ToLower(ign)]
	return stats, ok
}

type Game struct {
	GameID      int64
	Team1       []string
	Team2       []string
	State       GameState
	GameType    GameType
	StartTime   time.Time
	EndTime     *time.Time
	WinningTeam []string
	LosingTeam  []string
	MVPs        []string
	BedBreakers []string
	// Result is "win" or "lose" from team 1's perspective once scored.
	Result      string
	SubmittedBy string
	ScoredBy    string
	VoidedBy    string
}

func (g *Game) Participants() []string {
	out := make([]string, 0, len(g.Team1)+len(g.Team2))
	out = append(out, g.Team1...)
	return append(out, g.Team2...)
}

func (g *Game) IsCasual() bool {
	return g.GameType == GameTypeCasual
}

// ScoreRecord is what the scored transition writes onto the games row.
type ScoreRecord struct {
	WinningTeam []string
	LosingTeam  []string
	MVPs        []string
	BedBreakers []string
	Result      string
	ScoredBy    string
	EndTime     time.Time
}

// RecentGame is the per-player record of a scored game. It is the undo log
// used by void.
type RecentGame struct {
	ID        string
	GameID    int64
	DiscordID string
	Result    PerPlayerResult
	State     GameState
	GameType  GameType
	IsMVP     bool
	EloChange int

	// AppliedEloChange differs from EloChange when the rating was floored.
	AppliedEloChange int
	BedBroke         bool
	MatchStats
	Date    time.Time
	EndTime time.Time
}

type Settings struct {
	DiscordID            string
	IsPrefixToggled      bool
	StaticNickname       bool
	Nickname             string
	IsScoringPingToggled bool
}

// GameChannels are the chat and voice surfaces created for one game.
type GameChannels struct {
	GameID      int64
	TextChannel string
	Team1VC     string
	Team2VC     string
}

func (c *GameChannels) VoiceChannels() []string {
	var out []string
	for _, id := range []string{c.Team1VC, c.Team2VC} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
