package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/service"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// API serves read-only views of players, games and the leaderboard.
type API struct {
	playerSvc *service.PlayerService
	gameSvc   *service.GameService
}

func NewAPI(playerSvc *service.PlayerService, gameSvc *service.GameService) *API {
	return &API{playerSvc: playerSvc, gameSvc: gameSvc}
}

func (a *API) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/players/{discordID}", a.GetPlayer)
	r.Get("/players/{discordID}/games", a.GetPlayerGames)
	r.Get("/games/{gameID}", a.GetGame)
	r.Get("/leaderboard", a.GetLeaderboard)
	return r
}

type PlayerResponse struct {
	DiscordID        string  `json:"discordid"`
	IGN              string  `json:"ign"`
	Elo              int     `json:"elo"`
	DailyElo         int     `json:"dailyelo"`
	HighestElo       int     `json:"highestelo"`
	Level            int     `json:"level"`
	Exp              int     `json:"exp"`
	TotalExp         int     `json:"totalexp"`
	Wins             int     `json:"wins"`
	Losses           int     `json:"losses"`
	WinStreak        int     `json:"winstreak"`
	LoseStreak       int     `json:"losestreak"`
	HighestWinStreak int     `json:"highestws"`
	MVPs             int     `json:"mvps"`
	BedsBroken       int     `json:"bedsbroken"`
	Kills            int     `json:"kills"`
	Deaths           int     `json:"deaths"`
	FinalKills       int     `json:"finalkills"`
	KDRatio          float32 `json:"kdratio"`
	WinRate          float32 `json:"winrate"`
}

type RecentGameResponse struct {
	GameID    int64             `json:"gameid"`
	DiscordID string            `json:"discordid"`
	Result    string            `json:"result"`
	State     string            `json:"state"`
	GameType  string            `json:"gametype"`
	IsMVP     bool              `json:"ismvp"`
	EloChange int               `json:"elochange"`
	BedBroke  bool              `json:"bedbroke"`
	Stats     domain.MatchStats `json:"stats"`
	Date      string            `json:"date"`
}

type GameResponse struct {
	GameID      int64                `json:"gameid"`
	State       string               `json:"state"`
	GameType    string               `json:"gametype"`
	Team1       []string             `json:"team1"`
	Team2       []string             `json:"team2"`
	WinningTeam []string             `json:"winningteam"`
	LosingTeam  []string             `json:"losingteam"`
	MVPs        []string             `json:"mvps"`
	BedBreakers []string             `json:"bedbreakers"`
	StartTime   string               `json:"start_time"`
	EndTime     string               `json:"end_time,omitempty"`
	Players     []RecentGameResponse `json:"players"`
}

func (a *API) GetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := a.playerSvc.GetPlayer(r.Context(), chi.URLParam(r, "discordID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, toPlayerResponse(p))
}

func (a *API) GetPlayerGames(w http.ResponseWriter, r *http.Request) {
	games, err := a.playerSvc.RecentGames(r.Context(), chi.URLParam(r, "discordID"), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]RecentGameResponse, 0, len(games))
	for _, rg := range games {
		resp = append(resp, toRecentGameResponse(rg))
	}
	writeJSON(w, r, resp)
}

func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(chi.URLParam(r, "gameID"), 10, 64)
	if err != nil {
		http.Error(w, "game id must be a number", http.StatusBadRequest)
		return
	}
	detail, err := a.gameSvc.GetGame(r.Context(), gameID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, toGameResponse(detail))
}

func (a *API) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	players, err := a.playerSvc.Leaderboard(r.Context(), queryLimit(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]PlayerResponse, 0, len(players))
	for i := range players {
		resp = append(resp, toPlayerResponse(&players[i]))
	}
	writeJSON(w, r, resp)
}

// queryLimit returns 0 for a missing or malformed limit; services clamp it.
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func toPlayerResponse(p *domain.Player) PlayerResponse {
	return PlayerResponse{
		DiscordID:        p.DiscordID,
		IGN:              p.IGN,
		Elo:              p.Elo,
		DailyElo:         p.DailyElo,
		HighestElo:       p.HighestElo,
		Level:            p.Level,
		Exp:              p.Exp,
		TotalExp:         p.TotalExp,
		Wins:             p.Wins,
		Losses:           p.Losses,
		WinStreak:        p.WinStreak,
		LoseStreak:       p.LoseStreak,
		HighestWinStreak: p.HighestWinStreak,
		MVPs:             p.MVPs,
		BedsBroken:       p.BedsBroken,
		Kills:            p.Kills,
		Deaths:           p.Deaths,
		FinalKills:       p.FinalKills,
		KDRatio:          calculateKD(p.Kills, p.Deaths),
		WinRate:          calculateWinRate(p.Wins, p.Losses),
	}
}

func toRecentGameResponse(rg domain.RecentGame) RecentGameResponse {
	return RecentGameResponse{
		GameID:    rg.GameID,
		DiscordID: rg.DiscordID,
		Result:    rg.Result.String(),
		State:     rg.State.String(),
		GameType:  string(rg.GameType),
		IsMVP:     rg.IsMVP,
		EloChange: rg.EloChange,
		BedBroke:  rg.BedBroke,
		Stats:     rg.MatchStats,
		Date:      rg.Date.Format(time.RFC3339),
	}
}

func toGameResponse(d *service.GameDetail) GameResponse {
	g := d.Game
	resp := GameResponse{
		GameID:      g.GameID,
		State:       g.State.String(),
		GameType:    string(g.GameType),
		Team1:       g.Team1,
		Team2:       g.Team2,
		WinningTeam: g.WinningTeam,
		LosingTeam:  g.LosingTeam,
		MVPs:        g.MVPs,
		BedBreakers: g.BedBreakers,
		StartTime:   g.StartTime.Format(time.RFC3339),
		Players:     make([]RecentGameResponse, 0, len(d.Players)),
	}
	if g.EndTime != nil {
		resp.EndTime = g.EndTime.Format(time.RFC3339)
	}
	for _, rg := range d.Players {
		resp.Players = append(resp.Players, toRecentGameResponse(rg))
	}
	return resp
}

func calculateKD(kills, deaths int) float32 {
	if deaths == 0 {
		return float32(kills)
	}
	return float32(kills) / float32(deaths)
}

func calculateWinRate(wins, losses int) float32 {
	if wins+losses == 0 {
		return 0
	}
	return float32(wins) / float32(wins+losses)
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrStoreUnavailable):
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
