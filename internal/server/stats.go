package server

import (
	"errors"
	"maps"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/service"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// StatsMessage carries per-player statistics for one game. Players are keyed
// by IGN.
type StatsMessage struct {
	Type    string                 `json:"type"`
	GameID  int64                  `json:"gameid"`
	Players map[string]PlayerStats `json:"players"`
}

type PlayerStats struct {
	domain.MatchStats
	BedBroke bool `json:"bedbroke"`
}

type gameStats struct {
	stats    domain.StatsByIGN
	breakers map[string]struct{}
}

// StatsHub buffers reported statistics per game until scoring takes them.
// The oldest game is evicted once more than constants.StatsBufferGames are
// held.
type StatsHub struct {
	mu     sync.Mutex
	games  map[int64]*gameStats
	order  []int64
	limit  int
	logger zerolog.Logger
}

func NewStatsHub(logger zerolog.Logger) *StatsHub {
	return &StatsHub{
		games:  make(map[int64]*gameStats),
		limit:  constants.StatsBufferGames,
		logger: logger,
	}
}

// Put merges m into the buffer. A later report for the same player replaces
// the earlier one.
func (h *StatsHub) Put(m StatsMessage) error {
	if m.Type != MessageTypeStats {
		return errors.New("unsupported message type " + m.Type)
	}
	if m.GameID <= 0 {
		return errors.New("gameid must be positive")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.games[m.GameID]
	if !ok {
		g = &gameStats{stats: make(domain.StatsByIGN), breakers: make(map[string]struct{})}
		h.games[m.GameID] = g
		h.order = append(h.order, m.GameID)
		h.evict()
	}
	for ign, ps := range m.Players {
		key := strings.ToLower(strings.TrimSpace(ign))
		if key == "" {
			continue
		}
		g.stats[key] = ps.MatchStats
		if ps.BedBroke {
			g.breakers[key] = struct{}{}
		} else {
			delete(g.breakers, key)
		}
	}
	return nil
}

func (h *StatsHub) evict() {
	for len(h.order) > h.limit {
		oldest := h.order[0]
		h.order = h.order[1:]
		delete(h.games, oldest)
		h.logger.Warn().Int64("game_id", oldest).Msg("stats buffer full, dropping oldest game")
	}
}

// Peek returns a copy of the buffered statistics for gameID without
// removing them.
func (h *StatsHub) Peek(gameID int64) (domain.StatsByIGN, []string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.games[gameID]
	if !ok {
		return nil, nil, false
	}
	return maps.Clone(g.stats), g.breakerList(), true
}

// Take removes and returns the buffered statistics for gameID.
func (h *StatsHub) Take(gameID int64) (domain.StatsByIGN, []string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.games[gameID]
	if !ok {
		return nil, nil, false
	}
	delete(h.games, gameID)
	for i, id := range h.order {
		if id == gameID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	return g.stats, g.breakerList(), true
}

func (g *gameStats) breakerList() []string {
	breakers := make([]string, 0, len(g.breakers))
	for ign := range g.breakers {
		breakers = append(breakers, ign)
	}
	return breakers
}

func (h *StatsHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.games)
}

var _ service.StatsSource = (*StatsHub)(nil)
