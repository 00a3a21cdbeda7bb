package service

import (
	"context"
	"fmt"
	"ranked-bedwars/internal/announce"
	"ranked-bedwars/internal/domain"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory implementation of every store the services use.
type memStore struct {
	mu       sync.Mutex
	users    map[string]domain.Player
	games    map[int64]domain.Game
	recent   map[string]domain.RecentGame
	bands    []domain.RatingBand
	booster  string
	settings map[string]domain.Settings
	counters map[string]int64
	channels map[int64]domain.GameChannels

	failSetRating map[string]error
	// games whose MarkScored loses to a concurrent transition
	staleGames    map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]domain.Player),
		games:         make(map[int64]domain.Game),
		recent:        make(map[string]domain.RecentGame),
		settings:      make(map[string]domain.Settings),
		counters:      make(map[string]int64),
		channels:      make(map[int64]domain.GameChannels),
		failSetRating: make(map[string]error),
		staleGames:    make(map[int64]bool),
	}
}

func (m *memStore) stores() Stores {
	return Stores{
		Users:       (*memUsers)(m),
		Games:       (*memGames)(m),
		RecentGames: (*memRecent)(m),
		Bands:       (*memBands)(m),
		Booster:     (*memBooster)(m),
		Settings:    (*memSettings)(m),
		Counters:    (*memCounters)(m),
		Channels:    (*memChannels)(m),
	}
}

func (m *memStore) player(id string) domain.Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) putPlayer(p domain.Player) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[p.DiscordID] = p
}

func (m *memStore) game(id int64) domain.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[id]
}

func (m *memStore) putGame(g domain.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.GameID] = g
}

func (m *memStore) row(gameID int64, discordID string) (domain.RecentGame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rg, ok := m.recent[recentKey(gameID, discordID)]
	return rg, ok
}

func recentKey(gameID int64, discordID string) string {
	return fmt.Sprintf("%d/%s", gameID, discordID)
}

type memUsers memStore

func (u *memUsers) Get(_ context.Context, id string) (*domain.Player, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.users[id]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

func (u *memUsers) GetByIGN(_ context.Context, ign string) (*domain.Player, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, p := range u.users {
		if strings.EqualFold(p.IGN, ign) {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("player %s: %w", ign, domain.ErrNotFound)
}

func (u *memUsers) Create(_ context.Context, p *domain.Player) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[p.DiscordID]; ok {
		return domain.ErrIneligibleState
	}
	u.users[p.DiscordID] = *p
	return nil
}

func (u *memUsers) Delete(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.users[id]; !ok {
		return fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}
	delete(u.users, id)
	return nil
}

func (u *memUsers) SetRating(_ context.Context, id string, r domain.RatingUpdate) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.failSetRating[id]; err != nil {
		return err
	}
	p, ok := u.users[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}
	p.Elo, p.DailyElo, p.HighestElo = r.Elo, r.DailyElo, r.HighestElo
	p.Exp, p.TotalExp, p.Level = r.Exp, r.TotalExp, r.Level
	p.Wins, p.Losses = r.Wins, r.Losses
	p.WinStreak, p.LoseStreak, p.HighestWinStreak = r.WinStreak, r.LoseStreak, r.HighestWinStreak
	u.users[id] = p
	return nil
}

func (u *memUsers) IncrementCounters(_ context.Context, id string, c domain.Counters) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	p, ok := u.users[id]
	if !ok {
		return fmt.Errorf("player %s: %w", id, domain.ErrNotFound)
	}
	add := func(dst *int, d int) { *dst = max(0, *dst+d) }
	add(&p.MVPs, c.MVPs)
	add(&p.BedsBroken, c.BedsBroken)
	add(&p.Kills, c.Kills)
	add(&p.Deaths, c.Deaths)
	add(&p.FinalKills, c.FinalKills)
	add(&p.Diamonds, c.Diamonds)
	add(&p.Irons, c.Irons)
	add(&p.Gold, c.Gold)
	add(&p.Emeralds, c.Emeralds)
	add(&p.BlocksPlaced, c.BlocksPlaced)
	u.users[id] = p
	return nil
}

func (u *memUsers) ResetDailyElo(_ context.Context) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	var n int64
	for id, p := range u.users {
		p.DailyElo = 0
		u.users[id] = p
		n++
	}
	return n, nil
}

func (u *memUsers) Leaderboard(_ context.Context, limit int) ([]domain.Player, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]domain.Player, 0, len(u.users))
	for _, p := range u.users {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Elo > out[j].Elo })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memGames memStore

func (g *memGames) Get(_ context.Context, id int64) (*domain.Game, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	game, ok := g.games[id]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", id, domain.ErrNotFound)
	}
	return &game, nil
}

func (g *memGames) Create(_ context.Context, game *domain.Game) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.games[game.GameID] = *game
	return nil
}

func (g *memGames) MarkSubmitted(_ context.Context, id int64, by string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	game, ok := g.games[id]
	if !ok || game.State != domain.GamePending {
		return false, nil
	}
	game.State, game.SubmittedBy = domain.GameSubmitted, by
	g.games[id] = game
	return true, nil
}

func (g *memGames) MarkScored(_ context.Context, id int64, rec domain.ScoreRecord) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	game, ok := g.games[id]
	if !ok || !game.State.Scorable() || g.staleGames[id] {
		return false, nil
	}
	game.State = domain.GameScored
	game.WinningTeam, game.LosingTeam = rec.WinningTeam, rec.LosingTeam
	game.MVPs, game.BedBreakers = rec.MVPs, rec.BedBreakers
	game.Result, game.ScoredBy = rec.Result, rec.ScoredBy
	end := rec.EndTime
	game.EndTime = &end
	g.games[id] = game
	return true, nil
}

func (g *memGames) MarkVoided(_ context.Context, id int64, by string, at time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	game, ok := g.games[id]
	if !ok || game.State == domain.GameVoided {
		return false, nil
	}
	game.State, game.VoidedBy, game.MVPs = domain.GameVoided, by, nil
	game.EndTime = &at
	g.games[id] = game
	return true, nil
}

type memRecent memStore

func (r *memRecent) Upsert(_ context.Context, rg *domain.RecentGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recent[recentKey(rg.GameID, rg.DiscordID)] = *rg
	return nil
}

func (r *memRecent) ListByGame(_ context.Context, gameID int64) ([]domain.RecentGame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecentGame
	for _, rg := range r.recent {
		if rg.GameID == gameID {
			out = append(out, rg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DiscordID < out[j].DiscordID })
	return out, nil
}

func (r *memRecent) ListByPlayer(_ context.Context, id string, limit int) ([]domain.RecentGame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RecentGame
	for _, rg := range r.recent {
		if rg.DiscordID == id {
			out = append(out, rg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID > out[j].GameID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memRecent) ResetForVoid(_ context.Context, gameID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, rg := range r.recent {
		if rg.GameID != gameID {
			continue
		}
		r.recent[k] = domain.RecentGame{
			ID:        rg.ID,
			GameID:    rg.GameID,
			DiscordID: rg.DiscordID,
			Result:    domain.ResultVoided,
			State:     domain.GameVoided,
			GameType:  rg.GameType,
			Date:      rg.Date,
			EndTime:   rg.EndTime,
		}
		n++
	}
	return n, nil
}

type memBands memStore

func (b *memBands) List(context.Context) ([]domain.RatingBand, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.bands), nil
}

func (b *memBands) Upsert(_ context.Context, band domain.RatingBand) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bands = slices.DeleteFunc(b.bands, func(x domain.RatingBand) bool { return x.RoleID == band.RoleID })
	b.bands = append(b.bands, band)
	return nil
}

func (b *memBands) Delete(_ context.Context, roleID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bands = slices.DeleteFunc(b.bands, func(x domain.RatingBand) bool { return x.RoleID == roleID })
	return nil
}

type memBooster memStore

func (b *memBooster) Multiplier(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.booster, nil
}

func (b *memBooster) SetMultiplier(_ context.Context, raw string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.booster = raw
	return nil
}

type memSettings memStore

func (s *memSettings) GetOrCreate(_ context.Context, id string) (*domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[id]
	if !ok {
		st = domain.Settings{DiscordID: id}
		s.settings[id] = st
	}
	return &st, nil
}

func (s *memSettings) Upsert(_ context.Context, st *domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[st.DiscordID] = *st
	return nil
}

type memCounters memStore

func (c *memCounters) Next(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name]++
	return c.counters[name], nil
}

type memChannels memStore

func (c *memChannels) Get(_ context.Context, gameID int64) (*domain.GameChannels, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[gameID]
	if !ok {
		return nil, fmt.Errorf("channels %d: %w", gameID, domain.ErrNotFound)
	}
	return &ch, nil
}

func (c *memChannels) Upsert(_ context.Context, ch *domain.GameChannels) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[ch.GameID] = *ch
	return nil
}

// fakeAnnouncer records what would have been published.
type fakeAnnouncer struct {
	mu      sync.Mutex
	scored  []announce.Scored
	voided  []announce.Voided
	notices []string
}

func (a *fakeAnnouncer) AnnounceScore(_ context.Context, s announce.Scored) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scored = append(a.scored, s)
	return nil
}

func (a *fakeAnnouncer) AnnounceVoid(_ context.Context, v announce.Voided) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.voided = append(a.voided, v)
	return nil
}

func (a *fakeAnnouncer) Notify(_ context.Context, _ announce.NoticeKind, title string, _ int64, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notices = append(a.notices, title)
}

type fakeTeardown struct {
	mu    sync.Mutex
	games []int64
}

func (t *fakeTeardown) Schedule(gameID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.games = append(t.games, gameID)
}

type fakeStats struct {
	stats    map[int64]domain.StatsByIGN
	breakers map[int64][]string
}

func (f *fakeStats) Peek(gameID int64) (domain.StatsByIGN, []string, bool) {
	s, ok := f.stats[gameID]
	return s, f.breakers[gameID], ok
}

func (f *fakeStats) Take(gameID int64) (domain.StatsByIGN, []string, bool) {
	s, ok := f.stats[gameID]
	if ok {
		delete(f.stats, gameID)
	}
	return s, f.breakers[gameID], ok
}

var (
	_ UserStore         = (*memUsers)(nil)
	_ GameStore         = (*memGames)(nil)
	_ RecentGameStore   = (*memRecent)(nil)
	_ BandStore         = (*memBands)(nil)
	_ BoosterStore      = (*memBooster)(nil)
	_ SettingsStore     = (*memSettings)(nil)
	_ CounterStore      = (*memCounters)(nil)
	_ GameChannelsStore = (*memChannels)(nil)
	_ Announcer         = (*fakeAnnouncer)(nil)
)
