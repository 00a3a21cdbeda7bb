package service

import (
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/announce"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/metrics"
	"ranked-bedwars/internal/rating"
	"ranked-bedwars/internal/repository"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Coordinator runs the match lifecycle: creation, submission, scoring and
// voiding. It owns every write to games and recentgames on those paths.
type Coordinator struct {
	users       UserStore
	games       GameStore
	recentGames RecentGameStore
	settings    SettingsStore
	counters    CounterStore
	health      StoreHealth
	table       *RatingTable
	reconciler  *Reconciler
	announcer   Announcer
	teardown    TeardownScheduler
	stats       StatsSource
	cfg         *config.Config
	metrics     *metrics.Collectors
	tracer      trace.Tracer
	logger      zerolog.Logger

	gameLocks   *keyedMutex
	playerLocks *keyedMutex
	now         func() time.Time
}

func NewCoordinator(
	stores Stores,
	table *RatingTable,
	reconciler *Reconciler,
	announcer Announcer,
	teardown TeardownScheduler,
	stats StatsSource,
	cfg *config.Config,
	m *metrics.Collectors,
	tracer trace.Tracer,
	logger zerolog.Logger,
) *Coordinator {
	return &Coordinator{
		users:       stores.Users,
		games:       stores.Games,
		recentGames: stores.RecentGames,
		settings:    stores.Settings,
		counters:    stores.Counters,
		health:      stores.Health,
		table:       table,
		reconciler:  reconciler,
		announcer:   announcer,
		teardown:    teardown,
		stats:       stats,
		cfg:         cfg,
		metrics:     m,
		tracer:      tracer,
		logger:      logger,
		gameLocks:   newKeyedMutex(),
		playerLocks: newKeyedMutex(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type ScoreRequest struct {
	GameID int64
	// WinningTeam is 1 or 2.
	WinningTeam int
	MVPs        []string
	// MVPIGNs names MVPs by IGN when MVPs is empty.
	MVPIGNs     []string
	BedBreakers []string
	// Stats keyed by IGN. Nil takes whatever the game server reported.
	Stats    domain.StatsByIGN
	ScoredBy string
	Casual   bool
}

// PlayerOutcome is what scoring or voiding did to one participant.
type PlayerOutcome struct {
	DiscordID string
	IGN       string
	Result    domain.PerPlayerResult
	IsMVP     bool
	EloChange int
	Skipped   bool
	Err       error
}

type ScoreReport struct {
	Game    *domain.Game
	Casual  bool
	Players []PlayerOutcome
}

type VoidReport struct {
	Game    *domain.Game
	Players []PlayerOutcome
}

// Failures counts participants whose update hit an error.
func failures(players []PlayerOutcome) int {
	n := 0
	for _, p := range players {
		if p.Err != nil {
			n++
		}
	}
	return n
}

func (r *ScoreReport) Failures() int { return failures(r.Players) }
func (r *VoidReport) Failures() int  { return failures(r.Players) }

func gameKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// CreateGame mints a game id and stores a pending game.
func (c *Coordinator) CreateGame(ctx context.Context, team1, team2 []string, gameType domain.GameType) (*domain.Game, error) {
	if len(team1) == 0 || len(team2) == 0 {
		return nil, fmt.Errorf("both teams need at least one player")
	}
	for _, id := range team1 {
		if slices.Contains(team2, id) {
			return nil, fmt.Errorf("player %s is on both teams", id)
		}
	}
	if gameType == "" {
		gameType = domain.GameTypeRanked
	}

	id, err := c.counters.Next(ctx, repository.GameIDCounter)
	if err != nil {
		return nil, fmt.Errorf("failed to mint game id: %w", err)
	}

	g := &domain.Game{
		GameID:    id,
		Team1:     team1,
		Team2:     team2,
		State:     domain.GamePending,
		GameType:  gameType,
		StartTime: c.now(),
	}
	if err := c.games.Create(ctx, g); err != nil {
		return nil, err
	}

	c.logger.Info().Int64("game_id", id).Str("gametype", string(gameType)).Int("players", len(team1)+len(team2)).Msg("game created")
	return g, nil
}

// Submit marks a pending game as submitted for review.
func (c *Coordinator) Submit(ctx context.Context, gameID int64, submittedBy string) error {
	unlock := c.gameLocks.Lock(gameKey(gameID))
	defer unlock()

	g, err := c.games.Get(ctx, gameID)
	if err != nil {
		return c.reject(ctx, "submit", announce.NoticeScoring, gameID, err)
	}
	if g.State != domain.GamePending {
		return c.reject(ctx, "submit", announce.NoticeScoring, gameID,
			fmt.Errorf("game %d is %s: %w", gameID, g.State, domain.ErrIneligibleState))
	}
	ok, err := c.games.MarkSubmitted(ctx, gameID, submittedBy)
	if err != nil {
		return err
	}
	if !ok {
		return c.reject(ctx, "submit", announce.NoticeScoring, gameID,
			fmt.Errorf("game %d changed state concurrently: %w", gameID, domain.ErrIneligibleState))
	}

	c.logger.Info().Int64("game_id", gameID).Str("submitted_by", submittedBy).Msg("game submitted")
	return nil
}

func (c *Coordinator) ensureStore(ctx context.Context) error {
	if c.health == nil {
		return nil
	}
	return c.health.Ensure(ctx)
}

// reject records a rejected operation and tells the operators.
func (c *Coordinator) reject(ctx context.Context, op string, kind announce.NoticeKind, gameID int64, err error) error {
	c.metrics.Rejected(op)
	c.logger.Warn().Err(err).Str("op", op).Int64("game_id", gameID).Msg("operation rejected")
	c.announcer.Notify(ctx, kind, fmt.Sprintf("%s rejected", strings.ToUpper(op[:1])+op[1:]), gameID, err)
	return err
}

// Score transitions the game to scored and applies the result to every
// participant. Per-player failures are reported, not returned.
func (c *Coordinator) Score(ctx context.Context, req ScoreRequest) (*ScoreReport, error) {
	ctx, span := c.tracer.Start(ctx, "score", trace.WithAttributes(
		attribute.Int64("game_id", req.GameID),
		attribute.Int("winning_team", req.WinningTeam),
	))
	defer span.End()

	if req.WinningTeam != 1 && req.WinningTeam != 2 {
		err := fmt.Errorf("winning team %d: %w", req.WinningTeam, domain.ErrIneligibleState)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.reject(ctx, "score", announce.NoticeScoring, req.GameID, err)
	}

	if err := c.ensureStore(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	unlock := c.gameLocks.Lock(gameKey(req.GameID))
	defer unlock()

	g, err := c.games.Get(ctx, req.GameID)
	if err != nil {
		span.RecordError(err)
		return nil, c.reject(ctx, "score", announce.NoticeScoring, req.GameID, err)
	}
	if !g.State.Scorable() {
		err := fmt.Errorf("game %d is %s: %w", req.GameID, g.State, domain.ErrIneligibleState)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.reject(ctx, "score", announce.NoticeScoring, req.GameID, err)
	}

	winning, losing, result := g.Team1, g.Team2, domain.ResultWin
	if req.WinningTeam == 2 {
		winning, losing, result = g.Team2, g.Team1, domain.ResultLose
	}

	// reported stats stay buffered until the game is marked scored
	stats, bedBreakers, reported := req.Stats, req.BedBreakers, false
	if stats == nil && c.stats != nil {
		if buffered, reportedBreakers, ok := c.stats.Peek(req.GameID); ok {
			stats, reported = buffered, true
			if len(bedBreakers) == 0 {
				bedBreakers = c.resolveIGNs(ctx, g.Participants(), reportedBreakers)
			}
		}
	}

	mvps := req.MVPs
	if len(mvps) == 0 && len(req.MVPIGNs) > 0 {
		igns := make([]string, 0, len(req.MVPIGNs))
		for _, ign := range req.MVPIGNs {
			igns = append(igns, strings.ToLower(ign))
		}
		mvps = c.resolveIGNs(ctx, g.Participants(), igns)
	}

	endTime := c.now()
	rec := domain.ScoreRecord{
		WinningTeam: winning,
		LosingTeam:  losing,
		MVPs:        mvps,
		BedBreakers: bedBreakers,
		Result:      result.String(),
		ScoredBy:    req.ScoredBy,
		EndTime:     endTime,
	}
	ok, err := c.games.MarkScored(ctx, req.GameID, rec)
	if err != nil {
		span.RecordError(err)
		c.announcer.Notify(ctx, announce.NoticeScoring, "Score failed", req.GameID, err)
		return nil, err
	}
	if !ok {
		return nil, c.reject(ctx, "score", announce.NoticeScoring, req.GameID,
			fmt.Errorf("game %d changed state concurrently: %w", req.GameID, domain.ErrIneligibleState))
	}

	if reported {
		c.stats.Take(req.GameID)
	}

	g.State = domain.GameScored
	g.WinningTeam, g.LosingTeam = winning, losing
	g.MVPs, g.BedBreakers = mvps, bedBreakers
	g.Result, g.ScoredBy, g.EndTime = result.String(), req.ScoredBy, &endTime

	casual := req.Casual || g.IsCasual()
	span.SetAttributes(attribute.Bool("casual", casual))
	log := c.logger.With().Int64("game_id", g.GameID).Str("op", "score").Logger()

	report := &ScoreReport{Game: g, Casual: casual}
	if casual {
		report.Players = c.scoreCasual(ctx, g, winning, endTime, log)
	} else {
		report.Players = c.scoreRanked(ctx, g, winning, stats, endTime, log)
	}

	gameType := string(domain.GameTypeRanked)
	if casual {
		gameType = string(domain.GameTypeCasual)
	}
	c.metrics.GameScored(gameType)
	log.Info().Bool("casual", casual).Int("players", len(report.Players)).Int("failures", report.Failures()).Msg("game scored")

	c.publishScore(ctx, report)
	return report, nil
}

func (c *Coordinator) scoreCasual(ctx context.Context, g *domain.Game, winning []string, at time.Time, log zerolog.Logger) []PlayerOutcome {
	participants := g.Participants()
	out := make([]PlayerOutcome, len(participants))
	for i, id := range participants {
		res := domain.ResultLose
		if slices.Contains(winning, id) {
			res = domain.ResultWin
		}
		out[i] = PlayerOutcome{DiscordID: id, IGN: id, Result: res}
		if p, err := c.users.Get(ctx, id); err == nil {
			out[i].IGN = p.IGN
		}

		err := c.recentGames.Upsert(ctx, &domain.RecentGame{
			GameID:    g.GameID,
			DiscordID: id,
			Result:    res,
			State:     domain.GameScored,
			GameType:  domain.GameTypeCasual,
			Date:      at,
			EndTime:   at,
		})
		if err != nil {
			c.metrics.PlayerFailure("score")
			log.Error().Err(err).Str("discord_id", id).Msg("failed to record casual result")
			out[i].Err = err
		}
	}
	return out
}

// scoreRanked processes participants concurrently; every one is done before
// it returns.
func (c *Coordinator) scoreRanked(ctx context.Context, g *domain.Game, winning []string, stats domain.StatsByIGN, at time.Time, log zerolog.Logger) []PlayerOutcome {
	bands, err := c.table.Bands(ctx)
	if err != nil {
		log.Error().Err(err).Msg("rating bands unavailable, no rating changes will apply")
	}
	multiplier := c.table.Multiplier(ctx)

	participants := g.Participants()
	out := make([]PlayerOutcome, len(participants))

	eg := new(errgroup.Group)
	eg.SetLimit(constants.ParticipantConcurrency)
	for i, id := range participants {
		res := domain.ResultLose
		if slices.Contains(winning, id) {
			res = domain.ResultWin
		}
		eg.Go(func() error {
			out[i] = c.scorePlayer(ctx, g, id, res, bands, multiplier, stats, at, log)
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

var zeroBand = domain.RatingBand{}

func (c *Coordinator) scorePlayer(
	ctx context.Context,
	g *domain.Game,
	discordID string,
	res domain.PerPlayerResult,
	bands []domain.RatingBand,
	multiplier float64,
	stats domain.StatsByIGN,
	at time.Time,
	log zerolog.Logger,
) PlayerOutcome {
	log = log.With().Str("discord_id", discordID).Logger()
	isMVP := slices.Contains(g.MVPs, discordID)
	bedBroke := slices.Contains(g.BedBreakers, discordID)
	out := PlayerOutcome{DiscordID: discordID, IGN: discordID, Result: res, IsMVP: isMVP}

	fail := func(err error, msg string) PlayerOutcome {
		c.metrics.PlayerFailure("score")
		log.Error().Err(err).Msg(msg)
		out.Err = err
		return out
	}

	unlock := c.playerLocks.Lock(discordID)
	p, err := c.users.Get(ctx, discordID)
	if err != nil {
		unlock()
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("participant not registered, skipped")
			out.Skipped = true
			return out
		}
		return fail(err, "failed to load participant")
	}
	out.IGN = p.IGN

	band, err := rating.BandFor(bands, p.Elo)
	if err != nil {
		log.Warn().Err(err).Int("elo", p.Elo).Msg("no rating band, elo unchanged")
		band = &zeroBand
	}

	var matchStats domain.MatchStats
	if c.cfg.Bot.Websocket.Enabled {
		matchStats, _ = stats.For(p.IGN)
	}
	inc := countersFor(matchStats, isMVP, bedBroke)
	if err := c.users.IncrementCounters(ctx, discordID, inc); err != nil {
		unlock()
		return fail(err, "failed to increment statistics")
	}

	delta, err := rating.Apply(p, band, rating.Outcome{Result: res, IsMVP: isMVP, Multiplier: multiplier})
	if err != nil {
		unlock()
		return fail(err, "failed to compute rating")
	}
	if err := c.users.SetRating(ctx, discordID, delta.Update); err != nil {
		unlock()
		return fail(err, "failed to store rating")
	}
	out.EloChange = delta.EloChange

	err = c.recentGames.Upsert(ctx, &domain.RecentGame{
		GameID:           g.GameID,
		DiscordID:        discordID,
		Result:           res,
		State:            domain.GameScored,
		GameType:         g.GameType,
		IsMVP:            isMVP,
		EloChange:        delta.EloChange,
		AppliedEloChange: delta.Applied,
		BedBroke:         bedBroke,
		MatchStats:       matchStats,
		Date:             at,
		EndTime:          at,
	})
	unlock()
	if err != nil {
		return fail(err, "failed to record result")
	}

	if err := c.reconciler.Reconcile(ctx, discordID); err != nil {
		log.Warn().Err(err).Msg("reconcile after score failed")
	}
	return out
}

func countersFor(s domain.MatchStats, isMVP, bedBroke bool) domain.Counters {
	c := domain.Counters{
		Kills:        s.Kills,
		Deaths:       s.Deaths,
		FinalKills:   s.FinalKills,
		Diamonds:     s.Diamonds,
		Irons:        s.Irons,
		Gold:         s.Gold,
		Emeralds:     s.Emeralds,
		BlocksPlaced: s.BlocksPlaced,
	}
	if isMVP {
		c.MVPs = 1
	}
	if bedBroke {
		c.BedsBroken = 1
	}
	return c
}

// resolveIGNs maps reported IGNs back to the participants carrying them.
func (c *Coordinator) resolveIGNs(ctx context.Context, participants, igns []string) []string {
	var out []string
	for _, id := range participants {
		p, err := c.users.Get(ctx, id)
		if err != nil {
			continue
		}
		if slices.Contains(igns, strings.ToLower(p.IGN)) {
			out = append(out, id)
		}
	}
	return out
}

// Void reverses a game's recorded effects and marks it voided. A game that is
// already voided is rejected, so a second void changes nothing.
func (c *Coordinator) Void(ctx context.Context, gameID int64, voidedBy string) (*VoidReport, error) {
	ctx, span := c.tracer.Start(ctx, "void", trace.WithAttributes(
		attribute.Int64("game_id", gameID),
	))
	defer span.End()

	if err := c.ensureStore(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}

	unlock := c.gameLocks.Lock(gameKey(gameID))
	defer unlock()

	g, err := c.games.Get(ctx, gameID)
	if err != nil {
		span.RecordError(err)
		return nil, c.reject(ctx, "void", announce.NoticeVoiding, gameID, err)
	}
	if g.State == domain.GameVoided {
		err := fmt.Errorf("game %d is already voided: %w", gameID, domain.ErrIneligibleState)
		span.SetStatus(codes.Error, err.Error())
		return nil, c.reject(ctx, "void", announce.NoticeVoiding, gameID, err)
	}

	log := c.logger.With().Int64("game_id", gameID).Str("op", "void").Logger()

	rows, err := c.recentGames.ListByGame(ctx, gameID)
	if err != nil {
		span.RecordError(err)
		c.announcer.Notify(ctx, announce.NoticeVoiding, "Void failed", gameID, err)
		return nil, err
	}
	if _, err := c.recentGames.ResetForVoid(ctx, gameID); err != nil {
		span.RecordError(err)
		c.announcer.Notify(ctx, announce.NoticeVoiding, "Void failed", gameID, err)
		return nil, err
	}

	out := make([]PlayerOutcome, len(rows))
	eg := new(errgroup.Group)
	eg.SetLimit(constants.ParticipantConcurrency)
	for i := range rows {
		eg.Go(func() error {
			out[i] = c.voidPlayer(ctx, &rows[i], log)
			return nil
		})
	}
	_ = eg.Wait()

	at := c.now()
	ok, err := c.games.MarkVoided(ctx, gameID, voidedBy, at)
	if err != nil {
		span.RecordError(err)
		c.announcer.Notify(ctx, announce.NoticeVoiding, "Void failed", gameID, err)
		return nil, err
	}
	if !ok {
		log.Warn().Msg("game was voided concurrently")
	}

	g.State, g.EndTime, g.MVPs, g.VoidedBy = domain.GameVoided, &at, nil, voidedBy
	report := &VoidReport{Game: g, Players: out}

	c.metrics.GameVoided()
	log.Info().Int("players", len(out)).Int("failures", report.Failures()).Msg("game voided")

	c.publishVoid(ctx, report)
	return report, nil
}

func (c *Coordinator) voidPlayer(ctx context.Context, row *domain.RecentGame, log zerolog.Logger) PlayerOutcome {
	log = log.With().Str("discord_id", row.DiscordID).Logger()
	out := PlayerOutcome{
		DiscordID: row.DiscordID,
		IGN:       row.DiscordID,
		Result:    row.Result,
		IsMVP:     row.IsMVP,
		EloChange: row.EloChange,
	}

	fail := func(err error, msg string) PlayerOutcome {
		c.metrics.PlayerFailure("void")
		log.Error().Err(err).Msg(msg)
		out.Err = err
		return out
	}

	// casual games never touched the player
	if row.GameType == domain.GameTypeCasual {
		out.Skipped = true
		return out
	}

	unlock := c.playerLocks.Lock(row.DiscordID)
	p, err := c.users.Get(ctx, row.DiscordID)
	if err != nil {
		unlock()
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Msg("player no longer registered, skipped")
			out.Skipped = true
			return out
		}
		return fail(err, "failed to load player")
	}
	out.IGN = p.IGN

	rev := rating.Revert(p, row, c.cfg.Bot.Voiding.RevertLosses)
	if err := c.users.SetRating(ctx, row.DiscordID, rev.Update); err != nil {
		unlock()
		return fail(err, "failed to restore rating")
	}
	if err := c.users.IncrementCounters(ctx, row.DiscordID, rev.Counters); err != nil {
		unlock()
		return fail(err, "failed to subtract statistics")
	}
	unlock()

	if err := c.reconciler.Reconcile(ctx, row.DiscordID); err != nil {
		log.Warn().Err(err).Msg("reconcile after void failed")
	}
	return out
}

func (c *Coordinator) publishScore(ctx context.Context, report *ScoreReport) {
	g := report.Game
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.AnnouncementTimeout)
	defer cancel()

	entries := make([]announce.CardEntry, 0, len(report.Players))
	var ping []string
	for _, p := range report.Players {
		entries = append(entries, announce.CardEntry{
			Label:     p.IGN,
			EloChange: p.EloChange,
			Won:       p.Result == domain.ResultWin,
		})
		s, err := c.settings.GetOrCreate(pctx, p.DiscordID)
		if err != nil || !s.IsScoringPingToggled {
			ping = append(ping, p.DiscordID)
		}
	}

	if err := c.announcer.AnnounceScore(pctx, announce.Scored{Game: g, Entries: entries, Ping: ping}); err != nil {
		c.logger.Warn().Err(err).Int64("game_id", g.GameID).Msg("score announcement incomplete")
	}
	c.teardown.Schedule(g.GameID)
}

func (c *Coordinator) publishVoid(ctx context.Context, report *VoidReport) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.AnnouncementTimeout)
	defer cancel()

	reverted := 0
	for _, p := range report.Players {
		if p.Err == nil && !p.Skipped {
			reverted++
		}
	}
	v := announce.Voided{Game: report.Game, VoidedBy: report.Game.VoidedBy, Players: reverted}
	if err := c.announcer.AnnounceVoid(pctx, v); err != nil {
		c.logger.Warn().Err(err).Int64("game_id", report.Game.GameID).Msg("void announcement incomplete")
	}
	c.teardown.Schedule(report.Game.GameID)
}
