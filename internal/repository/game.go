package repository

import (
	"context"
	"database/sql"
	"fmt"
	"ranked-bedwars/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

type GameRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewGameRepository(sqlDB *sql.DB, logger zerolog.Logger) *GameRepository {
	return &GameRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *GameRepository) Get(ctx context.Context, gameID int64) (*domain.Game, error) {
	var (
		g                                                domain.Game
		state, gameType                                  string
		team1, team2, winning, losing, mvps, bedBreakers string
		endTime                                          sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT gameid, team1, team2, state, gametype, start_time, end_time,
			winningteam, loosingteam, mvps, bedbreakers, result, submittedby, scoredby, voidedby
		FROM games WHERE gameid = ?`, gameID,
	).Scan(
		&g.GameID, &team1, &team2, &state, &gameType, &g.StartTime, &endTime,
		&winning, &losing, &mvps, &bedBreakers, &g.Result, &g.SubmittedBy, &g.ScoredBy, &g.VoidedBy,
	)
	if err != nil {
		return nil, notFound(err, "game", gameID)
	}

	if g.State, err = domain.ParseGameState(state); err != nil {
		return nil, fmt.Errorf("game %d: %w", gameID, err)
	}
	g.GameType = domain.GameType(gameType)
	if endTime.Valid {
		t := endTime.Time
		g.EndTime = &t
	}

	lists := []struct {
		raw string
		dst *[]string
	}{
		{team1, &g.Team1},
		{team2, &g.Team2},
		{winning, &g.WinningTeam},
		{losing, &g.LosingTeam},
		{mvps, &g.MVPs},
		{bedBreakers, &g.BedBreakers},
	}
	for _, l := range lists {
		ids, err := decodeIDs(l.raw)
		if err != nil {
			return nil, fmt.Errorf("game %d: %w", gameID, err)
		}
		*l.dst = ids
	}

	return &g, nil
}

// Create inserts a game. GameID must already be minted.
func (r *GameRepository) Create(ctx context.Context, g *domain.Game) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO games (gameid, team1, team2, state, gametype, start_time)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.GameID, encodeIDs(g.Team1), encodeIDs(g.Team2), g.State.String(), string(g.GameType), g.StartTime,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("game %d already exists: %w", g.GameID, domain.ErrIneligibleState)
	}
	if err != nil {
		r.logger.Error().Err(err).Int64("game_id", g.GameID).Msg("failed to create game")
		return fmt.Errorf("failed to create game %d: %w", g.GameID, err)
	}
	return nil
}

// MarkSubmitted moves a pending game to submitted. It reports whether the
// transition happened.
func (r *GameRepository) MarkSubmitted(ctx context.Context, gameID int64, submittedBy string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE games SET state = ?, submittedby = ?
		WHERE gameid = ? AND state = ?`,
		domain.GameSubmitted.String(), submittedBy, gameID, domain.GamePending.String(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to submit game %d: %w", gameID, err)
	}
	return affected(res)
}

// MarkScored flips a pending, submitted or voided game to scored in one
// filtered update. It reports whether the transition happened.
func (r *GameRepository) MarkScored(ctx context.Context, gameID int64, rec domain.ScoreRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE games SET
			state = ?, winningteam = ?, loosingteam = ?, mvps = ?, bedbreakers = ?,
			result = ?, scoredby = ?, end_time = ?
		WHERE gameid = ? AND state IN (?, ?, ?)`,
		domain.GameScored.String(),
		encodeIDs(rec.WinningTeam), encodeIDs(rec.LosingTeam), encodeIDs(rec.MVPs), encodeIDs(rec.BedBreakers),
		rec.Result, rec.ScoredBy, rec.EndTime,
		gameID, domain.GamePending.String(), domain.GameSubmitted.String(), domain.GameVoided.String(),
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("game_id", gameID).Msg("failed to mark game scored")
		return false, fmt.Errorf("failed to mark game %d scored: %w", gameID, err)
	}
	return affected(res)
}

// MarkVoided flips any non-voided game to voided and clears its MVPs.
func (r *GameRepository) MarkVoided(ctx context.Context, gameID int64, voidedBy string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE games SET state = ?, end_time = ?, mvps = '[]', voidedby = ?
		WHERE gameid = ? AND state != ?`,
		domain.GameVoided.String(), at, voidedBy, gameID, domain.GameVoided.String(),
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("game_id", gameID).Msg("failed to mark game voided")
		return false, fmt.Errorf("failed to mark game %d voided: %w", gameID, err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
