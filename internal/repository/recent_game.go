package repository

import (
	"context"
	"database/sql"
	"fmt"
	"ranked-bedwars/internal/domain"
	"strconv"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

const recentGameColumns = `id, gameid, discordid, result, state, gametype, ismvp, elochange, appliedelochange, bedbroke,
	kills, deaths, finalkills, diamonds, irons, gold, emeralds, blocksplaced, date, end_time`

// RecentGameRepository stores the per-player record of each scored game.
// kills and deaths are persisted as text, the other counters as integers;
// existing rows depend on that layout.
type RecentGameRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRecentGameRepository(sqlDB *sql.DB, logger zerolog.Logger) *RecentGameRepository {
	return &RecentGameRepository{
		db:     sqlDB,
		logger: logger,
	}
}

// Upsert writes the row for (GameID, DiscordID), replacing a previous one.
func (r *RecentGameRepository) Upsert(ctx context.Context, rg *domain.RecentGame) error {
	id := rg.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recentgames (`+recentGameColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gameid, discordid) DO UPDATE SET
			result = excluded.result,
			state = excluded.state,
			gametype = excluded.gametype,
			ismvp = excluded.ismvp,
			elochange = excluded.elochange,
			appliedelochange = excluded.appliedelochange,
			bedbroke = excluded.bedbroke,
			kills = excluded.kills,
			deaths = excluded.deaths,
			finalkills = excluded.finalkills,
			diamonds = excluded.diamonds,
			irons = excluded.irons,
			gold = excluded.gold,
			emeralds = excluded.emeralds,
			blocksplaced = excluded.blocksplaced,
			date = excluded.date,
			end_time = excluded.end_time`,
		id, rg.GameID, rg.DiscordID, rg.Result.String(), rg.State.String(), string(rg.GameType),
		rg.IsMVP, rg.EloChange, rg.AppliedEloChange, rg.BedBroke,
		strconv.Itoa(rg.Kills), strconv.Itoa(rg.Deaths),
		rg.FinalKills, rg.Diamonds, rg.Irons, rg.Gold, rg.Emeralds, rg.BlocksPlaced,
		rg.Date, rg.EndTime,
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("game_id", rg.GameID).Str("discord_id", rg.DiscordID).Msg("failed to upsert recent game")
		return fmt.Errorf("failed to upsert recent game %d/%s: %w", rg.GameID, rg.DiscordID, err)
	}
	return nil
}

func (r *RecentGameRepository) ListByGame(ctx context.Context, gameID int64) ([]domain.RecentGame, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+recentGameColumns+` FROM recentgames WHERE gameid = ? ORDER BY discordid`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent games for %d: %w", gameID, err)
	}
	return r.collect(rows)
}

func (r *RecentGameRepository) ListByPlayer(ctx context.Context, discordID string, limit int) ([]domain.RecentGame, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recentGameColumns+` FROM recentgames
		WHERE discordid = ? ORDER BY date DESC, gameid DESC LIMIT ?`, discordID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent games for %s: %w", discordID, err)
	}
	return r.collect(rows)
}

// ResetForVoid rewrites every row of the game to the neutral voided profile.
func (r *RecentGameRepository) ResetForVoid(ctx context.Context, gameID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recentgames SET
			result = ?, state = ?, elochange = 0, appliedelochange = 0, ismvp = 0, bedbroke = 0,
			kills = '0', deaths = '0', finalkills = 0, diamonds = 0, irons = 0,
			gold = 0, emeralds = 0, blocksplaced = 0
		WHERE gameid = ?`,
		domain.ResultVoided.String(), domain.GameVoided.String(), gameID,
	)
	if err != nil {
		r.logger.Error().Err(err).Int64("game_id", gameID).Msg("failed to reset recent games")
		return 0, fmt.Errorf("failed to reset recent games for %d: %w", gameID, err)
	}
	return res.RowsAffected()
}

func (r *RecentGameRepository) collect(rows *sql.Rows) ([]domain.RecentGame, error) {
	defer rows.Close()

	var result []domain.RecentGame
	for rows.Next() {
		var (
			rg                   domain.RecentGame
			res, state, gameType string
			kills, deaths        string
			applied              sql.NullInt64
		)
		err := rows.Scan(
			&rg.ID, &rg.GameID, &rg.DiscordID, &res, &state, &gameType, &rg.IsMVP, &rg.EloChange, &applied, &rg.BedBroke,
			&kills, &deaths, &rg.FinalKills, &rg.Diamonds, &rg.Irons, &rg.Gold, &rg.Emeralds, &rg.BlocksPlaced,
			&rg.Date, &rg.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recent game: %w", err)
		}
		if rg.Result, err = domain.ParsePerPlayerResult(res); err != nil {
			return nil, fmt.Errorf("recent game %s: %w", rg.ID, err)
		}
		if rg.State, err = domain.ParseGameState(state); err != nil {
			return nil, fmt.Errorf("recent game %s: %w", rg.ID, err)
		}
		rg.GameType = domain.GameType(gameType)
		rg.AppliedEloChange = rg.EloChange
		if applied.Valid {
			rg.AppliedEloChange = int(applied.Int64)
		}
		rg.Kills = r.parseCount(rg.ID, "kills", kills)
		rg.Deaths = r.parseCount(rg.ID, "deaths", deaths)
		result = append(result, rg)
	}
	return result, rows.Err()
}

func (r *RecentGameRepository) parseCount(id, field, raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		r.logger.Warn().Err(err).Str("recent_game_id", id).Str("field", field).Str("value", raw).Msg("unreadable counter, treating as 0")
		return 0
	}
	return n
}
