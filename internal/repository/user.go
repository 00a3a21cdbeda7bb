package repository

import (
	"context"
	"database/sql"
	"fmt"
	"ranked-bedwars/internal/domain"
	"time"

	"github.com/rs/zerolog"
)

const userColumns = `discordid, ign, elo, dailyelo, highestelo, exp, totalexp, level,
	wins, losses, winstreak, loosestreak, highstwinstreak,
	mvps, bedsbroken, kills, deaths, finalkills, diamonds, irons, gold, emeralds, blocksplaced,
	created_at, updated_at`

type UserRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewUserRepository(sqlDB *sql.DB, logger zerolog.Logger) *UserRepository {
	return &UserRepository{
		db:     sqlDB,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var p domain.Player
	err := row.Scan(
		&p.DiscordID, &p.IGN, &p.Elo, &p.DailyElo, &p.HighestElo, &p.Exp, &p.TotalExp, &p.Level,
		&p.Wins, &p.Losses, &p.WinStreak, &p.LoseStreak, &p.HighestWinStreak,
		&p.MVPs, &p.BedsBroken, &p.Kills, &p.Deaths, &p.FinalKills, &p.Diamonds, &p.Irons, &p.Gold, &p.Emeralds, &p.BlocksPlaced,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *UserRepository) Get(ctx context.Context, discordID string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE discordid = ?`, discordID)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, notFound(err, "player", discordID)
	}
	return p, nil
}

func (r *UserRepository) GetByIGN(ctx context.Context, ign string) (*domain.Player, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE ign = ? COLLATE NOCASE`, ign)
	p, err := scanPlayer(row)
	if err != nil {
		return nil, notFound(err, "player with ign", ign)
	}
	return p, nil
}

// Create inserts a new player. A taken discord id or IGN is ErrIneligibleState.
func (r *UserRepository) Create(ctx context.Context, p *domain.Player) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.DiscordID, p.IGN, p.Elo, p.DailyElo, p.HighestElo, p.Exp, p.TotalExp, p.Level,
		p.Wins, p.Losses, p.WinStreak, p.LoseStreak, p.HighestWinStreak,
		p.MVPs, p.BedsBroken, p.Kills, p.Deaths, p.FinalKills, p.Diamonds, p.Irons, p.Gold, p.Emeralds, p.BlocksPlaced,
		p.CreatedAt, p.UpdatedAt,
	)
	if isConstraintViolation(err) {
		return fmt.Errorf("player %s (%s) already registered: %w", p.DiscordID, p.IGN, domain.ErrIneligibleState)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("discord_id", p.DiscordID).Msg("failed to create player")
		return fmt.Errorf("failed to create player %s: %w", p.DiscordID, err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, discordID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE discordid = ?`, discordID)
	if err != nil {
		return fmt.Errorf("failed to delete player %s: %w", discordID, err)
	}
	return requireAffected(res, "player", discordID)
}

// SetRating writes the rating fields of one player in a single statement.
func (r *UserRepository) SetRating(ctx context.Context, discordID string, u domain.RatingUpdate) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			elo = ?, dailyelo = ?, highestelo = ?, exp = ?, totalexp = ?, level = ?,
			wins = ?, losses = ?, winstreak = ?, loosestreak = ?, highstwinstreak = ?,
			updated_at = ?
		WHERE discordid = ?`,
		u.Elo, u.DailyElo, u.HighestElo, u.Exp, u.TotalExp, u.Level,
		u.Wins, u.Losses, u.WinStreak, u.LoseStreak, u.HighestWinStreak,
		time.Now().UTC(), discordID,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("discord_id", discordID).Msg("failed to set rating")
		return fmt.Errorf("failed to set rating for %s: %w", discordID, err)
	}
	return requireAffected(res, "player", discordID)
}

// IncrementCounters adds c to the player's counters. Negative increments are
// floored so no counter drops below zero.
func (r *UserRepository) IncrementCounters(ctx context.Context, discordID string, c domain.Counters) error {
	if c.IsZero() {
		return nil
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET
			mvps = MAX(0, mvps + ?),
			bedsbroken = MAX(0, bedsbroken + ?),
			kills = MAX(0, kills + ?),
			deaths = MAX(0, deaths + ?),
			finalkills = MAX(0, finalkills + ?),
			diamonds = MAX(0, diamonds + ?),
			irons = MAX(0, irons + ?),
			gold = MAX(0, gold + ?),
			emeralds = MAX(0, emeralds + ?),
			blocksplaced = MAX(0, blocksplaced + ?),
			updated_at = ?
		WHERE discordid = ?`,
		c.MVPs, c.BedsBroken, c.Kills, c.Deaths, c.FinalKills,
		c.Diamonds, c.Irons, c.Gold, c.Emeralds, c.BlocksPlaced,
		time.Now().UTC(), discordID,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("discord_id", discordID).Msg("failed to increment counters")
		return fmt.Errorf("failed to increment counters for %s: %w", discordID, err)
	}
	return requireAffected(res, "player", discordID)
}

// ResetDailyElo zeroes dailyelo for every player and returns how many changed.
func (r *UserRepository) ResetDailyElo(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET dailyelo = 0, updated_at = ? WHERE dailyelo != 0`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily elo: %w", err)
	}
	return res.RowsAffected()
}

func (r *UserRepository) Leaderboard(ctx context.Context, limit int) ([]domain.Player, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY elo DESC, wins DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var result []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func requireAffected(res sql.Result, what string, key any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, key, domain.ErrNotFound)
	}
	return nil
}
