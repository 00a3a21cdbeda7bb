// Package rating holds the pure rating arithmetic: what a scored result does
// to a player, and what voiding that result undoes.
package rating

import (
	"fmt"
	"math"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"sort"
	"strconv"
	"strings"
)

// Outcome describes one participant's side of a scored match.
type Outcome struct {
	Result     domain.PerPlayerResult
	IsMVP      bool
	Multiplier float64
}

// Delta is the result of applying an Outcome. EloChange is the nominal change
// shown to players, even when the new rating was floored at zero. Applied is
// what the rating actually moved by and is what void undoes.
type Delta struct {
	EloChange int
	Applied   int
	ExpGain   int
	Update    domain.RatingUpdate
}

// Apply computes the new rating fields for p. The player is not modified.
func Apply(p *domain.Player, band *domain.RatingBand, o Outcome) (Delta, error) {
	if band == nil {
		return Delta{}, fmt.Errorf("apply rating to %s at %d: %w", p.DiscordID, p.Elo, domain.ErrNoBand)
	}

	var eloChange, expGain int
	switch o.Result {
	case domain.ResultWin:
		eloChange = band.WinElo
		if o.Multiplier > 1 {
			eloChange = int(math.Round(float64(eloChange) * o.Multiplier))
		}
		expGain = constants.WinExp
	case domain.ResultLose:
		eloChange = band.LoseElo
		expGain = constants.LoseExp
	default:
		return Delta{}, fmt.Errorf("apply rating: result %s is not scorable", o.Result)
	}

	// the mvp bonus is never multiplied
	if o.IsMVP {
		eloChange += band.MVPElo
		expGain += constants.MVPExp
	}

	u := p.RatingUpdate()
	u.Elo = max(0, p.Elo+eloChange)
	u.DailyElo = p.DailyElo + eloChange
	u.HighestElo = max(p.HighestElo, u.Elo)

	combined := max(0, p.Exp) + expGain
	u.TotalExp = p.TotalExp + expGain
	u.Exp = combined % constants.ExpPerLevel
	u.Level = max(1, p.Level) + combined/constants.ExpPerLevel

	if o.Result == domain.ResultWin {
		u.Wins = p.Wins + 1
		u.WinStreak = p.WinStreak + 1
		u.LoseStreak = 0
		u.HighestWinStreak = max(p.HighestWinStreak, u.WinStreak)
	} else {
		u.Losses = p.Losses + 1
		u.LoseStreak = p.LoseStreak + 1
		u.WinStreak = 0
	}

	return Delta{EloChange: eloChange, Applied: u.Elo - p.Elo, ExpGain: expGain, Update: u}, nil
}

// Reversal is what voiding one recentgames row does to a player: rating
// fields to set and counter increments (non-positive) to apply.
type Reversal struct {
	Update   domain.RatingUpdate
	Counters domain.Counters
}

// Revert undoes the effect recorded in r. The applied change is subtracted,
// so a loss that was floored at zero restores the rating held before it.
// Historical maxima are never lowered.
//
// Rows are recorded with the result "lose" while the void path has always
// matched "loss", so losses and the losing streak are left alone unless
// revertLosses is set.
func Revert(p *domain.Player, r *domain.RecentGame, revertLosses bool) Reversal {
	u := p.RatingUpdate()
	u.Elo = max(0, p.Elo-r.AppliedEloChange)

	switch r.Result {
	case domain.ResultWin:
		u.Wins = max(0, p.Wins-1)
		u.WinStreak = max(0, p.WinStreak-1)
	case domain.ResultLose:
		if revertLosses {
			u.Losses = max(0, p.Losses-1)
			u.LoseStreak = max(0, p.LoseStreak-1)
		}
	}

	u.HighestElo = max(p.HighestElo, u.Elo)
	u.HighestWinStreak = max(p.HighestWinStreak, u.WinStreak)

	var c domain.Counters
	if r.IsMVP {
		c.MVPs = 1
	}
	if r.BedBroke {
		c.BedsBroken = 1
	}
	c.Kills = r.Kills
	c.Deaths = r.Deaths
	c.FinalKills = r.FinalKills
	c.Diamonds = r.Diamonds
	c.Irons = r.Irons
	c.Gold = r.Gold
	c.Emeralds = r.Emeralds
	c.BlocksPlaced = r.BlocksPlaced

	return Reversal{Update: u, Counters: c.Negate()}
}

// SortBands orders bands by MinElo ascending.
func SortBands(bands []domain.RatingBand) {
	sort.SliceStable(bands, func(i, j int) bool {
		return bands[i].MinElo < bands[j].MinElo
	})
}

// BandFor finds the band containing elo by linear scan.
func BandFor(bands []domain.RatingBand, elo int) (*domain.RatingBand, error) {
	for i := range bands {
		if bands[i].Contains(elo) {
			return &bands[i], nil
		}
	}
	return nil, fmt.Errorf("elo %d: %w", elo, domain.ErrNoBand)
}

// ParseMultiplier reads the booster multiplier. Anything that is not a finite
// number >= 1 yields 1 and an ErrBadConfig.
func ParseMultiplier(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	m, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(m) || math.IsInf(m, 0) {
		return 1, fmt.Errorf("multiplier %q: %w", raw, domain.ErrBadConfig)
	}
	if m < 1 {
		return 1, fmt.Errorf("multiplier %q below 1: %w", raw, domain.ErrBadConfig)
	}
	return m, nil
}

// CoerceElo turns a stored band value into an integer, rounding fractional
// values. Values that cannot be read as a number become 0.
func CoerceElo(v any) int {
	switch x := v.(type) {
	case nil:
		return 0
	case int:
		return x
	case int32:
		return int(x)
	case int64:
		return int(x)
	case float32:
		return roundFinite(float64(x))
	case float64:
		return roundFinite(x)
	case []byte:
		return CoerceElo(string(x))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return roundFinite(f)
	default:
		return 0
	}
}

func roundFinite(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}
