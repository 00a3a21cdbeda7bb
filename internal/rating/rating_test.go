package rating

import (
	"errors"
	"ranked-bedwars/internal/domain"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var starterBand = domain.RatingBand{MinElo: 0, MaxElo: 100, WinElo: 20, LoseElo: -15, MVPElo: 5, RoleID: "100000000000000001", RankName: "Coal"}

func TestApply_SimpleWin(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 50, Wins: 3, WinStreak: 2, HighestWinStreak: 5, Exp: 90, TotalExp: 290, Level: 3}

	d, err := Apply(p, &starterBand, Outcome{Result: domain.ResultWin, Multiplier: 1})
	require.NoError(t, err)

	want := domain.RatingUpdate{
		Elo:              70,
		DailyElo:         20,
		HighestElo:       70,
		Exp:              0,
		TotalExp:         300,
		Level:            4,
		Wins:             4,
		WinStreak:        3,
		HighestWinStreak: 5,
	}
	if diff := cmp.Diff(want, d.Update); diff != "" {
		t.Errorf("update mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 20, d.EloChange)
	assert.Equal(t, 10, d.ExpGain)
	assert.Equal(t, 50, p.Elo, "player must not be modified")
}

func TestApply_MultiplierAndMVP(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 50, Level: 1}

	d, err := Apply(p, &starterBand, Outcome{Result: domain.ResultWin, IsMVP: true, Multiplier: 1.5})
	require.NoError(t, err)

	assert.Equal(t, 35, d.EloChange)
	assert.Equal(t, 85, d.Update.Elo)
	assert.Equal(t, 15, d.ExpGain)
	assert.Equal(t, 15, d.Update.Exp)
}

func TestApply_MultiplierDoesNotTouchLosses(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 50, Level: 1}

	d, err := Apply(p, &starterBand, Outcome{Result: domain.ResultLose, Multiplier: 2})
	require.NoError(t, err)
	assert.Equal(t, -15, d.EloChange)
}

func TestApply_MultiplierRounds(t *testing.T) {
	band := starterBand
	band.WinElo = 15
	p := &domain.Player{DiscordID: "1", Elo: 10, Level: 1}

	d, err := Apply(p, &band, Outcome{Result: domain.ResultWin, Multiplier: 1.25})
	require.NoError(t, err)
	// 18.75
	assert.Equal(t, 19, d.EloChange)
}

func TestApply_LossFloorsEloButRecordsNominalChange(t *testing.T) {
	band := starterBand
	band.LoseElo = -100
	p := &domain.Player{DiscordID: "1", Elo: 30, WinStreak: 4, HighestWinStreak: 4, DailyElo: 5, Level: 2}

	d, err := Apply(p, &band, Outcome{Result: domain.ResultLose, Multiplier: 1})
	require.NoError(t, err)

	assert.Equal(t, -100, d.EloChange)
	assert.Equal(t, -30, d.Applied)
	assert.Equal(t, 0, d.Update.Elo)
	assert.Equal(t, -95, d.Update.DailyElo, "daily elo is not floored")
	assert.Equal(t, 1, d.Update.Losses)
	assert.Equal(t, 1, d.Update.LoseStreak)
	assert.Equal(t, 0, d.Update.WinStreak)
	assert.Equal(t, 4, d.Update.HighestWinStreak)
}

func TestApply_NoBand(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 5000, Level: 1}

	_, err := Apply(p, nil, Outcome{Result: domain.ResultWin, Multiplier: 1})
	assert.True(t, errors.Is(err, domain.ErrNoBand))
}

func TestApply_RejectsVoidedResult(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Level: 1}

	_, err := Apply(p, &starterBand, Outcome{Result: domain.ResultVoided})
	assert.Error(t, err)
}

func TestApply_Invariants(t *testing.T) {
	f := gofakeit.New(42)
	bands := []domain.RatingBand{
		{MinElo: 0, MaxElo: 500, WinElo: 25, LoseElo: -10, MVPElo: 5},
		{MinElo: 500, MaxElo: 1000, WinElo: 20, LoseElo: -20, MVPElo: 3},
		{MinElo: 1000, MaxElo: 1 << 30, WinElo: 10, LoseElo: -30, MVPElo: 0},
	}

	for i := 0; i < 500; i++ {
		ws := f.IntRange(0, 10)
		p := &domain.Player{
			DiscordID:        f.Numerify("##################"),
			Elo:              f.IntRange(0, 2000),
			Exp:              f.IntRange(0, 99),
			TotalExp:         f.IntRange(0, 10000),
			Level:            f.IntRange(1, 50),
			WinStreak:        ws,
			HighestWinStreak: ws + f.IntRange(0, 5),
		}
		band, err := BandFor(bands, p.Elo)
		require.NoError(t, err)

		result := domain.ResultLose
		if f.Bool() {
			result = domain.ResultWin
		}
		d, err := Apply(p, band, Outcome{Result: result, IsMVP: f.Bool(), Multiplier: f.Float64Range(1, 3)})
		require.NoError(t, err)

		u := d.Update
		assert.GreaterOrEqual(t, u.Elo, 0)
		assert.GreaterOrEqual(t, u.Level, 1)
		assert.GreaterOrEqual(t, u.Exp, 0)
		assert.Less(t, u.Exp, 100)
		assert.GreaterOrEqual(t, u.HighestWinStreak, u.WinStreak)
		assert.GreaterOrEqual(t, u.TotalExp, p.TotalExp)
		assert.False(t, u.WinStreak > 0 && u.LoseStreak > 0, "streaks are mutually exclusive")
	}
}

func TestRevert_Win(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 75, HighestElo: 75, Wins: 4, WinStreak: 3, HighestWinStreak: 5, Level: 2}
	r := &domain.RecentGame{
		Result:           domain.ResultWin,
		EloChange:        25,
		AppliedEloChange: 25,
		IsMVP:            true,
		BedBroke:         true,
		MatchStats:       domain.MatchStats{Kills: 7, Deaths: 2, FinalKills: 3, Diamonds: 4},
	}

	rev := Revert(p, r, false)

	assert.Equal(t, 50, rev.Update.Elo)
	assert.Equal(t, 3, rev.Update.Wins)
	assert.Equal(t, 2, rev.Update.WinStreak)
	assert.Equal(t, 75, rev.Update.HighestElo, "historical max is kept")
	assert.Equal(t, 5, rev.Update.HighestWinStreak)

	want := domain.Counters{MVPs: -1, BedsBroken: -1, Kills: -7, Deaths: -2, FinalKills: -3, Diamonds: -4}
	if diff := cmp.Diff(want, rev.Counters); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}
}

func TestRevert_LoseKeepsLossesByDefault(t *testing.T) {
	p := &domain.Player{DiscordID: "2", Elo: 30, Losses: 6, LoseStreak: 2, Level: 1}
	r := &domain.RecentGame{Result: domain.ResultLose, EloChange: -20, AppliedEloChange: -20}

	rev := Revert(p, r, false)
	assert.Equal(t, 50, rev.Update.Elo)
	assert.Equal(t, 6, rev.Update.Losses)
	assert.Equal(t, 2, rev.Update.LoseStreak)

	rev = Revert(p, r, true)
	assert.Equal(t, 5, rev.Update.Losses)
	assert.Equal(t, 1, rev.Update.LoseStreak)
}

func TestRevert_FloorsAtZero(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 10, Wins: 0, WinStreak: 0, Level: 1}
	r := &domain.RecentGame{Result: domain.ResultWin, EloChange: 40, AppliedEloChange: 40}

	rev := Revert(p, r, false)
	assert.Equal(t, 0, rev.Update.Elo)
	assert.Equal(t, 0, rev.Update.Wins)
	assert.Equal(t, 0, rev.Update.WinStreak)
}

func TestRevert_VoidedRowIsNoOp(t *testing.T) {
	p := &domain.Player{DiscordID: "1", Elo: 10, Wins: 2, WinStreak: 1, HighestWinStreak: 1, HighestElo: 10, Level: 1}
	r := &domain.RecentGame{Result: domain.ResultVoided}

	rev := Revert(p, r, true)
	assert.Equal(t, p.RatingUpdate(), rev.Update)
	assert.True(t, rev.Counters.IsZero())
}

func TestApplyThenRevertRestoresElo(t *testing.T) {
	band := starterBand
	band.LoseElo = -100
	p := &domain.Player{DiscordID: "1", Elo: 30, Level: 1}

	d, err := Apply(p, &band, Outcome{Result: domain.ResultLose, Multiplier: 1})
	require.NoError(t, err)

	after := *p
	after.Elo = d.Update.Elo
	rev := Revert(&after, &domain.RecentGame{Result: domain.ResultLose, EloChange: d.EloChange, AppliedEloChange: d.Applied}, false)
	assert.Equal(t, 30, rev.Update.Elo, "a floored loss restores the rating held before it")
}

func TestBandFor(t *testing.T) {
	bands := []domain.RatingBand{
		{MinElo: 100, MaxElo: 200, RankName: "Iron"},
		{MinElo: 0, MaxElo: 100, RankName: "Coal"},
	}
	SortBands(bands)
	require.Equal(t, "Coal", bands[0].RankName)

	b, err := BandFor(bands, 100)
	require.NoError(t, err)
	assert.Equal(t, "Iron", b.RankName)

	b, err = BandFor(bands, 0)
	require.NoError(t, err)
	assert.Equal(t, "Coal", b.RankName)

	_, err = BandFor(bands, 200)
	assert.ErrorIs(t, err, domain.ErrNoBand)
}

func TestParseMultiplier(t *testing.T) {
	tests := []struct {
		raw     string
		want    float64
		wantErr bool
	}{
		{raw: "", want: 1},
		{raw: "1", want: 1},
		{raw: "1.5", want: 1.5},
		{raw: " 2 ", want: 2},
		{raw: "abc", want: 1, wantErr: true},
		{raw: "NaN", want: 1, wantErr: true},
		{raw: "0.5", want: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMultiplier(tt.raw)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrBadConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCoerceElo(t *testing.T) {
	assert.Equal(t, 5, CoerceElo(int64(5)))
	assert.Equal(t, 3, CoerceElo(2.6))
	assert.Equal(t, 4, CoerceElo("3.5"))
	assert.Equal(t, 7, CoerceElo([]byte("7")))
	assert.Equal(t, 0, CoerceElo("seven"))
	assert.Equal(t, 0, CoerceElo(nil))
	assert.Equal(t, 0, CoerceElo(struct{}{}))
}
