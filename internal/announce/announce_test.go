package announce

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/platform/platformtest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testConfig() *config.Config {
	return &config.Config{Bot: config.Document{
		GuildID: "100000000000000001",
		Channels: config.ChannelsConfig{
			Scoring:   "200000000000000001",
			WaitingVC: "200000000000000009",
		},
		Logging: config.LoggingConfig{
			Scoring: "300000000000000001",
			Voiding: "300000000000000002",
		},
		Server: config.ServerConfig{ServerName: "Ranked Bedwars", InviteLink: "discord.gg/rbw"},
	}}
}

func scoredGame() *domain.Game {
	return &domain.Game{
		GameID:      42,
		Team1:       []string{"1", "2"},
		Team2:       []string{"3", "4"},
		State:       domain.GameScored,
		GameType:    domain.GameTypeRanked,
		WinningTeam: []string{"1", "2"},
		LosingTeam:  []string{"3", "4"},
		MVPs:        []string{"1"},
		ScoredBy:    "9",
	}
}

func TestRenderResultCard(t *testing.T) {
	card, err := RenderResultCard(Card{
		GameID:     42,
		ServerName: "Ranked Bedwars",
		InviteLink: "discord.gg/rbw",
		Entries: []CardEntry{
			{Label: "Steve", EloChange: 35, Won: true},
			{Label: "Alex", EloChange: 20, Won: true},
			{Label: "Herobrine", EloChange: -15},
			{Label: "Notch", EloChange: -15},
		},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(card, pngMagic))
}

func TestRenderResultCard_NoMovement(t *testing.T) {
	card, err := RenderResultCard(Card{
		GameID:  7,
		Entries: []CardEntry{{Label: "Steve", Won: true}, {Label: "Alex"}},
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(card, pngMagic))
}

func TestScoreMessage(t *testing.T) {
	msg := ScoreMessage(Scored{Game: scoredGame(), Ping: []string{"1", "3"}}, []byte("png"))

	assert.Equal(t, "<@1> <@3>", msg.Content)
	assert.Equal(t, []string{"1", "3"}, msg.PingUsers)
	require.Len(t, msg.Files, 1)
	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, CardFile, msg.Embeds[0].ImageFile)

	fields := map[string]string{}
	for _, f := range msg.Embeds[0].Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, "#42", fields["Game"])
	assert.Equal(t, "scored", fields["State"])
	assert.Equal(t, "<@1> <@2>", fields["Winning Team"])
	assert.Equal(t, "<@3> <@4>", fields["Losing Team"])
	assert.Equal(t, "<@1>", fields["MVPs"])
	assert.Equal(t, "None", fields["Bed Breakers"])
}

func TestScoreMessage_AllOptedOut(t *testing.T) {
	msg := ScoreMessage(Scored{Game: scoredGame()}, nil)
	assert.Empty(t, msg.Content)
	assert.Empty(t, msg.Files)
	assert.Empty(t, msg.Embeds[0].ImageFile)
}

func TestAnnouncer_AnnounceScore(t *testing.T) {
	rec := platformtest.NewRecorder()
	a := NewAnnouncer(rec, testConfig(), zerolog.Nop())

	err := a.AnnounceScore(context.Background(), Scored{
		Game:    scoredGame(),
		Entries: []CardEntry{{Label: "Steve", EloChange: 20, Won: true}, {Label: "Alex", EloChange: -15}},
	})
	require.NoError(t, err)

	public := rec.Messages("200000000000000001")
	require.Len(t, public, 1)
	require.Len(t, public[0].Files, 1)
	assert.True(t, bytes.HasPrefix(public[0].Files[0].Data, pngMagic))
	assert.Len(t, rec.Messages("300000000000000001"), 1)
}

func TestAnnouncer_AnnounceVoid(t *testing.T) {
	rec := platformtest.NewRecorder()
	a := NewAnnouncer(rec, testConfig(), zerolog.Nop())

	g := scoredGame()
	g.State = domain.GameVoided
	require.NoError(t, a.AnnounceVoid(context.Background(), Voided{Game: g, VoidedBy: "9", Players: 4}))

	assert.Len(t, rec.Messages("200000000000000001"), 1)
	logs := rec.Messages("300000000000000002")
	require.Len(t, logs, 1)
	assert.Equal(t, "Game #42 voided", logs[0].Embeds[0].Title)
}

func TestAnnouncer_Notify(t *testing.T) {
	rec := platformtest.NewRecorder()
	a := NewAnnouncer(rec, testConfig(), zerolog.Nop())
	ctx := context.Background()

	a.Notify(ctx, NoticeVoiding, "Void rejected", 42, fmt.Errorf("game 42: %w", domain.ErrIneligibleState))
	a.Notify(ctx, NoticeModification, "ignored", 0, errors.New("no channel configured"))

	msgs := rec.Messages("300000000000000002")
	require.Len(t, msgs, 1)
	assert.Equal(t, colorNotice, msgs[0].Embeds[0].Color)
	assert.Equal(t, "#42", msgs[0].Embeds[0].Fields[0].Value)
	assert.Len(t, rec.CallsFor("send"), 1)
}

type fakeChannels struct {
	mu   sync.Mutex
	rows map[int64]domain.GameChannels
}

func (f *fakeChannels) Get(_ context.Context, gameID int64) (*domain.GameChannels, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[gameID]
	if !ok {
		return nil, fmt.Errorf("channels %d: %w", gameID, domain.ErrNotFound)
	}
	return &c, nil
}

func (f *fakeChannels) Delete(_ context.Context, gameID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, gameID)
	return nil
}

func (f *fakeChannels) has(gameID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[gameID]
	return ok
}

func TestTeardown_Run(t *testing.T) {
	rec := platformtest.NewRecorder()
	rec.SetVoice("vc1", "1", "2")
	rec.SetVoice("vc2", "3")
	store := &fakeChannels{rows: map[int64]domain.GameChannels{
		42: {GameID: 42, TextChannel: "text", Team1VC: "vc1", Team2VC: "vc2"},
	}}
	td := NewTeardown(rec, store, testConfig(), nil, zerolog.Nop())

	require.NoError(t, td.Run(context.Background(), 42))

	assert.Len(t, rec.CallsFor("move_member"), 3)
	deleted := rec.CallsFor("delete_channel")
	require.Len(t, deleted, 3)
	assert.Equal(t, "text", deleted[2].ChannelID)
	assert.False(t, store.has(42))
}

func TestTeardown_RunKeepsRowOnFailure(t *testing.T) {
	rec := platformtest.NewRecorder()
	rec.Fail["delete_channel"] = domain.ErrPlatformPermission
	store := &fakeChannels{rows: map[int64]domain.GameChannels{42: {GameID: 42, TextChannel: "text"}}}
	td := NewTeardown(rec, store, testConfig(), nil, zerolog.Nop())

	err := td.Run(context.Background(), 42)
	assert.ErrorIs(t, err, domain.ErrPlatformPermission)
	assert.True(t, store.has(42))
}

func TestTeardown_ScheduleAfterGrace(t *testing.T) {
	rec := platformtest.NewRecorder()
	store := &fakeChannels{rows: map[int64]domain.GameChannels{42: {GameID: 42, TextChannel: "text"}}}
	td := NewTeardown(rec, store, testConfig(), nil, zerolog.Nop()).WithGrace(10 * time.Millisecond)

	td.Schedule(42)
	td.Schedule(42)

	require.Eventually(t, func() bool { return !store.has(42) }, time.Second, 5*time.Millisecond)
	require.NoError(t, td.Stop(context.Background()))
	assert.Len(t, rec.CallsFor("delete_channel"), 1)
}

func TestTeardown_StopCancelsPending(t *testing.T) {
	rec := platformtest.NewRecorder()
	store := &fakeChannels{rows: map[int64]domain.GameChannels{42: {GameID: 42, TextChannel: "text"}}}
	td := NewTeardown(rec, store, testConfig(), nil, zerolog.Nop()).WithGrace(time.Hour)

	td.Schedule(42)
	require.NoError(t, td.Stop(context.Background()))

	assert.Zero(t, td.Pending())
	assert.Empty(t, rec.CallsFor("delete_channel"))
	assert.True(t, store.has(42))

	td.Schedule(43)
	assert.Zero(t, td.Pending())
}
