package service

import (
	"context"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/platform"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNickname(t *testing.T) {
	p := &domain.Player{IGN: "Steve", Elo: 1234}

	tests := []struct {
		name     string
		settings domain.Settings
		want     string
	}{
		{"elo prefix", domain.Settings{}, "[1234] Steve"},
		{"elo prefix with nickname", domain.Settings{Nickname: " builder "}, "[1234] Steve | builder"},
		{"prefix toggled", domain.Settings{IsPrefixToggled: true}, "Steve"},
		{"prefix toggled with nickname", domain.Settings{IsPrefixToggled: true, Nickname: "builder"}, "Steve | builder"},
		{"static", domain.Settings{StaticNickname: true, Nickname: "builder"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Nickname(p, &tt.settings))
		})
	}
}

func TestNickname_Truncates(t *testing.T) {
	p := &domain.Player{IGN: "Steve", Elo: 10}
	got := Nickname(p, &domain.Settings{Nickname: strings.Repeat("x", 40)})
	assert.Len(t, []rune(got), 32)
	assert.True(t, strings.HasPrefix(got, "[10] Steve | "))
}

func TestReconcile_Unregistered(t *testing.T) {
	h := newHarness(t)
	h.store.bands = []domain.RatingBand{coalBand}
	h.actor.AddMember(platform.Member{UserID: "7", Nick: "[50] Steve", Roles: []string{roleRegistered, roleCoal, "999"}})

	require.NoError(t, h.rec.Reconcile(context.Background(), "7"))

	m, _ := h.actor.Snapshot("7")
	assert.ElementsMatch(t, []string{"999", roleUnregistered}, m.Roles)
	assert.Empty(t, m.Nick)
	nick := h.actor.CallsFor("set_nickname")
	require.Len(t, nick, 1)
	assert.Equal(t, "", nick[0].Nickname)
}

func TestReconcile_UnregisteredAlreadyClean(t *testing.T) {
	h := newHarness(t)
	h.store.bands = []domain.RatingBand{coalBand}
	h.actor.AddMember(platform.Member{UserID: "7", Roles: []string{roleUnregistered}})

	require.NoError(t, h.rec.Reconcile(context.Background(), "7"))
	assert.Empty(t, h.actor.Calls())
}

func TestReconcile_Registered(t *testing.T) {
	h := newHarness(t)
	h.store.bands = []domain.RatingBand{coalBand}
	h.store.putPlayer(domain.Player{DiscordID: "7", IGN: "Steve", Elo: 42, Level: 1})
	h.store.settings["7"] = domain.Settings{DiscordID: "7", Nickname: "bridger"}
	h.actor.AddMember(platform.Member{UserID: "7", Roles: []string{roleUnregistered}})

	require.NoError(t, h.rec.Reconcile(context.Background(), "7"))

	m, _ := h.actor.Snapshot("7")
	assert.ElementsMatch(t, []string{roleRegistered, roleCoal}, m.Roles)
	assert.Equal(t, "[42] Steve | bridger", m.Nick)

	// a second pass has nothing left to do
	calls := len(h.actor.Calls())
	require.NoError(t, h.rec.Reconcile(context.Background(), "7"))
	assert.Len(t, h.actor.Calls(), calls)
}

func TestReconcile_MemberMissing(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.rec.Reconcile(context.Background(), "404"))
}

func TestReconcile_Frozen(t *testing.T) {
	h := newHarness(t)
	h.store.bands = []domain.RatingBand{coalBand}
	h.store.putPlayer(domain.Player{DiscordID: "7", IGN: "Steve", Elo: 42, Level: 1})
	h.actor.AddMember(platform.Member{UserID: "7", Roles: []string{roleFrozen}})

	require.NoError(t, h.rec.Reconcile(context.Background(), "7"))
	assert.Empty(t, h.actor.Calls())
}

func TestReconcile_PlatformFailuresAreReturned(t *testing.T) {
	h := newHarness(t)
	h.store.bands = []domain.RatingBand{coalBand}
	h.store.putPlayer(domain.Player{DiscordID: "7", IGN: "Steve", Elo: 42, Level: 1})
	h.actor.AddMember(platform.Member{UserID: "7"})
	h.actor.Fail["add_roles"] = domain.ErrPlatformPermission

	err := h.rec.Reconcile(context.Background(), "7")
	assert.ErrorIs(t, err, domain.ErrPlatformPermission)

	// the nickname edit still went through
	m, _ := h.actor.Snapshot("7")
	assert.Equal(t, "[42] Steve", m.Nick)
}

func TestPlanRegistered_NoBand(t *testing.T) {
	m := &platform.Member{Roles: []string{roleRegistered, roleCoal}, Nick: "[5000] Steve"}
	p := &domain.Player{IGN: "Steve", Elo: 5000}

	plan := PlanRegistered(m, p, &domain.Settings{}, config.RolesConfig{Registered: roleRegistered, Unregistered: roleUnregistered, Frozen: roleFrozen}, []domain.RatingBand{coalBand}, nil)

	assert.Empty(t, plan.Add)
	assert.Equal(t, []string{roleCoal}, plan.Remove)
	assert.False(t, plan.SetNickname)
}
