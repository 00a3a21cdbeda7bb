// Package platformtest provides an in-memory platform.Actor that records
// every effect for assertions.
package platformtest

import (
	"context"
	"fmt"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/platform"
	"slices"
	"sync"
)

type Call struct {
	Op        string
	GuildID   string
	UserID    string
	ChannelID string
	Roles     []string
	Nickname  string
	Reason    string
}

type Recorder struct {
	mu       sync.Mutex
	members  map[string]*platform.Member
	voice    map[string][]string
	calls    []Call
	messages map[string][]platform.Message
	// Fail maps an op name to the error it returns.
	Fail map[string]error
}

func NewRecorder() *Recorder {
	return &Recorder{
		members:  make(map[string]*platform.Member),
		voice:    make(map[string][]string),
		messages: make(map[string][]platform.Message),
		Fail:     make(map[string]error),
	}
}

func (r *Recorder) AddMember(m platform.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Roles = slices.Clone(m.Roles)
	r.members[m.UserID] = &m
}

func (r *Recorder) SetVoice(channelID string, userIDs ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voice[channelID] = userIDs
}

// Snapshot returns a copy of the member's current state.
func (r *Recorder) Snapshot(userID string) (platform.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[userID]
	if !ok {
		return platform.Member{}, false
	}
	out := *m
	out.Roles = slices.Clone(m.Roles)
	return out, true
}

func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func (r *Recorder) CallsFor(op string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (r *Recorder) Messages(channelID string) []platform.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.messages[channelID])
}

func (r *Recorder) record(c Call) error {
	r.calls = append(r.calls, c)
	return r.Fail[c.Op]
}

func (r *Recorder) Member(_ context.Context, guildID, userID string) (*platform.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.Fail["member"]; err != nil {
		return nil, err
	}
	m, ok := r.members[userID]
	if !ok {
		return nil, fmt.Errorf("member %s: %w", userID, domain.ErrNotFound)
	}
	out := *m
	out.GuildID = guildID
	out.Roles = slices.Clone(m.Roles)
	return &out, nil
}

func (r *Recorder) AddRoles(_ context.Context, guildID, userID string, roleIDs []string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Op: "add_roles", GuildID: guildID, UserID: userID, Roles: slices.Clone(roleIDs), Reason: reason}); err != nil {
		return err
	}
	if m, ok := r.members[userID]; ok {
		for _, id := range roleIDs {
			if !slices.Contains(m.Roles, id) {
				m.Roles = append(m.Roles, id)
			}
		}
	}
	return nil
}

func (r *Recorder) RemoveRoles(_ context.Context, guildID, userID string, roleIDs []string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Op: "remove_roles", GuildID: guildID, UserID: userID, Roles: slices.Clone(roleIDs), Reason: reason}); err != nil {
		return err
	}
	if m, ok := r.members[userID]; ok {
		m.Roles = slices.DeleteFunc(m.Roles, func(id string) bool {
			return slices.Contains(roleIDs, id)
		})
	}
	return nil
}

func (r *Recorder) SetNickname(_ context.Context, guildID, userID, nickname, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Op: "set_nickname", GuildID: guildID, UserID: userID, Nickname: nickname, Reason: reason}); err != nil {
		return err
	}
	if m, ok := r.members[userID]; ok {
		m.Nick = nickname
	}
	return nil
}

func (r *Recorder) Send(_ context.Context, channelID string, msg platform.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Op: "send", ChannelID: channelID}); err != nil {
		return err
	}
	r.messages[channelID] = append(r.messages[channelID], msg)
	return nil
}

func (r *Recorder) DeleteChannel(_ context.Context, channelID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Op: "delete_channel", ChannelID: channelID, Reason: reason}); err != nil {
		return err
	}
	delete(r.voice, channelID)
	return nil
}

func (r *Recorder) VoiceMembers(_ context.Context, _ string, channelID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.voice[channelID]), nil
}

func (r *Recorder) MoveMember(_ context.Context, guildID, userID, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record(Call{Op: "move_member", GuildID: guildID, UserID: userID, ChannelID: channelID}); err != nil {
		return err
	}
	for ch, users := range r.voice {
		r.voice[ch] = slices.DeleteFunc(users, func(id string) bool { return id == userID })
	}
	r.voice[channelID] = append(r.voice[channelID], userID)
	return nil
}

var _ platform.Actor = (*Recorder)(nil)
