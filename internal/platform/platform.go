// Package platform is the boundary to the chat and voice platform. Every
// effect the core has on Discord goes through an Actor.
package platform

import (
	"context"
	"slices"
)

type Member struct {
	GuildID string
	UserID  string
	Nick    string
	Roles   []string
}

func (m *Member) HasRole(roleID string) bool {
	return roleID != "" && slices.Contains(m.Roles, roleID)
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	// ImageFile names an attachment of the same message to show in the embed.
	ImageFile string
}

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	Content string
	Embeds  []Embed
	Files   []Attachment
	// PingUsers limits which user mentions in Content actually notify.
	PingUsers []string
}

// Actor performs platform effects. Every call may fail with
// domain.ErrPlatformPermission, domain.ErrPlatformTimeout or
// domain.ErrNotFound; none of them is fatal to the caller.
type Actor interface {
	Member(ctx context.Context, guildID, userID string) (*Member, error)
	AddRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error
	RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error
	// SetNickname with an empty name resets the nickname.
	SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error
	Send(ctx context.Context, channelID string, msg Message) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
	VoiceMembers(ctx context.Context, guildID, channelID string) ([]string, error)
	MoveMember(ctx context.Context, guildID, userID, channelID string) error
}
