package platform

import (
	"context"

	"github.com/rs/zerolog"
)

// Fallback routes role and nickname edits through an optional worker actor
// and retries them on the primary when the worker fails. Everything else goes
// to the primary.
type Fallback struct {
	primary Actor
	worker  Actor
	logger  zerolog.Logger
}

func NewFallback(primary, worker Actor, logger zerolog.Logger) *Fallback {
	return &Fallback{primary: primary, worker: worker, logger: logger}
}

func (f *Fallback) viaWorker(op string, userID string, fn func(Actor) error) error {
	if f.worker != nil {
		err := fn(f.worker)
		if err == nil {
			return nil
		}
		f.logger.Warn().Err(err).Str("op", op).Str("discord_id", userID).Msg("worker actor failed, using primary")
	}
	return fn(f.primary)
}

func (f *Fallback) Member(ctx context.Context, guildID, userID string) (*Member, error) {
	return f.primary.Member(ctx, guildID, userID)
}

func (f *Fallback) AddRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	return f.viaWorker("add roles", userID, func(a Actor) error {
		return a.AddRoles(ctx, guildID, userID, roleIDs, reason)
	})
}

func (f *Fallback) RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	return f.viaWorker("remove roles", userID, func(a Actor) error {
		return a.RemoveRoles(ctx, guildID, userID, roleIDs, reason)
	})
}

func (f *Fallback) SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error {
	return f.viaWorker("set nickname", userID, func(a Actor) error {
		return a.SetNickname(ctx, guildID, userID, nickname, reason)
	})
}

func (f *Fallback) Send(ctx context.Context, channelID string, msg Message) error {
	return f.primary.Send(ctx, channelID, msg)
}

func (f *Fallback) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return f.primary.DeleteChannel(ctx, channelID, reason)
}

func (f *Fallback) VoiceMembers(ctx context.Context, guildID, channelID string) ([]string, error) {
	return f.primary.VoiceMembers(ctx, guildID, channelID)
}

func (f *Fallback) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	return f.primary.MoveMember(ctx, guildID, userID, channelID)
}
