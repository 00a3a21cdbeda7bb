package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Discord is an Actor backed by one bot session. Calls for the same guild or
// channel are serialised and spaced; each call is bounded by the platform
// call timeout.
type Discord struct {
	session *discordgo.Session
	name    string
	gate    *gate
	metrics *metrics.Collectors
	logger  zerolog.Logger
}

func NewDiscord(session *discordgo.Session, name string, m *metrics.Collectors, logger zerolog.Logger) *Discord {
	return &Discord{
		session: session,
		name:    name,
		gate:    newGate(rate.Limit(constants.PlatformCallsPerSecond), constants.PlatformBurst),
		metrics: m,
		logger:  logger.With().Str("actor", name).Logger(),
	}
}

// NewSession builds a bot session with the intents the actor relies on. The
// session is not opened.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildVoiceStates
	s.StateEnabled = true
	return s, nil
}

func (d *Discord) call(ctx context.Context, key, op string, fn func(opts ...discordgo.RequestOption) error) error {
	ctx, cancel := context.WithTimeout(ctx, constants.PlatformCallTimeout)
	defer cancel()

	err := d.gate.do(ctx, key, func() error {
		return fn(discordgo.WithContext(ctx))
	})
	if err == nil {
		return nil
	}

	err = classify(err)
	d.metrics.PlatformError(errorKind(err))
	d.logger.Debug().Err(err).Str("op", op).Str("key", key).Msg("platform call failed")
	return fmt.Errorf("%s: %w", op, err)
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*Member, error) {
	var m *discordgo.Member
	err := d.call(ctx, guildID, "get member", func(opts ...discordgo.RequestOption) error {
		var err error
		m, err = d.session.GuildMember(guildID, userID, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Member{
		GuildID: guildID,
		UserID:  userID,
		Nick:    m.Nick,
		Roles:   m.Roles,
	}, nil
}

func (d *Discord) AddRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	var errs []error
	for _, roleID := range roleIDs {
		err := d.call(ctx, guildID, "add role", func(opts ...discordgo.RequestOption) error {
			return d.session.GuildMemberRoleAdd(guildID, userID, roleID, append(opts, discordgo.WithAuditLogReason(reason))...)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", roleID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Discord) RemoveRoles(ctx context.Context, guildID, userID string, roleIDs []string, reason string) error {
	var errs []error
	for _, roleID := range roleIDs {
		err := d.call(ctx, guildID, "remove role", func(opts ...discordgo.RequestOption) error {
			return d.session.GuildMemberRoleRemove(guildID, userID, roleID, append(opts, discordgo.WithAuditLogReason(reason))...)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", roleID, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Discord) SetNickname(ctx context.Context, guildID, userID, nickname, reason string) error {
	return d.call(ctx, guildID, "set nickname", func(opts ...discordgo.RequestOption) error {
		return d.session.GuildMemberNickname(guildID, userID, nickname, append(opts, discordgo.WithAuditLogReason(reason))...)
	})
}

func (d *Discord) Send(ctx context.Context, channelID string, msg Message) error {
	data := toMessageSend(msg)
	return d.call(ctx, channelID, "send message", func(opts ...discordgo.RequestOption) error {
		_, err := d.session.ChannelMessageSendComplex(channelID, data, opts...)
		return err
	})
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return d.call(ctx, channelID, "delete channel", func(opts ...discordgo.RequestOption) error {
		_, err := d.session.ChannelDelete(channelID, append(opts, discordgo.WithAuditLogReason(reason))...)
		return err
	})
}

// VoiceMembers reads the voice states cached by the gateway session.
func (d *Discord) VoiceMembers(_ context.Context, guildID, channelID string) ([]string, error) {
	g, err := d.session.State.Guild(guildID)
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return nil, fmt.Errorf("guild %s: %w", guildID, domain.ErrNotFound)
		}
		return nil, err
	}

	d.session.State.RLock()
	defer d.session.State.RUnlock()

	var out []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID {
			out = append(out, vs.UserID)
		}
	}
	return out, nil
}

func (d *Discord) MoveMember(ctx context.Context, guildID, userID, channelID string) error {
	return d.call(ctx, guildID, "move member", func(opts ...discordgo.RequestOption) error {
		return d.session.GuildMemberMove(guildID, userID, &channelID, opts...)
	})
}

func toMessageSend(msg Message) *discordgo.MessageSend {
	data := &discordgo.MessageSend{
		Content: msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Users: msg.PingUsers,
		},
	}
	if data.AllowedMentions.Users == nil {
		data.AllowedMentions.Users = []string{}
	}
	for _, e := range msg.Embeds {
		embed := &discordgo.MessageEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		for _, f := range e.Fields {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			})
		}
		if e.Footer != "" {
			embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		if e.ImageFile != "" {
			embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + e.ImageFile}
		}
		data.Embeds = append(data.Embeds, embed)
	}
	for _, f := range msg.Files {
		data.Files = append(data.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      bytes.NewReader(f.Data),
		})
	}
	return data
}

// classify maps transport failures onto the domain error kinds.
func classify(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", domain.ErrPlatformPermission, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrPlatformTimeout, err)
	}
	return err
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrPlatformPermission):
		return "permission"
	case errors.Is(err, domain.ErrPlatformTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
