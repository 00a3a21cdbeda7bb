// Package announce publishes match results and operator notices, and tears
// down the chat and voice surfaces of finished games.
package announce

import (
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/platform"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	colorScored = 0x3ba55c
	colorVoided = 0x99aab5
	colorNotice = 0xfaa61a
	colorFailed = 0xed4245
)

type Announcer struct {
	actor  platform.Actor
	cfg    *config.Config
	logger zerolog.Logger
}

func NewAnnouncer(actor platform.Actor, cfg *config.Config, logger zerolog.Logger) *Announcer {
	return &Announcer{
		actor:  actor,
		cfg:    cfg,
		logger: logger,
	}
}

// Scored carries what the score announcement shows.
type Scored struct {
	Game    *domain.Game
	Entries []CardEntry
	// Ping are the participants who have not opted out of scoring pings.
	Ping []string
}

// Voided carries what the void notice shows.
type Voided struct {
	Game     *domain.Game
	VoidedBy string
	Players  int
}

// mention renders a user id as a ping. Names that are not ids, such as the
// game server scoring automatically, are shown as they are.
func mention(id string) string {
	switch {
	case id == "":
		return "None"
	case strings.Trim(id, "0123456789") != "":
		return id
	}
	return "<@" + id + ">"
}

func mentions(ids []string) string {
	if len(ids) == 0 {
		return "None"
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = mention(id)
	}
	return strings.Join(out, " ")
}

func gameFields(g *domain.Game) []platform.EmbedField {
	return []platform.EmbedField{
		{Name: "Game", Value: "#" + strconv.FormatInt(g.GameID, 10), Inline: true},
		{Name: "State", Value: g.State.String(), Inline: true},
		{Name: "Type", Value: string(g.GameType), Inline: true},
		{Name: "Winning Team", Value: mentions(g.WinningTeam)},
		{Name: "Losing Team", Value: mentions(g.LosingTeam)},
		{Name: "MVPs", Value: mentions(g.MVPs), Inline: true},
		{Name: "Bed Breakers", Value: mentions(g.BedBreakers), Inline: true},
	}
}

// ScoreMessage is the public result post: embed, result card and pings.
func ScoreMessage(s Scored, card []byte) platform.Message {
	g := s.Game
	embed := platform.Embed{
		Title:  fmt.Sprintf("Game #%d scored", g.GameID),
		Color:  colorScored,
		Fields: gameFields(g),
		Footer: "Scored by " + g.ScoredBy,
	}
	msg := platform.Message{PingUsers: s.Ping}
	if len(s.Ping) > 0 {
		msg.Content = mentions(s.Ping)
	}
	if card != nil {
		embed.ImageFile = CardFile
		msg.Files = []platform.Attachment{{Name: CardFile, ContentType: "image/png", Data: card}}
	}
	msg.Embeds = []platform.Embed{embed}
	return msg
}

// ScoreLog is the staff log entry for a score.
func ScoreLog(s Scored) platform.Message {
	g := s.Game
	var b strings.Builder
	for _, e := range s.Entries {
		fmt.Fprintf(&b, "%s `%+d`\n", e.Label, e.EloChange)
	}
	return platform.Message{Embeds: []platform.Embed{{
		Title:       fmt.Sprintf("Game #%d scored", g.GameID),
		Description: b.String(),
		Color:       colorScored,
		Fields:      append(gameFields(g), platform.EmbedField{Name: "Scorer", Value: mention(g.ScoredBy)}),
	}}}
}

func VoidMessage(v Voided) platform.Message {
	g := v.Game
	fields := []platform.EmbedField{
		{Name: "Game", Value: "#" + strconv.FormatInt(g.GameID, 10), Inline: true},
		{Name: "State", Value: domain.GameVoided.String(), Inline: true},
		{Name: "Team 1", Value: mentions(g.Team1)},
		{Name: "Team 2", Value: mentions(g.Team2)},
	}
	embed := platform.Embed{
		Title:  fmt.Sprintf("Game #%d voided", g.GameID),
		Color:  colorVoided,
		Fields: fields,
	}
	if v.VoidedBy != "" {
		embed.Footer = "Voided by " + v.VoidedBy
	}
	return platform.Message{Embeds: []platform.Embed{embed}}
}

func VoidLog(v Voided) platform.Message {
	msg := VoidMessage(v)
	msg.Embeds[0].Fields = append(msg.Embeds[0].Fields,
		platform.EmbedField{Name: "Players reverted", Value: strconv.Itoa(v.Players), Inline: true},
	)
	if v.VoidedBy != "" {
		msg.Embeds[0].Fields = append(msg.Embeds[0].Fields, platform.EmbedField{Name: "Voided By", Value: mention(v.VoidedBy), Inline: true})
	}
	return msg
}

// AnnounceScore renders the card and posts the result and the staff log.
// Failures are logged and returned; the caller decides whether they matter.
func (a *Announcer) AnnounceScore(ctx context.Context, s Scored) error {
	card, err := RenderResultCard(Card{
		GameID:     s.Game.GameID,
		ServerName: a.cfg.Bot.Server.ServerName,
		InviteLink: a.cfg.Bot.Server.InviteLink,
		Entries:    s.Entries,
	})
	if err != nil {
		a.logger.Warn().Err(err).Int64("game_id", s.Game.GameID).Msg("result card not rendered, posting without image")
		card = nil
	}

	var firstErr error
	if ch := a.cfg.Bot.Channels.Scoring; ch != "" {
		firstErr = a.send(ctx, ch, ScoreMessage(s, card), s.Game.GameID)
	}
	if ch := a.cfg.Bot.Logging.Scoring; ch != "" {
		if err := a.send(ctx, ch, ScoreLog(s), s.Game.GameID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (a *Announcer) AnnounceVoid(ctx context.Context, v Voided) error {
	var firstErr error
	if ch := a.cfg.Bot.Channels.Scoring; ch != "" {
		firstErr = a.send(ctx, ch, VoidMessage(v), v.Game.GameID)
	}
	if ch := a.cfg.Bot.Logging.Voiding; ch != "" {
		if err := a.send(ctx, ch, VoidLog(v), v.Game.GameID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Notice kinds select the logging channel an operator notice goes to.
type NoticeKind int

const (
	NoticeScoring NoticeKind = iota
	NoticeVoiding
	NoticeModification
	NoticeRegistration
)

func (a *Announcer) noticeChannel(kind NoticeKind) string {
	l := a.cfg.Bot.Logging
	switch kind {
	case NoticeVoiding:
		return l.Voiding
	case NoticeModification:
		return l.Modification
	case NoticeRegistration:
		return l.RegAndRename
	default:
		return l.Scoring
	}
}

// Notify posts a structured failure or rejection to the logging channel for
// kind. gameID 0 omits the game field.
func (a *Announcer) Notify(ctx context.Context, kind NoticeKind, title string, gameID int64, reason error) {
	ch := a.noticeChannel(kind)
	if ch == "" {
		return
	}
	color := colorNotice
	if !isRejection(reason) {
		color = colorFailed
	}
	embed := platform.Embed{
		Title:       title,
		Description: reason.Error(),
		Color:       color,
	}
	if gameID != 0 {
		embed.Fields = []platform.EmbedField{{Name: "Game", Value: "#" + strconv.FormatInt(gameID, 10), Inline: true}}
	}
	_ = a.send(ctx, ch, platform.Message{Embeds: []platform.Embed{embed}}, gameID)
}

func isRejection(err error) bool {
	return errors.Is(err, domain.ErrIneligibleState) || errors.Is(err, domain.ErrNotFound)
}

func (a *Announcer) send(ctx context.Context, channelID string, msg platform.Message, gameID int64) error {
	if err := a.actor.Send(ctx, channelID, msg); err != nil {
		a.logger.Warn().Err(err).Str("channel_id", channelID).Int64("game_id", gameID).Msg("failed to send announcement")
		return err
	}
	return nil
}
