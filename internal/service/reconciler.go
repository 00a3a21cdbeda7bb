package service

import (
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/metrics"
	"ranked-bedwars/internal/platform"
	"ranked-bedwars/internal/rating"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const reconcileReason = "rating sync"

// Reconciler aligns a member's roles and display name with their stored
// rating. It always re-reads the player.
type Reconciler struct {
	actor    platform.Actor
	users    UserStore
	settings SettingsStore
	table    *RatingTable
	cfg      *config.Config
	metrics  *metrics.Collectors
	tracer   trace.Tracer
	logger   zerolog.Logger
}

func NewReconciler(actor platform.Actor, stores Stores, table *RatingTable, cfg *config.Config, m *metrics.Collectors, tracer trace.Tracer, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		actor:    actor,
		users:    stores.Users,
		settings: stores.Settings,
		table:    table,
		cfg:      cfg,
		metrics:  m,
		tracer:   tracer,
		logger:   logger,
	}
}

// Plan is the minimal set of edits that brings a member in line.
type Plan struct {
	Add         []string
	Remove      []string
	Nickname    string
	SetNickname bool
}

func (p Plan) Empty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0 && !p.SetNickname
}

// Nickname renders the display name for p under s, bounded to the platform
// limit.
func Nickname(p *domain.Player, s *domain.Settings) string {
	if s.StaticNickname {
		return ""
	}
	name := p.IGN
	if !s.IsPrefixToggled {
		name = "[" + strconv.Itoa(p.Elo) + "] " + name
	}
	if nick := strings.TrimSpace(s.Nickname); nick != "" {
		name += " | " + nick
	}
	if r := []rune(name); len(r) > constants.MaxNicknameLength {
		name = strings.TrimSpace(string(r[:constants.MaxNicknameLength]))
	}
	return name
}

// PlanUnregistered strips registration and band roles and resets the name.
func PlanUnregistered(m *platform.Member, roles config.RolesConfig, bands []domain.RatingBand) Plan {
	var plan Plan
	if m.HasRole(roles.Registered) {
		plan.Remove = append(plan.Remove, roles.Registered)
	}
	for _, b := range bands {
		if m.HasRole(b.RoleID) && !slices.Contains(plan.Remove, b.RoleID) {
			plan.Remove = append(plan.Remove, b.RoleID)
		}
	}
	if roles.Unregistered != "" && !m.HasRole(roles.Unregistered) {
		plan.Add = append(plan.Add, roles.Unregistered)
	}
	if m.Nick != "" {
		plan.SetNickname = true
	}
	return plan
}

// PlanRegistered computes the edits for a stored player. band may be nil when
// no band contains the rating; band roles are then only removed.
func PlanRegistered(m *platform.Member, p *domain.Player, s *domain.Settings, roles config.RolesConfig, bands []domain.RatingBand, band *domain.RatingBand) Plan {
	var plan Plan
	if roles.Registered != "" && !m.HasRole(roles.Registered) {
		plan.Add = append(plan.Add, roles.Registered)
	}
	if m.HasRole(roles.Unregistered) {
		plan.Remove = append(plan.Remove, roles.Unregistered)
	}

	if band != nil && band.RoleID != "" && !m.HasRole(band.RoleID) {
		plan.Add = append(plan.Add, band.RoleID)
	}
	for _, b := range bands {
		if band != nil && b.RoleID == band.RoleID {
			continue
		}
		if m.HasRole(b.RoleID) && !slices.Contains(plan.Remove, b.RoleID) {
			plan.Remove = append(plan.Remove, b.RoleID)
		}
	}

	if nick := Nickname(p, s); nick != m.Nick {
		plan.Nickname = nick
		plan.SetNickname = true
	}
	return plan
}

// Reconcile brings the member for discordID in line with the store. A member
// that is not in the guild is not an error. Platform failures are logged and
// returned joined; they never stop the remaining edits.
func (r *Reconciler) Reconcile(ctx context.Context, discordID string) error {
	ctx, span := r.tracer.Start(ctx, "reconcile", trace.WithAttributes(
		attribute.String("discord_id", discordID),
	))
	defer span.End()

	start := time.Now()
	defer func() { r.metrics.ObserveReconcile(time.Since(start)) }()

	guildID := r.cfg.Bot.GuildID
	roles := r.cfg.Bot.Roles
	log := r.logger.With().Str("discord_id", discordID).Str("op", "reconcile").Logger()

	member, err := r.actor.Member(ctx, guildID, discordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Debug().Msg("member not in guild, nothing to reconcile")
			return nil
		}
		span.RecordError(err)
		return fmt.Errorf("failed to resolve member %s: %w", discordID, err)
	}

	bands, err := r.table.Bands(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("rating bands unavailable, band roles left alone")
		bands = nil
	}

	var plan Plan
	player, err := r.users.Get(ctx, discordID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		plan = PlanUnregistered(member, roles, bands)
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("failed to load player %s: %w", discordID, err)
	default:
		if member.HasRole(roles.Frozen) {
			log.Info().Msg("member is frozen, roles and nickname left alone")
			return nil
		}
		settings, err := r.settings.GetOrCreate(ctx, discordID)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to load settings %s: %w", discordID, err)
		}
		band, err := rating.BandFor(bands, player.Elo)
		if err != nil && len(bands) > 0 {
			log.Warn().Err(err).Int("elo", player.Elo).Msg("no band for rating")
		}
		plan = PlanRegistered(member, player, settings, roles, bands, band)
	}

	if plan.Empty() {
		return nil
	}
	err = r.apply(ctx, guildID, discordID, plan, log)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *Reconciler) apply(ctx context.Context, guildID, discordID string, plan Plan, log zerolog.Logger) error {
	var errs []error
	if len(plan.Add) > 0 {
		if err := r.actor.AddRoles(ctx, guildID, discordID, plan.Add, reconcileReason); err != nil {
			log.Warn().Err(err).Strs("roles", plan.Add).Msg("failed to add roles")
			errs = append(errs, err)
		}
	}
	if len(plan.Remove) > 0 {
		if err := r.actor.RemoveRoles(ctx, guildID, discordID, plan.Remove, reconcileReason); err != nil {
			log.Warn().Err(err).Strs("roles", plan.Remove).Msg("failed to remove roles")
			errs = append(errs, err)
		}
	}
	if plan.SetNickname {
		if err := r.actor.SetNickname(ctx, guildID, discordID, plan.Nickname, reconcileReason); err != nil {
			log.Warn().Err(err).Str("nickname", plan.Nickname).Msg("failed to set nickname")
			errs = append(errs, err)
		}
	}
	log.Debug().Strs("add", plan.Add).Strs("remove", plan.Remove).Bool("nickname", plan.SetNickname).Msg("member reconciled")
	return errors.Join(errs...)
}
