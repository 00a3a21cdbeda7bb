package announce

import (
	"context"
	"errors"
	"fmt"
	"ranked-bedwars/internal/config"
	"ranked-bedwars/internal/constants"
	"ranked-bedwars/internal/domain"
	"ranked-bedwars/internal/metrics"
	"ranked-bedwars/internal/platform"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type ChannelStore interface {
	Get(ctx context.Context, gameID int64) (*domain.GameChannels, error)
	Delete(ctx context.Context, gameID int64) error
}

// Teardown deletes a finished game's channels after a grace period. Pending
// teardowns are dropped on Stop; leftover channels are not swept here.
type Teardown struct {
	actor    platform.Actor
	channels ChannelStore
	cfg      *config.Config
	metrics  *metrics.Collectors
	logger   zerolog.Logger
	grace    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[int64]struct{}
}

func NewTeardown(actor platform.Actor, channels ChannelStore, cfg *config.Config, m *metrics.Collectors, logger zerolog.Logger) *Teardown {
	ctx, cancel := context.WithCancel(context.Background())
	return &Teardown{
		actor:    actor,
		channels: channels,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		grace:    constants.TeardownGrace,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[int64]struct{}),
	}
}

// WithGrace overrides the wait before a teardown runs.
func (t *Teardown) WithGrace(d time.Duration) *Teardown {
	t.grace = d
	return t
}

// Schedule queues a teardown for gameID unless one is already pending.
func (t *Teardown) Schedule(gameID int64) {
	t.mu.Lock()
	if _, ok := t.pending[gameID]; ok || t.ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.pending[gameID] = struct{}{}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			t.mu.Lock()
			delete(t.pending, gameID)
			t.mu.Unlock()
		}()

		timer := time.NewTimer(t.grace)
		defer timer.Stop()
		select {
		case <-t.ctx.Done():
			t.metrics.Teardown("cancelled")
			t.logger.Info().Int64("game_id", gameID).Msg("teardown cancelled")
			return
		case <-timer.C:
		}

		if err := t.Run(t.ctx, gameID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				t.metrics.Teardown("none")
				t.logger.Debug().Int64("game_id", gameID).Msg("no channels to tear down")
				return
			}
			t.metrics.Teardown("failed")
			t.logger.Warn().Err(err).Int64("game_id", gameID).Msg("teardown failed")
			return
		}
		t.metrics.Teardown("done")
	}()
}

// Run tears down the channels of gameID now. Members still in the team voice
// channels are moved to the waiting room first.
func (t *Teardown) Run(ctx context.Context, gameID int64) error {
	chans, err := t.channels.Get(ctx, gameID)
	if err != nil {
		return err
	}

	guildID := t.cfg.Bot.GuildID
	waiting := t.cfg.Bot.Channels.WaitingVC
	reason := fmt.Sprintf("game #%d finished", gameID)
	var errs []error

	for _, vc := range chans.VoiceChannels() {
		if waiting != "" {
			members, err := t.actor.VoiceMembers(ctx, guildID, vc)
			if err != nil {
				errs = append(errs, err)
			}
			for _, userID := range members {
				if err := t.actor.MoveMember(ctx, guildID, userID, waiting); err != nil {
					t.logger.Warn().Err(err).Int64("game_id", gameID).Str("discord_id", userID).Msg("failed to move member to waiting room")
				}
			}
		}
		if err := t.actor.DeleteChannel(ctx, vc, reason); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if chans.TextChannel != "" {
		if err := t.actor.DeleteChannel(ctx, chans.TextChannel, reason); err != nil && !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return t.channels.Delete(ctx, gameID)
}

// Stop cancels pending teardowns and waits for running ones.
func (t *Teardown) Stop(ctx context.Context) error {
	t.mu.Lock()
	t.cancel()
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending reports how many teardowns are waiting or running.
func (t *Teardown) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

func NewLifecycleTeardown(lc fx.Lifecycle, actor platform.Actor, channels ChannelStore, cfg *config.Config, m *metrics.Collectors, logger zerolog.Logger) *Teardown {
	t := NewTeardown(actor, channels, cfg, m, logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info().Int("pending", t.Pending()).Msg("stopping teardown scheduler")
			return t.Stop(ctx)
		},
	})
	return t
}
