package service

import (
	"context"
	"ranked-bedwars/internal/constants"
	"time"
)

// NextDailyReset returns the first reset instant strictly after now.
func NextDailyReset(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), constants.DailyResetHourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunDailyReset zeroes daily ratings at every reset instant until ctx ends.
func (s *PlayerService) RunDailyReset(ctx context.Context) {
	for {
		wait := time.Until(NextDailyReset(time.Now()))
		s.logger.Debug().Dur("in", wait).Msg("next daily elo reset scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if _, err := s.ResetDailyElo(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("scheduled daily elo reset failed")
		}
	}
}
