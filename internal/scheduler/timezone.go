package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/pipeline"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/timemodel"
)

const defaultTimezoneCelebrationTime = "09:00"

// runTimezoneLoop implements spec §4.9's timezone-aware mode: wake at a
// fixed interval, and for every active record whose user-local time has
// just crossed the celebration hour on a matching date, fire a
// single-person celebration, idempotent via the (user_id,
// user_local_date) ledger key.
func (s *Scheduler) runTimezoneLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.TimezoneCheckIntervalSec) * time.Second
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := s.tickTimezoneAware(ctx, time.Now())
			s.heartbeat(err)
		}
	}
}

func (s *Scheduler) tickTimezoneAware(ctx context.Context, now time.Time) error {
	celebrationTime := s.cfg.TimezoneCelebrationTime
	if celebrationTime == "" {
		celebrationTime = defaultTimezoneCelebrationTime
	}
	var hour, minute int
	if _, err := fmt.Sscanf(celebrationTime, "%d:%d", &hour, &minute); err != nil {
		return fmt.Errorf("invalid timezone_celebration_time %q: %w", celebrationTime, err)
	}

	records, err := s.st.LoadBirthdays()
	if err != nil {
		return err
	}

	for userID, rec := range records {
		if !rec.Preferences.Active {
			continue
		}
		prof, err := s.profiles.GetProfile(ctx, userID)
		if err != nil {
			s.log.Debug().Err(err).Str("user_id", userID).Msg("profile lookup failed during timezone sweep, skipping")
			continue
		}
		localNow := now.In(time.FixedZone(prof.Timezone, prof.TimezoneOffsetSeconds))
		if !timemodel.HasReachedCelebrationHour(rec.Month, rec.Day, localNow, hour, minute) {
			continue
		}

		dateKey := now.Format("2006-01-02")
		idempotencyKey := timemodel.IdempotencyKey(userID, localNow)
		req := &pipeline.CelebrationRequest{
			Channel:      s.channel,
			People:       []pipeline.BirthdayPerson{{UserID: userID, Record: rec}},
			Mode:         pipeline.ModeProduction,
			IncludeImage: true,
			MarkCelebrated: func(uid string) (bool, error) {
				return s.st.TryMarkTimezoneBucket(dateKey, idempotencyKey)
			},
		}

		// Pre-check so an already-celebrated user never re-enters the
		// pipeline (its own posting cost). The same key marked again from
		// MarkCelebrated at persistLedger time is a harmless no-op
		// (TryMarkTimezoneBucket just returns ok=false the second time).
		ok, err := s.st.TryMarkTimezoneBucket(dateKey, idempotencyKey)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("ledger check failed during timezone sweep")
			continue
		}
		if !ok {
			continue
		}
		if err := s.orch.Run(ctx, req, now); err != nil {
			return err
		}
	}
	return nil
}

func sscanfHHMM(hhmm string, hour, minute *int) (int, error) {
	return fmt.Sscanf(hhmm, "%d:%d", hour, minute)
}
