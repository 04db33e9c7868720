package scheduler

import (
	"context"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/pipeline"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/timemodel"
)

// runHeartbeatLoop writes a heartbeat on a cadence independent of
// whether any mode actually fires a celebration this tick, so a
// deployment running daily-mode-only (one wake per day) never reads as
// unhealthy between wakes.
func (s *Scheduler) runHeartbeatLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.HeartbeatStaleSeconds) * time.Second / 2
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
			s.heartbeat(nil)
		}
	}
}

// runDailyLoop wakes at cfg.DailyCheckTime and fires the fleet-wide
// celebration sweep (spec §4.9 daily mode).
func (s *Scheduler) runDailyLoop(ctx context.Context) {
	sched, err := parseHHMM(s.cfg.DailyCheckTime)
	if err != nil {
		s.log.Error().Err(err).Str("daily_check_time", s.cfg.DailyCheckTime).Msg("invalid daily check time, daily mode disabled")
		return
	}
	for {
		next := sched.Next(time.Now())
		if !sleepUntil(ctx, next) {
			return
		}
		s.log.Info().Time("fired_at", next).Msg("daily sweep waking")
		err := s.fireDaily(ctx, time.Now())
		s.heartbeat(err)
	}
}

// runRefreshLoop wakes at cfg.RefreshCheckTime and triggers a cache
// refresh sweep for stale observance sources (spec §4.9: "at a distinct
// early-morning time, trigger cache refresh for stale sources").
func (s *Scheduler) runRefreshLoop(ctx context.Context, refresh func(ctx context.Context)) {
	if s.cfg.RefreshCheckTime == "" {
		return
	}
	sched, err := parseHHMM(s.cfg.RefreshCheckTime)
	if err != nil {
		s.log.Error().Err(err).Str("refresh_check_time", s.cfg.RefreshCheckTime).Msg("invalid refresh check time, refresh sweep disabled")
		return
	}
	for {
		next := sched.Next(time.Now())
		if !sleepUntil(ctx, next) {
			return
		}
		s.log.Info().Msg("cache refresh sweep waking")
		refresh(ctx)
	}
}

// sleepUntil blocks until t or ctx cancellation, returning false on
// cancellation.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// fireDaily runs the fleet-wide sweep: every active birthday record
// whose (month, day) matches today (Feb-29 policy applied) is
// consolidated into a single CelebrationRequest. Idempotent under
// restart per spec §4.9 ("the first iteration after restart consults
// the AnnouncementLedger before firing") and §8 ("running the scheduler
// twice on the same day celebrates each eligible user exactly once in
// total across both runs"): each candidate is pre-claimed against
// TryMarkFleetWide and dropped from due before the pipeline ever runs,
// the same pre-claim-then-continue pattern tickTimezoneAware uses, so a
// second same-day sweep finds nothing left to post rather than posting
// and discovering the duplicate only at persistLedger time.
func (s *Scheduler) fireDaily(ctx context.Context, now time.Time) error {
	records, err := s.st.LoadBirthdays()
	if err != nil {
		return err
	}
	dateKey := now.Format("2006-01-02")

	var due []pipeline.BirthdayPerson
	for userID, rec := range records {
		if !rec.Preferences.Active {
			continue
		}
		if !timemodel.IsBirthdayToday(rec.Month, rec.Day, now) {
			continue
		}
		ok, err := s.st.TryMarkFleetWide(dateKey, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("ledger check failed during daily sweep")
			continue
		}
		if !ok {
			continue
		}
		due = append(due, pipeline.BirthdayPerson{UserID: userID, Record: rec})
	}
	if len(due) == 0 {
		if err := s.emitSpecialDays(ctx, now, dateKey); err != nil {
			s.log.Warn().Err(err).Msg("special-day emission failed")
		}
		return nil
	}

	req := &pipeline.CelebrationRequest{
		Channel:      s.channel,
		People:       due,
		Mode:         pipeline.ModeProduction,
		IncludeImage: true,
		MarkCelebrated: func(userID string) (bool, error) {
			return s.st.TryMarkFleetWide(dateKey, userID)
		},
	}
	if err := s.orch.Run(ctx, req, now); err != nil {
		return err
	}
	if req.State == pipeline.StateAborted {
		s.log.Warn().Str("reason", req.Reason).Msg("daily celebration request aborted")
	}

	if err := s.emitSpecialDays(ctx, now, dateKey); err != nil {
		s.log.Warn().Err(err).Msg("special-day emission failed")
	}
	return nil
}
