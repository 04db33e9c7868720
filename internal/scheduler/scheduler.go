// Package scheduler implements the single long-running worker (spec
// §4.9): daily fleet-wide mode, timezone-aware mode, heartbeat writing,
// stats flushing, idempotent-restart ledger consultation, and special-day
// emission.
//
// Grounded on the teacher's pkg/cron: like cron.Service it owns exactly
// one long-running loop per mode, uses robfig/cron's expression parser
// to compute next-wake times (schedule.go's ComputeNextRunAtMs), and
// treats a heartbeat write as a first-class side effect of every tick
// rather than a side-channel health probe.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/config"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/pipeline"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/platform"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/profile"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

var cronParser = cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow)

// parseHHMM compiles an "HH:MM" server-local time into a daily cron
// expression and returns its Schedule, grounded on the teacher's
// schedule.go "cron" kind which runs the same parser over an expr
// string rather than hand-rolling a clock comparison.
func parseHHMM(hhmm string) (cronlib.Schedule, error) {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return nil, fmt.Errorf("invalid HH:MM time %q: %w", hhmm, err)
	}
	expr := fmt.Sprintf("%d %d * * *", m, h)
	return cronParser.Parse(expr)
}

// ProfileSource is the subset of internal/profile the scheduler needs to
// resolve a person before handing them to the pipeline.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (profile.UserProfile, error)
	IsChannelMember(ctx context.Context, channel, userID string) (bool, error)
}

// Scheduler drives the two §4.9 modes plus heartbeat/stats bookkeeping.
type Scheduler struct {
	cfg             config.SchedulerConfig
	channel         string
	specialDaysMode string // "daily" | "weekly"
	st              *store.Store
	orch            *pipeline.Orchestrator
	platform        platform.Client
	profiles        ProfileSource
	aggregator      *observance.Aggregator
	log             zerolog.Logger

	mu    sync.Mutex
	stats store.SchedulerStats
}

// New builds a Scheduler. aggregator may be nil (special-day emission is
// then skipped). specialDaysMode is config.FeatureToggles.SpecialDaysMode
// ("daily" or "weekly").
func New(
	cfg config.SchedulerConfig,
	channel string,
	specialDaysMode string,
	st *store.Store,
	orch *pipeline.Orchestrator,
	plat platform.Client,
	profiles ProfileSource,
	aggregator *observance.Aggregator,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg: cfg, channel: channel, specialDaysMode: specialDaysMode,
		st: st, orch: orch, platform: plat,
		profiles: profiles, aggregator: aggregator,
		log: log.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks, driving daily mode, the early-morning refresh tick, and
// (if enabled) timezone-aware mode, until ctx is cancelled. Each mode
// runs on its own goroutine under one errgroup-free WaitGroup, since
// a failure in one must not stop the others (spec §5: "the only
// component authorized to initiate a scheduled celebration" names one
// logical scheduler, not one goroutine).
func (s *Scheduler) Run(ctx context.Context, timezoneAware bool, refresh func(ctx context.Context)) {
	now, err := s.st.LoadSchedulerStats(time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load scheduler stats, starting fresh")
	}
	s.mu.Lock()
	s.stats = now
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runHeartbeatLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runDailyLoop(ctx)
	}()

	if refresh != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runRefreshLoop(ctx, refresh)
		}()
	}

	if timezoneAware {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runTimezoneLoop(ctx)
		}()
	}

	wg.Wait()
}

// heartbeat records one iteration (a failure when tickErr is non-nil,
// a success otherwise) and, every StatsFlushEveryN
// ticks, flushes SchedulerStats to disk (spec §4.9 invariants).
func (s *Scheduler) heartbeat(tickErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.LastHeartbeat = time.Now()
	s.stats.TotalExecutions++
	if tickErr != nil {
		s.stats.FailedExecutions++
		s.stats.LastError = tickErr.Error()
	} else {
		s.stats.LastSuccessAt = s.stats.LastHeartbeat
	}
	flushEvery := s.cfg.StatsFlushEveryN
	if flushEvery <= 0 {
		flushEvery = 10
	}
	if s.stats.TotalExecutions%flushEvery == 0 {
		if err := s.st.SaveSchedulerStats(s.stats); err != nil {
			s.log.Warn().Err(err).Msg("failed to flush scheduler stats")
		}
	}
}

// Stats returns a snapshot of the current in-memory SchedulerStats, used
// by the ops surface's health aggregation (spec §4.13).
func (s *Scheduler) Stats() store.SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// IsHealthy reports whether the last heartbeat is within the configured
// staleness threshold (spec §4.9: "if absent for HEARTBEAT_STALE_THRESHOLD_SECONDS
// ... the health aggregator marks the scheduler unhealthy").
func (s *Scheduler) IsHealthy(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats.LastHeartbeat.IsZero() {
		return false
	}
	stale := s.cfg.HeartbeatStaleSeconds
	if stale <= 0 {
		stale = 120
	}
	return now.Sub(s.stats.LastHeartbeat) < time.Duration(stale)*time.Second
}
