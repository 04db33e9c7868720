package store

import "time"

const schedulerStatsFile = "scheduler_stats.json"

// SchedulerStats mirrors spec §3's SchedulerStats entity.
type SchedulerStats struct {
	StartedAt       time.Time `json:"started_at"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	TotalExecutions int       `json:"total_executions"`
	FailedExecutions int      `json:"failed_executions"`
	LastSuccessAt   time.Time `json:"last_success_at"`
	LastError       string    `json:"last_error"`
}

// LoadSchedulerStats reads the persisted stats, defaulting StartedAt to
// now if the file doesn't exist yet.
func (s *Store) LoadSchedulerStats(now time.Time) (SchedulerStats, error) {
	var st SchedulerStats
	found, err := s.ReadJSON(schedulerStatsFile, &st)
	if err != nil {
		return SchedulerStats{}, err
	}
	if !found {
		st.StartedAt = now
	}
	return st, nil
}

// SaveSchedulerStats flushes stats to disk (spec §4.9: "flushes every N iterations").
func (s *Store) SaveSchedulerStats(st SchedulerStats) error {
	return s.WriteJSON(schedulerStatsFile, st)
}
