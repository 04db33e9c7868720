// Package ops implements the ops surface (spec §4.13): an on-demand
// aggregation of everything an operator needs to know about the
// process's health, plus admin export commands recovered from
// utils/health.py and the admin export paths in original_source/.
//
// Grounded on utils/health.py's check_directory/check_environment/
// get_system_status shape: status codes per concern rather than one
// boolean, environment variables reported present/absent without ever
// echoing a value, and a compact human summary derived from the same
// structure the JSON form uses.
package ops

import (
	"fmt"
	"os"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/config"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/observance"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/scheduler"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// DirectoryStatus reports one storage-relevant directory's health.
type DirectoryStatus struct {
	Path     string `json:"path"`
	Exists   bool   `json:"exists"`
	Writable bool   `json:"writable"`
}

// EnvVarStatus reports presence only — values are never surfaced.
type EnvVarStatus struct {
	Name string `json:"name"`
	Set  bool   `json:"set"`
}

// ObservanceStatus mirrors one source's observance.Status, named.
type ObservanceStatus struct {
	Source           string    `json:"source"`
	Enabled          bool      `json:"enabled"`
	CacheFresh       bool      `json:"cache_fresh"`
	ObservationCount int       `json:"observation_count"`
	LastUpdated      time.Time `json:"last_updated"`
}

// LogFileStatus reports a log file's size, for rotation visibility.
type LogFileStatus struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

// SchedulerStatus folds the scheduler's health check and flushed stats.
type SchedulerStatus struct {
	Healthy bool                 `json:"healthy"`
	Stats   store.SchedulerStats `json:"stats"`
}

// SystemStatus is the full on-demand snapshot (spec §4.13).
type SystemStatus struct {
	GeneratedAt     time.Time          `json:"generated_at"`
	Directories     []DirectoryStatus  `json:"directories"`
	EnvVars         []EnvVarStatus     `json:"env_vars"`
	BirthdayCount   int                `json:"birthday_count"`
	ActiveCount     int                `json:"active_birthday_count"`
	AdminCount      int                `json:"admin_count"`
	Scheduler       SchedulerStatus    `json:"scheduler"`
	Observance      []ObservanceStatus `json:"observance"`
	Features        config.FeatureToggles `json:"features"`
	LogFiles        []LogFileStatus    `json:"log_files"`
}

// requiredEnvVars mirrors check_environment()'s required set, extended
// with this system's own required secrets (spec §6).
var requiredEnvVars = []string{
	"BOT_TOKEN", "APP_TOKEN", "LLM_API_KEY", "IMAGE_MODEL",
	"CALENDARIFIC_KEY", "CALENDARIFIC_COUNTRY", "CALENDARIFIC_REGION",
	"CELEBRATION_CHANNEL", "OPS_CHANNEL",
}

// Builder aggregates a SystemStatus from the components that own each
// piece of state.
type Builder struct {
	cfg        config.Config
	st         *store.Store
	sched      *scheduler.Scheduler
	aggregator *observance.Aggregator
}

// NewBuilder constructs a Builder. aggregator may be nil when the
// special-days feature is disabled.
func NewBuilder(cfg config.Config, st *store.Store, sched *scheduler.Scheduler, aggregator *observance.Aggregator) *Builder {
	return &Builder{cfg: cfg, st: st, sched: sched, aggregator: aggregator}
}

// Build assembles the full snapshot as of now.
func (b *Builder) Build(now time.Time) (SystemStatus, error) {
	status := SystemStatus{
		GeneratedAt: now,
		Features:    b.cfg.Features,
	}

	for _, dir := range []string{b.cfg.StorageDir, b.cfg.CacheDir, b.cfg.BackupDir} {
		status.Directories = append(status.Directories, checkDirectory(dir))
	}

	for _, name := range requiredEnvVars {
		_, set := os.LookupEnv(name)
		status.EnvVars = append(status.EnvVars, EnvVarStatus{Name: name, Set: set})
	}

	birthdays, err := b.st.LoadBirthdays()
	if err != nil {
		return status, err
	}
	status.BirthdayCount = len(birthdays)
	for _, rec := range birthdays {
		if rec.Preferences.Active {
			status.ActiveCount++
		}
	}

	admins, err := b.st.LoadAdmins()
	if err != nil {
		return status, err
	}
	status.AdminCount = len(admins)

	if b.sched != nil {
		status.Scheduler = SchedulerStatus{
			Healthy: b.sched.IsHealthy(now),
			Stats:   b.sched.Stats(),
		}
	}

	if b.aggregator != nil {
		for _, src := range b.aggregator.Sources() {
			st := src.Status()
			status.Observance = append(status.Observance, ObservanceStatus{
				Source: string(src.Name()), Enabled: st.Enabled, CacheFresh: st.CacheFresh,
				ObservationCount: st.ObservationCount, LastUpdated: st.LastUpdated,
			})
		}
	}

	if b.cfg.LogFile != "" {
		if info, err := os.Stat(b.cfg.LogFile); err == nil {
			status.LogFiles = append(status.LogFiles, LogFileStatus{Path: b.cfg.LogFile, SizeBytes: info.Size()})
		}
	}

	return status, nil
}

// checkDirectory mirrors utils/health.py's check_directory: existence
// plus read/write access, collapsed to two booleans rather than a
// status-code string (this module's SystemStatus is typed, not
// string-coded).
func checkDirectory(path string) DirectoryStatus {
	info, err := os.Stat(path)
	if err != nil {
		return DirectoryStatus{Path: path, Exists: false, Writable: false}
	}
	if !info.IsDir() {
		return DirectoryStatus{Path: path, Exists: true, Writable: false}
	}
	probe := path + "/.ops_write_probe"
	f, err := os.Create(probe)
	if err != nil {
		return DirectoryStatus{Path: path, Exists: true, Writable: false}
	}
	f.Close()
	os.Remove(probe)
	return DirectoryStatus{Path: path, Exists: true, Writable: true}
}

// Summary renders a compact human-readable status, the shape a `/ops
// status` slash command reply would use (spec §4.13: "Exposes both a
// full JSON form and a compact human summary").
func Summary(status SystemStatus) string {
	healthLabel := "unhealthy"
	if status.Scheduler.Healthy {
		healthLabel = "healthy"
	}
	s := fmt.Sprintf("Status as of %s\n", status.GeneratedAt.Format(time.RFC3339))
	s += fmt.Sprintf("Scheduler: %s (executions=%d failed=%d last_success=%s)\n",
		healthLabel, status.Scheduler.Stats.TotalExecutions, status.Scheduler.Stats.FailedExecutions,
		status.Scheduler.Stats.LastSuccessAt.Format(time.RFC3339))
	s += fmt.Sprintf("Birthdays: %d on file, %d active\n", status.BirthdayCount, status.ActiveCount)
	s += fmt.Sprintf("Admins: %d\n", status.AdminCount)

	missing := 0
	for _, e := range status.EnvVars {
		if !e.Set {
			missing++
		}
	}
	s += fmt.Sprintf("Environment: %d/%d required variables set\n", len(status.EnvVars)-missing, len(status.EnvVars))

	for _, d := range status.Directories {
		state := "ok"
		if !d.Exists {
			state = "missing"
		} else if !d.Writable {
			state = "not writable"
		}
		s += fmt.Sprintf("Directory %s: %s\n", d.Path, state)
	}

	for _, o := range status.Observance {
		freshness := "stale"
		if o.CacheFresh {
			freshness = "fresh"
		}
		s += fmt.Sprintf("Observance %s: enabled=%v %s, %d cached\n", o.Source, o.Enabled, freshness, o.ObservationCount)
	}

	return s
}
