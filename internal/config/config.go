// Package config loads environment secrets and YAML feature toggles,
// mirroring the nested-struct shape the teacher bridge uses for its
// network config (one struct per concern, pointers for optional blocks).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
)

// Config is the merged runtime configuration: secrets from the
// environment, everything else from an optional YAML feature file.
type Config struct {
	// Platform credentials (§6 environment variables).
	BotToken string
	AppToken string

	// LLM / image providers.
	LLMAPIKey   string
	TextModel   string
	ImageModel  string

	// Observance sources.
	CalendarificKey    string
	CalendarificCountry string
	CalendarificRegion  string

	// Directory layout.
	StorageDir string
	CacheDir   string
	BackupDir  string
	LogFile    string
	LogFormat  string

	// Destination channels (§6 environment variables).
	CelebrationChannel string
	OpsChannel         string

	Features   FeatureToggles `yaml:"features"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	TTLs       TTLConfig       `yaml:"ttls"`
}

// FeatureToggles mirrors §6's "feature toggles" environment variables,
// collected into one struct rather than scattered booleans.
type FeatureToggles struct {
	TimezoneAware     bool `yaml:"timezone_aware"`
	ImageGeneration   bool `yaml:"image_generation"`
	NLPDateParsing    bool `yaml:"nlp_date_parsing"`
	ThreadEngagement  bool `yaml:"thread_engagement"`
	MentionQA         bool `yaml:"mention_qa"`
	SpecialDaysMode   string `yaml:"special_days_mode"` // "daily" | "weekly"
	CanvasDashboard   bool `yaml:"canvas_dashboard"`
	ExternalBackup    bool `yaml:"external_backup"`
}

// SchedulerConfig captures the scheduler's configurable times (§4.9).
type SchedulerConfig struct {
	DailyCheckTime          string `yaml:"daily_check_time"`           // "HH:MM" server-local
	TimezoneCheckIntervalSec int   `yaml:"timezone_check_interval_sec"` // default 60
	TimezoneCelebrationTime string `yaml:"timezone_celebration_time"`  // default "09:00"
	RefreshCheckTime        string `yaml:"refresh_check_time"`         // early-morning cache refresh
	HeartbeatStaleSeconds   int    `yaml:"heartbeat_stale_seconds"`    // default 120
	StatsFlushEveryN        int    `yaml:"stats_flush_every_n"`        // default 10
	WeeklyDigestWeekday     int    `yaml:"weekly_digest_weekday"`      // 0=Sunday
}

// RateLimitConfig captures the mention-handler token bucket (§4.11).
type RateLimitConfig struct {
	MentionWindowSeconds int `yaml:"mention_window_seconds"` // default 60
	MentionMaxRequests   int `yaml:"mention_max_requests"`   // default 5
}

// TTLConfig captures cross-component TTLs.
type TTLConfig struct {
	ProfileCacheTTL       time.Duration `yaml:"profile_cache_ttl"`
	ThreadReactionTTL     time.Duration `yaml:"thread_reaction_ttl"`
	ThreadTrackingTTLDays int           `yaml:"thread_tracking_ttl_days"`
	UNSourceTTLDays       int           `yaml:"un_source_ttl_days"`
	UNESCOSourceTTLDays   int           `yaml:"unesco_source_ttl_days"`
	WHOSourceTTLDays      int           `yaml:"who_source_ttl_days"`
}

// Default returns the zero-value-safe defaults named throughout spec.md.
func Default() Config {
	return Config{
		StorageDir: "storage",
		CacheDir:   "cache",
		BackupDir:  "backups",
		LogFormat:  "console",
		TextModel:  "gpt-4o-mini",
		Features: FeatureToggles{
			TimezoneAware:    false,
			ImageGeneration:  true,
			NLPDateParsing:   true,
			ThreadEngagement: true,
			MentionQA:        true,
			SpecialDaysMode:  "daily",
			CanvasDashboard:  true,
		},
		Scheduler: SchedulerConfig{
			DailyCheckTime:           "09:00",
			TimezoneCheckIntervalSec: 60,
			TimezoneCelebrationTime:  "09:00",
			RefreshCheckTime:         "03:00",
			HeartbeatStaleSeconds:    120,
			StatsFlushEveryN:         10,
			WeeklyDigestWeekday:      1, // Monday
		},
		RateLimits: RateLimitConfig{
			MentionWindowSeconds: 60,
			MentionMaxRequests:   5,
		},
		TTLs: TTLConfig{
			ProfileCacheTTL:       24 * time.Hour,
			ThreadReactionTTL:     24 * time.Hour,
			ThreadTrackingTTLDays: 7,
			UNSourceTTLDays:       7,
			UNESCOSourceTTLDays:   30,
			WHOSourceTTLDays:      30,
		},
	}
}

// Load builds a Config from the environment plus an optional YAML feature
// file at path (ignored if empty or missing).
func Load(path string) (Config, error) {
	cfg := Default()

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	cfg.AppToken = os.Getenv("APP_TOKEN")
	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	cfg.TextModel = envOr("TEXT_MODEL", "gpt-4o-mini")
	cfg.ImageModel = envOr("IMAGE_MODEL", "gpt-image-1")
	cfg.CalendarificKey = os.Getenv("CALENDARIFIC_KEY")
	cfg.CalendarificCountry = envOr("CALENDARIFIC_COUNTRY", "CH")
	cfg.CalendarificRegion = os.Getenv("CALENDARIFIC_REGION")
	cfg.StorageDir = envOr("STORAGE_DIR", cfg.StorageDir)
	cfg.CacheDir = envOr("CACHE_DIR", cfg.CacheDir)
	cfg.BackupDir = envOr("BACKUP_DIR", cfg.BackupDir)
	cfg.LogFile = os.Getenv("LOG_FILE")
	cfg.LogFormat = envOr("LOG_FORMAT", cfg.LogFormat)
	cfg.CelebrationChannel = os.Getenv("CELEBRATION_CHANNEL")
	cfg.OpsChannel = os.Getenv("OPS_CHANNEL")

	if b, err := envBool("FEATURE_EXTERNAL_BACKUP"); err == nil {
		cfg.Features.ExternalBackup = b
	}
	if b, err := envBool("FEATURE_TIMEZONE_AWARE"); err == nil {
		cfg.Features.TimezoneAware = b
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var overlay struct {
				Features   FeatureToggles  `yaml:"features"`
				Scheduler  SchedulerConfig `yaml:"scheduler"`
				RateLimits RateLimitConfig `yaml:"rate_limits"`
				TTLs       TTLConfig       `yaml:"ttls"`
			}
			overlay.Features = cfg.Features
			overlay.Scheduler = cfg.Scheduler
			overlay.RateLimits = cfg.RateLimits
			overlay.TTLs = cfg.TTLs
			if err := yaml.Unmarshal(data, &overlay); err != nil {
				return cfg, errs.Wrap(errs.Fatal, "parse config yaml", err)
			}
			mergeNonZero(&cfg, overlay)
		} else if !os.IsNotExist(err) {
			return cfg, errs.Wrap(errs.Fatal, "read config yaml", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func mergeNonZero(cfg *Config, overlay struct {
	Features   FeatureToggles  `yaml:"features"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	RateLimits RateLimitConfig `yaml:"rate_limits"`
	TTLs       TTLConfig       `yaml:"ttls"`
}) {
	// Field-level overlay: Load pre-fills overlay with the current values
	// before decoding the YAML into it, so any key present in the file
	// wins (booleans included) and any key absent keeps its default,
	// matching the teacher's pointer-block yaml merge idiom without
	// needing pointer-typed leaf fields here.
	cfg.Features = overlay.Features
	if overlay.Scheduler.DailyCheckTime != "" {
		cfg.Scheduler = overlay.Scheduler
	}
	if overlay.RateLimits.MentionMaxRequests != 0 {
		cfg.RateLimits = overlay.RateLimits
	}
	if overlay.TTLs.ThreadTrackingTTLDays != 0 {
		cfg.TTLs = overlay.TTLs
	}
}

// Validate enforces required secrets are present; missing ones are Fatal
// per §7 (corrupt/unusable state, manual intervention required).
func (c Config) Validate() error {
	if c.BotToken == "" {
		return errs.New(errs.Fatal, "BOT_TOKEN is required")
	}
	if c.Scheduler.HeartbeatStaleSeconds <= 0 {
		return errs.New(errs.Fatal, "scheduler.heartbeat_stale_seconds must be positive")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return false, fmt.Errorf("unset")
	}
	return strconv.ParseBool(v)
}
