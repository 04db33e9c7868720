package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresBotToken(t *testing.T) {
	os.Unsetenv("BOT_TOKEN")
	_, err := Load("")
	require.Error(t, err)
}

func TestLoadDefaultsAndOverlay(t *testing.T) {
	t.Setenv("BOT_TOKEN", "xoxb-test")
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "features.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
features:
  timezone_aware: true
  image_generation: false
  special_days_mode: weekly
scheduler:
  daily_check_time: "08:30"
  timezone_check_interval_sec: 120
`), 0o644))

	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.True(t, cfg.Features.TimezoneAware)
	assert.False(t, cfg.Features.ImageGeneration)
	assert.Equal(t, "weekly", cfg.Features.SpecialDaysMode)
	assert.Equal(t, "08:30", cfg.Scheduler.DailyCheckTime)
	assert.Equal(t, 120, cfg.Scheduler.TimezoneCheckIntervalSec)
	assert.Equal(t, 5, cfg.RateLimits.MentionMaxRequests, "unset overlay block keeps defaults")
}

func TestLoadMissingYamlIsNotFatal(t *testing.T) {
	t.Setenv("BOT_TOKEN", "xoxb-test")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "09:00", cfg.Scheduler.DailyCheckTime)
}
