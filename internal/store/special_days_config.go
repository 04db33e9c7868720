package store

const specialDaysConfigFile = "special_days_config.json"

// SpecialDaysMode selects the observance-emission cadence (spec §4.9).
type SpecialDaysMode string

const (
	ModeDaily  SpecialDaysMode = "daily"
	ModeWeekly SpecialDaysMode = "weekly"
)

// SpecialDaysConfig mirrors storage/special_days_config.json.
type SpecialDaysConfig struct {
	CategoryEnabled map[string]bool `json:"category_enabled"`
	Mode            SpecialDaysMode `json:"mode"`
	WeeklyDay       int             `json:"weekly_day"` // 0=Sunday .. 6=Saturday
}

// DefaultSpecialDaysConfig enables every category from spec §3.
func DefaultSpecialDaysConfig() SpecialDaysConfig {
	return SpecialDaysConfig{
		CategoryEnabled: map[string]bool{
			"Global Health": true,
			"Tech":          true,
			"Culture":       true,
			"Company":       true,
		},
		Mode:      ModeDaily,
		WeeklyDay: 1,
	}
}

// LoadSpecialDaysConfig reads the config, falling back to defaults.
func (s *Store) LoadSpecialDaysConfig() (SpecialDaysConfig, error) {
	cfg := DefaultSpecialDaysConfig()
	found, err := s.ReadJSON(specialDaysConfigFile, &cfg)
	if err != nil {
		return SpecialDaysConfig{}, err
	}
	if !found {
		return cfg, nil
	}
	if cfg.CategoryEnabled == nil {
		cfg.CategoryEnabled = DefaultSpecialDaysConfig().CategoryEnabled
	}
	return cfg, nil
}

// SaveSpecialDaysConfig persists the config.
func (s *Store) SaveSpecialDaysConfig(cfg SpecialDaysConfig) error {
	return s.WriteJSON(specialDaysConfigFile, cfg)
}
