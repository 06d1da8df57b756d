package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"

	"EchoFM/logger"
)

// Settings are the runtime-adjustable knobs of the cache, persisted next to
// the cache directory so they survive restarts.
type Settings struct {
	RetentionDays int  `json:"retention_days"`
	Enabled       bool `json:"enabled"`
}

// normalize clamps the settings into their valid ranges.
func (s Settings) normalize() Settings {
	if s.RetentionDays < 1 {
		s.RetentionDays = 1
	}
	if s.RetentionDays > 365 {
		s.RetentionDays = 365
	}
	return s
}

// loadSettings reads the settings file, falling back to defaults when the
// file is missing or unreadable.
func loadSettings(path string, defaults Settings) Settings {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults.normalize()
	}
	s := defaults
	if err := json.Unmarshal(data, &s); err != nil {
		logger.Warn("cache settings file unreadable, using defaults",
			logger.String("path", path),
			logger.ErrorField(err))
		return defaults.normalize()
	}
	return s.normalize()
}

// saveSettings writes the settings file.
func saveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
