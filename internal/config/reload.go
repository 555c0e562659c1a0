package config

import (
	"github.com/smazurov/viewstream/internal/logging"
)

// Reloadable is everything applied on a config.toml change without a restart.
type Reloadable struct {
	Logging logging.Config
	Motion  MotionOptions
}

// LoadReloadable reads the reloadable sections of path.
func LoadReloadable(path string) (Reloadable, error) {
	var r Reloadable
	var err error
	if r.Logging, err = LoadLoggingConfig(path); err != nil {
		return r, err
	}
	if r.Motion, err = LoadMotionOptions(path); err != nil {
		return r, err
	}
	return r, nil
}
