// Package calibration implements the persisted axis-calibration overlay on
// top of a kinematic tree: a joint_name -> partial-params map, stored as
// JSON, that is merged onto a freshly loaded tree's declared values.
package calibration

import (
	"os"
	"path/filepath"
)

// dirName and fileName name the persisted overrides file, resolved under
// XDG_CONFIG_HOME (or HOME/.config as a fallback).
const (
	dirName  = "webkin"
	fileName = "axis_overrides.json"
)

// DefaultPath resolves the overrides file location: $XDG_CONFIG_HOME/webkin
// if set, otherwise $HOME/.config/webkin.
func DefaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, dirName, fileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", dirName, fileName)
}
