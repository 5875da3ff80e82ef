// Package paths resolves user-facing file locations.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "omniedit"

// ExpandHome replaces a leading "~" with the user's home directory. Paths
// without one, and paths when the home directory is unknown, are returned
// cleaned but otherwise unchanged.
func ExpandHome(path string) string {
	if path == "" {
		return ""
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return filepath.Clean(path)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ConfigDir is the per-user configuration directory, ~/.config/omniedit.
func ConfigDir() string {
	return ExpandHome(filepath.Join("~", ".config", appDir))
}

// DataDir is the per-user data directory, ~/.omniedit.
func DataDir() string {
	return ExpandHome(filepath.Join("~", "."+appDir))
}

// ProjectDir is the per-project directory, .omniedit under dir.
func ProjectDir(dir string) string {
	return filepath.Join(dir, "."+appDir)
}
