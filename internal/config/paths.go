package config

import (
	"os"
	"path/filepath"
)

// Paths contains the on-disk locations used by chartfeed.
type Paths struct {
	Home   string // ~/.chartfeed
	Config string // Default YAML configuration file
	Logs   string // Logs directory
}

// GetHome returns the chartfeed home directory.
func GetHome() string {
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".chartfeed")
}

// GetPaths returns the default layout under GetHome.
func GetPaths() Paths {
	home := GetHome()
	return Paths{
		Home:   home,
		Config: filepath.Join(home, "config.yaml"),
		Logs:   filepath.Join(home, "logs"),
	}
}

// ExpandPath expands ~ to the user home directory.
func ExpandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) == 1 {
			return home
		}
		if path[1] == '/' || path[1] == os.PathSeparator {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// EnsureDirs creates the home and logs directories if they do not exist.
func EnsureDirs() (Paths, error) {
	paths := GetPaths()
	for _, dir := range []string{paths.Home, paths.Logs} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return paths, err
		}
	}
	return paths, nil
}
