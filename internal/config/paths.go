package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appName = "preconsol"

// baseDir returns the directory named by env, or home joined with rel.
func baseDir(env string, rel ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, rel...)...)
}

// DefaultDBPath is preconsol.db under $XDG_DATA_HOME/preconsol.
func DefaultDBPath() string {
	return filepath.Join(baseDir("XDG_DATA_HOME", ".local", "share"), appName, appName+".db")
}

// DefaultConfigPath is config.toml under $XDG_CONFIG_HOME/preconsol.
func DefaultConfigPath() string {
	return filepath.Join(baseDir("XDG_CONFIG_HOME", ".config"), appName, "config.toml")
}

// ExpandPath expands environment variables and a leading ~ in p.
func ExpandPath(p string) (string, error) {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", p, err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// StorePath picks the estimate database. An explicit flag wins, then a
// non-empty [store] path, then the current value of the flag.
func StorePath(cfg StoreConfig, current string, flagSet bool) (string, error) {
	if flagSet || cfg.Path == nil || strings.TrimSpace(*cfg.Path) == "" {
		return ExpandPath(current)
	}
	return ExpandPath(*cfg.Path)
}
