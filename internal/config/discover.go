package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfigPath names the environment variable that overrides discovery.
const EnvConfigPath = "REELBOX_CONFIG"

// DefaultPath returns the XDG-compliant default config path.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./config.toml"
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "reelbox", "config.toml")
}

// Discover finds the config file using the standard search order:
//  1. REELBOX_CONFIG environment variable
//  2. ./config.toml
//  3. $XDG_CONFIG_HOME/reelbox/config.toml
//  4. /etc/reelbox/config.toml
func Discover() (string, error) {
	if envPath := os.Getenv(EnvConfigPath); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%s=%s: %w", EnvConfigPath, envPath, err)
		}
		return envPath, nil
	}

	paths := []string{
		"./config.toml",
		DefaultPath(),
		"/etc/reelbox/config.toml",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("config not found, checked: %s", strings.Join(paths, ", "))
}

// Resolve returns explicit when set, otherwise the discovered path.
// When nothing is found a default config is written to DefaultPath.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	path, err := Discover()
	if err == nil {
		return path, nil
	}
	if os.Getenv(EnvConfigPath) != "" {
		return "", err
	}
	path = DefaultPath()
	if werr := WriteDefault(path); werr != nil {
		return "", fmt.Errorf("%w; writing default: %v", err, werr)
	}
	return path, nil
}
