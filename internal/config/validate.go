package config

import (
	"fmt"
	"os"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true, "": true,
}

var validTranscodeModes = map[string]bool{
	"remux": true, "encode": true, "": true,
}

// Seek time bounds in seconds.
const (
	MinSeekTime = 1
	MaxSeekTime = 600
)

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if c.Server.Port != 0 && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port: must be between 1 and 65535, got %d", c.Server.Port))
	}
	if !validLogLevels[c.Server.LogLevel] {
		errs = append(errs, fmt.Sprintf("server.log_level: must be one of debug, info, warn, error; got %q", c.Server.LogLevel))
	}

	if c.Auth.Enabled && (c.Auth.Username == "" || c.Auth.Password == "") {
		errs = append(errs, "auth: username and password required when enabled")
	}

	ids := make(map[string]bool)
	for i, s := range c.Library.Sources {
		if s.ID == "" {
			errs = append(errs, fmt.Sprintf("library.sources[%d].id: required", i))
		} else if ids[s.ID] {
			errs = append(errs, fmt.Sprintf("library.sources[%d].id: duplicate %q", i, s.ID))
		}
		ids[s.ID] = true
		if s.Path == "" {
			errs = append(errs, fmt.Sprintf("library.sources[%d].path: required", i))
		}
	}
	if c.Library.ScanInterval < 0 {
		errs = append(errs, "library.scan_interval: must not be negative")
	}
	if c.Watcher.Debounce < 0 {
		errs = append(errs, "watcher.debounce: must not be negative")
	}

	if c.Player.SeekTime != 0 && (c.Player.SeekTime < MinSeekTime || c.Player.SeekTime > MaxSeekTime) {
		errs = append(errs, fmt.Sprintf("player.seek_time: must be between %d and %d, got %d", MinSeekTime, MaxSeekTime, c.Player.SeekTime))
	}

	if c.Downloads.ListenPort < 0 || c.Downloads.ListenPort > 65535 {
		errs = append(errs, fmt.Sprintf("downloads.listen_port: must be between 0 and 65535, got %d", c.Downloads.ListenPort))
	}

	if !validTranscodeModes[c.Transcode.Mode] {
		errs = append(errs, fmt.Sprintf("transcode.mode: must be remux or encode; got %q", c.Transcode.Mode))
	}

	return errs
}

// Warnings returns non-fatal problems such as source roots that do not exist yet.
func (c *Config) Warnings() []string {
	var warns []string
	for _, s := range c.Library.Sources {
		if s.Path == "" {
			continue
		}
		if _, err := os.Stat(s.Path); os.IsNotExist(err) {
			warns = append(warns, fmt.Sprintf("library source %q: directory %q does not exist", s.ID, s.Path))
		}
	}
	return warns
}

// ConfigError aggregates configuration errors.
type ConfigError struct {
	Path    string   // Config file path
	Missing []string // Unresolved environment variables
	Errors  []string // Validation errors
}

func (e *ConfigError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing environment variables: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Errors) > 0 {
		parts = append(parts, "validation failed:")
		for _, err := range e.Errors {
			parts = append(parts, "  - "+err)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return e.Path + ": " + strings.Join(parts, "\n")
}

// HasErrors returns true if there are any errors.
func (e *ConfigError) HasErrors() bool {
	return len(e.Missing) > 0 || len(e.Errors) > 0
}
