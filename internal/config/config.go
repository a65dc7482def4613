// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by Load when a key is absent.
const (
	DefaultPort         = 8585
	DefaultScanInterval = 6 * time.Hour
	DefaultDebounce     = 3 * time.Second
	DefaultSeekTime     = 10
	DefaultListenPort   = 6881
	DefaultYtdlpFormat  = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
)

// DefaultExtensions are the media file extensions indexed when none are configured.
var DefaultExtensions = []string{".mp4", ".mkv", ".avi", ".mov", ".webm"}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Library   LibraryConfig   `toml:"library"`
	Watcher   WatcherConfig   `toml:"watcher"`
	Downloads DownloadsConfig `toml:"downloads"`
	Player    PlayerConfig    `toml:"player"`
	Modules   ModulesConfig   `toml:"modules"`
	Transcode TranscodeConfig `toml:"transcode"`
}

type ServerConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	LogLevel string `toml:"log_level"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// AuthConfig enables HTTP Basic auth. Password may be plain text or a bcrypt hash.
type AuthConfig struct {
	Enabled  bool   `toml:"enabled"`
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type LibraryConfig struct {
	Sources        []Source      `toml:"sources"`
	Extensions     []string      `toml:"extensions"`
	ScanInterval   time.Duration `toml:"scan_interval"`
	ProtectedPaths []string      `toml:"protected_paths"`
}

// Source is a named library root.
type Source struct {
	ID    string `toml:"id" json:"id"`
	Label string `toml:"label" json:"label"`
	Path  string `toml:"path" json:"path"`
}

// Source returns the configured source with the given id.
func (l LibraryConfig) Source(id string) (Source, bool) {
	for _, s := range l.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

type WatcherConfig struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

type DownloadsConfig struct {
	Enabled           bool          `toml:"enabled"`
	TorrentStagingDir string        `toml:"torrent_staging_dir"`
	ListenPort        int           `toml:"listen_port"`
	YtdlpPath         string        `toml:"ytdlp_path"`
	YtdlpFormat       string        `toml:"ytdlp_format"`
	CorrelateWindow   time.Duration `toml:"correlate_window"`
}

type PlayerConfig struct {
	SeekTime int `toml:"seek_time"`
}

// ModulesConfig toggles optional feature areas.
type ModulesConfig struct {
	Torrents bool `toml:"torrents" json:"torrents"`
	Youtube  bool `toml:"youtube" json:"youtube"`
	Pastebin bool `toml:"pastebin" json:"pastebin"`
}

type TranscodeConfig struct {
	FFmpegPath string   `toml:"ffmpeg_path"`
	Extensions []string `toml:"extensions"`
	Mode       string   `toml:"mode"`
}

// Load reads and parses the configuration file.
// Returns *ConfigError for unresolved environment variables or validation failures.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	cfg, err := decode(content)
	if err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// LoadRaw parses the file with defaults applied but without environment
// substitution or validation. Used when the file will be rewritten.
func LoadRaw(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return decode(string(data))
}

func decode(content string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(content, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(&cfg, md)
	return &cfg, nil
}

func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/reelbox.db"
	}

	if len(cfg.Library.Extensions) == 0 {
		cfg.Library.Extensions = append([]string(nil), DefaultExtensions...)
	}
	cfg.Library.Extensions = NormalizeExtensions(cfg.Library.Extensions)
	if !md.IsDefined("library", "scan_interval") {
		cfg.Library.ScanInterval = DefaultScanInterval
	}
	for i := range cfg.Library.Sources {
		if cfg.Library.Sources[i].Label == "" {
			cfg.Library.Sources[i].Label = cfg.Library.Sources[i].ID
		}
	}

	if !md.IsDefined("watcher", "enabled") {
		cfg.Watcher.Enabled = true
	}
	if !md.IsDefined("watcher", "debounce") {
		cfg.Watcher.Debounce = DefaultDebounce
	}

	if !md.IsDefined("downloads", "enabled") {
		cfg.Downloads.Enabled = true
	}
	if cfg.Downloads.TorrentStagingDir == "" {
		cfg.Downloads.TorrentStagingDir = "./data/torrents"
	}
	if cfg.Downloads.ListenPort == 0 {
		cfg.Downloads.ListenPort = DefaultListenPort
	}
	if cfg.Downloads.YtdlpPath == "" {
		cfg.Downloads.YtdlpPath = "yt-dlp"
	}
	if cfg.Downloads.YtdlpFormat == "" {
		cfg.Downloads.YtdlpFormat = DefaultYtdlpFormat
	}
	if !md.IsDefined("downloads", "correlate_window") {
		cfg.Downloads.CorrelateWindow = 10 * time.Second
	}

	if cfg.Player.SeekTime == 0 {
		cfg.Player.SeekTime = DefaultSeekTime
	}

	if !md.IsDefined("modules", "torrents") {
		cfg.Modules.Torrents = true
	}
	if !md.IsDefined("modules", "youtube") {
		cfg.Modules.Youtube = true
	}
	if !md.IsDefined("modules", "pastebin") {
		cfg.Modules.Pastebin = true
	}

	if cfg.Transcode.FFmpegPath == "" {
		cfg.Transcode.FFmpegPath = "ffmpeg"
	}
	if len(cfg.Transcode.Extensions) == 0 {
		cfg.Transcode.Extensions = []string{".mkv", ".avi"}
	}
	cfg.Transcode.Extensions = NormalizeExtensions(cfg.Transcode.Extensions)
	if cfg.Transcode.Mode == "" {
		cfg.Transcode.Mode = "remux"
	}
}

// applyEnvOverrides lets container deployments set credentials without
// editing the file.
func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("REELBOX_AUTH_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Auth.Enabled = b
		}
	}
	if v := os.Getenv("REELBOX_USER"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("REELBOX_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}
}

// NormalizeExtensions lowercases extensions and ensures a leading dot.
// Duplicates and blanks are dropped; order is preserved.
func NormalizeExtensions(exts []string) []string {
	seen := make(map[string]bool, len(exts))
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR} with environment variable values.
// ${VAR:-default} falls back to default when VAR is unset or empty.
// Unresolved variables are left unchanged and returned in missing.
func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := m[1], m[2] != "", m[3]
		if value, ok := os.LookupEnv(name); ok && (value != "" || !hasDefault) {
			return value
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return match
	})
	return out, missing
}
