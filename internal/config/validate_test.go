package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidate_MinimalValid(t *testing.T) {
	cfg := &Config{}
	assert.Empty(t, cfg.Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 99999}}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "server.port"), "expected port error, got %v", errs)
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := &Config{Server: ServerConfig{LogLevel: "verbose"}}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "log_level"), "expected log_level error, got %v", errs)
}

func TestValidate_Sources(t *testing.T) {
	cfg := &Config{Library: LibraryConfig{Sources: []Source{
		{ID: "a", Path: "/a"},
		{ID: "a", Path: "/b"},
		{ID: "", Path: ""},
	}}}
	errs := cfg.Validate()
	assert.True(t, containsError(errs, "duplicate \"a\""), "got %v", errs)
	assert.True(t, containsError(errs, "library.sources[2].id: required"), "got %v", errs)
	assert.True(t, containsError(errs, "library.sources[2].path: required"), "got %v", errs)
}

func TestValidate_SeekTime(t *testing.T) {
	for _, v := range []int{-1, 601} {
		cfg := &Config{Player: PlayerConfig{SeekTime: v}}
		assert.True(t, containsError(cfg.Validate(), "player.seek_time"), "seek_time %d", v)
	}
	cfg := &Config{Player: PlayerConfig{SeekTime: 600}}
	assert.Empty(t, cfg.Validate())
}

func TestValidate_AuthRequiresCredentials(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Enabled: true, Username: "admin"}}
	assert.True(t, containsError(cfg.Validate(), "auth"))
}

func TestValidate_TranscodeMode(t *testing.T) {
	cfg := &Config{Transcode: TranscodeConfig{Mode: "gpu"}}
	assert.True(t, containsError(cfg.Validate(), "transcode.mode"))
}

func TestWarnings_MissingSourceDir(t *testing.T) {
	tmp := t.TempDir()
	cfg := &Config{Library: LibraryConfig{Sources: []Source{
		{ID: "ok", Path: tmp},
		{ID: "gone", Path: tmp + "/does-not-exist"},
	}}}
	warns := cfg.Warnings()
	assert.Len(t, warns, 1)
	assert.Contains(t, warns[0], "gone")

	_, err := os.Stat(tmp)
	assert.NoError(t, err)
}

func TestConfigError_Error(t *testing.T) {
	assert.Equal(t, "", (&ConfigError{Path: "/etc/reelbox/config.toml"}).Error())

	e := &ConfigError{
		Path:    "/etc/reelbox/config.toml",
		Missing: []string{"API_KEY", "SECRET"},
		Errors:  []string{"server.port: bad"},
	}
	got := e.Error()
	assert.Contains(t, got, "missing environment variables: API_KEY, SECRET")
	assert.Contains(t, got, "  - server.port: bad")
	assert.True(t, e.HasErrors())
}
