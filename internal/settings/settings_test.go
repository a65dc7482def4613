package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/config"
)

type fixture struct {
	store  *Store
	movies string
	shows  string
}

func setup(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	movies := filepath.Join(root, "movies")
	shows := filepath.Join(root, "shows")
	require.NoError(t, os.MkdirAll(movies, 0o755))
	require.NoError(t, os.MkdirAll(shows, 0o755))

	path := filepath.Join(root, "config.toml")
	content := fmt.Sprintf(`
[player]
seek_time = 15

[[library.sources]]
id = "movies"
label = "Movies"
path = %q

[[library.sources]]
id = "shows"
label = "Shows"
path = %q
`, movies, shows)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return fixture{store: New(path, nil), movies: movies, shows: shows}
}

func TestStore_Get(t *testing.T) {
	f := setup(t)
	s, err := f.store.Get()
	require.NoError(t, err)
	require.Len(t, s.Sources, 2)
	assert.Equal(t, "movies", s.Sources[0].ID)
	assert.Equal(t, 15, s.SeekTime)
	assert.True(t, s.Downloads, "downloads default to enabled")
	assert.False(t, s.AuthEnabled)
}

func TestStore_UpsertSource_Add(t *testing.T) {
	f := setup(t)
	clips := filepath.Join(t.TempDir(), "clips")

	err := f.store.UpsertSource(config.Source{ID: "clips", Path: clips}, false)
	assert.ErrorIs(t, err, ErrValidation, "missing folder without create")

	require.NoError(t, f.store.UpsertSource(config.Source{ID: " clips ", Path: clips}, true))
	assert.DirExists(t, clips)

	cfg, err := config.Load(f.store.Path())
	require.NoError(t, err)
	src, ok := cfg.Library.Source("clips")
	require.True(t, ok)
	assert.Equal(t, "clips", src.Label, "label defaults to id")
	assert.Equal(t, clips, src.Path)
	assert.Equal(t, 15, cfg.Player.SeekTime, "other settings preserved")
}

func TestStore_UpsertSource_Replace(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.store.UpsertSource(config.Source{ID: "movies", Label: "Films", Path: f.movies}, false))

	s, err := f.store.Get()
	require.NoError(t, err)
	require.Len(t, s.Sources, 2)
	assert.Equal(t, "Films", s.Sources[0].Label)
}

func TestStore_UpsertSource_Invalid(t *testing.T) {
	f := setup(t)
	assert.ErrorIs(t, f.store.UpsertSource(config.Source{Path: f.movies}, false), ErrValidation)
	assert.ErrorIs(t, f.store.UpsertSource(config.Source{ID: "x"}, false), ErrValidation)
}

func TestStore_DeleteSource(t *testing.T) {
	f := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.shows, "a.mp4"), []byte("x"), 0o644))

	require.NoError(t, f.store.DeleteSource("shows", false))
	assert.DirExists(t, f.shows, "kept on disk")

	s, err := f.store.Get()
	require.NoError(t, err)
	require.Len(t, s.Sources, 1)

	err = f.store.DeleteSource("movies", false)
	assert.ErrorIs(t, err, ErrValidation, "last source cannot be removed")

	assert.ErrorIs(t, f.store.DeleteSource("nope", false), ErrNotFound)
}

func TestStore_DeleteSource_RemoveFromDisk(t *testing.T) {
	f := setup(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.shows, "a.mp4"), []byte("x"), 0o644))

	require.NoError(t, f.store.DeleteSource("shows", true))
	assert.NoDirExists(t, f.shows)
}

func TestStore_DeleteSource_Protected(t *testing.T) {
	f := setup(t)
	protected := New(f.store.Path(), []string{f.shows + "/"})

	err := protected.DeleteSource("shows", true)
	assert.ErrorIs(t, err, ErrValidation)
	assert.DirExists(t, f.shows)

	s, err := protected.Get()
	require.NoError(t, err)
	assert.Len(t, s.Sources, 2, "config untouched on failure")
}

func TestStore_UpdatePlayer(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.store.UpdatePlayer(30))
	s, err := f.store.Get()
	require.NoError(t, err)
	assert.Equal(t, 30, s.SeekTime)

	assert.ErrorIs(t, f.store.UpdatePlayer(0), ErrValidation)
	assert.ErrorIs(t, f.store.UpdatePlayer(601), ErrValidation)
	require.NoError(t, f.store.UpdatePlayer(600))
}
