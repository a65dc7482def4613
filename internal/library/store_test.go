package library

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_UpsertAndGet(t *testing.T) {
	store := NewStore(setupTestDB(t))
	v := newTestVideo("movies", "foo.mp4")

	require.NoError(t, store.UpsertVideo(v))
	got, err := store.GetVideo(v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.RelPath, got.RelPath)
	assert.Equal(t, v.Size, got.Size)

	v.Size = 42
	v.SourceLabel = "Films"
	require.NoError(t, store.UpsertVideo(v))
	got, err = store.GetVideo(v.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.Size)
	assert.Equal(t, "Films", got.SourceLabel)

	n, err := store.CountVideos()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_GetVideo_NotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))
	_, err := store.GetVideo("0000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListVideos_OrderAndProgress(t *testing.T) {
	store := NewStore(setupTestDB(t))

	b := newTestVideo("b", "z.mp4")
	a2 := newTestVideo("a", "y.mp4")
	a1 := newTestVideo("a", "x.mp4")
	for _, v := range []*Video{b, a2, a1} {
		require.NoError(t, store.UpsertVideo(v))
	}
	_, err := store.SetProgress(a2.ID, 12.5)
	require.NoError(t, err)

	entries, err := store.ListVideos()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{a1.ID, a2.ID, b.ID}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	assert.Zero(t, entries[0].PositionSeconds)
	assert.Nil(t, entries[0].ProgressUpdatedAt)
	assert.Equal(t, 12.5, entries[1].PositionSeconds)
	assert.NotNil(t, entries[1].ProgressUpdatedAt)
}

func TestStore_DeleteVideo_CascadesProgress(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	v := newTestVideo("movies", "foo.mp4")
	require.NoError(t, store.UpsertVideo(v))
	_, err := store.SetProgress(v.ID, 30)
	require.NoError(t, err)

	require.NoError(t, store.DeleteVideo(v.ID))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM progress`).Scan(&n))
	assert.Zero(t, n)

	assert.ErrorIs(t, store.DeleteVideo(v.ID), ErrNotFound)
}

func TestStore_SetProgress_ClampsNegative(t *testing.T) {
	store := NewStore(setupTestDB(t))
	v := newTestVideo("movies", "foo.mp4")
	require.NoError(t, store.UpsertVideo(v))

	p, err := store.SetProgress(v.ID, -5)
	require.NoError(t, err)
	assert.Zero(t, p.PositionSeconds)

	got, err := store.GetProgress(v.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PositionSeconds)
}

func TestStore_SetProgress_NonFiniteStoresZero(t *testing.T) {
	store := NewStore(setupTestDB(t))
	v := newTestVideo("movies", "foo.mp4")
	require.NoError(t, store.UpsertVideo(v))

	for _, seconds := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := store.SetProgress(v.ID, 42)
		require.NoError(t, err)

		p, err := store.SetProgress(v.ID, seconds)
		require.NoError(t, err, "seconds=%v", seconds)
		assert.Zero(t, p.PositionSeconds)

		got, err := store.GetProgress(v.ID)
		require.NoError(t, err)
		assert.Zero(t, got.PositionSeconds, "seconds=%v", seconds)
	}
}

func TestStore_SetProgress_UnknownVideo(t *testing.T) {
	store := NewStore(setupTestDB(t))
	_, err := store.SetProgress("0000000000000000", 1)
	assert.True(t, errors.Is(err, ErrConstraint), "got %v", err)
}

func TestTx_CopyProgressAndRollback(t *testing.T) {
	store := NewStore(setupTestDB(t))
	src := newTestVideo("movies", "a.mp4")
	require.NoError(t, store.UpsertVideo(src))
	_, err := store.SetProgress(src.ID, 99)
	require.NoError(t, err)

	dst := newTestVideo("movies", "b.mp4")

	tx, err := store.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.InsertVideo(dst))
	require.NoError(t, tx.CopyProgress(src.ID, dst.ID))
	require.NoError(t, tx.Rollback())

	_, err = store.GetVideo(dst.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	tx, err = store.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.InsertVideo(dst))
	require.NoError(t, tx.CopyProgress(src.ID, dst.ID))
	require.NoError(t, tx.Commit())

	p, err := store.GetProgress(dst.ID)
	require.NoError(t, err)
	assert.Equal(t, 99.0, p.PositionSeconds)
}

func TestTx_InsertVideo_Duplicate(t *testing.T) {
	store := NewStore(setupTestDB(t))
	v := newTestVideo("movies", "a.mp4")
	require.NoError(t, store.UpsertVideo(v))

	tx, err := store.Begin()
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	assert.ErrorIs(t, tx.InsertVideo(v), ErrDuplicate)
}

func TestErrors_AreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNotFound, ErrDuplicate))
	assert.False(t, errors.Is(ErrNotFound, ErrConstraint))
	assert.False(t, errors.Is(ErrValidation, ErrConstraint))
}
