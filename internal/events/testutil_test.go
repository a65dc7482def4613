package events

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vmunix/reelbox/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := migrations.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type testEvent struct {
	BaseEvent
	Message string `json:"message"`
}
