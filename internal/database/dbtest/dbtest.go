// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/isdelr/tasks-be/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var seq atomic.Int64

// New returns a fresh, fully migrated database that is closed when t ends.
func New(t testing.TB) *sqlx.DB {
	t.Helper()

	name := fmt.Sprintf("file:tasks_test_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := database.New("sqlite", name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}
