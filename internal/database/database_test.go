package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isdelr/tasks-be/internal/database"
	"github.com/isdelr/tasks-be/internal/database/dbtest"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertUser(ctx context.Context, db sqlx.ExecerContext, id, email string) error {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, created_at, updated_at) VALUES (?, ?, 'h', 'user', ?, ?)`,
		id, email, now, now)
	return err
}

func countUsers(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM users`))
	return n
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := database.New("oracle", "x")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := dbtest.New(t)
	require.NoError(t, database.Migrate(context.Background(), db))

	for _, table := range []string{"users", "tasks", "security_events"} {
		var n int
		require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM `+table))
		assert.Zero(t, n, table)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	require.NoError(t, insertUser(ctx, db, "u1", "a@example.com"))
	err := insertUser(ctx, db, "u2", "a@example.com")
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	assert.False(t, database.IsUniqueViolation(errors.New("boom")))
	assert.False(t, database.IsUniqueViolation(nil))
}

func TestForeignKeysEnforced(t *testing.T) {
	db := dbtest.New(t)
	now := time.Now().UTC()

	_, err := db.Exec(
		`INSERT INTO tasks (id, title, completed, user_id, created_at, updated_at) VALUES ('t1', 'x', FALSE, 'ghost', ?, ?)`,
		now, now)
	assert.Error(t, err)
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	db := dbtest.New(t)

	err := database.WithTx(context.Background(), db, nil, func(tx *sqlx.Tx) error {
		return insertUser(context.Background(), tx, "u1", "ok@example.com")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countUsers(t, db), "must commit on success")
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	db := dbtest.New(t)

	err := database.WithTx(context.Background(), db, nil, func(tx *sqlx.Tx) error {
		require.NoError(t, insertUser(context.Background(), tx, "u1", "fail@example.com"))
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countUsers(t, db), "must rollback when fn returns error")
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := dbtest.New(t)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		assert.Equal(t, 0, countUsers(t, db), "must rollback on panic")
	}()

	_ = database.WithTx(context.Background(), db, nil, func(tx *sqlx.Tx) error {
		require.NoError(t, insertUser(context.Background(), tx, "u1", "panic@example.com"))
		panic("kaput")
	})
}

func TestWithTx_CancelledContext(t *testing.T) {
	db := dbtest.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := database.WithTx(ctx, db, nil, func(tx *sqlx.Tx) error {
		return insertUser(ctx, tx, "u1", "gone@example.com")
	})
	require.Error(t, err)
	assert.Equal(t, 0, countUsers(t, db))
}
