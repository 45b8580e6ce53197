package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_AppliesOnce(t *testing.T) {
	database, err := NewSqliteDB(WithMaxOpenConns(1))
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()

	migrations := []Migration{
		{Version: 2, Name: "add note", SQL: "ALTER TABLE items ADD COLUMN note TEXT NOT NULL DEFAULT ''"},
		{Version: 1, Name: "items", SQL: "CREATE TABLE items (id INTEGER PRIMARY KEY)"},
	}
	require.NoError(t, Migrate(ctx, database, "items", migrations))
	// a second run is a no-op, re-running v1 would fail on the existing table
	require.NoError(t, Migrate(ctx, database, "items", migrations))

	_, err = database.Exec("INSERT INTO items (id, note) VALUES (1, 'x')")
	require.NoError(t, err)

	var versions []int
	require.NoError(t, database.Select(&versions, "SELECT version FROM schema_migrations WHERE component = 'items' ORDER BY version"))
	assert.Equal(t, []int{1, 2}, versions)
}

func TestMigrate_FailedStepIsNotRecorded(t *testing.T) {
	database, err := NewSqliteDB(WithMaxOpenConns(1))
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()

	err = Migrate(ctx, database, "broken", []Migration{
		{Version: 1, Name: "bad", SQL: "CREATE TABLE"},
	})
	require.Error(t, err)

	var n int
	require.NoError(t, database.Get(&n, "SELECT COUNT(*) FROM schema_migrations WHERE component = 'broken'"))
	assert.Zero(t, n)
}
