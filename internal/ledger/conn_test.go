package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/balancebook/internal/database"
)

func TestOpenLoadsCache(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.AddMethods(ctx, []string{"Cash", "Bank"}))
	_, err = d.Add(ctx, "2022-07-01", "", "Cash", "", "10", "Income", "Food")
	require.NoError(t, err)
	require.NoError(t, d.Close())

	// A fresh connection repopulates the cache in full.
	d, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	id, ok := d.Cache().MethodID("Bank")
	require.True(t, ok)
	require.NotZero(t, id)
	_, ok = d.Cache().TagID("food")
	require.True(t, ok)

	methods := d.Cache().Methods()
	require.Len(t, methods, 2)
	require.Equal(t, "Cash", methods[0].Name)
	require.Equal(t, "Bank", methods[1].Name)
}

func TestOpenNoUpgradeOnEmptyFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "old.db")

	// Simulate a pre-migration database: a file with none of the
	// normalized tables.
	raw, err := database.Open(path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE balance_all (id_num INTEGER PRIMARY KEY, Cash REAL)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	d, err := OpenNoUpgrade(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.Empty(t, d.Cache().Methods())
	ok, err := database.TableExists(d.db, "tx_methods")
	require.NoError(t, err)
	require.False(t, ok, "no schema upgrade must happen")
}

func TestTransactionRollbackLeavesCacheClean(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)

	require.NoError(t, d.AddMethods(ctx, []string{"Cash"}))

	// Force a failure after the tag insert inside the transaction: the
	// rollback must not leave the new tag behind, in the db or the cache.
	err := d.WithTx(func(c Conn) error {
		_, _, err := ensureTags(ctx, c, "Ephemeral")
		require.NoError(t, err)
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, ok := d.Cache().TagID("Ephemeral")
	require.False(t, ok)
	_, found, err := resolveTag(ctx, d, "Ephemeral")
	require.NoError(t, err)
	require.False(t, found)
}
