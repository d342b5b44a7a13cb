package migration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/balancebook/internal/database"
	"github.com/jask/balancebook/internal/ledger"
	"github.com/jask/balancebook/internal/money"
)

func TestLegacyUpgrade(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "legacy.db")
	backupDir := filepath.Join(tmp, "backups")

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// A legacy database: wide balance table with one column per method,
	// flat transaction and activity tables.
	for _, stmt := range []string{
		`CREATE TABLE balance_all (id_num INTEGER PRIMARY KEY, Cash REAL, Bank REAL)`,
		`CREATE TABLE tx_all (date TEXT, details TEXT, tx_method TEXT, amount TEXT, tx_type TEXT, id_num INTEGER PRIMARY KEY, tags TEXT)`,
		`CREATE TABLE activities_all (date TEXT, activity_type TEXT, id_num INTEGER PRIMARY KEY)`,
		`CREATE TABLE activity_txs_all (date TEXT, details TEXT, tx_method TEXT, amount TEXT, tx_type TEXT, tags TEXT, activity_num INTEGER)`,
	} {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	legacyTxRows := [][]any{
		{"2022-07-01", "salary", "Cash", "1000.00", "Income", 1, "Salary"},
		{"2022-07-15", "rent", "Cash", "900.00", "Expense", 2, "House"},
		{"2022-08-01", "stash", "Cash to Bank", "50.00", "Transfer", 3, ""},
	}
	for _, r := range legacyTxRows {
		_, err := db.ExecContext(ctx,
			`INSERT INTO tx_all (date, details, tx_method, amount, tx_type, id_num, tags) VALUES (?, ?, ?, ?, ?, ?, ?)`, r...)
		require.NoError(t, err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO activities_all (date, activity_type, id_num) VALUES
		('2022-07-01', 'Add Transaction', 1),
		('2022-08-05', 'Position Swap', 2)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO activity_txs_all (date, details, tx_method, amount, tx_type, tags, activity_num) VALUES
		('2022-07-01', 'salary', 'Cash', '1000.00', 'Income', 'Salary', 1),
		('2022-08-05', 'first', 'Cash', '10.00', 'Income', '', 2),
		('2022-08-05', 'second', 'Cash', '20.00', 'Income', '', 2)`)
	require.NoError(t, err)

	needed, err := Needed(db)
	require.NoError(t, err)
	require.True(t, needed)

	require.NoError(t, database.RunMigrations(db))
	l, err := ledger.New(db)
	require.NoError(t, err)

	rep, err := Run(ctx, l, dbPath, backupDir)
	require.NoError(t, err)
	require.Equal(t, 2, rep.Methods)
	require.Equal(t, 3, rep.Transactions)
	require.Equal(t, 1, rep.Activities)
	require.Equal(t, 1, rep.SkippedActivities)

	_, err = os.Stat(rep.BackupPath)
	require.NoError(t, err)

	// Balances rebuilt through the regular mutation path.
	cash, err := l.FinalBalance(ctx, "Cash")
	require.NoError(t, err)
	require.Equal(t, money.Cent(5000), cash)
	bank, err := l.FinalBalance(ctx, "Bank")
	require.NoError(t, err)
	require.Equal(t, money.Cent(5000), bank)

	july, err := l.MonthBalance(ctx, "Cash", 2022, time.July)
	require.NoError(t, err)
	require.Equal(t, money.Cent(10000), july)
	august, err := l.MonthBalance(ctx, "Cash", 2022, time.August)
	require.NoError(t, err)
	require.Equal(t, money.Cent(5000), august)

	// Identity survives the replay.
	txs, err := l.Search(ctx, ledger.Filters{Kind: "Transfer"})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, int64(3), txs[0].ID)

	// Replayed history: the add activity came through with its tag, the
	// position swap (and its snapshot rows) did not.
	acts, err := l.Activities(ctx, 2022, time.July)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	require.Equal(t, ledger.ActivityAddTx, acts[0].Kind)
	require.Len(t, acts[0].Txs, 1)
	require.Len(t, acts[0].Txs[0].Tags, 1)
	swapMonth, err := l.Activities(ctx, 2022, time.August)
	require.NoError(t, err)
	require.Empty(t, swapMonth)

	// The legacy tables are gone.
	for _, name := range []string{"balance_all", "tx_all", "activities_all", "activity_txs_all"} {
		ok, err := database.TableExists(db, name)
		require.NoError(t, err)
		require.False(t, ok, name)
	}

	needed, err = Needed(db)
	require.NoError(t, err)
	require.False(t, needed)
}

func TestSplitLegacyMethod(t *testing.T) {
	t.Parallel()

	from, to := splitLegacyMethod("Cash to Bank")
	require.Equal(t, "Cash", from)
	require.Equal(t, "Bank", to)

	from, to = splitLegacyMethod("Cash")
	require.Equal(t, "Cash", from)
	require.Empty(t, to)
}
