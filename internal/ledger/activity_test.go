package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/balancebook/internal/database"
)

func currentActivities(t *testing.T, d *DB) []Activity {
	t.Helper()
	now := database.Now()
	acts, err := d.Activities(context.Background(), now.Year(), now.Month())
	require.NoError(t, err)
	return acts
}

func TestAddLogsActivity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)

	require.NoError(t, d.AddMethods(ctx, []string{"Cash"}))
	tx, err := d.Add(ctx, "2022-07-01", "salary", "Cash", "", "1000.00", "Income", "Salary")
	require.NoError(t, err)

	acts := currentActivities(t, d)
	require.Len(t, acts, 1)
	require.Equal(t, ActivityAddTx, acts[0].Kind)
	require.Len(t, acts[0].Txs, 1)

	snap := acts[0].Txs[0]
	require.Equal(t, "2022-07-01", snap.Date)
	require.Equal(t, "Cash", snap.FromMethod)
	require.Equal(t, "1000.00", snap.Amount)
	require.Equal(t, "Income", snap.Kind)
	require.Equal(t, tx.ID, snap.TxID)
	require.Len(t, snap.Tags, 1)
	require.Equal(t, "Salary", snap.Tags[0].Name)
}

func TestEditLogsTwoSnapshotsNewFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)

	require.NoError(t, d.AddMethods(ctx, []string{"Cash"}))
	old, err := d.Add(ctx, "2022-07-01", "rent", "Cash", "", "900.00", "Expense", "")
	require.NoError(t, err)
	_, err = d.Edit(ctx, old, "2022-07-01", "rent", "Cash", "", "950.00", "Expense", "")
	require.NoError(t, err)

	acts := currentActivities(t, d)
	require.Len(t, acts, 2)
	edit := acts[1]
	require.Equal(t, ActivityEditTx, edit.Kind)
	require.Len(t, edit.Txs, 2)
	// Lower insertion id is the new side.
	require.Less(t, edit.Txs[0].ID, edit.Txs[1].ID)
	require.Equal(t, "950.00", edit.Txs[0].Amount)
	require.Equal(t, "900.00", edit.Txs[1].Amount)
}

func TestDeleteSnapshotOutlivesRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)

	require.NoError(t, d.AddMethods(ctx, []string{"Cash"}))
	tx, err := d.Add(ctx, "2022-07-01", "oops", "Cash", "", "12.50", "Expense", "Mistake")
	require.NoError(t, err)
	require.NoError(t, d.Delete(ctx, tx))

	txs, err := d.Search(ctx, Filters{})
	require.NoError(t, err)
	require.Empty(t, txs)

	acts := currentActivities(t, d)
	require.Len(t, acts, 2)
	del := acts[1]
	require.Equal(t, ActivityDeleteTx, del.Kind)
	require.Len(t, del.Txs, 1)
	require.Equal(t, "12.50", del.Txs[0].Amount)
	require.Equal(t, "oops", del.Txs[0].Details)
	require.Len(t, del.Txs[0].Tags, 1)
}

func TestSearchLogsOnlyFilledFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)

	require.NoError(t, d.AddMethods(ctx, []string{"Cash"}))
	_, err := d.Add(ctx, "2022-07-01", "salary", "Cash", "", "1000.00", "Income", "Salary")
	require.NoError(t, err)

	_, err = d.Search(ctx, Filters{Kind: "Income", Tags: []string{"Salary"}})
	require.NoError(t, err)

	acts := currentActivities(t, d)
	search := acts[len(acts)-1]
	require.Equal(t, ActivitySearchTx, search.Kind)
	require.Len(t, search.Txs, 1)
	snap := search.Txs[0]
	require.Equal(t, "Income", snap.Kind)
	require.Empty(t, snap.Date)
	require.Empty(t, snap.Amount)
	require.Equal(t, int64(0), snap.TxID)
	require.Len(t, snap.Tags, 1)

	// Search with no filters logs nothing.
	before := len(currentActivities(t, d))
	_, err = d.Search(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, currentActivities(t, d), before)
}

func TestSwapLogsTwoSnapshots(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)

	require.NoError(t, d.AddMethods(ctx, []string{"Cash"}))
	a, err := d.Add(ctx, "2022-07-01", "first", "Cash", "", "10", "Income", "")
	require.NoError(t, err)
	b, err := d.Add(ctx, "2022-07-01", "second", "Cash", "", "20", "Income", "")
	require.NoError(t, err)
	require.NoError(t, d.SwapPosition(ctx, a, b))

	acts := currentActivities(t, d)
	swap := acts[len(acts)-1]
	require.Equal(t, ActivityPositionSwap, swap.Kind)
	require.Len(t, swap.Txs, 2)
	require.Equal(t, "first", swap.Txs[0].Details)
	require.Equal(t, "second", swap.Txs[1].Details)
}
