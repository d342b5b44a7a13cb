package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func seedSearchData(t *testing.T, d *DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, d.AddMethods(ctx, []string{"Cash", "Bank"}))

	adds := []struct {
		date, details, from, to, amount, kind, tags string
	}{
		{"2022-07-01", "salary july", "Cash", "", "1000.00", "Income", "Salary"},
		{"2022-07-15", "rent", "Cash", "", "900.00", "Expense", "House"},
		{"2022-08-01", "salary august", "Bank", "", "1000.00", "Income", "Salary"},
		{"2022-08-03", "coffee", "Cash", "", "4.50", "Expense", "Food"},
		{"2022-09-01", "stash", "Bank", "Cash", "250.00", "Transfer", ""},
	}
	for _, a := range adds {
		_, err := d.Add(ctx, a.date, a.details, a.from, a.to, a.amount, a.kind, a.tags)
		require.NoError(t, err)
	}
}

func TestSearchNoFiltersInsertionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)
	seedSearchData(t, d)

	out, err := d.Search(ctx, Filters{})
	require.NoError(t, err)
	require.Len(t, out, 5)
	for i := 1; i < len(out); i++ {
		require.Greater(t, out[i].ID, out[i-1].ID)
	}
}

func TestSearchByAmountComparator(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)
	seedSearchData(t, d)

	out, err := d.Search(ctx, Filters{Amount: ">=100.00"})
	require.NoError(t, err)
	require.Len(t, out, 4) // everything but the 4.50 coffee

	out, err = d.Search(ctx, Filters{Amount: "<10"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "coffee", out[0].Details)

	out, err = d.Search(ctx, Filters{Amount: "900.00"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "rent", out[0].Details)

	_, err = d.Search(ctx, Filters{Amount: ">=ten"})
	require.Error(t, err)
}

func TestSearchByDateForms(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)
	seedSearchData(t, d)

	out, err := d.Search(ctx, Filters{Date: "2022-07-15"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "rent", out[0].Details)

	out, err = d.Search(ctx, Filters{Date: "2022-08"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = d.Search(ctx, Filters{Date: "2022"})
	require.NoError(t, err)
	require.Len(t, out, 5)
}

func TestSearchByMethodKindDetailsTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	d := openTestDB(t)
	seedSearchData(t, d)

	out, err := d.Search(ctx, Filters{Methods: []string{"Bank"}})
	require.NoError(t, err)
	require.Len(t, out, 2) // bank salary + transfer touching Bank

	out, err = d.Search(ctx, Filters{Kind: "Expense"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = d.Search(ctx, Filters{Details: "salary"})
	require.NoError(t, err)
	require.Len(t, out, 2)

	out, err = d.Search(ctx, Filters{Tags: []string{"salary", "House"}})
	require.NoError(t, err)
	require.Len(t, out, 3) // any-match, tag names case-insensitive

	_, err = d.Search(ctx, Filters{Tags: []string{"Hose"}})
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "House", nf.Suggestion)

	out, err = d.Search(ctx, Filters{Methods: []string{"Cash"}, Kind: "Expense", Amount: ">100"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "rent", out[0].Details)
}
