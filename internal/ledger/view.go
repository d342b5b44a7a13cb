package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jask/balancebook/internal/money"
)

// Scope selects how much history a view covers.
type Scope int

const (
	Monthly Scope = iota
	Yearly
	All
)

// TransactionView is the read-only shape handed to the presentation layer:
// transactions with, for each one, the running per-method balances after
// it, plus aggregate tables. Everything renderable is arrays of strings.
type TransactionView struct {
	Scope Scope
	Year  int
	Month time.Month

	Txs []FullTx
	// Running[i] maps method name to its balance after Txs[i] applied.
	Running []map[string]money.Cent

	methods []TxMethod
	cache   *Cache
}

// List builds the view for the month, year or whole ledger containing
// date. Producing a monthly view doubles as a consistency check: the final
// running balance per method is compared with the stored month-end snapshot
// and the snapshot corrected on mismatch.
func List(ctx context.Context, c Conn, date time.Time, scope Scope) (*TransactionView, error) {
	year, month := date.Year(), date.Month()
	var lo, hi string
	switch scope {
	case Monthly:
		lo, hi = monthRange(year, month)
	case Yearly:
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		lo, hi = start.Format(DateFormat), start.AddDate(1, 0, 0).Format(DateFormat)
	}

	txs, err := txsBetween(ctx, c.Handle(), lo, hi)
	if err != nil {
		return nil, err
	}

	v := &TransactionView{
		Scope:   scope,
		Year:    year,
		Month:   month,
		methods: c.Cache().Methods(),
		cache:   c.Cache(),
	}

	running := map[string]money.Cent{}
	touched := map[int64]bool{}
	for _, m := range v.methods {
		var seed money.Cent
		switch scope {
		case Monthly:
			seed, err = seedBalance(ctx, c.Handle(), m.ID, year, month)
		case Yearly:
			seed, err = seedBalance(ctx, c.Handle(), m.ID, year, time.January)
		}
		if err != nil {
			return nil, err
		}
		running[m.Name] = seed
	}

	for _, t := range txs {
		tags, err := fetchTxTags(ctx, c.Handle(), t.ID)
		if err != nil {
			return nil, err
		}
		for _, m := range v.methods {
			if d := txEffect(t, m.ID); d != 0 {
				running[m.Name] += d
				touched[m.ID] = true
			}
		}
		v.Txs = append(v.Txs, FullTx{Tx: t, Tags: tags})
		snap := make(map[string]money.Cent, len(running))
		for name, bal := range running {
			snap[name] = bal
		}
		v.Running = append(v.Running, snap)
	}

	// Self-healing read: the threaded month-end value is authoritative.
	if scope == Monthly {
		for _, m := range v.methods {
			if !touched[m.ID] {
				continue
			}
			stored, found, err := monthBalance(ctx, c.Handle(), m.ID, year, month)
			if err != nil {
				return nil, err
			}
			if !found || stored != running[m.Name] {
				if err := upsertMonthBalance(ctx, c.Handle(), m.ID, year, month, running[m.Name]); err != nil {
					return nil, err
				}
			}
		}
	}

	return v, nil
}

// Rows renders one display row per transaction: date, details, method,
// amount, kind, tags.
func (v *TransactionView) Rows() [][]string {
	out := make([][]string, 0, len(v.Txs))
	for _, t := range v.Txs {
		out = append(out, []string{
			t.Date.Format(DateFormat),
			t.Details,
			v.methodLabel(t.Tx),
			t.Amount.String(),
			string(t.Kind),
			tagNames(t.Tags),
		})
	}
	return out
}

func (v *TransactionView) methodLabel(t Tx) string {
	from := ""
	if m, ok := v.cache.Method(t.FromMethod); ok {
		from = m.Name
	}
	if t.ToMethod == 0 {
		return from
	}
	to := ""
	if m, ok := v.cache.Method(t.ToMethod); ok {
		to = m.Name
	}
	return from + " to " + to
}

func tagNames(tags []Tag) string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return strings.Join(names, ", ")
}

// BalancesAsTable returns one row per method: name, the view's closing
// running balance, and the method's final balance as currently stored.
func (v *TransactionView) BalancesAsTable(ctx context.Context, c Conn) ([][]string, error) {
	out := make([][]string, 0, len(v.methods))
	for _, m := range v.methods {
		closing := v.closingBalance(m.Name)
		final, err := finalBalance(ctx, c.Handle(), m.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, []string{m.Name, closing.String(), final.String()})
	}
	return out, nil
}

func (v *TransactionView) closingBalance(method string) money.Cent {
	if len(v.Running) == 0 {
		return 0
	}
	return v.Running[len(v.Running)-1][method]
}

// Income returns a header row of method names plus "Total" and a row of
// summed income amounts over the view's range.
func (v *TransactionView) Income() [][]string { return v.sumByMethod(KindIncome) }

// Expense is Income for the expense side.
func (v *TransactionView) Expense() [][]string { return v.sumByMethod(KindExpense) }

func (v *TransactionView) sumByMethod(kind Kind) [][]string {
	header := make([]string, 0, len(v.methods)+1)
	sums := map[int64]money.Cent{}
	var total money.Cent
	for _, t := range v.Txs {
		if t.Kind != kind {
			continue
		}
		sums[t.FromMethod] += t.Amount
		total += t.Amount
	}
	values := make([]string, 0, len(v.methods)+1)
	for _, m := range v.methods {
		header = append(header, m.Name)
		values = append(values, sums[m.ID].String())
	}
	header = append(header, "Total")
	values = append(values, total.String())
	return [][]string{header, values}
}

// DailyIncome returns one row per day carrying income, date then total.
func (v *TransactionView) DailyIncome() [][]string { return v.sumByDay(KindIncome) }

// DailyExpense is DailyIncome for the expense side.
func (v *TransactionView) DailyExpense() [][]string { return v.sumByDay(KindExpense) }

func (v *TransactionView) sumByDay(kind Kind) [][]string {
	sums := map[string]money.Cent{}
	for _, t := range v.Txs {
		if t.Kind != kind {
			continue
		}
		sums[t.Date.Format(DateFormat)] += t.Amount
	}
	days := make([]string, 0, len(sums))
	for d := range sums {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([][]string, 0, len(days))
	for _, d := range days {
		out = append(out, []string{d, sums[d].String()})
	}
	return out
}
