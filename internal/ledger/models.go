// Package ledger implements the transaction store and the
// balance-consistency engine that keeps per-month and final balance
// snapshots honest across adds, edits, deletes and backfills.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/jask/balancebook/internal/money"
)

// DateFormat is how dates are persisted and parsed.
const DateFormat = "2006-01-02"

// Kind is the transaction type.
type Kind string

const (
	KindIncome   Kind = "Income"
	KindExpense  Kind = "Expense"
	KindTransfer Kind = "Transfer"
)

// ParseKind decodes user-entered kind text. Unknown text is a field error,
// never a panic.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "i":
		return KindIncome, nil
	case "expense", "e":
		return KindExpense, nil
	case "transfer", "t":
		return KindTransfer, nil
	}
	return "", &FieldError{Field: "kind", Err: fmt.Errorf("unknown kind %q", s)}
}

// effect returns the signed balance deltas a transaction of this kind
// applies to its from and to methods.
func (k Kind) effect(amount money.Cent) (from, to money.Cent) {
	switch k {
	case KindIncome:
		return amount, 0
	case KindExpense:
		return -amount, 0
	case KindTransfer:
		return -amount, amount
	}
	return 0, 0
}

// TxMethod is a named store of money ("Cash", "Bank").
type TxMethod struct {
	ID       int64
	Name     string
	Position int
}

// Tag labels transactions. Names are unique; user matching is
// case-insensitive.
type Tag struct {
	ID   int64
	Name string
}

// Tx is one ledger entry.
type Tx struct {
	ID         int64
	Date       time.Time
	Details    string
	FromMethod int64
	ToMethod   int64 // 0 unless Transfer
	Amount     money.Cent
	Kind       Kind
	// DisplayOrder is 0 until two same-date transactions are manually
	// reordered, at which point it holds an id to sort by.
	DisplayOrder int64
}

// FullTx is a Tx with its tags attached.
type FullTx struct {
	Tx
	Tags []Tag
}

// Balance is a materialized snapshot: one row per (method, year, month)
// holding the balance as of the end of that month, plus exactly one final
// row per method (year and month zero) holding the live balance.
type Balance struct {
	MethodID int64
	Year     int
	Month    time.Month
	Balance  money.Cent
	IsFinal  bool
}

// ActivityKind classifies an audit log entry.
type ActivityKind string

const (
	ActivityAddTx        ActivityKind = "AddTx"
	ActivityEditTx       ActivityKind = "EditTx"
	ActivityDeleteTx     ActivityKind = "DeleteTx"
	ActivitySearchTx     ActivityKind = "SearchTx"
	ActivityPositionSwap ActivityKind = "PositionSwap"
)

// Activity is one append-only audit entry with its snapshot rows.
type Activity struct {
	ID   int64
	Date time.Time
	Kind ActivityKind
	Txs  []ActivityTx
}

// ActivityTx is a point-in-time snapshot of a transaction involved in an
// activity. Every field is optional because a search snapshot carries only
// the filled filters. Rows sort by insertion id; for two-row activities the
// lower id is the new/primary side.
type ActivityTx struct {
	ID         int64
	ActivityID int64
	Date       string
	Details    string
	FromMethod string
	ToMethod   string
	Amount     string
	Kind       string
	TxID       int64
	Tags       []Tag
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, &FieldError{Field: "date", Err: fmt.Errorf("invalid date %q: want %s", s, DateFormat)}
	}
	return t, nil
}

func monthRange(year int, month time.Month) (lo, hi string) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start.Format(DateFormat), start.AddDate(0, 1, 0).Format(DateFormat)
}

func prevMonth(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return t.Year(), t.Month()
}

func nextMonth(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return t.Year(), t.Month()
}

// monthLE reports whether (ay, am) is at or before (by, bm).
func monthLE(ay int, am time.Month, by int, bm time.Month) bool {
	return ay < by || (ay == by && am <= bm)
}
