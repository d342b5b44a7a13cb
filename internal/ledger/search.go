package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/balancebook/internal/money"
)

// Filters selects transactions for Search. Zero values mean "no filter";
// with nothing set, Search returns the whole ledger in insertion order.
type Filters struct {
	// Date is exact ("2006-01-02"), month ("2006-01") or year ("2006").
	Date    string
	Details string
	Methods []string
	// Amount is a comparator plus value, e.g. ">=100.00"; a bare value
	// means equality. Comparison is on magnitude.
	Amount string
	Kind   string
	Tags   []string
}

func (f Filters) empty() bool {
	return f.Date == "" && f.Details == "" && len(f.Methods) == 0 &&
		f.Amount == "" && f.Kind == "" && len(f.Tags) == 0
}

// Search returns matching transactions with tags, ordered by insertion id.
func Search(ctx context.Context, c Conn, f Filters) ([]FullTx, error) {
	var where []string
	var args []any

	if f.Date != "" {
		lo, hi, err := dateBounds(f.Date)
		if err != nil {
			return nil, err
		}
		where = append(where, "date >= ? AND date < ?")
		args = append(args, lo, hi)
	}
	if f.Details != "" {
		where = append(where, "details LIKE ?")
		args = append(args, "%"+f.Details+"%")
	}
	if len(f.Methods) > 0 {
		var ids []any
		for _, name := range f.Methods {
			id, err := resolveMethod(ctx, c, "method", name)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		ph := placeholders(len(ids))
		where = append(where, fmt.Sprintf("(from_method IN (%s) OR to_method IN (%s))", ph, ph))
		args = append(args, ids...)
		args = append(args, ids...)
	}
	if f.Amount != "" {
		op, cents, err := parseAmountFilter(f.Amount)
		if err != nil {
			return nil, err
		}
		where = append(where, "amount "+op+" ?")
		args = append(args, cents)
	}
	if f.Kind != "" {
		kind, err := ParseKind(f.Kind)
		if err != nil {
			return nil, err
		}
		where = append(where, "kind = ?")
		args = append(args, string(kind))
	}
	if len(f.Tags) > 0 {
		var ids []any
		for _, name := range f.Tags {
			tag, found, err := resolveTag(ctx, c, name)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, &NotFoundError{Field: "tags", Name: name, Suggestion: c.Cache().SuggestTag(name)}
			}
			ids = append(ids, tag.ID)
		}
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM tx_tags tt WHERE tt.tx_id = txs.id AND tt.tag_id IN (%s))",
			placeholders(len(ids))))
		args = append(args, ids...)
	}

	query := `SELECT ` + txColumns + ` FROM txs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := c.Handle().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FullTx
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, FullTx{Tx: t})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		tags, err := fetchTxTags(ctx, c.Handle(), out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Tags = tags
	}
	return out, nil
}

// snapshot builds the activity record of a search: only the filled fields,
// referencing existing tag ids (a search never creates tags).
func (f Filters) snapshot(ctx context.Context, c Conn) (TxSnapshot, error) {
	snap := TxSnapshot{
		Date:       f.Date,
		Details:    f.Details,
		FromMethod: strings.Join(f.Methods, ", "),
		Amount:     f.Amount,
		Kind:       f.Kind,
	}
	for _, name := range f.Tags {
		tag, found, err := resolveTag(ctx, c, name)
		if err != nil {
			return TxSnapshot{}, err
		}
		if found {
			snap.TagIDs = append(snap.TagIDs, tag.ID)
		}
	}
	return snap, nil
}

// dateBounds expands an exact, month or year date filter into a half-open
// text range.
func dateBounds(s string) (lo, hi string, err error) {
	s = strings.TrimSpace(s)
	switch strings.Count(s, "-") {
	case 2:
		d, err := parseDate(s)
		if err != nil {
			return "", "", err
		}
		return d.Format(DateFormat), d.AddDate(0, 0, 1).Format(DateFormat), nil
	case 1:
		d, err := parseDate(s + "-01")
		if err != nil {
			return "", "", err
		}
		return d.Format(DateFormat), d.AddDate(0, 1, 0).Format(DateFormat), nil
	case 0:
		d, err := parseDate(s + "-01-01")
		if err != nil {
			return "", "", err
		}
		return d.Format(DateFormat), d.AddDate(1, 0, 0).Format(DateFormat), nil
	}
	return "", "", &FieldError{Field: "date", Err: fmt.Errorf("invalid date filter %q", s)}
}

func parseAmountFilter(s string) (op string, cents money.Cent, err error) {
	s = strings.TrimSpace(s)
	op = "="
	for _, candidate := range []string{"<=", ">=", "<", ">", "="} {
		if strings.HasPrefix(s, candidate) {
			op = candidate
			s = strings.TrimSpace(strings.TrimPrefix(s, candidate))
			break
		}
	}
	cents, err = money.Parse(s)
	if err != nil {
		return "", 0, &FieldError{Field: "amount", Err: err}
	}
	return op, cents, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
