package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/jask/balancebook/internal/money"
)

const txColumns = `id, date, details, from_method, to_method, amount, kind, display_order`

// scanner handles both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTx(row scanner) (Tx, error) {
	var t Tx
	var date string
	var details sql.NullString
	var to sql.NullInt64
	if err := row.Scan(&t.ID, &date, &details, &t.FromMethod, &to, &t.Amount, &t.Kind, &t.DisplayOrder); err != nil {
		return Tx{}, err
	}
	d, err := time.Parse(DateFormat, date)
	if err != nil {
		return Tx{}, err
	}
	t.Date = d
	if details.Valid {
		t.Details = details.String
	}
	if to.Valid {
		t.ToMethod = to.Int64
	}
	return t, nil
}

// resolveMethod maps a method name to its id: cache first, then the live
// handle so rows inserted earlier in the same transaction are visible.
func resolveMethod(ctx context.Context, c Conn, field, name string) (int64, error) {
	if id, ok := c.Cache().MethodID(name); ok {
		return id, nil
	}
	var id int64
	err := c.Handle().QueryRowContext(ctx, `SELECT id FROM tx_methods WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	return 0, &NotFoundError{Field: field, Name: name, Suggestion: c.Cache().SuggestMethod(name)}
}

// resolveTag maps a tag name to its id case-insensitively. found is false
// when the tag does not exist yet; that is not an error, the caller creates
// it.
func resolveTag(ctx context.Context, c Conn, name string) (Tag, bool, error) {
	if id, ok := c.Cache().TagID(name); ok {
		t, _ := c.Cache().Tag(id)
		return t, true, nil
	}
	var t Tag
	err := c.Handle().QueryRowContext(ctx, `SELECT id, name FROM tags WHERE name = ? COLLATE NOCASE`, name).Scan(&t.ID, &t.Name)
	if err == nil {
		return t, true, nil
	}
	if err != sql.ErrNoRows {
		return Tag{}, false, err
	}
	return Tag{}, false, nil
}

// monthBalance loads a stored month snapshot. found is false for months
// with no row yet; callers synthesize zero instead of treating that as an
// error.
func monthBalance(ctx context.Context, q Querier, methodID int64, year int, month time.Month) (money.Cent, bool, error) {
	var bal money.Cent
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE method_id = ? AND year = ? AND month = ? AND is_final = 0`,
		methodID, year, int(month)).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return bal, true, nil
}

func upsertMonthBalance(ctx context.Context, q Querier, methodID int64, year int, month time.Month, bal money.Cent) error {
	_, err := q.ExecContext(ctx, `
	INSERT INTO balances(method_id, year, month, balance, is_final)
	VALUES (?, ?, ?, ?, 0)
	ON CONFLICT(method_id, year, month, is_final) DO UPDATE SET balance = excluded.balance;
	`, methodID, year, int(month), bal)
	return err
}

// finalBalance loads the live balance row. Its absence for a known method
// is an invariant violation, not a gap to fill.
func finalBalance(ctx context.Context, q Querier, methodID int64) (money.Cent, error) {
	var bal money.Cent
	err := q.QueryRowContext(ctx,
		`SELECT balance FROM balances WHERE method_id = ? AND is_final = 1`, methodID).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, &FieldError{Field: "method", Err: ErrFinalBalance}
	}
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func setFinalBalance(ctx context.Context, q Querier, methodID int64, bal money.Cent) error {
	_, err := q.ExecContext(ctx,
		`UPDATE balances SET balance = ? WHERE method_id = ? AND is_final = 1`, bal, methodID)
	return err
}

func insertTx(ctx context.Context, q Querier, t Tx) (int64, error) {
	var details any
	if t.Details != "" {
		details = t.Details
	}
	var to any
	if t.ToMethod != 0 {
		to = t.ToMethod
	}
	date := t.Date.Format(DateFormat)

	if t.ID != 0 {
		_, err := q.ExecContext(ctx, `
		INSERT INTO txs(id, date, details, from_method, to_method, amount, kind, display_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
		`, t.ID, date, details, t.FromMethod, to, t.Amount, t.Kind, t.DisplayOrder)
		return t.ID, err
	}
	res, err := q.ExecContext(ctx, `
	INSERT INTO txs(date, details, from_method, to_method, amount, kind, display_order)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`, date, details, t.FromMethod, to, t.Amount, t.Kind, t.DisplayOrder)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertTxTags(ctx context.Context, q Querier, txID int64, tags []Tag) error {
	for _, tag := range tags {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO tx_tags(tx_id, tag_id) VALUES (?, ?)`, txID, tag.ID); err != nil {
			return err
		}
	}
	return nil
}

func fetchTxTags(ctx context.Context, q Querier, txID int64) ([]Tag, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT t.id, t.name FROM tags t JOIN tx_tags tt ON tt.tag_id = t.id WHERE tt.tx_id = ? ORDER BY t.name`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// methodTxsInMonth returns the month's transactions touching one method.
func methodTxsInMonth(ctx context.Context, q Querier, methodID int64, year int, month time.Month) ([]Tx, error) {
	lo, hi := monthRange(year, month)
	rows, err := q.QueryContext(ctx,
		`SELECT `+txColumns+` FROM txs
		 WHERE date >= ? AND date < ? AND (from_method = ? OR to_method = ?)
		 ORDER BY date, CASE WHEN display_order = 0 THEN id ELSE display_order END, id`,
		lo, hi, methodID, methodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tx
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// txsBetween returns all transactions in [lo, hi) in display order.
func txsBetween(ctx context.Context, q Querier, lo, hi string) ([]Tx, error) {
	query := `SELECT ` + txColumns + ` FROM txs`
	var args []any
	if lo != "" {
		query += ` WHERE date >= ? AND date < ?`
		args = append(args, lo, hi)
	}
	query += ` ORDER BY date, CASE WHEN display_order = 0 THEN id ELSE display_order END, id`
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tx
	for rows.Next() {
		t, err := scanTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// latestTxMonth reports the month of the newest transaction on record.
func latestTxMonth(ctx context.Context, q Querier) (int, time.Month, bool, error) {
	var date sql.NullString
	if err := q.QueryRowContext(ctx, `SELECT MAX(date) FROM txs`).Scan(&date); err != nil {
		return 0, 0, false, err
	}
	if !date.Valid {
		return 0, 0, false, nil
	}
	t, err := time.Parse(DateFormat, date.String)
	if err != nil {
		return 0, 0, false, err
	}
	return t.Year(), t.Month(), true, nil
}

// GetTx loads one transaction with tags.
func GetTx(ctx context.Context, c Conn, id int64) (FullTx, error) {
	row := c.Handle().QueryRowContext(ctx, `SELECT `+txColumns+` FROM txs WHERE id = ?`, id)
	t, err := scanTx(row)
	if err != nil {
		return FullTx{}, err
	}
	tags, err := fetchTxTags(ctx, c.Handle(), id)
	if err != nil {
		return FullTx{}, err
	}
	return FullTx{Tx: t, Tags: tags}, nil
}
