package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TxSnapshot is the point-in-time copy of a transaction (or of search
// filters) recorded with an activity. Fields are plain strings because the
// live row may later change or disappear; nothing here is a foreign key to
// txs.
type TxSnapshot struct {
	Date       string
	Details    string
	FromMethod string
	ToMethod   string
	Amount     string
	Kind       string
	TxID       int64
	TagIDs     []int64
}

// snapshotOf copies a live transaction into snapshot form, resolving method
// ids to names through the cache with a handle fallback for rows created in
// the current transaction.
func snapshotOf(ctx context.Context, c Conn, t FullTx) (TxSnapshot, error) {
	from, err := methodName(ctx, c, t.FromMethod)
	if err != nil {
		return TxSnapshot{}, err
	}
	var to string
	if t.ToMethod != 0 {
		if to, err = methodName(ctx, c, t.ToMethod); err != nil {
			return TxSnapshot{}, err
		}
	}
	snap := TxSnapshot{
		Date:       t.Date.Format(DateFormat),
		Details:    t.Details,
		FromMethod: from,
		ToMethod:   to,
		Amount:     t.Amount.String(),
		Kind:       string(t.Kind),
		TxID:       t.ID,
	}
	for _, tag := range t.Tags {
		snap.TagIDs = append(snap.TagIDs, tag.ID)
	}
	return snap, nil
}

func methodName(ctx context.Context, c Conn, id int64) (string, error) {
	if m, ok := c.Cache().Method(id); ok {
		return m.Name, nil
	}
	var name string
	err := c.Handle().QueryRowContext(ctx, `SELECT name FROM tx_methods WHERE id = ?`, id).Scan(&name)
	if err != nil {
		return "", fmt.Errorf("method %d: %w", id, err)
	}
	return name, nil
}

// LogActivity appends one audit entry with its snapshot rows, in the order
// given. Two-row activities (edit, swap) rely on that order: the first
// snapshot gets the lower activity_txs id and is read back as the
// new/primary side.
func LogActivity(ctx context.Context, c Conn, kind ActivityKind, date time.Time, snaps []TxSnapshot) error {
	res, err := c.Handle().ExecContext(ctx,
		`INSERT INTO activities(date, kind) VALUES (?, ?)`, date.Format(DateFormat), string(kind))
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	activityID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, s := range snaps {
		res, err := c.Handle().ExecContext(ctx, `
		INSERT INTO activity_txs(activity_id, date, details, from_method, to_method, amount, kind, tx_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);
		`, activityID, nullable(s.Date), nullable(s.Details), nullable(s.FromMethod),
			nullable(s.ToMethod), nullable(s.Amount), nullable(s.Kind), nullableID(s.TxID))
		if err != nil {
			return fmt.Errorf("insert activity tx: %w", err)
		}
		snapID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, tagID := range s.TagIDs {
			if _, err := c.Handle().ExecContext(ctx,
				`INSERT OR IGNORE INTO activity_tx_tags(activity_tx_id, tag_id) VALUES (?, ?)`, snapID, tagID); err != nil {
				return fmt.Errorf("insert activity tag: %w", err)
			}
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// Activities reads one month of audit history, oldest first, snapshots in
// insertion-id order.
func Activities(ctx context.Context, c Conn, year int, month time.Month) ([]Activity, error) {
	lo, hi := monthRange(year, month)
	rows, err := c.Handle().QueryContext(ctx,
		`SELECT id, date, kind FROM activities WHERE date >= ? AND date < ? ORDER BY id`, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		var date string
		if err := rows.Scan(&a.ID, &date, &a.Kind); err != nil {
			return nil, err
		}
		if a.Date, err = time.Parse(DateFormat, date); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		txs, err := activityTxs(ctx, c, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Txs = txs
	}
	return out, nil
}

func activityTxs(ctx context.Context, c Conn, activityID int64) ([]ActivityTx, error) {
	rows, err := c.Handle().QueryContext(ctx, `
	SELECT id, activity_id, date, details, from_method, to_method, amount, kind, tx_id
	FROM activity_txs WHERE activity_id = ? ORDER BY id;
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActivityTx
	for rows.Next() {
		var at ActivityTx
		var date, details, from, to, amount, kind sql.NullString
		var txID sql.NullInt64
		if err := rows.Scan(&at.ID, &at.ActivityID, &date, &details, &from, &to, &amount, &kind, &txID); err != nil {
			return nil, err
		}
		at.Date, at.Details, at.FromMethod = date.String, details.String, from.String
		at.ToMethod, at.Amount, at.Kind = to.String, amount.String, kind.String
		at.TxID = txID.Int64
		out = append(out, at)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		tagRows, err := c.Handle().QueryContext(ctx,
			`SELECT t.id, t.name FROM tags t JOIN activity_tx_tags att ON att.tag_id = t.id WHERE att.activity_tx_id = ? ORDER BY t.name`,
			out[i].ID)
		if err != nil {
			return nil, err
		}
		for tagRows.Next() {
			var t Tag
			if err := tagRows.Scan(&t.ID, &t.Name); err != nil {
				tagRows.Close()
				return nil, err
			}
			out[i].Tags = append(out[i].Tags, t)
		}
		if err := tagRows.Err(); err != nil {
			tagRows.Close()
			return nil, err
		}
		tagRows.Close()
	}
	return out, nil
}
