package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/jask/balancebook/internal/money"
)

// lookbackMonths is the fast path when seeding a month: check this many
// immediately preceding months before falling back to the nearest earlier
// stored row. Purely an optimization; the fallback alone is equivalent.
const lookbackMonths = 3

// seedBalance returns the method's balance going into (year, month): the
// closest earlier month snapshot, or zero when the method has no history.
func seedBalance(ctx context.Context, q Querier, methodID int64, year int, month time.Month) (money.Cent, error) {
	y, m := year, month
	for i := 0; i < lookbackMonths; i++ {
		y, m = prevMonth(y, m)
		bal, found, err := monthBalance(ctx, q, methodID, y, m)
		if err != nil {
			return 0, err
		}
		if found {
			return bal, nil
		}
	}

	var bal money.Cent
	err := q.QueryRowContext(ctx, `
	SELECT balance FROM balances
	WHERE method_id = ? AND is_final = 0 AND (year < ? OR (year = ? AND month < ?))
	ORDER BY year DESC, month DESC LIMIT 1;
	`, methodID, year, year, int(month)).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return bal, nil
}

// TidyMonth recomputes one method's snapshot for a month by replaying that
// month's transactions on top of the seed, and writes back only on
// disagreement. Returns whether a correction was written.
func TidyMonth(ctx context.Context, c Conn, methodID int64, year int, month time.Month) (bool, error) {
	seed, err := seedBalance(ctx, c.Handle(), methodID, year, month)
	if err != nil {
		return false, err
	}
	txs, err := methodTxsInMonth(ctx, c.Handle(), methodID, year, month)
	if err != nil {
		return false, err
	}

	recomputed := seed
	for _, t := range txs {
		recomputed += txEffect(t, methodID)
	}

	stored, found, err := monthBalance(ctx, c.Handle(), methodID, year, month)
	if err != nil {
		return false, err
	}
	// A month that carries transactions must have a row even when the
	// recomputed value happens to equal zero, or later seeds would skip it.
	if found && stored == recomputed {
		return false, nil
	}
	if !found && recomputed == 0 && len(txs) == 0 {
		return false, nil
	}
	if err := upsertMonthBalance(ctx, c.Handle(), methodID, year, month, recomputed); err != nil {
		return false, err
	}
	return true, nil
}

// tidyForward tidies every month from (year, month) through the latest
// month holding any transaction, for each given method. Run after every
// mutation so a back-dated change ripples into all later snapshots.
func tidyForward(ctx context.Context, c Conn, methodIDs []int64, year int, month time.Month) error {
	lastY, lastM, ok, err := latestTxMonth(ctx, c.Handle())
	if err != nil {
		return err
	}
	if !ok || !monthLE(year, month, lastY, lastM) {
		lastY, lastM = year, month
	}
	y, m := year, month
	for monthLE(y, m, lastY, lastM) {
		for _, id := range methodIDs {
			if _, err := TidyMonth(ctx, c, id, y, m); err != nil {
				return err
			}
		}
		y, m = nextMonth(y, m)
	}
	return nil
}

// txEffect is the signed balance delta a transaction applies to one method.
func txEffect(t Tx, methodID int64) money.Cent {
	fromDelta, toDelta := t.Kind.effect(t.Amount)
	var d money.Cent
	if t.FromMethod == methodID {
		d += fromDelta
	}
	if t.ToMethod == methodID {
		d += toDelta
	}
	return d
}

// TidyRange tidies every method over every month of the inclusive range.
// The legacy migration uses it to materialize month-end rows the replay
// itself never asked for. Method ids come from the live handle, not the
// cache, so methods created earlier in the same transaction are covered.
func TidyRange(ctx context.Context, c Conn, fromYear int, fromMonth time.Month, toYear int, toMonth time.Month) error {
	rows, err := c.Handle().QueryContext(ctx, `SELECT id FROM tx_methods ORDER BY position`)
	if err != nil {
		return err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	y, m := fromYear, fromMonth
	for monthLE(y, m, toYear, toMonth) {
		for _, id := range ids {
			if _, err := TidyMonth(ctx, c, id, y, m); err != nil {
				return err
			}
		}
		y, m = nextMonth(y, m)
	}
	return nil
}
