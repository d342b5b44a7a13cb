package ledger

import (
	"context"
	"fmt"
)

// DeleteTx reverses a transaction's effect on its month and final
// snapshots, removes the row and its tag links, and tidies forward. Like
// AddTx it runs on a transaction-scoped Conn and logs nothing itself.
func DeleteTx(ctx context.Context, c Conn, t FullTx) error {
	methods := []int64{t.FromMethod}
	if t.ToMethod != 0 {
		methods = append(methods, t.ToMethod)
	}

	if err := applyEffect(ctx, c, t.Tx, methods, true); err != nil {
		return err
	}

	if _, err := c.Handle().ExecContext(ctx, `DELETE FROM tx_tags WHERE tx_id = ?`, t.ID); err != nil {
		return fmt.Errorf("delete tx tags: %w", err)
	}
	res, err := c.Handle().ExecContext(ctx, `DELETE FROM txs WHERE id = ?`, t.ID)
	if err != nil {
		return fmt.Errorf("delete tx: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &FieldError{Field: "tx", Err: fmt.Errorf("transaction %d not found", t.ID)}
	}

	return tidyForward(ctx, c, methods, t.Date.Year(), t.Date.Month())
}
