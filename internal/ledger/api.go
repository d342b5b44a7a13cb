package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jask/balancebook/internal/database"
	"github.com/jask/balancebook/internal/money"
)

// Add records a new transaction from raw user input, keeps all snapshots
// consistent, and logs an AddTx activity. The whole operation is one
// database transaction; the cache learns any new tags only after commit.
func (d *DB) Add(ctx context.Context, date, details, from, to, amount, kind, tags string) (FullTx, error) {
	var res AddResult
	err := d.WithTx(func(c Conn) error {
		var err error
		res, err = AddTx(ctx, c, AddArgs{
			Date: date, Details: details, From: from, To: to,
			Amount: amount, Kind: kind, Tags: tags,
		})
		if err != nil {
			return err
		}
		snap, err := snapshotOf(ctx, c, res.Tx)
		if err != nil {
			return err
		}
		return LogActivity(ctx, c, ActivityAddTx, database.Now(), []TxSnapshot{snap})
	})
	if err != nil {
		return FullTx{}, err
	}
	for _, t := range res.NewTags {
		d.cache.PutTag(t)
	}
	return res.Tx, nil
}

// Delete removes a transaction, reversing its balance effects, and logs a
// DeleteTx activity.
func (d *DB) Delete(ctx context.Context, t FullTx) error {
	return d.WithTx(func(c Conn) error {
		snap, err := snapshotOf(ctx, c, t)
		if err != nil {
			return err
		}
		if err := DeleteTx(ctx, c, t); err != nil {
			return err
		}
		return LogActivity(ctx, c, ActivityDeleteTx, database.Now(), []TxSnapshot{snap})
	})
}

// Edit replaces a transaction with new input while preserving its id (and
// therefore its display order). Implemented as delete-then-add inside one
// outer transaction so no intermediate state is ever observable.
func (d *DB) Edit(ctx context.Context, old FullTx, date, details, from, to, amount, kind, tags string) (FullTx, error) {
	var res AddResult
	err := d.WithTx(func(c Conn) error {
		oldSnap, err := snapshotOf(ctx, c, old)
		if err != nil {
			return err
		}
		if err := DeleteTx(ctx, c, old); err != nil {
			return err
		}
		res, err = AddTx(ctx, c, AddArgs{
			Date: date, Details: details, From: from, To: to,
			Amount: amount, Kind: kind, Tags: tags,
			ForceID: old.ID, DisplayOrder: old.DisplayOrder,
		})
		if err != nil {
			return err
		}
		newSnap, err := snapshotOf(ctx, c, res.Tx)
		if err != nil {
			return err
		}
		// New side first: the display layer reads the lower activity_txs
		// id as the primary side.
		return LogActivity(ctx, c, ActivityEditTx, database.Now(), []TxSnapshot{newSnap, oldSnap})
	})
	if err != nil {
		return FullTx{}, err
	}
	for _, t := range res.NewTags {
		d.cache.PutTag(t)
	}
	return res.Tx, nil
}

// AddMethods creates named methods with their final balance rows and
// refreshes the cache after commit.
func (d *DB) AddMethods(ctx context.Context, names []string) error {
	var created []TxMethod
	err := d.WithTx(func(c Conn) error {
		var err error
		created, err = AddMethods(ctx, c, names)
		return err
	})
	if err != nil {
		return err
	}
	for _, m := range created {
		d.cache.PutMethod(m)
	}
	return nil
}

// SwapPosition reorders two same-date transactions by exchanging display
// orders (a zero order first materializes as the row's own id) and logs a
// PositionSwap activity.
func (d *DB) SwapPosition(ctx context.Context, a, b FullTx) error {
	if !a.Date.Equal(b.Date) {
		return &FieldError{Field: "tx", Err: fmt.Errorf("can only reorder transactions sharing a date")}
	}
	ao, bo := a.DisplayOrder, b.DisplayOrder
	if ao == 0 {
		ao = a.ID
	}
	if bo == 0 {
		bo = b.ID
	}
	return d.WithTx(func(c Conn) error {
		if _, err := c.Handle().ExecContext(ctx, `UPDATE txs SET display_order = ? WHERE id = ?`, bo, a.ID); err != nil {
			return err
		}
		if _, err := c.Handle().ExecContext(ctx, `UPDATE txs SET display_order = ? WHERE id = ?`, ao, b.ID); err != nil {
			return err
		}
		aSnap, err := snapshotOf(ctx, c, a)
		if err != nil {
			return err
		}
		bSnap, err := snapshotOf(ctx, c, b)
		if err != nil {
			return err
		}
		return LogActivity(ctx, c, ActivityPositionSwap, database.Now(), []TxSnapshot{aSnap, bSnap})
	})
}

// List builds the display view for the month, year or full ledger around
// date. See List for the self-healing behavior of monthly views.
func (d *DB) List(ctx context.Context, date time.Time, scope Scope) (*TransactionView, error) {
	return List(ctx, d, date, scope)
}

// Search runs a filtered query and, on success, logs a SearchTx activity
// snapshotting the filled filters. A search never creates tags.
func (d *DB) Search(ctx context.Context, f Filters) ([]FullTx, error) {
	out, err := Search(ctx, d, f)
	if err != nil {
		return nil, err
	}
	if !f.empty() {
		err = d.WithTx(func(c Conn) error {
			snap, err := f.snapshot(ctx, c)
			if err != nil {
				return err
			}
			return LogActivity(ctx, c, ActivitySearchTx, database.Now(), []TxSnapshot{snap})
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Activities reads a month of audit history.
func (d *DB) Activities(ctx context.Context, year int, month time.Month) ([]Activity, error) {
	return Activities(ctx, d, year, month)
}

// MonthBalance reads one stored snapshot; missing months read as zero.
func (d *DB) MonthBalance(ctx context.Context, method string, year int, month time.Month) (money.Cent, error) {
	id, err := resolveMethod(ctx, d, "method", method)
	if err != nil {
		return 0, err
	}
	bal, _, err := monthBalance(ctx, d.db, id, year, month)
	return bal, err
}

// FinalBalance reads a method's live balance.
func (d *DB) FinalBalance(ctx context.Context, method string) (money.Cent, error) {
	id, err := resolveMethod(ctx, d, "method", method)
	if err != nil {
		return 0, err
	}
	return finalBalance(ctx, d.db, id)
}
