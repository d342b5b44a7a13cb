// Package migration rebuilds a legacy flat-schema database (wide balance
// table, one column per method) into the normalized ledger schema by
// replaying every historical transaction through the regular mutation
// engine. Legacy schema knowledge lives only here.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jask/balancebook/internal/database"
	"github.com/jask/balancebook/internal/ledger"
)

// Legacy table names. The old layout kept one wide balance table with a
// REAL column per method, alongside flat transaction and activity tables.
const (
	legacyBalances    = "balance_all"
	legacyTxs         = "tx_all"
	legacyActivities  = "activities_all"
	legacyActivityTxs = "activity_txs_all"
)

// Report summarizes what a migration run replayed.
type Report struct {
	BackupPath        string
	Methods           int
	Transactions      int
	Activities        int
	SkippedActivities int
}

// Needed reports whether the database still carries the legacy schema.
func Needed(db *sql.DB) (bool, error) {
	return database.TableExists(db, legacyBalances)
}

// Run performs the one-shot upgrade: file backup, then one database
// transaction that recreates methods from the wide table's columns, replays
// all transactions and activities, tidies every month in range, and drops
// the legacy tables.
func Run(ctx context.Context, d *ledger.DB, dbPath, backupDir string) (*Report, error) {
	backup, err := database.Backup(dbPath, backupDir)
	if err != nil {
		return nil, fmt.Errorf("backup before migration: %w", err)
	}
	rep := &Report{BackupPath: backup}

	var createdMethods []ledger.TxMethod
	var createdTags []ledger.Tag

	err = d.WithTx(func(c ledger.Conn) error {
		names, err := legacyMethodNames(ctx, c)
		if err != nil {
			return err
		}
		createdMethods, err = ledger.AddMethods(ctx, c, names)
		if err != nil {
			return err
		}
		rep.Methods = len(createdMethods)

		earliest, latest, err := replayTransactions(ctx, c, rep, &createdTags)
		if err != nil {
			return err
		}
		if err := replayActivities(ctx, c, rep); err != nil {
			return err
		}

		if rep.Transactions > 0 {
			// Start one month before the earliest transaction so its own
			// seed month gets a materialized row too.
			fy, fm := earliest.Year(), earliest.Month()
			fy, fm = prevMonth(fy, fm)
			if err := ledger.TidyRange(ctx, c, fy, fm, latest.Year(), latest.Month()); err != nil {
				return err
			}
		}

		for _, t := range []string{legacyActivityTxs, legacyActivities, legacyTxs, legacyBalances} {
			if _, err := c.Handle().ExecContext(ctx, `DROP TABLE IF EXISTS `+t); err != nil {
				return fmt.Errorf("drop %s: %w", t, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, m := range createdMethods {
		d.Cache().PutMethod(m)
	}
	for _, t := range createdTags {
		d.Cache().PutTag(t)
	}
	return rep, nil
}

// legacyMethodNames recovers the historical method list, in column order,
// from the wide balance table.
func legacyMethodNames(ctx context.Context, c ledger.Conn) ([]string, error) {
	rows, err := c.Handle().QueryContext(ctx, `PRAGMA table_info(`+legacyBalances+`)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		if name == "id_num" {
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("legacy %s table has no method columns", legacyBalances)
	}
	return names, nil
}

func replayTransactions(ctx context.Context, c ledger.Conn, rep *Report, createdTags *[]ledger.Tag) (earliest, latest time.Time, err error) {
	rows, err := c.Handle().QueryContext(ctx,
		`SELECT date, details, tx_method, amount, tx_type, id_num, tags FROM `+legacyTxs+` ORDER BY date, id_num`)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	defer rows.Close()

	type legacyTx struct {
		date, details, method, amount, kind, tags string
		id                                        int64
	}
	var txs []legacyTx
	for rows.Next() {
		var t legacyTx
		var details, tags sql.NullString
		if err := rows.Scan(&t.date, &details, &t.method, &t.amount, &t.kind, &t.id, &tags); err != nil {
			return time.Time{}, time.Time{}, err
		}
		t.details, t.tags = details.String, tags.String
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return time.Time{}, time.Time{}, err
	}

	for _, t := range txs {
		from, to := splitLegacyMethod(t.method)
		res, err := ledger.AddTx(ctx, c, ledger.AddArgs{
			Date: t.date, Details: t.details, From: from, To: to,
			Amount: t.amount, Kind: t.kind, Tags: t.tags,
			ForceID: t.id,
		})
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("replay legacy tx %d: %w", t.id, err)
		}
		*createdTags = append(*createdTags, res.NewTags...)
		rep.Transactions++

		if earliest.IsZero() || res.Tx.Date.Before(earliest) {
			earliest = res.Tx.Date
		}
		if res.Tx.Date.After(latest) {
			latest = res.Tx.Date
		}
	}
	return earliest, latest, nil
}

// splitLegacyMethod decodes the legacy "A to B" transfer encoding into a
// (from, to) pair; plain names pass through.
func splitLegacyMethod(s string) (from, to string) {
	if i := strings.Index(s, " to "); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+4:])
	}
	return strings.TrimSpace(s), ""
}

// legacyActivityKinds maps legacy kind text to the current model. Kinds
// missing here (position swaps, in observed data) are skipped and counted.
var legacyActivityKinds = map[string]ledger.ActivityKind{
	"Add Transaction":    ledger.ActivityAddTx,
	"Edit Transaction":   ledger.ActivityEditTx,
	"Delete Transaction": ledger.ActivityDeleteTx,
	"Search Transaction": ledger.ActivitySearchTx,
}

func replayActivities(ctx context.Context, c ledger.Conn, rep *Report) error {
	rows, err := c.Handle().QueryContext(ctx,
		`SELECT date, activity_type, id_num FROM `+legacyActivities+` ORDER BY id_num`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type legacyActivity struct {
		date, kind string
		id         int64
	}
	var acts []legacyActivity
	for rows.Next() {
		var a legacyActivity
		if err := rows.Scan(&a.date, &a.kind, &a.id); err != nil {
			return err
		}
		acts = append(acts, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, a := range acts {
		kind, ok := legacyActivityKinds[a.kind]
		if !ok {
			// A skipped activity drags its snapshot rows along with it.
			rep.SkippedActivities++
			continue
		}
		date, err := time.Parse(ledger.DateFormat, a.date)
		if err != nil {
			return fmt.Errorf("legacy activity %d: %w", a.id, err)
		}
		snaps, err := legacySnapshots(ctx, c, a.id)
		if err != nil {
			return err
		}
		if err := ledger.LogActivity(ctx, c, kind, date, snaps); err != nil {
			return err
		}
		rep.Activities++
	}
	return nil
}

func legacySnapshots(ctx context.Context, c ledger.Conn, activityID int64) ([]ledger.TxSnapshot, error) {
	rows, err := c.Handle().QueryContext(ctx,
		`SELECT date, details, tx_method, amount, tx_type, tags FROM `+legacyActivityTxs+
			` WHERE activity_num = ? ORDER BY rowid`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.TxSnapshot
	for rows.Next() {
		var date, details, method, amount, kind, tags sql.NullString
		if err := rows.Scan(&date, &details, &method, &amount, &kind, &tags); err != nil {
			return nil, err
		}
		from, to := splitLegacyMethod(method.String)
		snap := ledger.TxSnapshot{
			Date:       date.String,
			Details:    details.String,
			FromMethod: from,
			ToMethod:   to,
			Amount:     amount.String,
			Kind:       kind.String,
		}
		// Legacy tags were free text; only names that exist by now (the
		// transaction replay created them) resolve to ids.
		for _, raw := range strings.Split(tags.String, ",") {
			name := strings.TrimSpace(raw)
			if name == "" {
				continue
			}
			if id, ok := c.Cache().TagID(name); ok {
				snap.TagIDs = append(snap.TagIDs, id)
			} else if tag, found, err := lookupTag(ctx, c, name); err != nil {
				return nil, err
			} else if found {
				snap.TagIDs = append(snap.TagIDs, tag)
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func lookupTag(ctx context.Context, c ledger.Conn, name string) (int64, bool, error) {
	var id int64
	err := c.Handle().QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ? COLLATE NOCASE`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func prevMonth(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return t.Year(), t.Month()
}
