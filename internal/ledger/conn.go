package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jask/balancebook/internal/database"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx. Engine code
// is written against it so the same logic runs at top level or borrowed
// inside an open transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn is the connection capability: a database handle paired with the
// method/tag cache. Two implementations exist: the owning *DB and the
// transaction-scoped txConn borrowed by WithTx.
type Conn interface {
	Handle() Querier
	Cache() *Cache
}

// DB is the owning top-level connection.
type DB struct {
	db    *sql.DB
	cache *Cache
}

// Handle returns the underlying database handle.
func (d *DB) Handle() Querier { return d.db }

// Cache returns the connection-scoped cache.
func (d *DB) Cache() *Cache { return d.cache }

// Close releases the connection and discards the cache.
func (d *DB) Close() error {
	d.cache = nil
	return d.db.Close()
}

// txConn borrows a live transaction plus the outer cache.
type txConn struct {
	tx    *sql.Tx
	cache *Cache
}

func (t *txConn) Handle() Querier { return t.tx }
func (t *txConn) Cache() *Cache   { return t.cache }

// WithTx runs fn against a transaction-scoped Conn sharing this
// connection's cache, with all-or-nothing commit.
func (d *DB) WithTx(fn func(c Conn) error) error {
	return database.WithTx(d.db, func(tx *sql.Tx) error {
		return fn(&txConn{tx: tx, cache: d.cache})
	})
}

// Open opens (creating if needed) a ledger database: applies schema
// migrations and loads the cache in full.
func Open(path string) (*DB, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	d, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

// OpenNoUpgrade opens without applying schema migrations, for inspecting a
// pre-migration database. The cache stays empty when the normalized tables
// are not there yet.
func OpenNoUpgrade(path string) (*DB, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	d := &DB{db: db, cache: newCache()}
	ok, err := database.TableExists(db, "tx_methods")
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if ok {
		if err := d.loadCache(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return d, nil
}

// New wraps an already-migrated handle and loads the cache.
func New(db *sql.DB) (*DB, error) {
	d := &DB{db: db, cache: newCache()}
	if err := d.loadCache(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DB) loadCache(ctx context.Context) error {
	rows, err := d.db.QueryContext(ctx, `SELECT id, name, position FROM tx_methods`)
	if err != nil {
		return fmt.Errorf("load methods: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m TxMethod
		if err := rows.Scan(&m.ID, &m.Name, &m.Position); err != nil {
			return err
		}
		d.cache.PutMethod(m)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tagRows, err := d.db.QueryContext(ctx, `SELECT id, name FROM tags`)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var t Tag
		if err := tagRows.Scan(&t.ID, &t.Name); err != nil {
			return err
		}
		d.cache.PutTag(t)
	}
	return tagRows.Err()
}
