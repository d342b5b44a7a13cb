package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jask/balancebook/internal/money"
)

// defaultTag labels transactions entered with empty tag text.
const defaultTag = "Unknown"

// AddArgs is the raw user input for one new transaction. ForceID and
// DisplayOrder are only set by edit and the legacy migration, which need to
// preserve an existing identity.
type AddArgs struct {
	Date    string
	Details string
	From    string
	To      string
	Amount  string
	Kind    string
	Tags    string

	ForceID      int64
	DisplayOrder int64
}

// AddResult carries the inserted transaction plus any tag rows created on
// the way, so the caller can refresh its cache after commit.
type AddResult struct {
	Tx      FullTx
	NewTags []Tag
}

// AddTx validates, inserts and balances one transaction. It must run inside
// a transaction-scoped Conn; it does not log an activity (the public API
// and the migration decide that themselves).
func AddTx(ctx context.Context, c Conn, a AddArgs) (AddResult, error) {
	date, err := parseDate(a.Date)
	if err != nil {
		return AddResult{}, err
	}
	kind, err := ParseKind(a.Kind)
	if err != nil {
		return AddResult{}, err
	}
	amount, err := money.Parse(a.Amount)
	if err != nil {
		return AddResult{}, &FieldError{Field: "amount", Err: err}
	}

	fromID, err := resolveMethod(ctx, c, "from", a.From)
	if err != nil {
		return AddResult{}, err
	}
	var toID int64
	switch kind {
	case KindTransfer:
		if strings.TrimSpace(a.To) == "" {
			return AddResult{}, &FieldError{Field: "to", Err: fmt.Errorf("transfer needs a destination method")}
		}
		toID, err = resolveMethod(ctx, c, "to", a.To)
		if err != nil {
			return AddResult{}, err
		}
		if toID == fromID {
			return AddResult{}, &FieldError{Field: "to", Err: fmt.Errorf("transfer from %q to itself", a.From)}
		}
	default:
		if strings.TrimSpace(a.To) != "" {
			return AddResult{}, &FieldError{Field: "to", Err: fmt.Errorf("destination method only applies to transfers")}
		}
	}

	tags, newTags, err := ensureTags(ctx, c, a.Tags)
	if err != nil {
		return AddResult{}, err
	}

	tx := Tx{
		ID:           a.ForceID,
		Date:         date,
		Details:      strings.TrimSpace(a.Details),
		FromMethod:   fromID,
		ToMethod:     toID,
		Amount:       amount,
		Kind:         kind,
		DisplayOrder: a.DisplayOrder,
	}

	methods := []int64{fromID}
	if toID != 0 {
		methods = append(methods, toID)
	}
	if err := applyEffect(ctx, c, tx, methods, false); err != nil {
		return AddResult{}, err
	}

	id, err := insertTx(ctx, c.Handle(), tx)
	if err != nil {
		return AddResult{}, fmt.Errorf("insert tx: %w", err)
	}
	tx.ID = id
	if err := insertTxTags(ctx, c.Handle(), id, tags); err != nil {
		return AddResult{}, fmt.Errorf("insert tx tags: %w", err)
	}

	if err := tidyForward(ctx, c, methods, date.Year(), date.Month()); err != nil {
		return AddResult{}, err
	}

	return AddResult{Tx: FullTx{Tx: tx, Tags: tags}, NewTags: newTags}, nil
}

// applyEffect folds one transaction's signed effect into the month and
// final snapshots of the affected methods. reverse flips the sign (delete).
func applyEffect(ctx context.Context, c Conn, tx Tx, methods []int64, reverse bool) error {
	for _, id := range methods {
		delta := txEffect(tx, id)
		if reverse {
			delta = -delta
		}

		stored, _, err := monthBalance(ctx, c.Handle(), id, tx.Date.Year(), tx.Date.Month())
		if err != nil {
			return err
		}
		if err := upsertMonthBalance(ctx, c.Handle(), id, tx.Date.Year(), tx.Date.Month(), stored+delta); err != nil {
			return err
		}

		final, err := finalBalance(ctx, c.Handle(), id)
		if err != nil {
			return err
		}
		if err := setFinalBalance(ctx, c.Handle(), id, final+delta); err != nil {
			return err
		}
	}
	return nil
}

// ensureTags splits, trims and dedupes comma-separated tag text, creating
// unseen tags. Empty input falls back to the "Unknown" tag.
func ensureTags(ctx context.Context, c Conn, text string) (tags, created []Tag, err error) {
	var names []string
	seen := map[string]bool{}
	for _, raw := range strings.Split(text, ",") {
		name := strings.TrimSpace(raw)
		if name == "" || seen[strings.ToLower(name)] {
			continue
		}
		seen[strings.ToLower(name)] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		names = []string{defaultTag}
	}

	for _, name := range names {
		tag, found, err := resolveTag(ctx, c, name)
		if err != nil {
			return nil, nil, err
		}
		if !found {
			res, err := c.Handle().ExecContext(ctx, `INSERT INTO tags(name) VALUES (?)`, name)
			if err != nil {
				return nil, nil, fmt.Errorf("insert tag %q: %w", name, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, nil, err
			}
			tag = Tag{ID: id, Name: name}
			created = append(created, tag)
		}
		tags = append(tags, tag)
	}
	return tags, created, nil
}

// AddMethods appends new named methods with the next display positions and
// their zeroed final-balance rows. Returns the created rows for cache
// refresh after commit.
func AddMethods(ctx context.Context, c Conn, names []string) ([]TxMethod, error) {
	var pos int
	if err := c.Handle().QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM tx_methods`).Scan(&pos); err != nil {
		return nil, err
	}

	var out []TxMethod
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			return nil, &FieldError{Field: "method", Err: fmt.Errorf("empty method name")}
		}
		if _, err := resolveMethod(ctx, c, "method", name); err == nil {
			return nil, &FieldError{Field: "method", Err: fmt.Errorf("method %q already exists", name)}
		}
		pos++
		res, err := c.Handle().ExecContext(ctx,
			`INSERT INTO tx_methods(name, position) VALUES (?, ?)`, name, pos)
		if err != nil {
			return nil, fmt.Errorf("insert method %q: %w", name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		// The final balance row exists exactly once per method, from the
		// moment the method does.
		if _, err := c.Handle().ExecContext(ctx,
			`INSERT INTO balances(method_id, year, month, balance, is_final) VALUES (?, 0, 0, 0, 1)`, id); err != nil {
			return nil, fmt.Errorf("insert final balance: %w", err)
		}
		out = append(out, TxMethod{ID: id, Name: name, Position: pos})
	}
	return out, nil
}
