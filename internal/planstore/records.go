package planstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/starford/vitalplan/internal/models"
)

// attrColumns maps item attributes to columns; integer columns hold the
// optional whole-number fields.
var attrColumns = []struct {
	attr    models.Attr
	integer bool
}{
	{models.AttrCalories, false},
	{models.AttrProtein, false},
	{models.AttrCarbs, false},
	{models.AttrFat, false},
	{models.AttrDuration, false},
	{models.AttrSets, true},
	{models.AttrReps, true},
}

var recordColumns = func() string {
	cols := []string{"owner_id", "domain", "day", "category", "position", "name"}
	for _, c := range attrColumns {
		cols = append(cols, string(c.attr))
	}
	return strings.Join(append(cols, "created_at"), ", ")
}()

// ReplacePlan deletes every record of (ownerID, domain) and inserts records
// in one transaction. If any statement fails the transaction is rolled back
// and the previous plan is left as it was. It returns the number of records
// written.
func (db *DB) ReplacePlan(ctx context.Context, ownerID int64, domain models.Domain, records []models.Record) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("planstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM plan_records WHERE owner_id = ? AND domain = ?`), ownerID, string(domain)); err != nil {
		return 0, fmt.Errorf("planstore: delete plan: %w", err)
	}

	if len(records) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", 7+len(attrColumns)), ", ")
		stmt, err := tx.PrepareContext(ctx, db.rebind(`INSERT INTO plan_records (`+recordColumns+`) VALUES (`+placeholders+`)`))
		if err != nil {
			return 0, fmt.Errorf("planstore: prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, r := range records {
			args := []any{ownerID, string(domain), r.Day, r.Category, r.Position, r.Item.Name}
			args = append(args, attrArgs(r.Item)...)
			args = append(args, createdAt(r.CreatedAt))
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return 0, fmt.Errorf("planstore: insert record %d (%s/%s): %w", i, r.Day, r.Category, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("planstore: commit: %w", err)
	}
	return len(records), nil
}

// Records returns every record of (ownerID, domain) in insertion order.
func (db *DB) Records(ctx context.Context, ownerID int64, domain models.Domain) ([]models.Record, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT id, `+recordColumns+`
		FROM plan_records
		WHERE owner_id = ? AND domain = ?
		ORDER BY position, id
	`), ownerID, string(domain))
	if err != nil {
		return nil, fmt.Errorf("planstore: records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("planstore: scan record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeletePlan removes every record of (ownerID, domain) and returns how many
// were removed. Deleting an absent plan is not an error.
func (db *DB) DeletePlan(ctx context.Context, ownerID int64, domain models.Domain) (int, error) {
	res, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM plan_records WHERE owner_id = ? AND domain = ?`), ownerID, string(domain))
	if err != nil {
		return 0, fmt.Errorf("planstore: delete plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("planstore: rows affected: %w", err)
	}
	return int(n), nil
}

func attrArgs(it models.Item) []any {
	out := make([]any, 0, len(attrColumns))
	for _, c := range attrColumns {
		v, ok := it.Attrs[c.attr]
		switch {
		case !ok:
			out = append(out, nil)
		case c.integer:
			out = append(out, int64(v))
		default:
			out = append(out, v)
		}
	}
	return out
}

func createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func scanRecord(rows *sql.Rows) (models.Record, error) {
	var (
		r      models.Record
		domain string
		floats = make([]sql.NullFloat64, len(attrColumns))
		ints   = make([]sql.NullInt64, len(attrColumns))
	)
	dest := []any{&r.ID, &r.OwnerID, &domain, &r.Day, &r.Category, &r.Position, &r.Item.Name}
	for i, c := range attrColumns {
		if c.integer {
			dest = append(dest, &ints[i])
		} else {
			dest = append(dest, &floats[i])
		}
	}
	dest = append(dest, &r.CreatedAt)
	if err := rows.Scan(dest...); err != nil {
		return models.Record{}, err
	}

	r.Domain = models.Domain(domain)
	r.Item.Attrs = make(map[models.Attr]float64)
	for i, c := range attrColumns {
		switch {
		case c.integer && ints[i].Valid:
			r.Item.Attrs[c.attr] = float64(ints[i].Int64)
		case !c.integer && floats[i].Valid:
			r.Item.Attrs[c.attr] = floats[i].Float64
		}
	}
	return r, nil
}
