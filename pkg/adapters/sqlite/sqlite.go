package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aretw0/orgtree/pkg/domain"

	_ "modernc.org/sqlite"
)

// Columns promoted out of Entry.Fields. They mirror the position table of
// the HR tooling the charts usually come from.
const (
	colCode        = "code"
	colArea        = "area"
	colVacancies   = "vacancies"
	colSalary      = "salary"
	colDescription = "description"
)

// Repository implements ports.EntrySource, ports.EntrySink and ports.SnapshotStore using SQLite.
type Repository struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// Use ":memory:" for a throwaway database.
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: an in-memory database is private to its connection,
	// and SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) migrate() error {
	// superior_id carries no foreign key: dangling references must reach the
	// hierarchy builder, which turns them into roots.
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		code TEXT,
		label TEXT NOT NULL DEFAULT '',
		superior_id TEXT,
		area TEXT,
		vacancies INTEGER,
		salary REAL,
		description TEXT,
		fields JSON NOT NULL DEFAULT '{}',
		sort_order INTEGER NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		data JSON NOT NULL,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_positions_superior ON positions(superior_id);
	CREATE INDEX IF NOT EXISTS idx_positions_order ON positions(sort_order);
	`

	_, err := r.db.Exec(schema)
	return err
}

// LoadEntries returns every position in insertion order.
func (r *Repository) LoadEntries(ctx context.Context) ([]domain.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, code, label, superior_id, area, vacancies, salary, description, fields
		FROM positions
		ORDER BY sort_order, rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	entries := []domain.Entry{}
	for rows.Next() {
		var (
			id, label                              string
			code, superior, area, desc, fieldsJSON sql.NullString
			vacancies                              sql.NullInt64
			salary                                 sql.NullFloat64
		)
		if err := rows.Scan(&id, &code, &label, &superior, &area, &vacancies, &salary, &desc, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}

		e := domain.Entry{ID: id, Label: label, SuperiorID: nullToString(superior)}
		if err := unmarshalFields(fieldsJSON, &e.Fields); err != nil {
			return nil, fmt.Errorf("position %s: %w", id, err)
		}

		setIf := func(key string, ok bool, v any) {
			if !ok {
				return
			}
			if e.Fields == nil {
				e.Fields = make(map[string]any)
			}
			e.Fields[key] = v
		}
		setIf(colCode, code.Valid, code.String)
		setIf(colArea, area.Valid, area.String)
		setIf(colVacancies, vacancies.Valid, vacancies.Int64)
		setIf(colSalary, salary.Valid, salary.Float64)
		setIf(colDescription, desc.Valid, desc.String)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return entries, nil
}

// ReplaceEntries deletes every position and inserts entries, in a single transaction.
func (r *Repository) ReplaceEntries(ctx context.Context, entries []domain.Entry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
			return fmt.Errorf("failed to clear positions: %w", err)
		}
		return upsert(ctx, tx, entries, 0)
	})
}

// UpsertEntries inserts new positions after the existing ones and updates known ids in place.
func (r *Repository) UpsertEntries(ctx context.Context, entries []domain.Entry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM positions`).Scan(&next); err != nil {
			return fmt.Errorf("failed to read sort order: %w", err)
		}
		return upsert(ctx, tx, entries, next)
	})
}

// DeleteEntry removes a position. Subordinates keep their now dangling reference.
func (r *Repository) DeleteEntry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEntryNotFound, id)
	}
	return nil
}

// upsert writes entries; a repeated id updates the row but keeps its original sort order.
func upsert(ctx context.Context, tx *sql.Tx, entries []domain.Entry, start int64) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions (id, code, label, superior_id, area, vacancies, salary, description, fields, sort_order, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			label = excluded.label,
			superior_id = excluded.superior_id,
			area = excluded.area,
			vacancies = excluded.vacancies,
			salary = excluded.salary,
			description = excluded.description,
			fields = excluded.fields,
			updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if e.ID == "" {
			return domain.ErrMissingID
		}
		row := splitColumns(e.Fields)
		fieldsJSON, err := json.Marshal(row.rest)
		if err != nil {
			return fmt.Errorf("failed to marshal fields of %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, row.code, e.Label, stringToNull(e.SuperiorID), row.area,
			row.vacancies, row.salary, row.description, string(fieldsJSON), start+int64(i),
		); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", e.ID, err)
		}
	}
	return nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Save stores a named snapshot as a JSON document.
func (r *Repository) Save(ctx context.Context, name string, entries []domain.Entry) error {
	if entries == nil {
		entries = []domain.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, saved_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, saved_at = CURRENT_TIMESTAMP
	`, name, string(data))
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load retrieves a named snapshot.
func (r *Repository) Load(ctx context.Context, name string) ([]domain.Entry, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var entries []domain.Entry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return entries, nil
}

// Delete removes a named snapshot. Deleting an unknown name is not an error.
func (r *Repository) Delete(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

// List returns the snapshot names, sorted.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot name: %w", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// columns holds the promoted values of one row; nil means NULL.
type columns struct {
	code, area, description any
	vacancies, salary       any
	rest                    map[string]any
}

// splitColumns promotes well-typed known fields to their columns.
// Values of an unexpected type stay in the JSON fields column untouched.
func splitColumns(fields map[string]any) columns {
	row := columns{rest: map[string]any{}}
	for k, v := range fields {
		switch k {
		case colCode, colArea, colDescription:
			if s, ok := v.(string); ok {
				switch k {
				case colCode:
					row.code = s
				case colArea:
					row.area = s
				default:
					row.description = s
				}
				continue
			}
		case colVacancies:
			if n, ok := toInt64(v); ok {
				row.vacancies = n
				continue
			}
		case colSalary:
			if f, ok := toFloat64(v); ok {
				row.salary = f
				continue
			}
		}
		row.rest[k] = v
	}
	return row
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull stores an absent superior as NULL.
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// unmarshalFields decodes the JSON fields column, keeping numbers as json.Number.
func unmarshalFields(ns sql.NullString, target *map[string]any) error {
	if !ns.Valid || ns.String == "" || ns.String == "{}" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(ns.String)))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	if len(*target) == 0 {
		*target = nil
	}
	return nil
}
