// Package sqlite provides a driver persisting objects as canonical JSON
// documents in SQLite.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Documents are written with ir.MarshalCanonical so identical objects are
// byte-identical on disk. Structured queries are compiled by querysql into
// json_extract filters; every query ends with "id ASC COLLATE BINARY" so
// results are deterministic.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/objgate/internal/driver"
	"github.com/roach88/objgate/internal/ir"
	"github.com/roach88/objgate/internal/queryir"
	"github.com/roach88/objgate/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on objects.type for full-type scans
const currentSchemaVersion = 1

// Driver stores objects in a single SQLite table.
type Driver struct {
	db       *sql.DB
	compiler *querysql.Compiler
}

var _ driver.Driver = (*Driver)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// This also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Driver{db: db, compiler: querysql.NewCompiler()}, nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_objects_type ON objects(type)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Get returns the object or nil when it does not exist.
func (d *Driver) Get(ctx context.Context, typ, id string, opts driver.Options) (ir.Object, error) {
	var doc string
	err := d.db.QueryRowContext(ctx,
		`SELECT doc FROM objects WHERE type = ? AND id = ?`, typ, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", typ, id, err)
	}
	obj, err := ir.UnmarshalObject([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: decode: %w", typ, id, err)
	}
	return obj.Project(opts.ID(), opts.View), nil
}

// Put upserts obj keyed by (typ, id).
func (d *Driver) Put(ctx context.Context, typ string, obj ir.Object, opts driver.Options) error {
	id := obj.ID(opts.ID())
	if id == "" {
		return ir.InvalidInput("put %s: object has no %q field", typ, opts.ID())
	}
	doc, err := ir.MarshalCanonical(obj)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", typ, id, err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO objects (type, id, doc)
		VALUES (?, ?, ?)
		ON CONFLICT(type, id) DO UPDATE SET doc = excluded.doc
	`, typ, id, string(doc))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", typ, id, err)
	}
	return nil
}

// Delete removes the object and reports how many rows were removed.
func (d *Driver) Delete(ctx context.Context, typ, id string, _ driver.Options) (int, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM objects WHERE type = ? AND id = ?`, typ, id)
	if err != nil {
		return 0, fmt.Errorf("delete %s/%s: %w", typ, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s/%s: %w", typ, id, err)
	}
	return int(n), nil
}

// Query returns the objects matching a structured query.
func (d *Driver) Query(ctx context.Context, typ string, query any, opts driver.Options) ([]ir.Object, error) {
	sel, err := queryir.Parse(query)
	if err != nil {
		return nil, err
	}
	where, whereParams, err := d.compiler.Where(sel.Filter)
	if err != nil {
		return nil, err
	}

	sortKeys := opts.Sort
	if len(sortKeys) == 0 {
		sortKeys = sel.Sort
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = sel.Limit
	}

	orderBy, orderParams := d.compiler.OrderBy(sortKeys)
	stmt := fmt.Sprintf(`SELECT doc FROM objects WHERE type = ? AND %s ORDER BY %s`, where, orderBy)
	params := append([]any{typ}, whereParams...)
	params = append(params, orderParams...)
	if limit > 0 {
		stmt += " LIMIT ?"
		params = append(params, limit)
	}

	return d.scan(ctx, stmt, params, opts, nil)
}

// Search returns objects with a string value containing text, ignoring
// case. SQLite narrows candidates by document text; the final match ignores
// hits on field names.
func (d *Driver) Search(ctx context.Context, typ, text string, opts driver.Options) ([]ir.Object, error) {
	orderBy, orderParams := d.compiler.OrderBy(opts.Sort)
	stmt := fmt.Sprintf(`SELECT doc FROM objects WHERE type = ? AND instr(lower(doc), lower(?)) > 0 ORDER BY %s`, orderBy)
	params := append([]any{typ, text}, orderParams...)

	objs, err := d.scan(ctx, stmt, params, opts, func(obj ir.Object) bool {
		return queryir.MatchText(obj, text)
	})
	if err != nil {
		return nil, err
	}
	if opts.Limit > 0 && len(objs) > opts.Limit {
		objs = objs[:opts.Limit]
	}
	return objs, nil
}

func (d *Driver) scan(ctx context.Context, stmt string, params []any, opts driver.Options, keep func(ir.Object) bool) ([]ir.Object, error) {
	rows, err := d.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	objs := []ir.Object{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		obj, err := ir.UnmarshalObject([]byte(doc))
		if err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		if keep != nil && !keep(obj) {
			continue
		}
		objs = append(objs, obj.Project(opts.ID(), opts.View))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objects: %w", err)
	}
	return objs, nil
}
