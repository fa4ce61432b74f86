// Package db wraps the DuckDB store that holds imported layer data, and runs
// layer filters against it.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-layers/internal/filter/expr"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

var (
	// ErrInvalidTable is returned for table names that are not plain identifiers.
	ErrInvalidTable = errors.New("invalid table name")
	// ErrInvalidFilter is returned for where clauses outside the filter language.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Config holds database configuration.
type Config struct {
	DataDir string
	// DBName names the database file under DataDir/duckdb. An empty name
	// opens an in-memory database.
	DBName string
	// Extensions are installed and loaded on open, best effort.
	Extensions []string
}

// Open opens a DuckDB database.
func Open(cfg Config) (*sql.DB, error) {
	dsn := ""
	if cfg.DBName != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	for _, ext := range cfg.Extensions {
		// Extensions might already be installed, or unavailable offline.
		_, _ = conn.Exec(fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext))
	}
	return conn, nil
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Close closes the singleton connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidTable)
	}
	return `"` + name + `"`, nil
}

// Tables lists the tables of the database.
func Tables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// CountMatching counts the rows of table satisfying the filter expression
// where. An empty where counts every row. where must be an expression of the
// filter language; anything else fails with ErrInvalidFilter.
func CountMatching(ctx context.Context, db *sql.DB, table, where string) (int64, error) {
	q, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}
	query := "SELECT count(*) FROM " + q
	if strings.TrimSpace(where) != "" {
		// go-duckdb runs every statement of a query string
		if _, err := expr.Parse(where); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
		}
		query += " WHERE " + where
	}

	var n int64
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}

// ImportFeatures replaces table with the features of fc: one column per
// property plus the geometry as WKT in column geom_wkt. Column types are
// inferred from the property values: DOUBLE for numbers, BOOLEAN for
// booleans and VARCHAR otherwise.
func ImportFeatures(ctx context.Context, db *sql.DB, table string, fc *geojson.FeatureCollection) (int, error) {
	q, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}

	types := map[string]string{}
	for _, f := range fc.Features {
		for k, v := range f.Properties {
			types[k] = mergeType(types[k], v)
		}
	}
	cols := make([]string, 0, len(types))
	for k := range types {
		if !identRe.MatchString(k) {
			continue
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)

	defs := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		defs = append(defs, fmt.Sprintf(`"%s" %s`, c, sqlType(types[c])))
	}
	defs = append(defs, `"geom_wkt" VARCHAR`)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", q, strings.Join(defs, ", "))); err != nil {
		return 0, fmt.Errorf("creating %s: %w", table, err)
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)+1), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", q, marks))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, f := range fc.Features {
		args := make([]any, 0, len(cols)+1)
		for _, c := range cols {
			args = append(args, columnValue(types[c], f.Properties[c]))
		}
		var geom any
		if f.Geometry != nil {
			geom = wkt.MarshalString(f.Geometry)
		}
		args = append(args, geom)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(fc.Features), nil
}

const (
	typeNumber = "number"
	typeBool   = "bool"
	typeText   = "text"
)

func mergeType(cur string, v any) string {
	var t string
	switch v.(type) {
	case nil:
		return cur
	case float64, int, int64:
		t = typeNumber
	case bool:
		t = typeBool
	default:
		t = typeText
	}
	if cur == "" || cur == t {
		return t
	}
	return typeText
}

func sqlType(t string) string {
	switch t {
	case typeNumber:
		return "DOUBLE"
	case typeBool:
		return "BOOLEAN"
	}
	return "VARCHAR"
}

func columnValue(t string, v any) any {
	if v == nil {
		return nil
	}
	if t == typeText {
		switch x := v.(type) {
		case string:
			return x
		default:
			return fmt.Sprint(x)
		}
	}
	return v
}
