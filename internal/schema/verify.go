package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrDatabaseMissing is returned by VerifyFile when the database file does not exist.
var ErrDatabaseMissing = errors.New("database file not found")

// tableInfoRow holds a row from PRAGMA table_info().
type tableInfoRow struct {
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// Report describes how a live database differs from the Schema Description.
// Extra tables and columns are reported but do not make the report fail.
type Report struct {
	Tables         []string            `json:"tables"`
	MissingTables  []string            `json:"missing_tables,omitempty"`
	MissingColumns map[string][]string `json:"missing_columns,omitempty"`
	ExtraTables    []string            `json:"extra_tables,omitempty"`
}

// OK reports whether every described table and column exists.
func (r *Report) OK() bool {
	return len(r.MissingTables) == 0 && len(r.MissingColumns) == 0
}

// Problems returns a human-readable line per mismatch.
func (r *Report) Problems() []string {
	var out []string
	for _, t := range r.MissingTables {
		out = append(out, fmt.Sprintf("missing table %s", t))
	}
	names := make([]string, 0, len(r.MissingColumns))
	for t := range r.MissingColumns {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		out = append(out, fmt.Sprintf("table %s is missing columns: %s", t, strings.Join(r.MissingColumns[t], ", ")))
	}
	return out
}

// Verify compares the tables in db against Tables. It only reads from
// sqlite_master and PRAGMA table_info.
func Verify(ctx context.Context, db *sqlx.DB) (*Report, error) {
	const query = `SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var names []string
	if err := db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	report := &Report{Tables: names}
	described := make(map[string]bool, len(Tables))
	for _, t := range Tables {
		described[t.Name] = true
		if !present[t.Name] {
			report.MissingTables = append(report.MissingTables, t.Name)
			continue
		}

		pragma := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(t.Name))
		var cols []tableInfoRow
		if err := db.SelectContext(ctx, &cols, pragma); err != nil {
			return nil, fmt.Errorf("table_info for %q: %w", t.Name, err)
		}
		have := make(map[string]bool, len(cols))
		for _, c := range cols {
			have[c.Name] = true
		}
		for _, c := range t.Columns {
			if !have[c.Name] {
				if report.MissingColumns == nil {
					report.MissingColumns = make(map[string][]string)
				}
				report.MissingColumns[t.Name] = append(report.MissingColumns[t.Name], c.Name)
			}
		}
	}

	for _, n := range names {
		if !described[n] {
			report.ExtraTables = append(report.ExtraTables, n)
		}
	}
	return report, nil
}

// VerifyFile opens the SQLite file at path read-only, verifies it and closes
// it again. A missing file yields ErrDatabaseMissing and is never created.
func VerifyFile(ctx context.Context, path string) (*Report, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseMissing, path)
		}
		return nil, fmt.Errorf("stat database: %w", err)
	}

	db, err := sqlx.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	return Verify(ctx, db)
}

// quoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
