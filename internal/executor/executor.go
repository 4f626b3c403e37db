// Package executor runs SQL statements against the company SQLite database
// and renders the outcome as a JSON document.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"github.com/asksql/asksql/internal/metrics"
)

// errMultipleStatements is SQLite's own wording for a rejected batch.
const errMultipleStatements = "You can only execute one statement at a time."

// Config controls how statements are executed.
type Config struct {
	// Path is the database file. It is never created.
	Path string
	// ReadOnly opens the file read-only and rejects statements that may write.
	ReadOnly bool
	// MaxRows caps the number of returned records. Zero means unlimited.
	MaxRows int
}

// Executor executes statements against a single database file. Every call
// opens and closes its own connection, so an Executor is safe for concurrent
// use.
type Executor struct {
	path     string
	driver   string
	dsn      string
	readOnly bool
	maxRows  int
	log      *slog.Logger
}

// New creates an Executor for cfg. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{
		path:     cfg.Path,
		driver:   "sqlite",
		dsn:      buildDSN(cfg.Path, cfg.ReadOnly),
		readOnly: cfg.ReadOnly,
		maxRows:  cfg.MaxRows,
		log:      logger,
	}
}

// buildDSN opens the file without SQLITE_OPEN_CREATE semantics.
func buildDSN(path string, readOnly bool) string {
	if readOnly {
		return "file:" + path + "?mode=ro&_pragma=query_only(1)"
	}
	return "file:" + path + "?mode=rw"
}

// Path returns the database file path.
func (e *Executor) Path() string { return e.path }

// Execute runs sql and returns the JSON rendering of its Result. It never
// fails: every error is reported inside the returned document.
func (e *Executor) Execute(ctx context.Context, sql string) string {
	return e.Run(ctx, sql).JSON()
}

// Run executes sql and returns a structured Result. Input holding more than
// one statement is refused before the database is touched. Panics raised
// while executing are recovered and reported as KindUnclassified.
func (e *Executor) Run(ctx context.Context, sql string) (res Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = failure(KindUnclassified, "%v", r)
		}
		elapsed := time.Since(start)
		metrics.ExecutorResultsTotal.WithLabelValues(res.Kind.String()).Inc()
		metrics.ExecutorDuration.Observe(elapsed.Seconds())
		if res.OK() {
			metrics.ExecutorRowsReturned.Observe(float64(len(res.Records)))
			e.log.Debug("sql executed", "rows", len(res.Records), "duration", elapsed)
		} else {
			e.log.Warn("sql execution failed", "kind", res.Kind.String(), "message", res.Message, "duration", elapsed)
		}
	}()

	// Any stat failure counts as absent; nothing is opened in that case.
	if _, err := os.Stat(e.path); err != nil {
		return failure(KindMissingDatabase, "Database file '%s' not found.", e.path)
	}

	if _, statements := scanWords(sql); statements > 1 {
		return failure(KindDatabase, "Database error: %s", errMultipleStatements)
	}

	if e.readOnly {
		if err := CheckReadOnly(sql); err != nil {
			return failure(KindRejected, "Query rejected: %v", err)
		}
	}

	columns, records, err := e.query(ctx, sql)
	if err != nil {
		return failure(KindDatabase, "Database error: %s", driverMessage(err))
	}
	return success(columns, records)
}

// query opens a pool with a single connection, runs sql and releases rows,
// connection and pool before returning.
func (e *Executor) query(ctx context.Context, sql string) ([]string, []Record, error) {
	db, err := sqlx.Open(e.driver, e.dsn)
	if err != nil {
		return nil, nil, err
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryxContext(ctx, sql)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	records := make([]Record, 0)
	for rows.Next() {
		if e.maxRows > 0 && len(records) >= e.maxRows {
			break
		}
		values, err := rows.SliceScan()
		if err != nil {
			return nil, nil, err
		}
		records = append(records, zip(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, records, nil
}

// sqliteMessage matches "<errstr>: <errmsg> (<code>)" produced by the driver.
var sqliteMessage = regexp.MustCompile(`^(?:[^:]+: )?(.*?) \(\d+\)(?: \(SQLITE_BUSY\))?$`)

// driverMessage returns SQLite's own error message without the driver's
// result-code decoration.
func driverMessage(err error) string {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		if m := sqliteMessage.FindStringSubmatch(serr.Error()); m != nil {
			return m[1]
		}
		return serr.Error()
	}
	return fmt.Sprint(err)
}
