// Package logindex keeps parsed log entries in an in-memory SQLite database
// so the viewer can filter and aggregate large logs without rescanning them.
// Nothing is written to disk.
package logindex

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/core"
	"github.com/hugo-lorenzo-mato/rocotoviewer/internal/parser"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var schemaV1 string

const entryColumns = "source, line_number, ts, level, task_id, cycle, job_id, exit_code, status, message, raw"

// Index is an in-memory log entry store.
type Index struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// Open creates an empty in-memory index.
func Open() (*Index, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening log index: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, stmt := range splitStatements(schemaV1) {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating log index schema: %w", err)
		}
	}
	return &Index{db: db}, nil
}

// splitStatements splits a SQL script into individual statements.
func splitStatements(script string) []string {
	var statements []string
	for _, stmt := range strings.Split(script, ";") {
		var sqlLines []string
		for _, line := range strings.Split(stmt, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				sqlLines = append(sqlLines, line)
			}
		}
		if len(sqlLines) > 0 {
			statements = append(statements, strings.Join(sqlLines, "\n"))
		}
	}
	return statements
}

// Insert adds entries in one transaction.
func (ix *Index) Insert(ctx context.Context, entries []core.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return fmt.Errorf("log index closed")
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO log_entries ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		var ts, exit any
		if e.Timestamp != nil {
			ts = e.Timestamp.UTC().Format(time.RFC3339)
		}
		if e.ExitCode != nil {
			exit = *e.ExitCode
		}
		if _, err := stmt.ExecContext(ctx, e.Source, e.LineNumber, ts, e.Level, e.TaskID,
			e.Cycle, e.JobID, exit, string(e.Status), e.Message, e.Raw); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting log entry: %w", err)
		}
	}
	return tx.Commit()
}

// Reset removes the entries of source, or every entry when source is "".
func (ix *Index) Reset(ctx context.Context, source string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	var err error
	if source == "" {
		_, err = ix.db.ExecContext(ctx, "DELETE FROM log_entries")
	} else {
		_, err = ix.db.ExecContext(ctx, "DELETE FROM log_entries WHERE source = ?", source)
	}
	return err
}

// Trim keeps only the newest keep entries of source.
func (ix *Index) Trim(ctx context.Context, source string, keep int) error {
	if keep <= 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	_, err := ix.db.ExecContext(ctx, `DELETE FROM log_entries WHERE source = ? AND id NOT IN (
		SELECT id FROM log_entries WHERE source = ? ORDER BY id DESC LIMIT ?)`, source, source, keep)
	return err
}

func whereClause(source string, f parser.LogFilter) (string, []any) {
	var conds []string
	var args []any
	if source != "" {
		conds = append(conds, "source = ?")
		args = append(args, source)
	}
	if f.Level != "" {
		conds = append(conds, "level = ? COLLATE NOCASE")
		args = append(args, f.Level)
	}
	if f.TaskID != "" {
		conds = append(conds, "task_id = ?")
		args = append(args, f.TaskID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Search != "" {
		conds = append(conds, `raw LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.Search)+"%")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Query returns the entries of source (all sources when "") matching f in
// insertion order. A positive limit keeps only the newest limit matches.
func (ix *Index) Query(ctx context.Context, source string, f parser.LogFilter, limit int) ([]core.LogEntry, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return nil, fmt.Errorf("log index closed")
	}

	where, args := whereClause(source, f)
	query := "SELECT id, " + entryColumns + " FROM log_entries" + where + " ORDER BY id"
	if limit > 0 {
		query = "SELECT * FROM (SELECT id, " + entryColumns + " FROM log_entries" + where +
			" ORDER BY id DESC LIMIT ?) ORDER BY id"
		args = append(args, limit)
	}

	rows, err := ix.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying log index: %w", err)
	}
	defer rows.Close()

	var out []core.LogEntry
	for rows.Next() {
		var (
			id   int64
			e    core.LogEntry
			ts   sql.NullString
			exit sql.NullInt64
			st   string
		)
		if err := rows.Scan(&id, &e.Source, &e.LineNumber, &ts, &e.Level, &e.TaskID,
			&e.Cycle, &e.JobID, &exit, &st, &e.Message, &e.Raw); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		if ts.Valid {
			if t, err := time.Parse(time.RFC3339, ts.String); err == nil {
				e.Timestamp = &t
			}
		}
		if exit.Valid {
			code := int(exit.Int64)
			e.ExitCode = &code
		}
		e.Status = core.TaskStatus(st)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary aggregates the entries of source, or all entries when "".
func (ix *Index) Summary(ctx context.Context, source string) (parser.LogSummary, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	sum := parser.LogSummary{LevelCounts: make(map[string]int), UniqueTasks: []string{}}
	if ix.closed {
		return sum, fmt.Errorf("log index closed")
	}
	where, args := whereClause(source, parser.LogFilter{})

	rows, err := ix.db.QueryContext(ctx, "SELECT level, COUNT(*) FROM log_entries"+where+" GROUP BY level", args...)
	if err != nil {
		return sum, fmt.Errorf("counting levels: %w", err)
	}
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			rows.Close()
			return sum, err
		}
		sum.LevelCounts[level] = n
		sum.Total += n
	}
	rows.Close()
	sum.HasErrors = sum.LevelCounts[core.LogLevelError] > 0

	taskWhere := " WHERE task_id != ''"
	if where != "" {
		taskWhere = where + " AND task_id != ''"
	}
	rows, err = ix.db.QueryContext(ctx, "SELECT DISTINCT task_id FROM log_entries"+taskWhere+" ORDER BY task_id", args...)
	if err != nil {
		return sum, fmt.Errorf("listing tasks: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return sum, err
		}
		sum.UniqueTasks = append(sum.UniqueTasks, id)
	}
	rows.Close()

	var first, last sql.NullString
	row := ix.db.QueryRowContext(ctx, "SELECT MIN(ts), MAX(ts) FROM log_entries"+where, args...)
	if err := row.Scan(&first, &last); err != nil {
		return sum, fmt.Errorf("reading time range: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, first.String); first.Valid && err == nil {
		sum.First = &t
	}
	if t, err := time.Parse(time.RFC3339, last.String); last.Valid && err == nil {
		sum.Last = &t
	}
	return sum, nil
}

// Count returns the number of stored entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.closed {
		return 0, nil
	}
	var n int
	err := ix.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM log_entries").Scan(&n)
	return n, err
}

// Close releases the database. The data is lost.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	return ix.db.Close()
}
