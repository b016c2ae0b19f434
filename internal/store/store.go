// Package store is a small record-store adapter over database/sql.
//
// It exposes table-oriented lookups and writes ([Store.FindOne], [Store.Insert], ...) that return generic [Record] values.
// Table and column names are checked against a strict identifier pattern and are never taken from request input;
// every value is passed as a bound parameter.
// Placeholders are written as "?" and rebound to "$n" for postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/desertthunder/playr/internal/shared"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by [Store.FindOne] when no row matches.
var ErrNotFound = shared.ErrNotFound

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Predicate is a set of column = value conditions joined with AND.
type Predicate map[string]any

// Fields maps column names to the values written by [Store.Insert] and [Store.Update].
type Fields map[string]any

// Store executes parameterized queries against a pooled [sql.DB].
type Store struct {
	db     *sql.DB
	driver string
}

// New wraps db. driver selects the placeholder dialect and defaults to sqlite3.
func New(db *sql.DB, driver string) *Store {
	if driver == "" {
		driver = shared.DriverSQLite
	}
	return &Store{db: db, driver: driver}
}

// FindOne returns the first row of table matching where, or [ErrNotFound].
func (s *Store) FindOne(ctx context.Context, table string, where Predicate) (Record, error) {
	records, err := s.find(ctx, table, where, "", 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, table)
	}
	return records[0], nil
}

// FindAll returns every row of table matching where. orderBy is a column name, optionally suffixed with " DESC".
func (s *Store) FindAll(ctx context.Context, table string, where Predicate, orderBy string) ([]Record, error) {
	return s.find(ctx, table, where, orderBy, 0)
}

// Insert writes one row and returns its generated id.
func (s *Store) Insert(ctx context.Context, table string, fields Fields) (int64, error) {
	if err := checkIdentifier(table); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no fields to insert into %s", shared.ErrInvalidInput, table)
	}

	cols, args, err := split(fields)
	if err != nil {
		return 0, err
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id", table, strings.Join(cols, ", "), marks)

	var id int64
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&id); err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s: %v", shared.ErrAlreadyExists, table, err)
		}
		return 0, fmt.Errorf("%w: insert into %s: %v", shared.ErrStore, table, err)
	}
	return id, nil
}

// Update sets fields on every row matching where and returns the number of rows affected.
func (s *Store) Update(ctx context.Context, table string, fields Fields, where Predicate) (int64, error) {
	if err := checkIdentifier(table); err != nil {
		return 0, err
	}
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: no fields to update in %s", shared.ErrInvalidInput, table)
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: refusing unconditional update of %s", shared.ErrInvalidInput, table)
	}

	cols, args, err := split(fields)
	if err != nil {
		return 0, err
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}

	clause, whereArgs, err := whereClause(where)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(sets, ", "), clause)
	return s.exec(ctx, table, query, append(args, whereArgs...))
}

// Delete removes every row matching where and returns the number of rows affected.
func (s *Store) Delete(ctx context.Context, table string, where Predicate) (int64, error) {
	if err := checkIdentifier(table); err != nil {
		return 0, err
	}
	if len(where) == 0 {
		return 0, fmt.Errorf("%w: refusing unconditional delete from %s", shared.ErrInvalidInput, table)
	}

	clause, args, err := whereClause(where)
	if err != nil {
		return 0, err
	}
	return s.exec(ctx, table, "DELETE FROM "+table+clause, args)
}

func (s *Store) exec(ctx context.Context, table, query string, args []any) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s: %v", shared.ErrAlreadyExists, table, err)
		}
		return 0, fmt.Errorf("%w: %s: %v", shared.ErrStore, table, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get affected rows: %v", shared.ErrStore, err)
	}
	return rows, nil
}

func (s *Store) find(ctx context.Context, table string, where Predicate, orderBy string, limit int) ([]Record, error) {
	if err := checkIdentifier(table); err != nil {
		return nil, err
	}

	clause, args, err := whereClause(where)
	if err != nil {
		return nil, err
	}

	query := "SELECT * FROM " + table + clause
	if orderBy != "" {
		col, desc := strings.CutSuffix(orderBy, " DESC")
		if err := checkIdentifier(col); err != nil {
			return nil, err
		}
		query += " ORDER BY " + col
		if desc {
			query += " DESC"
		}
	}
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s: %v", shared.ErrStore, table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: columns of %s: %v", shared.ErrStore, table, err)
	}

	var records []Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %v", shared.ErrStore, table, err)
		}

		record := make(Record, len(cols))
		for i, c := range cols {
			record[c] = normalize(values[i])
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", shared.ErrStore, err)
	}

	return records, nil
}

// rebind rewrites "?" placeholders into the driver's dialect.
func (s *Store) rebind(query string) string {
	if s.driver != shared.DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsUniqueViolation reports whether err is a duplicate-key failure from sqlite3 or postgres.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrAlreadyExists) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return false
}

func checkIdentifier(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", shared.ErrInvalidArgument, name)
	}
	return nil
}

// split returns the columns of fields in sorted order with their values.
func split(fields map[string]any) ([]string, []any, error) {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		if err := checkIdentifier(c); err != nil {
			return nil, nil, err
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = fields[c]
	}
	return cols, args, nil
}

func whereClause(where Predicate) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	cols, args, err := split(where)
	if err != nil {
		return "", nil, err
	}

	conds := make([]string, len(cols))
	for i, c := range cols {
		conds[i] = c + " = ?"
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
