/*
Copyright 2023 eatmoreapple

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package sqlquery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"maps"

	"github.com/go-juicedev/sqlquery/dialect"
)

// ErrTooManyRows is returned by QueryForObject when the query yields more
// than one row.
var ErrTooManyRows = errors.New("sqlquery: more than one row")

// Executor runs SQL. *sql.DB, *sql.Tx and *sql.Conn implement it.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var (
	_ Executor = (*sql.DB)(nil)
	_ Executor = (*sql.Tx)(nil)
	_ Executor = (*sql.Conn)(nil)
)

// QueryOption configures a SQLQuery.
type QueryOption func(*SQLQuery)

// WithMiddlewares appends middlewares wrapping every execution.
func WithMiddlewares(middlewares ...Middleware) QueryOption {
	return func(q *SQLQuery) { q.middlewares = append(q.middlewares, middlewares...) }
}

// SQLQuery executes registered statements through an Executor.
// A SQLQuery holds no per-call state and is safe for concurrent use.
type SQLQuery struct {
	helper      *SQLHelper
	executor    Executor
	dialect     dialect.Dialect
	middlewares MiddlewareGroup
	additional  map[string]any
}

// NewSQLQuery returns a SQLQuery rendering statements of helper with the
// placeholders of d and running them on executor.
func NewSQLQuery(helper *SQLHelper, executor Executor, d dialect.Dialect, opts ...QueryOption) *SQLQuery {
	q := &SQLQuery{helper: helper, executor: executor, dialect: d}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Dialect returns the dialect of the rendered SQL.
func (q *SQLQuery) Dialect() dialect.Dialect {
	return q.dialect
}

// WithAdditionalParameters returns a copy of q whose statements fall back to
// additional for names the call parameters do not resolve.
func (q *SQLQuery) WithAdditionalParameters(additional map[string]any) *SQLQuery {
	clone := *q
	clone.additional = maps.Clone(additional)
	return &clone
}

// BoundSQL renders the statement id as it would be executed.
func (q *SQLQuery) BoundSQL(id string, params ...any) (*MappedStatement, *BoundSQL, error) {
	stmt, err := q.helper.MappedStatement(id)
	if err != nil {
		return nil, nil, err
	}
	bound, err := bindStatement(stmt, q.dialect.Translator(), params, q.additionalParam())
	if err != nil {
		return nil, nil, err
	}
	return stmt, bound, nil
}

// withTimeout applies the statement timeout, or the configuration default.
func (q *SQLQuery) withTimeout(ctx context.Context, stmt *MappedStatement) (context.Context, context.CancelFunc) {
	timeout := stmt.Timeout()
	if timeout == 0 {
		timeout = q.helper.Configuration().DefaultStatementTimeout()
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (q *SQLQuery) query(ctx context.Context, stmt *MappedStatement, bound *BoundSQL, read func(Rows) error) error {
	ctx, cancel := q.withTimeout(ctx, stmt)
	defer cancel()
	handler := q.middlewares.QueryContext(stmt, q.executor.QueryContext)
	rows, err := handler(ctx, bound.SQL, bound.Args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return read(rows)
}

func (q *SQLQuery) exec(ctx context.Context, stmt *MappedStatement, bound *BoundSQL) (sql.Result, error) {
	ctx, cancel := q.withTimeout(ctx, stmt)
	defer cancel()
	handler := q.middlewares.ExecContext(stmt, q.executor.ExecContext)
	return handler(ctx, bound.SQL, bound.Args...)
}

// columnMapper copies every column into a map under its own name.
var columnMapper = NewMapperSource("", "", nil, nil)

func readMaps(rows Rows) ([]map[string]any, error) {
	return ScanMapped[map[string]any](rows, columnMapper)
}

// QueryForList runs the statement id and returns every row as a map.
func (q *SQLQuery) QueryForList(ctx context.Context, id string, params ...any) ([]map[string]any, error) {
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return nil, err
	}
	var list []map[string]any
	err = q.query(ctx, stmt, bound, func(rows Rows) (err error) {
		list, err = readMaps(rows)
		return err
	})
	return list, err
}

// QueryForObject runs the statement id and returns its only row. No row is
// sql.ErrNoRows and several rows are ErrTooManyRows.
func (q *SQLQuery) QueryForObject(ctx context.Context, id string, params ...any) (map[string]any, error) {
	list, err := q.QueryForList(ctx, id, params...)
	if err != nil {
		return nil, err
	}
	switch len(list) {
	case 0:
		return nil, sql.ErrNoRows
	case 1:
		return list[0], nil
	default:
		return nil, fmt.Errorf("statement %q returned %d rows: %w", id, len(list), ErrTooManyRows)
	}
}

// QueryForPage runs the statement id rewritten by the dialect to return at
// most limit rows starting at offset. Offset must not be negative and limit
// must be positive.
func (q *SQLQuery) QueryForPage(ctx context.Context, id string, offset, limit int64, params ...any) ([]map[string]any, error) {
	if offset < 0 || limit <= 0 {
		return nil, fmt.Errorf("%w: offset=%d limit=%d", dialect.ErrInvalidRange, offset, limit)
	}
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return nil, err
	}
	paged, err := bound.Paginate(q.dialect, offset, limit)
	if err != nil {
		return nil, err
	}
	var list []map[string]any
	err = q.query(ctx, stmt, paged, func(rows Rows) (err error) {
		list, err = readMaps(rows)
		return err
	})
	return list, err
}

// QueryForMapped runs the statement id and converts its rows with the row
// mapper mapperID.
func (q *SQLQuery) QueryForMapped(ctx context.Context, id, mapperID string, params ...any) ([]any, error) {
	src, err := q.helper.MapperSource(mapperID)
	if err != nil {
		return nil, err
	}
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return nil, err
	}
	var list []any
	err = q.query(ctx, stmt, bound, func(rows Rows) (err error) {
		list, err = src.MapRows(rows)
		return err
	})
	return list, err
}

// QueryMapped is QueryForMapped for a row mapper producing T.
func QueryMapped[T any](ctx context.Context, q *SQLQuery, id, mapperID string, params ...any) ([]T, error) {
	src, err := q.helper.MapperSource(mapperID)
	if err != nil {
		return nil, err
	}
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return nil, err
	}
	var list []T
	err = q.query(ctx, stmt, bound, func(rows Rows) (err error) {
		list, err = ScanMapped[T](rows, src)
		return err
	})
	return list, err
}

// ExecuteUpdate runs the statement id and returns the number of affected rows.
func (q *SQLQuery) ExecuteUpdate(ctx context.Context, id string, params ...any) (int64, error) {
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return 0, err
	}
	result, err := q.exec(ctx, stmt, bound)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ExecuteBatch runs the statement id once per element of batch, stopping at
// the first error. Run it on a *sql.Tx to make the batch atomic.
func (q *SQLQuery) ExecuteBatch(ctx context.Context, id string, batch []any) (sql.Result, error) {
	stmt, err := q.helper.MappedStatement(id)
	if err != nil {
		return nil, err
	}
	var result BatchResult
	for i, param := range batch {
		bound, err := bindStatement(stmt, q.dialect.Translator(), []any{param}, q.additionalParam())
		if err != nil {
			return &result, fmt.Errorf("batch item %d: %w", i, err)
		}
		res, err := q.exec(ctx, stmt, bound)
		if err != nil {
			return &result, fmt.Errorf("batch item %d: %w", i, err)
		}
		result.AccumulateResult(res)
	}
	return &result, nil
}

// Call runs a callable statement. Declared IN parameters take the value
// of params at their 1-based index and OUT parameters are read back; both
// follow the arguments bound by the statement body. The returned map holds
// the OUT values by name.
func (q *SQLQuery) Call(ctx context.Context, id string, params ...any) (map[string]any, error) {
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return nil, err
	}
	args := append([]any(nil), bound.Args...)
	outs := make(map[string]*any)
	for _, mapping := range stmt.ParameterMappings() {
		var in any
		if mapping.Mode.ForRead() {
			if mapping.Index < 1 || mapping.Index > len(params) {
				return nil, &ParameterBindingError{Name: mapping.Name, Reason: fmt.Sprintf("index %d out of range", mapping.Index)}
			}
			in = params[mapping.Index-1]
		}
		if !mapping.Mode.ForWrite() {
			args = append(args, in)
			continue
		}
		dest := new(any)
		*dest = in
		outs[mapping.Name] = dest
		args = append(args, sql.Out{Dest: dest, In: mapping.Mode.ForRead()})
	}
	bound = &BoundSQL{StatementID: bound.StatementID, SQL: bound.SQL, Args: args, ParameterMappings: bound.ParameterMappings}
	if _, err = q.exec(ctx, stmt, bound); err != nil {
		return nil, err
	}
	result := make(map[string]any, len(outs))
	for name, dest := range outs {
		result[name] = *dest
	}
	return result, nil
}

func (q *SQLQuery) additionalParam() any {
	if q.additional == nil {
		return nil
	}
	return q.additional
}

// QueryIter runs the statement id and streams its rows converted by the
// row mapper mapperID. The rows are closed when the iteration ends.
//
// IMPORTANT: The returned iterator MUST be iterated over (even partially),
// otherwise the underlying database rows will not be closed.
func (q *SQLQuery) QueryIter(ctx context.Context, id, mapperID string, params ...any) (iter.Seq2[any, error], error) {
	src, err := q.helper.MapperSource(mapperID)
	if err != nil {
		return nil, err
	}
	stmt, bound, err := q.BoundSQL(id, params...)
	if err != nil {
		return nil, err
	}
	ctx, cancel := q.withTimeout(ctx, stmt)
	handler := q.middlewares.QueryContext(stmt, q.executor.QueryContext)
	rows, err := handler(ctx, bound.SQL, bound.Args...)
	if err != nil {
		cancel()
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		cancel()
		return nil, err
	}
	return func(yield func(any, error) bool) {
		defer cancel()
		defer func() { _ = rows.Close() }()
		for rows.Next() {
			values := make([]any, len(columns))
			dest := make([]any, len(columns))
			for i := range values {
				dest[i] = &values[i]
			}
			if err := rows.Scan(dest...); err != nil {
				yield(nil, err)
				return
			}
			if !yield(src.MapRow(columns, values)) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}, nil
}
