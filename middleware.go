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
	"log/slog"
	"time"
)

// QueryHandler runs a query.
type QueryHandler func(ctx context.Context, query string, args ...any) (*sql.Rows, error)

// ExecHandler runs a statement that returns no rows.
type ExecHandler func(ctx context.Context, query string, args ...any) (sql.Result, error)

// Middleware is a wrapper of QueryHandler and ExecHandler.
type Middleware interface {
	// QueryContext wraps the QueryHandler.
	QueryContext(stmt *MappedStatement, next QueryHandler) QueryHandler
	// ExecContext wraps the ExecHandler.
	ExecContext(stmt *MappedStatement, next ExecHandler) ExecHandler
}

// ensure MiddlewareGroup implements Middleware.
var _ Middleware = MiddlewareGroup(nil) // compile time check

// MiddlewareGroup is a group of Middleware. The last one runs first.
type MiddlewareGroup []Middleware

// QueryContext implements Middleware.
func (m MiddlewareGroup) QueryContext(stmt *MappedStatement, next QueryHandler) QueryHandler {
	for _, middleware := range m {
		next = middleware.QueryContext(stmt, next)
	}
	return next
}

// ExecContext implements Middleware.
func (m MiddlewareGroup) ExecContext(stmt *MappedStatement, next ExecHandler) ExecHandler {
	for _, middleware := range m {
		next = middleware.ExecContext(stmt, next)
	}
	return next
}

// ensure DebugMiddleware implements Middleware.
var _ Middleware = (*DebugMiddleware)(nil) // compile time check

// DebugMiddleware logs every statement with its arguments and elapsed time
// at debug level, and warns about statements slower than SlowThreshold.
// A statement with the attribute debug="false" is not logged.
type DebugMiddleware struct {
	// Logger defaults to the package logger.
	Logger *slog.Logger

	// SlowThreshold disables slow statement warnings when zero.
	SlowThreshold time.Duration
}

// QueryContext implements Middleware.
func (m *DebugMiddleware) QueryContext(stmt *MappedStatement, next QueryHandler) QueryHandler {
	if stmt.Attribute("debug") == "false" {
		return next
	}
	return func(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
		start := time.Now()
		rows, err := next(ctx, query, args...)
		m.log(ctx, stmt, query, args, time.Since(start), err)
		return rows, err
	}
}

// ExecContext implements Middleware.
func (m *DebugMiddleware) ExecContext(stmt *MappedStatement, next ExecHandler) ExecHandler {
	if stmt.Attribute("debug") == "false" {
		return next
	}
	return func(ctx context.Context, query string, args ...any) (sql.Result, error) {
		start := time.Now()
		result, err := next(ctx, query, args...)
		m.log(ctx, stmt, query, args, time.Since(start), err)
		return result, err
	}
}

func (m *DebugMiddleware) log(ctx context.Context, stmt *MappedStatement, query string, args []any, spent time.Duration, err error) {
	logger := m.Logger
	if logger == nil {
		logger = Logger()
	}
	attrs := []any{"id", stmt.ID(), "sql", query, "args", args, "elapsed", spent}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	logger.DebugContext(ctx, "statement executed", attrs...)
	if m.SlowThreshold > 0 && spent >= m.SlowThreshold {
		logger.WarnContext(ctx, "slow query detected", "id", stmt.ID(), "elapsed", spent, "threshold", m.SlowThreshold)
	}
}
