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
	"iter"
)

// This file provides shortcuts over the SQLQuery carried by a context,
// see ContextWithSQLQuery.

// QueryListContext runs the statement id and returns every row as a map.
func QueryListContext(ctx context.Context, id string, params ...any) ([]map[string]any, error) {
	q, err := SQLQueryFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.QueryForList(ctx, id, params...)
}

// QueryObjectContext runs the statement id and returns its only row.
func QueryObjectContext(ctx context.Context, id string, params ...any) (map[string]any, error) {
	q, err := SQLQueryFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.QueryForObject(ctx, id, params...)
}

// QueryMappedContext runs the statement id and converts its rows into T
// with the row mapper mapperID.
func QueryMappedContext[T any](ctx context.Context, id, mapperID string, params ...any) ([]T, error) {
	q, err := SQLQueryFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return QueryMapped[T](ctx, q, id, mapperID, params...)
}

// ExecContext runs the statement id and returns the number of affected rows.
func ExecContext(ctx context.Context, id string, params ...any) (int64, error) {
	q, err := SQLQueryFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return q.ExecuteUpdate(ctx, id, params...)
}

// QueryIterContext runs the statement id and streams its rows converted by
// the row mapper mapperID.
//
// IMPORTANT: The returned iterator MUST be iterated over (even partially),
// otherwise the underlying database rows will not be closed.
func QueryIterContext(ctx context.Context, id, mapperID string, params ...any) (iter.Seq2[any, error], error) {
	q, err := SQLQueryFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return q.QueryIter(ctx, id, mapperID, params...)
}
