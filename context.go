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
	"errors"
)

// ErrNoQueryFoundInContext is returned when a context carries no SQLQuery.
var ErrNoQueryFoundInContext = errors.New("sqlquery: no SQLQuery found in context")

type queryKey struct{}

// ContextWithSQLQuery returns a new context carrying q.
func ContextWithSQLQuery(ctx context.Context, q *SQLQuery) context.Context {
	return context.WithValue(ctx, queryKey{}, q)
}

// SQLQueryFromContext returns the SQLQuery carried by ctx.
func SQLQueryFromContext(ctx context.Context) (*SQLQuery, error) {
	q, ok := ctx.Value(queryKey{}).(*SQLQuery)
	if !ok || q == nil {
		return nil, ErrNoQueryFoundInContext
	}
	return q, nil
}
