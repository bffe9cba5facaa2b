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
	"fmt"

	"github.com/go-juicedev/sqlquery/dialect"
)

// BoundSQL is a rendered statement: the SQL text and one argument per
// placeholder, in placeholder order. It is created per call.
type BoundSQL struct {
	StatementID       string
	SQL               string
	Args              []any
	ParameterMappings []ParameterMapping
}

// Paginate returns a copy of b whose SQL is rewritten by d to read limit
// rows starting at offset.
func (b *BoundSQL) Paginate(d dialect.Dialect, offset, limit int64) (*BoundSQL, error) {
	query, err := d.ApplyPagination(b.SQL, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("statement %q: %w", b.StatementID, err)
	}
	paged := *b
	paged.SQL = query
	return &paged, nil
}

// String returns the SQL text.
func (b *BoundSQL) String() string {
	return b.SQL
}
