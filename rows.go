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
	"database/sql"
	"fmt"
	_ "unsafe" // for go:linkname
)

// Rows is the cursor MapRows reads from. *sql.Rows implements it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
	Columns() ([]string, error)
}

var _ Rows = (*sql.Rows)(nil)

// convertAssign is a linkname to the private convertAssign function in database/sql.
// It assigns driver values to Go variables following the rules of sql.Rows.Scan.
//
//go:linkname convertAssign database/sql.convertAssign
func convertAssign(dest, src any) error

// RowsBuffer is an in-memory Rows, used to replay or fake query results.
type RowsBuffer struct {
	ColumnsLine []string
	Data        [][]any
	index       int // 0 is before the first row
	closed      bool
}

// NewRowsBuffer returns a RowsBuffer over data.
func NewRowsBuffer(columns []string, data [][]any) *RowsBuffer {
	return &RowsBuffer{ColumnsLine: columns, Data: data}
}

// Columns returns the column names.
func (rb *RowsBuffer) Columns() ([]string, error) {
	if rb.closed {
		return nil, sql.ErrConnDone
	}
	return rb.ColumnsLine, nil
}

// Next advances to the next row.
func (rb *RowsBuffer) Next() bool {
	if rb.closed {
		return false
	}
	rb.index++
	return rb.index <= len(rb.Data)
}

// Scan copies the current row into dest.
func (rb *RowsBuffer) Scan(dest ...any) error {
	if rb.closed {
		return sql.ErrConnDone
	}
	if rb.index <= 0 || rb.index > len(rb.Data) {
		return sql.ErrNoRows
	}
	row := rb.Data[rb.index-1]
	if len(dest) != len(row) {
		return fmt.Errorf("sqlquery: expected %d destination arguments in Scan, not %d", len(row), len(dest))
	}
	for i := range dest {
		if err := convertAssign(dest[i], row[i]); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the buffer.
func (rb *RowsBuffer) Close() error {
	rb.closed = true
	return nil
}

// Err always returns nil.
func (rb *RowsBuffer) Err() error {
	return nil
}
