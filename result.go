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

import "database/sql"

// BatchResult aggregates the results of the executions of one batch.
// RowsAffected is the sum over the batch and LastInsertId the id reported
// by the last execution that had one.
type BatchResult struct {
	totalRowsAffected int64
	lastInsertId      int64
}

// AccumulateResult adds result to the totals.
func (r *BatchResult) AccumulateResult(result sql.Result) {
	if result == nil {
		return
	}
	if rows, err := result.RowsAffected(); err == nil {
		r.totalRowsAffected += rows
	}
	if id, err := result.LastInsertId(); err == nil {
		r.lastInsertId = id
	}
}

// LastInsertId implements sql.Result.
func (r *BatchResult) LastInsertId() (int64, error) {
	return r.lastInsertId, nil
}

// RowsAffected implements sql.Result.
func (r *BatchResult) RowsAffected() (int64, error) {
	return r.totalRowsAffected, nil
}

var _ sql.Result = (*BatchResult)(nil)
