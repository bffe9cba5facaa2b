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
)

// TxOption sets a transaction option.
type TxOption func(options *sql.TxOptions)

// WithIsolationLevel sets the isolation level of the transaction.
func WithIsolationLevel(level sql.IsolationLevel) TxOption {
	return func(options *sql.TxOptions) {
		options.Isolation = level
	}
}

// WithReadOnly sets the read-only flag of the transaction.
func WithReadOnly(readOnly bool) TxOption {
	return func(options *sql.TxOptions) {
		options.ReadOnly = readOnly
	}
}

// TxBeginner starts transactions. *sql.DB and *sql.Conn implement it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Atomic runs fn with a copy of q executing inside one transaction of db.
// The transaction commits when fn returns nil and rolls back otherwise.
func (q *SQLQuery) Atomic(ctx context.Context, db TxBeginner, fn func(ctx context.Context, tx *SQLQuery) error, opts ...TxOption) (err error) {
	var opt *sql.TxOptions
	if len(opts) > 0 {
		opt = new(sql.TxOptions)
		for _, o := range opts {
			o(opt)
		}
	}
	tx, err := db.BeginTx(ctx, opt)
	if err != nil {
		return err
	}
	defer func() {
		// a committed transaction reports sql.ErrTxDone
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			err = errors.Join(err, rollbackErr)
		}
	}()

	scoped := *q
	scoped.executor = tx
	if err = fn(ctx, &scoped); err != nil {
		return err
	}
	return tx.Commit()
}
