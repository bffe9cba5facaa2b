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

package dialect

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"modernc.org/sqlite"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestResolverProbesAndCaches(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT version()").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.1"))

	resolver := NewResolver(nil)
	d, err := resolver.Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	// cached: no further queries expected
	d, err = resolver.Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverFallsThroughFailedProbes(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT version()").WillReturnError(errors.New("unknown function"))
	mock.ExpectQuery("SELECT @@version_comment").WillReturnError(errors.New("unknown variable"))
	mock.ExpectQuery("SELECT @@VERSION").
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow("Microsoft SQL Server 2022"))

	d, err := NewResolver(nil).Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, SQLServer, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverMySQLVersionNumber(t *testing.T) {
	db, mock := newMock(t)
	// MySQL answers version() with a bare number
	mock.ExpectQuery("SELECT version()").
		WillReturnRows(sqlmock.NewRows([]string{"version()"}).AddRow("8.0.36"))
	mock.ExpectQuery("SELECT @@version_comment").
		WillReturnRows(sqlmock.NewRows([]string{"@@version_comment"}).AddRow("MySQL Community Server - GPL"))

	d, err := NewResolver(nil).Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, MySQL, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverUnknownProductIsDefault(t *testing.T) {
	db, mock := newMock(t)
	for _, query := range probes {
		mock.ExpectQuery(query).WillReturnError(errors.New("nope"))
	}
	d, err := NewResolver(nil).Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Default, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverConnectionFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectClose()
	require.NoError(t, db.Close())

	resolver := NewResolver(nil)
	d, err := resolver.Resolve(context.Background(), db)
	require.Error(t, err)
	assert.Equal(t, Default, d)
	_, ok := resolver.cache.Load(db)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverFailureIsNotCached(t *testing.T) {
	db, mock := newMock(t)
	resolver := NewResolver(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := resolver.Resolve(ctx, db)
	require.ErrorIs(t, err, context.Canceled)
	_, ok := resolver.cache.Load(db)
	assert.False(t, ok)

	// the next call probes again
	mock.ExpectQuery("SELECT version()").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("PostgreSQL 16.1"))
	d, err := resolver.Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolverFromDriverType(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	RegisterDriverProduct(&sqlite.Driver{}, "SQLite")
	t.Cleanup(func() { driverProducts.Delete(reflect.TypeOf(&sqlite.Driver{})) })

	resolver := NewResolver(nil)
	d, err := resolver.Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Default, d)

	resolver.Forget(db)
	_, ok := resolver.cache.Load(db)
	assert.False(t, ok)
}

func TestResolverUnregisteredDriverProbes(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	// modernc sqlite answers none of the probes, so the product stays unknown
	d, err := NewResolver(nil).Resolve(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, Default, d)
}
