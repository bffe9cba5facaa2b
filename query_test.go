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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/go-juicedev/sqlquery/dialect"
)

const querySQLSet = `<sqlset namespace="user">
  <fragment id="columns">id, name</fragment>
  <sql id="list">
    SELECT <include refid="columns"/> FROM users
    <where><if test="status != null">status = #{status}</if></where>
  </sql>
  <sql id="quiet" debug="false">SELECT 1</sql>
  <sql id="rename">UPDATE users SET name = #{name} WHERE id = #{id}</sql>
  <sql id="insert">INSERT INTO users (id, name) VALUES (#{id}, #{name})</sql>
  <sql id="proc" statementType="CALLABLE">
    <parameter-mappings>
      <parameter name="name" index="1" mode="IN"/>
      <parameter name="age" index="2" mode="IN" javaType="int"/>
    </parameter-mappings>
    CALL add_user(?, ?)
  </sql>
  <row-mapper name="user" type="mappedUser">
    <result name="id" column="id" javaType="long"/>
    <result name="name" column="name"/>
  </row-mapper>
</sqlset>`

func newTestQuery(t *testing.T, d dialect.Dialect, opts ...QueryOption) (*SQLQuery, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	aliases := NewTypeAliasRegistry()
	require.NoError(t, RegisterAliasOf[mappedUser](aliases, "mappedUser"))
	cfg := loadConfiguration(t, querySQLSet, WithTypeAliasRegistry(aliases))

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLQuery(NewSQLHelper(cfg, WithDialect(d)), db, d, opts...), mock, db
}

func TestSQLQueryQueryForList(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	mock.ExpectQuery("SELECT id, name FROM users WHERE status = ?").
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "alice").
			AddRow(int64(2), "bob"))

	list, err := q.QueryForList(context.Background(), "user.list", map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(1), "name": "alice"},
		{"id": int64(2), "name": "bob"},
	}, list)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryQueryForObject(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "alice"))
	row, err := q.QueryForObject(ctx, "user.list")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "name": "alice"}, row)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	_, err = q.QueryForObject(ctx, "user.list")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "a").AddRow(int64(2), "b"))
	_, err = q.QueryForObject(ctx, "user.list")
	assert.ErrorIs(t, err, ErrTooManyRows)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryQueryForPage(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name FROM users WHERE status = ? LIMIT 10, 5").
		WithArgs("active").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(11), "k"))
	list, err := q.QueryForPage(ctx, "user.list", 10, 5, map[string]any{"status": "active"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = q.QueryForPage(ctx, "user.list", -1, 5)
	assert.ErrorIs(t, err, dialect.ErrInvalidRange)
	_, err = q.QueryForPage(ctx, "user.list", 0, 0)
	assert.ErrorIs(t, err, dialect.ErrInvalidRange)
	require.NoError(t, mock.ExpectationsWereMet())

	q, _, _ = newTestQuery(t, dialect.Default)
	_, err = q.QueryForPage(ctx, "user.list", 0, 5)
	assert.ErrorIs(t, err, dialect.ErrPaginationUnsupported)
}

func TestSQLQueryQueryMapped(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"ID", "NAME"}).AddRow(int64(1), "alice"))
	users, err := QueryMapped[mappedUser](ctx, q, "user.list", "user.user")
	require.NoError(t, err)
	assert.Equal(t, []mappedUser{{ID: 1, Name: "alice"}}, users)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(2), "bob"))
	items, err := q.QueryForMapped(ctx, "user.list", "user.user")
	require.NoError(t, err)
	assert.Equal(t, []any{mappedUser{ID: 2, Name: "bob"}}, items)

	_, err = q.QueryForMapped(ctx, "user.list", "user.missing")
	assert.ErrorIs(t, err, ErrMapperNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryQueryIter(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "a").
			AddRow(int64(2), "b").
			AddRow(int64(3), "c"))

	seq, err := q.QueryIter(context.Background(), "user.list", "user.user")
	require.NoError(t, err)
	var names []string
	for item, err := range seq {
		require.NoError(t, err)
		names = append(names, item.(mappedUser).Name)
		if len(names) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryExecuteUpdate(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").
		WithArgs("bob", 9).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := q.ExecuteUpdate(context.Background(), "user.rename", map[string]any{"name": "bob", "id": 9})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryExecuteBatch(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	ctx := context.Background()
	batch := []any{
		map[string]any{"id": 1, "name": "a"},
		map[string]any{"id": 2, "name": "b"},
	}

	mock.ExpectExec("INSERT INTO users (id, name) VALUES (?, ?)").WithArgs(1, "a").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users (id, name) VALUES (?, ?)").WithArgs(2, "b").WillReturnResult(sqlmock.NewResult(2, 1))
	result, err := q.ExecuteBatch(ctx, "user.insert", batch)
	require.NoError(t, err)
	n, _ := result.RowsAffected()
	assert.Equal(t, int64(2), n)
	id, _ := result.LastInsertId()
	assert.Equal(t, int64(2), id)

	mock.ExpectExec("INSERT INTO users (id, name) VALUES (?, ?)").WithArgs(1, "a").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users (id, name) VALUES (?, ?)").WithArgs(2, "b").WillReturnError(errors.New("duplicate key"))
	_, err = q.ExecuteBatch(ctx, "user.insert", batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch item 1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryCall(t *testing.T) {
	q, mock, _ := newTestQuery(t, dialect.MySQL)
	mock.ExpectExec("CALL add_user(?, ?)").WithArgs("bob", 30).WillReturnResult(sqlmock.NewResult(0, 1))

	out, err := q.Call(context.Background(), "user.proc", "bob", 30)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = q.Call(context.Background(), "user.proc", "bob")
	var bindingErr *ParameterBindingError
	require.ErrorAs(t, err, &bindingErr)
	assert.Equal(t, "age", bindingErr.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryAdditionalParameters(t *testing.T) {
	q, _, _ := newTestQuery(t, dialect.MySQL)
	scoped := q.WithAdditionalParameters(map[string]any{"status": "active"})

	_, bound, err := scoped.BoundSQL("user.list")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM users WHERE status = ?", bound.SQL)

	_, bound, err = q.BoundSQL("user.list")
	require.NoError(t, err)
	assert.Equal(t, "SELECT id, name FROM users", bound.SQL)
}

func TestSQLQueryDebugMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	q, mock, _ := newTestQuery(t, dialect.MySQL, WithMiddlewares(&DebugMiddleware{Logger: logger, SlowThreshold: time.Nanosecond}))
	ctx := context.Background()

	mock.ExpectQuery("SELECT id, name FROM users").
		WillDelayFor(time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))
	_, err := q.QueryForList(ctx, "user.list")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "statement executed")
	assert.Contains(t, buf.String(), "slow query detected")
	assert.Contains(t, buf.String(), "id=user.list")

	buf.Reset()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(int64(1)))
	_, err = q.QueryForList(ctx, "user.quiet")
	require.NoError(t, err)
	assert.Empty(t, buf.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQueryAtomic(t *testing.T) {
	q, mock, db := newTestQuery(t, dialect.MySQL)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").WithArgs("a", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	err := q.Atomic(ctx, db, func(ctx context.Context, tx *SQLQuery) error {
		_, err := tx.ExecuteUpdate(ctx, "user.rename", map[string]any{"name": "a", "id": 1})
		return err
	})
	require.NoError(t, err)

	failure := errors.New("abort")
	mock.ExpectBegin()
	mock.ExpectRollback()
	err = q.Atomic(ctx, db, func(ctx context.Context, tx *SQLQuery) error {
		return failure
	}, WithIsolationLevel(sql.LevelDefault))
	assert.ErrorIs(t, err, failure)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContextShortcuts(t *testing.T) {
	_, err := QueryListContext(context.Background(), "user.list")
	assert.ErrorIs(t, err, ErrNoQueryFoundInContext)

	q, mock, _ := newTestQuery(t, dialect.MySQL)
	ctx := ContextWithSQLQuery(context.Background(), q)

	mock.ExpectQuery("SELECT id, name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "alice"))
	users, err := QueryMappedContext[mappedUser](ctx, "user.list", "user.user")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	mock.ExpectExec("UPDATE users SET name = ? WHERE id = ?").WithArgs("a", 1).WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := ExecContext(ctx, "user.rename", map[string]any{"name": "a", "id": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLQuerySQLite(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	_, err = db.ExecContext(ctx, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, status TEXT)")
	require.NoError(t, err)

	aliases := NewTypeAliasRegistry()
	require.NoError(t, RegisterAliasOf[mappedUser](aliases, "mappedUser"))
	cfg := loadConfiguration(t, querySQLSet, WithTypeAliasRegistry(aliases))
	// sqlite accepts the "LIMIT offset, count" form
	q := NewSQLQuery(NewSQLHelper(cfg), db, dialect.MySQL)

	var batch []any
	for i, name := range []string{"a", "b", "c", "d"} {
		batch = append(batch, map[string]any{"id": i + 1, "name": name})
	}
	result, err := q.ExecuteBatch(ctx, "user.insert", batch)
	require.NoError(t, err)
	n, err := result.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	page, err := q.QueryForPage(ctx, "user.list", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"id": int64(2), "name": "b"},
		{"id": int64(3), "name": "c"},
	}, page)

	updated, err := q.ExecuteUpdate(ctx, "user.rename", map[string]any{"name": "z", "id": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	users, err := QueryMapped[mappedUser](ctx, q, "user.list", "user.user")
	require.NoError(t, err)
	require.Len(t, users, 4)
	assert.Equal(t, mappedUser{ID: 4, Name: "z"}, users[3])
}
