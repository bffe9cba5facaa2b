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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-juicedev/sqlquery/dialect"
)

const helperSQLSet = `<sqlset namespace="helper">
  <sql id="byID">SELECT * FROM t WHERE id = #{param}</sql>
  <sql id="byKey" paramName="key">SELECT * FROM t WHERE k = #{key}</sql>
  <sql id="pair">SELECT * FROM t WHERE a = #{0} AND b = #{1}</sql>
  <sql id="inList">SELECT * FROM t WHERE id IN <foreach collection="param" item="id" open="(" separator="," close=")">#{id}</foreach></sql>
  <sql id="tenant">SELECT * FROM t WHERE a = #{a} AND tenant = #{tenant}</sql>
</sqlset>`

// loadConfiguration builds doc into a fresh Configuration.
func loadConfiguration(t *testing.T, doc string, opts ...Option) *Configuration {
	t.Helper()
	cfg := NewConfiguration(opts...)
	_, err := NewXMLSQLSetBuilder(cfg).Build(strings.NewReader(doc), t.Name()+"-sqlset.xml")
	require.NoError(t, err)
	return cfg
}

func TestSQLHelperWithoutConfiguration(t *testing.T) {
	h := NewSQLHelper(nil)
	assert.False(t, h.IsSetConfiguration())
	_, err := h.BoundSQL("helper.byID", 1)
	assert.ErrorIs(t, err, ErrConfigurationNotInitialized)
	_, err = h.MapperSource("helper.row")
	assert.ErrorIs(t, err, ErrConfigurationNotInitialized)
}

func TestSQLHelperBoundSQL(t *testing.T) {
	h := NewSQLHelper(loadConfiguration(t, helperSQLSet))
	assert.True(t, h.IsSetConfiguration())
	assert.Equal(t, dialect.Default, h.Dialect())

	bound, err := h.BoundSQL("helper.byID", 5)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE id = ?", bound.SQL)
	assert.Equal(t, []any{5}, bound.Args)
	assert.Equal(t, "helper.byID", bound.StatementID)

	bound, err = h.BoundSQL("helper.byKey", "k1")
	require.NoError(t, err)
	assert.Equal(t, []any{"k1"}, bound.Args)

	bound, err = h.BoundSQL("helper.pair", 1, "x")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ?", bound.SQL)
	assert.Equal(t, []any{1, "x"}, bound.Args)

	bound, err = h.BoundSQL("helper.inList", []int{4, 5})
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE id IN (?,?)", bound.SQL)
	assert.Equal(t, []any{4, 5}, bound.Args)

	_, err = h.BoundSQL("helper.missing")
	assert.ErrorIs(t, err, ErrStatementNotFound)

	_, err = h.BoundSQL("helper.pair", 1)
	assert.ErrorIs(t, err, ErrParameterBinding)
}

func TestSQLHelperDialect(t *testing.T) {
	h := NewSQLHelper(loadConfiguration(t, helperSQLSet), WithDialect(dialect.Oracle))
	bound, err := h.BoundSQL("helper.pair", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = :1 AND b = :2", bound.SQL)
}

func TestSQLHelperAdditionalParameters(t *testing.T) {
	h := NewSQLHelper(loadConfiguration(t, helperSQLSet))

	bound, err := h.BoundSQLWithParameters("helper.tenant",
		[]any{map[string]any{"a": 1, "tenant": "own"}}, map[string]any{"tenant": "shared"})
	require.NoError(t, err)
	assert.Equal(t, []any{1, "own"}, bound.Args)

	bound, err = h.BoundSQLWithParameters("helper.tenant",
		[]any{map[string]any{"a": 1}}, map[string]any{"tenant": "shared"})
	require.NoError(t, err)
	assert.Equal(t, []any{1, "shared"}, bound.Args)

	bound, err = h.BoundSQLWithAdditionalParameter("helper.tenant", map[string]any{"a": 2, "tenant": "t"})
	require.NoError(t, err)
	assert.Equal(t, []any{2, "t"}, bound.Args)
}

func TestBoundSQLPaginate(t *testing.T) {
	bound := &BoundSQL{StatementID: "ns.q", SQL: "SELECT * FROM t", Args: []any{1}}

	paged, err := bound.Paginate(dialect.Postgres, 20, 10)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t LIMIT 10 OFFSET 20", paged.SQL)
	assert.Equal(t, []any{1}, paged.Args)
	assert.Equal(t, "SELECT * FROM t", bound.SQL)

	_, err = bound.Paginate(dialect.Default, 0, 10)
	assert.ErrorIs(t, err, dialect.ErrPaginationUnsupported)
	_, err = bound.Paginate(dialect.MySQL, -1, 10)
	assert.ErrorIs(t, err, dialect.ErrInvalidRange)
}
