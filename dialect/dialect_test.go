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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPagination(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		sql     string
		offset  int64
		limit   int64
		want    string
	}{
		{
			name:    "mysql",
			dialect: MySQL,
			sql:     "SELECT * FROM t ORDER BY id",
			offset:  20, limit: 10,
			want: "SELECT * FROM t ORDER BY id LIMIT 20, 10",
		},
		{
			name:    "postgres",
			dialect: Postgres,
			sql:     "SELECT * FROM t ORDER BY id",
			offset:  20, limit: 10,
			want: "SELECT * FROM t ORDER BY id LIMIT 10 OFFSET 20",
		},
		{
			name:    "postgres trailing semicolon",
			dialect: Postgres,
			sql:     "SELECT * FROM t ORDER BY id; ",
			offset:  0, limit: 1,
			want: "SELECT * FROM t ORDER BY id LIMIT 1 OFFSET 0",
		},
		{
			name:    "oracle",
			dialect: Oracle,
			sql:     "SELECT * FROM t",
			offset:  10, limit: 5,
			want: "SELECT * FROM (SELECT row_.*, ROWNUM rnum FROM (SELECT * FROM t) row_ WHERE ROWNUM <= 15) WHERE rnum > 10",
		},
		{
			name:    "sql server without order by",
			dialect: SQLServer,
			sql:     "SELECT * FROM t",
			offset:  0, limit: 5,
			want: "SELECT * FROM t ORDER BY (SELECT 1) OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:    "sql server with order by",
			dialect: SQLServer,
			sql:     "SELECT * FROM t order  by name",
			offset:  5, limit: 5,
			want: "SELECT * FROM t order  by name OFFSET 5 ROWS FETCH NEXT 5 ROWS ONLY",
		},
		{
			name:    "sql server order by in subquery only",
			dialect: SQLServer,
			sql:     "SELECT * FROM (SELECT TOP 10 * FROM t ORDER BY id) x",
			offset:  0, limit: 5,
			want: "SELECT * FROM (SELECT TOP 10 * FROM t ORDER BY id) x ORDER BY (SELECT 1) OFFSET 0 ROWS FETCH NEXT 5 ROWS ONLY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.dialect.ApplyPagination(tt.sql, tt.offset, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyPaginationErrors(t *testing.T) {
	_, err := Default.ApplyPagination("SELECT 1", 0, 10)
	assert.ErrorIs(t, err, ErrPaginationUnsupported)
	assert.False(t, Default.SupportsPagination())
	assert.False(t, Dialect{}.SupportsPagination())

	_, err = Postgres.ApplyPagination("SELECT 1", -1, 10)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = MySQL.ApplyPagination("SELECT 1", 0, -10)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFromProductName(t *testing.T) {
	tests := map[string]Dialect{
		"MySQL":                                  MySQL,
		"mysql Community Server - GPL":           MySQL,
		"10.6.12-MariaDB":                        MySQL,
		"PostgreSQL 15.2 on x86_64-pc-linux-gnu": Postgres,
		"Oracle Database 19c Enterprise Edition": Oracle,
		"Microsoft SQL Server 2019 (RTM)":        SQLServer,
		"SQLite":                                 Default,
		"":                                       Default,
	}
	for product, want := range tests {
		assert.Equal(t, want, FromProductName(product), product)
	}
}

func TestParse(t *testing.T) {
	for name, want := range map[string]Dialect{
		"":           Default,
		"POSTGRESQL": Postgres,
		"pgx":        Postgres,
		"mssql":      SQLServer,
		"mariadb":    MySQL,
		"Oracle":     Oracle,
	} {
		got, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := Parse("db2")
	assert.ErrorIs(t, err, ErrUnknownDialect)
}

func TestTranslator(t *testing.T) {
	render := func(d Dialect) []string {
		tr := d.Translator()
		return []string{tr.Translate("a"), tr.Translate("b"), tr.Translate("a")}
	}
	assert.Equal(t, []string{"?", "?", "?"}, render(MySQL))
	assert.Equal(t, []string{"?", "?", "?"}, render(Default))
	assert.Equal(t, []string{"$1", "$2", "$3"}, render(Postgres))
	assert.Equal(t, []string{":1", ":2", ":3"}, render(Oracle))
	assert.Equal(t, []string{"@p1", "@p2", "@p3"}, render(SQLServer))

	// every call starts a new numbering
	assert.Equal(t, "$1", Postgres.Translator().Translate("x"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "postgres", Postgres.Name())
	assert.Equal(t, KindOracle, Oracle.Kind())
	assert.Equal(t, SQLServer, Of(KindSQLServer))
	assert.Equal(t, "default", Dialect{}.String())
}
