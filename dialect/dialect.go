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

// Package dialect provides per-vendor placeholder styles and pagination
// rewriting, and resolves the dialect of a live *sql.DB.
package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

var (
	// ErrPaginationUnsupported is returned by ApplyPagination of a dialect
	// that cannot page results.
	ErrPaginationUnsupported = errors.New("dialect: pagination unsupported")

	// ErrInvalidRange is returned when offset or limit are negative.
	ErrInvalidRange = errors.New("dialect: invalid pagination range")

	// ErrUnknownDialect is returned by Parse for names it does not recognize.
	ErrUnknownDialect = errors.New("dialect: unknown dialect")
)

// Kind identifies one member of the closed set of dialects.
type Kind uint8

const (
	KindDefault Kind = iota
	KindMySQL
	KindPostgres
	KindOracle
	KindSQLServer
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindMySQL:
		return "mysql"
	case KindPostgres:
		return "postgres"
	case KindOracle:
		return "oracle"
	case KindSQLServer:
		return "sqlserver"
	default:
		return "default"
	}
}

// Dialect is a stateless pagination and placeholder strategy.
// The zero value is Default.
type Dialect struct {
	kind Kind
}

var (
	Default   = Dialect{kind: KindDefault}
	MySQL     = Dialect{kind: KindMySQL}
	Postgres  = Dialect{kind: KindPostgres}
	Oracle    = Dialect{kind: KindOracle}
	SQLServer = Dialect{kind: KindSQLServer}
)

// Of returns the dialect of kind k.
func Of(k Kind) Dialect { return Dialect{kind: k} }

// Kind returns the dialect kind.
func (d Dialect) Kind() Kind { return d.kind }

// Name returns the dialect name.
func (d Dialect) Name() string { return d.kind.String() }

// String implements fmt.Stringer.
func (d Dialect) String() string { return d.Name() }

// SupportsPagination reports whether ApplyPagination can succeed.
func (d Dialect) SupportsPagination() bool { return d.kind != KindDefault }

// Translator returns a new placeholder translator for one statement.
func (d Dialect) Translator() Translator {
	switch d.kind {
	case KindPostgres:
		return NumberedTranslator("$")
	case KindOracle:
		return NumberedTranslator(":")
	case KindSQLServer:
		return NumberedTranslator("@p")
	default:
		return QuestionTranslator
	}
}

var orderByRegexp = regexp.MustCompile(`(?i)\border\s+by\b`)

// hasOrderBy reports whether query ends with an ORDER BY that is not nested
// inside parentheses.
func hasOrderBy(query string) bool {
	locs := orderByRegexp.FindAllStringIndex(query, -1)
	if len(locs) == 0 {
		return false
	}
	tail := query[locs[len(locs)-1][0]:]
	return strings.Count(tail, ")") <= strings.Count(tail, "(")
}

// ApplyPagination rewrites query to return at most limit rows starting at
// offset. Offset and limit are validated and written as integer literals.
func (d Dialect) ApplyPagination(query string, offset, limit int64) (string, error) {
	if !d.SupportsPagination() {
		return "", fmt.Errorf("%w: %s", ErrPaginationUnsupported, d.Name())
	}
	if offset < 0 || limit < 0 {
		return "", fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidRange, offset, limit)
	}
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	off, lim := strconv.FormatInt(offset, 10), strconv.FormatInt(limit, 10)

	var sb strings.Builder
	sb.Grow(len(query) + 64)
	switch d.kind {
	case KindMySQL:
		sb.WriteString(query)
		sb.WriteString(" LIMIT ")
		sb.WriteString(off)
		sb.WriteString(", ")
		sb.WriteString(lim)
	case KindPostgres:
		sb.WriteString(query)
		sb.WriteString(" LIMIT ")
		sb.WriteString(lim)
		sb.WriteString(" OFFSET ")
		sb.WriteString(off)
	case KindOracle:
		sb.WriteString("SELECT * FROM (SELECT row_.*, ROWNUM rnum FROM (")
		sb.WriteString(query)
		sb.WriteString(") row_ WHERE ROWNUM <= ")
		sb.WriteString(strconv.FormatInt(offset+limit, 10))
		sb.WriteString(") WHERE rnum > ")
		sb.WriteString(off)
	case KindSQLServer:
		sb.WriteString(query)
		if !hasOrderBy(query) {
			sb.WriteString(" ORDER BY (SELECT 1)")
		}
		sb.WriteString(" OFFSET ")
		sb.WriteString(off)
		sb.WriteString(" ROWS FETCH NEXT ")
		sb.WriteString(lim)
		sb.WriteString(" ROWS ONLY")
	}
	return sb.String(), nil
}

// foldCase returns s case-folded. A Caser is stateful and is created per call.
func foldCase(s string) string {
	return cases.Fold().String(s)
}

// FromProductName matches a database product name case-insensitively.
// Unknown products yield Default.
func FromProductName(product string) Dialect {
	name := foldCase(product)
	switch {
	case strings.Contains(name, "mysql"), strings.Contains(name, "mariadb"):
		return MySQL
	case strings.Contains(name, "postgres"):
		return Postgres
	case strings.Contains(name, "oracle"):
		return Oracle
	case strings.Contains(name, "sql server"):
		return SQLServer
	default:
		return Default
	}
}

// Parse returns the dialect for a configured name such as "postgres" or
// "mssql". An empty name is Default.
func Parse(name string) (Dialect, error) {
	switch foldCase(strings.TrimSpace(name)) {
	case "", "default":
		return Default, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "postgres", "postgresql", "pg", "pgx":
		return Postgres, nil
	case "oracle":
		return Oracle, nil
	case "sqlserver", "mssql", "sql server":
		return SQLServer, nil
	}
	if d := FromProductName(name); d.kind != KindDefault {
		return d, nil
	}
	return Default, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
}
