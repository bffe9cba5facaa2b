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
	"strconv"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// HelperOption configures a SQLHelper.
type HelperOption func(*SQLHelper)

// WithDialect sets the dialect whose placeholders the helper emits.
func WithDialect(d dialect.Dialect) HelperOption {
	return func(h *SQLHelper) { h.dialect = d }
}

// SQLHelper renders registered statements into BoundSQL. It does not
// execute anything.
type SQLHelper struct {
	cfg     *Configuration
	dialect dialect.Dialect
}

// NewSQLHelper returns a helper reading statements from cfg.
func NewSQLHelper(cfg *Configuration, opts ...HelperOption) *SQLHelper {
	h := &SQLHelper{cfg: cfg, dialect: dialect.Default}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsSetConfiguration reports whether the helper has a Configuration.
func (h *SQLHelper) IsSetConfiguration() bool {
	return h != nil && h.cfg != nil
}

// Configuration returns the backing Configuration.
func (h *SQLHelper) Configuration() *Configuration {
	return h.cfg
}

// Dialect returns the dialect of the emitted placeholders.
func (h *SQLHelper) Dialect() dialect.Dialect {
	return h.dialect
}

// MappedStatement returns the statement registered under id.
func (h *SQLHelper) MappedStatement(id string) (*MappedStatement, error) {
	if !h.IsSetConfiguration() {
		return nil, ErrConfigurationNotInitialized
	}
	return h.cfg.MappedStatement(id)
}

// MapperSource returns the row mapper registered under id.
func (h *SQLHelper) MapperSource(id string) (*MapperSource, error) {
	if !h.IsSetConfiguration() {
		return nil, ErrConfigurationNotInitialized
	}
	return h.cfg.Mapper(id)
}

// BoundSQL renders the statement id. A single parameter is used as is:
// maps and structs expose their keys and fields, anything else is exposed
// under the statement's paramName. Several parameters are exposed as 0, 1, ...
// and together under paramName.
func (h *SQLHelper) BoundSQL(id string, params ...any) (*BoundSQL, error) {
	return h.bind(id, h.dialect.Translator(), params, nil)
}

// BoundSQLWithAdditionalParameter renders the statement id with additional
// as its only parameter source.
func (h *SQLHelper) BoundSQLWithAdditionalParameter(id string, additional any) (*BoundSQL, error) {
	return h.bind(id, h.dialect.Translator(), nil, additional)
}

// BoundSQLWithParameters renders the statement id. Names params does not
// resolve fall back to additional.
func (h *SQLHelper) BoundSQLWithParameters(id string, params []any, additional any) (*BoundSQL, error) {
	return h.bind(id, h.dialect.Translator(), params, additional)
}

func (h *SQLHelper) bind(id string, translator dialect.Translator, params []any, additional any) (*BoundSQL, error) {
	stmt, err := h.MappedStatement(id)
	if err != nil {
		return nil, err
	}
	return bindStatement(stmt, translator, params, additional)
}

func bindStatement(stmt *MappedStatement, translator dialect.Translator, params []any, additional any) (*BoundSQL, error) {
	param := positional(stmt.ParamName(), params)
	if additional == nil {
		return stmt.BoundSQL(translator, param)
	}
	return stmt.BoundSQLWithAdditional(translator, param, additional)
}

// positional turns a parameter list into one parameter value.
func positional(paramName string, params []any) any {
	switch len(params) {
	case 0:
		return nil
	case 1:
		return params[0]
	}
	h := make(eval.H, len(params)+1)
	for i, param := range params {
		h[strconv.Itoa(i)] = param
	}
	h[paramName] = params
	return h
}
