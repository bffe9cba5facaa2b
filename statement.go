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
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
	"github.com/go-juicedev/sqlquery/node"
)

// additionalParameterKey wraps an additional parameter that is neither a map
// nor a struct.
const additionalParameterKey = "additional_parameter"

// ParameterMapping describes one declared statement parameter.
type ParameterMapping struct {
	Name      string
	Index     int
	Mode      ParameterMode
	TypeAlias string
	Type      reflect.Type
	JDBCType  string
	Pattern   string
	Size      int
}

// ResultMapping maps a result column to a property of the row value.
type ResultMapping struct {
	Name      string
	Column    string
	Index     int
	TypeAlias string
	Type      reflect.Type
	JDBCType  string
	Primary   bool
	Encoding  string
	Pattern   string
}

// MappedStatement is the parsed, renderable form of one statement.
// It is immutable: a reload builds a new MappedStatement and swaps it into
// the Configuration, so callers holding the old one keep a consistent view.
type MappedStatement struct {
	id                string
	namespace         string
	name              string
	resource          string
	description       string
	statementType     StatementType
	fetchSize         int
	timeout           time.Duration
	paramName         string
	root              node.Node
	parameterMappings []ParameterMapping
	resultMappings    []ResultMapping
	attrs             map[string]string
}

// StatementOption configures a MappedStatement.
type StatementOption func(*MappedStatement)

// WithResource sets the resource the statement was loaded from.
func WithResource(resource string) StatementOption {
	return func(s *MappedStatement) { s.resource = resource }
}

// WithDescription sets the statement description.
func WithDescription(description string) StatementOption {
	return func(s *MappedStatement) { s.description = description }
}

// WithStatementType sets the statement type.
func WithStatementType(t StatementType) StatementOption {
	return func(s *MappedStatement) { s.statementType = t }
}

// WithFetchSize sets the fetch size hint.
func WithFetchSize(size int) StatementOption {
	return func(s *MappedStatement) { s.fetchSize = size }
}

// WithTimeout sets the statement timeout. Zero means the configuration default.
func WithTimeout(timeout time.Duration) StatementOption {
	return func(s *MappedStatement) { s.timeout = timeout }
}

// WithParamName sets the key a scalar parameter is exposed under.
func WithParamName(name string) StatementOption {
	return func(s *MappedStatement) { s.paramName = name }
}

// WithParameterMappings sets the declared parameters.
func WithParameterMappings(mappings ...ParameterMapping) StatementOption {
	return func(s *MappedStatement) { s.parameterMappings = append([]ParameterMapping(nil), mappings...) }
}

// WithResultMappings sets the declared result columns.
func WithResultMappings(mappings ...ResultMapping) StatementOption {
	return func(s *MappedStatement) { s.resultMappings = append([]ResultMapping(nil), mappings...) }
}

// WithAttribute sets an extra attribute of the statement element.
func WithAttribute(key, value string) StatementOption {
	return func(s *MappedStatement) {
		if s.attrs == nil {
			s.attrs = make(map[string]string)
		}
		s.attrs[key] = value
	}
}

// NewMappedStatement returns a statement registered under id, which is of
// the form namespace.name, rendering root.
func NewMappedStatement(id string, root node.Node, opts ...StatementOption) *MappedStatement {
	s := &MappedStatement{
		id:            id,
		name:          id,
		root:          root,
		statementType: Prepared,
		paramName:     eval.DefaultParamKey,
	}
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		s.namespace, s.name = id[:i], id[i+1:]
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the full statement id.
func (s *MappedStatement) ID() string { return s.id }

// Namespace returns the namespace part of the id.
func (s *MappedStatement) Namespace() string { return s.namespace }

// Name returns the id without its namespace.
func (s *MappedStatement) Name() string { return s.name }

// Resource returns the resource the statement was loaded from.
func (s *MappedStatement) Resource() string { return s.resource }

// Description returns the statement description.
func (s *MappedStatement) Description() string { return s.description }

// StatementType returns how the statement is sent to the database.
func (s *MappedStatement) StatementType() StatementType { return s.statementType }

// FetchSize returns the fetch size hint, zero when unset.
func (s *MappedStatement) FetchSize() int { return s.fetchSize }

// Timeout returns the statement timeout, zero when unset.
func (s *MappedStatement) Timeout() time.Duration { return s.timeout }

// ParamName returns the key a scalar parameter is exposed under.
func (s *MappedStatement) ParamName() string { return s.paramName }

// ParameterMappings returns a copy of the declared parameters.
func (s *MappedStatement) ParameterMappings() []ParameterMapping {
	return append([]ParameterMapping(nil), s.parameterMappings...)
}

// ResultMappings returns a copy of the declared result columns.
func (s *MappedStatement) ResultMappings() []ResultMapping {
	return append([]ResultMapping(nil), s.resultMappings...)
}

// Attribute returns the value of an extra attribute, or "".
func (s *MappedStatement) Attribute(key string) string {
	return s.attrs[key]
}

// Attributes returns a copy of the extra attributes.
func (s *MappedStatement) Attributes() map[string]string {
	return maps.Clone(s.attrs)
}

// BoundSQL renders the statement with param.
// A nil translator emits "?" placeholders.
func (s *MappedStatement) BoundSQL(translator dialect.Translator, param any) (*BoundSQL, error) {
	return s.bind(translator, eval.NewGenericParam(param, s.paramName))
}

// BoundSQLWithAdditional renders the statement with param, falling back to
// additional for names param does not resolve.
func (s *MappedStatement) BoundSQLWithAdditional(translator dialect.Translator, param, additional any) (*BoundSQL, error) {
	group := eval.ParamGroup{
		eval.NewGenericParam(param, s.paramName),
		eval.NewGenericParam(additional, additionalParameterKey),
	}
	return s.bind(translator, group)
}

func (s *MappedStatement) bind(translator dialect.Translator, p eval.Parameter) (*BoundSQL, error) {
	if s.root == nil {
		return nil, fmt.Errorf("statement %q: %w", s.id, ErrEmptyQuery)
	}
	if translator == nil {
		translator = dialect.QuestionTranslator
	}
	query, args, err := s.root.Accept(translator, p)
	if err != nil {
		return nil, fmt.Errorf("statement %q: %w", s.id, err)
	}
	if len(query) == 0 {
		return nil, fmt.Errorf("statement %q generated empty query after parameter processing: %w", s.id, ErrEmptyQuery)
	}
	return &BoundSQL{
		StatementID:       s.id,
		SQL:               query,
		Args:              args,
		ParameterMappings: s.parameterMappings,
	}, nil
}
