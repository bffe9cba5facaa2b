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

// Package node implements the dynamic SQL tree of a statement. Rendering a
// tree against a parameter yields SQL text with driver placeholders and the
// bind values in placeholder order.
package node

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

var (
	// paramRegex matches parameter placeholders in SQL queries using #{...} syntax.
	// Examples:
	//   - #{ID}         -> matches
	//   - #{user.name}  -> matches
	//   - #{  age  }    -> matches (whitespace is ignored)
	//   - #{}           -> doesn't match (requires identifier)
	//   - #{0}          -> matches
	paramRegex = regexp.MustCompile(`#{\s*(\w+(?:\.\w+)*)\s*}`)

	// formatRegexp matches text substitution placeholders using ${...} syntax.
	// Unlike paramRegex, these are replaced directly in the SQL string, so the
	// substituted value is restricted to numbers and identifier lists.
	formatRegexp = regexp.MustCompile(`\${\s*(\w+(?:\.\w+)*)\s*}`)

	// safeTextRegexp accepts identifiers, dotted identifiers and ORDER BY
	// style lists such as "name DESC, id".
	safeTextRegexp = regexp.MustCompile(`^[\w.]+(?:\s+(?i:asc|desc))?(?:\s*,\s*[\w.]+(?:\s+(?i:asc|desc))?)*$`)
)

// ErrParameterBinding is matched by every *BindingError.
var ErrParameterBinding = errors.New("sqlquery: parameter binding failed")

// BindingError reports a placeholder or collection that could not be bound.
type BindingError struct {
	Name   string
	Reason string
}

// Error implements error.
func (e *BindingError) Error() string {
	return fmt.Sprintf("sqlquery: cannot bind parameter %q: %s", e.Name, e.Reason)
}

// Is reports whether target is ErrParameterBinding.
func (e *BindingError) Is(target error) bool {
	return target == ErrParameterBinding
}

// Node is the fundamental interface for all SQL generation components.
//
// Accept renders the node against p. Every placeholder written to query is
// produced by translator and has exactly one entry in args, in the same
// order. Nodes are immutable after parsing and safe for concurrent use; the
// translator and parameter belong to one render.
type Node interface {
	// Accept processes the node with given translator and parameters
	// to produce a SQL fragment and its arguments.
	Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error)
}

// Group wraps multiple Nodes into a single node.
type Group []Node

// Accept processes all Nodes in the group and combines their results.
// Outputs are separated by a single space, except before a comma, a
// semicolon or a closing parenthesis and after an opening one. Nodes
// producing no output are skipped.
func (g Group) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	nodeLength := len(g)
	switch nodeLength {
	case 0:
		return "", nil, nil
	case 1:
		return g[0].Accept(translator, p)
	}

	var builder = getStringBuilder()
	defer putStringBuilder(builder)

	builder.Grow(nodeLength*16 + nodeLength - 1)

	for _, node := range g {
		q, a, err := node.Accept(translator, p)
		if err != nil {
			return "", nil, err
		}
		if len(q) == 0 {
			continue
		}
		if builder.Len() > 0 {
			if s := builder.String(); needsSpace(s[len(s)-1], q[0]) {
				builder.WriteByte(' ')
			}
		}
		builder.WriteString(q)
		if len(a) > 0 {
			args = append(args, a...)
		}
	}

	if builder.Len() == 0 {
		return "", nil, nil
	}
	return builder.String(), args, nil
}

// needsSpace reports whether a space separates output ending in last from
// output starting with next.
func needsSpace(last, next byte) bool {
	switch {
	case last == ' ', last == '(':
		return false
	case next == ' ', next == ',', next == ';', next == ')':
		return false
	}
	return true
}

var _ Node = (Group)(nil)

// textValue converts the value of a ${} substitution to SQL text.
func textValue(name string, v reflect.Value) (string, error) {
	v = reflectlite.Unwrap(v)
	if reflectlite.IsNil(v) {
		return "", &BindingError{Name: name, Reason: "nil value in text substitution"}
	}
	switch v.Kind() {
	case reflect.String:
		s := v.String()
		if !safeTextRegexp.MatchString(s) {
			return "", &BindingError{Name: name, Reason: fmt.Sprintf("unsafe text substitution %q", s)}
		}
		return s, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case reflect.Bool:
		return strconv.FormatBool(v.Bool()), nil
	default:
		return "", &BindingError{Name: name, Reason: fmt.Sprintf("unsupported text substitution of %s", v.Kind())}
	}
}

// argValue returns the bind value of v.
func argValue(v reflect.Value) any {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	return v.Interface()
}
