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

package node

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/go-juicedev/sqlquery/eval"
)

// BindNode represents a named bind variable backed by a compiled expression.
//
//	<bind name="pattern" value="'%' + name + '%'"/>
type BindNode struct {
	Name string
	expr eval.Expression
}

// Parse compiles the given expression string and stores the result.
func (b *BindNode) Parse(expression string) (err error) {
	b.expr, err = eval.Compile(expression)
	return err
}

// Execute evaluates the compiled expression against the provided Parameter
// and returns the resulting reflect.Value.
func (b *BindNode) Execute(p eval.Parameter) (reflect.Value, error) {
	if b.expr == nil {
		return reflect.Value{}, ErrNilExpression
	}
	return b.expr.Execute(p)
}

// BindNodeGroup is the set of bind variables declared in one element.
type BindNodeGroup []*BindNode

// ConvertParameter returns a parameter in which the bind variables shadow
// the names of parameter.
func (b BindNodeGroup) ConvertParameter(parameter eval.Parameter) eval.Parameter {
	if len(b) == 0 {
		return parameter
	}
	boundParam := &boundParameterDecorator{
		scope: &bindScope{nodes: b, parameter: parameter},
	}
	// bind variables take precedence over the outer parameter
	return eval.ParamGroup{boundParam, parameter}
}

// ErrBindVariableNotFound is returned when a bind variable lookup fails.
var ErrBindVariableNotFound = errors.New("sqlquery: bind variable not found")

// bindScope provides lookup and execution of bind variables within a scope.
type bindScope struct {
	nodes     []*BindNode
	parameter eval.Parameter
}

// Get finds a BindNode by name and executes it using the scope's parameter.
func (b bindScope) Get(name string) (reflect.Value, error) {
	for _, bind := range b.nodes {
		if bind.Name == name {
			return bind.Execute(b.parameter)
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", ErrBindVariableNotFound, name)
}

type boundParameterDecorator struct {
	scope *bindScope
}

// Get implements eval.Parameter.
func (e boundParameterDecorator) Get(name string) (reflect.Value, bool) {
	value, err := e.scope.Get(name)
	if err != nil {
		if !errors.Is(err, ErrBindVariableNotFound) {
			slog.Warn("bind variable evaluation failed", "name", name, "error", err)
		}
		return reflect.Value{}, false
	}
	if !value.IsValid() {
		// a bind evaluating to nil is bound to nil
		return reflect.Zero(reflect.TypeOf((*any)(nil)).Elem()), true
	}
	return value, true
}
