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

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// ErrNilExpression is returned when a condition is rendered before Parse.
var ErrNilExpression = errors.New("sqlquery: nil expression")

// ConditionNode represents a conditional SQL fragment with its evaluation expression and child Nodes.
// It is used to conditionally include or exclude SQL fragments based on runtime parameters.
type ConditionNode struct {
	expr      eval.Expression
	Test      string
	Nodes     Group
	BindNodes BindNodeGroup
}

// Parse compiles the given expression string into an evaluable expression.
// The expression syntax supports various operations like:
//   - Comparison: ==, !=, >, <, >=, <=
//   - Logical: and, or, not, &&, ||, !
//   - Null checks: != null, == nil
//   - Property access: user.age, order.status
//
// Examples:
//
//	"status != null"
//	"age >= 18 and role == 'ADMIN'"
//	"len(ids) > 0"
func (c *ConditionNode) Parse(test string) (err error) {
	c.Test = test
	c.expr, err = eval.Compile(test)
	return err
}

// Accept accepts parameters and returns query and arguments.
// Accept implements Node interface.
func (c *ConditionNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	p = c.BindNodes.ConvertParameter(p)

	matched, err := c.Match(p)
	if err != nil {
		return "", nil, err
	}
	if !matched {
		return "", nil, nil
	}
	return c.Nodes.Accept(translator, p)
}

// Match evaluates the condition against p.
// Absent and nil values, zero numbers, empty strings and empty collections
// are false.
func (c *ConditionNode) Match(p eval.Parameter) (bool, error) {
	if c.expr == nil {
		return false, ErrNilExpression
	}
	return eval.Truthy(c.expr, p)
}

// IfNode is a ConditionNode rendered from an <if test="..."> element.
//
//	<if test="id > 0">
//	    AND id = #{id}
//	</if>
type IfNode = ConditionNode

// WhenNode is a ConditionNode that is one branch of a ChooseNode.
type WhenNode = ConditionNode

var _ Node = (*ConditionNode)(nil)
