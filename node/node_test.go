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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

func ifNode(t *testing.T, test string, nodes ...Node) *IfNode {
	t.Helper()
	n := &IfNode{Nodes: nodes}
	require.NoError(t, n.Parse(test))
	return n
}

func render(t *testing.T, n Node, param any) (string, []any) {
	t.Helper()
	query, args, err := n.Accept(dialect.QuestionTranslator, eval.NewParameter(param))
	require.NoError(t, err)
	return query, args
}

func TestTextNode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		params   eval.H
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "pure text",
			text:    "SELECT 1",
			wantSQL: "SELECT 1",
		},
		{
			name:     "placeholders in order",
			text:     "SELECT * FROM t WHERE a = #{a} AND b = #{ b } AND a2 = #{a}",
			params:   eval.H{"a": 1, "b": "x"},
			wantSQL:  "SELECT * FROM t WHERE a = ? AND b = ? AND a2 = ?",
			wantArgs: []any{1, "x", 1},
		},
		{
			name:     "nil value binds nil",
			text:     "status = #{status}",
			params:   eval.H{"status": nil},
			wantSQL:  "status = ?",
			wantArgs: []any{nil},
		},
		{
			name:     "dotted path",
			text:     "city = #{user.address.city}",
			params:   eval.H{"user": eval.H{"address": map[string]string{"city": "Oslo"}}},
			wantSQL:  "city = ?",
			wantArgs: []any{"Oslo"},
		},
		{
			name:     "text substitution",
			text:     "SELECT * FROM ${table} ORDER BY ${orderBy} LIMIT ${n} OFFSET #{offset}",
			params:   eval.H{"table": "users", "orderBy": "name DESC, id", "n": 5, "offset": 10},
			wantSQL:  "SELECT * FROM users ORDER BY name DESC, id LIMIT 5 OFFSET ?",
			wantArgs: []any{10},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := render(t, NewTextNode(tt.text), tt.params)
			assert.Equal(t, tt.wantSQL, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestTextNodeBindingErrors(t *testing.T) {
	_, _, err := NewTextNode("a = #{missing}").Accept(dialect.QuestionTranslator, eval.NewParameter(eval.H{}))
	var bindingErr *BindingError
	require.True(t, errors.As(err, &bindingErr))
	assert.Equal(t, "missing", bindingErr.Name)
	assert.ErrorIs(t, err, ErrParameterBinding)

	_, _, err = NewTextNode("ORDER BY ${col}").Accept(dialect.QuestionTranslator, eval.NewParameter(eval.H{"col": "id; DROP TABLE t"}))
	assert.ErrorIs(t, err, ErrParameterBinding)

	_, _, err = NewTextNode("ORDER BY ${col}").Accept(dialect.QuestionTranslator, eval.NewParameter(eval.H{"col": nil}))
	assert.ErrorIs(t, err, ErrParameterBinding)
}

func TestTextNodePlaceholders(t *testing.T) {
	n := NewTextNode("a = #{a} AND ${b} = #{c}").(*TextNode)
	assert.Equal(t, []string{"a", "c"}, n.Placeholders())
}

func TestNumberedPlaceholdersAcrossNodes(t *testing.T) {
	root := SQLNode{Nodes: Group{
		NewTextNode("SELECT * FROM t WHERE a = #{a}"),
		ifNode(t, "b != null", NewTextNode("AND b = #{b}")),
		NewTextNode("AND c = #{c}"),
	}}
	query, args, err := root.Accept(dialect.Postgres.Translator(), eval.NewParameter(eval.H{"a": 1, "b": 2, "c": 3}))
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2 AND c = $3", query)
	assert.Equal(t, []any{1, 2, 3}, args)
}

func TestConditionalFragment(t *testing.T) {
	root := SQLNode{Nodes: Group{
		NewTextNode("SELECT * FROM users"),
		WhereNode{Nodes: Group{
			ifNode(t, "status != null", NewTextNode("AND status = #{status}")),
		}},
	}}

	query, args := render(t, root, eval.H{"status": "active"})
	assert.Equal(t, "SELECT * FROM users WHERE status = ?", query)
	assert.Equal(t, []any{"active"}, args)

	query, args = render(t, root, eval.H{})
	assert.Equal(t, "SELECT * FROM users", query)
	assert.Empty(t, args)

	// rendering is deterministic
	again, _ := render(t, root, eval.H{})
	assert.Equal(t, query, again)
}

func TestConditionWithoutParse(t *testing.T) {
	_, _, err := (&IfNode{}).Accept(dialect.QuestionTranslator, eval.NewParameter(nil))
	assert.ErrorIs(t, err, ErrNilExpression)
}

func TestGroupSpacing(t *testing.T) {
	g := Group{NewTextNode("SELECT"), NewTextNode(""), NewTextNode("1")}
	query, args := render(t, g, nil)
	assert.Equal(t, "SELECT 1", query)
	assert.Nil(t, args)

	g = Group{NewTextNode("SELECT"), NewTextNode("id"), NewTextNode(", name FROM t WHERE id IN ("), NewTextNode("1"), NewTextNode(")")}
	query, _ = render(t, g, nil)
	assert.Equal(t, "SELECT id, name FROM t WHERE id IN (1)", query)
}
