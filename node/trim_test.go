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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-juicedev/sqlquery/eval"
)

func TestWhereNode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"leading and", "AND id = 1", "WHERE id = 1"},
		{"leading lower or", "or name = 'a'", "WHERE name = 'a'"},
		{"already where", "where age > 1", "WHERE age > 1"},
		{"plain", "status = 1", "WHERE status = 1"},
		{"column starting with or", "ORDER_NO = 1", "WHERE ORDER_NO = 1"},
		{"parenthesis", "AND(a = 1 OR b = 2)", "WHERE (a = 1 OR b = 2)"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, _ := render(t, WhereNode{Nodes: Group{NewTextNode(tt.text)}}, nil)
			assert.Equal(t, tt.want, query)
		})
	}
}

func TestSetNode(t *testing.T) {
	n := SetNode{Nodes: Group{
		ifNode(t, `name != ""`, NewTextNode("name = #{name},")),
		ifNode(t, "age > 0", NewTextNode("age = #{age},")),
	}}

	query, args := render(t, n, eval.H{"name": "ann", "age": 0})
	assert.Equal(t, "SET name = ?", query)
	assert.Equal(t, []any{"ann"}, args)

	query, args = render(t, n, eval.H{"name": "ann", "age": 3})
	assert.Equal(t, "SET name = ?, age = ?", query)
	assert.Equal(t, []any{"ann", 3}, args)

	query, _ = render(t, n, eval.H{"name": "", "age": 0})
	assert.Empty(t, query)
}

func TestTrimNode(t *testing.T) {
	n := TrimNode{
		Nodes:           Group{NewTextNode("AND a = 1 AND b = 2,")},
		Prefix:          "(",
		Suffix:          ")",
		PrefixOverrides: SplitOverrides("AND | OR"),
		SuffixOverrides: SplitOverrides(","),
	}
	query, _ := render(t, n, nil)
	assert.Equal(t, "( a = 1 AND b = 2 )", query)

	empty := TrimNode{Nodes: Group{NewTextNode("   ")}, Prefix: "WHERE"}
	query, _ = render(t, empty, nil)
	assert.Empty(t, query)
}

func TestSplitOverrides(t *testing.T) {
	assert.Equal(t, []string{"AND", "OR"}, SplitOverrides("AND |OR "))
	assert.Nil(t, SplitOverrides("  "))
}
