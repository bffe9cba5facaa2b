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
	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// WhereNode represents a SQL WHERE clause and its conditions.
//
// Examples:
//
//	Input:  "AND id = ?"        -> Output: "WHERE id = ?"
//	Input:  "OR name = ?"       -> Output: "WHERE name = ?"
//	Input:  "WHERE age > ?"     -> Output: "WHERE age > ?"
//	Input:  "status = ?"        -> Output: "WHERE status = ?"
//	Input:  ""                  -> Output: ""
type WhereNode struct {
	Nodes     Group
	BindNodes BindNodeGroup
}

// Accept processes the WHERE clause and its conditions.
func (w WhereNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	trim := TrimNode{
		Nodes:           w.Nodes,
		Prefix:          "WHERE",
		PrefixOverrides: []string{"WHERE", "AND", "OR"},
		BindNodes:       w.BindNodes,
	}
	return trim.Accept(translator, p)
}

var _ Node = (*WhereNode)(nil)
