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

// SetNode represents an SQL SET clause for UPDATE statements.
// It adds the SET keyword and drops the trailing comma left by the last
// included assignment.
//
// Example XML:
//
//	UPDATE users
//	<set>
//	  <if test='name != ""'>name = #{name},</if>
//	  <if test="age > 0">age = #{age},</if>
//	</set>
//	WHERE id = #{id}
//
// With only name set the result is "UPDATE users SET name = ? WHERE id = ?".
type SetNode struct {
	Nodes     Group
	BindNodes BindNodeGroup
}

// Accept accepts parameters and returns query and arguments.
func (s SetNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	trim := TrimNode{
		Nodes:           s.Nodes,
		Prefix:          "SET",
		PrefixOverrides: []string{"SET", ","},
		SuffixOverrides: []string{","},
		BindNodes:       s.BindNodes,
	}
	return trim.Accept(translator, p)
}

var _ Node = (*SetNode)(nil)
