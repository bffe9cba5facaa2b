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
	"strings"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// SQLNode is the root of one statement or fragment body.
//
// Example XML:
//
//	<sql-query id="getUserById">
//	  SELECT * FROM users
//	  <where>
//	    <if test="id != 0">id = #{id}</if>
//	  </where>
//	</sql-query>
type SQLNode struct {
	ID        string
	Nodes     Group
	BindNodes BindNodeGroup
}

// Accept accepts parameters and returns query and arguments.
func (s SQLNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	p = s.BindNodes.ConvertParameter(p)

	query, args, err = s.Nodes.Accept(translator, p)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(query), args, nil
}

var _ Node = (*SQLNode)(nil)
