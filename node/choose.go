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

// ChooseNode implements a switch-like conditional structure for SQL generation.
// The first <when> whose test matches is rendered; when none match the
// <otherwise> branch, if any, is rendered.
//
// Example XML:
//
//	<choose>
//	  <when test="id != 0">AND id = #{id}</when>
//	  <when test='name != ""'>AND name = #{name}</when>
//	  <otherwise>AND status = 'ACTIVE'</otherwise>
//	</choose>
type ChooseNode struct {
	WhenNodes     []*WhenNode
	OtherwiseNode Node
	BindNodes     BindNodeGroup
}

// Accept accepts parameters and returns query and arguments.
func (c ChooseNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	p = c.BindNodes.ConvertParameter(p)

	for _, node := range c.WhenNodes {
		branch := node.BindNodes.ConvertParameter(p)
		matched, err := node.Match(branch)
		if err != nil {
			return "", nil, err
		}
		if matched {
			return node.Nodes.Accept(translator, branch)
		}
	}

	if c.OtherwiseNode != nil {
		return c.OtherwiseNode.Accept(translator, p)
	}
	return "", nil, nil
}

var _ Node = (*ChooseNode)(nil)

// OtherwiseNode represents the default branch in a <choose> statement,
// which executes when none of the <when> conditions are met.
type OtherwiseNode struct {
	Nodes     Group
	BindNodes BindNodeGroup
}

// Accept accepts parameters and returns query and arguments.
func (o OtherwiseNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	p = o.BindNodes.ConvertParameter(p)
	return o.Nodes.Accept(translator, p)
}

var _ Node = (*OtherwiseNode)(nil)
