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

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// ErrUnresolvedInclude is returned when an include is rendered before its
// fragment was linked.
var ErrUnresolvedInclude = errors.New("sqlquery: unresolved include")

// IncludeNode represents a reference to a <fragment> of the same resource.
//
//	<fragment id="columns">id, name, status</fragment>
//
//	<sql-query id="select">
//	  SELECT <include refid="columns"/> FROM users
//	</sql-query>
//
// The builder links every include to its fragment once the whole resource
// has been read, so fragments may be declared after their use.
type IncludeNode struct {
	RefID    string
	fragment Node
}

// NewIncludeNode returns an unlinked include of refID.
func NewIncludeNode(refID string) *IncludeNode {
	return &IncludeNode{RefID: refID}
}

// Link sets the fragment the include renders. It must be called before the
// node is shared.
func (i *IncludeNode) Link(fragment Node) {
	i.fragment = fragment
}

// Linked reports whether Link has been called.
func (i *IncludeNode) Linked() bool {
	return i.fragment != nil
}

// Accept accepts parameters and returns query and arguments.
func (i *IncludeNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	if i.fragment == nil {
		return "", nil, fmt.Errorf("%w: %s", ErrUnresolvedInclude, i.RefID)
	}
	return i.fragment.Accept(translator, p)
}

var _ Node = (*IncludeNode)(nil)
