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
	"cmp"
	"fmt"
	"reflect"
	"slices"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

// ForeachNode represents a dynamic SQL fragment that iterates over a collection.
// It's commonly used for IN clauses, batch inserts, or any scenario requiring
// iteration over a collection of values in SQL generation.
//
// Example XML:
//
//	<foreach collection="ids" item="id" index="i" open="(" separator="," close=")">
//	  #{id}
//	</foreach>
//
// Slices and arrays are iterated in order with the position as index. Maps
// are iterated in ascending key order with the key as index. A nil or empty
// collection renders nothing; an absent one is a *BindingError.
type ForeachNode struct {
	Collection string
	Nodes      Group
	Item       string
	Index      string
	Open       string
	Close      string
	Separator  string
	BindNodes  BindNodeGroup
}

// Accept accepts parameters and returns query and arguments.
func (f ForeachNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	p = f.BindNodes.ConvertParameter(p)

	value, exists := p.Get(f.Collection)
	if !exists {
		return "", nil, &BindingError{Name: f.Collection, Reason: "collection not found"}
	}
	value = reflectlite.Unwrap(value)
	if reflectlite.IsNil(value) {
		return "", nil, nil
	}

	switch value.Kind() {
	case reflect.Array, reflect.Slice:
		length := value.Len()
		return f.render(length, translator, p, func(i int) (any, any) {
			return argValue(value.Index(i)), i
		})
	case reflect.Map:
		keys := sortedKeys(value.MapKeys())
		return f.render(len(keys), translator, p, func(i int) (any, any) {
			return argValue(value.MapIndex(keys[i])), keys[i].Interface()
		})
	default:
		return "", nil, &BindingError{Name: f.Collection, Reason: fmt.Sprintf("cannot iterate over %s", value.Kind())}
	}
}

// render writes open, the body once per element joined by the separator,
// and close. Elements rendering no text are skipped.
func (f ForeachNode) render(length int, translator dialect.Translator, p eval.Parameter, elem func(i int) (item, index any)) (query string, args []any, err error) {
	if length == 0 {
		return "", nil, nil
	}

	var builder = getStringBuilder()
	defer putStringBuilder(builder)

	builder.Grow(len(f.Open) + (2 * length) + (len(f.Separator) * (length - 1)) + len(f.Close))
	builder.WriteString(f.Open)

	h := make(eval.H, 2)

	// the item scope shadows outer parameters of the same name
	genericParameter := &eval.GenericParameter{Value: reflect.ValueOf(h)}
	group := eval.ParamGroup{genericParameter, p}

	var written bool
	for i := 0; i < length; i++ {
		item, index := elem(i)
		h[f.Item] = item
		if f.Index != "" {
			h[f.Index] = index
		}

		q, a, err := f.Nodes.Accept(translator, group)
		if err != nil {
			return "", nil, err
		}
		genericParameter.Clear()
		if len(q) == 0 {
			continue
		}
		if written {
			builder.WriteString(f.Separator)
		}
		builder.WriteString(q)
		args = append(args, a...)
		written = true
	}
	if !written {
		return "", nil, nil
	}

	builder.WriteString(f.Close)
	return builder.String(), args, nil
}

// sortedKeys orders map keys so that rendering is deterministic.
func sortedKeys(keys []reflect.Value) []reflect.Value {
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		a, b = reflectlite.Unwrap(a), reflectlite.Unwrap(b)
		switch {
		case a.Kind() == reflect.String && b.Kind() == reflect.String:
			return cmp.Compare(a.String(), b.String())
		case a.CanInt() && b.CanInt():
			return cmp.Compare(a.Int(), b.Int())
		case a.CanUint() && b.CanUint():
			return cmp.Compare(a.Uint(), b.Uint())
		case a.CanFloat() && b.CanFloat():
			return cmp.Compare(a.Float(), b.Float())
		default:
			return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
		}
	})
	return keys
}

var _ Node = (*ForeachNode)(nil)
