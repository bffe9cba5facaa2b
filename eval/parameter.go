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

package eval

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

// DefaultParamKey is the name a non-map, non-struct parameter is exposed
// under when no other key is configured.
const DefaultParamKey = "param"

// TagName is the struct tag consulted when a parameter name does not match
// an exported field name.
const TagName = "param"

// Parameter is the interface that wraps the Get method.
// Get returns the value of the named parameter.
type Parameter interface {
	// Get returns the value of the named parameter with the type of reflect.Value.
	Get(name string) (reflect.Value, bool)
}

// NoOPParameter is a no-op parameter.
// Its does nothing when calling the Get method.
type NoOPParameter struct{}

// Get implements Parameter.
// always return false.
func (NoOPParameter) Get(_ string) (reflect.Value, bool) {
	return reflect.Value{}, false
}

var noOPParameter Parameter = NoOPParameter{}

// make sure that ParamGroup implements Parameter.
var _ Parameter = (ParamGroup)(nil)

// ParamGroup is an ordered group of parameters. Earlier members take
// precedence over later ones on name collision.
type ParamGroup []Parameter

// Get implements Parameter.
func (g ParamGroup) Get(name string) (reflect.Value, bool) {
	for _, p := range g {
		if p == nil {
			continue
		}
		if value, ok := p.Get(name); ok {
			return value, ok
		}
	}
	return reflect.Value{}, false
}

// structParameter is a parameter that wraps a struct.
type structParameter struct {
	reflect.Value
}

// Get implements Parameter.
// Exported field names match first, then param tags.
func (p structParameter) Get(name string) (reflect.Value, bool) {
	indexes, ok := reflectlite.FieldIndexes(p.Type(), TagName, name)
	if !ok {
		return reflect.Value{}, false
	}
	value, err := p.FieldByIndexErr(indexes)
	if err != nil || !value.CanInterface() {
		return reflect.Value{}, false
	}
	return value, true
}

// mapParameter is a parameter that wraps a map with string keys.
type mapParameter struct {
	reflect.Value
}

// Get implements Parameter.
func (p mapParameter) Get(name string) (reflect.Value, bool) {
	key := reflect.ValueOf(name).Convert(p.Type().Key())
	value := p.MapIndex(key)
	if !value.IsValid() {
		return reflect.Value{}, false
	}
	return value, true
}

// sliceParameter is a parameter that wraps a slice or an array and resolves
// decimal indexes.
type sliceParameter struct {
	reflect.Value
}

// Get implements Parameter.
func (p sliceParameter) Get(name string) (reflect.Value, bool) {
	index, err := strconv.Atoi(name)
	if err != nil || index < 0 || index >= p.Len() {
		return reflect.Value{}, false
	}
	return p.Index(index), true
}

// GenericParameter resolves dotted paths such as "user.address.city" or
// "ids.0" against an arbitrary value.
// It caches resolved paths and is therefore not safe for concurrent use;
// create one per render.
type GenericParameter struct {
	// Value is the wrapped value
	Value reflect.Value

	// cache holds the final value of each resolved path.
	cache map[string]reflect.Value
}

func (g *GenericParameter) get(name string) (value reflect.Value, exists bool) {
	value = g.Value
	for _, item := range strings.Split(name, ".") {
		// only unwrap when the value need to call Get method
		value = reflectlite.Unwrap(value)
		if reflectlite.IsNil(value) {
			return reflect.Value{}, false
		}

		var param Parameter
		switch value.Kind() {
		case reflect.Map:
			if value.Type().Key().Kind() != reflect.String {
				return reflect.Value{}, false
			}
			param = mapParameter{Value: value}
		case reflect.Struct:
			param = structParameter{Value: value}
		case reflect.Slice, reflect.Array:
			param = sliceParameter{Value: value}
		default:
			return reflect.Value{}, false
		}
		value, exists = param.Get(item)
		if !exists {
			return reflect.Value{}, false
		}
	}
	return value, true
}

// Get implements Parameter.
func (g *GenericParameter) Get(name string) (value reflect.Value, exists bool) {
	if name == "" {
		return reflect.Value{}, false
	}
	value, exists = g.cache[name]
	if exists {
		return value, exists
	}
	value, exists = g.get(name)
	if exists {
		if g.cache == nil {
			g.cache = make(map[string]reflect.Value)
		}
		g.cache[name] = value
	}
	return value, exists
}

// Clear clears the cache of the parameter.
func (g *GenericParameter) Clear() {
	clear(g.cache)
}

// NewGenericParam creates a generic parameter.
// Maps and structs are exposed as they are; any other value, slices
// included, is exposed under wrapKey (DefaultParamKey when empty).
func NewGenericParam(v any, wrapKey string) Parameter {
	if v == nil {
		return noOPParameter
	}
	if p, ok := v.(Parameter); ok {
		return p
	}
	value := reflect.ValueOf(v)

	switch reflectlite.IndirectType(value.Type()).Kind() {
	case reflect.Map, reflect.Struct:
		// do nothing
	default:
		if wrapKey == "" {
			wrapKey = DefaultParamKey
		}
		value = reflect.ValueOf(H{wrapKey: v})
	}
	return &GenericParameter{Value: value}
}

// NewParameter creates a new parameter with the given value.
func NewParameter(v any) Parameter {
	return NewGenericParam(v, "")
}

// H is a shortcut for map[string]any
type H map[string]any

// AsParam converts the H to a Parameter.
func (h H) AsParam() Parameter {
	return NewParameter(h)
}
