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

package sqlquery

import (
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TypeAliasRegistry maps short type names used in statement definitions,
// such as javaType="long", to Go types. Keys are case-insensitive.
// It is safe for concurrent use.
type TypeAliasRegistry struct {
	mu      sync.RWMutex
	aliases map[string]reflect.Type
}

// NewTypeAliasRegistry returns a registry holding the default aliases.
func NewTypeAliasRegistry() *TypeAliasRegistry {
	r := &TypeAliasRegistry{aliases: make(map[string]reflect.Type)}
	for alias, t := range defaultAliases() {
		r.aliases[aliasKey(alias)] = t
	}
	return r
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func defaultAliases() map[string]reflect.Type {
	return map[string]reflect.Type{
		"string":     typeOf[string](),
		"byte":       typeOf[byte](),
		"_byte":      typeOf[byte](),
		"short":      typeOf[int16](),
		"_short":     typeOf[int16](),
		"int":        typeOf[int](),
		"_int":       typeOf[int](),
		"integer":    typeOf[int](),
		"_integer":   typeOf[int](),
		"long":       typeOf[int64](),
		"_long":      typeOf[int64](),
		"float":      typeOf[float32](),
		"_float":     typeOf[float32](),
		"double":     typeOf[float64](),
		"_double":    typeOf[float64](),
		"bool":       typeOf[bool](),
		"boolean":    typeOf[bool](),
		"_boolean":   typeOf[bool](),
		"date":       typeOf[time.Time](),
		"timestamp":  typeOf[time.Time](),
		"duration":   typeOf[time.Duration](),
		"decimal":    typeOf[decimal.Decimal](),
		"bigdecimal": typeOf[decimal.Decimal](),
		"biginteger": typeOf[*big.Int](),
		"object":     typeOf[any](),
		"map":        typeOf[map[string]any](),
		"hashmap":    typeOf[map[string]any](),
		"list":       typeOf[[]any](),
		"arraylist":  typeOf[[]any](),
		"collection": typeOf[[]any](),
		"iterator":   typeOf[[]any](),
		"uuid":       typeOf[uuid.UUID](),
		"bytes":      typeOf[[]byte](),
		"byte[]":     typeOf[[]byte](),
		"_byte[]":    typeOf[[]byte](),
		"short[]":    typeOf[[]int16](),
		"int[]":      typeOf[[]int](),
		"_int[]":     typeOf[[]int](),
		"integer[]":  typeOf[[]int](),
		"long[]":     typeOf[[]int64](),
		"_long[]":    typeOf[[]int64](),
		"float[]":    typeOf[[]float32](),
		"double[]":   typeOf[[]float64](),
		"boolean[]":  typeOf[[]bool](),
		"string[]":   typeOf[[]string](),
		"date[]":     typeOf[[]time.Time](),
		"decimal[]":  typeOf[[]decimal.Decimal](),
		"object[]":   typeOf[[]any](),
	}
}

// aliasKey normalises an alias. A Caser keeps state, so one is created per call.
func aliasKey(alias string) string {
	return cases.Lower(language.English).String(alias)
}

// RegisterAlias maps alias to t. Registering an alias again with the same
// type is a no-op; registering it with another type returns a
// *TypeAliasConflictError.
func (r *TypeAliasRegistry) RegisterAlias(alias string, t reflect.Type) error {
	if alias == "" {
		return fmt.Errorf("%w: empty type alias", ErrConfiguration)
	}
	if t == nil {
		return fmt.Errorf("%w: nil type for alias %q", ErrConfiguration, alias)
	}
	key := aliasKey(alias)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.aliases[key]; ok {
		if existing == t {
			return nil
		}
		return &TypeAliasConflictError{Alias: key, Existing: existing, Requested: t}
	}
	r.aliases[key] = t
	return nil
}

// RegisterAliasOf maps alias to the type T.
func RegisterAliasOf[T any](r *TypeAliasRegistry, alias string) error {
	return r.RegisterAlias(alias, typeOf[T]())
}

// ResolveAlias returns the type registered for alias.
func (r *TypeAliasRegistry) ResolveAlias(alias string) (reflect.Type, error) {
	key := aliasKey(alias)
	r.mu.RLock()
	t, ok := r.aliases[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown type alias %q", ErrConfiguration, alias)
	}
	return t, nil
}

// Aliases returns the registered aliases in ascending order.
func (r *TypeAliasRegistry) Aliases() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.aliases))
	for name := range r.aliases {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}
