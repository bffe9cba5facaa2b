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

package reflectlite

import (
	"reflect"
	"strings"
	"sync"
)

// fieldIndexCache caches tag lookups keyed by cacheKey.
var fieldIndexCache sync.Map

type cacheKey struct {
	Type     reflect.Type
	TagName  string
	TagValue string
}

type cacheEntry struct {
	indexes []int
	found   bool
}

// IndirectType returns the underlying type if t is a pointer type.
// Otherwise, it returns t directly.
// For example, if t is *int, it returns int. If t is int, it returns int.
func IndirectType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// TypeName returns a readable name of t including the package path for
// named, non built-in types. Example: "time.Time", "[]int", "map[string]interface {}".
func TypeName(t reflect.Type) string {
	var sb strings.Builder
	writeTypeName(&sb, t)
	return sb.String()
}

func writeTypeName(sb *strings.Builder, t reflect.Type) {
	if t == nil {
		sb.WriteString("<nil>")
		return
	}
	if t.Name() != "" {
		if t.PkgPath() != "" {
			sb.WriteString(t.PkgPath())
			sb.WriteByte('.')
		}
		sb.WriteString(t.Name())
		return
	}
	switch t.Kind() {
	case reflect.Slice:
		sb.WriteString("[]")
		writeTypeName(sb, t.Elem())
	case reflect.Ptr:
		sb.WriteByte('*')
		writeTypeName(sb, t.Elem())
	case reflect.Map:
		sb.WriteString("map[")
		writeTypeName(sb, t.Key())
		sb.WriteByte(']')
		writeTypeName(sb, t.Elem())
	default:
		sb.WriteString(t.String())
	}
}

// fieldIndexesFromTag searches typ and its embedded or untagged struct fields
// for a field whose tag tagName equals tagValue.
func fieldIndexesFromTag(typ reflect.Type, tagName, tagValue string) ([]int, bool) {
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if tag, _, _ := strings.Cut(field.Tag.Get(tagName), ","); tag == tagValue {
			return field.Index, true
		}
		if field.Type.Kind() == reflect.Struct && (field.Anonymous || field.Tag.Get(tagName) == "") {
			if indexes, ok := fieldIndexesFromTag(field.Type, tagName, tagValue); ok {
				return append(append([]int{}, field.Index...), indexes...), true
			}
		}
	}
	return nil, false
}

// FieldIndexesFromTag returns the index path of the struct field of t (or of
// the type t points to) tagged with tagName:"tagValue". Results are cached.
func FieldIndexesFromTag(t reflect.Type, tagName, tagValue string) ([]int, bool) {
	t = IndirectType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, false
	}
	key := cacheKey{Type: t, TagName: tagName, TagValue: tagValue}
	if cached, ok := fieldIndexCache.Load(key); ok {
		entry := cached.(cacheEntry)
		return entry.indexes, entry.found
	}
	indexes, found := fieldIndexesFromTag(t, tagName, tagValue)
	fieldIndexCache.Store(key, cacheEntry{indexes: indexes, found: found})
	return indexes, found
}

// FieldIndexes resolves name against the struct type t: an exported field
// name wins, then a field tagged tagName:"name". Matching is exact.
func FieldIndexes(t reflect.Type, tagName, name string) ([]int, bool) {
	t = IndirectType(t)
	if t == nil || t.Kind() != reflect.Struct || name == "" {
		return nil, false
	}
	if field, ok := t.FieldByName(name); ok && field.IsExported() {
		return field.Index, true
	}
	return FieldIndexesFromTag(t, tagName, name)
}
