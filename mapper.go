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
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/go-juicedev/sqlquery/eval"
	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

// ErrNilRows is returned when MapRows is given nil rows.
var ErrNilRows = errors.New("sqlquery: rows can not be nil")

// timeLayouts are tried in order when a text column maps to time.Time
// without a pattern.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// MapperSource converts result rows into map or struct values following
// column to property mappings declared by a <row-mapper> element.
//
// Column names match case-insensitively. Columns without a mapping are
// ignored, except that a map target without any mappings receives every
// column under its own name.
type MapperSource struct {
	id       string
	name     string
	resource string
	target   reflect.Type
	fields   []ResultMapping
	columns  map[string]int
}

// NewMapperSource returns a mapper registered under id producing values of
// target. A nil target produces map[string]any.
func NewMapperSource(id, name string, target reflect.Type, fields []ResultMapping) *MapperSource {
	if target == nil {
		target = reflect.TypeOf(map[string]any(nil))
	}
	m := &MapperSource{
		id:      id,
		name:    name,
		target:  target,
		fields:  append([]ResultMapping(nil), fields...),
		columns: make(map[string]int, len(fields)),
	}
	for i, f := range m.fields {
		column := f.Column
		if column == "" {
			column = f.Name
		}
		m.columns[foldColumn(column)] = i
	}
	return m
}

// foldColumn case-folds a column name. A Caser keeps state, so one is created per call.
func foldColumn(column string) string {
	return cases.Fold().String(column)
}

// ID returns the full mapper id.
func (m *MapperSource) ID() string { return m.id }

// Name returns the mapper name without its namespace.
func (m *MapperSource) Name() string { return m.name }

// Resource returns the resource the mapper was loaded from.
func (m *MapperSource) Resource() string { return m.resource }

// Target returns the type of the produced values.
func (m *MapperSource) Target() reflect.Type { return m.target }

// Fields returns a copy of the mappings.
func (m *MapperSource) Fields() []ResultMapping {
	return append([]ResultMapping(nil), m.fields...)
}

// MapRow converts one row into a value of the target type.
func (m *MapperSource) MapRow(columns []string, values []any) (any, error) {
	if len(columns) != len(values) {
		return nil, fmt.Errorf("mapper %q: %d columns but %d values", m.id, len(columns), len(values))
	}
	switch t := reflectlite.IndirectType(m.target); t.Kind() {
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("mapper %q: map target needs string keys, got %s", m.id, reflectlite.TypeName(t))
		}
		return m.mapToMap(t, columns, values)
	case reflect.Struct:
		return m.mapToStruct(t, columns, values)
	default:
		return nil, fmt.Errorf("mapper %q: unsupported target %s", m.id, reflectlite.TypeName(m.target))
	}
}

func (m *MapperSource) mapToMap(t reflect.Type, columns []string, values []any) (any, error) {
	out := reflect.MakeMapWithSize(t, len(columns))
	elem := t.Elem()
	set := func(key string, value any) error {
		if value == nil {
			out.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), reflect.Zero(elem))
			return nil
		}
		v := reflect.ValueOf(value)
		if !v.Type().AssignableTo(elem) {
			if !v.CanConvert(elem) {
				return fmt.Errorf("mapper %q: cannot use %s as %s", m.id, reflectlite.TypeName(v.Type()), reflectlite.TypeName(elem))
			}
			v = v.Convert(elem)
		}
		out.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), v)
		return nil
	}
	for i, column := range columns {
		if len(m.fields) == 0 {
			if err := set(column, values[i]); err != nil {
				return nil, err
			}
			continue
		}
		fi, ok := m.columns[foldColumn(column)]
		if !ok {
			continue
		}
		field := m.fields[fi]
		value, err := convertColumn(values[i], field, field.Type)
		if err != nil {
			return nil, fmt.Errorf("mapper %q: column %q: %w", m.id, column, err)
		}
		if err = set(field.Name, value); err != nil {
			return nil, err
		}
	}
	return out.Interface(), nil
}

func (m *MapperSource) mapToStruct(t reflect.Type, columns []string, values []any) (any, error) {
	ptr := reflect.New(t)
	dst := ptr.Elem()
	for i, column := range columns {
		property := column
		field := ResultMapping{Name: column, Column: column}
		if len(m.fields) > 0 {
			fi, ok := m.columns[foldColumn(column)]
			if !ok {
				continue
			}
			field = m.fields[fi]
			property = field.Name
		}
		index, ok := reflectlite.FieldIndexes(t, eval.TagName, property)
		if !ok {
			if len(m.fields) == 0 {
				continue
			}
			return nil, fmt.Errorf("mapper %q: %s has no property %q", m.id, reflectlite.TypeName(t), property)
		}
		fv, err := dst.FieldByIndexErr(index)
		if err != nil {
			return nil, fmt.Errorf("mapper %q: property %q: %w", m.id, property, err)
		}
		if !fv.CanSet() {
			return nil, fmt.Errorf("mapper %q: property %q is not settable", m.id, property)
		}
		target := field.Type
		if target == nil {
			target = fv.Type()
		}
		value, err := convertColumn(values[i], field, target)
		if err != nil {
			return nil, fmt.Errorf("mapper %q: column %q: %w", m.id, column, err)
		}
		if err = assignField(fv, value); err != nil {
			return nil, fmt.Errorf("mapper %q: column %q: %w", m.id, column, err)
		}
	}
	if m.target.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}
	return dst.Interface(), nil
}

func assignField(fv reflect.Value, value any) error {
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(fv.Type()) {
		fv.Set(v)
		return nil
	}
	return convertAssign(fv.Addr().Interface(), value)
}

var (
	boolType   = reflect.TypeOf(false)
	timeType   = reflect.TypeOf(time.Time{})
	bigIntType = reflect.TypeOf((*big.Int)(nil))
	anyType    = reflect.TypeOf((*any)(nil)).Elem()
	bytesType  = reflect.TypeOf([]byte(nil))
)

// convertColumn converts a driver value for field into target.
// A nil target keeps the driver value.
func convertColumn(value any, field ResultMapping, target reflect.Type) (any, error) {
	if value == nil {
		return nil, nil
	}
	if field.Encoding != "" {
		var err error
		if value, err = transcode(value, field.Encoding); err != nil {
			return nil, err
		}
	}
	if target == nil || target == anyType {
		return value, nil
	}
	switch target {
	case boolType:
		if n, ok := asInt64(value); ok {
			return n == 1, nil
		}
	case timeType:
		if s, ok := asString(value); ok {
			return parseTime(s, field.Pattern)
		}
	case bigIntType:
		if n, ok := asInt64(value); ok {
			return big.NewInt(n), nil
		}
		if s, ok := asString(value); ok {
			n, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
			if !ok {
				return nil, fmt.Errorf("cannot parse %q as big integer", s)
			}
			return n, nil
		}
	}
	dst := reflect.New(target)
	if err := convertAssign(dst.Interface(), value); err != nil {
		return nil, err
	}
	return dst.Elem().Interface(), nil
}

func asInt64(value any) (int64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	default:
		return 0, false
	}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

func parseTime(s, pattern string) (time.Time, error) {
	if pattern != "" {
		return time.Parse(pattern, s)
	}
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// transcode applies an encoding="src>dst" conversion: the text is encoded
// with src and the resulting bytes are decoded as dst. It repairs text that
// was read with the wrong charset.
func transcode(value any, encoding string) (any, error) {
	s, ok := asString(value)
	if !ok {
		return value, nil
	}
	from, to, found := strings.Cut(encoding, ">")
	if !found {
		return nil, fmt.Errorf("invalid encoding %q, want src>dst", encoding)
	}
	src, err := htmlindex.Get(strings.TrimSpace(from))
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", from, err)
	}
	dst, err := htmlindex.Get(strings.TrimSpace(to))
	if err != nil {
		return nil, fmt.Errorf("encoding %q: %w", to, err)
	}
	raw, err := src.NewEncoder().String(s)
	if err != nil {
		return nil, err
	}
	decoded, err := dst.NewDecoder().String(raw)
	if err != nil {
		return nil, err
	}
	if reflect.TypeOf(value) == bytesType {
		return []byte(decoded), nil
	}
	return decoded, nil
}

// MapRows reads every remaining row of rows through MapRow.
func (m *MapperSource) MapRows(rows Rows) ([]any, error) {
	if rows == nil {
		return nil, ErrNilRows
	}
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var list []any
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, err
		}
		item, err := m.MapRow(columns, values)
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, rows.Err()
}

// ScanMapped reads every row of rows through src into values of T, which
// must be the mapper's target type.
func ScanMapped[T any](rows Rows, src *MapperSource) ([]T, error) {
	items, err := src.MapRows(rows)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, ok := item.(T)
		if !ok {
			return nil, fmt.Errorf("mapper %q produces %s, not %s", src.id,
				reflectlite.TypeName(src.target), reflectlite.TypeName(reflect.TypeOf((*T)(nil)).Elem()))
		}
		out = append(out, v)
	}
	return out, nil
}
