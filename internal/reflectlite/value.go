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

import "reflect"

// Unwrap continuously dereferences pointers and interfaces until a non-pointer/non-interface value is reached.
// If the initial value is not a pointer or interface, it's returned directly.
// A nil pointer or interface stops the walk and is returned as is.
func Unwrap(value reflect.Value) reflect.Value {
	for value.IsValid() {
		switch value.Kind() {
		case reflect.Ptr, reflect.Interface:
			if value.IsNil() {
				return value
			}
			value = value.Elem()
		default:
			return value
		}
	}
	return value
}

// IsNilable checks if a reflect.Value can be nil.
// An invalid reflect.Value is reported as nilable.
func IsNilable(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// IsNil reports whether v is invalid or a nil value of a nilable kind.
func IsNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	return IsNilable(v) && v.IsNil()
}

// Truthy reports whether v should be considered true in a condition.
//   - invalid, nil pointers, nil interfaces: false
//   - bool: its value
//   - numbers: non-zero
//   - strings, slices, arrays, maps: non-empty
//   - structs and everything else: true
func Truthy(v reflect.Value) bool {
	v = Unwrap(v)
	if IsNil(v) {
		return false
	}
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return v.Float() != 0
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() > 0
	default:
		return true
	}
}
