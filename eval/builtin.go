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
	"fmt"
	"reflect"
	"strings"

	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

// builtins are the functions callable from test expressions.
// A parameter with the same name shadows a builtin.
var builtins = map[string]reflect.Value{
	"len":       reflect.ValueOf(lenFunc),
	"empty":     reflect.ValueOf(emptyFunc),
	"notEmpty":  reflect.ValueOf(notEmptyFunc),
	"contains":  reflect.ValueOf(strings.Contains),
	"hasPrefix": reflect.ValueOf(strings.HasPrefix),
	"hasSuffix": reflect.ValueOf(strings.HasSuffix),
	"lower":     reflect.ValueOf(strings.ToLower),
	"upper":     reflect.ValueOf(strings.ToUpper),
	"trim":      reflect.ValueOf(strings.TrimSpace),
}

func lenFunc(v any) (int, error) {
	value := reflectlite.Unwrap(reflect.ValueOf(v))
	if reflectlite.IsNil(value) {
		return 0, nil
	}
	switch value.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return value.Len(), nil
	default:
		return 0, fmt.Errorf("%w: len of %s", ErrInvalidOperation, value.Kind())
	}
}

func emptyFunc(v any) bool {
	return !reflectlite.Truthy(reflect.ValueOf(v))
}

func notEmptyFunc(v any) bool {
	return reflectlite.Truthy(reflect.ValueOf(v))
}
