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
	"go/token"
	"reflect"
	"strings"

	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(v reflect.Value) bool {
	return v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64
}

func isNumber(v reflect.Value) bool {
	return isInt(v) || isUint(v) || isFloat(v)
}

func toInt64(v reflect.Value) (int64, bool) {
	switch {
	case isInt(v):
		return v.Int(), true
	case isUint(v):
		return int64(v.Uint()), true
	}
	return 0, false
}

func toFloat64(v reflect.Value) float64 {
	switch {
	case isInt(v):
		return float64(v.Int())
	case isUint(v):
		return float64(v.Uint())
	default:
		return v.Float()
	}
}

// isAbsent reports whether v compares equal to nil.
// Empty slices and maps count as absent.
func isAbsent(v reflect.Value) bool {
	if reflectlite.IsNil(v) {
		return true
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	}
	return false
}

// compare applies a comparison operator. With nullCheck set one operand is
// the null literal and the comparison tests absence. Otherwise a nil operand,
// such as an absent parameter, makes every comparison false.
func compare(op token.Token, x, y reflect.Value, nullCheck bool) (reflect.Value, error) {
	x, y = reflectlite.Unwrap(x), reflectlite.Unwrap(y)

	if nullCheck {
		xAbsent, yAbsent := isAbsent(x), isAbsent(y)
		switch op {
		case token.EQL:
			return reflect.ValueOf(xAbsent && yAbsent), nil
		case token.NEQ:
			return reflect.ValueOf(xAbsent != yAbsent), nil
		default:
			return reflect.Value{}, fmt.Errorf("%w: %s with nil operand", ErrInvalidOperation, op)
		}
	}
	if reflectlite.IsNil(x) || reflectlite.IsNil(y) {
		return reflect.ValueOf(false), nil
	}

	result, ordered, err := compareValues(x, y)
	if err != nil {
		return reflect.Value{}, err
	}
	switch op {
	case token.EQL:
		return reflect.ValueOf(result == 0), nil
	case token.NEQ:
		return reflect.ValueOf(result != 0), nil
	}
	if !ordered {
		return reflect.Value{}, fmt.Errorf("%w: %s on %s", ErrInvalidOperation, op, x.Kind())
	}
	switch op {
	case token.LSS:
		return reflect.ValueOf(result < 0), nil
	case token.LEQ:
		return reflect.ValueOf(result <= 0), nil
	case token.GTR:
		return reflect.ValueOf(result > 0), nil
	default:
		return reflect.ValueOf(result >= 0), nil
	}
}

// compareValues returns -1, 0 or 1 and whether the operands are ordered.
// Unordered operands only report equality (0) or inequality (1).
func compareValues(x, y reflect.Value) (int, bool, error) {
	switch {
	case isNumber(x) && isNumber(y):
		if isInt(x) && isInt(y) {
			return cmp3(x.Int() < y.Int(), x.Int() > y.Int()), true, nil
		}
		if isUint(x) && isUint(y) {
			return cmp3(x.Uint() < y.Uint(), x.Uint() > y.Uint()), true, nil
		}
		a, b := toFloat64(x), toFloat64(y)
		return cmp3(a < b, a > b), true, nil
	case x.Kind() == reflect.String && y.Kind() == reflect.String:
		return strings.Compare(x.String(), y.String()), true, nil
	case x.Kind() == reflect.Bool && y.Kind() == reflect.Bool:
		if x.Bool() == y.Bool() {
			return 0, false, nil
		}
		return 1, false, nil
	case x.Type() == y.Type() && x.Type().Comparable():
		if x.Equal(y) {
			return 0, false, nil
		}
		return 1, false, nil
	default:
		return 0, false, fmt.Errorf("%w: mismatched types %s and %s",
			ErrInvalidOperation, reflectlite.TypeName(x.Type()), reflectlite.TypeName(y.Type()))
	}
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

func arithmetic(op token.Token, x, y reflect.Value) (reflect.Value, error) {
	x, y = reflectlite.Unwrap(x), reflectlite.Unwrap(y)
	if !x.IsValid() || !y.IsValid() {
		return reflect.Value{}, fmt.Errorf("%w: %s with nil operand", ErrInvalidOperation, op)
	}

	if x.Kind() == reflect.String && y.Kind() == reflect.String {
		if op != token.ADD {
			return reflect.Value{}, fmt.Errorf("%w: %s on string", ErrInvalidOperation, op)
		}
		return reflect.ValueOf(x.String() + y.String()), nil
	}
	if !isNumber(x) || !isNumber(y) {
		return reflect.Value{}, fmt.Errorf("%w: %s on %s and %s", ErrInvalidOperation, op, x.Kind(), y.Kind())
	}

	if !isFloat(x) && !isFloat(y) {
		a, _ := toInt64(x)
		b, _ := toInt64(y)
		switch op {
		case token.ADD:
			return reflect.ValueOf(a + b), nil
		case token.SUB:
			return reflect.ValueOf(a - b), nil
		case token.MUL:
			return reflect.ValueOf(a * b), nil
		case token.QUO, token.REM:
			if b == 0 {
				return reflect.Value{}, fmt.Errorf("%w: division by zero", ErrInvalidOperation)
			}
			if op == token.QUO {
				return reflect.ValueOf(a / b), nil
			}
			return reflect.ValueOf(a % b), nil
		}
	}

	a, b := toFloat64(x), toFloat64(y)
	switch op {
	case token.ADD:
		return reflect.ValueOf(a + b), nil
	case token.SUB:
		return reflect.ValueOf(a - b), nil
	case token.MUL:
		return reflect.ValueOf(a * b), nil
	case token.QUO:
		if b == 0 {
			return reflect.Value{}, fmt.Errorf("%w: division by zero", ErrInvalidOperation)
		}
		return reflect.ValueOf(a / b), nil
	default:
		return reflect.Value{}, fmt.Errorf("%w: %s on float", ErrInvalidOperation, op)
	}
}
