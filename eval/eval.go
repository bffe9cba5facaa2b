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

// Package eval compiles the test expressions used by conditional SQL
// fragments and resolves named parameters against maps, structs and slices.
package eval

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"strconv"

	"github.com/go-juicedev/sqlquery/internal/reflectlite"
)

// SyntaxError represents a syntax error.
// The error occurs when parsing the expression.
type SyntaxError struct {
	Expr string
	err  error
}

// Error returns the error message.
func (s *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in %q: %v", s.Expr, s.err)
}

// Unwrap returns the underlying error.
func (s *SyntaxError) Unwrap() error {
	return s.err
}

// ErrInvalidOperation is returned when an operator is applied to operands it
// does not support.
var ErrInvalidOperation = errors.New("eval: invalid operation")

// Value is an alias of reflect.Value.
// for semantic.
type Value = reflect.Value

// Expression is an expression which can be evaluated to a value.
// An Expression is immutable and safe for concurrent use.
type Expression interface {
	// Execute evaluates the expression and returns the value.
	Execute(params Parameter) (Value, error)
}

// goExpression is an expression who uses the go/ast package.
type goExpression struct {
	ast.Expr
	source string
}

// Execute evaluates the expression and returns the value.
func (e *goExpression) Execute(params Parameter) (Value, error) {
	value, err := eval(e.Expr, params)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("evaluate %q: %w", e.source, err)
	}
	return value, nil
}

// Compile compiles the expression.
// Besides Go syntax it accepts and, or, not, null and single quoted strings.
func Compile(expr string) (Expression, error) {
	source := expr
	expr = NewLexer(expr).Tokenize()

	exp, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, &SyntaxError{Expr: source, err: err}
	}

	optimizer := &StaticExprOptimizer{}
	optimizedExp, err := optimizer.Optimize(exp)
	if err != nil {
		return nil, &SyntaxError{Expr: source, err: err}
	}
	return &goExpression{Expr: optimizedExp, source: source}, nil
}

// Eval compiles and evaluates expr in one step.
func Eval(expr string, params Parameter) (Value, error) {
	expression, err := Compile(expr)
	if err != nil {
		return reflect.Value{}, err
	}
	return expression.Execute(params)
}

// Truthy evaluates expression and reports whether the result is true.
// Absent parameters, nil, zero numbers and empty strings or collections are false.
func Truthy(expression Expression, params Parameter) (bool, error) {
	value, err := expression.Execute(params)
	if err != nil {
		return false, err
	}
	return reflectlite.Truthy(value), nil
}

func eval(exp ast.Expr, params Parameter) (reflect.Value, error) {
	switch exp := exp.(type) {
	case *ast.BinaryExpr:
		return evalBinaryExpr(exp, params)
	case *ast.ParenExpr:
		return eval(exp.X, params)
	case *ast.BasicLit:
		return evalBasicLit(exp)
	case *ast.Ident:
		return evalIdent(exp, params)
	case *ast.SelectorExpr:
		return evalSelectorExpr(exp, params)
	case *ast.CallExpr:
		return evalCallExpr(exp, params)
	case *ast.UnaryExpr:
		return evalUnaryExpr(exp, params)
	case *ast.IndexExpr:
		return evalIndexExpr(exp, params)
	default:
		return reflect.Value{}, fmt.Errorf("unsupported expression: %T", exp)
	}
}

func evalUnaryExpr(exp *ast.UnaryExpr, params Parameter) (reflect.Value, error) {
	value, err := eval(exp.X, params)
	if err != nil {
		return reflect.Value{}, err
	}
	switch exp.Op {
	case token.NOT:
		return reflect.ValueOf(!reflectlite.Truthy(value)), nil
	case token.SUB, token.ADD:
		value = reflectlite.Unwrap(value)
		switch {
		case isInt(value):
			if exp.Op == token.SUB {
				return reflect.ValueOf(-value.Int()), nil
			}
			return reflect.ValueOf(value.Int()), nil
		case isFloat(value):
			if exp.Op == token.SUB {
				return reflect.ValueOf(-value.Float()), nil
			}
			return reflect.ValueOf(value.Float()), nil
		case isUint(value):
			if exp.Op == token.SUB {
				return reflect.ValueOf(-int64(value.Uint())), nil
			}
			return reflect.ValueOf(value.Uint()), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: unary %s", ErrInvalidOperation, exp.Op)
}

// ErrIndexOutOfRange is returned when an index expression exceeds its operand.
var ErrIndexOutOfRange = errors.New("eval: index out of range")

func evalIndexExpr(exp *ast.IndexExpr, params Parameter) (reflect.Value, error) {
	value, err := eval(exp.X, params)
	if err != nil {
		return reflect.Value{}, err
	}
	value = reflectlite.Unwrap(value)
	if reflectlite.IsNil(value) {
		return reflect.Value{}, nil
	}

	index, err := eval(exp.Index, params)
	if err != nil {
		return reflect.Value{}, err
	}
	index = reflectlite.Unwrap(index)

	switch value.Kind() {
	case reflect.Array, reflect.Slice, reflect.String:
		if !isInt(index) && !isUint(index) {
			return reflect.Value{}, fmt.Errorf("%w: non-integer index", ErrInvalidOperation)
		}
		i, _ := toInt64(index)
		if i < 0 || i >= int64(value.Len()) {
			return reflect.Value{}, ErrIndexOutOfRange
		}
		return value.Index(int(i)), nil
	case reflect.Map:
		if !index.IsValid() || !index.Type().AssignableTo(value.Type().Key()) {
			if !index.IsValid() || !index.CanConvert(value.Type().Key()) {
				return reflect.Value{}, fmt.Errorf("%w: invalid map key", ErrInvalidOperation)
			}
			index = index.Convert(value.Type().Key())
		}
		// a missing key evaluates to nil
		return value.MapIndex(index), nil
	default:
		return reflect.Value{}, fmt.Errorf("%w: index of %s", ErrInvalidOperation, value.Kind())
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func evalCallExpr(exp *ast.CallExpr, params Parameter) (reflect.Value, error) {
	fn, err := eval(exp.Fun, params)
	if err != nil {
		return reflect.Value{}, err
	}
	if fn.Kind() == reflect.Interface {
		fn = fn.Elem()
	}
	if fn.Kind() != reflect.Func {
		return reflect.Value{}, errors.New("unsupported call expression")
	}
	fnType := fn.Type()

	args, err := prepareCallArgs(exp, fnType, params)
	if err != nil {
		return reflect.Value{}, err
	}

	switch fnType.NumOut() {
	case 1:
		return fn.Call(args)[0], nil
	case 2:
		if !fnType.Out(1).Implements(errorType) {
			return reflect.Value{}, errors.New("the second return value must be an error")
		}
		rets := fn.Call(args)
		if !rets[1].IsNil() {
			return reflect.Value{}, rets[1].Interface().(error)
		}
		return rets[0], nil
	default:
		return reflect.Value{}, fmt.Errorf("invalid number of return values: expected 1 or 2, got %d", fnType.NumOut())
	}
}

// prepareCallArgs evaluates call arguments and converts them to the
// parameter types of fnType.
func prepareCallArgs(exp *ast.CallExpr, fnType reflect.Type, params Parameter) ([]reflect.Value, error) {
	if exp.Ellipsis.IsValid() {
		return nil, errors.New("slice unpacking is not supported")
	}
	numIn := fnType.NumIn()
	fixed := numIn
	if fnType.IsVariadic() {
		fixed = numIn - 1
		if len(exp.Args) < fixed {
			return nil, fmt.Errorf("invalid number of arguments: expected at least %d, got %d", fixed, len(exp.Args))
		}
	} else if len(exp.Args) != numIn {
		return nil, fmt.Errorf("invalid number of arguments: expected %d, got %d", numIn, len(exp.Args))
	}

	args := make([]reflect.Value, 0, len(exp.Args))
	for i, arg := range exp.Args {
		value, err := eval(arg, params)
		if err != nil {
			return nil, err
		}
		in := fnType.In(min(i, numIn-1))
		if i >= fixed {
			in = in.Elem()
		}
		converted, err := convertArg(value, in)
		if err != nil {
			return nil, err
		}
		args = append(args, converted)
	}
	return args, nil
}

func convertArg(value reflect.Value, in reflect.Type) (reflect.Value, error) {
	if in.Kind() != reflect.Interface {
		value = reflectlite.Unwrap(value)
	}
	if reflectlite.IsNil(value) && (value.Kind() == reflect.Interface || !value.IsValid()) {
		return reflect.Zero(in), nil
	}
	if value.Type().AssignableTo(in) {
		return value, nil
	}
	if value.CanConvert(in) {
		return value.Convert(in), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", reflectlite.TypeName(value.Type()), reflectlite.TypeName(in))
}

var errInvalidSelectorExpr = errors.New("invalid selector expression")

// evalSelectorExpr resolves x.name as a map key, a struct field (by name or
// by param tag) or a method of x. A nil x yields nil.
func evalSelectorExpr(exp *ast.SelectorExpr, params Parameter) (reflect.Value, error) {
	if exp.Sel == nil || exp.Sel.Name == "" {
		return reflect.Value{}, errInvalidSelectorExpr
	}
	name := exp.Sel.Name

	x, err := eval(exp.X, params)
	if err != nil {
		return reflect.Value{}, err
	}

	// methods are looked up before dereferencing so pointer receivers are found
	receiver := x
	if receiver.Kind() == reflect.Interface && !receiver.IsNil() {
		receiver = receiver.Elem()
	}
	if token.IsExported(name) && receiver.IsValid() && receiver.Kind() != reflect.Interface {
		if method := receiver.MethodByName(name); method.IsValid() {
			return method, nil
		}
	}

	unwrapped := reflectlite.Unwrap(x)
	if reflectlite.IsNil(unwrapped) {
		return reflect.Value{}, nil
	}

	switch unwrapped.Kind() {
	case reflect.Struct:
		if indexes, ok := reflectlite.FieldIndexes(unwrapped.Type(), TagName, name); ok {
			if field := unwrapped.FieldByIndex(indexes); field.CanInterface() {
				return field, nil
			}
		}
	case reflect.Map:
		if unwrapped.Type().Key().Kind() == reflect.String {
			key := reflect.ValueOf(name).Convert(unwrapped.Type().Key())
			return unwrapped.MapIndex(key), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", errInvalidSelectorExpr, name)
}

func evalIdent(exp *ast.Ident, params Parameter) (reflect.Value, error) {
	switch exp.Name {
	case "nil":
		return reflect.Value{}, nil
	case "true":
		return reflect.ValueOf(true), nil
	case "false":
		return reflect.ValueOf(false), nil
	}
	if params != nil {
		if value, ok := params.Get(exp.Name); ok {
			return value, nil
		}
	}
	if fn, ok := builtins[exp.Name]; ok {
		return fn, nil
	}
	// absent parameters evaluate to nil
	return reflect.Value{}, nil
}

var errUnsupportedBasicLiteral = errors.New("unsupported basic literal")

func evalBasicLit(exp *ast.BasicLit) (reflect.Value, error) {
	switch exp.Kind {
	case token.INT:
		value, err := strconv.ParseInt(exp.Value, 0, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(value), nil
	case token.FLOAT:
		value, err := strconv.ParseFloat(exp.Value, 64)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(value), nil
	case token.STRING:
		value, err := strconv.Unquote(exp.Value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(value), nil
	default:
		return reflect.Value{}, errUnsupportedBasicLiteral
	}
}

// evalBinaryExpr evaluates a binary expression.
// && and || short-circuit and operate on truthiness.
func evalBinaryExpr(exp *ast.BinaryExpr, params Parameter) (reflect.Value, error) {
	lhs, err := eval(exp.X, params)
	if err != nil {
		return reflect.Value{}, err
	}
	switch exp.Op {
	case token.LAND, token.LOR:
		left := reflectlite.Truthy(lhs)
		if (exp.Op == token.LAND && !left) || (exp.Op == token.LOR && left) {
			return reflect.ValueOf(left), nil
		}
		rhs, err := eval(exp.Y, params)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(reflectlite.Truthy(rhs)), nil
	}

	rhs, err := eval(exp.Y, params)
	if err != nil {
		return reflect.Value{}, err
	}
	switch exp.Op {
	case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
		return compare(exp.Op, lhs, rhs, isNilLiteral(exp.X) || isNilLiteral(exp.Y))
	case token.ADD, token.SUB, token.MUL, token.QUO, token.REM:
		return arithmetic(exp.Op, lhs, rhs)
	default:
		return reflect.Value{}, fmt.Errorf("%w: operator %s", ErrInvalidOperation, exp.Op)
	}
}

// isNilLiteral reports whether exp is the nil (null) literal.
func isNilLiteral(exp ast.Expr) bool {
	for {
		paren, ok := exp.(*ast.ParenExpr)
		if !ok {
			break
		}
		exp = paren.X
	}
	ident, ok := exp.(*ast.Ident)
	return ok && ident.Name == "nil"
}

// StaticExprOptimizer folds expressions that do not depend on parameters
// into literals at compile time.
type StaticExprOptimizer struct{}

// isStaticExpr checks if an expression is static (does not depend on runtime values)
func (s *StaticExprOptimizer) isStaticExpr(exp ast.Expr) bool {
	switch exp := exp.(type) {
	case *ast.BasicLit:
		return true
	case *ast.BinaryExpr:
		return s.isStaticExpr(exp.X) && s.isStaticExpr(exp.Y)
	case *ast.ParenExpr:
		return s.isStaticExpr(exp.X)
	case *ast.UnaryExpr:
		return s.isStaticExpr(exp.X)
	default:
		return false
	}
}

// Optimize evaluates exp if it is static and returns the equivalent literal.
func (s *StaticExprOptimizer) Optimize(exp ast.Expr) (ast.Expr, error) {
	if !s.isStaticExpr(exp) {
		return exp, nil
	}
	value, err := eval(exp, nil)
	if err != nil {
		return exp, err
	}
	switch value.Kind() {
	case reflect.Bool:
		return &ast.Ident{Name: strconv.FormatBool(value.Bool())}, nil
	case reflect.Int64:
		return &ast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(value.Int(), 10)}, nil
	case reflect.Float64:
		return &ast.BasicLit{Kind: token.FLOAT, Value: strconv.FormatFloat(value.Float(), 'g', -1, 64)}, nil
	case reflect.String:
		return &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(value.String())}, nil
	default:
		return exp, nil
	}
}
