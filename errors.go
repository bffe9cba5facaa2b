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
	"reflect"

	"github.com/go-juicedev/sqlquery/internal/reflectlite"
	"github.com/go-juicedev/sqlquery/node"
)

var (
	// ErrStatementNotFound is matched by every *StatementNotFoundError.
	ErrStatementNotFound = errors.New("sqlquery: statement not found")

	// ErrMapperNotFound is matched by every *MapperNotFoundError.
	ErrMapperNotFound = errors.New("sqlquery: mapper not found")

	// ErrParameterBinding is matched by every *ParameterBindingError.
	ErrParameterBinding = node.ErrParameterBinding

	// ErrConfiguration is matched by every configuration failure.
	ErrConfiguration = errors.New("sqlquery: configuration error")

	// ErrConfigurationNotInitialized is returned by facades built without a Configuration.
	ErrConfigurationNotInitialized = fmt.Errorf("%w: configuration not initialized", ErrConfiguration)

	// ErrBuilder is matched by every *BuilderError.
	ErrBuilder = errors.New("sqlquery: invalid statement definition")

	// ErrEmptyQuery is returned when a statement renders no SQL.
	ErrEmptyQuery = errors.New("sqlquery: empty query")
)

// ParameterBindingError reports a placeholder that could not be bound.
type ParameterBindingError = node.BindingError

// StatementNotFoundError is returned when no statement is registered under ID.
type StatementNotFoundError struct {
	ID string
}

// Error implements error.
func (e *StatementNotFoundError) Error() string {
	return fmt.Sprintf("sqlquery: statement %q not found", e.ID)
}

// Is reports whether target is ErrStatementNotFound.
func (e *StatementNotFoundError) Is(target error) bool {
	return target == ErrStatementNotFound
}

// MapperNotFoundError is returned when no row mapper is registered under ID.
type MapperNotFoundError struct {
	ID string
}

// Error implements error.
func (e *MapperNotFoundError) Error() string {
	return fmt.Sprintf("sqlquery: mapper %q not found", e.ID)
}

// Is reports whether target is ErrMapperNotFound.
func (e *MapperNotFoundError) Is(target error) bool {
	return target == ErrMapperNotFound
}

// ConfigurationError reports a failed configuration step such as the
// initial directory scan.
type ConfigurationError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("sqlquery: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// TypeAliasConflictError is returned when an alias is registered again with
// a different type.
type TypeAliasConflictError struct {
	Alias     string
	Existing  reflect.Type
	Requested reflect.Type
}

// Error implements error.
func (e *TypeAliasConflictError) Error() string {
	return fmt.Sprintf("sqlquery: type alias %q is already mapped to %s, cannot map it to %s",
		e.Alias, reflectlite.TypeName(e.Existing), reflectlite.TypeName(e.Requested))
}

// Is reports whether target is ErrConfiguration.
func (e *TypeAliasConflictError) Is(target error) bool {
	return target == ErrConfiguration
}

// BuilderError reports an invalid statement definition resource.
type BuilderError struct {
	Resource string
	Line     int
	Err      error
}

// Error implements error.
func (e *BuilderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("sqlquery: %s:%d: %v", e.Resource, e.Line, e.Err)
	}
	return fmt.Sprintf("sqlquery: %s: %v", e.Resource, e.Err)
}

// Unwrap returns the underlying error.
func (e *BuilderError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrBuilder.
func (e *BuilderError) Is(target error) bool {
	return target == ErrBuilder
}

// nodeUnclosedError is returned when an element is not closed.
type nodeUnclosedError struct {
	nodeName string
}

// Error returns the error message.
func (e *nodeUnclosedError) Error() string {
	return fmt.Sprintf("node %s is not closed", e.nodeName)
}

// nodeAttributeRequiredError is returned when an element misses a required attribute.
type nodeAttributeRequiredError struct {
	nodeName string
	attrName string
}

// Error returns the error message.
func (e *nodeAttributeRequiredError) Error() string {
	return fmt.Sprintf("node %s requires attribute %s", e.nodeName, e.attrName)
}

// nodeAttributeInvalidError is returned when an attribute value cannot be parsed.
type nodeAttributeInvalidError struct {
	nodeName string
	attrName string
	value    string
}

// Error returns the error message.
func (e *nodeAttributeInvalidError) Error() string {
	return fmt.Sprintf("node %s has invalid attribute %s=%q", e.nodeName, e.attrName, e.value)
}
