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
	"strings"
)

// StatementType tells the execution layer how a statement is sent to the database.
type StatementType string

const (
	// Prepared statements bind their arguments as placeholders.
	Prepared StatementType = "PREPARED"

	// Plain statements are sent as text.
	Plain StatementType = "STATEMENT"

	// Callable statements invoke stored procedures.
	Callable StatementType = "CALLABLE"
)

func (s StatementType) String() string {
	return string(s)
}

// ParseStatementType parses a statementType attribute. An empty value is Prepared.
func ParseStatementType(s string) (StatementType, error) {
	switch t := StatementType(strings.ToUpper(strings.TrimSpace(s))); t {
	case "":
		return Prepared, nil
	case Prepared, Plain, Callable:
		return t, nil
	default:
		return "", fmt.Errorf("unknown statement type %q", s)
	}
}

// ParameterMode is the direction of a stored procedure parameter.
type ParameterMode string

const (
	// ModeIn is an input parameter.
	ModeIn ParameterMode = "IN"

	// ModeOut is an output parameter.
	ModeOut ParameterMode = "OUT"

	// ModeInOut is both.
	ModeInOut ParameterMode = "INOUT"
)

func (m ParameterMode) String() string {
	return string(m)
}

// ForRead reports whether the database reads the parameter.
func (m ParameterMode) ForRead() bool {
	return m == ModeIn || m == ModeInOut
}

// ForWrite reports whether the database writes the parameter.
func (m ParameterMode) ForWrite() bool {
	return m == ModeOut || m == ModeInOut
}

// ParseParameterMode parses a mode attribute. An empty value is ModeIn.
func ParseParameterMode(s string) (ParameterMode, error) {
	switch m := ParameterMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return ModeIn, nil
	case ModeIn, ModeOut, ModeInOut:
		return m, nil
	default:
		return "", fmt.Errorf("unknown parameter mode %q", s)
	}
}
