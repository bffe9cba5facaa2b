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
	"go/scanner"
	"go/token"
	"strconv"
	"strings"
)

// identReplacer converts logical operators from human-readable format to Go syntax.
// It maps:
//   - "and" to "&&"
//   - "or" to "||"
//   - "not" to "!"
//   - "null" to "nil"
//
// Any other identifiers are returned unchanged.
func identReplacer(s string) string {
	switch s {
	case "and":
		return "&&"
	case "or":
		return "||"
	case "not":
		return "!"
	case "null":
		return "nil"
	default:
		return s
	}
}

// Lexer performs lexical analysis on test expressions before they are
// handed to go/parser.
type Lexer struct {
	scanner scanner.Scanner
}

// Tokenize returns the input rewritten with Go operators.
// Single quoted literals such as 'active' become Go string literals.
func (l *Lexer) Tokenize() string {
	var tokens []string
	for {
		_, tok, lit := l.scanner.Scan()
		if tok == token.EOF {
			break
		}
		switch tok {
		case token.IDENT:
			tokens = append(tokens, identReplacer(lit))
		case token.CHAR:
			tokens = append(tokens, quoteChar(lit))
		case token.SEMICOLON:
			// automatically inserted at end of input
			if lit != ";" {
				continue
			}
			tokens = append(tokens, lit)
		default:
			if lit != "" {
				tokens = append(tokens, lit)
			} else {
				tokens = append(tokens, tok.String())
			}
		}
	}
	return strings.Join(tokens, " ")
}

func quoteChar(lit string) string {
	if len(lit) < 2 {
		return lit
	}
	inner := strings.ReplaceAll(lit[1:len(lit)-1], `\'`, `'`)
	return strconv.Quote(inner)
}

// NewLexer creates a new Lexer instance with the given input string.
func NewLexer(input string) *Lexer {
	var s scanner.Scanner
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(input))
	// errors are reported by go/parser afterwards
	s.Init(file, []byte(input), func(token.Position, string) {}, 0)
	return &Lexer{scanner: s}
}
