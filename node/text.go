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

package node

import (
	"sort"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// pureTextNode is a node of pure text.
// It is used to avoid unnecessary parameter replacement.
type pureTextNode string

// Accept implements Node.
func (p pureTextNode) Accept(_ dialect.Translator, _ eval.Parameter) (query string, args []any, err error) {
	return string(p), nil, nil
}

// TextNode is SQL text containing #{} placeholders or ${} substitutions.
type TextNode struct {
	value  string
	tokens []textToken
}

type textToken struct {
	match    string
	name     string
	isFormat bool // true for ${...}, false for #{...}
	index    int
}

// Accept accepts parameters and returns query and arguments.
// A placeholder whose name p cannot resolve is a *BindingError.
func (c *TextNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	if len(c.tokens) == 0 {
		return c.value, nil, nil
	}

	builder := getStringBuilder()
	defer putStringBuilder(builder)
	builder.Grow(len(c.value))

	lastIndex := 0
	for _, t := range c.tokens {
		builder.WriteString(c.value[lastIndex:t.index])
		value, exists := p.Get(t.name)
		if !exists {
			return "", nil, &BindingError{Name: t.name, Reason: "no value bound"}
		}

		if t.isFormat {
			text, err := textValue(t.name, value)
			if err != nil {
				return "", nil, err
			}
			builder.WriteString(text)
		} else {
			builder.WriteString(translator.Translate(t.name))
			args = append(args, argValue(value))
		}
		lastIndex = t.index + len(t.match)
	}
	builder.WriteString(c.value[lastIndex:])
	return builder.String(), args, nil
}

// Placeholders returns the names referenced by #{} in text order.
func (c *TextNode) Placeholders() []string {
	var names []string
	for _, t := range c.tokens {
		if !t.isFormat {
			names = append(names, t.name)
		}
	}
	return names
}

// NewTextNode creates a new text node based on the input string.
// It returns either a lightweight pureTextNode for static SQL,
// or a full TextNode for dynamic SQL with placeholders/substitutions.
func NewTextNode(str string) Node {
	placeholder := paramRegex.FindAllStringSubmatchIndex(str, -1)
	textSubstitution := formatRegexp.FindAllStringSubmatchIndex(str, -1)

	if len(placeholder) == 0 && len(textSubstitution) == 0 {
		return pureTextNode(str)
	}

	tokens := make([]textToken, 0, len(placeholder)+len(textSubstitution))
	for _, p := range placeholder {
		tokens = append(tokens, textToken{
			match: str[p[0]:p[1]],
			name:  str[p[2]:p[3]],
			index: p[0],
		})
	}
	for _, s := range textSubstitution {
		tokens = append(tokens, textToken{
			match:    str[s[0]:s[1]],
			name:     str[s[2]:s[3]],
			isFormat: true,
			index:    s[0],
		})
	}

	sort.Slice(tokens, func(i, j int) bool {
		return tokens[i].index < tokens[j].index
	})

	return &TextNode{value: str, tokens: tokens}
}

var _ Node = (*TextNode)(nil)
