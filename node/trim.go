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
	"strings"
	"unicode"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// TrimNode handles SQL fragment cleanup by managing prefixes, suffixes, and their overrides.
//
// Example XML:
//
//	<trim prefix="WHERE" prefixOverrides="AND|OR">
//	  <if test="id > 0">
//	    AND id = #{id}
//	  </if>
//	  <if test='name != ""'>
//	    AND name = #{name}
//	  </if>
//	</trim>
//
// Example Result:
//
//	Input:  "AND id = ? AND name = ?"
//	Output: "WHERE id = ? AND name = ?"
//
// Overrides match case-insensitively. An override ending in a letter only
// matches a whole word, so "OR" does not strip the start of "ORDER".
type TrimNode struct {
	Nodes           Group
	Prefix          string
	PrefixOverrides []string
	Suffix          string
	SuffixOverrides []string
	BindNodes       BindNodeGroup
}

// Accept accepts parameters and returns query and arguments.
func (t TrimNode) Accept(translator dialect.Translator, p eval.Parameter) (query string, args []any, err error) {
	p = t.BindNodes.ConvertParameter(p)

	query, args, err = t.Nodes.Accept(translator, p)
	if err != nil {
		return "", nil, err
	}
	query = strings.TrimSpace(query)
	if len(query) == 0 {
		return "", nil, nil
	}

	for _, prefix := range t.PrefixOverrides {
		if rest, ok := trimKeywordPrefix(query, prefix); ok {
			query = rest
			break
		}
	}
	for _, suffix := range t.SuffixOverrides {
		if rest, ok := trimKeywordSuffix(query, suffix); ok {
			query = rest
			break
		}
	}

	var builder = getStringBuilder()
	defer putStringBuilder(builder)

	builder.Grow(len(t.Prefix) + len(query) + len(t.Suffix) + 2)
	if t.Prefix != "" {
		builder.WriteString(t.Prefix)
		if query != "" {
			builder.WriteByte(' ')
		}
	}
	builder.WriteString(query)
	if t.Suffix != "" {
		if query != "" {
			builder.WriteByte(' ')
		}
		builder.WriteString(t.Suffix)
	}
	return builder.String(), args, nil
}

func isWordByte(b byte) bool {
	return b == '_' || unicode.IsLetter(rune(b)) || unicode.IsDigit(rune(b))
}

// trimKeywordPrefix removes keyword from the start of s.
func trimKeywordPrefix(s, keyword string) (string, bool) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || len(s) < len(keyword) || !strings.EqualFold(s[:len(keyword)], keyword) {
		return s, false
	}
	if len(s) > len(keyword) && isWordByte(keyword[len(keyword)-1]) && isWordByte(s[len(keyword)]) {
		return s, false
	}
	return strings.TrimSpace(s[len(keyword):]), true
}

// trimKeywordSuffix removes keyword from the end of s.
func trimKeywordSuffix(s, keyword string) (string, bool) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" || len(s) < len(keyword) || !strings.EqualFold(s[len(s)-len(keyword):], keyword) {
		return s, false
	}
	if rest := len(s) - len(keyword); rest > 0 && isWordByte(keyword[0]) && isWordByte(s[rest-1]) {
		return s, false
	}
	return strings.TrimSpace(s[:len(s)-len(keyword)]), true
}

// SplitOverrides splits a "|" separated override attribute.
func SplitOverrides(attr string) []string {
	if strings.TrimSpace(attr) == "" {
		return nil
	}
	parts := strings.Split(attr, "|")
	overrides := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			overrides = append(overrides, part)
		}
	}
	return overrides
}

var _ Node = (*TrimNode)(nil)
