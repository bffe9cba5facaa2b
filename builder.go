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
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/hashicorp/go-version"

	"github.com/go-juicedev/sqlquery/node"
)

// SQLSet is the parsed content of one statement definition resource.
type SQLSet struct {
	Name        string
	Namespace   string
	Version     *version.Version
	Description string
	Resource    string
	Statements  []*MappedStatement
	Mappers     []*MapperSource
}

// StatementIDs returns the ids of the statements in definition order.
func (s *SQLSet) StatementIDs() []string {
	ids := make([]string, 0, len(s.Statements))
	for _, stmt := range s.Statements {
		ids = append(ids, stmt.ID())
	}
	return ids
}

// XMLSQLSetBuilder parses <sqlset> documents.
//
//	<sqlset name="user" namespace="studio.user" version="1.0.0">
//	  <fragment id="columns">id, name</fragment>
//	  <sql-query id="select">
//	    SELECT <include refid="columns"/> FROM users
//	    <where><if test="status != null">status = #{status}</if></where>
//	  </sql-query>
//	  <row-mapper name="userRow" type="map">
//	    <result name="id" column="USER_ID" javaType="long"/>
//	  </row-mapper>
//	</sqlset>
//
// A resource is parsed as a whole: any invalid statement fails the resource.
type XMLSQLSetBuilder struct {
	cfg *Configuration
}

// NewXMLSQLSetBuilder returns a builder resolving type aliases with cfg.
func NewXMLSQLSetBuilder(cfg *Configuration) *XMLSQLSetBuilder {
	return &XMLSQLSetBuilder{cfg: cfg}
}

// Parse reads one resource. It does not touch the registry.
func (b *XMLSQLSetBuilder) Parse(r io.Reader, resource string) (*SQLSet, error) {
	if b == nil || b.cfg == nil {
		return nil, ErrConfigurationNotInitialized
	}
	p := &sqlsetParser{
		decoder:      xml.NewDecoder(r),
		aliases:      b.cfg.TypeAliasRegistry(),
		paramKey:     b.cfg.ParamKey(),
		set:          &SQLSet{Resource: resource},
		statementIDs: make(map[string]struct{}),
		mapperIDs:    make(map[string]struct{}),
		fragments:    make(map[string]*node.SQLNode),
		refs:         make(map[string][]string),
	}
	set, err := p.parse()
	if err != nil {
		line, _ := p.decoder.InputPos()
		return nil, &BuilderError{Resource: resource, Line: line, Err: err}
	}
	return set, nil
}

// Build parses one resource and applies it to the configuration.
func (b *XMLSQLSetBuilder) Build(r io.Reader, resource string) (ApplyResult, error) {
	set, err := b.Parse(r, resource)
	if err != nil {
		return ApplyResult{Resource: resource}, err
	}
	return b.cfg.ApplyResource(set)
}

type sqlsetParser struct {
	decoder      *xml.Decoder
	aliases      *TypeAliasRegistry
	paramKey     string
	set          *SQLSet
	statementIDs map[string]struct{}
	mapperIDs    map[string]struct{}
	fragments    map[string]*node.SQLNode
	includes     []*node.IncludeNode
	refs         map[string][]string // fragment id -> included fragment ids
	fragment     string              // fragment being parsed
}

func (p *sqlsetParser) parse() (*SQLSet, error) {
	for {
		token, err := p.decoder.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("missing sqlset element")
			}
			return nil, err
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "sqlset" {
			return nil, fmt.Errorf("unexpected root element %s", start.Name.Local)
		}
		if err = p.parseSQLSet(start); err != nil {
			return nil, err
		}
		if err = p.link(); err != nil {
			return nil, err
		}
		return p.set, nil
	}
}

// token returns the next token inside the element name.
func (p *sqlsetParser) token(name string) (xml.Token, error) {
	token, err := p.decoder.Token()
	if errors.Is(err, io.EOF) {
		return nil, &nodeUnclosedError{nodeName: name}
	}
	return token, err
}

func (p *sqlsetParser) parseSQLSet(start xml.StartElement) error {
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "name":
			p.set.Name = attr.Value
		case "namespace":
			p.set.Namespace = attr.Value
		case "description":
			p.set.Description = attr.Value
		case "version":
			v, err := version.NewVersion(attr.Value)
			if err != nil {
				return &nodeAttributeInvalidError{nodeName: "sqlset", attrName: "version", value: attr.Value}
			}
			p.set.Version = v
		}
	}
	if p.set.Namespace == "" {
		p.set.Namespace = p.set.Name
	}
	if p.set.Namespace == "" {
		return &nodeAttributeRequiredError{nodeName: "sqlset", attrName: "namespace"}
	}
	for {
		token, err := p.token("sqlset")
		if err != nil {
			return err
		}
		switch token := token.(type) {
		case xml.StartElement:
			switch token.Name.Local {
			case "description":
				text, err := p.parseCharData(token.Name.Local)
				if err != nil {
					return err
				}
				if p.set.Description == "" {
					p.set.Description = compactWhitespace(text)
				}
			case "fragment":
				err = p.parseFragment(token)
			case "sql-query", "sql":
				err = p.parseStatement(token)
			case "row-mapper":
				err = p.parseRowMapper(token)
			default:
				err = fmt.Errorf("unknown tag: %s", token.Name.Local)
			}
			if err != nil {
				return err
			}
		case xml.CharData:
			if strings.TrimSpace(string(token)) != "" {
				return errors.New("unexpected text in sqlset")
			}
		case xml.EndElement:
			if token.Name.Local == "sqlset" {
				return nil
			}
		}
	}
}

func (p *sqlsetParser) parseStatement(start xml.StartElement) error {
	var (
		id, name, description string
		opts                  = []StatementOption{WithParamName(p.paramKey)}
	)
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "id":
			id = attr.Value
		case "name":
			name = attr.Value
		case "description":
			description = attr.Value
		case "statementType":
			t, err := ParseStatementType(attr.Value)
			if err != nil {
				return &nodeAttributeInvalidError{nodeName: start.Name.Local, attrName: "statementType", value: attr.Value}
			}
			opts = append(opts, WithStatementType(t))
		case "fetchSize":
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n < 0 {
				return &nodeAttributeInvalidError{nodeName: start.Name.Local, attrName: "fetchSize", value: attr.Value}
			}
			opts = append(opts, WithFetchSize(n))
		case "timeout":
			n, err := strconv.Atoi(attr.Value)
			if err != nil || n < 0 {
				return &nodeAttributeInvalidError{nodeName: start.Name.Local, attrName: "timeout", value: attr.Value}
			}
			opts = append(opts, WithTimeout(time.Duration(n)*time.Second))
		case "paramName":
			if attr.Value != "" {
				opts = append(opts, WithParamName(attr.Value))
			}
		default:
			opts = append(opts, WithAttribute(attr.Name.Local, attr.Value))
		}
	}
	if id == "" {
		id = name
	}
	if id == "" {
		return &nodeAttributeRequiredError{nodeName: start.Name.Local, attrName: "id"}
	}
	fullID := p.set.Namespace + "." + id
	if _, exists := p.statementIDs[fullID]; exists {
		return fmt.Errorf("duplicate statement id %q", fullID)
	}
	p.statementIDs[fullID] = struct{}{}

	nodes, binds, err := p.parseNodes(start, func(child xml.StartElement) (bool, error) {
		switch child.Name.Local {
		case "description":
			text, err := p.parseCharData(child.Name.Local)
			if err == nil && description == "" {
				description = compactWhitespace(text)
			}
			return true, err
		case "parameter-mappings":
			mappings, err := p.parseParameterMappings(child)
			opts = append(opts, WithParameterMappings(mappings...))
			return true, err
		case "result-mappings":
			mappings, err := p.parseResultMappings(child)
			opts = append(opts, WithResultMappings(mappings...))
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("statement %q: %w", fullID, err)
	}
	opts = append(opts, WithResource(p.set.Resource), WithDescription(description))
	root := &node.SQLNode{ID: fullID, Nodes: nodes, BindNodes: binds}
	p.set.Statements = append(p.set.Statements, NewMappedStatement(fullID, root, opts...))
	return nil
}

// parseNodes reads the body of start. hook, when not nil, may consume
// child elements that are not body tags.
func (p *sqlsetParser) parseNodes(start xml.StartElement, hook func(xml.StartElement) (bool, error)) (node.Group, node.BindNodeGroup, error) {
	var (
		nodes node.Group
		binds node.BindNodeGroup
	)
	for {
		token, err := p.token(start.Name.Local)
		if err != nil {
			return nil, nil, err
		}
		switch token := token.(type) {
		case xml.StartElement:
			if hook != nil {
				handled, err := hook(token)
				if err != nil {
					return nil, nil, err
				}
				if handled {
					continue
				}
			}
			if token.Name.Local == "bind" {
				bind, err := p.parseBind(token)
				if err != nil {
					return nil, nil, err
				}
				binds = append(binds, bind)
				continue
			}
			n, err := p.parseTags(token)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case xml.CharData:
			if text := compactWhitespace(string(token)); text != "" {
				nodes = append(nodes, node.NewTextNode(text))
			}
		case xml.EndElement:
			if token.Name.Local == start.Name.Local {
				return nodes, binds, nil
			}
			return nil, nil, fmt.Errorf("unexpected end element: %s", token.Name.Local)
		}
	}
}

func (p *sqlsetParser) parseTags(start xml.StartElement) (node.Node, error) {
	switch start.Name.Local {
	case "if":
		return p.parseIf(start)
	case "foreach":
		return p.parseForeach(start)
	case "where":
		nodes, binds, err := p.parseNodes(start, nil)
		return &node.WhereNode{Nodes: nodes, BindNodes: binds}, err
	case "set":
		nodes, binds, err := p.parseNodes(start, nil)
		return &node.SetNode{Nodes: nodes, BindNodes: binds}, err
	case "trim":
		return p.parseTrim(start)
	case "choose":
		return p.parseChoose(start)
	case "include":
		return p.parseInclude(start)
	case "dynamic":
		nodes, binds, err := p.parseNodes(start, nil)
		return &node.SQLNode{Nodes: nodes, BindNodes: binds}, err
	case "when", "otherwise":
		return nil, fmt.Errorf("%s must be inside choose", start.Name.Local)
	}
	return nil, fmt.Errorf("unknown tag: %s", start.Name.Local)
}

func (p *sqlsetParser) parseIf(start xml.StartElement) (*node.IfNode, error) {
	ifNode := &node.IfNode{}
	test := attribute(start, "test")
	if test == "" {
		return nil, &nodeAttributeRequiredError{nodeName: start.Name.Local, attrName: "test"}
	}
	if err := ifNode.Parse(test); err != nil {
		return nil, fmt.Errorf("%s test: %w", start.Name.Local, err)
	}
	var err error
	ifNode.Nodes, ifNode.BindNodes, err = p.parseNodes(start, nil)
	return ifNode, err
}

func (p *sqlsetParser) parseForeach(start xml.StartElement) (*node.ForeachNode, error) {
	foreachNode := &node.ForeachNode{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "collection":
			foreachNode.Collection = attr.Value
		case "item":
			foreachNode.Item = attr.Value
		case "index":
			foreachNode.Index = attr.Value
		case "open":
			foreachNode.Open = attr.Value
		case "close":
			foreachNode.Close = attr.Value
		case "separator":
			foreachNode.Separator = attr.Value
		}
	}
	if foreachNode.Collection == "" {
		foreachNode.Collection = p.paramKey
	}
	if foreachNode.Item == "" {
		return nil, &nodeAttributeRequiredError{nodeName: "foreach", attrName: "item"}
	}
	var err error
	foreachNode.Nodes, foreachNode.BindNodes, err = p.parseNodes(start, nil)
	return foreachNode, err
}

func (p *sqlsetParser) parseTrim(start xml.StartElement) (*node.TrimNode, error) {
	trimNode := &node.TrimNode{}
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "prefix":
			trimNode.Prefix = attr.Value
		case "prefixOverrides":
			trimNode.PrefixOverrides = node.SplitOverrides(attr.Value)
		case "suffix":
			trimNode.Suffix = attr.Value
		case "suffixOverrides":
			trimNode.SuffixOverrides = node.SplitOverrides(attr.Value)
		}
	}
	var err error
	trimNode.Nodes, trimNode.BindNodes, err = p.parseNodes(start, nil)
	return trimNode, err
}

func (p *sqlsetParser) parseChoose(start xml.StartElement) (*node.ChooseNode, error) {
	chooseNode := &node.ChooseNode{}
	for {
		token, err := p.token("choose")
		if err != nil {
			return nil, err
		}
		switch token := token.(type) {
		case xml.StartElement:
			switch token.Name.Local {
			case "when":
				if chooseNode.OtherwiseNode != nil {
					return nil, errors.New("when after otherwise in choose")
				}
				when, err := p.parseIf(token)
				if err != nil {
					return nil, err
				}
				chooseNode.WhenNodes = append(chooseNode.WhenNodes, when)
			case "otherwise":
				if chooseNode.OtherwiseNode != nil {
					return nil, errors.New("multiple otherwise in choose")
				}
				nodes, binds, err := p.parseNodes(token, nil)
				if err != nil {
					return nil, err
				}
				chooseNode.OtherwiseNode = &node.OtherwiseNode{Nodes: nodes, BindNodes: binds}
			case "bind":
				bind, err := p.parseBind(token)
				if err != nil {
					return nil, err
				}
				chooseNode.BindNodes = append(chooseNode.BindNodes, bind)
			default:
				return nil, fmt.Errorf("unexpected tag %s in choose", token.Name.Local)
			}
		case xml.CharData:
			if strings.TrimSpace(string(token)) != "" {
				return nil, errors.New("unexpected text in choose")
			}
		case xml.EndElement:
			if token.Name.Local == start.Name.Local {
				return chooseNode, nil
			}
		}
	}
}

func (p *sqlsetParser) parseBind(start xml.StartElement) (*node.BindNode, error) {
	bind := &node.BindNode{Name: attribute(start, "name")}
	if bind.Name == "" {
		return nil, &nodeAttributeRequiredError{nodeName: "bind", attrName: "name"}
	}
	value := attribute(start, "value")
	if value == "" {
		return nil, &nodeAttributeRequiredError{nodeName: "bind", attrName: "value"}
	}
	if err := bind.Parse(value); err != nil {
		return nil, fmt.Errorf("bind %s: %w", bind.Name, err)
	}
	return bind, p.decoder.Skip()
}

func (p *sqlsetParser) parseInclude(start xml.StartElement) (*node.IncludeNode, error) {
	refID := attribute(start, "refid")
	if refID == "" {
		return nil, &nodeAttributeRequiredError{nodeName: "include", attrName: "refid"}
	}
	include := node.NewIncludeNode(refID)
	p.includes = append(p.includes, include)
	if p.fragment != "" {
		p.refs[p.fragment] = append(p.refs[p.fragment], refID)
	}
	return include, p.decoder.Skip()
}

func (p *sqlsetParser) parseFragment(start xml.StartElement) error {
	id := attribute(start, "id")
	if id == "" {
		return &nodeAttributeRequiredError{nodeName: "fragment", attrName: "id"}
	}
	if _, exists := p.fragments[id]; exists {
		return fmt.Errorf("duplicate fragment id %q", id)
	}
	p.fragment = id
	defer func() { p.fragment = "" }()
	nodes, binds, err := p.parseNodes(start, nil)
	if err != nil {
		return fmt.Errorf("fragment %q: %w", id, err)
	}
	p.fragments[id] = &node.SQLNode{ID: id, Nodes: nodes, BindNodes: binds}
	return nil
}

// link resolves every include once the whole resource is known.
func (p *sqlsetParser) link() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(p.fragments))
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("fragment %q includes itself", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, ref := range p.refs[id] {
			if err := visit(ref); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for id := range p.fragments {
		if err := visit(id); err != nil {
			return err
		}
	}
	for _, include := range p.includes {
		fragment, ok := p.fragments[include.RefID]
		if !ok {
			return fmt.Errorf("include refid %q: fragment not found", include.RefID)
		}
		include.Link(fragment)
	}
	return nil
}

func (p *sqlsetParser) parseRowMapper(start xml.StartElement) error {
	id := attribute(start, "id")
	if id == "" {
		id = attribute(start, "name")
	}
	if id == "" {
		return &nodeAttributeRequiredError{nodeName: "row-mapper", attrName: "name"}
	}
	fullID := p.set.Namespace + "." + id
	if _, exists := p.mapperIDs[fullID]; exists {
		return fmt.Errorf("duplicate row-mapper id %q", fullID)
	}
	p.mapperIDs[fullID] = struct{}{}

	typeAlias := attribute(start, "type")
	if typeAlias == "" {
		typeAlias = "map"
	}
	target, err := p.aliases.ResolveAlias(typeAlias)
	if err != nil {
		return fmt.Errorf("row-mapper %q: %w", fullID, err)
	}

	var fields []ResultMapping
	for {
		token, err := p.token("row-mapper")
		if err != nil {
			return err
		}
		switch token := token.(type) {
		case xml.StartElement:
			switch token.Name.Local {
			case "result", "parameter":
				field, err := p.parseResultMapping(token)
				if err != nil {
					return fmt.Errorf("row-mapper %q: %w", fullID, err)
				}
				fields = append(fields, field)
			case "description":
				if _, err = p.parseCharData(token.Name.Local); err != nil {
					return err
				}
			default:
				return fmt.Errorf("row-mapper %q: unexpected tag %s", fullID, token.Name.Local)
			}
		case xml.EndElement:
			if token.Name.Local == start.Name.Local {
				src := NewMapperSource(fullID, id, target, fields)
				src.resource = p.set.Resource
				p.set.Mappers = append(p.set.Mappers, src)
				return nil
			}
		}
	}
}

func (p *sqlsetParser) parseParameterMappings(start xml.StartElement) ([]ParameterMapping, error) {
	var mappings []ParameterMapping
	for {
		token, err := p.token(start.Name.Local)
		if err != nil {
			return nil, err
		}
		switch token := token.(type) {
		case xml.StartElement:
			if token.Name.Local != "parameter" {
				return nil, fmt.Errorf("unexpected tag %s in %s", token.Name.Local, start.Name.Local)
			}
			mapping, err := p.parseParameterMapping(token)
			if err != nil {
				return nil, err
			}
			mappings = append(mappings, mapping)
		case xml.EndElement:
			if token.Name.Local == start.Name.Local {
				return mappings, nil
			}
		}
	}
}

func (p *sqlsetParser) parseParameterMapping(start xml.StartElement) (ParameterMapping, error) {
	var mapping ParameterMapping
	for _, attr := range start.Attr {
		var err error
		switch attr.Name.Local {
		case "name":
			mapping.Name = attr.Value
		case "index":
			mapping.Index, err = strconv.Atoi(attr.Value)
		case "mode":
			mapping.Mode, err = ParseParameterMode(attr.Value)
		case "javaType", "type":
			mapping.TypeAlias = attr.Value
			mapping.Type, err = p.aliases.ResolveAlias(attr.Value)
			if err != nil {
				return mapping, err
			}
		case "jdbcType":
			mapping.JDBCType = attr.Value
		case "pattern":
			mapping.Pattern = attr.Value
		case "size":
			mapping.Size, err = strconv.Atoi(attr.Value)
		}
		if err != nil {
			return mapping, &nodeAttributeInvalidError{nodeName: "parameter", attrName: attr.Name.Local, value: attr.Value}
		}
	}
	if mapping.Name == "" {
		return mapping, &nodeAttributeRequiredError{nodeName: "parameter", attrName: "name"}
	}
	if mapping.Mode == "" {
		mapping.Mode = ModeIn
	}
	return mapping, p.decoder.Skip()
}

func (p *sqlsetParser) parseResultMappings(start xml.StartElement) ([]ResultMapping, error) {
	var mappings []ResultMapping
	for {
		token, err := p.token(start.Name.Local)
		if err != nil {
			return nil, err
		}
		switch token := token.(type) {
		case xml.StartElement:
			if token.Name.Local != "result" {
				return nil, fmt.Errorf("unexpected tag %s in %s", token.Name.Local, start.Name.Local)
			}
			mapping, err := p.parseResultMapping(token)
			if err != nil {
				return nil, err
			}
			mappings = append(mappings, mapping)
		case xml.EndElement:
			if token.Name.Local == start.Name.Local {
				return mappings, nil
			}
		}
	}
}

func (p *sqlsetParser) parseResultMapping(start xml.StartElement) (ResultMapping, error) {
	var mapping ResultMapping
	for _, attr := range start.Attr {
		var err error
		switch attr.Name.Local {
		case "name", "property":
			mapping.Name = attr.Value
		case "column":
			mapping.Column = attr.Value
		case "index":
			mapping.Index, err = strconv.Atoi(attr.Value)
		case "javaType", "type":
			mapping.TypeAlias = attr.Value
			mapping.Type, err = p.aliases.ResolveAlias(attr.Value)
			if err != nil {
				return mapping, err
			}
		case "jdbcType":
			mapping.JDBCType = attr.Value
		case "primary":
			mapping.Primary, err = strconv.ParseBool(attr.Value)
		case "encoding":
			mapping.Encoding = attr.Value
		case "pattern":
			mapping.Pattern = attr.Value
		}
		if err != nil {
			return mapping, &nodeAttributeInvalidError{nodeName: start.Name.Local, attrName: attr.Name.Local, value: attr.Value}
		}
	}
	if mapping.Name == "" {
		mapping.Name = mapping.Column
	}
	if mapping.Name == "" {
		return mapping, &nodeAttributeRequiredError{nodeName: start.Name.Local, attrName: "name"}
	}
	if mapping.Column == "" {
		mapping.Column = mapping.Name
	}
	return mapping, p.decoder.Skip()
}

// parseCharData returns the text of a text-only element.
func (p *sqlsetParser) parseCharData(name string) (string, error) {
	var sb strings.Builder
	for {
		token, err := p.token(name)
		if err != nil {
			return "", err
		}
		switch token := token.(type) {
		case xml.CharData:
			sb.Write(token)
		case xml.StartElement:
			return "", fmt.Errorf("unexpected tag %s in %s", token.Name.Local, name)
		case xml.EndElement:
			if token.Name.Local == name {
				return sb.String(), nil
			}
		}
	}
}

func attribute(start xml.StartElement, name string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

// compactWhitespace trims text and folds every whitespace run outside
// quoted literals into a single space.
func compactWhitespace(text string) string {
	var (
		sb      strings.Builder
		quote   rune
		pending bool
	)
	for _, r := range strings.TrimSpace(text) {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case unicode.IsSpace(r):
			pending = true
			continue
		}
		if pending {
			sb.WriteByte(' ')
			pending = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
