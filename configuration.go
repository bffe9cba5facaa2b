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
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-juicedev/sqlquery/eval"
)

// DefaultSuffix is the file name suffix of statement definition files.
const DefaultSuffix = "sqlset.xml"

// Option configures a Configuration.
type Option func(*Configuration)

// WithPrefix sets the required file name prefix of statement definition files.
func WithPrefix(prefix string) Option {
	return func(c *Configuration) { c.prefix = prefix }
}

// WithSuffix sets the required file name suffix of statement definition files.
func WithSuffix(suffix string) Option {
	return func(c *Configuration) { c.suffix = suffix }
}

// WithStatementTimeout sets the timeout of statements that declare none.
func WithStatementTimeout(timeout time.Duration) Option {
	return func(c *Configuration) { c.timeout = timeout }
}

// WithParamKey sets the key a scalar parameter is exposed under when a
// statement declares no paramName.
func WithParamKey(key string) Option {
	return func(c *Configuration) {
		if key != "" {
			c.paramKey = key
		}
	}
}

// WithTypeAliasRegistry replaces the default type alias registry.
func WithTypeAliasRegistry(r *TypeAliasRegistry) Option {
	return func(c *Configuration) {
		if r != nil {
			c.aliases = r
		}
	}
}

// resourceEntry lists the ids a loaded resource owns.
type resourceEntry struct {
	statements []string
	mappers    []string
}

// registry is an immutable snapshot of the Configuration state.
type registry struct {
	statements map[string]*MappedStatement
	mappers    map[string]*MapperSource
	resources  map[string]resourceEntry
}

func (r *registry) clone() *registry {
	return &registry{
		statements: maps.Clone(r.statements),
		mappers:    maps.Clone(r.mappers),
		resources:  maps.Clone(r.resources),
	}
}

// Configuration is the registry of mapped statements, row mappers and loaded
// resources. It is created once and shared by reference.
//
// Reads never lock: they load the current snapshot. Writers serialise on a
// mutex, copy the snapshot, apply their change and publish the copy, so a
// reader sees either all or none of one write.
type Configuration struct {
	prefix   string
	suffix   string
	paramKey string
	timeout  time.Duration
	aliases  *TypeAliasRegistry

	mu       sync.Mutex
	snapshot atomic.Pointer[registry]
}

// NewConfiguration returns an empty Configuration.
func NewConfiguration(opts ...Option) *Configuration {
	c := &Configuration{suffix: DefaultSuffix, paramKey: eval.DefaultParamKey}
	for _, opt := range opts {
		opt(c)
	}
	if c.aliases == nil {
		c.aliases = NewTypeAliasRegistry()
	}
	c.snapshot.Store(&registry{
		statements: make(map[string]*MappedStatement),
		mappers:    make(map[string]*MapperSource),
		resources:  make(map[string]resourceEntry),
	})
	return c
}

func (c *Configuration) load() *registry {
	return c.snapshot.Load()
}

// update runs fn on a copy of the current snapshot and publishes it.
func (c *Configuration) update(fn func(next *registry) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.load().clone()
	if err := fn(next); err != nil {
		return err
	}
	c.snapshot.Store(next)
	return nil
}

// Prefix returns the required file name prefix.
func (c *Configuration) Prefix() string { return c.prefix }

// Suffix returns the required file name suffix.
func (c *Configuration) Suffix() string { return c.suffix }

// DefaultStatementTimeout returns the timeout of statements that declare none.
func (c *Configuration) DefaultStatementTimeout() time.Duration { return c.timeout }

// ParamKey returns the default key of scalar parameters.
func (c *Configuration) ParamKey() string { return c.paramKey }

// TypeAliasRegistry returns the type alias registry.
func (c *Configuration) TypeAliasRegistry() *TypeAliasRegistry { return c.aliases }

// Matches reports whether the base name of filename carries the configured
// prefix and suffix.
func (c *Configuration) Matches(filename string) bool {
	base := path.Base(filepath.ToSlash(filename))
	return strings.HasPrefix(base, c.prefix) && strings.HasSuffix(base, c.suffix)
}

// AddMappedStatement registers stmt, replacing any statement with its id.
func (c *Configuration) AddMappedStatement(stmt *MappedStatement) error {
	if stmt == nil || stmt.ID() == "" {
		return errors.New("sqlquery: statement without id")
	}
	return c.update(func(next *registry) error {
		next.statements[stmt.ID()] = stmt
		return nil
	})
}

// MappedStatement returns the statement registered under id.
func (c *Configuration) MappedStatement(id string) (*MappedStatement, error) {
	stmt, ok := c.load().statements[id]
	if !ok {
		return nil, &StatementNotFoundError{ID: id}
	}
	return stmt, nil
}

// HasStatement reports whether a statement is registered under id.
func (c *Configuration) HasStatement(id string) bool {
	_, ok := c.load().statements[id]
	return ok
}

// MappedStatements returns the registered statements ordered by id.
func (c *Configuration) MappedStatements() []*MappedStatement {
	statements := slices.Collect(maps.Values(c.load().statements))
	slices.SortFunc(statements, func(a, b *MappedStatement) int {
		return strings.Compare(a.ID(), b.ID())
	})
	return statements
}

// RemoveMappedStatement unregisters the statement with id, if any.
func (c *Configuration) RemoveMappedStatement(id string) {
	_ = c.update(func(next *registry) error {
		delete(next.statements, id)
		for uri, entry := range next.resources {
			if slices.Contains(entry.statements, id) {
				entry.statements = slices.DeleteFunc(slices.Clone(entry.statements), func(s string) bool { return s == id })
				next.resources[uri] = entry
			}
		}
		return nil
	})
}

// AddMapper registers src, replacing any mapper with its id.
func (c *Configuration) AddMapper(src *MapperSource) error {
	if src == nil || src.ID() == "" {
		return errors.New("sqlquery: mapper without id")
	}
	return c.update(func(next *registry) error {
		next.mappers[src.ID()] = src
		return nil
	})
}

// Mapper returns the row mapper registered under id.
func (c *Configuration) Mapper(id string) (*MapperSource, error) {
	src, ok := c.load().mappers[id]
	if !ok {
		return nil, &MapperNotFoundError{ID: id}
	}
	return src, nil
}

// MapperNames returns the ids of the registered row mappers in ascending order.
func (c *Configuration) MapperNames() []string {
	return slices.Sorted(maps.Keys(c.load().mappers))
}

// IsResourceLoaded reports whether the resource at uri has been ingested.
func (c *Configuration) IsResourceLoaded(uri string) bool {
	_, ok := c.load().resources[uri]
	return ok
}

// AddLoadedResource marks uri as ingested.
func (c *Configuration) AddLoadedResource(uri string) {
	_ = c.update(func(next *registry) error {
		if _, ok := next.resources[uri]; !ok {
			next.resources[uri] = resourceEntry{}
		}
		return nil
	})
}

// RemoveLoadedResource forgets that uri was ingested. The statements it
// registered stay; use UnloadResource to remove them too.
func (c *Configuration) RemoveLoadedResource(uri string) {
	_ = c.update(func(next *registry) error {
		delete(next.resources, uri)
		return nil
	})
}

// LoadedResources returns the ingested resources in ascending order.
func (c *Configuration) LoadedResources() []string {
	return slices.Sorted(maps.Keys(c.load().resources))
}

// ResourceStatementIDs returns the ids of the statements owned by uri.
func (c *Configuration) ResourceStatementIDs(uri string) []string {
	return slices.Clone(c.load().resources[uri].statements)
}

// Diff lists the ids one batch changed.
type Diff struct {
	Added    []string
	Replaced []string
	Removed  []string
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Replaced) == 0 && len(d.Removed) == 0
}

// ApplyResult describes the effect of loading or unloading one resource.
type ApplyResult struct {
	Resource   string
	Statements Diff
	Mappers    Diff
}

// String summarises the result for logs.
func (r ApplyResult) String() string {
	return fmt.Sprintf("%s: statements +%d ~%d -%d, mappers +%d ~%d -%d", r.Resource,
		len(r.Statements.Added), len(r.Statements.Replaced), len(r.Statements.Removed),
		len(r.Mappers.Added), len(r.Mappers.Replaced), len(r.Mappers.Removed))
}

// ApplyResource registers the content of set in one batch. Statements and
// mappers the resource owned before but no longer defines are removed. An id
// owned by another resource is taken over. The resource is marked loaded.
func (c *Configuration) ApplyResource(set *SQLSet) (ApplyResult, error) {
	if set == nil || set.Resource == "" {
		return ApplyResult{}, errors.New("sqlquery: sqlset without resource")
	}
	uri := set.Resource
	result := ApplyResult{Resource: uri}
	err := c.update(func(next *registry) error {
		previous := next.resources[uri]
		var entry resourceEntry

		for _, stmt := range set.Statements {
			id := stmt.ID()
			if existing, ok := next.statements[id]; ok {
				result.Statements.Replaced = append(result.Statements.Replaced, id)
				if owner := existing.Resource(); owner != "" && owner != uri {
					next.disown(owner, id, false)
					Logger().Warn("statement taken over by another resource", "id", id, "from", owner, "to", uri)
				}
			} else {
				result.Statements.Added = append(result.Statements.Added, id)
			}
			next.statements[id] = stmt
			entry.statements = append(entry.statements, id)
		}
		for _, id := range previous.statements {
			if !slices.Contains(entry.statements, id) {
				delete(next.statements, id)
				result.Statements.Removed = append(result.Statements.Removed, id)
			}
		}

		for _, src := range set.Mappers {
			id := src.ID()
			if existing, ok := next.mappers[id]; ok {
				result.Mappers.Replaced = append(result.Mappers.Replaced, id)
				if owner := existing.Resource(); owner != "" && owner != uri {
					next.disown(owner, id, true)
					Logger().Warn("mapper taken over by another resource", "id", id, "from", owner, "to", uri)
				}
			} else {
				result.Mappers.Added = append(result.Mappers.Added, id)
			}
			next.mappers[id] = src
			entry.mappers = append(entry.mappers, id)
		}
		for _, id := range previous.mappers {
			if !slices.Contains(entry.mappers, id) {
				delete(next.mappers, id)
				result.Mappers.Removed = append(result.Mappers.Removed, id)
			}
		}

		next.resources[uri] = entry
		return nil
	})
	return result, err
}

// UnloadResource removes every statement and mapper uri owns and forgets
// that it was loaded, in one batch.
func (c *Configuration) UnloadResource(uri string) ApplyResult {
	result := ApplyResult{Resource: uri}
	_ = c.update(func(next *registry) error {
		entry, ok := next.resources[uri]
		if !ok {
			return nil
		}
		for _, id := range entry.statements {
			delete(next.statements, id)
			result.Statements.Removed = append(result.Statements.Removed, id)
		}
		for _, id := range entry.mappers {
			delete(next.mappers, id)
			result.Mappers.Removed = append(result.Mappers.Removed, id)
		}
		delete(next.resources, uri)
		return nil
	})
	return result
}

// disown drops id from the ids owned by uri.
func (r *registry) disown(uri, id string, mapper bool) {
	entry, ok := r.resources[uri]
	if !ok {
		return
	}
	drop := func(ids []string) []string {
		return slices.DeleteFunc(slices.Clone(ids), func(s string) bool { return s == id })
	}
	if mapper {
		entry.mappers = drop(entry.mappers)
	} else {
		entry.statements = drop(entry.statements)
	}
	r.resources[uri] = entry
}
