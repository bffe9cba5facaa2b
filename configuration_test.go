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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-juicedev/sqlquery/node"
)

func testSet(resource string, body string, ids ...string) *SQLSet {
	set := &SQLSet{Name: "test", Namespace: "ns", Resource: resource}
	for _, id := range ids {
		set.Statements = append(set.Statements,
			NewMappedStatement(id, node.NewTextNode(body), WithResource(resource)))
	}
	return set
}

func TestConfigurationDefaults(t *testing.T) {
	cfg := NewConfiguration()
	assert.Equal(t, "", cfg.Prefix())
	assert.Equal(t, DefaultSuffix, cfg.Suffix())
	assert.Equal(t, "param", cfg.ParamKey())
	assert.Zero(t, cfg.DefaultStatementTimeout())
	assert.NotNil(t, cfg.TypeAliasRegistry())
	assert.Empty(t, cfg.MappedStatements())
	assert.Empty(t, cfg.LoadedResources())

	cfg = NewConfiguration(WithPrefix("app-"), WithSuffix(".xml"), WithParamKey("p"),
		WithStatementTimeout(time.Second), WithParamKey(""))
	assert.Equal(t, "app-", cfg.Prefix())
	assert.Equal(t, ".xml", cfg.Suffix())
	assert.Equal(t, "p", cfg.ParamKey())
	assert.Equal(t, time.Second, cfg.DefaultStatementTimeout())
}

func TestConfigurationMatches(t *testing.T) {
	cfg := NewConfiguration(WithPrefix("app-"))
	assert.True(t, cfg.Matches("sql/app-user-sqlset.xml"))
	assert.True(t, cfg.Matches("app-sqlset.xml"))
	assert.False(t, cfg.Matches("sql/user-sqlset.xml"))
	assert.False(t, cfg.Matches("sql/app-user.xml"))
	assert.False(t, cfg.Matches("app-dir/user-sqlset.xml"))
}

func TestConfigurationStatements(t *testing.T) {
	cfg := NewConfiguration()
	_, err := cfg.MappedStatement("ns.missing")
	var notFound *StatementNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ns.missing", notFound.ID)
	assert.ErrorIs(t, err, ErrStatementNotFound)

	require.Error(t, cfg.AddMappedStatement(nil))
	require.NoError(t, cfg.AddMappedStatement(NewMappedStatement("ns.b", node.NewTextNode("SELECT 2"))))
	require.NoError(t, cfg.AddMappedStatement(NewMappedStatement("ns.a", node.NewTextNode("SELECT 1"))))

	stmt, err := cfg.MappedStatement("ns.a")
	require.NoError(t, err)
	assert.Equal(t, "ns", stmt.Namespace())
	assert.Equal(t, "a", stmt.Name())

	var ids []string
	for _, stmt := range cfg.MappedStatements() {
		ids = append(ids, stmt.ID())
	}
	assert.Equal(t, []string{"ns.a", "ns.b"}, ids)

	cfg.RemoveMappedStatement("ns.a")
	assert.False(t, cfg.HasStatement("ns.a"))
	assert.True(t, cfg.HasStatement("ns.b"))
}

func TestConfigurationMappers(t *testing.T) {
	cfg := NewConfiguration()
	_, err := cfg.Mapper("ns.row")
	assert.ErrorIs(t, err, ErrMapperNotFound)

	require.Error(t, cfg.AddMapper(nil))
	require.NoError(t, cfg.AddMapper(NewMapperSource("ns.row", "row", nil, nil)))
	src, err := cfg.Mapper("ns.row")
	require.NoError(t, err)
	assert.Equal(t, "row", src.Name())
	assert.Equal(t, []string{"ns.row"}, cfg.MapperNames())
}

func TestConfigurationLoadedResources(t *testing.T) {
	cfg := NewConfiguration()
	cfg.AddLoadedResource("b.xml")
	cfg.AddLoadedResource("a.xml")
	cfg.AddLoadedResource("a.xml")
	assert.Equal(t, []string{"a.xml", "b.xml"}, cfg.LoadedResources())
	assert.True(t, cfg.IsResourceLoaded("a.xml"))

	cfg.RemoveLoadedResource("a.xml")
	assert.False(t, cfg.IsResourceLoaded("a.xml"))
	assert.Equal(t, []string{"b.xml"}, cfg.LoadedResources())
}

func TestConfigurationApplyResource(t *testing.T) {
	cfg := NewConfiguration()

	_, err := cfg.ApplyResource(nil)
	require.Error(t, err)
	_, err = cfg.ApplyResource(&SQLSet{})
	require.Error(t, err)

	result, err := cfg.ApplyResource(testSet("user.xml", "SELECT 1", "ns.a", "ns.b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ns.a", "ns.b"}, result.Statements.Added)
	assert.Empty(t, result.Statements.Replaced)
	assert.True(t, result.Mappers.Empty())
	assert.True(t, cfg.IsResourceLoaded("user.xml"))
	assert.Equal(t, []string{"ns.a", "ns.b"}, cfg.ResourceStatementIDs("user.xml"))

	// ns.a is renamed to ns.c
	result, err = cfg.ApplyResource(testSet("user.xml", "SELECT 2", "ns.c", "ns.b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ns.c"}, result.Statements.Added)
	assert.Equal(t, []string{"ns.b"}, result.Statements.Replaced)
	assert.Equal(t, []string{"ns.a"}, result.Statements.Removed)
	assert.Equal(t, "user.xml: statements +1 ~1 -1, mappers +0 ~0 -0", result.String())

	assert.False(t, cfg.HasStatement("ns.a"))
	stmt, err := cfg.MappedStatement("ns.b")
	require.NoError(t, err)
	bound, err := stmt.BoundSQL(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", bound.SQL)
}

func TestConfigurationApplyResourceTakeover(t *testing.T) {
	cfg := NewConfiguration()
	_, err := cfg.ApplyResource(testSet("a.xml", "SELECT 'a'", "ns.shared", "ns.onlyA"))
	require.NoError(t, err)

	result, err := cfg.ApplyResource(testSet("b.xml", "SELECT 'b'", "ns.shared"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ns.shared"}, result.Statements.Replaced)

	stmt, err := cfg.MappedStatement("ns.shared")
	require.NoError(t, err)
	assert.Equal(t, "b.xml", stmt.Resource())
	assert.Equal(t, []string{"ns.onlyA"}, cfg.ResourceStatementIDs("a.xml"))

	// unloading the previous owner keeps the taken over statement
	result = cfg.UnloadResource("a.xml")
	assert.Equal(t, []string{"ns.onlyA"}, result.Statements.Removed)
	assert.True(t, cfg.HasStatement("ns.shared"))
	assert.False(t, cfg.HasStatement("ns.onlyA"))
	assert.False(t, cfg.IsResourceLoaded("a.xml"))
}

func TestConfigurationUnloadResource(t *testing.T) {
	cfg := NewConfiguration()
	set := testSet("user.xml", "SELECT 1", "ns.a")
	src := NewMapperSource("ns.row", "row", nil, nil)
	src.resource = "user.xml"
	set.Mappers = append(set.Mappers, src)
	result, err := cfg.ApplyResource(set)
	require.NoError(t, err)
	assert.Equal(t, []string{"ns.row"}, result.Mappers.Added)

	result = cfg.UnloadResource("user.xml")
	assert.Equal(t, []string{"ns.a"}, result.Statements.Removed)
	assert.Equal(t, []string{"ns.row"}, result.Mappers.Removed)
	assert.False(t, cfg.HasStatement("ns.a"))
	_, err = cfg.Mapper("ns.row")
	assert.True(t, errors.Is(err, ErrMapperNotFound))

	assert.True(t, cfg.UnloadResource("missing.xml").Statements.Empty())
}

func TestConfigurationConcurrentReplace(t *testing.T) {
	cfg := NewConfiguration()
	_, err := cfg.ApplyResource(testSet("user.xml", "SELECT 1", "ns.a", "ns.b"))
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		stop = make(chan struct{})
		errs = make(chan error, 8)
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				a, errA := cfg.MappedStatement("ns.a")
				b, errB := cfg.MappedStatement("ns.b")
				if errA != nil || errB != nil {
					errs <- errors.Join(errA, errB)
					return
				}
				if a == nil || b == nil {
					errs <- errors.New("nil statement")
					return
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		_, err := cfg.ApplyResource(testSet("user.xml", "SELECT 2", "ns.a", "ns.b"))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
