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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-juicedev/sqlquery/dialect"
)

func writeSettingsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sqlquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettingsFile(t *testing.T) {
	path := writeSettingsFile(t, `
sqlquery:
  prefix: app-
  directory: ~/statements
  poll-interval: 2s
  dialect: postgres
  statement-timeout: 5s
  param-key: p
`)
	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "app-", s.Prefix)
	assert.Equal(t, DefaultSuffix, s.Suffix)
	assert.Equal(t, 2*time.Second, s.PollInterval)
	assert.Equal(t, 5*time.Second, s.StatementTimeout)
	assert.Equal(t, time.Second, s.SlowThreshold)
	assert.Equal(t, "p", s.ParamKey)
	assert.False(t, s.Debug)

	d, ok, err := s.ResolveDialect()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, dialect.Postgres, d)

	dir, err := s.ResolveDirectory()
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(dir, "~"))
	assert.True(t, strings.HasSuffix(dir, "statements"))

	cfg := NewConfiguration(s.Options()...)
	assert.Equal(t, "app-", cfg.Prefix())
	assert.Equal(t, "p", cfg.ParamKey())
	assert.Equal(t, 5*time.Second, cfg.DefaultStatementTimeout())
	assert.Len(t, s.QueryOptions(), 1)
}

func TestLoadSettingsEnvironment(t *testing.T) {
	path := writeSettingsFile(t, "sqlquery:\n  poll-interval: 2s\n")
	t.Setenv("SQLQUERY_POLL_INTERVAL", "30s")
	t.Setenv("SQLQUERY_DEBUG", "true")
	t.Setenv("SQLQUERY_DIALECT", "mysql")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, s.PollInterval)
	assert.True(t, s.Debug)
	assert.Equal(t, "mysql", s.Dialect)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestSettingsDefaults(t *testing.T) {
	v := viper.New()
	require.NoError(t, ApplySettingsDefaults(v))
	s, err := SettingsFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, &Settings{
		Suffix:        DefaultSuffix,
		Directory:     "sql",
		PollInterval:  10 * time.Second,
		ParamKey:      "param",
		SlowThreshold: time.Second,
	}, s)

	_, ok, err := s.ResolveDialect()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsValidate(t *testing.T) {
	valid := Settings{Suffix: DefaultSuffix, PollInterval: time.Second}
	require.NoError(t, valid.Validate())

	tests := map[string]func(s *Settings){
		"no prefix or suffix": func(s *Settings) { s.Suffix = "" },
		"zero poll interval":  func(s *Settings) { s.PollInterval = 0 },
		"negative timeout":    func(s *Settings) { s.StatementTimeout = -time.Second },
		"unknown dialect":     func(s *Settings) { s.Dialect = "db2" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			s := valid
			mutate(&s)
			assert.ErrorIs(t, s.Validate(), ErrConfiguration)
		})
	}
}
