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
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/go-juicedev/sqlquery/dialect"
	"github.com/go-juicedev/sqlquery/eval"
)

// settingsSection is the config file section holding the settings.
const settingsSection = "sqlquery"

// envPrefix prefixes the environment variables overriding the settings.
const envPrefix = "SQLQUERY"

// Settings is the externally configured part of the engine.
type Settings struct {
	Prefix           string
	Suffix           string
	Directory        string
	PollInterval     time.Duration
	Notify           bool
	Dialect          string
	StatementTimeout time.Duration
	ParamKey         string
	SlowThreshold    time.Duration
	Debug            bool
}

var settingsDefaults = map[string]any{
	"prefix":            "",
	"suffix":            DefaultSuffix,
	"directory":         "sql",
	"poll-interval":     10 * time.Second,
	"notify":            false,
	"dialect":           "",
	"statement-timeout": time.Duration(0),
	"param-key":         eval.DefaultParamKey,
	"slow-threshold":    time.Second,
	"debug":             false,
}

// ApplySettingsDefaults registers the defaults and environment bindings of
// the settings on v, for applications sharing their own viper instance.
// The environment variable of key directory is SQLQUERY_DIRECTORY.
func ApplySettingsDefaults(v *viper.Viper) error {
	for key, value := range settingsDefaults {
		v.SetDefault(settingsSection+"."+key, value)
		env := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(settingsSection+"."+key, env); err != nil {
			return err
		}
	}
	return nil
}

// LoadSettings reads the settings from configFile, or when it is empty from
// sqlquery.{yaml,json,toml} in the working directory or ~/.config/sqlquery
// if present, with environment variables taking precedence.
func LoadSettings(configFile string) (*Settings, error) {
	v := viper.New()
	if err := ApplySettingsDefaults(v); err != nil {
		return nil, err
	}
	if configFile != "" {
		path, err := homedir.Expand(configFile)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(path)
		if err = v.ReadInConfig(); err != nil {
			return nil, &ConfigurationError{Op: "read settings", Err: err}
		}
		return SettingsFromViper(v)
	}

	v.SetConfigName("sqlquery")
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "sqlquery"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &ConfigurationError{Op: "read settings", Err: err}
		}
	}
	return SettingsFromViper(v)
}

// SettingsFromViper reads the settings section of v.
func SettingsFromViper(v *viper.Viper) (*Settings, error) {
	key := func(name string) string { return settingsSection + "." + name }
	s := &Settings{
		Prefix:           v.GetString(key("prefix")),
		Suffix:           v.GetString(key("suffix")),
		Directory:        v.GetString(key("directory")),
		PollInterval:     v.GetDuration(key("poll-interval")),
		Notify:           v.GetBool(key("notify")),
		Dialect:          v.GetString(key("dialect")),
		StatementTimeout: v.GetDuration(key("statement-timeout")),
		ParamKey:         v.GetString(key("param-key")),
		SlowThreshold:    v.GetDuration(key("slow-threshold")),
		Debug:            v.GetBool(key("debug")),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings for values the engine cannot run with.
func (s *Settings) Validate() error {
	switch {
	case s.Suffix == "" && s.Prefix == "":
		return fmt.Errorf("%w: prefix and suffix are both empty", ErrConfiguration)
	case s.PollInterval <= 0:
		return fmt.Errorf("%w: poll-interval must be positive, got %s", ErrConfiguration, s.PollInterval)
	case s.StatementTimeout < 0:
		return fmt.Errorf("%w: statement-timeout is negative", ErrConfiguration)
	}
	if _, _, err := s.ResolveDialect(); err != nil {
		return err
	}
	return nil
}

// ResolveDirectory returns the statement directory with ~ expanded.
func (s *Settings) ResolveDirectory() (string, error) {
	return homedir.Expand(s.Directory)
}

// ResolveDialect returns the configured dialect. ok is false when no
// dialect is configured and it has to be resolved from the database.
func (s *Settings) ResolveDialect() (d dialect.Dialect, ok bool, err error) {
	if strings.TrimSpace(s.Dialect) == "" {
		return dialect.Default, false, nil
	}
	d, err = dialect.Parse(s.Dialect)
	if err != nil {
		return d, false, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return d, true, nil
}

// Options converts the settings into Configuration options.
func (s *Settings) Options() []Option {
	return []Option{
		WithPrefix(s.Prefix),
		WithSuffix(s.Suffix),
		WithStatementTimeout(s.StatementTimeout),
		WithParamKey(s.ParamKey),
	}
}

// QueryOptions converts the settings into SQLQuery options.
func (s *Settings) QueryOptions() []QueryOption {
	if !s.Debug && s.SlowThreshold <= 0 {
		return nil
	}
	return []QueryOption{WithMiddlewares(&DebugMiddleware{SlowThreshold: s.SlowThreshold})}
}
