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

package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/go-juicedev/sqlquery"
)

// app is the state shared by the commands.
type app struct {
	fs         afero.Fs
	configFile string
	verbose    bool
	settings   *sqlquery.Settings
	logger     *slog.Logger
}

func newApp() *app {
	return &app{fs: afero.NewOsFs()}
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sqlquery",
		Short:         "Work with sqlquery statement files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "settings file (default ./sqlquery.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	cmd.AddCommand(newLintCommand(a))
	cmd.AddCommand(newRenderCommand(a))
	cmd.AddCommand(newWatchCommand(a))
	return cmd
}

// setup loads the environment files and the settings, and installs the
// logger.
func (a *app) setup(cmd *cobra.Command) error {
	// .env.local wins over .env, the process environment over both
	for _, name := range []string{".env.local", ".env"} {
		if _, err := a.fs.Stat(name); err == nil {
			if err = godotenv.Load(name); err != nil {
				return err
			}
		}
	}
	settings, err := sqlquery.LoadSettings(a.configFile)
	if err != nil {
		return err
	}
	a.settings = settings

	level := slog.LevelInfo
	if a.verbose || settings.Debug {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	sqlquery.SetLogger(a.logger)
	return nil
}

// directory returns the statement directory named by args, or the
// configured one.
func (a *app) directory(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	return a.settings.ResolveDirectory()
}

// configuration returns an empty Configuration following the settings.
func (a *app) configuration() *sqlquery.Configuration {
	return sqlquery.NewConfiguration(a.settings.Options()...)
}
