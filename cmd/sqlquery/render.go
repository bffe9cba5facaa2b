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
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-juicedev/sqlquery"
	"github.com/go-juicedev/sqlquery/dialect"
)

type renderOptions struct {
	params     []string
	additional []string
	dialect    string
	driver     string
	dsn        string
	offset     int64
	limit      int64
	output     string
}

// renderOutput is the yaml form of a rendered statement.
type renderOutput struct {
	ID      string `yaml:"id"`
	Dialect string `yaml:"dialect"`
	SQL     string `yaml:"sql"`
	Args    []any  `yaml:"args"`
}

func newRenderCommand(a *app) *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render <id> [dir]",
		Short: "Render a statement with parameters without running it",
		Long: `Render a statement with parameters without running it.

Parameter values are read as YAML, so --param ids=[1,2,3] binds a list and
--param active=true a boolean.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory(args[1:])
			if err != nil {
				return err
			}
			return runRender(cmd, a, args[0], dir, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.params, "param", "p", nil, "parameter as name=value")
	flags.StringArrayVarP(&opts.additional, "additional", "a", nil, "additional parameter as name=value")
	flags.StringVarP(&opts.dialect, "dialect", "d", "", "dialect of the placeholders (default from settings or --dsn)")
	flags.StringVar(&opts.driver, "driver", "mysql", "database/sql driver used with --dsn")
	flags.StringVar(&opts.dsn, "dsn", "", "resolve the dialect from this database")
	flags.Int64Var(&opts.offset, "offset", 0, "first row of the page")
	flags.Int64Var(&opts.limit, "limit", 0, "page size, 0 renders without pagination")
	flags.StringVarP(&opts.output, "output", "o", "text", "output format: text or yaml")
	return cmd
}

func runRender(cmd *cobra.Command, a *app, id, dir string, opts renderOptions) error {
	cfg := a.configuration()
	results, err := loadDirectory(a.fs, cfg, dir)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			a.logger.Warn("statement file skipped", "file", r.Path, "error", r.Err)
		}
	}

	d, err := resolveDialect(cmd.Context(), a, opts)
	if err != nil {
		return err
	}
	params, err := parseAssignments(opts.params)
	if err != nil {
		return err
	}
	additional, err := parseAssignments(opts.additional)
	if err != nil {
		return err
	}

	var (
		helper = sqlquery.NewSQLHelper(cfg, sqlquery.WithDialect(d))
		bound  *sqlquery.BoundSQL
	)
	if len(additional) > 0 {
		bound, err = helper.BoundSQLWithParameters(id, []any{params}, additional)
	} else {
		bound, err = helper.BoundSQL(id, params)
	}
	if err != nil {
		return err
	}
	if opts.limit > 0 {
		if bound, err = bound.Paginate(d, opts.offset, opts.limit); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch opts.output {
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer func() { _ = enc.Close() }()
		return enc.Encode(renderOutput{ID: bound.StatementID, Dialect: d.Name(), SQL: bound.SQL, Args: bound.Args})
	case "text", "":
		printInfo(out, "-- %s (%s)", bound.StatementID, d.Name())
		_, err = fmt.Fprintln(out, bound.SQL)
		if err == nil && len(bound.Args) > 0 {
			_, err = fmt.Fprintf(out, "-- args: %v\n", bound.Args)
		}
		return err
	default:
		return fmt.Errorf("unknown output format %q", opts.output)
	}
}

// resolveDialect picks the dialect from the flag, the settings or a live
// database, in that order.
func resolveDialect(ctx context.Context, a *app, opts renderOptions) (dialect.Dialect, error) {
	if opts.dialect != "" {
		return dialect.Parse(opts.dialect)
	}
	if d, ok, err := a.settings.ResolveDialect(); err != nil || ok {
		return d, err
	}
	if opts.dsn == "" {
		return dialect.Default, nil
	}
	db, err := sql.Open(opts.driver, opts.dsn)
	if err != nil {
		return dialect.Default, err
	}
	defer func() { _ = db.Close() }()
	return dialect.NewResolver(a.logger).Resolve(ctx, db)
}

// parseAssignments parses name=value pairs. Values are decoded as YAML and
// fall back to the raw text.
func parseAssignments(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		values[name] = value
	}
	return values, nil
}
