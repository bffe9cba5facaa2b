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
	"fmt"

	"github.com/spf13/cobra"
)

func newLintCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [dir]",
		Short: "Parse every statement file of a directory and report errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory(args)
			if err != nil {
				return err
			}
			return runLint(cmd, a, dir)
		},
	}
}

func runLint(cmd *cobra.Command, a *app, dir string) error {
	out := cmd.OutOrStdout()
	cfg := a.configuration()
	results, err := loadDirectory(a.fs, cfg, dir)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.Err != nil {
			printError(out, "%v", r.Err)
			continue
		}
		printSuccess(out, "%s: %d statements, %d row mappers", r.Path, len(r.Set.Statements), len(r.Set.Mappers))
		for _, id := range r.Shadowed {
			printWarning(out, "%s: %s is also defined by another file, the last one loaded wins", r.Path, id)
		}
	}
	n := failed(results)
	printInfo(out, "%d files, %d statements, %d failed", len(results), len(cfg.MappedStatements()), n)
	if n > 0 {
		return fmt.Errorf("%d of %d files failed", n, len(results))
	}
	return nil
}
