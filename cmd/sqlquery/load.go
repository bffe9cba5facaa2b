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
	"os"
	"slices"

	"github.com/spf13/afero"

	"github.com/go-juicedev/sqlquery"
)

// fileResult is the outcome of loading one statement file.
type fileResult struct {
	Path   string
	Set    *sqlquery.SQLSet
	Result sqlquery.ApplyResult
	// Shadowed lists ids another file defined first.
	Shadowed []string
	Err      error
}

// loadDirectory parses every statement file under dir into cfg, in lexical
// order. A file that fails to parse is reported and skipped.
func loadDirectory(fs afero.Fs, cfg *sqlquery.Configuration, dir string) ([]fileResult, error) {
	var results []fileResult
	err := afero.Walk(fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() || !cfg.Matches(path) {
			return nil
		}
		results = append(results, loadFile(fs, cfg, path))
		return nil
	})
	if err != nil {
		return results, fmt.Errorf("walk %s: %w", dir, err)
	}
	return results, nil
}

func loadFile(fs afero.Fs, cfg *sqlquery.Configuration, path string) fileResult {
	res := fileResult{Path: path}
	f, err := fs.Open(path)
	if err != nil {
		res.Err = err
		return res
	}
	defer func() { _ = f.Close() }()

	if res.Set, res.Err = sqlquery.NewXMLSQLSetBuilder(cfg).Parse(f, path); res.Err != nil {
		return res
	}
	for _, id := range res.Set.StatementIDs() {
		if stmt, err := cfg.MappedStatement(id); err == nil && stmt.Resource() != path {
			res.Shadowed = append(res.Shadowed, id)
		}
	}
	slices.Sort(res.Shadowed)
	res.Result, res.Err = cfg.ApplyResource(res.Set)
	return res
}

// failed counts the results with an error.
func failed(results []fileResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
