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

/*
Package sqlquery is a dynamic SQL mapping engine.

Statements are defined in XML sqlset files, rendered against runtime
parameters into SQL with ordered bind arguments, and kept in a
Configuration that can be reloaded while it is being read.

Basic Usage:

	cfg := sqlquery.NewConfiguration()
	builder := sqlquery.NewXMLSQLSetBuilder(cfg)
	if _, err := builder.Build(file, "user-sqlset.xml"); err != nil {
		// handle error
		panic(err)
	}

	helper := sqlquery.NewSQLHelper(cfg, sqlquery.WithDialect(dialect.Postgres))
	bound, err := helper.BoundSQL("studio.user.select", map[string]any{"status": "active"})
	if err != nil {
		// handle error
		panic(err)
	}
	rows, err := db.QueryContext(ctx, bound.SQL, bound.Args...)

	query := sqlquery.NewSQLQuery(helper, db, dialect.Postgres)
	page, err := query.QueryForPage(ctx, "studio.user.select", 20, 10, params)

Features:

  - #{name} bind placeholders and validated ${name} text substitution
  - if, foreach, where, set, trim, choose, include and bind tags
  - Row mappers and type aliases
  - Pagination for MySQL, PostgreSQL, Oracle and SQL Server
  - Hot reload of statement directories, see package scanner
*/
package sqlquery
