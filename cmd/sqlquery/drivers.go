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
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"

	"github.com/go-juicedev/sqlquery/dialect"
)

// registerDrivers maps the drivers linked into the command to their
// products, so that --dsn resolves without metadata queries.
func registerDrivers() {
	dialect.RegisterDriverProduct(&mysql.MySQLDriver{}, "MySQL")
	dialect.RegisterDriverProduct(&pq.Driver{}, "PostgreSQL")
	dialect.RegisterDriverProduct(&sqlite3.SQLiteDriver{}, "SQLite")
	dialect.RegisterDriverProduct(&sqlite.Driver{}, "SQLite")
}
