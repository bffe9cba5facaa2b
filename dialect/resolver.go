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

package dialect

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"log/slog"
	"reflect"
	"sync"
)

// probes are tried in order on one connection until a product name maps to
// a known dialect.
var probes = []string{
	"SELECT version()",
	"SELECT @@version_comment",
	"SELECT @@VERSION",
	"SELECT banner FROM v$version WHERE ROWNUM = 1",
}

// Resolver resolves and caches the dialect of each *sql.DB.
// It is safe for concurrent use.
type Resolver struct {
	cache  sync.Map // *sql.DB -> Dialect
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger uses slog.Default.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

var driverProducts sync.Map // reflect.Type -> string

// RegisterDriverProduct records that databases opened with drivers of the
// type of drv are product, such as "MySQL" or "PostgreSQL". Resolve then
// needs no metadata queries for them. Applications call it for the drivers
// they link:
//
//	dialect.RegisterDriverProduct(&mysql.MySQLDriver{}, "MySQL")
func RegisterDriverProduct(drv driver.Driver, product string) {
	driverProducts.Store(reflect.TypeOf(drv), product)
}

// productNameFromDriver returns the product name registered for the type
// of drv.
func productNameFromDriver(drv driver.Driver) (string, bool) {
	product, ok := driverProducts.Load(reflect.TypeOf(drv))
	if !ok {
		return "", false
	}
	return product.(string), true
}

// Resolve returns the dialect of db, resolving it once per *sql.DB.
// Resolution failures fall back to Default and are not cached.
func (r *Resolver) Resolve(ctx context.Context, db *sql.DB) (Dialect, error) {
	if cached, ok := r.cache.Load(db); ok {
		return cached.(Dialect), nil
	}

	if product, ok := productNameFromDriver(db.Driver()); ok {
		d := FromProductName(product)
		r.logger.Debug("dialect resolved from driver", "product", product, "dialect", d.Name())
		actual, _ := r.cache.LoadOrStore(db, d)
		return actual.(Dialect), nil
	}

	product, err := r.probe(ctx, db)
	if err != nil {
		return Default, err
	}
	d := FromProductName(product)
	r.logger.Debug("dialect resolved from metadata", "product", product, "dialect", d.Name())
	actual, _ := r.cache.LoadOrStore(db, d)
	return actual.(Dialect), nil
}

// probe runs the metadata queries on a single connection which is always
// released. It returns the first product name that maps to a known dialect,
// or the last name seen.
func (r *Resolver) probe(ctx context.Context, db *sql.DB) (product string, err error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = conn.Close() }()

	for _, query := range probes {
		var name string
		if err := conn.QueryRowContext(ctx, query).Scan(&name); err != nil {
			r.logger.Debug("dialect probe failed", "query", query, "error", err)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		product = name
		if FromProductName(name).SupportsPagination() {
			return product, nil
		}
	}
	return product, nil
}

// Forget drops the cached dialect of db.
func (r *Resolver) Forget(db *sql.DB) {
	r.cache.Delete(db)
}
