/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/upsert"
	"github.com/tomoncle/lattice/utils"
)

// Repository is a fluent facade over a storage.Engine. Builder state persists
// across terminal calls; use Fresh for an empty one. It is not safe for
// concurrent use.
type Repository[T any] struct {
	engine      storage.Engine[T]
	builder     *query.Builder
	upserts     *upsert.Coordinator[T]
	params      Params
	config      Config
	logger      utils.Logger
	withTrashed bool
	err         error
}

type Option[T any] func(*Repository[T])

// WithParams sets the request parameters consulted by Paginate and the Apply* methods.
func WithParams[T any](p Params) Option[T] {
	return func(r *Repository[T]) {
		if p != nil {
			r.params = p
		}
	}
}

func WithConfig[T any](c Config) Option[T] {
	return func(r *Repository[T]) { r.config = c.normalized() }
}

func WithLogger[T any](l utils.Logger) Option[T] {
	return func(r *Repository[T]) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a repository over engine.
func New[T any](engine storage.Engine[T], opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		engine: engine,
		params: noParams{},
		config: DefaultConfig(),
		logger: utils.GetLogger("REPOSITORY"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.builder = query.NewBuilder().SetResolver(engine.Associations())
	r.upserts = upsert.New(engine,
		upsert.WithConcurrency(r.config.BatchConcurrency),
		upsert.WithLogger(r.logger),
	)
	return r
}

// Fresh returns a repository sharing engine, params and config with an empty builder.
func (r *Repository[T]) Fresh() *Repository[T] {
	return &Repository[T]{
		engine:  r.engine,
		builder: query.NewBuilder().SetResolver(r.engine.Associations()),
		upserts: r.upserts,
		params:  r.params,
		config:  r.config,
		logger:  r.logger,
	}
}

func (r *Repository[T]) Engine() storage.Engine[T] { return r.engine }

func (r *Repository[T]) Builder() *query.Builder { return r.builder }

func (r *Repository[T]) Config() Config { return r.config }

func (r *Repository[T]) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Err reports the first error recorded by the repository or its builder.
func (r *Repository[T]) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.builder.Err()
}

func (r *Repository[T]) Where(args ...interface{}) *Repository[T] {
	r.builder.Where(args...)
	return r
}

func (r *Repository[T]) OrWhere(args ...interface{}) *Repository[T] {
	r.builder.OrWhere(args...)
	return r
}

func (r *Repository[T]) WhereIn(column string, values interface{}) *Repository[T] {
	r.builder.WhereIn(column, values)
	return r
}

func (r *Repository[T]) WhereNotIn(column string, values interface{}) *Repository[T] {
	r.builder.WhereNotIn(column, values)
	return r
}

func (r *Repository[T]) WhereHas(relation string, fn func(*query.Builder)) *Repository[T] {
	r.builder.WhereHas(relation, fn)
	return r
}

func (r *Repository[T]) IncludeThroughWhere(relation string, fn func(*query.Builder)) *Repository[T] {
	r.builder.IncludeThroughWhere(relation, fn)
	return r
}

func (r *Repository[T]) Skip(offset int) *Repository[T] {
	r.builder.Skip(offset)
	return r
}

func (r *Repository[T]) Take(limit int) *Repository[T] {
	r.builder.Take(limit)
	return r
}

func (r *Repository[T]) OrderBy(field string, direction string) *Repository[T] {
	r.builder.OrderBy(field, direction)
	return r
}

func (r *Repository[T]) OrderByRelation(relation string, field string, direction string) *Repository[T] {
	r.builder.OrderByRelation(relation, field, direction)
	return r
}

func (r *Repository[T]) GroupBy(columns ...string) *Repository[T] {
	r.builder.GroupBy(columns...)
	return r
}

func (r *Repository[T]) With(target string, modifiers ...string) *Repository[T] {
	r.builder.With(target, modifiers...)
	return r
}

func (r *Repository[T]) WithScope(name string) *Repository[T] {
	r.builder.WithScope(name)
	return r
}

// WithTrashed includes soft-deleted rows in reads.
func (r *Repository[T]) WithTrashed() *Repository[T] {
	r.withTrashed = true
	return r
}

func (r *Repository[T]) Select(columns ...string) *Repository[T] {
	r.builder.Select(columns...)
	return r
}

// compiled snapshots the builder, failing with the first recorded argument error.
func (r *Repository[T]) compiled() (storage.Query, error) {
	if err := r.Err(); err != nil {
		return storage.Query{}, asInvalid(err)
	}
	q := storage.NewQuery(r.builder)
	q.WithTrashed = r.withTrashed
	return q, nil
}

func asInvalid(err error) error {
	if types.CodeOf(err) == types.CodeInvalidArgument {
		return err
	}
	return types.WrapInvalidArgument(err, "invalid query")
}

// First returns the first matching row, or nil when there is none.
func (r *Repository[T]) First(ctx context.Context) (*T, error) {
	q, err := r.compiled()
	if err != nil {
		return nil, err
	}
	return r.engine.FindOne(ctx, q)
}

func (r *Repository[T]) FirstOrFail(ctx context.Context) (*T, error) {
	entity, err := r.First(ctx)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, types.NotFound("Resource")
	}
	return entity, nil
}

// FindByID looks a row up by primary key. Only includes, projection, named
// scopes and WithTrashed of the builder apply.
func (r *Repository[T]) FindByID(ctx context.Context, id interface{}) (*T, error) {
	q, err := r.compiled()
	if err != nil {
		return nil, err
	}
	q.Filter = query.Eq(r.config.PrimaryKey, id)
	q.Orders, q.Group, q.Offset, q.Limit = nil, nil, 0, 0
	entity, err := r.engine.FindOne(ctx, q)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, types.NotFound("Resource")
	}
	return entity, nil
}

func (r *Repository[T]) Get(ctx context.Context) ([]*T, error) {
	q, err := r.compiled()
	if err != nil {
		return nil, err
	}
	return r.engine.FindAll(ctx, q)
}

// Count returns the number of distinct matching rows.
func (r *Repository[T]) Count(ctx context.Context) (int, error) {
	q, err := r.compiled()
	if err != nil {
		return 0, err
	}
	return r.engine.Count(ctx, q)
}

// Paginate fetches one page. A perPage or page below 1 is taken from the
// per_page/page request parameters, then from Config.
func (r *Repository[T]) Paginate(ctx context.Context, perPage int, page int) (*types.Pagination[T], error) {
	q, err := r.compiled()
	if err != nil {
		return nil, err
	}
	if perPage < 1 {
		perPage = r.intParam(ParamPerPage, r.config.PerPage)
	}
	if page < 1 {
		page = r.intParam(ParamPage, r.config.Page)
	}
	request := types.NewPageRequest(page, perPage)
	q.Offset, q.Limit = request.GetOffset(), request.GetPageSize()

	total, err := r.engine.Count(ctx, q)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return types.NewDefaultPagination[T](request.GetPage(), request.GetPageSize()), nil
	}
	rows, err := r.engine.FindAll(ctx, q)
	if err != nil {
		return nil, err
	}
	return types.NewPagination(rows, total, request.GetPageSize(), request.GetPage()), nil
}

func (r *Repository[T]) intParam(key string, fallback int) int {
	if !r.params.Has(key) {
		return fallback
	}
	switch v := r.params.Get(key).(type) {
	case int:
		if v > 0 {
			return v
		}
	case float64:
		if v >= 1 {
			return int(v)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	default:
		if n, err := strconv.Atoi(fmt.Sprint(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
