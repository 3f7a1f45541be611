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

package storage

import (
	"context"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/relation"
)

// Attributes is a column to value bag used by the write path.
type Attributes = map[string]interface{}

// Query is the compiled, engine-ready form of a query.Builder.
type Query struct {
	Filter      query.Expression
	Includes    []*query.IncludeSpec
	Orders      []query.Order
	Group       []string
	Attributes  []string
	Scopes      []string
	Offset      int
	Limit       int
	WithTrashed bool
}

// NewQuery snapshots the state of b. The builder may be reused afterwards.
func NewQuery(b *query.Builder) Query {
	q := Query{
		Filter:     b.Compile(),
		Group:      append([]string(nil), b.Group()...),
		Attributes: append([]string(nil), b.Attributes()...),
		Scopes:     append([]string(nil), b.NamedScopes()...),
		Orders:     append([]query.Order(nil), b.Orders()...),
		Offset:     b.Offset(),
		Limit:      b.Limit(),
	}
	for _, inc := range b.Includes() {
		q.Includes = append(q.Includes, inc.Clone())
	}
	return q
}

// Filtered returns q restricted to filter only, dropping any paging window.
func Filtered(filter query.Expression) Query {
	return Query{Filter: filter}
}

// UnitOfWork is a scoped transaction handed out by Engine.Begin.
type UnitOfWork interface {
	// ID identifies the unit of work in logs.
	ID() string

	// Commit makes every write done through the unit durable.
	Commit(ctx context.Context) error

	// Rollback discards every write done through the unit.
	Rollback(ctx context.Context) error
}

// Engine is the persistence collaborator of a repository of T.
type Engine[T any] interface {
	// FindOne returns the first entity matching q, or nil when none does.
	FindOne(ctx context.Context, q Query) (*T, error)

	// FindAll returns every entity matching q.
	FindAll(ctx context.Context, q Query) ([]*T, error)

	// Count returns the number of distinct entities matching q. Offset and
	// Limit are ignored.
	Count(ctx context.Context, q Query) (int, error)

	// Create inserts one row built from attrs. uow may be nil.
	Create(ctx context.Context, attrs Attributes, uow UnitOfWork) (*T, error)

	// BulkCreate inserts items. With perItemHooks every item is written by its
	// own statement; otherwise a single multi-row statement is used.
	BulkCreate(ctx context.Context, items []Attributes, perItemHooks bool) ([]*T, error)

	// Update writes attrs to every row matching filter and returns the number
	// of rows changed.
	Update(ctx context.Context, attrs Attributes, filter query.Expression) (int, error)

	// UpdateEntity writes attrs to the row of entity and returns the reloaded entity.
	UpdateEntity(ctx context.Context, entity *T, attrs Attributes) (*T, error)

	// Destroy deletes rows matching filter and returns the number removed.
	// Without hard, soft-deletable models are only marked deleted.
	Destroy(ctx context.Context, filter query.Expression, hard bool) (int, error)

	// DestroyEntity deletes the row of entity and reports whether one went away.
	DestroyEntity(ctx context.Context, entity *T, hard bool) (bool, error)

	// Associations exposes the relation capability bundles of T.
	Associations() *relation.Registry[T]

	// Begin opens a unit of work.
	Begin(ctx context.Context) (UnitOfWork, error)
}
