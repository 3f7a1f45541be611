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

package lattice

import (
	"context"
	"fmt"
	"sync"

	"github.com/uptrace/bun"

	"github.com/tomoncle/lattice/bunstore"
	"github.com/tomoncle/lattice/database"
	"github.com/tomoncle/lattice/repository"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/upsert"
)

type Service[T any] interface {
	// Repository returns a facade with an empty builder for fluent queries.
	Repository() (*repository.Repository[T], error)

	// Get returns a single entity by its primary key.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns the entities matching the conditions fn adds to the facade.
	List(ctx context.Context, fn func(r *repository.Repository[T])) ([]*T, error)

	// Page returns one page of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save creates an entity from attributes, linking association values.
	Save(ctx context.Context, attrs storage.Attributes) (*T, error)

	// SaveOrUpdate inserts entities, updating fields on conflictKeys collisions.
	SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) error

	// Upsert finds by identity, then updates or creates and syncs relations.
	Upsert(ctx context.Context, req upsert.Request) (*T, error)

	// Delete removes an entity by primary key; force skips soft delete.
	Delete(ctx context.Context, id any, force bool) error

	// Engine returns the bun storage engine behind the service.
	Engine() (*bunstore.Engine[T], error)
}

type ServiceOption[T any] func(*baseService[T])

// WithDB binds the service to db instead of the global connection.
func WithDB[T any](db *bun.DB) ServiceOption[T] {
	return func(s *baseService[T]) { s.db = db }
}

func WithEngineOptions[T any](opts ...bunstore.Option[T]) ServiceOption[T] {
	return func(s *baseService[T]) { s.engineOpts = append(s.engineOpts, opts...) }
}

func WithRepositoryOptions[T any](opts ...repository.Option[T]) ServiceOption[T] {
	return func(s *baseService[T]) { s.repoOpts = append(s.repoOpts, opts...) }
}

type baseService[T any] struct {
	db         *bun.DB
	engineOpts []bunstore.Option[T]
	repoOpts   []repository.Option[T]

	mu     sync.Mutex
	engine *bunstore.Engine[T]
	repo   *repository.Repository[T]
}

// NewService returns a Service backed by the global database connection,
// resolved on first use.
func NewService[T any](opts ...ServiceOption[T]) Service[T] {
	s := &baseService[T]{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// init resolves the engine once a connection is available. Failures are not
// cached, so a later call retries.
func (s *baseService[T]) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return nil
	}
	db := s.db
	if db == nil {
		db = database.GetDB()
	}
	if db == nil {
		return fmt.Errorf("database not initialized")
	}
	engine, err := bunstore.New[T](db, s.engineOpts...)
	if err != nil {
		return err
	}
	s.engine = engine
	s.repo = repository.New[T](engine, s.repoOpts...)
	return nil
}

func (s *baseService[T]) Engine() (*bunstore.Engine[T], error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	return s.engine, nil
}

func (s *baseService[T]) Repository() (*repository.Repository[T], error) {
	if err := s.init(); err != nil {
		return nil, err
	}
	return s.repo.Fresh(), nil
}

func (s *baseService[T]) Get(ctx context.Context, id any) (*T, error) {
	r, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (s *baseService[T]) All(ctx context.Context) ([]*T, error) {
	r, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return r.Get(ctx)
}

func (s *baseService[T]) List(ctx context.Context, fn func(r *repository.Repository[T])) ([]*T, error) {
	r, err := s.Repository()
	if err != nil {
		return nil, err
	}
	if fn != nil {
		fn(r)
	}
	return r.Get(ctx)
}

func (s *baseService[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	r, err := s.Repository()
	if err != nil {
		return nil, err
	}
	if page == nil {
		return r.Paginate(ctx, 0, 0)
	}
	return r.Paginate(ctx, page.GetPageSize(), page.GetPage())
}

func (s *baseService[T]) Save(ctx context.Context, attrs storage.Attributes) (*T, error) {
	r, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return r.Create(ctx, attrs)
}

func (s *baseService[T]) SaveOrUpdate(ctx context.Context, fields []string, conflictKeys []string, model ...*T) error {
	e, err := s.Engine()
	if err != nil {
		return err
	}
	return e.Merge(ctx, fields, conflictKeys, model...)
}

func (s *baseService[T]) Upsert(ctx context.Context, req upsert.Request) (*T, error) {
	r, err := s.Repository()
	if err != nil {
		return nil, err
	}
	return r.Upsert(ctx, req)
}

func (s *baseService[T]) Delete(ctx context.Context, id any, force bool) error {
	r, err := s.Repository()
	if err != nil {
		return err
	}
	return r.DeleteByID(ctx, id, force)
}
