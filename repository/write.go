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
	"sort"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/relation"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/upsert"
)

func emptyAttributes() error {
	return types.InvalidArgument("attributes should not empty")
}

// partition separates association keys from column keys.
func (r *Repository[T]) partition(attrs storage.Attributes) (storage.Attributes, storage.Attributes) {
	registry := r.engine.Associations()
	scalars := storage.Attributes{}
	relations := storage.Attributes{}
	for k, v := range attrs {
		if registry.Has(k) {
			relations[k] = v
		} else {
			scalars[k] = v
		}
	}
	return scalars, relations
}

// Create inserts the base row inside a unit of work, then links association
// values once it has committed. Many-to-many values are added one by one;
// other associations are synchronized.
func (r *Repository[T]) Create(ctx context.Context, attrs storage.Attributes) (*T, error) {
	if len(attrs) == 0 {
		return nil, emptyAttributes()
	}
	scalars, relations := r.partition(attrs)

	var entity *T
	err := r.WithUnitOfWork(ctx, func(uow storage.UnitOfWork) error {
		var err error
		entity, err = r.engine.Create(ctx, scalars, uow)
		return err
	})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, types.OperationFailed(types.CodeCannotCreate, "Can not create resource")
	}
	if err := r.linkCreated(ctx, entity, relations); err != nil {
		return entity, err
	}
	return entity, nil
}

func (r *Repository[T]) linkCreated(ctx context.Context, entity *T, relations storage.Attributes) error {
	registry := r.engine.Associations()
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		value := relations[name]
		assoc, _ := registry.Lookup(name)
		if assoc.Cardinality != relation.ManyToMany {
			if err := r.upserts.Synchronizer().Sync(ctx, entity, name, value, nil); err != nil {
				return err
			}
			continue
		}
		if value == nil {
			continue
		}
		values, ok := relation.AsList(value)
		if !ok {
			return types.InvalidArgument("%s expects a list of values, got %T", name, value)
		}
		for _, v := range values {
			if err := assoc.Add(ctx, entity, []interface{}{v}, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// FirstOrCreate returns the row matching the column attributes, creating it
// when there is none.
func (r *Repository[T]) FirstOrCreate(ctx context.Context, attrs storage.Attributes) (*T, error) {
	if len(attrs) == 0 {
		return nil, emptyAttributes()
	}
	scalars, _ := r.partition(attrs)
	if len(scalars) > 0 {
		entity, err := r.engine.FindOne(ctx, storage.Filtered(query.Equals(scalars)))
		if err != nil {
			return nil, err
		}
		if entity != nil {
			return entity, nil
		}
	}
	return r.Create(ctx, attrs)
}

// UpdateOrCreate fills the row matching attrs with values, or creates a row
// from attrs overlaid with values.
func (r *Repository[T]) UpdateOrCreate(ctx context.Context, attrs storage.Attributes, values storage.Attributes) (*T, error) {
	if len(attrs) == 0 {
		return nil, emptyAttributes()
	}
	entity, err := r.engine.FindOne(ctx, storage.Filtered(query.Equals(attrs)))
	if err != nil {
		return nil, err
	}
	if entity != nil {
		if len(values) == 0 {
			return entity, nil
		}
		return r.engine.UpdateEntity(ctx, entity, values)
	}

	merged := make(storage.Attributes, len(attrs)+len(values))
	for k, v := range attrs {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}
	entity, err = r.engine.Create(ctx, merged, nil)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, types.OperationFailed(types.CodeCannotCreate, "Can not create resource")
	}
	return entity, nil
}

// Update writes attrs to every row matching the current conditions and
// returns the affected count.
func (r *Repository[T]) Update(ctx context.Context, attrs storage.Attributes) (int, error) {
	if len(attrs) == 0 {
		return 0, emptyAttributes()
	}
	q, err := r.compiled()
	if err != nil {
		return 0, err
	}
	return r.engine.Update(ctx, attrs, q.Filter)
}

func (r *Repository[T]) UpdateByID(ctx context.Context, id interface{}, attrs storage.Attributes) (*T, error) {
	if len(attrs) == 0 {
		return nil, emptyAttributes()
	}
	entity, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.engine.UpdateEntity(ctx, entity, attrs)
}

// BulkCreate inserts items; perItemHooks asks the engine for one statement per item.
func (r *Repository[T]) BulkCreate(ctx context.Context, items []storage.Attributes, perItemHooks bool) ([]*T, error) {
	for i, item := range items {
		if len(item) == 0 {
			return nil, types.InvalidArgument("item %d: attributes should not empty", i)
		}
	}
	if len(items) == 0 {
		return []*T{}, nil
	}
	return r.engine.BulkCreate(ctx, items, perItemHooks)
}

func (r *Repository[T]) Upsert(ctx context.Context, req upsert.Request) (*T, error) {
	return r.upserts.Upsert(ctx, req)
}

func (r *Repository[T]) BatchUpsert(ctx context.Context, reqs []upsert.Request) ([]upsert.Result[T], error) {
	return r.upserts.BatchUpsert(ctx, reqs)
}

// DeleteByID destroys the row with the given primary key; force skips soft delete.
func (r *Repository[T]) DeleteByID(ctx context.Context, id interface{}, force bool) error {
	entity, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := r.engine.DestroyEntity(ctx, entity, force)
	if err != nil {
		return err
	}
	if !ok {
		return types.OperationFailed(types.CodeCannotDelete, "can not delete resource")
	}
	return nil
}

// Delete destroys every row matching the current conditions.
func (r *Repository[T]) Delete(ctx context.Context, force bool) (int, error) {
	q, err := r.compiled()
	if err != nil {
		return 0, err
	}
	return r.engine.Destroy(ctx, q.Filter, force)
}

// BulkDelete destroys the rows matching each equality filter in turn and
// returns the total count. It stops at the first failure.
func (r *Repository[T]) BulkDelete(ctx context.Context, filters ...storage.Attributes) (int, error) {
	total := 0
	for i, f := range filters {
		if len(f) == 0 {
			return total, types.InvalidArgument("filter %d should not empty", i)
		}
	}
	for i, f := range filters {
		n, err := r.engine.Destroy(ctx, query.Equals(f), false)
		if err != nil {
			return total, fmt.Errorf("filter %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

// WithUnitOfWork runs fn inside a unit of work, committing when it returns nil
// and rolling back on error or panic.
func (r *Repository[T]) WithUnitOfWork(ctx context.Context, fn func(uow storage.UnitOfWork) error) (err error) {
	uow, err := r.engine.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			if rbErr := uow.Rollback(ctx); rbErr != nil {
				r.logger.Error("Rollback after panic failed", "uow", uow.ID(), "error", rbErr)
			}
			panic(p)
		}
	}()

	if err = fn(uow); err != nil {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			r.logger.Error("Rollback failed", "uow", uow.ID(), "error", rbErr)
		}
		return err
	}
	return uow.Commit(ctx)
}
