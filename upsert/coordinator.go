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

package upsert

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/relation"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/utils"
)

// Result is the outcome of one batch item.
type Result[T any] struct {
	Entity *T
	Err    error
}

type Option func(*options)

type options struct {
	concurrency int
	logger      utils.Logger
}

// WithConcurrency bounds how many batch items run at once. Values below 1
// mean sequential.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

func WithLogger(l utils.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Coordinator runs find-or-create plus relation sync against an engine.
type Coordinator[T any] struct {
	engine      storage.Engine[T]
	sync        *relation.Synchronizer[T]
	concurrency int
	logger      utils.Logger
}

func New[T any](engine storage.Engine[T], opts ...Option) *Coordinator[T] {
	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.logger == nil {
		o.logger = utils.GetLogger("UPSERT")
	}
	return &Coordinator[T]{
		engine:      engine,
		sync:        relation.NewSynchronizer(engine.Associations(), o.logger),
		concurrency: o.concurrency,
		logger:      o.logger,
	}
}

// Synchronizer exposes the relation synchronizer used after writes.
func (c *Coordinator[T]) Synchronizer() *relation.Synchronizer[T] {
	return c.sync
}

// Upsert looks the row up by identity, updates or creates it, then syncs
// every relation of the request in name order.
func (c *Coordinator[T]) Upsert(ctx context.Context, req Request) (*T, error) {
	if req.IsEmpty() {
		return nil, types.InvalidArgument("attributes should not empty")
	}
	p, err := split(req, c.engine.Associations())
	if err != nil {
		return nil, err
	}

	var entity *T
	if len(p.identity) > 0 {
		entity, err = c.engine.FindOne(ctx, storage.Filtered(query.Equals(p.identity)))
		if err != nil {
			return nil, err
		}
	}

	switch {
	case entity != nil:
		if len(p.scalars) > 0 {
			updated, err := c.engine.UpdateEntity(ctx, entity, p.scalars)
			if err != nil {
				return nil, err
			}
			if updated != nil {
				entity = updated
			}
		}
		c.logger.Debug("Upsert matched existing row", "identity", p.identity)
	default:
		entity, err = c.engine.Create(ctx, p.creation(), nil)
		if err != nil {
			return nil, err
		}
		if entity == nil {
			return nil, types.OperationFailed(types.CodeCannotCreate, "Can not create resource")
		}
		c.logger.Debug("Upsert created row", "identity", p.identity)
	}

	for _, name := range p.order {
		if err := c.sync.Sync(ctx, entity, name, p.relations[name], p.extras[name]); err != nil {
			return entity, err
		}
	}
	return entity, nil
}

// BatchUpsert upserts every request independently. The returned slice is
// aligned with reqs; the error combines every failed item.
func (c *Coordinator[T]) BatchUpsert(ctx context.Context, reqs []Request) ([]Result[T], error) {
	results := make([]Result[T], len(reqs))
	if c.concurrency == 1 {
		for i, req := range reqs {
			results[i].Entity, results[i].Err = c.Upsert(ctx, req)
		}
	} else {
		var wg sync.WaitGroup
		sem := make(chan struct{}, c.concurrency)
		for i := range reqs {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer func() {
					<-sem
					wg.Done()
				}()
				results[i].Entity, results[i].Err = c.Upsert(ctx, reqs[i])
			}(i)
		}
		wg.Wait()
	}

	var err error
	for i, r := range results {
		if r.Err != nil {
			err = multierr.Append(err, fmt.Errorf("item %d: %w", i, r.Err))
		}
	}
	if err != nil {
		c.logger.Warn("Batch upsert finished with failures",
			"total", len(reqs), "failed", len(multierr.Errors(err)))
	}
	return results, err
}
