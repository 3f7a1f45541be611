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

package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/relation"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/utils"
)

// ScopeFunc is a named, reusable select modifier applied by Builder.WithScope.
type ScopeFunc func(*bun.SelectQuery) *bun.SelectQuery

type Option[T any] func(*Engine[T])

// WithAssociations declares the relations the engine can synchronize.
func WithAssociations[T any](defs ...AssociationDef[T]) Option[T] {
	return func(e *Engine[T]) { e.defs = append(e.defs, defs...) }
}

// WithScope registers a named scope.
func WithScope[T any](name string, fn ScopeFunc) Option[T] {
	return func(e *Engine[T]) { e.scopes[name] = fn }
}

func WithLogger[T any](l utils.Logger) Option[T] {
	return func(e *Engine[T]) { e.logger = l }
}

// Engine executes compiled queries for the model T.
type Engine[T any] struct {
	db       *bun.DB
	table    *schema.Table
	fields   map[string]*schema.Field
	defs     []AssociationDef[T]
	registry *relation.Registry[T]
	scopes   map[string]ScopeFunc
	pivots   map[string]string
	logger   utils.Logger
}

var _ storage.Engine[struct{}] = (*Engine[struct{}])(nil)

// New binds an engine for T to db. T must be a bun model struct.
func New[T any](db *bun.DB, opts ...Option[T]) (*Engine[T], error) {
	if db == nil {
		return nil, types.InvalidArgument("bun db must not be nil")
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, types.InvalidArgument("%s is not a struct model", typ)
	}
	e := &Engine[T]{
		db:     db,
		table:  db.Table(typ),
		fields: map[string]*schema.Field{},
		scopes: map[string]ScopeFunc{},
		pivots: map[string]string{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = utils.GetLogger("BUNSTORE")
	}
	for _, f := range e.table.Fields {
		e.fields[f.Name] = f
	}

	assocs := make([]*relation.Association[T], 0, len(e.defs))
	for _, def := range e.defs {
		a, err := def(e)
		if err != nil {
			return nil, err
		}
		assocs = append(assocs, a)
	}
	registry, err := relation.NewRegistry(assocs...)
	if err != nil {
		return nil, err
	}
	e.registry = registry
	return e, nil
}

func (e *Engine[T]) DB() *bun.DB { return e.db }

// Table is the bun table metadata of T.
func (e *Engine[T]) Table() *schema.Table { return e.table }

func (e *Engine[T]) Associations() *relation.Registry[T] { return e.registry }

func (e *Engine[T]) FindOne(ctx context.Context, q storage.Query) (*T, error) {
	entity := new(T)
	sq, err := e.selectQuery(e.db, entity, q, true)
	if err != nil {
		return nil, err
	}
	if err := sq.Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find one %s: %w", e.table.Name, err)
	}
	return entity, nil
}

func (e *Engine[T]) FindAll(ctx context.Context, q storage.Query) ([]*T, error) {
	entities := make([]*T, 0)
	sq, err := e.selectQuery(e.db, &entities, q, true)
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		sq = sq.Limit(q.Limit)
	}
	if err := sq.Scan(ctx); err != nil {
		return nil, fmt.Errorf("find all %s: %w", e.table.Name, err)
	}
	return entities, nil
}

func (e *Engine[T]) Count(ctx context.Context, q storage.Query) (int, error) {
	sq, err := e.selectQuery(e.db, new(T), q, false)
	if err != nil {
		return 0, err
	}
	n, err := sq.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", e.table.Name, err)
	}
	return n, nil
}

// selectQuery applies q to a select over dest. Ordering, grouping and the
// offset are skipped when full is false.
func (e *Engine[T]) selectQuery(db bun.IDB, dest interface{}, q storage.Query, full bool) (*bun.SelectQuery, error) {
	sq := db.NewSelect().Model(dest)
	if len(q.Attributes) > 0 {
		sq = sq.Column(q.Attributes...)
	}
	for _, name := range q.Scopes {
		fn, ok := e.scopes[name]
		if !ok {
			return nil, types.InvalidArgument("scope %s is not registered for %s", name, e.table.Name)
		}
		sq = sq.Apply(fn)
	}
	sq = sq.ApplyQueryBuilder(renderer{}.apply(q.Filter))
	if q.WithTrashed && e.table.SoftDeleteField != nil {
		sq = sq.WhereAllWithDeleted()
	}

	byRelation := map[string][]query.Order{}
	if full {
		for _, o := range q.Orders {
			if o.Relation == "" {
				sq = sq.OrderExpr("?TableAlias.? "+o.Direction, bun.Ident(o.Field))
				continue
			}
			byRelation[o.Relation] = append(byRelation[o.Relation], o)
		}
	}

	included := map[string]bool{}
	for _, inc := range q.Includes {
		sq = e.include(sq, inc, "", byRelation[inc.Target])
		included[inc.Target] = true
	}
	if full {
		for _, o := range q.Orders {
			if o.Relation != "" && !included[o.Relation] {
				sq = e.include(sq, &query.IncludeSpec{Target: o.Relation}, "", byRelation[o.Relation])
				included[o.Relation] = true
			}
		}
		for _, col := range q.Group {
			sq = sq.GroupExpr("?TableAlias.?", bun.Ident(col))
		}
		if q.Offset > 0 {
			sq = sq.Offset(q.Offset)
		}
	}
	return sq, nil
}

// include loads spec and its nested chain. A top-level filter restricts the
// root rows to those with a matching related record, through the JOIN for
// to-one relations and an EXISTS subquery otherwise, and also restricts the
// loaded records.
func (e *Engine[T]) include(sq *bun.SelectQuery, spec *query.IncludeSpec, parent string, orders []query.Order) *bun.SelectQuery {
	path := spec.Target
	if parent != "" {
		path = parent + "." + spec.Target
	}
	joinAlias, joined := "", false
	if parent == "" {
		joinAlias, joined = e.joinAlias(spec.Target)
	}

	if joined {
		if spec.Filter != nil {
			sq = sq.ApplyQueryBuilder(renderer{qualifier: joinAlias}.apply(*spec.Filter))
		}
		for _, o := range orders {
			sq = sq.OrderExpr("?.? "+o.Direction, bun.Ident(joinAlias), bun.Ident(o.Field))
		}
	}
	if !joined && parent == "" && spec.Filter != nil && !spec.Filter.IsEmpty() {
		if sub, ok := e.exists(spec); ok {
			sq = sq.Where("EXISTS (?)", sub)
		}
	}
	pivot := e.pivots[spec.Target]
	sq = sq.Relation(path, func(rq *bun.SelectQuery) *bun.SelectQuery {
		if len(spec.Attributes) > 0 {
			rq = rq.Column(spec.Attributes...)
		}
		if joined {
			return rq
		}
		if spec.Filter != nil {
			rq = rq.ApplyQueryBuilder(renderer{}.apply(*spec.Filter))
		}
		if spec.Through != nil && pivot != "" {
			rq = rq.ApplyQueryBuilder(renderer{qualifier: pivot}.apply(*spec.Through))
		}
		for _, o := range orders {
			rq = rq.OrderExpr("?TableAlias.? "+o.Direction, bun.Ident(o.Field))
		}
		return rq
	})
	if spec.Alias != "" {
		e.logger.Debug("Include alias has no bun equivalent, loading by relation name",
			"relation", path, "alias", spec.Alias)
	}
	if spec.Nested != nil {
		sq = e.include(sq, spec.Nested, path, nil)
	}
	return sq
}

// exists builds the correlated subquery selecting the has-many or
// many-to-many records of spec.Target that match its filter.
func (e *Engine[T]) exists(spec *query.IncludeSpec) (*bun.SelectQuery, bool) {
	rel, ok := e.table.Relations[spec.Target]
	if !ok || rel == nil || rel.JoinTable == nil || len(rel.BasePKs) == 0 || len(rel.BasePKs) != len(rel.JoinPKs) {
		e.logger.Debug("Relation cannot restrict root rows, filtering loaded records only", "relation", spec.Target)
		return nil, false
	}
	alias := rel.JoinTable.Alias
	if alias == e.table.Alias {
		alias += "_match"
	}
	root := bun.Ident(e.table.Alias)
	sub := e.db.NewSelect().
		ColumnExpr("1").
		ApplyQueryBuilder(renderer{qualifier: alias}.apply(*spec.Filter))

	switch rel.Type {
	case schema.HasManyRelation:
		sub = sub.TableExpr("? AS ?", bun.Ident(rel.JoinTable.Name), bun.Ident(alias))
		for i, base := range rel.BasePKs {
			sub = sub.Where("?.? = ?.?", bun.Ident(alias), bun.Ident(rel.JoinPKs[i].Name), root, bun.Ident(base.Name))
		}
	case schema.ManyToManyRelation:
		if rel.M2MTable == nil || len(rel.M2MBasePKs) != len(rel.BasePKs) || len(rel.M2MJoinPKs) != len(rel.JoinPKs) {
			return nil, false
		}
		link := bun.Ident(rel.M2MTable.Alias)
		sub = sub.TableExpr("? AS ?", bun.Ident(rel.M2MTable.Name), link)
		sub = sub.Join("JOIN ? AS ?", bun.Ident(rel.JoinTable.Name), bun.Ident(alias))
		for i, target := range rel.JoinPKs {
			sub = sub.JoinOn("?.? = ?.?", bun.Ident(alias), bun.Ident(target.Name), link, bun.Ident(rel.M2MJoinPKs[i].Name))
		}
		for i, base := range rel.BasePKs {
			sub = sub.Where("?.? = ?.?", link, bun.Ident(rel.M2MBasePKs[i].Name), root, bun.Ident(base.Name))
		}
		if spec.Through != nil {
			sub = sub.ApplyQueryBuilder(renderer{qualifier: rel.M2MTable.Alias}.apply(*spec.Through))
		}
	default:
		return nil, false
	}
	return sub, true
}

// joinAlias reports whether the relation is loaded with a JOIN, and under
// which alias.
func (e *Engine[T]) joinAlias(name string) (string, bool) {
	rel, ok := e.table.Relations[name]
	if !ok || rel == nil {
		return "", false
	}
	switch rel.Type {
	case schema.HasOneRelation, schema.BelongsToRelation:
		return rel.Field.Name, true
	}
	return "", false
}

func (e *Engine[T]) Create(ctx context.Context, attrs storage.Attributes, uow storage.UnitOfWork) (*T, error) {
	db, err := e.conn(uow)
	if err != nil {
		return nil, err
	}
	entity := new(T)
	cols, err := e.assign(entity, attrs)
	if err != nil {
		return nil, err
	}
	if err := e.insert(ctx, db, entity, cols); err != nil {
		return nil, fmt.Errorf("create %s: %w", e.table.Name, err)
	}
	e.logger.Debug("Row created", "table", e.table.Name, "columns", cols, "uow", uowID(uow))
	return entity, nil
}

func (e *Engine[T]) insert(ctx context.Context, db bun.IDB, model interface{}, cols []string) error {
	ins := db.NewInsert().Model(model)
	if len(cols) > 0 {
		ins = ins.Column(cols...)
	}
	if e.db.HasFeature(feature.InsertReturning) {
		_, err := ins.Returning("*").Exec(ctx)
		return err
	}
	if _, err := ins.Exec(ctx); err != nil {
		return err
	}
	// reload column defaults the driver cannot return
	if entity, ok := model.(*T); ok {
		return db.NewSelect().Model(entity).WherePK().Scan(ctx)
	}
	return nil
}

func (e *Engine[T]) BulkCreate(ctx context.Context, items []storage.Attributes, perItemHooks bool) ([]*T, error) {
	entities := make([]*T, 0, len(items))
	if len(items) == 0 {
		return entities, nil
	}
	if perItemHooks {
		for i, attrs := range items {
			entity, err := e.Create(ctx, attrs, nil)
			if err != nil {
				return entities, fmt.Errorf("bulk create item %d: %w", i, err)
			}
			entities = append(entities, entity)
		}
		return entities, nil
	}

	union := map[string]interface{}{}
	for _, attrs := range items {
		entity := new(T)
		if _, err := e.assign(entity, attrs); err != nil {
			return nil, err
		}
		for k := range attrs {
			union[k] = nil
		}
		entities = append(entities, entity)
	}
	if err := e.insert(ctx, e.db, &entities, sortedKeys(union)); err != nil {
		return nil, fmt.Errorf("bulk create %s: %w", e.table.Name, err)
	}
	e.logger.Debug("Rows created", "table", e.table.Name, "count", len(entities))
	return entities, nil
}

func (e *Engine[T]) Update(ctx context.Context, attrs storage.Attributes, filter query.Expression) (int, error) {
	if len(attrs) == 0 {
		return 0, types.InvalidArgument("attributes should not empty")
	}
	uq := e.db.NewUpdate().Model(new(T))
	for _, col := range sortedKeys(attrs) {
		if _, ok := e.fields[col]; !ok {
			return 0, types.InvalidArgument("%s has no column %s", e.table.Name, col)
		}
		uq = uq.Set("? = ?", bun.Ident(col), attrs[col])
	}
	uq = uq.ApplyQueryBuilder(renderer{bare: true}.apply(filter))
	if filter.IsEmpty() {
		uq = uq.Where("1 = 1")
	}
	res, err := uq.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", e.table.Name, err)
	}
	return affected(res), nil
}

func (e *Engine[T]) UpdateEntity(ctx context.Context, entity *T, attrs storage.Attributes) (*T, error) {
	if entity == nil {
		return nil, types.InvalidArgument("cannot update a nil %s", e.table.Name)
	}
	cols, err := e.assign(entity, attrs)
	if err != nil {
		return nil, err
	}
	if len(cols) > 0 {
		if _, err := e.db.NewUpdate().Model(entity).Column(cols...).WherePK().Exec(ctx); err != nil {
			return nil, fmt.Errorf("update %s: %w", e.table.Name, err)
		}
	}
	if err := e.db.NewSelect().Model(entity).WherePK().Scan(ctx); err != nil {
		return nil, fmt.Errorf("reload %s: %w", e.table.Name, err)
	}
	return entity, nil
}

func (e *Engine[T]) Destroy(ctx context.Context, filter query.Expression, hard bool) (int, error) {
	dq := e.db.NewDelete().Model(new(T)).ApplyQueryBuilder(renderer{bare: true}.apply(filter))
	if filter.IsEmpty() {
		dq = dq.Where("1 = 1")
	}
	if hard && e.table.SoftDeleteField != nil {
		dq = dq.WhereAllWithDeleted().ForceDelete()
	}
	res, err := dq.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("destroy %s: %w", e.table.Name, err)
	}
	return affected(res), nil
}

func (e *Engine[T]) DestroyEntity(ctx context.Context, entity *T, hard bool) (bool, error) {
	if entity == nil {
		return false, types.InvalidArgument("cannot destroy a nil %s", e.table.Name)
	}
	dq := e.db.NewDelete().Model(entity).WherePK()
	if hard && e.table.SoftDeleteField != nil {
		dq = dq.WhereAllWithDeleted().ForceDelete()
	}
	res, err := dq.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("destroy %s: %w", e.table.Name, err)
	}
	return affected(res) > 0, nil
}

// pk returns the primary key value of entity.
func (e *Engine[T]) pk(entity *T) (interface{}, error) {
	if entity == nil {
		return nil, types.InvalidArgument("nil %s has no primary key", e.table.Name)
	}
	if len(e.table.PKs) == 0 {
		return nil, types.InvalidArgument("%s has no primary key", e.table.Name)
	}
	return e.table.PKs[0].Value(reflect.ValueOf(entity).Elem()).Interface(), nil
}

func (e *Engine[T]) pkColumn() string {
	if len(e.table.PKs) == 0 {
		return "id"
	}
	return e.table.PKs[0].Name
}

func affected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}
