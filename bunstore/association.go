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
	"fmt"

	"github.com/uptrace/bun"

	"github.com/tomoncle/lattice/relation"
	"github.com/tomoncle/lattice/types"
)

// AssociationDef builds one association bundle once the engine is bound.
type AssociationDef[T any] func(e *Engine[T]) (*relation.Association[T], error)

// Pivot describes the link table of a many-to-many relation.
type Pivot struct {
	// Table is the link table name.
	Table string
	// Alias is the alias bun gives the link table when loading the relation;
	// unqualified IncludeThroughWhere columns are prefixed with it.
	Alias string
	// BaseKey references the owning entity, JoinKey the linked one.
	BaseKey string
	JoinKey string
	// Target is the bun relation field; the association name when empty.
	Target string
}

// Child describes the table holding the foreign key of a has-one or
// has-many relation.
type Child struct {
	Table      string
	ForeignKey string
	// Key is the primary key column of the child table, "id" when empty.
	Key    string
	Target string
}

func (c Child) key() string {
	if c.Key == "" {
		return "id"
	}
	return c.Key
}

// ManyToMany links T to other rows through a pivot table. Extra data given
// to Add or Set is written as pivot columns.
func ManyToMany[T any](name string, p Pivot) AssociationDef[T] {
	return func(e *Engine[T]) (*relation.Association[T], error) {
		if p.Table == "" || p.BaseKey == "" || p.JoinKey == "" {
			return nil, types.InvalidArgument("pivot of %s needs table, base key and join key", name)
		}
		target := p.Target
		if target == "" {
			target = name
		}
		if p.Alias != "" {
			e.pivots[target] = p.Alias
		}
		l := &pivotLinks[T]{e: e, p: p}
		return &relation.Association[T]{
			Name:        name,
			Cardinality: relation.ManyToMany,
			Target:      p.Target,
			Get:         l.get,
			Add:         l.add,
			Set:         l.set,
			Remove:      l.remove,
		}, nil
	}
}

type pivotLinks[T any] struct {
	e *Engine[T]
	p Pivot
}

func (l *pivotLinks[T]) get(ctx context.Context, entity *T) ([]relation.Link, error) {
	id, err := l.e.pk(entity)
	if err != nil {
		return nil, err
	}
	return selectIDs(ctx, l.e.db.NewSelect().
		Table(l.p.Table).
		Column(l.p.JoinKey).
		Where("? = ?", bun.Ident(l.p.BaseKey), id).
		OrderExpr("?", bun.Ident(l.p.JoinKey)))
}

func (l *pivotLinks[T]) add(ctx context.Context, entity *T, values []interface{}, extra interface{}) error {
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	payload, err := linkData(extra)
	if err != nil {
		return err
	}
	current, err := l.get(ctx, entity)
	if err != nil {
		return err
	}
	linked := make(map[string]struct{}, len(current))
	for _, link := range current {
		linked[relation.IdentityKey(link.ID)] = struct{}{}
	}

	for _, v := range values {
		key := relation.IdentityKey(v)
		if _, ok := linked[key]; ok {
			if len(payload) == 0 {
				continue
			}
			uq := l.e.db.NewUpdate().Table(l.p.Table).
				Where("? = ?", bun.Ident(l.p.BaseKey), id).
				Where("? = ?", bun.Ident(l.p.JoinKey), v)
			for _, col := range sortedKeys(payload) {
				uq = uq.Set("? = ?", bun.Ident(col), payload[col])
			}
			if _, err := uq.Exec(ctx); err != nil {
				return fmt.Errorf("update link %s: %w", l.p.Table, err)
			}
			continue
		}
		row := map[string]interface{}{l.p.BaseKey: id, l.p.JoinKey: v}
		for k, pv := range payload {
			row[k] = pv
		}
		if _, err := l.e.db.NewInsert().Model(&row).TableExpr("?", bun.Ident(l.p.Table)).Exec(ctx); err != nil {
			return fmt.Errorf("insert link %s: %w", l.p.Table, err)
		}
		linked[key] = struct{}{}
	}
	return nil
}

func (l *pivotLinks[T]) set(ctx context.Context, entity *T, value interface{}, extra interface{}) error {
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	values := listOf(value)
	dq := l.e.db.NewDelete().Table(l.p.Table).Where("? = ?", bun.Ident(l.p.BaseKey), id)
	if len(values) > 0 {
		dq = dq.Where("? NOT IN (?)", bun.Ident(l.p.JoinKey), bun.In(values))
	}
	if _, err := dq.Exec(ctx); err != nil {
		return fmt.Errorf("unlink %s: %w", l.p.Table, err)
	}
	if len(values) == 0 {
		return nil
	}
	return l.add(ctx, entity, values, extra)
}

func (l *pivotLinks[T]) remove(ctx context.Context, entity *T, link relation.Link) error {
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	_, err = l.e.db.NewDelete().Table(l.p.Table).
		Where("? = ?", bun.Ident(l.p.BaseKey), id).
		Where("? = ?", bun.Ident(l.p.JoinKey), link.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", l.p.Table, err)
	}
	return nil
}

// HasMany links child rows whose foreign key points at T. Removing a link
// clears the foreign key; the child row stays.
func HasMany[T any](name string, c Child) AssociationDef[T] {
	return func(e *Engine[T]) (*relation.Association[T], error) {
		if c.Table == "" || c.ForeignKey == "" {
			return nil, types.InvalidArgument("child of %s needs table and foreign key", name)
		}
		l := &childLinks[T]{e: e, c: c}
		return &relation.Association[T]{
			Name:        name,
			Cardinality: relation.OneToMany,
			Target:      c.Target,
			Get:         l.get,
			Add:         l.add,
			Set:         l.set,
			Remove:      l.remove,
		}, nil
	}
}

// HasOne links at most one child row to T.
func HasOne[T any](name string, c Child) AssociationDef[T] {
	return func(e *Engine[T]) (*relation.Association[T], error) {
		if c.Table == "" || c.ForeignKey == "" {
			return nil, types.InvalidArgument("child of %s needs table and foreign key", name)
		}
		l := &childLinks[T]{e: e, c: c}
		return &relation.Association[T]{
			Name:        name,
			Cardinality: relation.OneToOne,
			Target:      c.Target,
			Get:         l.get,
			Set:         l.setOne,
		}, nil
	}
}

type childLinks[T any] struct {
	e *Engine[T]
	c Child
}

func (l *childLinks[T]) get(ctx context.Context, entity *T) ([]relation.Link, error) {
	id, err := l.e.pk(entity)
	if err != nil {
		return nil, err
	}
	return selectIDs(ctx, l.e.db.NewSelect().
		Table(l.c.Table).
		Column(l.c.key()).
		Where("? = ?", bun.Ident(l.c.ForeignKey), id).
		OrderExpr("?", bun.Ident(l.c.key())))
}

func (l *childLinks[T]) add(ctx context.Context, entity *T, values []interface{}, extra interface{}) error {
	if len(values) == 0 {
		return nil
	}
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	payload, err := linkData(extra)
	if err != nil {
		return err
	}
	uq := l.e.db.NewUpdate().Table(l.c.Table).
		Set("? = ?", bun.Ident(l.c.ForeignKey), id).
		Where("? IN (?)", bun.Ident(l.c.key()), bun.In(values))
	for _, col := range sortedKeys(payload) {
		uq = uq.Set("? = ?", bun.Ident(col), payload[col])
	}
	if _, err := uq.Exec(ctx); err != nil {
		return fmt.Errorf("link %s: %w", l.c.Table, err)
	}
	return nil
}

func (l *childLinks[T]) detach(ctx context.Context, id interface{}, keep []interface{}) error {
	uq := l.e.db.NewUpdate().Table(l.c.Table).
		Set("? = NULL", bun.Ident(l.c.ForeignKey)).
		Where("? = ?", bun.Ident(l.c.ForeignKey), id)
	if len(keep) > 0 {
		uq = uq.Where("? NOT IN (?)", bun.Ident(l.c.key()), bun.In(keep))
	}
	if _, err := uq.Exec(ctx); err != nil {
		return fmt.Errorf("unlink %s: %w", l.c.Table, err)
	}
	return nil
}

func (l *childLinks[T]) set(ctx context.Context, entity *T, value interface{}, extra interface{}) error {
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	values := listOf(value)
	if err := l.detach(ctx, id, values); err != nil {
		return err
	}
	return l.add(ctx, entity, values, extra)
}

func (l *childLinks[T]) setOne(ctx context.Context, entity *T, value interface{}, extra interface{}) error {
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	if err := l.detach(ctx, id, nil); err != nil {
		return err
	}
	if value == nil {
		return nil
	}
	return l.add(ctx, entity, []interface{}{value}, extra)
}

func (l *childLinks[T]) remove(ctx context.Context, entity *T, link relation.Link) error {
	id, err := l.e.pk(entity)
	if err != nil {
		return err
	}
	_, err = l.e.db.NewUpdate().Table(l.c.Table).
		Set("? = NULL", bun.Ident(l.c.ForeignKey)).
		Where("? = ?", bun.Ident(l.c.ForeignKey), id).
		Where("? = ?", bun.Ident(l.c.key()), link.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", l.c.Table, err)
	}
	return nil
}

// BelongsTo points the foreign key column of T at another row.
func BelongsTo[T any](name string, foreignKey string, target string) AssociationDef[T] {
	return func(e *Engine[T]) (*relation.Association[T], error) {
		field, ok := e.fields[foreignKey]
		if !ok {
			return nil, types.InvalidArgument("%s has no column %s", e.table.Name, foreignKey)
		}
		get := func(ctx context.Context, entity *T) ([]relation.Link, error) {
			v := field.Value(reflectElem(entity)).Interface()
			if isZero(v) {
				return nil, nil
			}
			return []relation.Link{{ID: v}}, nil
		}
		set := func(ctx context.Context, entity *T, value interface{}, extra interface{}) error {
			if _, err := e.UpdateEntity(ctx, entity, map[string]interface{}{foreignKey: value}); err != nil {
				return err
			}
			return nil
		}
		return &relation.Association[T]{
			Name:        name,
			Cardinality: relation.ManyToOne,
			Target:      target,
			Get:         get,
			Set:         set,
		}, nil
	}
}

func selectIDs(ctx context.Context, sq *bun.SelectQuery) ([]relation.Link, error) {
	rows, err := sq.Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var links []relation.Link
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		links = append(links, relation.Link{ID: v})
	}
	return links, rows.Err()
}

// linkData accepts nil or a column mapping as extra link data.
func linkData(extra interface{}) (map[string]interface{}, error) {
	switch v := extra.(type) {
	case nil:
		return nil, nil
	case map[string]interface{}:
		return v, nil
	case types.JsonObject:
		return v, nil
	}
	return nil, types.InvalidArgument("extra link data must be a column mapping, got %T", extra)
}
