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
	"github.com/uptrace/bun/dialect/feature"

	"github.com/tomoncle/lattice/database"
	"github.com/tomoncle/lattice/types"
)

// Merge inserts entities, updating fields of rows that collide on
// conflictKeys (the primary key when empty). Dialects without an upsert
// clause fall back to insert-then-update per entity.
func (e *Engine[T]) Merge(ctx context.Context, fields []string, conflictKeys []string, entities ...*T) error {
	if len(fields) == 0 {
		return types.InvalidArgument("fields cannot be empty")
	}
	if len(entities) == 0 {
		return nil
	}
	rows := append([]*T(nil), entities...)

	switch {
	case e.db.HasFeature(feature.InsertOnConflict):
		if len(conflictKeys) == 0 {
			conflictKeys = []string{e.pkColumn()}
		}
		keys := make([]bun.Ident, len(conflictKeys))
		for i, k := range conflictKeys {
			keys[i] = bun.Ident(k)
		}
		ins := e.db.NewInsert().Model(&rows).On("CONFLICT (?) DO UPDATE", bun.In(keys))
		for _, f := range fields {
			ins = ins.Set("? = EXCLUDED.?", bun.Ident(f), bun.Ident(f))
		}
		if _, err := ins.Exec(ctx); err != nil {
			return fmt.Errorf("merge %s: %w", e.table.Name, err)
		}
	case e.db.HasFeature(feature.InsertOnDuplicateKey):
		ins := e.db.NewInsert().Model(&rows).On("DUPLICATE KEY UPDATE")
		for _, f := range fields {
			ins = ins.Set("? = VALUES(?)", bun.Ident(f), bun.Ident(f))
		}
		if _, err := ins.Exec(ctx); err != nil {
			return fmt.Errorf("merge %s: %w", e.table.Name, err)
		}
	default:
		if err := e.mergeEach(ctx, fields, rows); err != nil {
			return err
		}
	}
	e.logger.Debug("Rows merged", "table", e.table.Name, "count", len(rows))
	return nil
}

// mergeEach inserts rows one by one, updating fields by primary key only when
// the insert hit a unique constraint.
func (e *Engine[T]) mergeEach(ctx context.Context, fields []string, rows []*T) error {
	for _, entity := range rows {
		_, err := e.db.NewInsert().Model(entity).Exec(ctx)
		if err == nil {
			continue
		}
		if !database.IsDuplicateKey(err) {
			return fmt.Errorf("merge %s: %w", e.table.Name, err)
		}
		if _, updateErr := e.db.NewUpdate().Model(entity).Column(fields...).WherePK().Exec(ctx); updateErr != nil {
			return fmt.Errorf("merge %s: insert error: %v, update error: %w", e.table.Name, err, updateErr)
		}
	}
	return nil
}
