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

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
)

type unitOfWork struct {
	id string
	tx bun.Tx
}

func (u *unitOfWork) ID() string { return u.id }

func (u *unitOfWork) Commit(ctx context.Context) error { return u.tx.Commit() }

func (u *unitOfWork) Rollback(ctx context.Context) error { return u.tx.Rollback() }

// Tx exposes the bun transaction behind the unit of work.
func (u *unitOfWork) Tx() bun.Tx { return u.tx }

func (e *Engine[T]) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	u := &unitOfWork{id: uuid.NewString(), tx: tx}
	e.logger.Debug("Unit of work started", "uow", u.id)
	return u, nil
}

// conn picks the transaction of uow, or the database when uow is nil.
func (e *Engine[T]) conn(uow storage.UnitOfWork) (bun.IDB, error) {
	if uow == nil {
		return e.db, nil
	}
	u, ok := uow.(*unitOfWork)
	if !ok {
		return nil, types.InvalidArgument("unit of work %s was not started by this engine", uow.ID())
	}
	return u.tx, nil
}

func uowID(uow storage.UnitOfWork) string {
	if uow == nil {
		return ""
	}
	return uow.ID()
}
