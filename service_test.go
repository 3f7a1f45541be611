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
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/lattice/bunstore"
	"github.com/tomoncle/lattice/database"
	"github.com/tomoncle/lattice/repository"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/upsert"
	"github.com/tomoncle/lattice/utils"
)

type SystemConfig struct {
	bun.BaseModel `bun:"table:system_config,alias:sc"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	ConfigKey   string    `bun:"config_key,notnull,unique" json:"config_key"`
	ConfigValue string    `bun:"config_value" json:"config_value"`
	ConfigType  string    `bun:"config_type,notnull,default:'string'" json:"config_type"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

func newService(t *testing.T) Service[SystemConfig] {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*SystemConfig)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return NewService[SystemConfig](
		WithDB[SystemConfig](db),
		WithEngineOptions(bunstore.WithLogger[SystemConfig](utils.NopLogger{})),
		WithRepositoryOptions(repository.WithLogger[SystemConfig](utils.NopLogger{})),
	)
}

func keys(rows []*SystemConfig) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ConfigKey
	}
	return out
}

func TestServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	created, err := svc.Save(ctx, storage.Attributes{"config_key": "site.name", "config_value": "lattice"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "lattice", got.ConfigValue)
	assert.Equal(t, "string", got.ConfigType)

	_, err = svc.Save(ctx, storage.Attributes{"config_key": "site.theme", "config_value": "dark"})
	require.NoError(t, err)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"site.name", "site.theme"}, keys(all))

	listed, err := svc.List(ctx, func(r *repository.Repository[SystemConfig]) {
		r.Where("config_value", "dark")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"site.theme"}, keys(listed))

	page, err := svc.Page(ctx, types.NewPageRequest(2, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.LastPage())

	require.NoError(t, svc.Delete(ctx, created.ID, false))
	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestServiceSaveOrUpdate(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	first, err := svc.Save(ctx, storage.Attributes{"config_key": "mail.host", "config_value": "old"})
	require.NoError(t, err)

	err = svc.SaveOrUpdate(ctx, []string{"config_value"}, []string{"config_key"},
		&SystemConfig{ConfigKey: "mail.host", ConfigValue: "new", ConfigType: "string"},
		&SystemConfig{ConfigKey: "mail.port", ConfigValue: "25", ConfigType: "int"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ConfigValue)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestServiceUpsert(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	created, err := svc.Upsert(ctx, upsert.Request{
		Identity: storage.Attributes{"config_key": "cache.ttl"},
		Scalars:  storage.Attributes{"config_value": "60"},
	})
	require.NoError(t, err)

	updated, err := svc.Upsert(ctx, upsert.Request{
		Identity: storage.Attributes{"config_key": "cache.ttl"},
		Scalars:  storage.Attributes{"config_value": "120"},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "120", updated.ConfigValue)
}

func TestServiceWithoutDatabase(t *testing.T) {
	svc := NewService[SystemConfig]()
	_, err := svc.All(context.Background())
	assert.EqualError(t, err, "database not initialized")
	_, err = svc.Engine()
	assert.Error(t, err)
}

func TestServiceRetriesAfterDatabaseInit(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, database.CloseDB())
	t.Cleanup(func() { _ = database.CloseDB() })

	svc := NewService[SystemConfig](
		WithEngineOptions(bunstore.WithLogger[SystemConfig](utils.NopLogger{})),
		WithRepositoryOptions(repository.WithLogger[SystemConfig](utils.NopLogger{})),
	)
	_, err := svc.All(ctx)
	require.EqualError(t, err, "database not initialized")

	cfg := database.DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.HealthCheckInterval = 0
	cfg.MaxOpenConns = 1
	db, err := database.InitDB(&database.Config{Connection: *cfg})
	require.NoError(t, err)
	_, err = db.NewCreateTable().Model((*SystemConfig)(nil)).Exec(ctx)
	require.NoError(t, err)

	rows, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	engine, err := svc.Engine()
	require.NoError(t, err)
	assert.NotNil(t, engine)
}
