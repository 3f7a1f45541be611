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

package database

import (
	"bytes"
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
)

func hookDB(t *testing.T, hooks ...bun.QueryHook) *bun.DB {
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db := bun.NewDB(sqldb, sqlitedialect.New())
	for _, h := range hooks {
		db.AddQueryHook(h)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQueryHookWritesStatements(t *testing.T) {
	var buf bytes.Buffer
	db := hookDB(t, NewQueryHook(WithWriter(&buf)))

	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n))
	assert.Contains(t, buf.String(), "[BUN]")
	assert.Contains(t, buf.String(), "SELECT 1")
}

func TestQueryHookQuietMode(t *testing.T) {
	var buf bytes.Buffer
	db := hookDB(t, NewQueryHook(WithWriter(&buf), WithVerbose(false)))
	ctx := context.Background()

	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(ctx, &n))
	assert.Empty(t, buf.String())

	_, err := db.ExecContext(ctx, "SELECT * FROM missing_table")
	require.Error(t, err)
	assert.Contains(t, buf.String(), "missing_table")
}

func TestQueryHookEnvOverride(t *testing.T) {
	t.Setenv("LATTICE_TEST_BUNDEBUG", "0")
	var buf bytes.Buffer
	db := hookDB(t, NewQueryHook(WithWriter(&buf), WithEnv("LATTICE_TEST_BUNDEBUG")))

	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n))
	assert.Empty(t, buf.String())
}

func TestQueryHookSilent(t *testing.T) {
	SetSilent(true)
	t.Cleanup(func() { SetSilent(false) })
	var buf bytes.Buffer
	db := hookDB(t, NewQueryHook(WithWriter(&buf)))

	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n))
	assert.Empty(t, buf.String())
}

func TestSlowQueryHook(t *testing.T) {
	logger := &recordLogger{}
	db := hookDB(t, NewSlowQueryHook(time.Nanosecond, logger))

	var n int
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n))
	assert.Equal(t, []string{"WARN Database slow query detected"}, logger.Messages())

	quiet := &recordLogger{}
	db = hookDB(t, NewSlowQueryHook(time.Hour, quiet))
	require.NoError(t, db.NewSelect().ColumnExpr("1").Scan(context.Background(), &n))
	assert.Empty(t, quiet.Messages())
}
