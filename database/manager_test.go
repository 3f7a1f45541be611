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
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/lattice/utils"
)

type recordLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg)
}

func (l *recordLogger) Messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *recordLogger) SetLevel(utils.LogLevel) {}

func (l *recordLogger) Debug(msg string, _ ...interface{}) { l.record("DEBUG", msg) }

func (l *recordLogger) Info(msg string, _ ...interface{}) { l.record("INFO", msg) }

func (l *recordLogger) Warn(msg string, _ ...interface{}) { l.record("WARN", msg) }

func (l *recordLogger) Error(msg string, _ ...interface{}) { l.record("ERROR", msg) }

func memoryConfig(t *testing.T) *ConnectionConfig {
	cfg := DefaultConnectionConfig()
	cfg.Type = "sqlite"
	cfg.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.HealthCheckInterval = 0
	cfg.SlowQueryTime = 0
	cfg.MaxOpenConns = 1
	return cfg
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := &recordLogger{}
	m := NewManager(memoryConfig(t))
	m.SetLogger(logger)

	require.NoError(t, m.Connect(ctx))
	require.NotNil(t, m.GetDB())
	require.NotNil(t, m.GetSQLDB())
	assert.NoError(t, m.Ping(ctx))
	// second connect is a no-op
	assert.NoError(t, m.Connect(ctx))

	status := m.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, status.MaxOpenConns)

	stats := m.GetStats()
	assert.Equal(t, 1, stats.MaxOpenConns)

	require.NoError(t, m.Disconnect())
	assert.Nil(t, m.GetDB())
	assert.Error(t, m.Ping(ctx))
	assert.Equal(t, &DBStats{}, m.GetStats())

	status = m.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.Equal(t, "Database not initialized", status.LastError)

	assert.Contains(t, logger.Messages(), "INFO Database connected successfully")
	assert.Contains(t, logger.Messages(), "INFO Database connection closed")
}

func TestManagerReconnect(t *testing.T) {
	ctx := context.Background()
	m := NewManager(memoryConfig(t))
	m.SetLogger(utils.NopLogger{})
	require.NoError(t, m.Connect(ctx))
	first := m.GetDB()

	require.NoError(t, m.Reconnect(ctx))
	assert.NotSame(t, first, m.GetDB())
	assert.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Disconnect())
}

func TestManagerUnsupportedType(t *testing.T) {
	m := NewManager(&ConnectionConfig{Type: "oracle", ConnectTimeout: time.Second})
	err := m.Connect(context.Background())
	assert.ErrorContains(t, err, "unsupported database type: oracle")
}

func TestFactoryRejectsUnknownType(t *testing.T) {
	_, err := NewFactory().CreateFromConfig(&ConnectionConfig{Type: "mssql"})
	assert.ErrorContains(t, err, "unsupported database type")

	_, err = NewFactory().CreateFromConfig(nil)
	assert.Error(t, err)

	f := NewFactory()
	assert.Error(t, f.Initialize(context.Background()))
	assert.False(t, f.GetHealthStatus(context.Background()).Healthy)
	assert.Nil(t, f.GetDB())
}

type taggedRow struct {
	ID   int64 `bun:"id,pk,autoincrement"`
	Name string
}

func TestGlobalConnection(t *testing.T) {
	RegisterModels((*taggedRow)(nil))
	t.Cleanup(func() { _ = CloseDB() })

	assert.Nil(t, GetDB())
	assert.False(t, GetHealthStatus(context.Background()).Healthy)

	db, err := InitDB(&Config{Connection: *memoryConfig(t)})
	require.NoError(t, err)
	assert.Same(t, db, GetDB())
	assert.NotNil(t, GetManager())
	assert.True(t, GetHealthStatus(context.Background()).Healthy)
	assert.Equal(t, 1, GetDatabaseStats().MaxOpenConns)

	require.NoError(t, CloseDB())
	assert.Nil(t, GetDB())
	assert.NoError(t, CloseDB())
}

func TestModelRegistryOrdersByPriority(t *testing.T) {
	r := NewModelRegistry()
	a, b, c := &taggedRow{Name: "a"}, &taggedRow{Name: "b"}, &taggedRow{Name: "c"}
	r.Register(NewModel(a, 5))
	r.Register(NewModel(b, 1))
	r.Register(NewModel(c, 5))

	assert.Equal(t, []interface{}{b, a, c}, r.Instances())
}
