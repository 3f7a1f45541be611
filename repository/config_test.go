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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("per_page: 50\nbatch_concurrency: 4\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{PerPage: 50, Page: 1, PrimaryKey: "id", BatchConcurrency: 4}, cfg)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("REPO_PER_PAGE", "5")
	t.Setenv("REPO_PAGE", "x")
	t.Setenv("REPO_BATCH_CONCURRENCY", "0")
	path := filepath.Join(t.TempDir(), "repo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page: 3\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.PerPage)
	assert.Equal(t, 3, cfg.Page)
	// non-positive values fall back to the default
	assert.Equal(t, 1, cfg.BatchConcurrency)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}
