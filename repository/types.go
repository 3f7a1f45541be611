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
	"net/url"
	"os"
	"strconv"

	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/upsert"
	"gopkg.in/yaml.v3"
)

// Reader defines the terminal read operations of a repository.
type Reader[T any] interface {
	First(ctx context.Context) (*T, error)
	FirstOrFail(ctx context.Context) (*T, error)
	FindByID(ctx context.Context, id interface{}) (*T, error)
	Get(ctx context.Context) ([]*T, error)
	Count(ctx context.Context) (int, error)
	Paginate(ctx context.Context, perPage int, page int) (*types.Pagination[T], error)
}

// Writer defines the write operations of a repository.
type Writer[T any] interface {
	Create(ctx context.Context, attrs storage.Attributes) (*T, error)
	FirstOrCreate(ctx context.Context, attrs storage.Attributes) (*T, error)
	UpdateOrCreate(ctx context.Context, attrs storage.Attributes, values storage.Attributes) (*T, error)
	Update(ctx context.Context, attrs storage.Attributes) (int, error)
	UpdateByID(ctx context.Context, id interface{}, attrs storage.Attributes) (*T, error)
	BulkCreate(ctx context.Context, items []storage.Attributes, perItemHooks bool) ([]*T, error)
	Upsert(ctx context.Context, req upsert.Request) (*T, error)
	BatchUpsert(ctx context.Context, reqs []upsert.Request) ([]upsert.Result[T], error)
	DeleteByID(ctx context.Context, id interface{}, force bool) error
	Delete(ctx context.Context, force bool) (int, error)
	BulkDelete(ctx context.Context, filters ...storage.Attributes) (int, error)
}

var (
	_ Reader[struct{}] = (*Repository[struct{}])(nil)
	_ Writer[struct{}] = (*Repository[struct{}])(nil)
)

// Request parameter names.
const (
	ParamPerPage     = "per_page"
	ParamPage        = "page"
	ParamSort        = "sort"
	ParamSearch      = "search"
	ParamConstraints = "constraints"
)

// Params is the read side of an incoming request's parameters.
type Params interface {
	Has(key string) bool
	Get(key string) interface{}
}

type queryParams url.Values

// QueryParams adapts URL query values; Get returns the first value.
func QueryParams(values url.Values) Params {
	return queryParams(values)
}

func (p queryParams) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p queryParams) Get(key string) interface{} {
	return url.Values(p).Get(key)
}

// MapParams serves parameters from an already decoded mapping.
type MapParams map[string]interface{}

func (p MapParams) Has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p MapParams) Get(key string) interface{} {
	return p[key]
}

type noParams struct{}

func (noParams) Has(string) bool { return false }

func (noParams) Get(string) interface{} { return nil }

// Config holds the defaults resolved when neither the caller nor the request
// supplies a value.
type Config struct {
	PerPage          int    `json:"per_page" yaml:"per_page"`
	Page             int    `json:"page" yaml:"page"`
	PrimaryKey       string `json:"primary_key" yaml:"primary_key"`
	BatchConcurrency int    `json:"batch_concurrency" yaml:"batch_concurrency"`
}

func DefaultConfig() Config {
	return Config{
		PerPage:          types.DefaultPerPage,
		Page:             types.DefaultPage,
		PrimaryKey:       "id",
		BatchConcurrency: 1,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.PerPage < 1 {
		c.PerPage = d.PerPage
	}
	if c.Page < 1 {
		c.Page = d.Page
	}
	if c.PrimaryKey == "" {
		c.PrimaryKey = d.PrimaryKey
	}
	if c.BatchConcurrency < 1 {
		c.BatchConcurrency = d.BatchConcurrency
	}
	return c
}

// LoadConfig reads a YAML document over DefaultConfig and applies REPO_*
// environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	OverrideFromEnv(&cfg)
	return cfg.normalized(), nil
}

// OverrideFromEnv overrides configuration values from environment variables.
func OverrideFromEnv(cfg *Config) {
	if perPage := os.Getenv("REPO_PER_PAGE"); perPage != "" {
		if val, err := strconv.Atoi(perPage); err == nil {
			cfg.PerPage = val
		}
	}
	if page := os.Getenv("REPO_PAGE"); page != "" {
		if val, err := strconv.Atoi(page); err == nil {
			cfg.Page = val
		}
	}
	if pk := os.Getenv("REPO_PRIMARY_KEY"); pk != "" {
		cfg.PrimaryKey = pk
	}
	if concurrency := os.Getenv("REPO_BATCH_CONCURRENCY"); concurrency != "" {
		if val, err := strconv.Atoi(concurrency); err == nil {
			cfg.BatchConcurrency = val
		}
	}
}
