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
	"sort"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// Model is a bun model registered on every connection the package opens.
// Join models of many-to-many relations must be registered before bun can
// resolve the relation; lower Priority values register first.
type Model interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores models and exposes them in priority order.
type ModelRegistry struct {
	mu     sync.RWMutex
	models []Model
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

func (r *ModelRegistry) Register(model Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, model)
}

// Models returns a priority-ordered copy; equal priorities keep registration order.
func (r *ModelRegistry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Model, len(r.models))
	copy(result, r.models)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority() < result[j].Priority()
	})
	return result
}

// Instances returns the model instances in priority order.
func (r *ModelRegistry) Instances() []interface{} {
	models := r.Models()
	out := make([]interface{}, len(models))
	for i, m := range models {
		out[i] = m.Instance()
	}
	return out
}

type modelAdapter struct {
	instance interface{}
	priority int
}

func (a modelAdapter) Instance() interface{} { return a.instance }

func (a modelAdapter) Priority() int { return a.priority }

// NewModel wraps a struct pointer and priority into a Model.
func NewModel(instance interface{}, priority int) Model {
	return modelAdapter{instance: instance, priority: priority}
}

// RegisterModel adds a model to the default registry.
func RegisterModel(model Model) {
	defaultRegistry.Register(model)
}

// RegisterModels adds instances to the default registry with priority zero.
func RegisterModels(instances ...interface{}) {
	for _, instance := range instances {
		defaultRegistry.Register(NewModel(instance, 0))
	}
}

func RegisteredModels() []Model {
	return defaultRegistry.Models()
}

func RegisteredModelInstances() []interface{} {
	return defaultRegistry.Instances()
}
