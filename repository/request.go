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
	"fmt"
	"sort"
	"strings"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/types"
)

// OrderHandler replaces the default OrderBy for one sort field.
type OrderHandler func(direction string)

// ConstraintHandler replaces the default equality condition for one constraint key.
type ConstraintHandler func(value interface{})

func (r *Repository[T]) stringParam(key string) (string, bool) {
	if !r.params.Has(key) {
		return "", false
	}
	v := r.params.Get(key)
	if v == nil {
		return "", false
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	return s, s != ""
}

// ApplyOrderFromRequest orders by the sort parameter, e.g. "name,-created_at,+id"
// where a leading "-" means descending. When fields is non-empty only those
// fields are honoured; a handler registered for a field is called instead of OrderBy.
func (r *Repository[T]) ApplyOrderFromRequest(fields []string, handlers map[string]OrderHandler) *Repository[T] {
	sortParam, ok := r.stringParam(ParamSort)
	if !ok {
		return r
	}
	allowed := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		allowed[f] = struct{}{}
	}
	for _, token := range strings.Split(sortParam, ",") {
		field := strings.TrimSpace(token)
		direction := query.Asc
		switch {
		case strings.HasPrefix(field, "-"):
			direction = query.Desc
			field = field[1:]
		case strings.HasPrefix(field, "+"):
			field = field[1:]
		}
		if field == "" {
			continue
		}
		if len(allowed) > 0 {
			if _, ok := allowed[field]; !ok {
				continue
			}
		}
		if h, ok := handlers[field]; ok && h != nil {
			h(direction)
			continue
		}
		r.OrderBy(field, direction)
	}
	return r
}

// ApplySearchFromRequest adds one scope matching the search parameter against
// any of fields with LIKE. The pattern is "%search%" unless match is given.
func (r *Repository[T]) ApplySearchFromRequest(fields []string, match string) *Repository[T] {
	search, ok := r.stringParam(ParamSearch)
	if !ok || len(fields) == 0 {
		return r
	}
	if match == "" {
		match = "%" + search + "%"
	}
	r.Where(query.Scope(func(q *query.Builder) {
		for _, f := range fields {
			q.OrWhere(f, "like", match)
		}
	}))
	return r
}

// ApplyConstraintsFromRequest adds an equality condition per key of the
// constraints parameter, given as a mapping or a JSON object. Keys are applied
// in sorted order; a handler registered for a key is called instead.
func (r *Repository[T]) ApplyConstraintsFromRequest(handlers map[string]ConstraintHandler) *Repository[T] {
	if !r.params.Has(ParamConstraints) {
		return r
	}
	raw := r.params.Get(ParamConstraints)
	if s, ok := raw.(string); ok && strings.TrimSpace(s) == "" {
		return r
	}
	constraints, err := types.DecodeJsonObject(raw)
	if err != nil {
		r.fail(err)
		return r
	}
	keys := make([]string, 0, len(constraints))
	for k := range constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if h, ok := handlers[k]; ok && h != nil {
			h(constraints[k])
			continue
		}
		r.Where(k, constraints[k])
	}
	return r
}
