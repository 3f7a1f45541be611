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

package relation

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/utils"
)

// Synchronizer applies desired relation values to entities of T.
type Synchronizer[T any] struct {
	registry *Registry[T]
	logger   utils.Logger
}

// NewSynchronizer returns a Synchronizer over registry. A nil logger selects
// the shared "RELATION" logger.
func NewSynchronizer[T any](registry *Registry[T], logger utils.Logger) *Synchronizer[T] {
	if logger == nil {
		logger = utils.GetLogger("RELATION")
	}
	return &Synchronizer[T]{registry: registry, logger: logger}
}

func (s *Synchronizer[T]) Registry() *Registry[T] {
	return s.registry
}

// Sync makes relation name of entity match desired.
//
// A falsy desired value is a no-op; an empty list clears the relation. For
// collection relations given a list, links whose ID is absent from desired are
// removed before anything is added. A list extra carries one link payload per
// desired item and forces a clear followed by one add per item; any other
// extra is passed to a single replace. Steps already applied are not undone
// when a later one fails.
func (s *Synchronizer[T]) Sync(ctx context.Context, entity *T, name string, desired interface{}, extra interface{}) error {
	if IsFalsy(desired) {
		return nil
	}
	assoc, ok := s.registry.Lookup(name)
	if !ok {
		return types.InvalidArgument("%s is not a declared association", name)
	}
	if entity == nil {
		return types.InvalidArgument("cannot sync %s of a nil entity", name)
	}

	desiredList, desiredIsList := AsList(desired)
	extraList, extraIsList := AsList(extra)
	if extra != nil && extraIsList {
		if !desiredIsList {
			return types.InvalidArgument("per-item extra data for %s needs a list of values", name)
		}
		if len(extraList) != len(desiredList) {
			return types.InvalidArgument("%s has %d values but %d extra entries", name, len(desiredList), len(extraList))
		}
	}

	if assoc.Cardinality.IsCollection() && desiredIsList {
		if err := s.removeStale(ctx, entity, assoc, desiredList); err != nil {
			return err
		}
	}

	switch {
	case extra != nil && extraIsList:
		if err := assoc.Set(ctx, entity, nil, nil); err != nil {
			return err
		}
		for i, v := range desiredList {
			if err := assoc.Add(ctx, entity, []interface{}{v}, extraList[i]); err != nil {
				return err
			}
		}
		s.logger.Debug("Relation re-added with per-item extra data", "relation", name, "count", len(desiredList))
		return nil
	case extra != nil:
		s.logger.Debug("Relation replaced with extra data", "relation", name)
		return assoc.Set(ctx, entity, desired, extra)
	default:
		s.logger.Debug("Relation replaced", "relation", name)
		return assoc.Set(ctx, entity, desired, nil)
	}
}

func (s *Synchronizer[T]) removeStale(ctx context.Context, entity *T, assoc *Association[T], desired []interface{}) error {
	current, err := assoc.Get(ctx, entity)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(desired))
	for _, v := range desired {
		keep[IdentityKey(v)] = struct{}{}
	}
	removed := 0
	for _, link := range current {
		if _, ok := keep[IdentityKey(link.ID)]; ok {
			continue
		}
		if err := assoc.Remove(ctx, entity, link); err != nil {
			return err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Debug("Stale relation links removed", "relation", assoc.Name, "removed", removed)
	}
	return nil
}

// IdentityKey is the canonical comparison form of a link identifier, so that
// 7, int64(7) and "7" are the same link.
func IdentityKey(v interface{}) string {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "<nil>"
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return "<nil>"
	}
	return fmt.Sprint(rv.Interface())
}

// IsFalsy reports whether v is nil, a nil reference, false, a zero number or
// an empty string.
func IsFalsy(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	case reflect.Bool:
		return !rv.Bool()
	case reflect.String:
		return rv.Len() == 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

// AsList flattens slices and arrays other than byte strings.
func AsList(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if items, ok := v.([]interface{}); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
