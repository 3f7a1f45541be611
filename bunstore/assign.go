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
	"fmt"
	"reflect"
	"sort"

	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
)

// assign writes attrs onto the struct fields of entity and returns the
// affected columns in sorted order.
func (e *Engine[T]) assign(entity *T, attrs storage.Attributes) ([]string, error) {
	strct := reflect.ValueOf(entity).Elem()
	cols := sortedKeys(attrs)
	for _, col := range cols {
		f, ok := e.fields[col]
		if !ok {
			return nil, types.InvalidArgument("%s has no column %s", e.table.Name, col)
		}
		if err := setValue(f.Value(strct), attrs[col]); err != nil {
			return nil, types.WrapInvalidArgument(err, "cannot assign column "+col)
		}
	}
	return cols, nil
}

func setValue(dst reflect.Value, v interface{}) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	src := reflect.ValueOf(v)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if src.Kind() == reflect.Pointer {
		if src.IsNil() {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
		return setValue(dst, src.Elem().Interface())
	}
	if dst.Kind() == reflect.Pointer {
		p := reflect.New(dst.Type().Elem())
		if err := setValue(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}
	if convertible(src.Kind(), dst.Kind()) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	return fmt.Errorf("cannot use %T as %s", v, dst.Type())
}

func convertible(from, to reflect.Kind) bool {
	if from == to {
		return from == reflect.String || from == reflect.Bool || isNumber(from)
	}
	return isNumber(from) && isNumber(to)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func reflectElem(v interface{}) reflect.Value {
	return reflect.ValueOf(v).Elem()
}

func isZero(v interface{}) bool {
	return v == nil || reflect.ValueOf(v).IsZero()
}
