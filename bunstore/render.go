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
	"reflect"
	"strings"

	"github.com/uptrace/bun"

	"github.com/tomoncle/lattice/query"
)

// renderer turns an Expression into bun where clauses. Unqualified columns
// are prefixed with qualifier, or with the table alias of the query when
// qualifier is empty. bare leaves them unqualified, for single-table writes.
type renderer struct {
	qualifier string
	bare      bool
}

func (r renderer) apply(e query.Expression) func(bun.QueryBuilder) bun.QueryBuilder {
	return func(qb bun.QueryBuilder) bun.QueryBuilder {
		if e.IsEmpty() {
			return qb
		}
		return r.where(qb, false, e)
	}
}

func (r renderer) where(qb bun.QueryBuilder, or bool, e query.Expression) bun.QueryBuilder {
	switch e.Kind {
	case query.KindPredicate:
		sql, args := r.predicate(e.Predicate)
		if or {
			return qb.WhereOr(sql, args...)
		}
		return qb.Where(sql, args...)
	case query.KindRaw:
		sql := "(" + e.Raw.SQL + ")"
		if or {
			return qb.WhereOr(sql, e.Raw.Args...)
		}
		return qb.Where(sql, e.Raw.Args...)
	case query.KindAnd, query.KindOr:
		if e.IsEmpty() {
			return qb
		}
		sep := " AND "
		if or {
			sep = " OR "
		}
		inner := e.Kind == query.KindOr
		return qb.WhereGroup(sep, func(g bun.QueryBuilder) bun.QueryBuilder {
			for _, c := range e.Children {
				if c.IsEmpty() {
					continue
				}
				g = r.where(g, inner, c)
			}
			return g
		})
	}
	return qb
}

func (r renderer) column(col string) (string, []interface{}) {
	switch {
	case r.bare || strings.Contains(col, "."):
		return "?", []interface{}{bun.Ident(col)}
	case r.qualifier == "":
		return "?TableAlias.?", []interface{}{bun.Ident(col)}
	default:
		return "?.?", []interface{}{bun.Ident(r.qualifier), bun.Ident(col)}
	}
}

func (r renderer) predicate(p *query.Predicate) (string, []interface{}) {
	col, args := r.column(p.Column)
	switch p.Operator {
	case query.OpEq:
		if p.Value == nil {
			return col + " IS NULL", args
		}
	case query.OpNe:
		if p.Value == nil {
			return col + " IS NOT NULL", args
		}
	case query.OpIn, query.OpNotIn:
		values := listOf(p.Value)
		if len(values) == 0 {
			// nothing is in an empty set
			if p.Operator == query.OpIn {
				return "1 = 0", nil
			}
			return "1 = 1", nil
		}
		return col + " " + p.Operator.Desc() + " (?)", append(args, bun.In(values))
	}
	return col + " " + p.Operator.Desc() + " ?", append(args, p.Value)
}

// listOf flattens slices and arrays; any other value becomes a one-item list.
func listOf(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	if items, ok := v.([]interface{}); ok {
		return items
	}
	rv := reflect.ValueOf(v)
	if (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []interface{}{v}
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
