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

package query

import (
	"strings"

	"github.com/tomoncle/lattice/types"
)

// Operator is the comparison applied by a predicate.
type Operator int

const (
	OpEq Operator = iota
	OpGt
	OpLt
	OpGte
	OpLte
	OpNe
	OpLike
	OpIn
	OpNotIn
)

var operatorEntries = []types.EnumEntry{
	{Name: "eq", Desc: "="},
	{Name: "gt", Desc: ">"},
	{Name: "lt", Desc: "<"},
	{Name: "gte", Desc: ">="},
	{Name: "lte", Desc: "<="},
	{Name: "ne", Desc: "<>"},
	{Name: "like", Desc: "LIKE"},
	{Name: "in", Desc: "IN"},
	{Name: "notIn", Desc: "NOT IN"},
}

var _ types.BaseEnum = OpEq

func (o Operator) IsValid() bool {
	_, ok := types.LookupEnum(operatorEntries, int(o))
	return ok
}

func (o Operator) Number() int {
	if !o.IsValid() {
		return types.IllegalValue
	}
	return int(o)
}

func (o Operator) Name() string {
	e, _ := types.LookupEnum(operatorEntries, int(o))
	return e.Name
}

// Desc returns the SQL spelling of the operator.
func (o Operator) Desc() string {
	e, _ := types.LookupEnum(operatorEntries, int(o))
	return e.Desc
}

func (o Operator) String() string { return o.Desc() }

// ParseOperator maps the textual operators accepted by Where to an Operator.
func ParseOperator(s string) (Operator, error) {
	switch strings.TrimSpace(s) {
	case "=", "==":
		return OpEq, nil
	case ">":
		return OpGt, nil
	case "<":
		return OpLt, nil
	case ">=":
		return OpGte, nil
	case "<=":
		return OpLte, nil
	case "<>", "!=":
		return OpNe, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "like":
		return OpLike, nil
	case "in":
		return OpIn, nil
	case "not in", "notin":
		return OpNotIn, nil
	}
	return types.IllegalValue, types.InvalidArgument("unknown operator %q", s)
}

// Combinator groups conditions.
type Combinator int

const (
	And Combinator = iota
	Or
)

var combinatorEntries = []types.EnumEntry{
	{Name: "and", Desc: "AND"},
	{Name: "or", Desc: "OR"},
}

var _ types.BaseEnum = And

func (c Combinator) IsValid() bool {
	_, ok := types.LookupEnum(combinatorEntries, int(c))
	return ok
}

func (c Combinator) Number() int {
	if !c.IsValid() {
		return types.IllegalValue
	}
	return int(c)
}

func (c Combinator) Name() string {
	e, _ := types.LookupEnum(combinatorEntries, int(c))
	return e.Name
}

func (c Combinator) Desc() string {
	e, _ := types.LookupEnum(combinatorEntries, int(c))
	return e.Desc
}

func (c Combinator) String() string { return c.Desc() }
