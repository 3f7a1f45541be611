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
	"fmt"
	"strings"
)

// Kind tags an Expression node.
type Kind int

const (
	KindEmpty Kind = iota
	KindAnd
	KindOr
	KindPredicate
	KindRaw
)

// Predicate is a single column comparison.
type Predicate struct {
	Column   string
	Operator Operator
	Value    interface{}
}

// RawExpression is an engine-native fragment with placeholder arguments,
// passed through untouched.
type RawExpression struct {
	SQL  string
	Args []interface{}
}

// Expression is a compiled filter tree. The zero value is the empty filter,
// which matches everything.
type Expression struct {
	Kind      Kind
	Children  []Expression
	Predicate *Predicate
	Raw       *RawExpression
}

func AndOf(children ...Expression) Expression {
	return Expression{Kind: KindAnd, Children: children}
}

func OrOf(children ...Expression) Expression {
	return Expression{Kind: KindOr, Children: children}
}

func PredicateOf(column string, op Operator, value interface{}) Expression {
	return Expression{Kind: KindPredicate, Predicate: &Predicate{Column: column, Operator: op, Value: value}}
}

func RawOf(sql string, args ...interface{}) Expression {
	return Expression{Kind: KindRaw, Raw: &RawExpression{SQL: sql, Args: args}}
}

// Eq builds a column = value predicate.
func Eq(column string, value interface{}) Expression {
	return PredicateOf(column, OpEq, value)
}

// Equals builds an And of equality predicates over attrs, in sorted key order.
func Equals(attrs map[string]interface{}) Expression {
	if len(attrs) == 0 {
		return Expression{}
	}
	children := make([]Expression, 0, len(attrs))
	for _, k := range sortedKeys(attrs) {
		children = append(children, Eq(k, attrs[k]))
	}
	return AndOf(children...)
}

func (e Expression) IsEmpty() bool {
	switch e.Kind {
	case KindEmpty:
		return true
	case KindAnd, KindOr:
		for _, c := range e.Children {
			if !c.IsEmpty() {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the tree, e.g. Or(And(a = 1, b = 2), c = 3).
func (e Expression) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e Expression) write(b *strings.Builder) {
	switch e.Kind {
	case KindEmpty:
		b.WriteString("{}")
	case KindPredicate:
		fmt.Fprintf(b, "%s %s %v", e.Predicate.Column, e.Predicate.Operator, e.Predicate.Value)
	case KindRaw:
		b.WriteString(e.Raw.SQL)
		if len(e.Raw.Args) > 0 {
			fmt.Fprintf(b, " %v", e.Raw.Args)
		}
	case KindAnd, KindOr:
		if e.Kind == KindAnd {
			b.WriteString("And(")
		} else {
			b.WriteString("Or(")
		}
		for i, c := range e.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteString(")")
	}
}
