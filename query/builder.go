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
	"sort"
	"strings"

	"github.com/tomoncle/lattice/types"
)

// Condition is one accumulated where clause.
type Condition struct {
	Column     string
	Operator   Operator
	Value      interface{}
	Combinator Combinator
	Raw        *RawExpression
}

func (c Condition) expression() Expression {
	if c.Raw != nil {
		return Expression{Kind: KindRaw, Raw: c.Raw}
	}
	return PredicateOf(c.Column, c.Operator, c.Value)
}

// ScopeQuery is a compiled sub-builder merged into its parent at compile time.
type ScopeQuery struct {
	Tree       Expression
	Combinator Combinator
}

type argTag int

const (
	tagRaw argTag = iota
	tagScope
)

// Arg is the single-argument form of Where and OrWhere: either Raw or Scope.
type Arg interface {
	tag() argTag
}

type rawArg struct{ expr RawExpression }

func (rawArg) tag() argTag { return tagRaw }

type scopeArg struct{ fn func(*Builder) }

func (scopeArg) tag() argTag { return tagScope }

// Raw wraps an engine-native fragment, e.g. Raw("lower(name) = ?", "bob").
func Raw(sql string, args ...interface{}) Arg {
	return rawArg{expr: RawExpression{SQL: sql, Args: args}}
}

// Scope wraps a callback that fills a nested builder.
func Scope(fn func(*Builder)) Arg {
	return scopeArg{fn: fn}
}

// Sort directions.
const (
	Asc  = "ASC"
	Desc = "DESC"
)

// Order is one order-by entry. Relation qualifies Field when set.
type Order struct {
	Relation  string
	Field     string
	Direction string
}

// Builder accumulates conditions, scopes, includes and query shaping state.
// It is not safe for concurrent use. Argument errors are recorded and reported
// by Err; the first one wins.
type Builder struct {
	resolver    Resolver
	conditions  []Condition
	scopes      []ScopeQuery
	includes    []*IncludeSpec
	orders      []Order
	group       []string
	attributes  []string
	namedScopes []string
	offset      int
	limit       int
	err         error
}

func NewBuilder() *Builder {
	return &Builder{}
}

// SetResolver installs the relation name resolver used by With and WhereHas.
func (b *Builder) SetResolver(r Resolver) *Builder {
	b.resolver = r
	return b
}

func (b *Builder) child() *Builder {
	return &Builder{resolver: b.resolver}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Err returns the first argument error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

// Where adds an AND condition: Where(column, value), Where(column, operator, value),
// Where(Raw(...)) or Where(Scope(fn)).
func (b *Builder) Where(args ...interface{}) *Builder {
	return b.add(And, "where", args)
}

// OrWhere is Where with the OR combinator.
func (b *Builder) OrWhere(args ...interface{}) *Builder {
	return b.add(Or, "orWhere", args)
}

func (b *Builder) WhereRaw(sql string, args ...interface{}) *Builder {
	return b.Where(Raw(sql, args...))
}

func (b *Builder) OrWhereRaw(sql string, args ...interface{}) *Builder {
	return b.OrWhere(Raw(sql, args...))
}

func (b *Builder) WhereScope(fn func(*Builder)) *Builder {
	return b.Where(Scope(fn))
}

func (b *Builder) OrWhereScope(fn func(*Builder)) *Builder {
	return b.OrWhere(Scope(fn))
}

func (b *Builder) WhereIn(column string, values interface{}) *Builder {
	b.conditions = append(b.conditions, Condition{Column: column, Operator: OpIn, Value: values, Combinator: And})
	return b
}

func (b *Builder) WhereNotIn(column string, values interface{}) *Builder {
	b.conditions = append(b.conditions, Condition{Column: column, Operator: OpNotIn, Value: values, Combinator: And})
	return b
}

func (b *Builder) add(c Combinator, fn string, args []interface{}) *Builder {
	switch len(args) {
	case 1:
		arg, ok := args[0].(Arg)
		if !ok || arg == nil {
			b.fail(types.InvalidArgument("%s expects a Raw or Scope argument when called with one parameter, got %T", fn, args[0]))
			return b
		}
		switch arg.tag() {
		case tagRaw:
			raw := arg.(rawArg).expr
			b.conditions = append(b.conditions, Condition{Combinator: c, Raw: &raw})
		case tagScope:
			b.addScope(c, arg.(scopeArg).fn)
		}
	case 2:
		column, ok := args[0].(string)
		if !ok || column == "" {
			b.fail(types.InvalidArgument("%s expects a column name, got %v", fn, args[0]))
			return b
		}
		b.conditions = append(b.conditions, Condition{Column: column, Operator: OpEq, Value: args[1], Combinator: c})
	case 3:
		column, ok := args[0].(string)
		if !ok || column == "" {
			b.fail(types.InvalidArgument("%s expects a column name, got %v", fn, args[0]))
			return b
		}
		op, err := operatorArg(args[1])
		if err != nil {
			b.fail(err)
			return b
		}
		b.conditions = append(b.conditions, Condition{Column: column, Operator: op, Value: args[2], Combinator: c})
	default:
		b.fail(types.InvalidArgument("%s function expects two or three parameters", fn))
	}
	return b
}

func operatorArg(v interface{}) (Operator, error) {
	switch op := v.(type) {
	case Operator:
		if !op.IsValid() {
			return op, types.InvalidArgument("invalid operator %d", int(op))
		}
		return op, nil
	case string:
		return ParseOperator(op)
	default:
		return types.IllegalValue, types.InvalidArgument("operator must be a string or Operator, got %T", v)
	}
}

func (b *Builder) addScope(c Combinator, fn func(*Builder)) {
	if fn == nil {
		b.fail(types.InvalidArgument("scope callback must not be nil"))
		return
	}
	sub := b.child()
	fn(sub)
	if sub.err != nil {
		b.fail(sub.err)
		return
	}
	b.scopes = append(b.scopes, ScopeQuery{Tree: sub.Compile(), Combinator: c})
}

// WhereHas eager-loads relation constrained by the conditions fn adds.
func (b *Builder) WhereHas(relation string, fn func(*Builder)) *Builder {
	filter, ok := b.compileChild(fn)
	if !ok {
		return b
	}
	b.register(&IncludeSpec{Target: resolveTarget(b.resolver, relation), Filter: &filter})
	return b
}

// IncludeThroughWhere eager-loads a many-to-many relation whose link rows match
// the conditions fn adds.
func (b *Builder) IncludeThroughWhere(relation string, fn func(*Builder)) *Builder {
	filter, ok := b.compileChild(fn)
	if !ok {
		return b
	}
	b.register(&IncludeSpec{Target: resolveTarget(b.resolver, relation), Through: &filter})
	return b
}

func (b *Builder) compileChild(fn func(*Builder)) (Expression, bool) {
	if fn == nil {
		b.fail(types.InvalidArgument("relation callback must not be nil"))
		return Expression{}, false
	}
	sub := b.child()
	fn(sub)
	if sub.err != nil {
		b.fail(sub.err)
		return Expression{}, false
	}
	return sub.Compile(), true
}

// With registers an eager-load of target shaped by modifier tokens; see ParseInclude.
func (b *Builder) With(target string, modifiers ...string) *Builder {
	spec, ok := ParseInclude(b.resolver, target, modifiers...)
	if ok {
		b.register(spec)
	}
	return b
}

// WithList is With taking the target and modifiers as one slice.
func (b *Builder) WithList(args []string) *Builder {
	if len(args) == 0 {
		return b
	}
	return b.With(args[0], args[1:]...)
}

// register merges spec into an existing top-level include with the same
// target, with or without a nested chain, or appends it.
func (b *Builder) register(spec *IncludeSpec) {
	for _, existing := range b.includes {
		if existing.Target == spec.Target {
			existing.merge(spec)
			return
		}
	}
	b.includes = append(b.includes, spec)
}

func (b *Builder) Skip(offset int) *Builder {
	if offset < 0 {
		offset = 0
	}
	b.offset = offset
	return b
}

// Take limits the number of rows; 0 removes the limit.
func (b *Builder) Take(limit int) *Builder {
	if limit < 0 {
		limit = 0
	}
	b.limit = limit
	return b
}

func (b *Builder) OrderBy(field string, direction string) *Builder {
	return b.OrderByRelation("", field, direction)
}

func (b *Builder) OrderByRelation(relation string, field string, direction string) *Builder {
	dir, err := normalizeDirection(direction)
	if err != nil {
		b.fail(err)
		return b
	}
	if field == "" {
		b.fail(types.InvalidArgument("order field must not be empty"))
		return b
	}
	b.orders = append(b.orders, Order{Relation: relation, Field: field, Direction: dir})
	return b
}

func normalizeDirection(direction string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", types.InvalidArgument("unknown order direction %q", direction)
}

func (b *Builder) GroupBy(columns ...string) *Builder {
	b.group = append(b.group, columns...)
	return b
}

// Select restricts the columns fetched for the root entity.
func (b *Builder) Select(columns ...string) *Builder {
	b.attributes = append([]string{}, columns...)
	return b
}

// WithScope applies a named scope registered with the engine.
func (b *Builder) WithScope(name string) *Builder {
	if name != "" {
		b.namedScopes = append(b.namedScopes, name)
	}
	return b
}

func (b *Builder) Conditions() []Condition  { return b.conditions }
func (b *Builder) Scopes() []ScopeQuery     { return b.scopes }
func (b *Builder) Includes() []*IncludeSpec { return b.includes }
func (b *Builder) Orders() []Order          { return b.orders }
func (b *Builder) Group() []string          { return b.group }
func (b *Builder) Attributes() []string     { return b.attributes }
func (b *Builder) NamedScopes() []string    { return b.namedScopes }
func (b *Builder) Offset() int              { return b.offset }
func (b *Builder) Limit() int               { return b.limit }

// Compile produces the filter tree. AND conditions always form one clause;
// any OR condition turns the result into an Or whose first branch is that
// clause. Scopes are merged afterwards in registration order: a scope joins
// the root list of its own combinator, otherwise it is ANDed with the root.
func (b *Builder) Compile() Expression {
	if len(b.conditions) == 0 && len(b.scopes) == 0 {
		return Expression{}
	}

	var ands, ors []Expression
	for _, c := range b.conditions {
		if c.Combinator == Or {
			ors = append(ors, c.expression())
		} else {
			ands = append(ands, c.expression())
		}
	}

	var root Expression
	if len(ors) > 0 {
		children := make([]Expression, 0, len(ors)+1)
		if len(ands) > 0 {
			children = append(children, AndOf(ands...))
		}
		root = OrOf(append(children, ors...)...)
	} else {
		root = AndOf(ands...)
	}

	for _, s := range b.scopes {
		if s.Tree.IsEmpty() {
			continue
		}
		want := KindAnd
		if s.Combinator == Or {
			want = KindOr
		}
		if root.Kind == want || root.Kind == KindAnd {
			root.Children = append(root.Children, s.Tree)
		} else {
			root = AndOf(root, s.Tree)
		}
	}
	return root
}

// Clone returns a deep copy of the builder state.
func (b *Builder) Clone() *Builder {
	out := &Builder{
		resolver:    b.resolver,
		conditions:  append([]Condition(nil), b.conditions...),
		scopes:      append([]ScopeQuery(nil), b.scopes...),
		orders:      append([]Order(nil), b.orders...),
		group:       append([]string(nil), b.group...),
		attributes:  append([]string(nil), b.attributes...),
		namedScopes: append([]string(nil), b.namedScopes...),
		offset:      b.offset,
		limit:       b.limit,
		err:         b.err,
	}
	for _, inc := range b.includes {
		out.includes = append(out.includes, inc.Clone())
	}
	return out
}

// Reset clears all accumulated state but keeps the resolver.
func (b *Builder) Reset() *Builder {
	*b = Builder{resolver: b.resolver}
	return b
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
