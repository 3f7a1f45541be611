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
)

// Directives recognised in include modifier tokens.
const (
	directiveAs         = "as"
	directiveAttributes = "attributes"
	directiveInclude    = "include"
	tokenSeparator      = ":"
)

// Resolver maps a relation name to the target handle understood by the engine.
type Resolver interface {
	Resolve(name string) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (string, bool)

func (f ResolverFunc) Resolve(name string) (string, bool) { return f(name) }

// MapResolver resolves names through a fixed table.
type MapResolver map[string]string

func (m MapResolver) Resolve(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func resolveTarget(r Resolver, name string) string {
	if r == nil {
		return name
	}
	if handle, ok := r.Resolve(name); ok && handle != "" {
		return handle
	}
	return name
}

// IncludeSpec is one eager-load directive. Nested forms a linear chain.
type IncludeSpec struct {
	Target     string
	Alias      string
	Attributes []string
	Nested     *IncludeSpec
	// Filter constrains the included records.
	Filter *Expression
	// Through constrains the link rows of a many-to-many include.
	Through *Expression
}

// Name is the relation name the engine loads: the alias when set, the target otherwise.
func (s *IncludeSpec) Name() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Target
}

// Depth counts the specs in the chain starting at s.
func (s *IncludeSpec) Depth() int {
	n := 0
	for cur := s; cur != nil; cur = cur.Nested {
		n++
	}
	return n
}

func (s *IncludeSpec) Clone() *IncludeSpec {
	if s == nil {
		return nil
	}
	out := *s
	if s.Attributes != nil {
		out.Attributes = append([]string{}, s.Attributes...)
	}
	out.Nested = s.Nested.Clone()
	return &out
}

// merge overwrites the fields other carries. Filters are combined with And.
func (s *IncludeSpec) merge(other *IncludeSpec) {
	if other.Alias != "" {
		s.Alias = other.Alias
	}
	if other.Attributes != nil {
		s.Attributes = other.Attributes
	}
	if other.Nested != nil {
		s.Nested = other.Nested
	}
	s.Filter = mergeFilter(s.Filter, other.Filter)
	s.Through = mergeFilter(s.Through, other.Through)
}

func mergeFilter(current, next *Expression) *Expression {
	if next == nil || next.IsEmpty() {
		return current
	}
	if current == nil || current.IsEmpty() {
		return next
	}
	combined := AndOf(*current, *next)
	return &combined
}

func (s *IncludeSpec) String() string {
	var b strings.Builder
	for cur := s; cur != nil; cur = cur.Nested {
		if cur != s {
			b.WriteString(" -> ")
		}
		b.WriteString(cur.Target)
		if cur.Alias != "" {
			b.WriteString(" as " + cur.Alias)
		}
		if cur.Attributes != nil {
			b.WriteString(" [" + strings.Join(cur.Attributes, " ") + "]")
		}
		if cur.Filter != nil {
			b.WriteString(" where " + cur.Filter.String())
		}
		if cur.Through != nil {
			b.WriteString(" through " + cur.Through.String())
		}
	}
	return b.String()
}

// ParseInclude builds an include tree from a target and modifier tokens such as
// "as:p", "attributes:title:body" and "include:Comments:as:cs". Include tokens
// chain in declaration order, the first one directly under the root. ok is false
// when target is empty.
func ParseInclude(r Resolver, target string, modifiers ...string) (spec *IncludeSpec, ok bool) {
	if strings.TrimSpace(target) == "" {
		return nil, false
	}
	root := &IncludeSpec{Target: resolveTarget(r, target)}

	var chain []*IncludeSpec
	for _, m := range modifiers {
		if m == "" {
			continue
		}
		parts := strings.Split(m, tokenSeparator)
		switch parts[0] {
		case directiveAs:
			if len(parts) > 1 && parts[1] != "" {
				root.Alias = parts[1]
			}
		case directiveAttributes:
			root.Attributes = append([]string{}, parts[1:]...)
		case directiveInclude:
			if len(parts) < 2 || parts[1] == "" {
				continue
			}
			child := &IncludeSpec{Target: resolveTarget(r, parts[1])}
			if len(parts) > 3 && parts[2] == directiveAs {
				child.Alias = parts[3]
			}
			chain = append(chain, child)
		}
	}

	// Fold from the innermost include outwards.
	var nested *IncludeSpec
	for i := len(chain) - 1; i >= 0; i-- {
		chain[i].Nested = nested
		nested = chain[i]
	}
	root.Nested = nested
	return root, true
}
