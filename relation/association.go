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
	"sort"

	"github.com/tomoncle/lattice/types"
)

// Cardinality is the shape of a relation between two entities.
type Cardinality int

const (
	OneToOne Cardinality = iota
	OneToMany
	ManyToOne
	ManyToMany
)

var cardinalityEntries = []types.EnumEntry{
	{Name: "oneToOne", Desc: "has one"},
	{Name: "oneToMany", Desc: "has many"},
	{Name: "manyToOne", Desc: "belongs to"},
	{Name: "manyToMany", Desc: "belongs to many"},
}

var _ types.BaseEnum = OneToOne

func (c Cardinality) IsValid() bool {
	_, ok := types.LookupEnum(cardinalityEntries, int(c))
	return ok
}

func (c Cardinality) Number() int {
	if !c.IsValid() {
		return types.IllegalValue
	}
	return int(c)
}

func (c Cardinality) Name() string {
	e, _ := types.LookupEnum(cardinalityEntries, int(c))
	return e.Name
}

func (c Cardinality) Desc() string {
	e, _ := types.LookupEnum(cardinalityEntries, int(c))
	return e.Desc
}

func (c Cardinality) String() string { return c.Name() }

// IsCollection reports whether the owning side links to many records.
func (c Cardinality) IsCollection() bool {
	return c == OneToMany || c == ManyToMany
}

// Link is one record currently associated with an entity.
type Link struct {
	ID     interface{}
	Record interface{}
}

// Association is the capability bundle of one relation of T.
//
// Get lists the current links. Add links values, optionally carrying extra
// link data. Set replaces the association with value (a list for collection
// relations, nil to clear). Remove unlinks one record; it never has to delete
// the linked row itself.
type Association[T any] struct {
	Name        string
	Cardinality Cardinality
	// Target is the include handle for this relation; Name is used when empty.
	Target string

	Get    func(ctx context.Context, entity *T) ([]Link, error)
	Add    func(ctx context.Context, entity *T, values []interface{}, extra interface{}) error
	Set    func(ctx context.Context, entity *T, value interface{}, extra interface{}) error
	Remove func(ctx context.Context, entity *T, link Link) error
}

func (a *Association[T]) handle() string {
	if a.Target != "" {
		return a.Target
	}
	return a.Name
}

func (a *Association[T]) validate() error {
	if a == nil {
		return types.InvalidArgument("association must not be nil")
	}
	if a.Name == "" {
		return types.InvalidArgument("association name must not be empty")
	}
	if !a.Cardinality.IsValid() {
		return types.InvalidArgument("association %s has invalid cardinality %d", a.Name, int(a.Cardinality))
	}
	if a.Set == nil {
		return types.InvalidArgument("association %s has no setter", a.Name)
	}
	if a.Cardinality.IsCollection() && (a.Get == nil || a.Add == nil || a.Remove == nil) {
		return types.InvalidArgument("collection association %s needs accessor, adder and remover", a.Name)
	}
	return nil
}

// Registry holds the associations of T keyed by relation name.
type Registry[T any] struct {
	byName map[string]*Association[T]
}

// NewRegistry validates and indexes associations. Duplicate names are rejected.
func NewRegistry[T any](associations ...*Association[T]) (*Registry[T], error) {
	r := &Registry[T]{byName: make(map[string]*Association[T], len(associations))}
	for _, a := range associations {
		if err := a.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byName[a.Name]; dup {
			return nil, types.InvalidArgument("association %s declared twice", a.Name)
		}
		r.byName[a.Name] = a
	}
	return r, nil
}

func (r *Registry[T]) Lookup(name string) (*Association[T], bool) {
	if r == nil {
		return nil, false
	}
	a, ok := r.byName[name]
	return a, ok
}

// Has reports whether name is a declared association.
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the declared relation names in sorted order.
func (r *Registry[T]) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve maps a relation name to its include handle, so a Registry can serve
// as a query.Resolver.
func (r *Registry[T]) Resolve(name string) (string, bool) {
	a, ok := r.Lookup(name)
	if !ok {
		return "", false
	}
	return a.handle(), true
}

// Of returns the associations whose cardinality is c, sorted by name.
func (r *Registry[T]) Of(c Cardinality) []*Association[T] {
	var out []*Association[T]
	for _, n := range r.Names() {
		if a := r.byName[n]; a.Cardinality == c {
			out = append(out, a)
		}
	}
	return out
}
