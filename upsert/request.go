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

package upsert

import (
	"sort"

	"github.com/tomoncle/lattice/relation"
	"github.com/tomoncle/lattice/storage"
	"github.com/tomoncle/lattice/types"
)

// Request is one upsert item.
//
// Identity selects the row to update; nil identity values are ignored.
// Scalars are written as columns. Relations map association names to their
// desired value and RelationExtras carry the optional link payload per
// relation.
type Request struct {
	Identity       storage.Attributes
	Scalars        storage.Attributes
	Relations      map[string]interface{}
	RelationExtras map[string]interface{}
}

// IsEmpty reports whether the request carries nothing to write.
func (r Request) IsEmpty() bool {
	return len(r.Identity) == 0 && len(r.Scalars) == 0 && len(r.Relations) == 0
}

type plan struct {
	identity  storage.Attributes
	scalars   storage.Attributes
	relations map[string]interface{}
	extras    map[string]interface{}
	order     []string
}

// split routes every key of r against the declared associations. Falsy
// identity values are dropped. Scalar keys
// naming an association move to relations; an explicit relation entry wins
// over a scalar one with the same name.
func split[T any](r Request, registry *relation.Registry[T]) (*plan, error) {
	p := &plan{
		identity:  storage.Attributes{},
		scalars:   storage.Attributes{},
		relations: map[string]interface{}{},
		extras:    map[string]interface{}{},
	}
	for k, v := range r.Identity {
		if relation.IsFalsy(v) {
			continue
		}
		if registry.Has(k) {
			return nil, types.InvalidArgument("identity key %s names an association", k)
		}
		p.identity[k] = v
	}
	for k, v := range r.Scalars {
		if registry.Has(k) {
			p.relations[k] = v
			continue
		}
		p.scalars[k] = v
	}
	for k, v := range r.Relations {
		if !registry.Has(k) {
			return nil, types.InvalidArgument("%s is not a declared association", k)
		}
		p.relations[k] = v
	}
	for k, v := range r.RelationExtras {
		if !registry.Has(k) {
			return nil, types.InvalidArgument("extra data given for undeclared association %s", k)
		}
		p.extras[k] = v
	}
	for k := range p.relations {
		p.order = append(p.order, k)
	}
	sort.Strings(p.order)
	return p, nil
}

// creation is the attribute bag of a new row: scalars overlaid with identity.
func (p *plan) creation() storage.Attributes {
	attrs := make(storage.Attributes, len(p.scalars)+len(p.identity))
	for k, v := range p.scalars {
		attrs[k] = v
	}
	for k, v := range p.identity {
		attrs[k] = v
	}
	return attrs
}
