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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/lattice/types"
	"github.com/tomoncle/lattice/utils"
)

type post struct {
	ID int64
}

// fakeLinks records every association call in order.
type fakeLinks struct {
	current []interface{}
	calls   []string
	failOn  string
}

func (f *fakeLinks) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failOn != "" && f.failOn == call {
		return errors.New("boom: " + call)
	}
	return nil
}

func (f *fakeLinks) association(name string, c Cardinality) *Association[post] {
	return &Association[post]{
		Name:        name,
		Cardinality: c,
		Get: func(ctx context.Context, p *post) ([]Link, error) {
			links := make([]Link, 0, len(f.current))
			for _, id := range f.current {
				links = append(links, Link{ID: id})
			}
			return links, nil
		},
		Add: func(ctx context.Context, p *post, values []interface{}, extra interface{}) error {
			return f.record(fmt.Sprintf("add %v %v", values, extra))
		},
		Set: func(ctx context.Context, p *post, value interface{}, extra interface{}) error {
			return f.record(fmt.Sprintf("set %v %v", value, extra))
		},
		Remove: func(ctx context.Context, p *post, link Link) error {
			return f.record(fmt.Sprintf("remove %v", link.ID))
		},
	}
}

func newSync(t *testing.T, assocs ...*Association[post]) *Synchronizer[post] {
	t.Helper()
	reg, err := NewRegistry(assocs...)
	require.NoError(t, err)
	return NewSynchronizer(reg, utils.NopLogger{})
}

func TestSyncDiffsCollection(t *testing.T) {
	links := &fakeLinks{current: []interface{}{int64(1), int64(2), int64(3)}}
	s := newSync(t, links.association("tags", ManyToMany))

	err := s.Sync(context.Background(), &post{ID: 9}, "tags", []int{2, 3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"remove 1", "set [2 3 4] <nil>"}, links.calls)
}

func TestSyncFalsyIsNoop(t *testing.T) {
	links := &fakeLinks{current: []interface{}{1}}
	s := newSync(t, links.association("tags", ManyToMany))

	var nilSlice []int
	for _, v := range []interface{}{nil, nilSlice, 0, "", false} {
		require.NoError(t, s.Sync(context.Background(), &post{}, "tags", v, nil))
	}
	assert.Empty(t, links.calls)
}

func TestSyncEmptyListClears(t *testing.T) {
	links := &fakeLinks{current: []interface{}{1, 2}}
	s := newSync(t, links.association("tags", ManyToMany))

	require.NoError(t, s.Sync(context.Background(), &post{}, "tags", []int{}, nil))
	assert.Equal(t, []string{"remove 1", "remove 2", "set [] <nil>"}, links.calls)
}

func TestSyncPerItemExtra(t *testing.T) {
	links := &fakeLinks{current: []interface{}{1, 5}}
	s := newSync(t, links.association("tags", ManyToMany))

	extra := []map[string]interface{}{{"weight": 1}, {"weight": 2}}
	require.NoError(t, s.Sync(context.Background(), &post{}, "tags", []int{1, 2}, extra))
	assert.Equal(t, []string{
		"remove 5",
		"set <nil> <nil>",
		"add [1] map[weight:1]",
		"add [2] map[weight:2]",
	}, links.calls)
}

func TestSyncUniformExtra(t *testing.T) {
	links := &fakeLinks{}
	s := newSync(t, links.association("tags", ManyToMany))

	require.NoError(t, s.Sync(context.Background(), &post{}, "tags", []int{7}, map[string]interface{}{"role": "x"}))
	assert.Equal(t, []string{"set [7] map[role:x]"}, links.calls)
}

func TestSyncExtraLengthMismatchFailsBeforeMutation(t *testing.T) {
	links := &fakeLinks{current: []interface{}{1}}
	s := newSync(t, links.association("tags", ManyToMany))

	err := s.Sync(context.Background(), &post{}, "tags", []int{2, 3}, []interface{}{"only-one"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Empty(t, links.calls)

	err = s.Sync(context.Background(), &post{}, "tags", 2, []interface{}{"x"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSyncToOneReplacesDirectly(t *testing.T) {
	links := &fakeLinks{current: []interface{}{99}}
	s := newSync(t, links.association("author", ManyToOne))

	require.NoError(t, s.Sync(context.Background(), &post{}, "author", 4, nil))
	assert.Equal(t, []string{"set 4 <nil>"}, links.calls)
}

func TestSyncCollectionWithScalarSkipsDiff(t *testing.T) {
	links := &fakeLinks{current: []interface{}{1, 2}}
	s := newSync(t, links.association("comments", OneToMany))

	require.NoError(t, s.Sync(context.Background(), &post{}, "comments", 3, nil))
	assert.Equal(t, []string{"set 3 <nil>"}, links.calls)
}

func TestSyncMixedIdentifierTypes(t *testing.T) {
	links := &fakeLinks{current: []interface{}{int64(1), "2"}}
	s := newSync(t, links.association("tags", ManyToMany))

	require.NoError(t, s.Sync(context.Background(), &post{}, "tags", []interface{}{1, float64(2)}, nil))
	assert.Equal(t, []string{"set [1 2] <nil>"}, links.calls)
}

func TestSyncPropagatesFailures(t *testing.T) {
	links := &fakeLinks{current: []interface{}{1, 2}, failOn: "remove 2"}
	s := newSync(t, links.association("tags", ManyToMany))

	err := s.Sync(context.Background(), &post{}, "tags", []int{3}, nil)
	require.Error(t, err)
	assert.Equal(t, "boom: remove 2", err.Error())
	// the first removal is not rolled back and nothing is added
	assert.Equal(t, []string{"remove 1", "remove 2"}, links.calls)
}

func TestSyncUnknownRelation(t *testing.T) {
	s := newSync(t)
	err := s.Sync(context.Background(), &post{}, "nope", []int{1}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestIdentityKey(t *testing.T) {
	n := 5
	var nilPtr *int
	assert.Equal(t, "5", IdentityKey(&n))
	assert.Equal(t, "5", IdentityKey(int64(5)))
	assert.Equal(t, "<nil>", IdentityKey(nil))
	assert.Equal(t, "<nil>", IdentityKey(nilPtr))
}
