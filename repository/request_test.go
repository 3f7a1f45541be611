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

package repository

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomoncle/lattice/query"
	"github.com/tomoncle/lattice/types"
)

func TestApplyOrderFromRequest(t *testing.T) {
	e := newFakeEngine(t)
	var custom []string
	params := QueryParams(url.Values{"sort": {"name,-created_at,+id,secret,,-"}})
	r := newRepo(e, WithParams[item](params)).ApplyOrderFromRequest(
		[]string{"name", "created_at", "id"},
		map[string]OrderHandler{"id": func(direction string) { custom = append(custom, "id "+direction) }},
	)
	_, err := r.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []query.Order{
		{Field: "name", Direction: query.Asc},
		{Field: "created_at", Direction: query.Desc},
	}, e.lastQuery().Orders)
	assert.Equal(t, []string{"id ASC"}, custom)
}

func TestApplyOrderFromRequestWithoutAllowlist(t *testing.T) {
	e := newFakeEngine(t)
	r := newRepo(e, WithParams[item](MapParams{"sort": "-score"})).ApplyOrderFromRequest(nil, nil)
	_, err := r.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []query.Order{{Field: "score", Direction: query.Desc}}, e.lastQuery().Orders)
}

func TestApplyOrderFromRequestIgnoresMissingSort(t *testing.T) {
	e := newFakeEngine(t)
	r := newRepo(e, WithParams[item](MapParams{"sort": ""})).ApplyOrderFromRequest(nil, nil)
	_, err := r.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, e.lastQuery().Orders)
}

func TestApplySearchFromRequest(t *testing.T) {
	e := newFakeEngine(t)
	params := QueryParams(url.Values{"search": {"go"}})
	r := newRepo(e, WithParams[item](params)).
		Where("kind", "post").
		ApplySearchFromRequest([]string{"title", "body"}, "")
	_, err := r.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "And(kind = post, Or(title LIKE %go%, body LIKE %go%))", e.lastQuery().Filter.String())
}

func TestApplySearchFromRequestCustomMatch(t *testing.T) {
	e := newFakeEngine(t)
	r := newRepo(e, WithParams[item](MapParams{"search": "go"})).ApplySearchFromRequest([]string{"title"}, "go%")
	_, err := r.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "And(Or(title LIKE go%))", e.lastQuery().Filter.String())

	e = newFakeEngine(t)
	r = newRepo(e, WithParams[item](MapParams{"search": "  "})).ApplySearchFromRequest([]string{"title"}, "")
	_, err = r.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, e.lastQuery().Filter.IsEmpty())
}

func TestApplyConstraintsFromRequest(t *testing.T) {
	cases := []struct {
		name   string
		params Params
	}{
		{"json", QueryParams(url.Values{"constraints": {`{"status":"open","owner":"me"}`}})},
		{"mapping", MapParams{"constraints": map[string]interface{}{"status": "open", "owner": "me"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newFakeEngine(t)
			var owners []interface{}
			r := newRepo(e, WithParams[item](tc.params)).ApplyConstraintsFromRequest(map[string]ConstraintHandler{
				"owner": func(v interface{}) { owners = append(owners, v) },
			})
			_, err := r.Get(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "And(status = open)", e.lastQuery().Filter.String())
			assert.Equal(t, []interface{}{"me"}, owners)
		})
	}
}

func TestApplyConstraintsFromRequestMalformed(t *testing.T) {
	e := newFakeEngine(t)
	r := newRepo(e, WithParams[item](MapParams{"constraints": "{not json"})).ApplyConstraintsFromRequest(nil)
	_, err := r.Get(context.Background())
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	assert.Empty(t, e.queries)

	e = newFakeEngine(t)
	r = newRepo(e, WithParams[item](MapParams{"constraints": ""})).ApplyConstraintsFromRequest(nil)
	_, err = r.Get(context.Background())
	require.NoError(t, err)
}

func TestQueryParams(t *testing.T) {
	p := QueryParams(url.Values{"page": {"2", "3"}, "empty": {}})
	assert.True(t, p.Has("page"))
	assert.True(t, p.Has("empty"))
	assert.False(t, p.Has("per_page"))
	assert.Equal(t, "2", p.Get("page"))
	assert.Equal(t, "", p.Get("empty"))
}
