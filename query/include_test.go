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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncludeFull(t *testing.T) {
	spec, ok := ParseInclude(nil, "Posts", "as:p", "attributes:title:body", "include:Comments:as:cs")
	require.True(t, ok)

	want := &IncludeSpec{
		Target:     "Posts",
		Alias:      "p",
		Attributes: []string{"title", "body"},
		Nested:     &IncludeSpec{Target: "Comments", Alias: "cs"},
	}
	assert.Equal(t, want, spec)
	assert.Equal(t, "p", spec.Name())
	assert.Equal(t, 2, spec.Depth())
}

func TestParseIncludeChainOrder(t *testing.T) {
	spec, ok := ParseInclude(nil, "A", "include:B", "include:C", "include:D:as:d")
	require.True(t, ok)

	require.NotNil(t, spec.Nested)
	assert.Equal(t, "B", spec.Nested.Target)
	require.NotNil(t, spec.Nested.Nested)
	assert.Equal(t, "C", spec.Nested.Nested.Target)
	require.NotNil(t, spec.Nested.Nested.Nested)
	assert.Equal(t, "D", spec.Nested.Nested.Nested.Target)
	assert.Equal(t, "d", spec.Nested.Nested.Nested.Alias)
	assert.Nil(t, spec.Nested.Nested.Nested.Nested)
	assert.Equal(t, "A -> B -> C -> D as d", spec.String())
}

func TestParseIncludeResolver(t *testing.T) {
	r := MapResolver{"posts": "Post", "comments": "Comment"}
	spec, ok := ParseInclude(r, "posts", "include:comments", "include:unknown")
	require.True(t, ok)
	assert.Equal(t, "Post", spec.Target)
	assert.Equal(t, "Comment", spec.Nested.Target)
	assert.Equal(t, "unknown", spec.Nested.Nested.Target)

	fn := ResolverFunc(func(name string) (string, bool) { return "", false })
	spec, ok = ParseInclude(fn, "tags")
	require.True(t, ok)
	assert.Equal(t, "tags", spec.Target)
}

func TestParseIncludeSkipsEmptyAndUnknown(t *testing.T) {
	spec, ok := ParseInclude(nil, "Posts", "", "bogus:1", "include", "include:", "as", "attributes")
	require.True(t, ok)
	assert.Equal(t, &IncludeSpec{Target: "Posts", Attributes: []string{}}, spec)

	_, ok = ParseInclude(nil, "", "as:x")
	assert.False(t, ok)
	_, ok = ParseInclude(nil, "   ")
	assert.False(t, ok)
}

func TestWithMergesSameTarget(t *testing.T) {
	b := NewBuilder().
		With("Posts", "as:p").
		With("Posts", "include:Comments").
		With("Tags")

	require.Len(t, b.Includes(), 2)
	posts := b.Includes()[0]
	assert.Equal(t, "Posts", posts.Target)
	assert.Equal(t, "p", posts.Alias)
	require.NotNil(t, posts.Nested)
	assert.Equal(t, "Comments", posts.Nested.Target)
	assert.Equal(t, "Tags", b.Includes()[1].Target)
}

func TestWithMergesSameTargetWithoutNested(t *testing.T) {
	b := NewBuilder().
		With("Posts", "as:p").
		With("Posts", "attributes:id:title")

	require.Len(t, b.Includes(), 1)
	posts := b.Includes()[0]
	assert.Equal(t, "p", posts.Alias)
	assert.Equal(t, []string{"id", "title"}, posts.Attributes)
	assert.Nil(t, posts.Nested)
}

func TestWithEmptyTargetIgnored(t *testing.T) {
	b := NewBuilder().With("").WithList(nil).WithList([]string{""})
	assert.Empty(t, b.Includes())
	assert.NoError(t, b.Err())
}

func TestWithList(t *testing.T) {
	b := NewBuilder().WithList([]string{"Posts", "attributes:id", "include:Author"})
	require.Len(t, b.Includes(), 1)
	assert.Equal(t, []string{"id"}, b.Includes()[0].Attributes)
	assert.Equal(t, "Author", b.Includes()[0].Nested.Target)
}

func TestWhereHasRegistersFilteredInclude(t *testing.T) {
	b := NewBuilder().
		SetResolver(MapResolver{"posts": "Posts"}).
		WhereHas("posts", func(q *Builder) { q.Where("published", true) })

	require.Len(t, b.Includes(), 1)
	inc := b.Includes()[0]
	assert.Equal(t, "Posts", inc.Target)
	require.NotNil(t, inc.Filter)
	assert.Equal(t, AndOf(Eq("published", true)), *inc.Filter)
	assert.True(t, b.Compile().IsEmpty())
}

func TestWithMergesOntoWhereHas(t *testing.T) {
	b := NewBuilder().
		WhereHas("Posts", func(q *Builder) { q.Where("published", true) }).
		With("Posts", "include:Comments")

	require.Len(t, b.Includes(), 1)
	inc := b.Includes()[0]
	require.NotNil(t, inc.Filter)
	require.NotNil(t, inc.Nested)
	assert.Equal(t, "Comments", inc.Nested.Target)
}

func TestWhereHasTwiceCombinesFilters(t *testing.T) {
	b := NewBuilder().
		WhereHas("Posts", func(q *Builder) { q.Where("a", 1) }).
		WhereHas("Posts", func(q *Builder) { q.Where("b", 2) })

	require.Len(t, b.Includes(), 1)
	assert.Equal(t, "And(And(a = 1), And(b = 2))", b.Includes()[0].Filter.String())
}

func TestIncludeThroughWhere(t *testing.T) {
	b := NewBuilder().IncludeThroughWhere("Tags", func(q *Builder) { q.Where("weight", ">", 3) })
	require.Len(t, b.Includes(), 1)
	inc := b.Includes()[0]
	assert.Nil(t, inc.Filter)
	require.NotNil(t, inc.Through)
	assert.Equal(t, "Tags through And(weight > 3)", inc.String())
}

func TestWhereHasPropagatesErrors(t *testing.T) {
	b := NewBuilder().WhereHas("Posts", func(q *Builder) { q.Where() })
	assert.Error(t, b.Err())
	assert.Empty(t, b.Includes())

	b = NewBuilder().WhereHas("Posts", nil)
	assert.Error(t, b.Err())
}
