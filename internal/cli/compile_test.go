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

package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompileText(t *testing.T) {
	out, err := runRoot(t, "compile",
		"--where", "kind=post",
		"--or", "title:like:%go%",
		"--with", "Posts,as:p,attributes:id:title,include:Comments",
		"--sort", "-created_at,author.name",
		"--skip", "10", "--take", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "filter:   Or(And(kind = post), title LIKE %go%)")
	assert.Contains(t, out, "include:  Posts as p [id title] -> Comments")
	assert.Contains(t, out, "order:    created_at DESC, author.name ASC")
	assert.Contains(t, out, "window:   offset=10 limit=5")
}

func TestCompileJSON(t *testing.T) {
	out, err := runRoot(t, "--format", "json", "compile",
		"--where", "views:>=:10",
		"--where", "id:in:1,2,3",
		"--group", "kind",
		"--select", "id,title")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "And(views >= 10, id IN [1 2 3])", resp.Data.Filter)
	assert.Equal(t, []string{"kind"}, resp.Data.Group)
	assert.Equal(t, []string{"id", "title"}, resp.Data.Select)
	assert.Empty(t, resp.Data.Includes)
}

func TestCompileEmpty(t *testing.T) {
	out, err := runRoot(t, "compile")
	require.NoError(t, err)
	assert.Equal(t, "filter:   {}\n", out)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		msg  string
	}{
		{"malformed condition", []string{"--where", "kind"}, "malformed condition"},
		{"unknown operator", []string{"--where", "views:~:1"}, "unknown operator"},
		{"empty sort field", []string{"--sort", "-"}, "order field must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runRoot(t, append([]string{"--format", "json", "compile"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, CodeInvalidQuery, resp.Error.Code)
			assert.Contains(t, resp.Error.Message, tt.msg)
		})
	}
}

func TestParseSort(t *testing.T) {
	rel, name, dir := parseSort("+author.name")
	assert.Equal(t, "author", rel)
	assert.Equal(t, "name", name)
	assert.Equal(t, "ASC", dir)

	rel, name, dir = parseSort("-id")
	assert.Empty(t, rel)
	assert.Equal(t, "id", name)
	assert.Equal(t, "DESC", dir)
}
