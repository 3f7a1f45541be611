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

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("loading: %w", NotFound("Resource"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, CodeNotFound, CodeOf(err))
	assert.EqualError(t, err, "loading: Resource not found")

	failed := OperationFailed(CodeCannotDelete, "can not delete resource")
	assert.ErrorIs(t, failed, ErrOperationFailed)
	assert.Equal(t, CodeCannotDelete, CodeOf(failed))

	assert.Equal(t, 0, CodeOf(errors.New("plain")))
	assert.Equal(t, 0, CodeOf(nil))
}

func TestWrapInvalidArgument(t *testing.T) {
	assert.NoError(t, WrapInvalidArgument(nil, "ignored"))

	cause := errors.New("unexpected token")
	err := WrapInvalidArgument(cause, "malformed json object")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "malformed json object: unexpected token")
}

func TestDecodeJsonObject(t *testing.T) {
	tests := []struct {
		name string
		raw  interface{}
		want JsonObject
		err  bool
	}{
		{"nil", nil, JsonObject{}, false},
		{"string", `{"status":"open"}`, JsonObject{"status": "open"}, false},
		{"bytes", []byte(`{"n":1}`), JsonObject{"n": float64(1)}, false},
		{"empty string", "", JsonObject{}, false},
		{"map", map[string]interface{}{"a": true}, JsonObject{"a": true}, false},
		{"malformed", `{"status":`, nil, true},
		{"unsupported", 42, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeJsonObject(tt.raw)
			if tt.err {
				assert.ErrorIs(t, err, ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJsonObjectColumn(t *testing.T) {
	v, err := JsonObject{"k": "v"}.Value()
	require.NoError(t, err)

	var back JsonObject
	require.NoError(t, back.Scan(v))
	assert.Equal(t, JsonObject{"k": "v"}, back)

	require.NoError(t, back.Scan(`{"x":2}`))
	assert.Equal(t, float64(2), back["x"])

	require.NoError(t, back.Scan(nil))
	assert.Empty(t, back)

	assert.Error(t, back.Scan(3.5))

	nilValue, err := JsonObject(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, nilValue)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(v.([]byte), &raw))
	assert.Equal(t, "v", raw["k"])
}
