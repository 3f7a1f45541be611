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
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JsonObject is a free-form attribute mapping. It doubles as a JSON column type
// and as the decoded form of JSON-encoded request parameters.
type JsonObject map[string]interface{}

// DecodeJsonObject decodes raw into a JsonObject. Accepted inputs are a JSON string,
// a byte slice or an already decoded map.
func DecodeJsonObject(raw interface{}) (JsonObject, error) {
	switch v := raw.(type) {
	case nil:
		return JsonObject{}, nil
	case JsonObject:
		return v, nil
	case map[string]interface{}:
		return JsonObject(v), nil
	case string:
		return unmarshalObject([]byte(v))
	case []byte:
		return unmarshalObject(v)
	default:
		return nil, InvalidArgument("cannot decode %T as a json object", raw)
	}
}

func unmarshalObject(b []byte) (JsonObject, error) {
	obj := JsonObject{}
	if len(b) == 0 {
		return obj, nil
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, WrapInvalidArgument(err, "malformed json object")
	}
	return obj, nil
}

// Value implements driver.Valuer for JsonObject.
func (j JsonObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for JsonObject.
func (j *JsonObject) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = make(JsonObject)
		return nil
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JsonObject", value)
	}
}
