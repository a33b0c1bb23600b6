/*
 * Copyright 2024 The SparkBridge Authors.
 *
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

package json

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDoesNotEscapeHTML(t *testing.T) {
	data, err := Marshal(map[string]string{"msg": "a&b <c>"})
	require.NoError(t, err)
	assert.Equal(t, `{"msg":"a&b <c>"}`, string(data))
}

func TestMarshalTrimsTrailingNewline(t *testing.T) {
	data, err := Marshal("x")
	require.NoError(t, err)
	assert.Equal(t, `"x"`, string(data))
}

func TestMarshalIndent(t *testing.T) {
	data, err := MarshalIndent(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(data))
}
