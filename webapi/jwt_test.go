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

package webapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyToken(t *testing.T) {
	token, err := issueToken("secret", "admin", time.Hour)
	require.NoError(t, err)

	username, err := verifyToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "admin", username)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	token, err := issueToken("secret", "admin", time.Hour)
	require.NoError(t, err)

	_, err = verifyToken("other", token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyTokenExpired(t *testing.T) {
	token, err := issueToken("secret", "admin", -time.Minute)
	require.NoError(t, err)

	_, err = verifyToken("secret", token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTokenMalformed(t *testing.T) {
	for _, token := range []string{"", "abc", "a.b", "a.b.c.d", "!.!.!"} {
		_, err := verifyToken("secret", token)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", token)
	}
}
