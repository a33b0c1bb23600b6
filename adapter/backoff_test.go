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

package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffMonotonicUpToCap(t *testing.T) {
	b := &Backoff{Initial: time.Second, Max: 10 * time.Second}

	var previous time.Duration
	for i := 0; i < 10; i++ {
		delay := b.Next()
		assert.GreaterOrEqual(t, delay, previous)
		assert.LessOrEqual(t, delay, 10*time.Second)
		previous = delay
	}
	// 封顶后保持不变
	assert.Equal(t, 10*time.Second, b.Next())
	assert.Equal(t, 10*time.Second, b.Next())
}

func TestBackoffResetOnSuccess(t *testing.T) {
	b := NewBackoff()
	b.Next()
	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, DefaultBackoffInitial, b.Next())
}

func TestBackoffIndependentInstances(t *testing.T) {
	a := NewBackoff()
	b := NewBackoff()
	a.Next()
	a.Next()
	// b 的状态不受 a 影响
	assert.Equal(t, DefaultBackoffInitial, b.Next())
}

func TestBackoffDefaults(t *testing.T) {
	var b Backoff
	assert.Equal(t, DefaultBackoffInitial, b.Next())
}
