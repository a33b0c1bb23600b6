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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// collect 收集事件直到数量满足或超时
func collect(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case v := <-ch:
			got = append(got, v)
		case <-timeout:
			t.Fatalf("timed out waiting for %d items, got %v", n, got)
		}
	}
	return got
}

func TestEmitterSubscriptionOrder(t *testing.T) {
	emitter := NewEmitter()
	defer emitter.Close()

	ch := make(chan string, 8)
	emitter.On("message.group", func(event types.Event) { ch <- "first" })
	emitter.On("message.group", func(event types.Event) { ch <- "second" })
	emitter.On("message.private", func(event types.Event) { ch <- "other" })

	emitter.Emit(types.Event{Name: "message.group"})

	assert.Equal(t, []string{"first", "second"}, collect(t, ch, 2))
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %s", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitterInterceptorStopsSingleEmission(t *testing.T) {
	emitter := NewEmitter()
	defer emitter.Close()

	ch := make(chan string, 8)
	var allow bool
	var mu sync.Mutex
	emitter.AddInterceptor("message.group", func(event types.Event) bool {
		mu.Lock()
		defer mu.Unlock()
		return allow
	})
	emitter.On("message.group", func(event types.Event) { ch <- event.UserID })

	emitter.Emit(types.Event{Name: "message.group", UserID: "blocked"})
	mu.Lock()
	allow = true
	mu.Unlock()
	emitter.Emit(types.Event{Name: "message.group", UserID: "passed"})

	assert.Equal(t, []string{"passed"}, collect(t, ch, 1))
}

func TestEmitterInterceptorOrder(t *testing.T) {
	emitter := NewEmitter()
	defer emitter.Close()

	ch := make(chan string, 8)
	emitter.AddInterceptor("e", func(event types.Event) bool {
		ch <- "gate1"
		return true
	})
	emitter.AddInterceptor("e", func(event types.Event) bool {
		ch <- "gate2"
		return false
	})
	// 第二个拦截器拒绝后不再执行
	emitter.AddInterceptor("e", func(event types.Event) bool {
		ch <- "gate3"
		return true
	})
	emitter.On("e", func(event types.Event) { ch <- "handler" })

	emitter.Emit(types.Event{Name: "e"})

	assert.Equal(t, []string{"gate1", "gate2"}, collect(t, ch, 2))
	select {
	case v := <-ch:
		t.Fatalf("unexpected delivery: %s", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitterWildcardReceivesEverything(t *testing.T) {
	emitter := NewEmitter()
	defer emitter.Close()

	ch := make(chan string, 8)
	emitter.On(types.EventWildcard, func(event types.Event) { ch <- event.Name })

	emitter.Emit(types.Event{Name: "message.group"})
	emitter.Emit(types.Event{Name: "notice.group_increase"})

	assert.Equal(t, []string{"message.group", "notice.group_increase"}, collect(t, ch, 2))
}

func TestEmitterDispatchKeepsArrivalOrder(t *testing.T) {
	emitter := NewEmitter()
	defer emitter.Close()

	ch := make(chan string, 64)
	emitter.On("e", func(event types.Event) { ch <- event.UserID })

	for i := 0; i < 10; i++ {
		emitter.Emit(types.Event{Name: "e", UserID: string(rune('a' + i))})
	}
	got := collect(t, ch, 10)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1] < got[i], "events out of order: %v", got)
	}
}
