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

// Package adapter provides the building blocks shared by both protocol
// generations: the interceptor-capable event emitter, the action correlator,
// the reconnect backoff policy and the transport registry.
//
// Package adapter 提供两代协议适配器共用的构件。
package adapter

import (
	"sync"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// Emitter fans events out to subscribers after running the registered
// interceptors. Interceptors run in registration order; the first one
// returning false suppresses the current emission. Subscribers for the same
// event name are invoked in subscription order. One Emitter instance serves
// exactly one adapter; both generations share this implementation.
//
// Emitter 带拦截器的事件分发器。
type Emitter struct {
	sync.RWMutex
	handlers     map[string][]types.EventHandler
	interceptors map[string][]types.Interceptor
	// 事件按到达顺序在单个 goroutine 中分发，避免处理器重入
	queue chan types.Event
	done  chan struct{}
	once  sync.Once
}

// NewEmitter 创建一个事件分发器并启动分发循环
func NewEmitter() *Emitter {
	e := &Emitter{
		handlers:     make(map[string][]types.EventHandler),
		interceptors: make(map[string][]types.Interceptor),
		queue:        make(chan types.Event, 256),
		done:         make(chan struct{}),
	}
	go e.dispatchLoop()
	return e
}

// On 订阅事件，types.EventWildcard 订阅所有事件
func (e *Emitter) On(eventName string, handler types.EventHandler) {
	if handler == nil {
		return
	}
	e.Lock()
	defer e.Unlock()
	e.handlers[eventName] = append(e.handlers[eventName], handler)
}

// AddInterceptor 注册拦截器，返回 false 时本次事件不再投递
func (e *Emitter) AddInterceptor(eventName string, interceptor types.Interceptor) {
	if interceptor == nil {
		return
	}
	e.Lock()
	defer e.Unlock()
	e.interceptors[eventName] = append(e.interceptors[eventName], interceptor)
}

// Emit enqueues the event for dispatch. Events from one socket keep their
// arrival order; handlers never overlap for the same Emitter, so a handler
// is free to block on SendAction without stalling the transport read loop.
func (e *Emitter) Emit(event types.Event) {
	select {
	case <-e.done:
	case e.queue <- event:
	}
}

// Close 停止分发循环，队列中未投递的事件被丢弃
func (e *Emitter) Close() {
	e.once.Do(func() { close(e.done) })
}

func (e *Emitter) dispatchLoop() {
	for {
		select {
		case <-e.done:
			return
		case event := <-e.queue:
			e.dispatch(event)
		}
	}
}

func (e *Emitter) dispatch(event types.Event) {
	e.RLock()
	gates := append([]types.Interceptor{}, e.interceptors[event.Name]...)
	handlers := append([]types.EventHandler{}, e.handlers[event.Name]...)
	handlers = append(handlers, e.handlers[types.EventWildcard]...)
	e.RUnlock()

	for _, gate := range gates {
		if !gate(event) {
			return
		}
	}
	for _, handler := range handlers {
		handler(event)
	}
}
