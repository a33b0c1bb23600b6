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
	"context"

	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/utils/json"
)

// Sender 由传输绑定实现，把一帧原始数据写到连接上
type Sender func(data []byte) error

// Base carries the state every generation adapter shares: the event emitter,
// the action correlator and the outbound frame path. The generation packages
// embed it and add frame classification plus their high-level actions.
//
// Base 两代适配器共用的基础实现。
type Base struct {
	Logger      types.Logger
	Config      types.Config
	AccessToken string

	emitter    *Emitter
	correlator *Correlator
	sender     Sender
}

// NewBase 创建基础适配器
func NewBase(module string, accessToken string, config types.Config) *Base {
	if config.Logger == nil {
		config.Logger = types.DefaultLogger()
	}
	if config.ActionTimeout <= 0 {
		config.ActionTimeout = types.DefaultActionTimeout
	}
	return &Base{
		Logger:      types.ModuleLogger(module, config.Logger),
		Config:      config,
		AccessToken: accessToken,
		emitter:     NewEmitter(),
		correlator:  NewCorrelator(),
	}
}

// SetSender 传输绑定建立后注入发送函数
func (b *Base) SetSender(sender Sender) {
	b.sender = sender
}

// Correlator 动作关联器
func (b *Base) Correlator() *Correlator {
	return b.correlator
}

// On 订阅事件
func (b *Base) On(eventName string, handler types.EventHandler) {
	b.emitter.On(eventName, handler)
}

// AddInterceptor 注册拦截器
func (b *Base) AddInterceptor(eventName string, interceptor types.Interceptor) {
	b.emitter.AddInterceptor(eventName, interceptor)
}

// Emit 分发一个归一化事件
func (b *Base) Emit(event types.Event) {
	b.emitter.Emit(event)
}

// CloseEmitter 停止事件分发
func (b *Base) CloseEmitter() {
	b.emitter.Close()
}

// Send writes a raw frame. With no live connection the frame is logged and
// dropped instead of erroring; a caller waiting inside SendAction will time
// out instead.
func (b *Base) Send(data []byte) {
	if b.sender == nil {
		b.Logger.Printf("cannot send, no live connection: %s", data)
		return
	}
	if err := b.sender(data); err != nil {
		b.Logger.Printf("send failed: %v", err)
	}
}

// SendAction serializes {action, params, echo}, registers a pending entry
// and blocks until the matching response, the per-action timeout or ctx
// cancellation. On success only the response's data payload is returned.
func (b *Base) SendAction(ctx context.Context, action string, params map[string]interface{}, opts ...types.ActionOption) (interface{}, error) {
	options := types.ActionOptions{Timeout: b.Config.ActionTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Echo == "" {
		options.Echo = NewEcho()
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	frame := map[string]interface{}{
		"action": action,
		"params": params,
		"echo":   options.Echo,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}

	ch := b.correlator.Register(action, options.Echo, options.Timeout)
	b.Send(data)

	select {
	case result := <-ch:
		return result.Data, result.Err
	case <-ctx.Done():
		// 调用方放弃等待，迟到的响应由关联器静默丢弃
		b.correlator.Fail(options.Echo, ctx.Err())
		return nil, ctx.Err()
	}
}
