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

import "time"

// 缺省重连参数
const (
	DefaultBackoffInitial = time.Second
	DefaultBackoffMax     = 60 * time.Second
)

// Backoff computes the delay before the next reconnect attempt. The delay
// doubles on every consecutive failure up to Max and resets to Initial after
// a successful connection. State is per adapter instance; no globals.
//
// Backoff 重连退避策略，每个适配器实例独立。
type Backoff struct {
	// 首次重试延迟
	Initial time.Duration
	// 延迟上限
	Max time.Duration

	next time.Duration
}

// NewBackoff 创建缺省参数的退避策略
func NewBackoff() *Backoff {
	return &Backoff{Initial: DefaultBackoffInitial, Max: DefaultBackoffMax}
}

// Next returns the delay for the upcoming attempt and advances the state.
func (b *Backoff) Next() time.Duration {
	if b.Initial <= 0 {
		b.Initial = DefaultBackoffInitial
	}
	if b.Max <= 0 {
		b.Max = DefaultBackoffMax
	}
	if b.next <= 0 {
		b.next = b.Initial
	}
	delay := b.next
	if delay > b.Max {
		delay = b.Max
		b.next = b.Max
	} else {
		b.next = delay * 2
	}
	return delay
}

// Reset 连接成功后调用，下一次失败从 Initial 重新开始
func (b *Backoff) Reset() {
	b.next = 0
}
