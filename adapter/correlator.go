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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/utils/str"
)

// Result 动作响应结果
type Result struct {
	Data interface{}
	Err  error
}

type pendingAction struct {
	action string
	// 1 缓冲，保证 resolve 永不阻塞
	ch    chan Result
	timer *time.Timer
}

// Correlator tracks in-flight actions keyed by their echo token. An entry is
// removed exactly once, either by a matching response or by its timeout,
// whichever fires first; the loser finds no entry and is a no-op.
//
// Correlator 以 echo 标识跟踪在途动作，保证恰好一次完成。
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingAction
}

// NewCorrelator 创建关联器
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]*pendingAction)}
}

// NewEcho 生成一个新的 echo 标识；随机源不可用时退回伪随机串
func NewEcho() string {
	id, err := uuid.NewV4()
	if err != nil {
		return str.RandomStr(32)
	}
	return id.String()
}

// Register adds a pending entry for echo with the given timeout and returns
// the channel the eventual Result arrives on. The entry is inserted before
// the timer is armed; complete() takes the same lock, so even an immediately
// firing timeout finds the entry.
func (c *Correlator) Register(action, echo string, timeout time.Duration) <-chan Result {
	p := &pendingAction{action: action, ch: make(chan Result, 1)}
	c.mu.Lock()
	c.pending[echo] = p
	p.timer = time.AfterFunc(timeout, func() {
		c.complete(echo, Result{Err: fmt.Errorf("action [%s] with echo [%s]: %w", action, echo, types.ErrActionTimeout)})
	})
	c.mu.Unlock()
	return p.ch
}

// Resolve completes the pending action with the response data. A response
// for an unknown or already-completed echo is ignored.
func (c *Correlator) Resolve(echo string, data interface{}) bool {
	return c.complete(echo, Result{Data: data})
}

// Fail completes the pending action with the peer-supplied error. An
// ActionError without an action name gets it from the pending entry, so the
// caller sees which action the peer rejected.
func (c *Correlator) Fail(echo string, err error) bool {
	return c.complete(echo, Result{Err: err})
}

// Has 是否存在指定 echo 的在途动作
func (c *Correlator) Has(echo string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[echo]
	return ok
}

// Len 在途动作数量
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// complete 取出并完成等待者；map 删除发生在锁内，保证恰好一次
func (c *Correlator) complete(echo string, result Result) bool {
	c.mu.Lock()
	p, ok := c.pending[echo]
	if ok {
		delete(c.pending, echo)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.timer.Stop()
	var actionErr *types.ActionError
	if errors.As(result.Err, &actionErr) && actionErr.Action == "" {
		actionErr.Action = p.action
	}
	p.ch <- result
	return true
}
