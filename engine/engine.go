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

// Package engine implements the rule engine: rule indexing, condition
// evaluation, action execution, cron scheduling and variable persistence.
//
// Package engine 实现规则引擎。规则按事件类型索引，事件到达时依次评估
// 条件并执行动作；变量变更通过脏标记触发整体持久化。
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"

	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/store"
)

// ErrNoAdapter Initialize 未提供适配器
var ErrNoAdapter = errors.New("chat adapter is required for engine initialization")

// ErrNotInitialized Reload 先于 Initialize 被调用
var ErrNotInitialized = errors.New("engine is not initialized")

// engineState is the immutable snapshot published to dispatches: rule index
// plus variable table. Reload replaces the whole snapshot in one atomic step
// so a dispatch never observes a mix of old rules and new variables.
type engineState struct {
	rules        []*types.Rule
	rulesByEvent map[string][]*types.Rule
	variables    map[string]string
}

func newEngineState(data *types.RuleData) *engineState {
	state := &engineState{
		rules:        data.Rules,
		rulesByEvent: make(map[string][]*types.Rule),
		variables:    make(map[string]string, len(data.Variables)),
	}
	// 规则按加载顺序入索引，评估顺序即加载顺序
	for _, rule := range data.Rules {
		state.rulesByEvent[rule.EventType] = append(state.rulesByEvent[rule.EventType], rule)
	}
	for _, variable := range data.Variables {
		state.variables[variable.Key] = variable.Value
	}
	return state
}

// Engine orchestrates the rule index, the condition evaluator, the action
// executor, the scheduler and the store. HandleEvent is safe under
// concurrent invocation from multiple adapters and scheduler ticks.
//
// Engine 规则引擎，协调索引、求值、执行、调度和持久化。
type Engine struct {
	logger      types.Logger
	store       *store.Store
	chatAdapter types.ChatAdapter

	// 当前快照，读取无锁
	state atomic.Value // *engineState
	// 串行化 reload 与变量写回的快照替换
	mu        sync.Mutex
	scheduler *Scheduler

	initialized bool
}

// New 创建规则引擎
func New(s *store.Store, logger types.Logger) *Engine {
	if logger == nil {
		logger = types.DefaultLogger()
	}
	return &Engine{
		logger: types.ModuleLogger("engine", logger),
		store:  s,
	}
}

// Initialize loads the persisted rule set, indexes it, registers scheduled
// tasks and subscribes the engine to every adapter event. Must be called
// once before events arrive.
func (e *Engine) Initialize(chatAdapter types.ChatAdapter) error {
	if chatAdapter == nil {
		return ErrNoAdapter
	}
	e.chatAdapter = chatAdapter

	data, err := e.store.Load()
	if err != nil {
		return err
	}
	state := newEngineState(data)
	e.state.Store(state)

	e.scheduler = NewScheduler(e.logger)
	e.scheduler.Register(state.rules, e)
	e.scheduler.Start()

	chatAdapter.On(types.EventWildcard, func(event types.Event) {
		e.HandleEvent(event.Name, event)
	})

	e.mu.Lock()
	e.initialized = true
	e.mu.Unlock()
	e.logger.Printf("rule engine started with %d rules", len(state.rules))
	return nil
}

// Reload atomically replaces the rule index and variable table from the
// store. Old scheduled jobs are cancelled before the new ones register. A
// load failure propagates to the caller and leaves the running state
// untouched.
func (e *Engine) Reload() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}

	data, err := e.store.Load()
	if err != nil {
		return err
	}
	state := newEngineState(data)

	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	scheduler := NewScheduler(e.logger)
	scheduler.Register(state.rules, e)

	e.state.Store(state)
	e.scheduler = scheduler
	scheduler.Start()

	e.logger.Printf("rule engine reloaded with %d rules", len(state.rules))
	return nil
}

// Shutdown 停止调度器
func (e *Engine) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
}

// Rules 当前规则快照
func (e *Engine) Rules() []*types.Rule {
	return e.currentState().rules
}

// Variables 当前变量表的拷贝
func (e *Engine) Variables() map[string]string {
	return copyVariables(e.currentState().variables)
}

func (e *Engine) currentState() *engineState {
	state, _ := e.state.Load().(*engineState)
	if state == nil {
		return &engineState{rulesByEvent: map[string][]*types.Rule{}, variables: map[string]string{}}
	}
	return state
}

func copyVariables(variables map[string]string) map[string]string {
	cp := make(map[string]string, len(variables))
	for k, v := range variables {
		cp[k] = v
	}
	return cp
}

// HandleEvent dispatches one event against the candidate rules: the indexed
// list for ordinary events, or the single embedded rule for the reserved
// scheduled_task event. All matching rules run; within a rule conditions
// short-circuit and actions run fully in order.
//
// The snapshot is captured exactly once at entry: rules and variables for the
// whole dispatch come from the same engineState, so a reload landing
// mid-dispatch never pairs old rules with new variables.
//
// Variable write-back is last-writer-wins: each dispatch mutates its private
// copy of the snapshot's table and replaces the live table wholesale, so of
// two concurrent dispatches the later commit silently discards the other's
// changes. This mirrors the long-standing behavior and is intentionally not
// serialized.
func (e *Engine) HandleEvent(eventType string, event types.Event) {
	state := e.currentState()

	var rulesToProcess []*types.Rule
	if eventType == types.EventScheduledTask {
		if event.Rule == nil {
			return
		}
		rulesToProcess = []*types.Rule{event.Rule}
	} else {
		rulesToProcess = state.rulesByEvent[eventType]
	}

	for _, rule := range rulesToProcess {
		dc := &DispatchContext{
			Event:     event,
			Variables: copyVariables(state.variables),
		}

		if !EvaluateConditions(rule.Conditions, dc) {
			continue
		}

		ExecuteActions(context.Background(), rule.Actions, dc, e.chatAdapter, e.logger)

		if dc.Dirty {
			e.commitVariables(dc.Variables)
		}
	}
}

// commitVariables publishes the dispatch's variable copy as the live table
// and persists the full rule+variable snapshot.
func (e *Engine) commitVariables(variables map[string]string) {
	e.mu.Lock()
	current := e.currentState()
	state := &engineState{
		rules:        current.rules,
		rulesByEvent: current.rulesByEvent,
		variables:    variables,
	}
	e.state.Store(state)
	e.mu.Unlock()

	entries := make([]types.Variable, 0, len(variables))
	for key, value := range variables {
		id, _ := uuid.NewV4()
		entries = append(entries, types.Variable{ID: id.String(), Key: key, Value: value})
	}
	if err := e.store.Save(&types.RuleData{Rules: state.rules, Variables: entries}); err != nil {
		// 内存状态仍然有效，等待下一次成功写入
		e.logger.Printf("persist variables failed: %v", err)
		return
	}
	e.logger.Printf("variable state updated and saved")
}
