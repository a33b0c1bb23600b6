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

// Package types defines the shared contracts between the protocol adapter
// layer, the rule engine and the admin API.
//
// Package types 定义协议适配器层、规则引擎和管理 API 之间的共享契约。
package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventScheduledTask 定时任务保留事件名，仅在调度器和规则引擎之间使用
const EventScheduledTask = "scheduled_task"

// EventBotOnline 机器人上线事件名
const EventBotOnline = "bot.online"

// EventWildcard 通配订阅名，匹配所有事件
const EventWildcard = "*"

// 消息来源类型
const (
	ChatKindPrivate = "private"
	ChatKindGroup   = "group"
)

// DefaultActionTimeout 动作响应默认超时时间
const DefaultActionTimeout = 10 * time.Second

// ErrActionTimeout is returned by SendAction when no response frame carrying
// the action's echo arrives before the deadline.
var ErrActionTimeout = errors.New("action timed out")

// ErrNotConnected 连接未建立
var ErrNotConnected = errors.New("websocket is not connected")

// ActionError carries the failure reported by the protocol peer for an
// action whose response status was not "ok".
type ActionError struct {
	Action string
	// 服务端返回的失败原因
	Reason string
	// 服务端返回的错误码
	Retcode int64
}

func (e *ActionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("action [%s] failed: retcode=%d", e.Action, e.Retcode)
	}
	return fmt.Sprintf("action [%s] failed: %s (retcode: %d)", e.Action, e.Reason, e.Retcode)
}

// Self 机器人身份。v11 只有 UserID，v12 带平台标识
type Self struct {
	Platform string `json:"platform,omitempty"`
	UserID   string `json:"user_id"`
}

// Event is a protocol event normalized across both OneBot generations.
// Name is the dot-joined event name ("message.group.normal"); the chat
// routing fields are extracted so the rule engine never touches the raw
// generation-specific payload.
//
// Event 是跨两代协议归一化后的事件。
type Event struct {
	// 归一化事件名
	Name string
	// 聊天来源类型：private/group，其它事件为空
	Kind string
	// 发送者
	UserID string
	// 群号，私聊为空
	GroupID string
	// 纯文本消息内容
	Message string
	// 机器人身份
	Self Self
	// 原始事件载荷
	Raw map[string]interface{}
	// 定时任务注入的规则，仅 scheduled_task 事件携带
	Rule *Rule
}

// Condition 规则条件，AND 组合
type Condition struct {
	// 事实类型：message_content/user_id/group_id
	Type string `json:"type"`
	// 操作符：equals/contains/matches_regex/equals_variable/expression
	Operator string `json:"operator"`
	// 字面值或变量名
	Value string `json:"value"`
}

// Action 规则动作
type Action struct {
	// 动作类型：reply_text/send_group_message/mute_user/set_variable
	Type string `json:"type"`
	// 动作值：回复内容、禁言分钟数、变量值
	Value string `json:"value,omitempty"`
	// send_group_message 的目标群
	TargetGroupID string `json:"targetGroupId,omitempty"`
	// set_variable 的变量名
	VariableName string `json:"variableName,omitempty"`
}

// Rule 自动化规则
type Rule struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	// 订阅的事件类型，scheduled_task 为保留类型
	EventType  string      `json:"eventType"`
	Conditions []Condition `json:"conditions,omitempty"`
	Actions    []Action    `json:"actions,omitempty"`
	// cron 表达式，仅 scheduled_task 规则使用
	Schedule string `json:"schedule,omitempty"`
}

// Variable 持久化的变量条目
type Variable struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// RuleData is the single persisted document: the full rule set plus the
// variable table.
type RuleData struct {
	Rules     []*Rule    `json:"rules"`
	Variables []Variable `json:"variables"`
}

// OutgoingMessage 适配器通用发送请求
type OutgoingMessage struct {
	// private 或 group
	Kind string
	// 私聊为用户 ID，群聊为群 ID
	TargetID string
	// 纯文本内容
	Content string
}

// EventHandler 事件订阅回调
type EventHandler func(event Event)

// Interceptor runs before subscribers; returning false suppresses the
// current emission only.
type Interceptor func(event Event) bool

// ActionOptions 单次动作调用的可选项
type ActionOptions struct {
	// 覆盖默认响应超时
	Timeout time.Duration
	// 覆盖自动生成的 echo，仅用于测试
	Echo string
}

// ActionOption 动作调用选项
type ActionOption func(*ActionOptions)

// WithTimeout 指定本次动作的响应超时
func WithTimeout(d time.Duration) ActionOption {
	return func(o *ActionOptions) { o.Timeout = d }
}

// WithEcho 指定本次动作的 echo 标识
func WithEcho(echo string) ActionOption {
	return func(o *ActionOptions) { o.Echo = echo }
}

// ChatAdapter is the surface the rule engine programs against. Both
// generation adapters (v11/v12) and both transport bindings (client/server)
// implement it.
//
// ChatAdapter 是规则引擎依赖的协议适配器接口。
type ChatAdapter interface {
	// Start 启动连接（客户端）或监听（服务端），只能调用一次
	Start() error
	// Stop 关闭底层连接并停止重连
	Stop() error
	// SendAction 发送动作并阻塞等待响应，返回响应的 data 载荷
	SendAction(ctx context.Context, action string, params map[string]interface{}, opts ...ActionOption) (interface{}, error)
	// SendMessage 发送一条文本消息到私聊或群聊
	SendMessage(ctx context.Context, msg OutgoingMessage) error
	// MuteGroupMember 禁言群成员，时长单位秒
	MuteGroupMember(ctx context.Context, groupID, userID string, durationSec int64) error
	// On 订阅事件，同名订阅按注册顺序全部触发；"*" 匹配所有事件
	On(eventName string, handler EventHandler)
	// AddInterceptor 注册拦截器，按注册顺序在订阅者之前执行
	AddInterceptor(eventName string, interceptor Interceptor)
}
