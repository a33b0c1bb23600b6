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

// Package v12 implements the OneBot v12 protocol adapter.
//
// v12 事件名由 type、detail_type 和 sub_type 用 "." 连接得到，
// 例如 "message.group"。消息体是消息段数组而不是 CQ 字符串。
package v12

import (
	"context"
	"fmt"
	"sync"

	"github.com/sparkbridge/sparkbridge3/adapter"
	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/segment"
	"github.com/sparkbridge/sparkbridge3/utils/json"
	"github.com/sparkbridge/sparkbridge3/utils/str"
)

func init() {
	_ = adapter.Registry.Register(adapter.GenerationV12, adapter.KindClient, func(binding adapter.Binding, config types.Config) (types.ChatAdapter, error) {
		return NewClient(binding.URL, binding.AccessToken, config), nil
	})
	_ = adapter.Registry.Register(adapter.GenerationV12, adapter.KindServer, func(binding adapter.Binding, config types.Config) (types.ChatAdapter, error) {
		return NewServer(binding.Listen, binding.AccessToken, config), nil
	})
}

// Adapter OneBot v12 适配器基础实现
type Adapter struct {
	*adapter.Base

	mu   sync.RWMutex
	self types.Self
}

func newAdapter(module, accessToken string, config types.Config) *Adapter {
	return &Adapter{Base: adapter.NewBase(module, accessToken, config)}
}

// Self 当前绑定的机器人身份，连接建立前为零值
func (a *Adapter) Self() types.Self {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.self
}

func (a *Adapter) setSelf(self types.Self) {
	a.mu.Lock()
	a.self = self
	a.mu.Unlock()
}

func (a *Adapter) resetIdentity() {
	a.setSelf(types.Self{})
}

// HandleFrame classifies one inbound frame: a response when its echo matches
// a live pending action and it carries retcode/status, an event when it
// carries the v12 type/detail_type markers, otherwise dropped.
func (a *Adapter) HandleFrame(data []byte) {
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		a.Logger.Printf("drop malformed frame: %v", err)
		return
	}

	if echo := str.ToString(frame["echo"]); echo != "" && a.Correlator().Has(echo) {
		_, hasRetcode := frame["retcode"]
		_, hasStatus := frame["status"]
		if hasRetcode || hasStatus {
			a.handleResponse(echo, frame)
			return
		}
	}

	if _, ok := frame["type"]; ok {
		if _, ok := frame["detail_type"]; ok {
			a.handleEvent(frame)
		}
	}
}

func (a *Adapter) handleResponse(echo string, frame map[string]interface{}) {
	if str.ToString(frame["status"]) == "ok" {
		a.Correlator().Resolve(echo, frame["data"])
		return
	}
	retcode, _ := frame["retcode"].(float64)
	a.Correlator().Fail(echo, &types.ActionError{
		Reason:  str.ToString(frame["message"]),
		Retcode: int64(retcode),
	})
}

// EventName 按 v12 规则推导事件名，空字段跳过
func EventName(frame map[string]interface{}) string {
	name := str.ToString(frame["type"])
	if detail := str.ToString(frame["detail_type"]); detail != "" {
		name += "." + detail
	}
	if sub := str.ToString(frame["sub_type"]); sub != "" {
		name += "." + sub
	}
	return name
}

func parseSelf(raw interface{}) types.Self {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return types.Self{}
	}
	return types.Self{
		Platform: str.ToString(m["platform"]),
		UserID:   str.ToString(m["user_id"]),
	}
}

func (a *Adapter) handleEvent(frame map[string]interface{}) {
	if str.ToString(frame["type"]) == "meta" && str.ToString(frame["detail_type"]) == "connect" {
		self := parseSelf(frame["self"])
		a.setSelf(self)
		a.Logger.Printf("connected to bot [%s] on platform [%s]", self.UserID, self.Platform)
		a.Emit(types.Event{Name: types.EventBotOnline, Self: self, Raw: frame})
		return
	}
	a.Emit(a.normalize(frame))
}

// normalize 把原始 v12 事件转换为归一化事件
func (a *Adapter) normalize(frame map[string]interface{}) types.Event {
	event := types.Event{
		Name:    EventName(frame),
		UserID:  str.ToString(frame["user_id"]),
		GroupID: str.ToString(frame["group_id"]),
		Self:    a.Self(),
		Raw:     frame,
	}
	if self, ok := frame["self"]; ok {
		event.Self = parseSelf(self)
	}
	switch str.ToString(frame["detail_type"]) {
	case "private":
		event.Kind = types.ChatKindPrivate
	case "group":
		event.Kind = types.ChatKindGroup
	}
	if raw, ok := frame["message"]; ok {
		event.Message = segment.PlainText(segment.FromRaw(raw))
	}
	return event
}

// --- v12 标准动作 ---

// SendMessageAction 发送消息，detailType 为 private/group
func (a *Adapter) SendMessageAction(ctx context.Context, detailType, id string, message []segment.Segment, opts ...types.ActionOption) (interface{}, error) {
	params := map[string]interface{}{
		"detail_type": detailType,
		"message":     message,
	}
	// v12 规定目标字段名跟随 detail_type：user_id 或 group_id
	params[detailType+"_id"] = id
	return a.SendAction(ctx, "send_message", params, opts...)
}

// GetSelfInfo 获取机器人自身信息
func (a *Adapter) GetSelfInfo(ctx context.Context, opts ...types.ActionOption) (interface{}, error) {
	return a.SendAction(ctx, "get_self_info", map[string]interface{}{}, opts...)
}

// BanGroupMember 禁言群成员（扩展动作），duration 单位秒
func (a *Adapter) BanGroupMember(ctx context.Context, groupID, userID string, duration int64) (interface{}, error) {
	return a.SendAction(ctx, "set_group_ban", map[string]interface{}{
		"group_id": groupID,
		"user_id":  userID,
		"duration": duration,
	})
}

// SendMessage 通用发送入口
func (a *Adapter) SendMessage(ctx context.Context, msg types.OutgoingMessage) error {
	var detailType string
	switch msg.Kind {
	case types.ChatKindPrivate:
		detailType = "private"
	case types.ChatKindGroup:
		detailType = "group"
	default:
		return fmt.Errorf("unknown chat kind: %q", msg.Kind)
	}
	_, err := a.SendMessageAction(ctx, detailType, msg.TargetID, []segment.Segment{segment.Text(msg.Content)})
	return err
}

// MuteGroupMember 通用禁言入口
func (a *Adapter) MuteGroupMember(ctx context.Context, groupID, userID string, durationSec int64) error {
	_, err := a.BanGroupMember(ctx, groupID, userID, durationSec)
	return err
}
