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

// Package v11 implements the OneBot v11 protocol adapter.
//
// v11 事件名由 post_type、(message|notice|request|meta_event)_type 和
// sub_type 用 "." 连接得到，例如 "message.group.normal"。
package v11

import (
	"context"
	"fmt"
	"sync"

	"github.com/sparkbridge/sparkbridge3/adapter"
	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/segment"
	"github.com/sparkbridge/sparkbridge3/utils/json"
	"github.com/sparkbridge/sparkbridge3/utils/maps"
	"github.com/sparkbridge/sparkbridge3/utils/str"
)

func init() {
	_ = adapter.Registry.Register(adapter.GenerationV11, adapter.KindClient, func(binding adapter.Binding, config types.Config) (types.ChatAdapter, error) {
		return NewClient(binding.URL, binding.AccessToken, config), nil
	})
	_ = adapter.Registry.Register(adapter.GenerationV11, adapter.KindServer, func(binding adapter.Binding, config types.Config) (types.ChatAdapter, error) {
		return NewServer(binding.Listen, binding.AccessToken, config), nil
	})
}

// Adapter OneBot v11 适配器基础实现，由 Client 和 Server 组合
type Adapter struct {
	*adapter.Base

	mu     sync.RWMutex
	selfID string
}

func newAdapter(module, accessToken string, config types.Config) *Adapter {
	return &Adapter{Base: adapter.NewBase(module, accessToken, config)}
}

// SelfID 当前绑定的机器人账号，连接建立前为空
func (a *Adapter) SelfID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selfID
}

func (a *Adapter) setSelfID(selfID string) {
	a.mu.Lock()
	a.selfID = selfID
	a.mu.Unlock()
}

// resetIdentity 连接断开后清空身份，等待下一个 connect 元事件
func (a *Adapter) resetIdentity() {
	a.setSelfID("")
}

// HandleFrame classifies one inbound frame: a response when its echo matches
// a live pending action and it carries a status field, an event when it
// carries post_type, otherwise dropped.
func (a *Adapter) HandleFrame(data []byte) {
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		a.Logger.Printf("drop malformed frame: %v", err)
		return
	}

	if echo := str.ToString(frame["echo"]); echo != "" && a.Correlator().Has(echo) {
		if _, ok := frame["status"]; ok {
			a.handleResponse(echo, frame)
			return
		}
	}

	if _, ok := frame["post_type"]; ok {
		a.handleEvent(frame)
	}
	// 既不是响应也不是事件的帧直接丢弃
}

func (a *Adapter) handleResponse(echo string, frame map[string]interface{}) {
	if str.ToString(frame["status"]) == "ok" {
		a.Correlator().Resolve(echo, frame["data"])
		return
	}
	retcode, _ := frame["retcode"].(float64)
	a.Correlator().Fail(echo, &types.ActionError{
		Reason:  str.ToString(frame["wording"]),
		Retcode: int64(retcode),
	})
}

// EventName 按 v11 规则推导事件名，空字段跳过
func EventName(frame map[string]interface{}) string {
	name := str.ToString(frame["post_type"])
	for _, key := range []string{"message_type", "notice_type", "request_type", "meta_event_type"} {
		if v := str.ToString(frame[key]); v != "" {
			name += "." + v
			break
		}
	}
	if sub := str.ToString(frame["sub_type"]); sub != "" {
		name += "." + sub
	}
	return name
}

func (a *Adapter) handleEvent(frame map[string]interface{}) {
	event := a.normalize(frame)

	if str.ToString(frame["post_type"]) == "meta_event" &&
		str.ToString(frame["meta_event_type"]) == "lifecycle" &&
		str.ToString(frame["sub_type"]) == "connect" {
		selfID := str.ToString(frame["self_id"])
		a.setSelfID(selfID)
		a.Logger.Printf("connected to bot [%s]", selfID)
		a.Emit(types.Event{
			Name: types.EventBotOnline,
			Self: types.Self{UserID: selfID},
			Raw:  frame,
		})
	}

	a.Emit(event)
}

// normalize 把原始 v11 事件转换为归一化事件
func (a *Adapter) normalize(frame map[string]interface{}) types.Event {
	event := types.Event{
		Name:    EventName(frame),
		UserID:  str.ToString(frame["user_id"]),
		GroupID: str.ToString(frame["group_id"]),
		Self:    types.Self{UserID: a.SelfID()},
		Raw:     frame,
	}
	switch str.ToString(frame["message_type"]) {
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

// --- 与 v11 标准动作一一对应的公开方法 ---

// SendPrivateMsg 发送私聊消息
func (a *Adapter) SendPrivateMsg(ctx context.Context, userID string, message string) (interface{}, error) {
	return a.SendAction(ctx, "send_private_msg", map[string]interface{}{
		"user_id":     userID,
		"message":     message,
		"auto_escape": false,
	})
}

// SendGroupMsg 发送群消息
func (a *Adapter) SendGroupMsg(ctx context.Context, groupID string, message string) (interface{}, error) {
	return a.SendAction(ctx, "send_group_msg", map[string]interface{}{
		"group_id":    groupID,
		"message":     message,
		"auto_escape": false,
	})
}

// GroupMember 群成员信息，字段对应 get_group_member_list 的响应
type GroupMember struct {
	UserID   string `mapstructure:"user_id"`
	Nickname string `mapstructure:"nickname"`
	Card     string `mapstructure:"card"`
	Role     string `mapstructure:"role"`
}

// GetGroupMemberList 获取群成员列表。不同实现的 user_id 可能是数字或字符串，
// 弱类型解码统一成字符串。
func (a *Adapter) GetGroupMemberList(ctx context.Context, groupID string) ([]GroupMember, error) {
	data, err := a.SendAction(ctx, "get_group_member_list", map[string]interface{}{
		"group_id": groupID,
	})
	if err != nil {
		return nil, err
	}
	var members []GroupMember
	if err := maps.Map2StructWeakly(data, &members); err != nil {
		return nil, fmt.Errorf("decode group member list: %w", err)
	}
	return members, nil
}

// SetGroupBan 禁言群成员，duration 单位秒
func (a *Adapter) SetGroupBan(ctx context.Context, groupID, userID string, duration int64) (interface{}, error) {
	return a.SendAction(ctx, "set_group_ban", map[string]interface{}{
		"group_id": groupID,
		"user_id":  userID,
		"duration": duration,
	})
}

// SendMessage 通用发送入口，规则引擎通过它回复私聊或群聊
func (a *Adapter) SendMessage(ctx context.Context, msg types.OutgoingMessage) error {
	var err error
	switch msg.Kind {
	case types.ChatKindPrivate:
		_, err = a.SendPrivateMsg(ctx, msg.TargetID, msg.Content)
	case types.ChatKindGroup:
		_, err = a.SendGroupMsg(ctx, msg.TargetID, msg.Content)
	default:
		err = fmt.Errorf("unknown chat kind: %q", msg.Kind)
	}
	return err
}

// MuteGroupMember 通用禁言入口
func (a *Adapter) MuteGroupMember(ctx context.Context, groupID, userID string, durationSec int64) error {
	_, err := a.SetGroupBan(ctx, groupID, userID, durationSec)
	return err
}
