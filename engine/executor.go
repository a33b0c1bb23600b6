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

package engine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// 动作类型
const (
	ActionReplyText        = "reply_text"
	ActionSendGroupMessage = "send_group_message"
	ActionMuteUser         = "mute_user"
	ActionSetVariable      = "set_variable"
)

// ExecuteActions runs the rule's actions in order. Each action has its own
// failure boundary: an error or panic is logged and the remaining actions
// still run.
func ExecuteActions(ctx context.Context, actions []types.Action, dc *DispatchContext, chatAdapter types.ChatAdapter, logger types.Logger) {
	for _, action := range actions {
		if err := executeAction(ctx, action, dc, chatAdapter); err != nil {
			logger.Printf("action [%s] failed: %v", action.Type, err)
		}
	}
}

func executeAction(ctx context.Context, action types.Action, dc *DispatchContext, chatAdapter types.ChatAdapter) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic: %v", e)
		}
	}()

	switch action.Type {
	case ActionReplyText:
		// 回复到事件来源：私聊回用户，群聊回群
		msg := types.OutgoingMessage{Kind: dc.Event.Kind, Content: action.Value}
		if dc.Event.Kind == types.ChatKindPrivate {
			msg.TargetID = dc.Event.UserID
		} else {
			msg.TargetID = dc.Event.GroupID
		}
		return chatAdapter.SendMessage(ctx, msg)

	case ActionSendGroupMessage:
		// 固定目标群，用于没有消息来源的定时任务
		return chatAdapter.SendMessage(ctx, types.OutgoingMessage{
			Kind:     types.ChatKindGroup,
			TargetID: action.TargetGroupID,
			Content:  action.Value,
		})

	case ActionMuteUser:
		if dc.Event.Kind != types.ChatKindGroup {
			return nil
		}
		minutes, convErr := strconv.ParseInt(action.Value, 10, 64)
		if convErr != nil {
			// 非数字时长静默跳过
			return nil
		}
		return chatAdapter.MuteGroupMember(ctx, dc.Event.GroupID, dc.Event.UserID, minutes*60)

	case ActionSetVariable:
		if action.VariableName != "" {
			dc.Variables[action.VariableName] = action.Value
			dc.Dirty = true
		}
		return nil

	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}
