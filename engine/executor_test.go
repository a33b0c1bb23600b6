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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// fakeAdapter 记录动作调用的 ChatAdapter 假实现
type fakeAdapter struct {
	mu       sync.Mutex
	messages []types.OutgoingMessage
	mutes    []muteCall
	sendErr  error
	handlers map[string][]types.EventHandler
}

type muteCall struct {
	groupID  string
	userID   string
	duration int64
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{handlers: map[string][]types.EventHandler{}}
}

func (f *fakeAdapter) Start() error { return nil }
func (f *fakeAdapter) Stop() error  { return nil }

func (f *fakeAdapter) SendAction(ctx context.Context, action string, params map[string]interface{}, opts ...types.ActionOption) (interface{}, error) {
	return nil, nil
}

func (f *fakeAdapter) SendMessage(ctx context.Context, msg types.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeAdapter) MuteGroupMember(ctx context.Context, groupID, userID string, durationSec int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes = append(f.mutes, muteCall{groupID: groupID, userID: userID, duration: durationSec})
	return nil
}

func (f *fakeAdapter) On(eventName string, handler types.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[eventName] = append(f.handlers[eventName], handler)
}

func (f *fakeAdapter) AddInterceptor(eventName string, interceptor types.Interceptor) {}

// emit 把事件直接交给订阅者，模拟适配器派发
func (f *fakeAdapter) emit(event types.Event) {
	f.mu.Lock()
	handlers := append([]types.EventHandler{}, f.handlers[event.Name]...)
	handlers = append(handlers, f.handlers[types.EventWildcard]...)
	f.mu.Unlock()
	for _, handler := range handlers {
		handler(event)
	}
}

func (f *fakeAdapter) sentMessages() []types.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.OutgoingMessage{}, f.messages...)
}

func (f *fakeAdapter) mutedCalls() []muteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]muteCall{}, f.mutes...)
}

var _ types.ChatAdapter = (*fakeAdapter)(nil)

func TestExecuteReplyTextRoutesBySource(t *testing.T) {
	adapter := newFakeAdapter()

	dc := groupMessageContext("hi")
	require.NoError(t, executeAction(context.Background(), types.Action{Type: ActionReplyText, Value: "pong"}, dc, adapter))

	dc.Event.Kind = types.ChatKindPrivate
	require.NoError(t, executeAction(context.Background(), types.Action{Type: ActionReplyText, Value: "pong"}, dc, adapter))

	messages := adapter.sentMessages()
	require.Len(t, messages, 2)
	assert.Equal(t, "222", messages[0].TargetID, "group reply goes to the group")
	assert.Equal(t, "111", messages[1].TargetID, "private reply goes to the user")
}

func TestExecuteSendGroupMessageUsesFixedTarget(t *testing.T) {
	adapter := newFakeAdapter()

	// 定时任务事件没有来源，目标群取自动作配置
	dc := &DispatchContext{Event: types.Event{Name: types.EventScheduledTask}, Variables: map[string]string{}}
	action := types.Action{Type: ActionSendGroupMessage, Value: "daily report", TargetGroupID: "333"}
	require.NoError(t, executeAction(context.Background(), action, dc, adapter))

	messages := adapter.sentMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, types.ChatKindGroup, messages[0].Kind)
	assert.Equal(t, "333", messages[0].TargetID)
}

func TestExecuteMuteUser(t *testing.T) {
	adapter := newFakeAdapter()
	dc := groupMessageContext("spam")

	require.NoError(t, executeAction(context.Background(), types.Action{Type: ActionMuteUser, Value: "5"}, dc, adapter))
	mutes := adapter.mutedCalls()
	require.Len(t, mutes, 1)
	assert.Equal(t, muteCall{groupID: "222", userID: "111", duration: 300}, mutes[0], "minutes convert to seconds")

	// 非数字时长静默跳过
	require.NoError(t, executeAction(context.Background(), types.Action{Type: ActionMuteUser, Value: "forever"}, dc, adapter))
	assert.Len(t, adapter.mutedCalls(), 1)

	// 私聊事件不禁言
	dc.Event.Kind = types.ChatKindPrivate
	require.NoError(t, executeAction(context.Background(), types.Action{Type: ActionMuteUser, Value: "5"}, dc, adapter))
	assert.Len(t, adapter.mutedCalls(), 1)
}

func TestExecuteSetVariableMarksDirty(t *testing.T) {
	dc := groupMessageContext("hi")
	action := types.Action{Type: ActionSetVariable, VariableName: "mode", Value: "quiet"}
	require.NoError(t, executeAction(context.Background(), action, dc, nil))
	assert.Equal(t, "quiet", dc.Variables["mode"])
	assert.True(t, dc.Dirty)

	// 空变量名不落盘
	dc2 := groupMessageContext("hi")
	require.NoError(t, executeAction(context.Background(), types.Action{Type: ActionSetVariable, Value: "x"}, dc2, nil))
	assert.False(t, dc2.Dirty)
}

func TestExecuteActionsContinueAfterFailure(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.sendErr = errors.New("socket gone")
	dc := groupMessageContext("hi")

	actions := []types.Action{
		{Type: ActionReplyText, Value: "will fail"},
		{Type: "no_such_action"},
		{Type: ActionSetVariable, VariableName: "ran", Value: "yes"},
	}
	ExecuteActions(context.Background(), actions, dc, adapter, types.DefaultLogger())

	// 前两个动作失败不影响后续动作
	assert.Equal(t, "yes", dc.Variables["ran"])
}
