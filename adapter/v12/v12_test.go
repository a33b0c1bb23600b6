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

package v12

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/utils/json"
)

func waitEvent(t *testing.T, ch <-chan types.Event) types.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return types.Event{}
	}
}

func TestEventName(t *testing.T) {
	tests := []struct {
		frame map[string]interface{}
		want  string
	}{
		{map[string]interface{}{"type": "message", "detail_type": "group", "sub_type": ""}, "message.group"},
		{map[string]interface{}{"type": "message", "detail_type": "private"}, "message.private"},
		{map[string]interface{}{"type": "notice", "detail_type": "group_member_increase", "sub_type": "join"}, "notice.group_member_increase.join"},
		{map[string]interface{}{"type": "meta", "detail_type": "heartbeat"}, "meta.heartbeat"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EventName(tt.frame))
	}
}

func TestHandleFrameMetaConnect(t *testing.T) {
	a := newAdapter("test", "", types.NewConfig())
	defer a.CloseEmitter()

	online := make(chan types.Event, 1)
	a.On(types.EventBotOnline, func(event types.Event) { online <- event })

	a.HandleFrame([]byte(`{
		"id":"evt-1","type":"meta","detail_type":"connect","sub_type":"",
		"self":{"platform":"qq","user_id":"888"},
		"version":{"impl":"test","version":"1.0","onebot_version":"12"}
	}`))

	event := waitEvent(t, online)
	assert.Equal(t, "qq", event.Self.Platform)
	assert.Equal(t, "888", event.Self.UserID)
	assert.Equal(t, types.Self{Platform: "qq", UserID: "888"}, a.Self())
}

func TestHandleFrameNormalizesMessage(t *testing.T) {
	a := newAdapter("test", "", types.NewConfig())
	defer a.CloseEmitter()

	events := make(chan types.Event, 1)
	a.On("message.group", func(event types.Event) { events <- event })

	a.HandleFrame([]byte(`{
		"id":"evt-2","type":"message","detail_type":"group","sub_type":"",
		"user_id":"111","group_id":"222",
		"message":[{"type":"text","data":{"text":"hello "}},{"type":"mention","data":{"user_id":"42"}},{"type":"text","data":{"text":"world"}}]
	}`))

	event := waitEvent(t, events)
	assert.Equal(t, types.ChatKindGroup, event.Kind)
	assert.Equal(t, "111", event.UserID)
	assert.Equal(t, "222", event.GroupID)
	assert.Equal(t, "hello world", event.Message)
}

func TestHandleFrameResponseClassification(t *testing.T) {
	a := newAdapter("test", "", types.NewConfig())
	defer a.CloseEmitter()

	a.SetSender(func(data []byte) error {
		go a.HandleFrame([]byte(`{"status":"ok","retcode":0,"data":{"message_id":"m1"},"echo":"echo-1"}`))
		return nil
	})

	data, err := a.SendAction(context.Background(), "send_message", nil,
		types.WithEcho("echo-1"), types.WithTimeout(time.Second))
	require.NoError(t, err)
	payload := data.(map[string]interface{})
	assert.Equal(t, "m1", payload["message_id"])
}

func TestHandleFrameRejectedResponse(t *testing.T) {
	a := newAdapter("test", "", types.NewConfig())
	defer a.CloseEmitter()

	a.SetSender(func(data []byte) error {
		go a.HandleFrame([]byte(`{"status":"failed","retcode":10003,"message":"param error","data":null,"echo":"echo-2"}`))
		return nil
	})

	_, err := a.SendAction(context.Background(), "send_message", nil,
		types.WithEcho("echo-2"), types.WithTimeout(time.Second))
	var actionErr *types.ActionError
	require.True(t, errors.As(err, &actionErr))
	assert.Equal(t, "send_message", actionErr.Action)
	assert.Equal(t, "param error", actionErr.Reason)
	assert.EqualValues(t, 10003, actionErr.Retcode)
}

func TestSendMessageTargetField(t *testing.T) {
	a := newAdapter("test", "", types.NewConfig())
	defer a.CloseEmitter()

	frames := make(chan map[string]interface{}, 2)
	a.SetSender(func(data []byte) error {
		var frame map[string]interface{}
		_ = json.Unmarshal(data, &frame)
		frames <- frame
		go func() {
			echo, _ := frame["echo"].(string)
			a.HandleFrame([]byte(`{"status":"ok","retcode":0,"data":null,"echo":"` + echo + `"}`))
		}()
		return nil
	})

	require.NoError(t, a.SendMessage(context.Background(), types.OutgoingMessage{
		Kind: types.ChatKindPrivate, TargetID: "111", Content: "hi",
	}))
	frame := <-frames
	params := frame["params"].(map[string]interface{})
	assert.Equal(t, "send_message", frame["action"])
	assert.Equal(t, "private", params["detail_type"])
	// 目标字段名跟随 detail_type
	assert.Equal(t, "111", params["user_id"])

	require.NoError(t, a.SendMessage(context.Background(), types.OutgoingMessage{
		Kind: types.ChatKindGroup, TargetID: "222", Content: "hi",
	}))
	frame = <-frames
	params = frame["params"].(map[string]interface{})
	assert.Equal(t, "group", params["detail_type"])
	assert.Equal(t, "222", params["group_id"])
}
