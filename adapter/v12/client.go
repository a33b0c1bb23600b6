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
	"github.com/sparkbridge/sparkbridge3/adapter"
	"github.com/sparkbridge/sparkbridge3/api/types"
)

var _ types.ChatAdapter = (*Client)(nil)

// Client 正向 WebSocket 客户端绑定
type Client struct {
	*Adapter
	transport *adapter.WSClient
}

// NewClient 创建正向连接客户端
func NewClient(targetURL, accessToken string, config types.Config) *Client {
	c := &Client{Adapter: newAdapter("v12-client", accessToken, config)}
	c.transport = adapter.NewWSClient(c.Logger, targetURL, accessToken, c.HandleFrame)
	// 断线后身份失效，直到下一个 meta.connect
	c.transport.OnDisconnect(c.resetIdentity)
	c.SetSender(c.transport.Send)
	return c
}

// Start 启动连接循环，只能调用一次
func (c *Client) Start() error {
	return c.transport.Start()
}

// Stop 关闭连接并停止重连
func (c *Client) Stop() error {
	err := c.transport.Stop()
	c.CloseEmitter()
	return err
}
