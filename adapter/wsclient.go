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
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// WSClient owns one outbound WebSocket connection. The connect loop is the
// sole owner of the socket: a new dial only starts after the previous socket
// has fully closed, so two connect attempts never overlap. Reconnection is
// attempted forever with exponential backoff; there is no terminal state
// short of Stop.
//
// WSClient 正向 WebSocket 传输，断线后按退避策略无限重连。
type WSClient struct {
	logger      types.Logger
	targetURL   string
	accessToken string
	// 每收到一帧调用一次，由适配器做分类
	sink func(data []byte)
	// 连接断开后回调，适配器用于清空身份
	onDisconnect func()
	backoff      *Backoff

	mu   sync.Mutex
	conn *websocket.Conn
	stop chan struct{}
	once sync.Once
}

// NewWSClient 创建正向连接传输
func NewWSClient(logger types.Logger, targetURL, accessToken string, sink func(data []byte)) *WSClient {
	return &WSClient{
		logger:      logger,
		targetURL:   targetURL,
		accessToken: accessToken,
		sink:        sink,
		backoff:     NewBackoff(),
		stop:        make(chan struct{}),
	}
}

// OnDisconnect 注册断线回调
func (c *WSClient) OnDisconnect(f func()) {
	c.onDisconnect = f
}

// Start 启动连接循环，只能调用一次
func (c *WSClient) Start() error {
	go c.connectLoop()
	return nil
}

// Stop 关闭连接并停止重连
func (c *WSClient) Stop() error {
	c.once.Do(func() { close(c.stop) })
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return nil
}

// Send 向当前连接写一帧；gorilla 不允许并发写，用锁串行化
func (c *WSClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return types.ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WSClient) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *WSClient) connectLoop() {
	for {
		if c.stopped() {
			return
		}

		c.logger.Printf("connecting to %s ...", c.targetURL)
		header := http.Header{}
		if c.accessToken != "" {
			header.Set("Authorization", "Bearer "+c.accessToken)
		}
		conn, _, err := websocket.DefaultDialer.Dial(c.targetURL, header)
		if err != nil {
			delay := c.backoff.Next()
			c.logger.Printf("dial failed: %v, retrying in %s", err, delay)
			select {
			case <-c.stop:
				return
			case <-time.After(delay):
				continue
			}
		}

		c.logger.Printf("websocket connected")
		c.backoff.Reset()
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		if c.onDisconnect != nil {
			c.onDisconnect()
		}
		if c.stopped() {
			return
		}

		delay := c.backoff.Next()
		c.logger.Printf("connection lost, reconnecting in %s", delay)
		select {
		case <-c.stop:
			return
		case <-time.After(delay):
		}
	}
}

// readLoop 逐帧读取直到连接断开；坏帧由 sink 记录，不致命
func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.logger.Printf("read error: %v", err)
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		c.sink(data)
	}
}
