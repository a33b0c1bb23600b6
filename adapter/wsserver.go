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
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// HeaderSelfID 反向连接必须携带的机器人身份头
const HeaderSelfID = "X-Self-ID"

// WSServer accepts inbound (reverse) WebSocket connections. Every connection
// must present the configured bearer token and the bot-identity header,
// otherwise it is closed with code 1008. Send broadcasts to every open
// socket; a dropping socket only loses its own frames.
//
// WSServer 反向 WebSocket 传输。
type WSServer struct {
	logger      types.Logger
	addr        string
	accessToken string
	sink        func(data []byte)
	// 鉴权通过后的回调，适配器用于记录身份并发出 bot.online
	onAccept func(r *http.Request)
	// 单个连接断开时的回调
	onDrop func(r *http.Request)

	server   *http.Server
	ln       net.Listener
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]*sync.Mutex
	once  sync.Once
}

// NewWSServer 创建反向连接传输
func NewWSServer(logger types.Logger, addr, accessToken string, sink func(data []byte)) *WSServer {
	return &WSServer{
		logger:      logger,
		addr:        addr,
		accessToken: accessToken,
		sink:        sink,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// OnAccept 注册连接通过鉴权后的回调
func (s *WSServer) OnAccept(f func(r *http.Request)) {
	s.onAccept = f
}

// OnDrop 注册单个连接断开时的回调
func (s *WSServer) OnDrop(f func(r *http.Request)) {
	s.onDrop = f
}

// Start 开始监听，只能调用一次
func (s *WSServer) Start() error {
	router := httprouter.New()
	router.GET("/", s.handleConnection)
	s.server = &http.Server{Addr: s.addr, Handler: router}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Printf("reverse websocket server listening on %s", ln.Addr())
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("server stopped: %v", err)
		}
	}()
	return nil
}

// Stop 关闭监听和所有已连入的连接
func (s *WSServer) Stop() error {
	s.once.Do(func() {
		if s.server != nil {
			_ = s.server.Close()
		}
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.conns = make(map[*websocket.Conn]*sync.Mutex)
		s.mu.Unlock()
	})
	return nil
}

// Addr 实际监听地址，Start 之前为空
func (s *WSServer) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// ConnCount 当前连入的连接数
func (s *WSServer) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// closePolicyViolation 以 1008 关闭连接
func closePolicyViolation(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

func (s *WSServer) handleConnection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("upgrade failed: %v", err)
		return
	}

	if s.accessToken != "" && r.Header.Get("Authorization") != "Bearer "+s.accessToken {
		s.logger.Printf("rejected connection from %s: authorization failed", r.RemoteAddr)
		closePolicyViolation(conn, "Authorization failed")
		return
	}
	if r.Header.Get(HeaderSelfID) == "" {
		s.logger.Printf("rejected connection from %s: %s is required", r.RemoteAddr, HeaderSelfID)
		closePolicyViolation(conn, HeaderSelfID+" is required")
		return
	}

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.conns[conn] = writeMu
	s.mu.Unlock()
	if s.onAccept != nil {
		s.onAccept(r)
	}

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
		if s.onDrop != nil {
			s.onDrop(r)
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		s.sink(data)
	}
}

// Send 向所有已连入的连接广播一帧，已断开的连接静默跳过
func (s *WSServer) Send(data []byte) error {
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.conns))
	for conn, mu := range s.conns {
		conns[conn] = mu
	}
	s.mu.Unlock()

	if len(conns) == 0 {
		return types.ErrNotConnected
	}
	for conn, mu := range conns {
		mu.Lock()
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Printf("broadcast to %s failed: %v", conn.RemoteAddr(), err)
		}
		mu.Unlock()
	}
	return nil
}
