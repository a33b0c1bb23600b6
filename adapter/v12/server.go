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
	"net/http"

	"github.com/sparkbridge/sparkbridge3/adapter"
	"github.com/sparkbridge/sparkbridge3/api/types"
)

var _ types.ChatAdapter = (*Server)(nil)

// HeaderPlatform v12 反向连接携带的平台头
const HeaderPlatform = "X-Platform"

// Server 反向 WebSocket 服务端绑定
type Server struct {
	*Adapter
	transport *adapter.WSServer
}

// NewServer 创建反向连接服务端
func NewServer(addr, accessToken string, config types.Config) *Server {
	s := &Server{Adapter: newAdapter("v12-server", accessToken, config)}
	s.transport = adapter.NewWSServer(s.Logger, addr, accessToken, s.HandleFrame)
	s.transport.OnAccept(func(r *http.Request) {
		self := types.Self{
			Platform: r.Header.Get(HeaderPlatform),
			UserID:   r.Header.Get(adapter.HeaderSelfID),
		}
		s.Logger.Printf("bot [%s] on platform [%s] connected", self.UserID, self.Platform)
		s.setSelf(self)
		s.Emit(types.Event{Name: types.EventBotOnline, Self: self})
	})
	s.transport.OnDrop(func(r *http.Request) {
		s.Logger.Printf("bot [%s] disconnected", r.Header.Get(adapter.HeaderSelfID))
	})
	s.SetSender(s.transport.Send)
	return s
}

// Start 开始监听，只能调用一次
func (s *Server) Start() error {
	return s.transport.Start()
}

// Stop 关闭监听和所有已连入的连接
func (s *Server) Stop() error {
	err := s.transport.Stop()
	s.CloseEmitter()
	return err
}
