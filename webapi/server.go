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

// Package webapi exposes the administrative HTTP API: login, rule and
// variable inspection, rule updates and engine reload.
//
// Package webapi 管理 HTTP API。
package webapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/config"
	"github.com/sparkbridge/sparkbridge3/engine"
	"github.com/sparkbridge/sparkbridge3/store"
	"github.com/sparkbridge/sparkbridge3/utils/json"
)

// Server 管理 API 服务
type Server struct {
	logger types.Logger
	cfg    *config.Config
	engine *engine.Engine
	store  *store.Store
	server *http.Server
}

// New 创建管理 API 服务
func New(cfg *config.Config, eng *engine.Engine, st *store.Store, logger types.Logger) *Server {
	if logger == nil {
		logger = types.DefaultLogger()
	}
	return &Server{
		logger: types.ModuleLogger("webapi", logger),
		cfg:    cfg,
		engine: eng,
		store:  st,
	}
}

// Router 构建路由，登录以外的路由都要求有效令牌
func (s *Server) Router() *httprouter.Router {
	router := httprouter.New()
	router.POST("/api/auth/login", s.handleLogin)
	router.GET("/api/rules", s.authed(s.handleGetRules))
	router.PUT("/api/rules", s.authed(s.handlePutRules))
	router.GET("/api/variables", s.authed(s.handleGetVariables))
	router.POST("/api/engine/reload", s.authed(s.handleReload))
	return router
}

// Start 启动 HTTP 服务
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.server = &http.Server{Addr: addr, Handler: s.Router()}
	s.logger.Printf("admin api listening on %s", addr)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("admin api stopped: %v", err)
		}
	}()
	return nil
}

// Stop 关闭 HTTP 服务
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

type apiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	data, _ := json.Marshal(body)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Code: 0, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiResponse{Code: -1, Message: message})
}

// authed 校验 Bearer 令牌
func (s *Server) authed(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing or malformed authorization header")
			return
		}
		if _, err := verifyToken(s.cfg.Auth.JWTSecret, strings.TrimPrefix(header, "Bearer ")); err != nil {
			writeError(w, http.StatusUnauthorized, "token is invalid or expired")
			return
		}
		next(w, r, params)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body failed")
		return
	}
	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	for _, user := range s.cfg.Auth.Users {
		if user.Username != req.Username {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			break
		}
		token, err := issueToken(s.cfg.Auth.JWTSecret, user.Username, s.cfg.Auth.TokenTTL)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "issue token failed")
			return
		}
		writeOK(w, map[string]string{"token": token})
		return
	}
	s.logger.Printf("login rejected for user [%s]", req.Username)
	writeError(w, http.StatusUnauthorized, "invalid username or password")
}

func (s *Server) handleGetRules(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeOK(w, s.engine.Rules())
}

// handlePutRules 全量替换规则集：先持久化，再热加载。热加载失败向调用方
// 返回 500，引擎保持旧状态。
func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body failed")
		return
	}
	var data types.RuleData
	if err := json.Unmarshal(body, &data); err != nil {
		writeError(w, http.StatusBadRequest, "malformed rule document")
		return
	}
	if err := s.store.Save(&data); err != nil {
		writeError(w, http.StatusInternalServerError, "persist rules failed: "+err.Error())
		return
	}
	if err := s.engine.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "engine reload failed: "+err.Error())
		return
	}
	writeOK(w, map[string]int{"rules": len(data.Rules)})
}

func (s *Server) handleGetVariables(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeOK(w, s.engine.Variables())
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if err := s.engine.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, "engine reload failed: "+err.Error())
		return
	}
	writeOK(w, nil)
}
