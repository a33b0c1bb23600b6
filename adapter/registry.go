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
	"fmt"
	"sync"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// 协议代号
const (
	GenerationV11 = "v11"
	GenerationV12 = "v12"
)

// 传输绑定
const (
	KindClient = "client"
	KindServer = "server"
)

// Binding 一条适配器绑定配置
type Binding struct {
	// 协议代：v11/v12
	Generation string `mapstructure:"generation" json:"generation"`
	// 传输绑定：client/server
	Kind string `mapstructure:"kind" json:"kind"`
	// 正向连接的目标地址，如 ws://host:port
	URL string `mapstructure:"url" json:"url,omitempty"`
	// 反向连接的监听地址，如 :6700
	Listen string `mapstructure:"listen" json:"listen,omitempty"`
	// 鉴权令牌
	AccessToken string `mapstructure:"accessToken" json:"accessToken,omitempty"`
}

// Constructor builds a ChatAdapter from a binding. Adapters register their
// constructors at package init; resolution happens once at startup instead
// of dynamic loading by name.
type Constructor func(binding Binding, config types.Config) (types.ChatAdapter, error)

// Registry 适配器构造器注册表，key 为 generation/kind
var Registry = &AdapterRegistry{constructors: make(map[string]Constructor)}

// AdapterRegistry 静态注册表
type AdapterRegistry struct {
	sync.RWMutex
	constructors map[string]Constructor
}

func registryKey(generation, kind string) string {
	return generation + "/" + kind
}

// Register 注册构造器，重复注册返回错误
func (r *AdapterRegistry) Register(generation, kind string, constructor Constructor) error {
	r.Lock()
	defer r.Unlock()
	key := registryKey(generation, kind)
	if _, ok := r.constructors[key]; ok {
		return fmt.Errorf("adapter already registered: %s", key)
	}
	r.constructors[key] = constructor
	return nil
}

// New 根据绑定配置创建适配器实例
func (r *AdapterRegistry) New(binding Binding, config types.Config) (types.ChatAdapter, error) {
	r.RLock()
	constructor, ok := r.constructors[registryKey(binding.Generation, binding.Kind)]
	r.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown adapter: %s/%s", binding.Generation, binding.Kind)
	}
	return constructor(binding, config)
}
