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

// Package config loads the main configuration document.
//
// Package config 加载主配置。缺失的配置项使用缺省值。
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/sparkbridge/sparkbridge3/adapter"
	"github.com/sparkbridge/sparkbridge3/utils/str"
)

// User 管理后台账号，密码为 bcrypt 散列
type User struct {
	Username     string `mapstructure:"username" json:"username"`
	PasswordHash string `mapstructure:"passwordHash" json:"passwordHash"`
}

// Config 主配置
type Config struct {
	Server struct {
		// 管理 API 监听端口
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`

	Auth struct {
		// JWT 签名密钥
		JWTSecret string `mapstructure:"jwtSecret"`
		// 令牌有效期
		TokenTTL time.Duration `mapstructure:"tokenTTL"`
		Users    []User        `mapstructure:"users"`
	} `mapstructure:"auth"`

	// 数据目录，规则文档存放于此
	DataDir string `mapstructure:"dataDir"`

	// 协议适配器绑定，当前进程使用第一条
	Adapters []adapter.Binding `mapstructure:"adapters"`

	// 动作响应超时
	ActionTimeout time.Duration `mapstructure:"actionTimeout"`
}

// RulePath 规则文档路径
func (c *Config) RulePath() string {
	return filepath.Join(c.DataDir, "rules.json")
}

// Load reads the config file at path (yaml). Missing keys fall back to
// defaults; a missing file is an error so a typo'd path fails loudly.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server.port", 3000)
	v.SetDefault("dataDir", "data")
	v.SetDefault("auth.tokenTTL", "24h")
	v.SetDefault("actionTimeout", "10s")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	// 绑定里的代号写错要在启动时报错，而不是等到注册表查找
	for _, binding := range cfg.Adapters {
		if !str.Contains([]string{adapter.GenerationV11, adapter.GenerationV12}, binding.Generation) {
			return nil, fmt.Errorf("unknown adapter generation %q in %s", binding.Generation, path)
		}
		if !str.Contains([]string{adapter.KindClient, adapter.KindServer}, binding.Kind) {
			return nil, fmt.Errorf("unknown adapter kind %q in %s", binding.Kind, path)
		}
	}
	return &cfg, nil
}
