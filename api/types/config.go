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

package types

import "time"

// Config 适配器与引擎的公共运行配置
type Config struct {
	// 日志实现，缺省为标准库 log
	Logger Logger
	// 动作响应超时，缺省 10s
	ActionTimeout time.Duration
}

// NewConfig 创建配置并填充缺省值
func NewConfig(opts ...ConfigOption) Config {
	c := Config{
		Logger:        DefaultLogger(),
		ActionTimeout: DefaultActionTimeout,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ConfigOption 配置选项
type ConfigOption func(*Config)

// WithLogger 指定日志实现
func WithLogger(logger Logger) ConfigOption {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithActionTimeout 指定动作响应缺省超时
func WithActionTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.ActionTimeout = d
		}
	}
}
