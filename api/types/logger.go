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

import (
	"log"
	"os"
)

// Logger 组件日志接口，由外部注入
type Logger interface {
	Printf(format string, v ...interface{})
}

// this is a safeguard, breaking on compile time in case
// `log.Logger` does not adhere to our `Logger` interface.
var _ Logger = &log.Logger{}

// DefaultLogger returns the fallback `Logger` used when the config does not
// carry one.
func DefaultLogger() *log.Logger {
	return log.New(os.Stdout, "", log.LstdFlags)
}

type prefixLogger struct {
	prefix string
	target Logger
}

func (l *prefixLogger) Printf(format string, v ...interface{}) {
	l.target.Printf(l.prefix+" "+format, v...)
}

// ModuleLogger wraps target with a module tag, e.g. "[v11-client]".
// 每个模块使用独立的日志前缀。
func ModuleLogger(module string, target Logger) Logger {
	if target == nil {
		target = DefaultLogger()
	}
	return &prefixLogger{prefix: "[" + module + "]", target: target}
}
