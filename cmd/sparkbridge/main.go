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

// SparkBridge 网关进程入口：连接机器人协议端，驱动规则引擎，
// 暴露管理 API。
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sparkbridge/sparkbridge3/adapter"
	"github.com/sparkbridge/sparkbridge3/api/types"
	"github.com/sparkbridge/sparkbridge3/config"
	"github.com/sparkbridge/sparkbridge3/engine"
	"github.com/sparkbridge/sparkbridge3/store"
	"github.com/sparkbridge/sparkbridge3/webapi"

	// 注册两代适配器构造器
	_ "github.com/sparkbridge/sparkbridge3/adapter/v11"
	_ "github.com/sparkbridge/sparkbridge3/adapter/v12"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"

	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "sparkbridge",
	Short:   "SparkBridge - OneBot gateway with a rule-based automation engine",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")
}

// newLogger zerolog 控制台日志，Printf 形式注入到各组件
func newLogger() types.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	logger := zerolog.New(console).With().Timestamp().Logger()
	return &logger
}

func run() error {
	logger := newLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if len(cfg.Adapters) == 0 {
		return fmt.Errorf("no adapter binding configured")
	}

	adapterConfig := types.NewConfig(
		types.WithLogger(logger),
		types.WithActionTimeout(cfg.ActionTimeout),
	)
	// 当前进程绑定单个机器人身份，使用第一条绑定
	chatAdapter, err := adapter.Registry.New(cfg.Adapters[0], adapterConfig)
	if err != nil {
		return err
	}

	ruleStore := store.New(cfg.RulePath())
	ruleEngine := engine.New(ruleStore, logger)
	if err := ruleEngine.Initialize(chatAdapter); err != nil {
		return fmt.Errorf("initialize rule engine: %w", err)
	}

	api := webapi.New(cfg, ruleEngine, ruleStore, logger)
	if err := api.Start(); err != nil {
		return err
	}
	if err := chatAdapter.Start(); err != nil {
		return err
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	_ = api.Stop()
	_ = chatAdapter.Stop()
	ruleEngine.Shutdown()
	return nil
}
