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

package engine

import (
	"github.com/robfig/cron/v3"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// cronParser 接受 5 或 6 字段表达式以及 @every 等描述符
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSchedule 校验 cron 表达式
func ValidateSchedule(spec string) error {
	_, err := cronParser.Parse(spec)
	return err
}

// Scheduler registers a cron job per scheduled_task rule. On every tick it
// injects the reserved scheduled_task event carrying the rule itself into the
// engine, bypassing the rule index.
//
// Scheduler 定时任务调度器。
type Scheduler struct {
	logger types.Logger
	runner *cron.Cron
	// 已注册的任务，reload 时整体取消
	entries []cron.EntryID
}

// NewScheduler 创建调度器
func NewScheduler(logger types.Logger) *Scheduler {
	if logger == nil {
		logger = types.DefaultLogger()
	}
	return &Scheduler{
		logger: logger,
		runner: cron.New(cron.WithParser(cronParser)),
	}
}

// Register filters rules for scheduled tasks and binds each valid cron
// expression. An invalid expression only skips its own rule.
func (s *Scheduler) Register(rules []*types.Rule, engine *Engine) []cron.EntryID {
	var scheduled []*types.Rule
	for _, rule := range rules {
		if rule.EventType == types.EventScheduledTask {
			scheduled = append(scheduled, rule)
		}
	}
	s.logger.Printf("registering %d scheduled tasks", len(scheduled))

	for _, rule := range scheduled {
		rule := rule
		if err := ValidateSchedule(rule.Schedule); err != nil {
			s.logger.Printf("invalid cron expression %q for rule [%s]: %v", rule.Schedule, rule.Name, err)
			continue
		}
		id, err := s.runner.AddFunc(rule.Schedule, func() {
			s.logger.Printf("firing scheduled task [%s]", rule.Name)
			engine.HandleEvent(types.EventScheduledTask, types.Event{
				Name: types.EventScheduledTask,
				Rule: rule,
			})
		})
		if err != nil {
			s.logger.Printf("register scheduled task [%s]: %v", rule.Name, err)
			continue
		}
		s.entries = append(s.entries, id)
	}
	return s.entries
}

// Start 启动调度
func (s *Scheduler) Start() {
	s.runner.Start()
}

// Stop cancels every registered job. Must complete before a new rule set
// registers its jobs, so a logical rule never fires twice.
func (s *Scheduler) Stop() {
	s.runner.Stop()
	for _, id := range s.entries {
		s.runner.Remove(id)
	}
	s.entries = nil
}
