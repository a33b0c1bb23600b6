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
	"regexp"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/sparkbridge/sparkbridge3/api/types"
)

// 条件事实类型
const (
	FactMessageContent = "message_content"
	FactUserID         = "user_id"
	FactGroupID        = "group_id"
)

// 条件操作符
const (
	OpEquals         = "equals"
	OpContains       = "contains"
	OpMatchesRegex   = "matches_regex"
	OpEqualsVariable = "equals_variable"
	OpExpression     = "expression"
)

// DispatchContext is built once per rule evaluation: the triggering event, a
// private copy of the variable table, and a dirty flag set by set_variable.
// Contexts are never shared across concurrent dispatches.
//
// DispatchContext 单次规则评估的上下文。
type DispatchContext struct {
	Event     types.Event
	Variables map[string]string
	Dirty     bool
}

// factValue 把事实类型映射到事件字段；未知类型返回 nil 事实
func factValue(factType string, ctx *DispatchContext) (string, bool) {
	switch factType {
	case FactMessageContent:
		return ctx.Event.Message, true
	case FactUserID:
		return ctx.Event.UserID, true
	case FactGroupID:
		return ctx.Event.GroupID, true
	default:
		return "", false
	}
}

// comparisonValue resolves the value side of the condition. equals_variable
// looks the value up as a variable name; the fact side always comes from the
// event. The asymmetry is deliberate and matched by tests.
func comparisonValue(condition types.Condition, ctx *DispatchContext) string {
	if condition.Operator == OpEqualsVariable {
		return ctx.Variables[condition.Value]
	}
	return condition.Value
}

// exprCache 已编译表达式缓存
var exprCache sync.Map

func compiledProgram(source string) (*vm.Program, error) {
	if cached, ok := exprCache.Load(source); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(source, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, err
	}
	exprCache.Store(source, program)
	return program, nil
}

// evaluateExpression 执行 expression 操作符，事件字段和变量表都可在
// 表达式里访问，例如 `message contains "hi" && vars.greeting == "on"`
func evaluateExpression(source string, ctx *DispatchContext) bool {
	program, err := compiledProgram(source)
	if err != nil {
		return false
	}
	env := map[string]interface{}{
		"event":   ctx.Event.Raw,
		"name":    ctx.Event.Name,
		"kind":    ctx.Event.Kind,
		"message": ctx.Event.Message,
		"userId":  ctx.Event.UserID,
		"groupId": ctx.Event.GroupID,
		"vars":    ctx.Variables,
	}
	out, err := vm.Run(program, env)
	if err != nil {
		return false
	}
	result, ok := out.(bool)
	return ok && result
}

// evaluateCondition 单条件求值
func evaluateCondition(condition types.Condition, ctx *DispatchContext) bool {
	if condition.Operator == OpExpression {
		return evaluateExpression(condition.Value, ctx)
	}

	fact, known := factValue(condition.Type, ctx)
	value := comparisonValue(condition, ctx)

	switch condition.Operator {
	case OpEquals, OpEqualsVariable:
		return known && fact == value
	case OpContains:
		return known && strings.Contains(fact, value)
	case OpMatchesRegex:
		if !known {
			return false
		}
		matched, err := regexp.MatchString(value, fact)
		return err == nil && matched
	default:
		return false
	}
}

// EvaluateConditions AND-combines the rule's conditions, short-circuiting on
// the first failure. An empty condition list passes.
func EvaluateConditions(conditions []types.Condition, ctx *DispatchContext) bool {
	for _, condition := range conditions {
		if !evaluateCondition(condition, ctx) {
			return false
		}
	}
	return true
}
