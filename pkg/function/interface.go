// Package function 提供 Agent 可调用工具的接口、注册表和执行器
package function

import (
	"context"
	"reflect"
)

// Function 是所有可调用工具的基础接口
// 模型通过 Name() 识别工具，通过 Description() 理解工具用途
type Function interface {
	// Name 返回工具的唯一标识符
	// 命名规范：小写字母、数字、下划线，如 "run_bash", "send_email"
	Name() string

	// Description 返回工具描述
	Description() string

	// Execute 执行工具，返回给模型的文本结果
	// params 的类型由 ParamsType() 决定，参数来自模型给出的 JSON 对象
	Execute(ctx context.Context, params any) (string, error)

	// ParamsType 返回参数结构体的反射类型
	// 注册表据此解码参数并生成 JSON Schema
	// 返回 nil 表示该工具不需要参数
	ParamsType() reflect.Type
}

// FunctionInfo 工具元信息，用于 API 返回和命令行展示
type FunctionInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	AliasOf     string         `json:"alias_of,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}
