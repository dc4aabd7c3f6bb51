// Package llm 提供 LLM 适配层接口和共享的推理请求实现
package llm

import (
	"github.com/KodaTao/taskter/pkg/types"
)

// Adapter 提供商适配器接口
// 每个提供商（Gemini、OpenAI、Ollama）负责各自的请求格式、历史格式和响应解析
type Adapter interface {
	// Name 返回提供商名称
	Name() string

	// APIKeyEnvVar 返回读取 API Key 的环境变量名
	APIKeyEnvVar() string

	// RequiresAPIKey 没有 API Key 时是否应直接走离线降级
	RequiresAPIKey() bool

	// BuildInitialHistory 构建初始对话历史
	BuildInitialHistory(agent *types.Agent, userPrompt string) History

	// ToolsPayload 将 Agent 的工具声明转换为提供商的 tools 格式
	ToolsPayload(agent *types.Agent) any

	// Endpoint 返回请求地址
	Endpoint(agent *types.Agent) string

	// RequestBody 构建请求体
	RequestBody(agent *types.Agent, history History, tools any) any

	// Headers 返回请求头
	Headers(apiKey string) []Header

	// ParseResponse 从响应 JSON 中提取模型动作
	ParseResponse(body []byte) (ModelAction, error)

	// AppendToolResult 把一次工具调用及其输出追加到历史
	AppendToolResult(agent *types.Agent, history *History, toolName string, args map[string]any, output string, callID string)
}

// History 对话历史，元素为可直接 JSON 序列化的消息
type History []any

// Header 请求头键值对
type Header struct {
	Name  string
	Value string
}

// ActionKind 模型动作类别
type ActionKind string

const (
	ActionToolCall ActionKind = "tool_call"
	ActionText     ActionKind = "text"
)

// ModelAction 一次推理解析出的动作：调用工具或给出最终文本
type ModelAction struct {
	Kind ActionKind

	// 工具调用
	Name   string
	Args   map[string]any
	CallID string

	// 文本回复
	Content string
}

// ToolCall 构造工具调用动作，args 为 nil 时补为空对象
func ToolCall(name string, args map[string]any, callID string) ModelAction {
	if args == nil {
		args = map[string]any{}
	}
	return ModelAction{Kind: ActionToolCall, Name: name, Args: args, CallID: callID}
}

// Text 构造文本动作
func Text(content string) ModelAction {
	return ModelAction{Kind: ActionText, Content: content}
}

// IsToolCall 是否为工具调用
func (a ModelAction) IsToolCall() bool {
	return a.Kind == ActionToolCall
}
