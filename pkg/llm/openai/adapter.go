// Package openai 提供 OpenAI 适配器，支持 Responses API 和 Chat Completions 两种请求风格
package openai

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/types"
)

// DefaultCallID 响应中没有调用 ID 时使用的默认值
const DefaultCallID = "tool_call_1"

// Config OpenAI 适配器配置
type Config struct {
	// ResponsesEndpoint Responses API 完整地址
	ResponsesEndpoint string
	// ChatEndpoint Chat Completions 完整地址
	ChatEndpoint string
	// RequestStyle 请求风格覆盖，为空或无法识别时按模型名推断
	RequestStyle string
	// ResponseFormat 以 { 开头时按 JSON 解析，否则视为 {"type": value}
	ResponseFormat string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ResponsesEndpoint: "https://api.openai.com/v1/responses",
		ChatEndpoint:      "https://api.openai.com/v1/chat/completions",
	}
}

// Adapter OpenAI 适配器
type Adapter struct {
	config Config
}

// New 创建 OpenAI 适配器，空端点使用默认值
func New(cfg Config) *Adapter {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.ResponsesEndpoint) == "" {
		cfg.ResponsesEndpoint = def.ResponsesEndpoint
	}
	if strings.TrimSpace(cfg.ChatEndpoint) == "" {
		cfg.ChatEndpoint = def.ChatEndpoint
	}
	return &Adapter{config: cfg}
}

var _ llm.Adapter = (*Adapter)(nil)

// Name 返回提供商名称
func (a *Adapter) Name() string { return "openai" }

// APIKeyEnvVar 返回 API Key 环境变量名
func (a *Adapter) APIKeyEnvVar() string { return "OPENAI_API_KEY" }

// RequiresAPIKey OpenAI 必须有 API Key
func (a *Adapter) RequiresAPIKey() bool { return true }

// StyleFor 返回 Agent 使用的请求风格
func (a *Adapter) StyleFor(agent *types.Agent) Style {
	if style, ok := ParseStyle(a.config.RequestStyle); ok {
		return style
	}
	return InferStyle(agent.Model)
}

// BuildInitialHistory 构建初始历史
// Responses 风格的系统提示词放在 instructions 字段，历史里只有用户消息
func (a *Adapter) BuildInitialHistory(agent *types.Agent, userPrompt string) llm.History {
	if a.StyleFor(agent) == StyleResponses {
		return llm.History{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "input_text", "text": userPrompt},
				},
			},
		}
	}
	return llm.History{
		map[string]any{"role": "system", "content": agent.SystemPrompt},
		map[string]any{"role": "user", "content": userPrompt},
	}
}

// AppendToolResult 追加工具调用和工具输出
func (a *Adapter) AppendToolResult(agent *types.Agent, history *llm.History, toolName string, args map[string]any, output string, callID string) {
	if callID == "" {
		callID = DefaultCallID
	}
	arguments := llm.EncodeArguments(args)

	if a.StyleFor(agent) == StyleResponses {
		*history = append(*history,
			map[string]any{
				"type":      "function_call",
				"call_id":   callID,
				"name":      toolName,
				"arguments": arguments,
			},
			map[string]any{
				"type":    "function_call_output",
				"call_id": callID,
				"output":  output,
			},
		)
		return
	}

	AppendChatToolResult(history, toolName, args, output, callID)
}

// AppendChatToolResult 以 Chat Completions 格式追加 assistant tool_calls 和 tool 消息，Ollama 复用
func AppendChatToolResult(history *llm.History, toolName string, args map[string]any, output string, callID string) {
	if callID == "" {
		callID = DefaultCallID
	}
	*history = append(*history,
		map[string]any{
			"role": "assistant",
			"tool_calls": []any{
				map[string]any{
					"id":   callID,
					"type": "function",
					"function": map[string]any{
						"name":      toolName,
						"arguments": llm.EncodeArguments(args),
					},
				},
			},
		},
		map[string]any{
			"role":         "tool",
			"tool_call_id": callID,
			"name":         toolName,
			"content":      output,
		},
	)
}

// ToolsPayload 转换工具声明
func (a *Adapter) ToolsPayload(agent *types.Agent) any {
	if a.StyleFor(agent) == StyleResponses {
		tools := make([]any, 0, len(agent.Tools))
		for _, t := range agent.Tools {
			tools = append(tools, map[string]any{
				"type":        "function",
				"name":        t.Name,
				"description": t.Description,
				"parameters":  StrictParameters(t.Parameters),
				"strict":      true,
			})
		}
		return tools
	}
	return ChatTools(agent.Tools)
}

// ChatTools 转换为 Chat Completions 的 tools 格式，Ollama 复用
func ChatTools(decls []types.FunctionDeclaration) []any {
	tools := make([]any, 0, len(decls))
	for _, t := range decls {
		params := t.Parameters
		if params == nil {
			params = map[string]any{}
		}
		tools = append(tools, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  params,
			},
		})
	}
	return tools
}

// StrictParameters 为 strict 模式补全对象 schema：
// 缺少 additionalProperties 时补 false，required 包含全部属性名
// 返回新 map，不修改入参
func StrictParameters(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	if t, _ := out["type"].(string); t != "object" {
		return out
	}
	if _, ok := out["additionalProperties"]; !ok {
		out["additionalProperties"] = false
	}

	props, ok := out["properties"].(map[string]any)
	if !ok {
		return out
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var required []any
	seen := make(map[string]bool)
	switch existing := out["required"].(type) {
	case []any:
		for _, r := range existing {
			if s, ok := r.(string); ok {
				required = append(required, s)
				seen[s] = true
			}
		}
	case []string:
		for _, s := range existing {
			required = append(required, s)
			seen[s] = true
		}
	}
	for _, k := range keys {
		if !seen[k] {
			required = append(required, k)
		}
	}
	if required == nil {
		required = []any{}
	}
	out["required"] = required
	return out
}

// Endpoint 按风格返回地址
func (a *Adapter) Endpoint(agent *types.Agent) string {
	if a.StyleFor(agent) == StyleResponses {
		return a.config.ResponsesEndpoint
	}
	return a.config.ChatEndpoint
}

// RequestBody 构建请求体
func (a *Adapter) RequestBody(agent *types.Agent, history llm.History, tools any) any {
	var body map[string]any
	if a.StyleFor(agent) == StyleResponses {
		body = map[string]any{
			"model":        agent.Model,
			"instructions": agent.SystemPrompt,
			"input":        history,
			"tool_choice":  "auto",
		}
		if list, ok := tools.([]any); ok && len(list) > 0 {
			body["tools"] = tools
		}
	} else {
		body = map[string]any{
			"model":       agent.Model,
			"messages":    history,
			"tools":       tools,
			"tool_choice": "auto",
		}
	}
	if format, ok := a.responseFormat(); ok {
		body["response_format"] = format
	}
	return body
}

// responseFormat 解析 response_format 覆盖
func (a *Adapter) responseFormat() (any, bool) {
	raw := strings.TrimSpace(a.config.ResponseFormat)
	if raw == "" {
		return nil, false
	}
	if strings.HasPrefix(raw, "{") {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, false
		}
		return v, true
	}
	return map[string]any{"type": raw}, true
}

// Headers 返回请求头
func (a *Adapter) Headers(apiKey string) []llm.Header {
	return []llm.Header{
		{Name: "Authorization", Value: "Bearer " + apiKey},
		{Name: "Content-Type", Value: "application/json"},
	}
}
