// Package ollama 提供本地 Ollama /api/chat 适配器
package ollama

import (
	"encoding/json"
	"strings"

	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/llm/openai"
	"github.com/KodaTao/taskter/pkg/types"
)

// DefaultBaseURL 默认服务地址
const DefaultBaseURL = "http://localhost:11434"

// modelPrefixes 模型名中需要去掉的 provider 前缀
var modelPrefixes = []string{"ollama:", "ollama/", "ollama-"}

// Adapter Ollama 适配器
type Adapter struct {
	baseURL string
}

// New 创建 Ollama 适配器，baseURL 为空时使用默认地址
func New(baseURL string) *Adapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL}
}

var _ llm.Adapter = (*Adapter)(nil)

// Name 返回提供商名称
func (a *Adapter) Name() string { return "ollama" }

// APIKeyEnvVar 返回 API Key 环境变量名
func (a *Adapter) APIKeyEnvVar() string { return "OLLAMA_API_KEY" }

// RequiresAPIKey 本地服务不需要 API Key
func (a *Adapter) RequiresAPIKey() bool { return false }

// NormalizeModel 去掉模型名的 ollama 前缀
func NormalizeModel(model string) string {
	model = strings.TrimSpace(model)
	for _, p := range modelPrefixes {
		if rest, ok := strings.CutPrefix(model, p); ok {
			return rest
		}
	}
	return model
}

// BuildInitialHistory 构建 system + user 消息
func (a *Adapter) BuildInitialHistory(agent *types.Agent, userPrompt string) llm.History {
	return llm.History{
		map[string]any{"role": "system", "content": agent.SystemPrompt},
		map[string]any{"role": "user", "content": userPrompt},
	}
}

// AppendToolResult 与 Chat Completions 格式相同
func (a *Adapter) AppendToolResult(agent *types.Agent, history *llm.History, toolName string, args map[string]any, output string, callID string) {
	openai.AppendChatToolResult(history, toolName, args, output, callID)
}

// ToolsPayload 与 Chat Completions 的 tools 格式相同
func (a *Adapter) ToolsPayload(agent *types.Agent) any {
	return openai.ChatTools(agent.Tools)
}

// Endpoint 返回 /api/chat 地址
func (a *Adapter) Endpoint(agent *types.Agent) string {
	return a.baseURL + "/api/chat"
}

// RequestBody 非流式请求，没有工具时省略 tools
func (a *Adapter) RequestBody(agent *types.Agent, history llm.History, tools any) any {
	body := map[string]any{
		"model":    NormalizeModel(agent.Model),
		"messages": history,
		"stream":   false,
	}
	if list, ok := tools.([]any); ok && len(list) > 0 {
		body["tools"] = tools
	}
	return body
}

// Headers 只设置 Content-Type
func (a *Adapter) Headers(apiKey string) []llm.Header {
	return []llm.Header{{Name: "Content-Type", Value: "application/json"}}
}

type chatResponse struct {
	Message *struct {
		ToolCalls []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string          `json:"name"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Response json.RawMessage `json:"response"`
}

// ParseResponse 解析顺序：tool_calls → content 字符串 → content 片段数组 → 顶层 response
func (a *Adapter) ParseResponse(body []byte) (llm.ModelAction, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "Malformed API response: "+err.Error())
	}

	if msg := resp.Message; msg != nil {
		if len(msg.ToolCalls) > 0 {
			tc := msg.ToolCalls[0]
			if tc.Function.Name != "" {
				return llm.ToolCall(tc.Function.Name, llm.DecodeArguments(tc.Function.Arguments), tc.ID), nil
			}
		}
		if text, ok := rawString(msg.Content); ok {
			return llm.Text(text), nil
		}
		var segments []struct {
			Text *string `json:"text"`
		}
		if err := json.Unmarshal(msg.Content, &segments); err == nil {
			var combined strings.Builder
			for _, seg := range segments {
				if seg.Text != nil {
					combined.WriteString(*seg.Text)
				}
			}
			if combined.Len() > 0 {
				return llm.Text(combined.String()), nil
			}
		}
	}
	if text, ok := rawString(resp.Response); ok {
		return llm.Text(text), nil
	}

	return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "No tool call or text response from the model")
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
