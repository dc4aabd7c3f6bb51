// Package gemini 提供 Google Gemini generateContent 适配器
package gemini

import (
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/types"
)

const (
	// DefaultBaseURL 默认 API 地址
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// roleTool 工具结果消息的角色
	roleTool = "tool"
)

// Adapter Gemini 适配器
type Adapter struct {
	baseURL string
}

// New 创建 Gemini 适配器，baseURL 为空时使用默认地址
func New(baseURL string) *Adapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL}
}

var _ llm.Adapter = (*Adapter)(nil)

// Name 返回提供商名称
func (a *Adapter) Name() string { return "gemini" }

// APIKeyEnvVar 返回 API Key 环境变量名
func (a *Adapter) APIKeyEnvVar() string { return "GEMINI_API_KEY" }

// RequiresAPIKey Gemini 必须有 API Key
func (a *Adapter) RequiresAPIKey() bool { return true }

// BuildInitialHistory 系统提示词和用户提示词合并为一条 user 消息
func (a *Adapter) BuildInitialHistory(agent *types.Agent, userPrompt string) llm.History {
	return llm.History{
		&genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: "System: " + agent.SystemPrompt + "\nUser: " + userPrompt}},
		},
	}
}

// AppendToolResult 追加模型的 functionCall 和工具的 functionResponse
func (a *Adapter) AppendToolResult(agent *types.Agent, history *llm.History, toolName string, args map[string]any, output string, callID string) {
	*history = append(*history,
		&genai.Content{
			Role: genai.RoleModel,
			Parts: []*genai.Part{{
				FunctionCall: &genai.FunctionCall{Name: toolName, Args: args},
			}},
		},
		&genai.Content{
			Role: roleTool,
			Parts: []*genai.Part{{
				FunctionResponse: &genai.FunctionResponse{
					Name:     toolName,
					Response: map[string]any{"content": output},
				},
			}},
		},
	)
}

// ToolsPayload 返回 {"functionDeclarations": [...]}
// 参数保持原始 JSON Schema，不转换为 genai.Schema
func (a *Adapter) ToolsPayload(agent *types.Agent) any {
	decls := agent.Tools
	if decls == nil {
		decls = []types.FunctionDeclaration{}
	}
	return map[string]any{"functionDeclarations": decls}
}

// Endpoint 返回 generateContent 地址
func (a *Adapter) Endpoint(agent *types.Agent) string {
	return a.baseURL + "/v1beta/models/" + agent.Model + ":generateContent"
}

// RequestBody 构建请求体
func (a *Adapter) RequestBody(agent *types.Agent, history llm.History, tools any) any {
	return map[string]any{
		"contents": history,
		"tools":    []any{tools},
	}
}

// Headers 返回请求头
func (a *Adapter) Headers(apiKey string) []llm.Header {
	return []llm.Header{
		{Name: "x-goog-api-key", Value: apiKey},
		{Name: "Content-Type", Value: "application/json"},
	}
}

// ParseResponse 只看第一个候选的第一个 part
func (a *Adapter) ParseResponse(body []byte) (llm.ModelAction, error) {
	var resp genai.GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "Malformed API response: "+err.Error())
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 ||
		resp.Candidates[0].Content.Parts[0] == nil {
		return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "No tool call or text response from the model")
	}

	part := resp.Candidates[0].Content.Parts[0]
	if fc := part.FunctionCall; fc != nil {
		if fc.Name == "" {
			return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "Malformed API response: missing field `name`")
		}
		// Gemini 不使用调用关联 ID
		return llm.ToolCall(fc.Name, fc.Args, ""), nil
	}
	if part.Text != "" || firstPartHasText(body) {
		return llm.Text(part.Text), nil
	}
	return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "No tool call or text response from the model")
}

// firstPartHasText 第一个 part 是否带字符串 text 字段，空串也算
// genai.Part 反序列化后无法区分空串和缺省
func firstPartHasText(body []byte) bool {
	var raw struct {
		Candidates []struct {
			Content struct {
				Parts []map[string]json.RawMessage `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return false
	}
	if len(raw.Candidates) == 0 || len(raw.Candidates[0].Content.Parts) == 0 {
		return false
	}
	text, ok := raw.Candidates[0].Content.Parts[0]["text"]
	return ok && len(text) > 0 && text[0] == '"'
}
