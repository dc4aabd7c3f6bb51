package openai

import (
	"encoding/json"

	"github.com/KodaTao/taskter/pkg/llm"
)

// API 响应结构
// 字段类型在不同 API 之间可能不同，易变字段保留为 RawMessage

type apiResponse struct {
	Output     []outputItem    `json:"output"`
	OutputText json.RawMessage `json:"output_text"`
	Choices    []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type outputItem struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	CallID    string          `json:"call_id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Content   json.RawMessage `json:"content"`
}

type contentItem struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Text      json.RawMessage `json:"text"`
}

// ParseResponse 同时兼容 Responses API 和 Chat Completions 的响应
// 顺序：output[] 中的 function_call / message → 顶层 output_text → choices[0]
func (a *Adapter) ParseResponse(body []byte) (llm.ModelAction, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "Malformed API response: "+err.Error())
	}

	// Responses API
	if resp.Output != nil {
		for _, out := range resp.Output {
			switch out.Type {
			case "function_call":
				if out.Name != "" {
					callID := out.CallID
					if callID == "" {
						callID = out.ID
					}
					return llm.ToolCall(out.Name, llm.DecodeArguments(out.Arguments), callID), nil
				}
			case "message":
				var items []contentItem
				if err := json.Unmarshal(out.Content, &items); err != nil {
					continue
				}
				for _, item := range items {
					if item.Type == "tool_call" && item.Name != "" {
						return llm.ToolCall(item.Name, llm.DecodeArguments(item.Arguments), item.ID), nil
					}
					if item.Type == "output_text" {
						if text, ok := jsonString(item.Text); ok {
							return llm.Text(text), nil
						}
					}
				}
			}
		}
		if text, ok := jsonString(resp.OutputText); ok {
			return llm.Text(text), nil
		}
	}

	// Chat Completions
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) > 0 {
			tc := msg.ToolCalls[0]
			if tc.Function.Name != "" {
				return llm.ToolCall(tc.Function.Name, llm.DecodeArguments(tc.Function.Arguments), tc.ID), nil
			}
		}
		if text, ok := jsonString(msg.Content); ok {
			return llm.Text(text), nil
		}
	}

	return llm.ModelAction{}, llm.NewResponseFormatError(a.Name(), "No tool call or text response from the model")
}

// jsonString 原始值是 JSON 字符串时返回其内容
func jsonString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
