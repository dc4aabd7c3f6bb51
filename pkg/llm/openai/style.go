package openai

import "strings"

// Style 请求风格
type Style int

const (
	StyleChat Style = iota
	StyleResponses
)

func (s Style) String() string {
	if s == StyleResponses {
		return "responses"
	}
	return "chat"
}

// responsesPrefixes 默认使用 Responses API 的模型名前缀
var responsesPrefixes = []string{"gpt-5", "gpt5", "gpt-4.1", "gpt4.1", "o1", "o3", "o4", "omni"}

// ParseStyle 解析风格覆盖值，无法识别时返回 false
func ParseStyle(raw string) (Style, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "responses", "responses_api", "responses-api":
		return StyleResponses, true
	case "chat", "chat_completions", "chat-completions":
		return StyleChat, true
	}
	return StyleChat, false
}

// InferStyle 按模型名推断风格
func InferStyle(model string) Style {
	lower := strings.ToLower(model)
	for _, p := range responsesPrefixes {
		if strings.HasPrefix(lower, p) {
			return StyleResponses
		}
	}
	return StyleChat
}
