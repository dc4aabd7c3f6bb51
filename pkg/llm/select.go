package llm

import (
	"strings"

	"github.com/KodaTao/taskter/pkg/types"
)

// 提供商名称
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// ProviderFor 选择 Agent 使用的提供商
// 显式配置优先，否则按模型名前缀推断，默认 gemini
func ProviderFor(agent *types.Agent) string {
	switch agent.ProviderName() {
	case ProviderGemini, "google":
		return ProviderGemini
	case ProviderOpenAI:
		return ProviderOpenAI
	case ProviderOllama:
		return ProviderOllama
	}

	model := strings.ToLower(strings.TrimSpace(agent.Model))
	switch {
	case strings.HasPrefix(model, "gemini"):
		return ProviderGemini
	case strings.HasPrefix(model, "gpt-"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "ollama"):
		return ProviderOllama
	}
	return ProviderGemini
}
