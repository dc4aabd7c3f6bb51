package chassis

import (
	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/llm/gemini"
	"github.com/KodaTao/taskter/pkg/llm/ollama"
	"github.com/KodaTao/taskter/pkg/llm/openai"
	"github.com/KodaTao/taskter/pkg/types"
)

// AdapterFactory 按提供商名称创建适配器
type AdapterFactory func(provider string) llm.Adapter

// SelectProvider 返回 Agent 使用的提供商名称
// 显式 provider 优先，其次按模型名前缀推断，默认 gemini
func SelectProvider(agent *types.Agent) string {
	return llm.ProviderFor(agent)
}

// NewAdapter 按名称和配置创建适配器，未知名称回落到 Gemini
func NewAdapter(provider string, cfg *config.Config) llm.Adapter {
	if cfg == nil {
		cfg = config.Default()
	}
	switch provider {
	case llm.ProviderOpenAI:
		o := cfg.Providers.OpenAI
		return openai.New(openai.Config{
			ResponsesEndpoint: o.ResponsesEndpoint,
			ChatEndpoint:      o.ChatEndpoint,
			RequestStyle:      o.RequestStyle,
			ResponseFormat:    o.ResponseFormat,
		})
	case llm.ProviderOllama:
		return ollama.New(cfg.Providers.Ollama.BaseURL)
	default:
		return gemini.New(cfg.Providers.Gemini.BaseURL)
	}
}

// ConfigAdapterFactory 返回基于配置的适配器工厂
func ConfigAdapterFactory(cfg *config.Config) AdapterFactory {
	return func(provider string) llm.Adapter {
		return NewAdapter(provider, cfg)
	}
}
