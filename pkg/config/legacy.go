package config

import (
	"os"
	"strings"
)

// HostConfigDisabled TASKTER_DISABLE_HOST_CONFIG 为真时，不读取宿主机上的配置文件和旧环境变量
func HostConfigDisabled() bool {
	return envFlag("TASKTER_DISABLE_HOST_CONFIG")
}

func envFlag(key string) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "", "0", "false", "off":
		return false
	}
	return true
}

// applyLegacyEnv 结构化配置为空时，回退到旧的环境变量
func applyLegacyEnv(c *Config) {
	fill := func(dst *string, env string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}

	o := &c.Providers.OpenAI
	fill(&o.APIKey, "OPENAI_API_KEY")
	fill(&o.BaseURL, "OPENAI_BASE_URL")
	fill(&o.ResponsesEndpoint, "OPENAI_RESPONSES_ENDPOINT")
	fill(&o.ChatEndpoint, "OPENAI_CHAT_ENDPOINT")
	fill(&o.RequestStyle, "OPENAI_REQUEST_STYLE")
	fill(&o.ResponseFormat, "OPENAI_RESPONSE_FORMAT")

	fill(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")

	fill(&c.Providers.Ollama.APIKey, "OLLAMA_API_KEY")
	fill(&c.Providers.Ollama.BaseURL, "OLLAMA_BASE_URL")
}
