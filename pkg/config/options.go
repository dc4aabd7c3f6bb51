package config

// Option 配置覆盖函数，对应命令行参数，优先级最高
type Option func(*Config)

// WithDataDir 设置数据目录
func WithDataDir(dir string) Option {
	return func(c *Config) {
		if dir != "" {
			c.Paths.DataDir = dir
		}
	}
}

// WithPaths 覆盖非空的路径字段
func WithPaths(p PathsConfig) Option {
	return func(c *Config) {
		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&c.Paths.DataDir, p.DataDir)
		set(&c.Paths.Board, p.Board)
		set(&c.Paths.OKRs, p.OKRs)
		set(&c.Paths.Log, p.Log)
		set(&c.Paths.Agents, p.Agents)
		set(&c.Paths.Description, p.Description)
		set(&c.Paths.EmailConfig, p.EmailConfig)
		set(&c.Paths.RunningAgents, p.RunningAgents)
		set(&c.Paths.ResponsesLog, p.ResponsesLog)
	}
}

// WithOpenAI 覆盖非空的 OpenAI 字段
func WithOpenAI(o OpenAIConfig) Option {
	return func(c *Config) {
		set := func(dst *string, v string) {
			if v != "" {
				*dst = v
			}
		}
		set(&c.Providers.OpenAI.APIKey, o.APIKey)
		set(&c.Providers.OpenAI.BaseURL, o.BaseURL)
		set(&c.Providers.OpenAI.ResponsesEndpoint, o.ResponsesEndpoint)
		set(&c.Providers.OpenAI.ChatEndpoint, o.ChatEndpoint)
		set(&c.Providers.OpenAI.RequestStyle, o.RequestStyle)
		set(&c.Providers.OpenAI.ResponseFormat, o.ResponseFormat)
	}
}

// WithGeminiAPIKey 设置 Gemini API Key
func WithGeminiAPIKey(key string) Option {
	return func(c *Config) {
		if key != "" {
			c.Providers.Gemini.APIKey = key
		}
	}
}

// WithOllama 设置 Ollama API Key 与 Base URL
func WithOllama(apiKey, baseURL string) Option {
	return func(c *Config) {
		if apiKey != "" {
			c.Providers.Ollama.APIKey = apiKey
		}
		if baseURL != "" {
			c.Providers.Ollama.BaseURL = baseURL
		}
	}
}

// WithStorageDriver 设置存储驱动
func WithStorageDriver(driver string) Option {
	return func(c *Config) {
		if driver != "" {
			c.Storage.Driver = driver
		}
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(c *Config) {
		if level != "" {
			c.Log.Level = level
		}
	}
}
