// Package config 提供配置加载：配置文件、环境变量、兼容旧环境变量和命令行覆盖
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// 默认文件名，相对于 data_dir
const (
	DefaultDataDir          = ".taskter"
	DefaultBoardFile        = "board.json"
	DefaultOKRsFile         = "okrs.json"
	DefaultLogFile          = "logs.log"
	DefaultAgentsFile       = "agents.json"
	DefaultDescriptionFile  = "description.md"
	DefaultEmailConfigFile  = "email_config.json"
	DefaultRunningFile      = "running_agents.json"
	DefaultResponsesLogFile = "api_responses.log"
	DefaultSQLiteFile       = "taskter.db"

	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultTimezone      = "America/New_York"
)

// Config 应用配置
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

// PathsConfig 数据文件路径，空值按 data_dir 推导
type PathsConfig struct {
	DataDir       string `mapstructure:"data_dir"`
	Board         string `mapstructure:"board"`
	OKRs          string `mapstructure:"okrs"`
	Log           string `mapstructure:"log"`
	Agents        string `mapstructure:"agents"`
	Description   string `mapstructure:"description"`
	EmailConfig   string `mapstructure:"email_config"`
	RunningAgents string `mapstructure:"running_agents"`
	ResponsesLog  string `mapstructure:"responses_log"`
}

// ProvidersConfig 各 LLM 提供商配置
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
	Gemini GeminiConfig `mapstructure:"gemini"`
	Ollama OllamaConfig `mapstructure:"ollama"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey            string `mapstructure:"api_key"`
	BaseURL           string `mapstructure:"base_url"`
	ResponsesEndpoint string `mapstructure:"responses_endpoint"`
	ChatEndpoint      string `mapstructure:"chat_endpoint"`
	// RequestStyle responses / chat（及别名），为空时按模型名推断
	RequestStyle string `mapstructure:"request_style"`
	// ResponseFormat 以 { 开头时按 JSON 解析，否则视为 {"type": value}
	ResponseFormat string `mapstructure:"response_format"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// OllamaConfig Ollama 配置
type OllamaConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	// Driver json（默认，兼容 .taskter 目录布局）或 sqlite
	Driver     string `mapstructure:"driver" validate:"oneof=json sqlite"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	Timezone string `mapstructure:"timezone"`
	// MaxConcurrency 单次触发内并发执行的任务上限，0 表示不限
	MaxConcurrency int  `mapstructure:"max_concurrency" validate:"gte=0"`
	Watch          bool `mapstructure:"watch"`
}

// ToolsConfig 工具调用配置
type ToolsConfig struct {
	// Timeout 单次工具调用超时，0 表示不限
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level    string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format   string `mapstructure:"format" validate:"omitempty,oneof=text json"`
	Output   string `mapstructure:"output" validate:"omitempty,oneof=stdout stderr file"`
	FilePath string `mapstructure:"file_path"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TelegramConfig Telegram 通知配置
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	ChatID  int64  `mapstructure:"chat_id"`
}

// ConfigError 配置错误
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

var (
	ErrTelegramToken = &ConfigError{Message: "telegram token is required when telegram is enabled"}
)

// setDefaults 注册默认值；所有键都需要注册，AutomaticEnv 才能覆盖
func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.data_dir", DefaultDataDir)
	for _, key := range []string{"board", "okrs", "log", "agents", "description", "email_config", "running_agents", "responses_log"} {
		v.SetDefault("paths."+key, "")
	}

	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.base_url", "")
	v.SetDefault("providers.openai.responses_endpoint", "")
	v.SetDefault("providers.openai.chat_endpoint", "")
	v.SetDefault("providers.openai.request_style", "")
	v.SetDefault("providers.openai.response_format", "")
	v.SetDefault("providers.gemini.api_key", "")
	v.SetDefault("providers.gemini.base_url", "")
	v.SetDefault("providers.ollama.api_key", "")
	v.SetDefault("providers.ollama.base_url", "")

	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.sqlite_path", "")

	v.SetDefault("scheduler.timezone", DefaultTimezone)
	v.SetDefault("scheduler.max_concurrency", 0)
	v.SetDefault("scheduler.watch", false)

	v.SetDefault("tools.timeout", "0s")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("log.file_path", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
}

// Load 加载配置
// 优先级：Option（命令行）> 环境变量 TASKTER__* > 配置文件 > 旧环境变量 > 默认值
func Load(cfgFile string, opts ...Option) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	disableHost := HostConfigDisabled()

	// 配置文件
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if !disableHost {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./" + DefaultDataDir)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "taskter"))
		}
	}

	// 环境变量：TASKTER_PROVIDERS__OPENAI__API_KEY
	v.SetEnvPrefix("TASKTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if cfgFile != "" || !disableHost {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// 配置文件不存在时使用默认值
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if !disableHost {
		applyLegacyEnv(cfg)
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回不读取任何外部来源的默认配置
func Default(opts ...Option) *Config {
	cfg := &Config{
		Paths:     PathsConfig{DataDir: DefaultDataDir},
		Storage:   StorageConfig{Driver: "json"},
		Scheduler: SchedulerConfig{Timezone: DefaultTimezone},
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Log:       LogConfig{Level: "info", Format: "text", Output: "stderr"},
		Metrics:   MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	_ = cfg.Resolve()
	return cfg
}

// Resolve 推导派生字段：文件路径、provider 端点
func (c *Config) Resolve() error {
	p := &c.Paths
	if strings.TrimSpace(p.DataDir) == "" {
		p.DataDir = DefaultDataDir
	}
	p.Board = resolvePath(p.DataDir, p.Board, DefaultBoardFile)
	p.OKRs = resolvePath(p.DataDir, p.OKRs, DefaultOKRsFile)
	p.Log = resolvePath(p.DataDir, p.Log, DefaultLogFile)
	p.Agents = resolvePath(p.DataDir, p.Agents, DefaultAgentsFile)
	p.Description = resolvePath(p.DataDir, p.Description, DefaultDescriptionFile)
	p.EmailConfig = resolvePath(p.DataDir, p.EmailConfig, DefaultEmailConfigFile)
	p.RunningAgents = resolvePath(p.DataDir, p.RunningAgents, DefaultRunningFile)
	p.ResponsesLog = resolvePath(p.DataDir, p.ResponsesLog, DefaultResponsesLogFile)

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Driver == "" {
		c.Storage.Driver = "json"
	}
	c.Storage.SQLitePath = resolvePath(p.DataDir, c.Storage.SQLitePath, DefaultSQLiteFile)

	if strings.TrimSpace(c.Scheduler.Timezone) == "" {
		c.Scheduler.Timezone = DefaultTimezone
	}

	// OpenAI 端点
	o := &c.Providers.OpenAI
	base := strings.TrimSpace(o.BaseURL)
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	o.BaseURL = strings.TrimRight(base, "/")
	if strings.TrimSpace(o.ResponsesEndpoint) == "" {
		o.ResponsesEndpoint = o.BaseURL + "/v1/responses"
	}
	if strings.TrimSpace(o.ChatEndpoint) == "" {
		o.ChatEndpoint = o.BaseURL + "/v1/chat/completions"
	}
	o.RequestStyle = strings.TrimSpace(o.RequestStyle)
	o.ResponseFormat = strings.TrimSpace(o.ResponseFormat)
	if strings.HasPrefix(o.ResponseFormat, "{") && !json.Valid([]byte(o.ResponseFormat)) {
		return &ConfigError{Message: "providers.openai.response_format is not valid JSON"}
	}

	g := &c.Providers.Gemini
	if strings.TrimSpace(g.BaseURL) == "" {
		g.BaseURL = DefaultGeminiBaseURL
	}
	g.BaseURL = strings.TrimRight(strings.TrimSpace(g.BaseURL), "/")

	ol := &c.Providers.Ollama
	if strings.TrimSpace(ol.BaseURL) == "" {
		ol.BaseURL = DefaultOllamaBaseURL
	}
	ol.BaseURL = strings.TrimRight(strings.TrimSpace(ol.BaseURL), "/")

	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return &ConfigError{Message: "invalid config: " + err.Error()}
	}
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return ErrTelegramToken
	}
	return nil
}

// APIKey 返回指定 provider 的 API Key（结构化配置或旧环境变量），未配置返回空串
func (c *Config) APIKey(provider string) string {
	var key string
	switch strings.ToLower(provider) {
	case "openai":
		key = c.Providers.OpenAI.APIKey
	case "gemini":
		key = c.Providers.Gemini.APIKey
	case "ollama":
		key = c.Providers.Ollama.APIKey
	}
	return strings.TrimSpace(key)
}

// resolvePath 显式路径优先，否则拼接 data_dir
func resolvePath(dataDir, explicit, name string) string {
	if strings.TrimSpace(explicit) != "" {
		return expandHome(explicit)
	}
	return filepath.Join(expandHome(dataDir), name)
}

// expandHome 展开路径中的 ~ 为用户主目录
func expandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
