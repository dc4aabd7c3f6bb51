package chassis

import (
	"net/http"

	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/observability"
)

// EngineOption 执行引擎选项
type EngineOption func(*Engine)

// WithHTTPClient 设置推理请求使用的 HTTP 客户端
func WithHTTPClient(c *http.Client) EngineOption {
	return func(e *Engine) {
		e.httpClient = c
	}
}

// WithActivityLog 设置活动日志
func WithActivityLog(j observability.Journal) EngineOption {
	return func(e *Engine) {
		e.activity = j
	}
}

// WithResponsesLog 设置请求/响应调试日志
func WithResponsesLog(j observability.Journal) EngineOption {
	return func(e *Engine) {
		e.responses = j
	}
}

// WithAdapterFactory 替换适配器工厂，测试中用于指向本地服务
func WithAdapterFactory(f AdapterFactory) EngineOption {
	return func(e *Engine) {
		e.adapters = f
	}
}

// WithMaxTurns 限制单次执行的工具往返次数，0 表示不限
func WithMaxTurns(n int) EngineOption {
	return func(e *Engine) {
		e.maxTurns = n
	}
}

// Option App 选项
type Option func(*App)

// WithBinary 设置 CLI 元工具调用的可执行文件
func WithBinary(path string) Option {
	return func(a *App) {
		a.binary = path
	}
}

// WithFunctions 额外注册的 Function
func WithFunctions(fns ...function.Function) Option {
	return func(a *App) {
		a.extra = append(a.extra, fns...)
	}
}

// WithEngineOptions 透传给执行引擎的选项
func WithEngineOptions(opts ...EngineOption) Option {
	return func(a *App) {
		a.engineOpts = append(a.engineOpts, opts...)
	}
}

// WithoutTelegram 不创建 Telegram Bot，一次性命令使用
func WithoutTelegram() Option {
	return func(a *App) {
		a.noTelegram = true
	}
}
