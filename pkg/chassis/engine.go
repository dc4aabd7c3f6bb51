// Package chassis 提供 taskter 的执行引擎和应用装配
package chassis

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/prompt"
	"github.com/KodaTao/taskter/pkg/running"
	"github.com/KodaTao/taskter/pkg/types"
)

// 离线降级的结果文本
const (
	FallbackSuccessComment = "Tool available. Task considered complete."
	FallbackFailureComment = "Required tool not available."
)

// fallbackTool 离线降级时判定成功所需的工具
const fallbackTool = "send_email"

// Engine 执行引擎
// 一次 Execute 驱动 Agent 与模型之间的工具调用循环，直到模型给出文本或工具失败
type Engine struct {
	cfg        *config.Config
	registry   *function.Registry
	tracker    running.Tracker
	httpClient *http.Client
	activity   observability.Journal
	responses  observability.Journal
	adapters   AdapterFactory
	maxTurns   int
	client     *llm.Client
}

// NewEngine 创建执行引擎
// 未指定的活动日志和响应日志按配置中的路径创建
func NewEngine(cfg *config.Config, registry *function.Registry, tracker running.Tracker, opts ...EngineOption) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if registry == nil {
		registry = function.NewRegistry()
	}
	e := &Engine{
		cfg:      cfg,
		registry: registry,
		tracker:  tracker,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.activity == nil {
		e.activity = observability.NewActivityLog(cfg.Paths.Log)
	}
	if e.responses == nil {
		e.responses = observability.NewActivityLog(cfg.Paths.ResponsesLog)
	}
	if e.adapters == nil {
		e.adapters = ConfigAdapterFactory(cfg)
	}
	e.client = llm.NewClient(e.httpClient, e.responses)
	return e
}

// Registry 返回引擎使用的工具注册表
func (e *Engine) Registry() *function.Registry {
	return e.registry
}

// Execute 让 Agent 处理一个任务，task 为 nil 时为心跳执行
// 不返回 error：工具失败得到 Failure，推理失败走离线降级
func (e *Engine) Execute(ctx context.Context, agent *types.Agent, task *types.Task) types.ExecutionResult {
	if observability.RunID(ctx) == "" {
		ctx = observability.WithRunID(ctx, uuid.NewString())
	}
	ctx = observability.WithAgentID(ctx, agent.ID)

	guard := running.Acquire(ctx, e.tracker, agent.ID)
	defer guard.Release()

	if task != nil {
		e.record(fmt.Sprintf("Agent %d executing task %d: %s", agent.ID, task.ID, task.Title))
	} else {
		e.record(fmt.Sprintf("Agent %d executing without a task", agent.ID))
	}

	adapter := e.adapters(SelectProvider(agent))
	provider := adapter.Name()
	hasFallbackTool := agent.HasTool(fallbackTool)

	apiKey := e.apiKey(adapter)
	if adapter.RequiresAPIKey() && apiKey == "" {
		e.record("Executing without API key")
		return e.finish(ctx, provider, e.simulate(agent, hasFallbackTool))
	}
	observability.DebugContext(ctx, "Executing agent", "provider", provider, "model", agent.Model, "api_key", llm.MaskAPIKey(apiKey))

	history := adapter.BuildInitialHistory(agent, prompt.BuildUserPrompt(task))
	for turn := 0; ; turn++ {
		if e.maxTurns > 0 && turn >= e.maxTurns {
			msg := fmt.Sprintf("Exceeded maximum of %d tool calls", e.maxTurns)
			e.record(fmt.Sprintf("Agent %d failed: %s", agent.ID, msg))
			return e.finish(ctx, provider, types.Failure(msg))
		}

		action, err := e.client.Infer(ctx, adapter, agent, apiKey, history)
		if err != nil {
			observability.WarnContext(ctx, "Inference failed", "provider", provider, "error", err)
			e.record(fmt.Sprintf("API request failed; falling back to local simulation: %v", err))
			return e.finish(ctx, provider, e.simulate(agent, hasFallbackTool))
		}

		if !action.IsToolCall() {
			e.record(fmt.Sprintf("Agent %d finished successfully: %s", agent.ID, action.Content))
			return e.finish(ctx, provider, types.Success(action.Content))
		}

		e.record(fmt.Sprintf("Agent %d calling tool %s with args %s", agent.ID, action.Name, llm.EncodeArguments(action.Args)))
		output, err := e.registry.Execute(ctx, action.Name, action.Args)
		if err != nil {
			msg := fmt.Sprintf("Tool %s failed: %v", action.Name, err)
			e.record(fmt.Sprintf("Agent %d failed: %s", agent.ID, msg))
			return e.finish(ctx, provider, types.Failure(msg))
		}
		e.record(fmt.Sprintf("Tool %s responded with %s", action.Name, output))
		adapter.AppendToolResult(agent, &history, action.Name, action.Args, output, action.CallID)
	}
}

// apiKey 配置优先，其次是适配器声明的环境变量
func (e *Engine) apiKey(adapter llm.Adapter) string {
	if key := e.cfg.APIKey(adapter.Name()); key != "" {
		return key
	}
	if !adapter.RequiresAPIKey() {
		return ""
	}
	return strings.TrimSpace(os.Getenv(adapter.APIKeyEnvVar()))
}

// simulate 离线降级：Agent 配置了 send_email 即视为完成
func (e *Engine) simulate(agent *types.Agent, hasFallbackTool bool) types.ExecutionResult {
	if hasFallbackTool {
		e.record(fmt.Sprintf("Agent %d finished successfully: %s", agent.ID, FallbackSuccessComment))
		return types.Success(FallbackSuccessComment)
	}
	e.record(fmt.Sprintf("Agent %d failed: %s", agent.ID, FallbackFailureComment))
	return types.Failure(FallbackFailureComment)
}

func (e *Engine) finish(ctx context.Context, provider string, result types.ExecutionResult) types.ExecutionResult {
	observability.ExecutionsTotal.WithLabelValues(provider, string(result.Outcome)).Inc()
	observability.InfoContext(ctx, "Agent execution finished", "provider", provider, "outcome", result.Outcome)
	return result
}

func (e *Engine) record(message string) {
	e.activity.Record(message)
}
