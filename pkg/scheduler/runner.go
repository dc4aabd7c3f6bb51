package scheduler

import (
	"context"
	"log/slog"

	"github.com/KodaTao/taskter/pkg/types"
)

//go:generate mockgen -source=runner.go -destination=mock_runner_test.go -package=scheduler

// Runner 执行一次 Agent 调用，task 为 nil 表示心跳
type Runner interface {
	Execute(ctx context.Context, agent *types.Agent, task *types.Task) types.ExecutionResult
}

// RunnerFunc 函数适配器
type RunnerFunc func(ctx context.Context, agent *types.Agent, task *types.Task) types.ExecutionResult

func (f RunnerFunc) Execute(ctx context.Context, agent *types.Agent, task *types.Task) types.ExecutionResult {
	return f(ctx, agent, task)
}

// Notifier 接收每次触发的结果，例如推送到 Telegram
type Notifier interface {
	Notify(ctx context.Context, report FiringReport)
}

// cronLogger 将 cron 内部日志转到 slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
