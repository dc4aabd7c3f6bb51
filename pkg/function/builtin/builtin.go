// Package builtin 提供内置工具：命令执行、邮件、网络检索、文件与看板操作
package builtin

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/storage"
)

// DefaultModel create_agent 未指定模型时使用的模型
const DefaultModel = "gemini-2.5-flash"

// Reloader 调度器重载接口，schedule_agent 修改计划后调用
type Reloader interface {
	Reload(ctx context.Context) error
}

// Deps 内置工具的依赖
type Deps struct {
	Store    storage.Store
	Paths    config.PathsConfig
	Activity *observability.ActivityLog

	// HTTPClient 为空时使用 30 秒超时的默认客户端
	HTTPClient *http.Client
	// SearchBaseURL 为空时读取 SEARCH_API_BASE_URL，再退回 DuckDuckGo
	SearchBaseURL string
	// Binary 命令行元工具调用的可执行文件，TASKTER_BIN 优先
	Binary string
	// Mailer 为空时使用 SMTP
	Mailer Mailer
	// Scheduler 可选
	Scheduler Reloader
}

func (d Deps) httpClient() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (d Deps) activity() *observability.ActivityLog {
	if d.Activity != nil {
		return d.Activity
	}
	return observability.NewActivityLog(d.Paths.Log)
}

func (d Deps) binary() string {
	if bin := strings.TrimSpace(os.Getenv("TASKTER_BIN")); bin != "" {
		return bin
	}
	if d.Binary != "" {
		return d.Binary
	}
	return "taskter"
}

// RegisterAll 注册全部内置工具，并登记 email → send_email 别名
func RegisterAll(reg *function.Registry, deps Deps) error {
	fns := []function.Function{
		NewRunBashFunction(),
		NewRunPythonFunction(),
		NewSendEmailFunction(deps),
		NewWebSearchFunction(deps),
		NewFetchURLFunction(deps),
		NewGetDescriptionFunction(deps),
		NewFileOpsFunction(),
		NewCreateTaskFunction(deps),
		NewAssignAgentFunction(deps),
		NewListTasksFunction(deps),
		NewListAgentsFunction(deps),
		NewAddOkrFunction(deps),
		NewAddLogFunction(deps),
		NewCreateAgentFunction(deps, reg),
		NewUpdateAgentFunction(deps, reg),
		NewScheduleAgentFunction(deps),
		NewDeleteAgentFunction(deps),
	}
	for _, sub := range cliSubcommands {
		fns = append(fns, NewCLIFunction(deps, sub))
	}
	if err := reg.RegisterAll(fns...); err != nil {
		return err
	}
	return reg.Alias("email", "send_email")
}
