package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/scheduler"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// ResolveTools 将工具说明解析为工具声明
// 说明可以是声明 JSON 文件的路径，也可以是内置工具名
func ResolveTools(reg *function.Registry, refs []string) ([]types.FunctionDeclaration, error) {
	decls := make([]types.FunctionDeclaration, 0, len(refs))
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if info, err := os.Stat(ref); err == nil && !info.IsDir() {
			data, err := os.ReadFile(ref)
			if err != nil {
				return nil, err
			}
			var decl types.FunctionDeclaration
			if err := json.Unmarshal(data, &decl); err != nil {
				return nil, fmt.Errorf("invalid tool declaration %s: %w", ref, err)
			}
			decls = append(decls, decl)
			continue
		}
		if reg != nil {
			if decl, ok := reg.Declaration(ref); ok {
				decls = append(decls, decl)
				continue
			}
		}
		return nil, fmt.Errorf("Unknown tool: %s", ref)
	}
	return decls, nil
}

// CreateAgentParams create_agent 参数
type CreateAgentParams struct {
	Prompt   string   `json:"prompt" jsonschema:"description=System prompt of the new agent"`
	Tools    []string `json:"tools" jsonschema:"description=Built-in tool names or paths to tool declaration files"`
	Model    string   `json:"model,omitempty" jsonschema:"description=Model name,default=gemini-2.5-flash"`
	Provider string   `json:"provider,omitempty" jsonschema:"description=Optional provider name such as gemini or openai or ollama"`
}

// CreateAgentFunction 新建 Agent
type CreateAgentFunction struct {
	store    storage.Store
	registry *function.Registry
}

// NewCreateAgentFunction 创建 CreateAgentFunction
func NewCreateAgentFunction(deps Deps, reg *function.Registry) *CreateAgentFunction {
	return &CreateAgentFunction{store: deps.Store, registry: reg}
}

func (f *CreateAgentFunction) Name() string {
	return "create_agent"
}

func (f *CreateAgentFunction) Description() string {
	return "Creates a new agent with a system prompt and a set of tools."
}

func (f *CreateAgentFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(CreateAgentParams{})
}

func (f *CreateAgentFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(CreateAgentParams)
	if p.Prompt == "" {
		return "", errors.New("prompt missing")
	}
	if p.Tools == nil {
		return "", errors.New("tools missing")
	}
	decls, err := ResolveTools(f.registry, p.Tools)
	if err != nil {
		return "", err
	}
	model := p.Model
	if model == "" {
		model = DefaultModel
	}

	agents, err := f.store.LoadAgents(ctx)
	if err != nil {
		return "", err
	}
	agent := types.Agent{
		ID:           types.NextAgentID(agents),
		SystemPrompt: p.Prompt,
		Tools:        decls,
		Model:        model,
	}
	if p.Provider != "" {
		agent.Provider = types.StringPtr(p.Provider)
	}
	agents = append(agents, agent)
	if err := f.store.SaveAgents(ctx, agents); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created agent %d", agent.ID), nil
}

// UpdateAgentParams update_agent 参数，未给出的字段保持不变
type UpdateAgentParams struct {
	ID       *int     `json:"id" jsonschema:"description=Agent to update"`
	Prompt   *string  `json:"prompt,omitempty" jsonschema:"description=New system prompt"`
	Tools    []string `json:"tools,omitempty" jsonschema:"description=Replacement tool list"`
	Model    *string  `json:"model,omitempty" jsonschema:"description=New model name"`
	Provider *string  `json:"provider,omitempty" jsonschema:"description=New provider name"`
}

// UpdateAgentFunction 修改已有 Agent
type UpdateAgentFunction struct {
	store    storage.Store
	registry *function.Registry
}

// NewUpdateAgentFunction 创建 UpdateAgentFunction
func NewUpdateAgentFunction(deps Deps, reg *function.Registry) *UpdateAgentFunction {
	return &UpdateAgentFunction{store: deps.Store, registry: reg}
}

func (f *UpdateAgentFunction) Name() string {
	return "update_agent"
}

func (f *UpdateAgentFunction) Description() string {
	return "Updates the prompt, tools or model of an existing agent."
}

func (f *UpdateAgentFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(UpdateAgentParams{})
}

func (f *UpdateAgentFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(UpdateAgentParams)
	if p.ID == nil {
		return "", errors.New("id missing")
	}
	id := *p.ID

	var decls []types.FunctionDeclaration
	if p.Tools != nil {
		var err error
		if decls, err = ResolveTools(f.registry, p.Tools); err != nil {
			return "", err
		}
	}

	err := f.store.UpdateAgent(ctx, id, func(a *types.Agent) error {
		if p.Prompt != nil {
			a.SystemPrompt = *p.Prompt
		}
		if p.Tools != nil {
			a.Tools = decls
		}
		if p.Model != nil {
			a.Model = *p.Model
		}
		if p.Provider != nil {
			if *p.Provider == "" {
				a.Provider = nil
			} else {
				a.Provider = types.StringPtr(*p.Provider)
			}
		}
		return nil
	})
	if errors.Is(err, storage.ErrAgentNotFound) {
		return fmt.Sprintf("Agent %d not found", id), nil
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated agent %d", id), nil
}

// ScheduleAgentParams schedule_agent 参数
type ScheduleAgentParams struct {
	ID       *int   `json:"id" jsonschema:"description=Agent to schedule"`
	CronExpr string `json:"cron_expr" jsonschema:"description=Cron expression with seconds (sec min hour day month weekday) or a descriptor like @every 1h; empty string removes the schedule"`
	Repeat   bool   `json:"repeat,omitempty" jsonschema:"description=Keep firing after the first run"`
}

// ScheduleAgentFunction 设置或清除 Agent 的定时计划
type ScheduleAgentFunction struct {
	store     storage.Store
	scheduler Reloader
}

// NewScheduleAgentFunction 创建 ScheduleAgentFunction
func NewScheduleAgentFunction(deps Deps) *ScheduleAgentFunction {
	return &ScheduleAgentFunction{store: deps.Store, scheduler: deps.Scheduler}
}

func (f *ScheduleAgentFunction) Name() string {
	return "schedule_agent"
}

func (f *ScheduleAgentFunction) Description() string {
	return "Schedules an agent with a cron expression. Cron format: second minute hour day month weekday."
}

func (f *ScheduleAgentFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(ScheduleAgentParams{})
}

func (f *ScheduleAgentFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(ScheduleAgentParams)
	if p.ID == nil {
		return "", errors.New("id missing")
	}
	id := *p.ID
	expr := strings.TrimSpace(p.CronExpr)
	if expr != "" {
		if err := scheduler.ValidateSchedule(expr); err != nil {
			return "", err
		}
	}

	err := f.store.UpdateAgent(ctx, id, func(a *types.Agent) error {
		if expr == "" {
			a.Schedule = nil
			a.Repeat = false
			return nil
		}
		a.Schedule = types.StringPtr(expr)
		a.Repeat = p.Repeat
		return nil
	})
	if errors.Is(err, storage.ErrAgentNotFound) {
		return fmt.Sprintf("Agent %d not found", id), nil
	}
	if err != nil {
		return "", err
	}

	if f.scheduler != nil {
		if err := f.scheduler.Reload(ctx); err != nil {
			observability.WarnContext(ctx, "failed to reload scheduler", "agent_id", id, "error", err)
		}
	}
	if expr == "" {
		return fmt.Sprintf("Removed schedule of agent %d", id), nil
	}
	return fmt.Sprintf("Scheduled agent %d with '%s'", id, expr), nil
}

// DeleteAgentParams delete_agent 参数
type DeleteAgentParams struct {
	ID *int `json:"id" jsonschema:"description=Agent to delete"`
}

// DeleteAgentFunction 删除 Agent，并取消其分配的任务
type DeleteAgentFunction struct {
	store     storage.Store
	scheduler Reloader
}

// NewDeleteAgentFunction 创建 DeleteAgentFunction
func NewDeleteAgentFunction(deps Deps) *DeleteAgentFunction {
	return &DeleteAgentFunction{store: deps.Store, scheduler: deps.Scheduler}
}

func (f *DeleteAgentFunction) Name() string {
	return "delete_agent"
}

func (f *DeleteAgentFunction) Description() string {
	return "Deletes an agent and unassigns its tasks."
}

func (f *DeleteAgentFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(DeleteAgentParams{})
}

func (f *DeleteAgentFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(DeleteAgentParams)
	if p.ID == nil {
		return "", errors.New("id missing")
	}
	id := *p.ID

	err := DeleteAgent(ctx, f.store, id)
	if errors.Is(err, storage.ErrAgentNotFound) {
		return fmt.Sprintf("Agent %d not found", id), nil
	}
	if err != nil {
		return "", err
	}
	if f.scheduler != nil {
		if err := f.scheduler.Reload(ctx); err != nil {
			observability.WarnContext(ctx, "failed to reload scheduler", "agent_id", id, "error", err)
		}
	}
	return fmt.Sprintf("Deleted agent %d", id), nil
}

// DeleteAgent 从 Agent 列表中移除 id，并清除看板上对它的分配
func DeleteAgent(ctx context.Context, store storage.Store, id int) error {
	agents, err := store.LoadAgents(ctx)
	if err != nil {
		return err
	}
	kept := agents[:0]
	found := false
	for _, a := range agents {
		if a.ID == id {
			found = true
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return storage.AgentNotFound(id)
	}
	if err := store.SaveAgents(ctx, kept); err != nil {
		return err
	}

	board, err := store.LoadBoard(ctx)
	if err != nil {
		return err
	}
	changed := false
	for i := range board.Tasks {
		if board.Tasks[i].AssignedTo(id) {
			board.Tasks[i].AgentID = nil
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return store.SaveBoard(ctx, board)
}
