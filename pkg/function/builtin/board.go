package builtin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// CreateTaskParams create_task 参数
type CreateTaskParams struct {
	Title       string  `json:"title" jsonschema:"description=Task title"`
	Description *string `json:"description,omitempty" jsonschema:"description=Optional task description"`
}

// CreateTaskFunction 在看板上新建任务
type CreateTaskFunction struct {
	store storage.Store
}

// NewCreateTaskFunction 创建 CreateTaskFunction
func NewCreateTaskFunction(deps Deps) *CreateTaskFunction {
	return &CreateTaskFunction{store: deps.Store}
}

func (f *CreateTaskFunction) Name() string {
	return "create_task"
}

func (f *CreateTaskFunction) Description() string {
	return "Creates a new task on the board."
}

func (f *CreateTaskFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(CreateTaskParams{})
}

func (f *CreateTaskFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(CreateTaskParams)
	if p.Title == "" {
		return "", errors.New("title missing")
	}
	board, err := f.store.LoadBoard(ctx)
	if err != nil {
		return "", err
	}
	id := board.NextTaskID()
	board.Tasks = append(board.Tasks, types.Task{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Status:      types.StatusToDo,
	})
	if err := f.store.SaveBoard(ctx, board); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created task %d", id), nil
}

// AssignAgentParams assign_agent 参数
type AssignAgentParams struct {
	TaskID  *int `json:"task_id" jsonschema:"description=Task to assign"`
	AgentID *int `json:"agent_id" jsonschema:"description=Agent that takes the task"`
}

// AssignAgentFunction 将任务分配给 Agent
type AssignAgentFunction struct {
	store storage.Store
}

// NewAssignAgentFunction 创建 AssignAgentFunction
func NewAssignAgentFunction(deps Deps) *AssignAgentFunction {
	return &AssignAgentFunction{store: deps.Store}
}

func (f *AssignAgentFunction) Name() string {
	return "assign_agent"
}

func (f *AssignAgentFunction) Description() string {
	return "Assigns an agent to a task on the board."
}

func (f *AssignAgentFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(AssignAgentParams{})
}

func (f *AssignAgentFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(AssignAgentParams)
	if p.TaskID == nil {
		return "", errors.New("task_id missing")
	}
	if p.AgentID == nil {
		return "", errors.New("agent_id missing")
	}
	taskID, agentID := *p.TaskID, *p.AgentID

	agents, err := f.store.LoadAgents(ctx)
	if err != nil {
		return "", err
	}
	if types.FindAgent(agents, agentID) == nil {
		return fmt.Sprintf("Agent %d not found", agentID), nil
	}

	board, err := f.store.LoadBoard(ctx)
	if err != nil {
		return "", err
	}
	task := board.Find(taskID)
	if task == nil {
		return fmt.Sprintf("Task %d not found", taskID), nil
	}
	task.AgentID = types.IntPtr(agentID)
	if err := f.store.SaveBoard(ctx, board); err != nil {
		return "", err
	}
	return fmt.Sprintf("Agent %d assigned to task %d", agentID, taskID), nil
}

// ListTasksFunction 列出看板任务
type ListTasksFunction struct {
	store storage.Store
}

// NewListTasksFunction 创建 ListTasksFunction
func NewListTasksFunction(deps Deps) *ListTasksFunction {
	return &ListTasksFunction{store: deps.Store}
}

func (f *ListTasksFunction) Name() string {
	return "list_tasks"
}

func (f *ListTasksFunction) Description() string {
	return "Lists all tasks on the board as JSON."
}

func (f *ListTasksFunction) ParamsType() reflect.Type {
	return nil
}

func (f *ListTasksFunction) Execute(ctx context.Context, params any) (string, error) {
	board, err := f.store.LoadBoard(ctx)
	if err != nil {
		return "", err
	}
	tasks := board.Tasks
	if tasks == nil {
		tasks = []types.Task{}
	}
	return prettyJSON(tasks)
}

// ListAgentsFunction 列出全部 Agent
type ListAgentsFunction struct {
	store storage.Store
}

// NewListAgentsFunction 创建 ListAgentsFunction
func NewListAgentsFunction(deps Deps) *ListAgentsFunction {
	return &ListAgentsFunction{store: deps.Store}
}

func (f *ListAgentsFunction) Name() string {
	return "list_agents"
}

func (f *ListAgentsFunction) Description() string {
	return "Lists all configured agents as JSON."
}

func (f *ListAgentsFunction) ParamsType() reflect.Type {
	return nil
}

func (f *ListAgentsFunction) Execute(ctx context.Context, params any) (string, error) {
	agents, err := f.store.LoadAgents(ctx)
	if err != nil {
		return "", err
	}
	if agents == nil {
		agents = []types.Agent{}
	}
	return prettyJSON(agents)
}

// AddOkrParams add_okr 参数
type AddOkrParams struct {
	Objective  string   `json:"objective" jsonschema:"description=Objective text"`
	KeyResults []string `json:"key_results" jsonschema:"description=Names of the key results"`
}

// AddOkrFunction 新增 OKR
type AddOkrFunction struct {
	store storage.Store
}

// NewAddOkrFunction 创建 AddOkrFunction
func NewAddOkrFunction(deps Deps) *AddOkrFunction {
	return &AddOkrFunction{store: deps.Store}
}

func (f *AddOkrFunction) Name() string {
	return "add_okr"
}

func (f *AddOkrFunction) Description() string {
	return "Adds an objective with its key results."
}

func (f *AddOkrFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(AddOkrParams{})
}

func (f *AddOkrFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(AddOkrParams)
	if p.Objective == "" {
		return "", errors.New("objective missing")
	}
	if p.KeyResults == nil {
		return "", errors.New("key_results missing")
	}
	okrs, err := f.store.LoadOKRs(ctx)
	if err != nil {
		return "", err
	}
	krs := make([]types.KeyResult, 0, len(p.KeyResults))
	for _, name := range p.KeyResults {
		krs = append(krs, types.KeyResult{Name: name})
	}
	okrs = append(okrs, types.Okr{Objective: p.Objective, KeyResults: krs})
	if err := f.store.SaveOKRs(ctx, okrs); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added OKR '%s'", p.Objective), nil
}

// AddLogParams add_log 参数
type AddLogParams struct {
	Message string `json:"message" jsonschema:"description=Log message"`
}

// AddLogFunction 写入活动日志
type AddLogFunction struct {
	log *observability.ActivityLog
}

// NewAddLogFunction 创建 AddLogFunction
func NewAddLogFunction(deps Deps) *AddLogFunction {
	return &AddLogFunction{log: deps.activity()}
}

func (f *AddLogFunction) Name() string {
	return "add_log"
}

func (f *AddLogFunction) Description() string {
	return "Appends a message to the project activity log."
}

func (f *AddLogFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(AddLogParams{})
}

func (f *AddLogFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(AddLogParams)
	if p.Message == "" {
		return "", errors.New("message missing")
	}
	if err := f.log.Append(p.Message); err != nil {
		return "", err
	}
	return "Log entry added", nil
}

func prettyJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
