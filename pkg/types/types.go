// Package types 提供跨包共享的领域类型定义
package types

import (
	"encoding/json"
	"strings"
)

// FunctionDeclaration 工具声明
// Parameters 为 JSON Schema 形式的参数描述，缺省时为空对象
type FunctionDeclaration struct {
	Name        string         `json:"name" yaml:"name"`
	Description *string        `json:"description" yaml:"description,omitempty"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

// UnmarshalJSON 解析工具声明，parameters 缺省或为 null 时补为 {}
func (d *FunctionDeclaration) UnmarshalJSON(data []byte) error {
	type alias FunctionDeclaration
	var raw alias
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Parameters == nil {
		raw.Parameters = map[string]any{}
	}
	*d = FunctionDeclaration(raw)
	return nil
}

// DescriptionText 返回描述文本（可能为空）
func (d FunctionDeclaration) DescriptionText() string {
	if d.Description == nil {
		return ""
	}
	return *d.Description
}

// Agent 智能体配置
type Agent struct {
	ID           int                   `json:"id" yaml:"id"`
	SystemPrompt string                `json:"system_prompt" yaml:"system_prompt"`
	Tools        []FunctionDeclaration `json:"tools" yaml:"tools"`
	Model        string                `json:"model" yaml:"model"`
	Provider     *string               `json:"provider,omitempty" yaml:"provider,omitempty"`
	Schedule     *string               `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Repeat       bool                  `json:"repeat" yaml:"repeat"`
}

// HasTool 检查 Agent 是否声明了指定名称的工具
func (a *Agent) HasTool(name string) bool {
	for _, t := range a.Tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

// ProviderName 返回显式配置的 provider（小写、去空白），未配置返回空字符串
func (a *Agent) ProviderName() string {
	if a.Provider == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*a.Provider))
}

// IsScheduled 是否配置了 cron 表达式
func (a *Agent) IsScheduled() bool {
	return a.Schedule != nil && strings.TrimSpace(*a.Schedule) != ""
}

// Clone 深拷贝 Agent，供定时任务按值持有快照
func (a Agent) Clone() Agent {
	out := a
	if a.Tools != nil {
		out.Tools = make([]FunctionDeclaration, len(a.Tools))
		copy(out.Tools, a.Tools)
	}
	if a.Provider != nil {
		p := *a.Provider
		out.Provider = &p
	}
	if a.Schedule != nil {
		s := *a.Schedule
		out.Schedule = &s
	}
	return out
}

// NextAgentID 返回下一个可用的 Agent ID
func NextAgentID(agents []Agent) int {
	maxID := 0
	for _, a := range agents {
		if a.ID > maxID {
			maxID = a.ID
		}
	}
	return maxID + 1
}

// FindAgent 根据 ID 查找 Agent，返回切片内的指针
func FindAgent(agents []Agent, id int) *Agent {
	for i := range agents {
		if agents[i].ID == id {
			return &agents[i]
		}
	}
	return nil
}

// TaskStatus 任务状态
type TaskStatus string

const (
	StatusToDo       TaskStatus = "ToDo"
	StatusInProgress TaskStatus = "InProgress"
	StatusDone       TaskStatus = "Done"
)

// ParseTaskStatus 解析任务状态，大小写和分隔符不敏感
func ParseTaskStatus(s string) (TaskStatus, bool) {
	normalized := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch normalized {
	case "todo":
		return StatusToDo, true
	case "inprogress":
		return StatusInProgress, true
	case "done":
		return StatusDone, true
	}
	return "", false
}

// Task 看板任务
type Task struct {
	ID          int        `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description *string    `json:"description" yaml:"description,omitempty"`
	Status      TaskStatus `json:"status" yaml:"status"`
	AgentID     *int       `json:"agent_id" yaml:"agent_id,omitempty"`
	Comment     *string    `json:"comment" yaml:"comment,omitempty"`
}

// AssignedTo 任务是否分配给了指定 Agent
func (t *Task) AssignedTo(agentID int) bool {
	return t.AgentID != nil && *t.AgentID == agentID
}

// Board 看板
type Board struct {
	Tasks []Task `json:"tasks"`
}

// NextTaskID 返回下一个可用的任务 ID
func (b *Board) NextTaskID() int {
	maxID := 0
	for _, t := range b.Tasks {
		if t.ID > maxID {
			maxID = t.ID
		}
	}
	return maxID + 1
}

// Find 根据 ID 查找任务，返回看板内的指针以便原地修改
func (b *Board) Find(id int) *Task {
	for i := range b.Tasks {
		if b.Tasks[i].ID == id {
			return &b.Tasks[i]
		}
	}
	return nil
}

// OpenTasksFor 返回分配给指定 Agent 且未完成的任务副本
func (b *Board) OpenTasksFor(agentID int) []Task {
	var tasks []Task
	for _, t := range b.Tasks {
		if t.AssignedTo(agentID) && t.Status != StatusDone {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// KeyResult 关键结果
type KeyResult struct {
	Name     string  `json:"name" yaml:"name"`
	Progress float32 `json:"progress" yaml:"progress"`
}

// Okr 目标与关键结果
type Okr struct {
	Objective  string      `json:"objective" yaml:"objective"`
	KeyResults []KeyResult `json:"key_results" yaml:"key_results"`
}

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// IntPtr 返回整数指针
func IntPtr(i int) *int {
	return &i
}
