package server

// ToolCallRequest 工具调用请求
type ToolCallRequest struct {
	Arguments map[string]any `json:"arguments"`
}

// ExecuteRequest 立即执行 Agent 的请求
type ExecuteRequest struct {
	TaskID *int `json:"task_id" binding:"omitempty,gt=0"`
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description *string `json:"description"`
	AgentID     *int    `json:"agent_id" binding:"omitempty,gt=0"`
}

// TaskQuery 任务列表查询
type TaskQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=ToDo InProgress Done"`
}

// ExecutionQuery 执行历史查询
type ExecutionQuery struct {
	AgentID int `form:"agent_id" binding:"required,gt=0"`
	Limit   int `form:"limit" binding:"omitempty,gte=1,lte=100"`
}
