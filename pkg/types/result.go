package types

// Outcome 执行结果类别
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ExecutionResult 一次 Agent 执行的最终结果
// Comment 总是面向人类的可读文本
type ExecutionResult struct {
	Outcome Outcome `json:"outcome"`
	Comment string  `json:"comment"`
}

// Success 构造成功结果
func Success(comment string) ExecutionResult {
	return ExecutionResult{Outcome: OutcomeSuccess, Comment: comment}
}

// Failure 构造失败结果
func Failure(comment string) ExecutionResult {
	return ExecutionResult{Outcome: OutcomeFailure, Comment: comment}
}

// IsSuccess 是否成功
func (r ExecutionResult) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess
}

// ApplyTo 将执行结果写回任务
// 成功：状态置为 Done；失败：状态回到 ToDo 并解除分配，便于人工重新指派
func (r ExecutionResult) ApplyTo(task *Task) {
	if task == nil {
		return
	}
	comment := r.Comment
	task.Comment = &comment
	if r.IsSuccess() {
		task.Status = StatusDone
		return
	}
	task.Status = StatusToDo
	task.AgentID = nil
}
