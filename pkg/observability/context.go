package observability

import "context"

type contextKey string

const (
	runIDKey   contextKey = "run_id"
	agentIDKey contextKey = "agent_id"
)

// WithRunID 将一次执行的 run ID 写入 context
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 从 context 读取 run ID
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithAgentID 将 Agent ID 写入 context
func WithAgentID(ctx context.Context, agentID int) context.Context {
	return context.WithValue(ctx, agentIDKey, agentID)
}

// AgentID 从 context 读取 Agent ID
func AgentID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(agentIDKey).(int)
	return id, ok
}
