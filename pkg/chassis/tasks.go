package chassis

import (
	"context"
	"errors"
	"fmt"

	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// ErrTaskNotAssigned 任务没有分配 Agent
var ErrTaskNotAssigned = errors.New("task is not assigned to an agent")

// RunTask 用任务分配的 Agent 执行任务，并把结果写回看板
func (a *App) RunTask(ctx context.Context, taskID int) (types.ExecutionResult, error) {
	board, err := a.store.LoadBoard(ctx)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	task := board.Find(taskID)
	if task == nil {
		return types.ExecutionResult{}, storage.TaskNotFound(taskID)
	}
	if task.AgentID == nil {
		return types.ExecutionResult{}, fmt.Errorf("%w: %d", ErrTaskNotAssigned, taskID)
	}
	return a.runOnBoard(ctx, board, *task.AgentID, task)
}

// RunAgent 立即执行一次 Agent
// taskID 为 nil 时是心跳执行，不修改看板；否则结果写回该任务
func (a *App) RunAgent(ctx context.Context, agentID int, taskID *int) (types.ExecutionResult, error) {
	if taskID == nil {
		agent, err := a.findAgent(ctx, agentID)
		if err != nil {
			return types.ExecutionResult{}, err
		}
		return a.engine.Execute(ctx, agent, nil), nil
	}

	board, err := a.store.LoadBoard(ctx)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	task := board.Find(*taskID)
	if task == nil {
		return types.ExecutionResult{}, storage.TaskNotFound(*taskID)
	}
	return a.runOnBoard(ctx, board, agentID, task)
}

func (a *App) runOnBoard(ctx context.Context, board *types.Board, agentID int, task *types.Task) (types.ExecutionResult, error) {
	agent, err := a.findAgent(ctx, agentID)
	if err != nil {
		return types.ExecutionResult{}, err
	}
	snapshot := *task
	result := a.engine.Execute(ctx, agent, &snapshot)
	result.ApplyTo(task)
	if err := a.store.SaveBoard(ctx, board); err != nil {
		return result, fmt.Errorf("failed to save board: %w", err)
	}
	return result, nil
}

func (a *App) findAgent(ctx context.Context, agentID int) (*types.Agent, error) {
	agents, err := a.store.LoadAgents(ctx)
	if err != nil {
		return nil, err
	}
	agent := types.FindAgent(agents, agentID)
	if agent == nil {
		return nil, storage.AgentNotFound(agentID)
	}
	clone := agent.Clone()
	return &clone, nil
}
