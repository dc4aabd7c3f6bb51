package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// 触发模式
const (
	ModeHeartbeat = "heartbeat"
	ModeTasks     = "tasks"
)

// TaskOutcome 单个任务的执行结果
type TaskOutcome struct {
	TaskID int                   `json:"task_id"`
	Title  string                `json:"title"`
	Result types.ExecutionResult `json:"result"`
}

// FiringReport 一次触发的汇总
type FiringReport struct {
	AgentID    int                    `json:"agent_id"`
	Heartbeat  bool                   `json:"heartbeat"`
	Result     *types.ExecutionResult `json:"result,omitempty"`
	Outcomes   []TaskOutcome          `json:"outcomes,omitempty"`
	OneShot    bool                   `json:"one_shot"`
	Err        error                  `json:"-"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Mode 返回触发模式
func (r FiringReport) Mode() string {
	if r.Heartbeat {
		return ModeHeartbeat
	}
	return ModeTasks
}

// Summary 返回适合推送的多行摘要
func (r FiringReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agent %d fired (%s)", r.AgentID, r.Mode())
	if r.Err != nil {
		fmt.Fprintf(&b, "\nerror: %v", r.Err)
	}
	if r.Result != nil {
		fmt.Fprintf(&b, "\n%s: %s", r.Result.Outcome, r.Result.Comment)
	}
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "\nTask %d %s: %s", o.TaskID, o.Result.Outcome, o.Result.Comment)
	}
	if r.OneShot {
		b.WriteString("\nschedule removed")
	}
	return b.String()
}

// Job 一个定时 Agent 的单次触发逻辑
// Agent 为注册时的快照，每次触发按值使用
type Job struct {
	Agent types.Agent

	store          storage.Store
	runner         Runner
	recorder       storage.ExecutionRecorder
	maxConcurrency int
	logger         *slog.Logger
}

// NewJob 创建 Job
func NewJob(agent types.Agent, store storage.Store, runner Runner) Job {
	return Job{Agent: agent.Clone(), store: store, runner: runner, logger: observability.DefaultLogger()}
}

// Run 执行一次触发：
// 没有待办任务时以心跳方式执行一次；否则每个任务并发执行，全部结束后一次性写回看板。
// 非重复计划执行后清除 Agent 的 schedule/repeat。
func (j Job) Run(ctx context.Context) FiringReport {
	report := FiringReport{AgentID: j.Agent.ID, StartedAt: time.Now()}
	logger := j.logger.With("agent_id", j.Agent.ID)

	board, err := j.store.LoadBoard(ctx)
	if err != nil {
		logger.Error("failed to load board", "error", err)
		report.Err = err
	} else {
		open := board.OpenTasksFor(j.Agent.ID)
		if len(open) == 0 {
			report.Heartbeat = true
			result := j.execute(ctx, nil)
			report.Result = &result
		} else {
			report.Outcomes = j.fanOut(ctx, open)
			for _, o := range report.Outcomes {
				o.Result.ApplyTo(board.Find(o.TaskID))
			}
			if err := j.store.SaveBoard(ctx, board); err != nil {
				logger.Error("failed to save board", "error", err)
				report.Err = err
			}
		}
		observability.SchedulerFiringsTotal.WithLabelValues(report.Mode()).Inc()
	}

	if !j.Agent.Repeat {
		report.OneShot = true
		if err := j.clearSchedule(ctx); err != nil {
			logger.Error("failed to clear schedule", "error", err)
			report.Err = errors.Join(report.Err, err)
		}
	}

	report.FinishedAt = time.Now()
	return report
}

// fanOut 为每个任务并发执行一次，结果顺序与任务顺序无关
func (j Job) fanOut(ctx context.Context, tasks []types.Task) []TaskOutcome {
	p := pool.NewWithResults[TaskOutcome]()
	if j.maxConcurrency > 0 {
		p = p.WithMaxGoroutines(j.maxConcurrency)
	}
	for _, task := range tasks {
		p.Go(func() TaskOutcome {
			return TaskOutcome{TaskID: task.ID, Title: task.Title, Result: j.execute(ctx, &task)}
		})
	}
	return p.Wait()
}

// execute 以独立的 Agent 副本执行一次并记录历史
func (j Job) execute(ctx context.Context, task *types.Task) types.ExecutionResult {
	agent := j.Agent.Clone()
	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)

	started := time.Now()
	result := j.runner.Execute(ctx, &agent, task)

	if j.recorder != nil {
		exec := &storage.Execution{
			RunID:      runID,
			AgentID:    agent.ID,
			Provider:   llm.ProviderFor(&agent),
			Outcome:    string(result.Outcome),
			Comment:    result.Comment,
			StartedAt:  started,
			FinishedAt: time.Now(),
		}
		if task != nil {
			exec.TaskID = types.IntPtr(task.ID)
		}
		if err := j.recorder.RecordExecution(ctx, exec); err != nil {
			j.logger.Warn("failed to record execution", "agent_id", agent.ID, "error", err)
		}
	}
	return result
}

func (j Job) clearSchedule(ctx context.Context) error {
	err := j.store.UpdateAgent(ctx, j.Agent.ID, func(a *types.Agent) error {
		a.Schedule = nil
		a.Repeat = false
		return nil
	})
	if errors.Is(err, storage.ErrAgentNotFound) {
		return nil
	}
	return err
}
