// Package storage 提供 Agent、看板、OKR 和运行状态的持久化
// 支持两种后端：兼容 .taskter 目录布局的 JSON 文件，以及 gorm + sqlite
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/types"
)

// Store 持久化接口
// 读写都是整体快照，并发写入时后写者覆盖先写者
type Store interface {
	LoadAgents(ctx context.Context) ([]types.Agent, error)
	SaveAgents(ctx context.Context, agents []types.Agent) error
	// UpdateAgent 读取-修改-写回单个 Agent，不存在时返回 ErrAgentNotFound
	UpdateAgent(ctx context.Context, id int, fn func(*types.Agent) error) error

	LoadBoard(ctx context.Context) (*types.Board, error)
	SaveBoard(ctx context.Context, board *types.Board) error

	LoadOKRs(ctx context.Context) ([]types.Okr, error)
	SaveOKRs(ctx context.Context, okrs []types.Okr) error

	// 运行状态集合，满足 running.Tracker
	MarkRunning(ctx context.Context, agentID int) error
	MarkIdle(ctx context.Context, agentID int) error
	Running(ctx context.Context) ([]int, error)

	Close() error
}

// Execution 一次 Agent 执行的历史记录
type Execution struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	RunID      string    `gorm:"size:64;index" json:"run_id"`
	AgentID    int       `gorm:"index;not null" json:"agent_id"`
	TaskID     *int      `gorm:"index" json:"task_id,omitempty"`
	Provider   string    `gorm:"size:32" json:"provider"`
	Outcome    string    `gorm:"size:16" json:"outcome"`
	Comment    string    `gorm:"type:text" json:"comment"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TableName 指定表名
func (Execution) TableName() string {
	return "executions"
}

// Duration 执行耗时
func (e Execution) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// ExecutionRecorder 执行历史记录接口，只有 sqlite 后端实现
type ExecutionRecorder interface {
	RecordExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, agentID int, limit int) ([]Execution, error)
}

// 错误定义
var (
	ErrAgentNotFound    = errors.New("agent not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrDBNotInitialized = &DBError{Message: "database not initialized"}
)

// DBError 数据库错误
type DBError struct {
	Message string
	Err     error
}

func (e *DBError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// Open 按配置打开存储后端
func Open(cfg *config.Config) (Store, error) {
	switch cfg.Storage.Driver {
	case "", "json":
		return NewJSONStore(cfg.Paths), nil
	case "sqlite":
		return OpenSQLite(cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// AgentNotFound 返回带 ID 的 ErrAgentNotFound
func AgentNotFound(id int) error {
	return fmt.Errorf("%w: %d", ErrAgentNotFound, id)
}

// TaskNotFound 返回带 ID 的 ErrTaskNotFound
func TaskNotFound(id int) error {
	return fmt.Errorf("%w: %d", ErrTaskNotFound, id)
}
