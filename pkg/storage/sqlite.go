package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/KodaTao/taskter/pkg/types"
)

// agentRecord agents 表，工具声明以 JSON 文本保存
type agentRecord struct {
	ID           int     `gorm:"primaryKey;autoIncrement:false"`
	Position     int     `gorm:"index"`
	SystemPrompt string  `gorm:"type:text"`
	Tools        string  `gorm:"type:text"`
	Model        string  `gorm:"size:128"`
	Provider     *string `gorm:"size:32"`
	Schedule     *string `gorm:"size:128"`
	Repeat       bool
}

func (agentRecord) TableName() string { return "agents" }

// taskRecord tasks 表
type taskRecord struct {
	ID          int `gorm:"primaryKey;autoIncrement:false"`
	Position    int `gorm:"index"`
	Title       string
	Description *string `gorm:"type:text"`
	Status      string  `gorm:"size:16;index"`
	AgentID     *int    `gorm:"index"`
	Comment     *string `gorm:"type:text"`
}

func (taskRecord) TableName() string { return "tasks" }

// okrRecord okrs 表，关键结果以 JSON 文本保存
type okrRecord struct {
	ID         uint `gorm:"primaryKey"`
	Position   int  `gorm:"index"`
	Objective  string
	KeyResults string `gorm:"type:text"`
}

func (okrRecord) TableName() string { return "okrs" }

// runningRecord running_agents 表，Invocations 为未结束的执行数
type runningRecord struct {
	AgentID     int `gorm:"primaryKey;autoIncrement:false"`
	StartedAt   time.Time
	Invocations int `gorm:"not null;default:1"`
}

func (runningRecord) TableName() string { return "running_agents" }

// SQLStore 基于 gorm + sqlite 的存储
type SQLStore struct {
	db *gorm.DB
}

var (
	_ Store             = (*SQLStore)(nil)
	_ ExecutionRecorder = (*SQLStore)(nil)
)

// OpenSQLite 打开 sqlite 存储并迁移表结构
func OpenSQLite(path string) (*SQLStore, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(db)
}

// NewSQLStore 使用已有连接创建存储
func NewSQLStore(db *gorm.DB) (*SQLStore, error) {
	if err := autoMigrate(db); err != nil {
		return nil, &DBError{Message: "failed to migrate database", Err: err}
	}
	return &SQLStore{db: db}, nil
}

// DB 返回底层连接
func (s *SQLStore) DB() *gorm.DB {
	return s.db
}

// LoadAgents 读取 Agent 列表
func (s *SQLStore) LoadAgents(ctx context.Context) ([]types.Agent, error) {
	var records []agentRecord
	if err := s.db.WithContext(ctx).Order("position, id").Find(&records).Error; err != nil {
		return nil, err
	}
	agents := make([]types.Agent, 0, len(records))
	for _, r := range records {
		agent, err := r.toAgent()
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

// SaveAgents 在事务中整体替换 Agent 列表
func (s *SQLStore) SaveAgents(ctx context.Context, agents []types.Agent) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceAgents(tx, agents)
	})
}

func replaceAgents(tx *gorm.DB, agents []types.Agent) error {
	if err := tx.Where("1 = 1").Delete(&agentRecord{}).Error; err != nil {
		return err
	}
	if len(agents) == 0 {
		return nil
	}
	records := make([]agentRecord, 0, len(agents))
	for i, a := range agents {
		r, err := agentToRecord(a, i)
		if err != nil {
			return err
		}
		records = append(records, r)
	}
	return tx.Create(&records).Error
}

// UpdateAgent 在事务中读取-修改-写回单个 Agent
func (s *SQLStore) UpdateAgent(ctx context.Context, id int, fn func(*types.Agent) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record agentRecord
		if err := tx.First(&record, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return AgentNotFound(id)
			}
			return err
		}
		agent, err := record.toAgent()
		if err != nil {
			return err
		}
		if err := fn(&agent); err != nil {
			return err
		}
		updated, err := agentToRecord(agent, record.Position)
		if err != nil {
			return err
		}
		// ID 可能被修改，先删后建
		if err := tx.Delete(&agentRecord{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Create(&updated).Error
	})
}

// LoadBoard 读取看板
func (s *SQLStore) LoadBoard(ctx context.Context) (*types.Board, error) {
	var records []taskRecord
	if err := s.db.WithContext(ctx).Order("position, id").Find(&records).Error; err != nil {
		return nil, err
	}
	board := &types.Board{Tasks: make([]types.Task, 0, len(records))}
	for _, r := range records {
		board.Tasks = append(board.Tasks, types.Task{
			ID:          r.ID,
			Title:       r.Title,
			Description: r.Description,
			Status:      types.TaskStatus(r.Status),
			AgentID:     r.AgentID,
			Comment:     r.Comment,
		})
	}
	return board, nil
}

// SaveBoard 在事务中整体替换看板
func (s *SQLStore) SaveBoard(ctx context.Context, board *types.Board) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&taskRecord{}).Error; err != nil {
			return err
		}
		if len(board.Tasks) == 0 {
			return nil
		}
		records := make([]taskRecord, 0, len(board.Tasks))
		for i, t := range board.Tasks {
			records = append(records, taskRecord{
				ID:          t.ID,
				Position:    i,
				Title:       t.Title,
				Description: t.Description,
				Status:      string(t.Status),
				AgentID:     t.AgentID,
				Comment:     t.Comment,
			})
		}
		return tx.Create(&records).Error
	})
}

// LoadOKRs 读取 OKR 列表
func (s *SQLStore) LoadOKRs(ctx context.Context) ([]types.Okr, error) {
	var records []okrRecord
	if err := s.db.WithContext(ctx).Order("position, id").Find(&records).Error; err != nil {
		return nil, err
	}
	okrs := make([]types.Okr, 0, len(records))
	for _, r := range records {
		okr := types.Okr{Objective: r.Objective, KeyResults: []types.KeyResult{}}
		if r.KeyResults != "" {
			if err := json.Unmarshal([]byte(r.KeyResults), &okr.KeyResults); err != nil {
				return nil, err
			}
		}
		okrs = append(okrs, okr)
	}
	return okrs, nil
}

// SaveOKRs 在事务中整体替换 OKR 列表
func (s *SQLStore) SaveOKRs(ctx context.Context, okrs []types.Okr) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&okrRecord{}).Error; err != nil {
			return err
		}
		if len(okrs) == 0 {
			return nil
		}
		records := make([]okrRecord, 0, len(okrs))
		for i, o := range okrs {
			krs := o.KeyResults
			if krs == nil {
				krs = []types.KeyResult{}
			}
			data, err := json.Marshal(krs)
			if err != nil {
				return err
			}
			records = append(records, okrRecord{Position: i, Objective: o.Objective, KeyResults: string(data)})
		}
		return tx.Create(&records).Error
	})
}

// MarkRunning 将 Agent 加入运行集合，已存在时执行数加一
func (s *SQLStore) MarkRunning(ctx context.Context, agentID int) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}},
			DoUpdates: clause.Assignments(map[string]any{"invocations": gorm.Expr("invocations + 1")}),
		}).
		Create(&runningRecord{AgentID: agentID, StartedAt: time.Now(), Invocations: 1}).Error
}

// MarkIdle 执行数减一，归零时将 Agent 移出运行集合
func (s *SQLStore) MarkIdle(ctx context.Context, agentID int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&runningRecord{}).
			Where("agent_id = ?", agentID).
			Update("invocations", gorm.Expr("invocations - 1")).Error
		if err != nil {
			return err
		}
		return tx.Delete(&runningRecord{}, "agent_id = ? AND invocations <= 0", agentID).Error
	})
}

// Running 返回运行中的 Agent ID，按开始时间排序
func (s *SQLStore) Running(ctx context.Context) ([]int, error) {
	ids := []int{}
	err := s.db.WithContext(ctx).Model(&runningRecord{}).
		Order("started_at, agent_id").
		Pluck("agent_id", &ids).Error
	return ids, err
}

// RecordExecution 记录一次执行
func (s *SQLStore) RecordExecution(ctx context.Context, exec *Execution) error {
	return s.db.WithContext(ctx).Create(exec).Error
}

// ListExecutions 按时间倒序列出执行历史，agentID 为 0 时不过滤
func (s *SQLStore) ListExecutions(ctx context.Context, agentID int, limit int) ([]Execution, error) {
	var execs []Execution
	query := s.db.WithContext(ctx).Model(&Execution{})
	if agentID > 0 {
		query = query.Where("agent_id = ?", agentID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("started_at DESC, id DESC").Find(&execs).Error
	return execs, err
}

// Close 关闭数据库连接
func (s *SQLStore) Close() error {
	return closeDB(s.db)
}

func agentToRecord(a types.Agent, position int) (agentRecord, error) {
	tools := a.Tools
	if tools == nil {
		tools = []types.FunctionDeclaration{}
	}
	data, err := json.Marshal(tools)
	if err != nil {
		return agentRecord{}, err
	}
	return agentRecord{
		ID:           a.ID,
		Position:     position,
		SystemPrompt: a.SystemPrompt,
		Tools:        string(data),
		Model:        a.Model,
		Provider:     a.Provider,
		Schedule:     a.Schedule,
		Repeat:       a.Repeat,
	}, nil
}

func (r agentRecord) toAgent() (types.Agent, error) {
	agent := types.Agent{
		ID:           r.ID,
		SystemPrompt: r.SystemPrompt,
		Tools:        []types.FunctionDeclaration{},
		Model:        r.Model,
		Provider:     r.Provider,
		Schedule:     r.Schedule,
		Repeat:       r.Repeat,
	}
	if r.Tools != "" {
		if err := json.Unmarshal([]byte(r.Tools), &agent.Tools); err != nil {
			return types.Agent{}, err
		}
	}
	return agent, nil
}
