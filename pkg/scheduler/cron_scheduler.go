package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// Option 调度器选项
type Option func(*CronScheduler)

// WithLocation 设置 cron 表达式的时区，默认 America/New_York
func WithLocation(loc *time.Location) Option {
	return func(s *CronScheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithMaxConcurrency 限制单次触发内的并发任务数，0 表示不限
func WithMaxConcurrency(n int) Option {
	return func(s *CronScheduler) {
		s.maxConcurrency = n
	}
}

// WithNotifier 设置触发结果通知
func WithNotifier(n Notifier) Option {
	return func(s *CronScheduler) {
		s.notifier = n
	}
}

// WithRecorder 设置执行历史记录
func WithRecorder(r storage.ExecutionRecorder) Option {
	return func(s *CronScheduler) {
		s.recorder = r
	}
}

// WithLogger 设置日志器
func WithLogger(logger *slog.Logger) Option {
	return func(s *CronScheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// EntryInfo 已注册计划的信息
type EntryInfo struct {
	AgentID  int       `json:"agent_id"`
	Schedule string    `json:"schedule"`
	Repeat   bool      `json:"repeat"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev"`
}

type entry struct {
	id    cron.EntryID
	agent types.Agent
}

// CronScheduler 为每个设置了 schedule 的 Agent 注册一个 cron 任务
type CronScheduler struct {
	store          storage.Store
	runner         Runner
	notifier       Notifier
	recorder       storage.ExecutionRecorder
	logger         *slog.Logger
	location       *time.Location
	maxConcurrency int

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[int]entry // Agent ID -> cron 条目

	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
}

// New 创建调度器
func New(store storage.Store, runner Runner, opts ...Option) *CronScheduler {
	s := &CronScheduler{
		store:   store,
		runner:  runner,
		logger:  observability.DefaultLogger(),
		entries: make(map[int]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.location == nil {
		loc, err := time.LoadLocation(config.DefaultTimezone)
		if err != nil {
			loc = time.UTC
		}
		s.location = loc
	}

	logger := cronLogger{logger: s.logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(s.location),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Location 返回调度时区
func (s *CronScheduler) Location() *time.Location {
	return s.location
}

// Start 加载 Agent 并启动调度
func (s *CronScheduler) Start(ctx context.Context) error {
	s.logger.Info("starting cron scheduler", "timezone", s.location.String())
	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load scheduled agents: %w", err)
	}
	s.cron.Start()
	s.started.Store(true)
	s.logger.Info("cron scheduler started", "entries", s.Len())
	return nil
}

// Stop 停止调度并等待正在执行的触发结束
func (s *CronScheduler) Stop() {
	s.logger.Info("stopping cron scheduler")
	s.cancel()
	if s.started.Swap(false) {
		<-s.cron.Stop().Done()
	}

	s.mu.Lock()
	for _, e := range s.entries {
		s.cron.Remove(e.id)
	}
	s.entries = make(map[int]entry)
	s.mu.Unlock()

	s.logger.Info("cron scheduler stopped")
}

// Reload 按当前 Agent 列表重建全部计划
// 表达式无效的 Agent 会被跳过并记录错误
func (s *CronScheduler) Reload(ctx context.Context) error {
	agents, err := s.store.LoadAgents(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		s.cron.Remove(e.id)
		delete(s.entries, id)
	}
	for _, agent := range agents {
		if !agent.IsScheduled() {
			continue
		}
		if err := s.addLocked(agent); err != nil {
			s.logger.Error("failed to schedule agent", "agent_id", agent.ID, "schedule", *agent.Schedule, "error", err)
			continue
		}
		s.logger.Debug("agent scheduled", "agent_id", agent.ID, "schedule", *agent.Schedule, "repeat", agent.Repeat)
	}
	return nil
}

// addLocked 注册单个 Agent，调用方持有锁
func (s *CronScheduler) addLocked(agent types.Agent) error {
	schedule, err := ParseSchedule(*agent.Schedule)
	if err != nil {
		return err
	}

	job := s.newJob(agent)
	var fired atomic.Bool
	var entryID atomic.Int64
	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		// 非重复计划只触发一次，移除前排队的触发直接跳过
		if !job.Agent.Repeat && fired.Swap(true) {
			return
		}
		s.fire(job, cron.EntryID(entryID.Load()))
	}))
	entryID.Store(int64(id))
	s.entries[agent.ID] = entry{id: id, agent: job.Agent}
	return nil
}

func (s *CronScheduler) newJob(agent types.Agent) Job {
	job := NewJob(agent, s.store, s.runner)
	job.recorder = s.recorder
	job.maxConcurrency = s.maxConcurrency
	job.logger = s.logger
	return job
}

// fire 执行一次触发并处理一次性计划
func (s *CronScheduler) fire(job Job, id cron.EntryID) {
	if s.ctx.Err() != nil {
		return
	}
	ctx := observability.WithAgentID(s.ctx, job.Agent.ID)
	s.logger.Info("scheduled agent firing", "agent_id", job.Agent.ID)

	report := job.Run(ctx)
	if report.OneShot {
		s.remove(job.Agent.ID, id)
	}

	s.logger.Info("scheduled agent finished",
		"agent_id", report.AgentID,
		"mode", report.Mode(),
		"tasks", len(report.Outcomes),
		"one_shot", report.OneShot,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	if s.notifier != nil {
		s.notifier.Notify(ctx, report)
	}
}

// Fire 立即触发指定 Agent 一次，不影响已注册的计划
func (s *CronScheduler) Fire(ctx context.Context, agentID int) (FiringReport, error) {
	agents, err := s.store.LoadAgents(ctx)
	if err != nil {
		return FiringReport{}, err
	}
	agent := types.FindAgent(agents, agentID)
	if agent == nil {
		return FiringReport{}, storage.AgentNotFound(agentID)
	}
	job := s.newJob(*agent)
	// 手动触发不清除计划
	job.Agent.Repeat = true
	report := job.Run(observability.WithAgentID(ctx, agentID))
	return report, nil
}

// remove 移除 cron 条目，条目已被 Reload 替换时保留新条目
func (s *CronScheduler) remove(agentID int, id cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(id)
	if e, ok := s.entries[agentID]; ok && e.id == id {
		delete(s.entries, agentID)
	}
}

// Len 返回已注册的计划数量
func (s *CronScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Entries 返回已注册的计划，按 Agent ID 排序
func (s *CronScheduler) Entries() []EntryInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]EntryInfo, 0, len(s.entries))
	for agentID, e := range s.entries {
		ce := s.cron.Entry(e.id)
		info := EntryInfo{
			AgentID: agentID,
			Repeat:  e.agent.Repeat,
			Next:    ce.Next,
			Prev:    ce.Prev,
		}
		if e.agent.Schedule != nil {
			info.Schedule = *e.agent.Schedule
		}
		if info.Next.IsZero() {
			if sched, err := ParseSchedule(info.Schedule); err == nil {
				info.Next = sched.Next(time.Now().In(s.location))
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].AgentID < infos[j].AgentID })
	return infos
}
