// Package running 记录哪些 Agent 正在执行
package running

import (
	"context"
	"slices"
	"sync"

	"github.com/KodaTao/taskter/pkg/observability"
)

// Tracker 运行状态集合
// 同一 Agent 可能同时执行多个任务，MarkRunning 和 MarkIdle 成对计数，
// 计数归零时才移出集合
type Tracker interface {
	MarkRunning(ctx context.Context, agentID int) error
	MarkIdle(ctx context.Context, agentID int) error
	Running(ctx context.Context) ([]int, error)
}

// Guard 作用域守卫：创建时标记运行，Release 时移除
// Release 可重复调用，只生效一次
type Guard struct {
	tracker Tracker
	agentID int
	once    sync.Once
}

// Acquire 标记 Agent 为运行中并返回守卫
// 标记失败只记录日志，不阻止执行
func Acquire(ctx context.Context, tracker Tracker, agentID int) *Guard {
	g := &Guard{tracker: tracker, agentID: agentID}
	if tracker == nil {
		return g
	}
	if err := tracker.MarkRunning(ctx, agentID); err != nil {
		observability.WarnContext(ctx, "Failed to mark agent running", "agent_id", agentID, "error", err)
	}
	observability.RunningAgents.Inc()
	return g
}

// Release 将 Agent 移出运行集合
// 使用 context.Background，调用方 ctx 已取消时也能清理
func (g *Guard) Release() {
	if g == nil || g.tracker == nil {
		return
	}
	g.once.Do(func() {
		observability.RunningAgents.Dec()
		if err := g.tracker.MarkIdle(context.Background(), g.agentID); err != nil {
			observability.Warn("Failed to mark agent idle", "agent_id", g.agentID, "error", err)
		}
	})
}

// AgentID 返回守卫对应的 Agent
func (g *Guard) AgentID() int {
	return g.agentID
}

// MemoryTracker 进程内实现
type MemoryTracker struct {
	mu     sync.Mutex
	ids    []int
	counts map[int]int
}

// NewMemoryTracker 创建内存 Tracker
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{counts: make(map[int]int)}
}

// MarkRunning 计数加一，首次时加入集合
func (m *MemoryTracker) MarkRunning(ctx context.Context, agentID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[int]int)
	}
	m.counts[agentID]++
	if !slices.Contains(m.ids, agentID) {
		m.ids = append(m.ids, agentID)
	}
	return nil
}

// MarkIdle 计数减一，归零时移出集合
func (m *MemoryTracker) MarkIdle(ctx context.Context, agentID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[agentID] > 1 {
		m.counts[agentID]--
		return nil
	}
	delete(m.counts, agentID)
	m.ids = slices.DeleteFunc(m.ids, func(id int) bool { return id == agentID })
	return nil
}

// Running 返回集合副本
func (m *MemoryTracker) Running(ctx context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.ids), nil
}

// IsRunning 是否在集合中
func (m *MemoryTracker) IsRunning(agentID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.ids, agentID)
}
