package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/types"
)

// JSONStore 基于 JSON 文件的存储，文件布局与 .taskter 目录一致
type JSONStore struct {
	mu    sync.Mutex
	paths config.PathsConfig
	// running 本进程内每个 Agent 未结束的执行数，文件中只保存 ID 集合
	running map[int]int
}

var _ Store = (*JSONStore)(nil)

// NewJSONStore 创建 JSON 文件存储
func NewJSONStore(paths config.PathsConfig) *JSONStore {
	return &JSONStore{paths: paths, running: make(map[int]int)}
}

// Paths 返回文件路径配置
func (s *JSONStore) Paths() config.PathsConfig {
	return s.paths
}

// LoadAgents 读取 Agent 列表，文件不存在时创建为 []
func (s *JSONStore) LoadAgents(ctx context.Context) ([]types.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadAgents()
}

func (s *JSONStore) loadAgents() ([]types.Agent, error) {
	if err := ensureFile(s.paths.Agents, "[]"); err != nil {
		return nil, err
	}
	var agents []types.Agent
	if err := readJSON(s.paths.Agents, &agents); err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []types.Agent{}
	}
	return agents, nil
}

// SaveAgents 写入 Agent 列表
func (s *JSONStore) SaveAgents(ctx context.Context, agents []types.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveAgents(agents)
}

func (s *JSONStore) saveAgents(agents []types.Agent) error {
	if agents == nil {
		agents = []types.Agent{}
	}
	return writeJSON(s.paths.Agents, agents)
}

// UpdateAgent 读取-修改-写回单个 Agent
func (s *JSONStore) UpdateAgent(ctx context.Context, id int, fn func(*types.Agent) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents, err := s.loadAgents()
	if err != nil {
		return err
	}
	agent := types.FindAgent(agents, id)
	if agent == nil {
		return AgentNotFound(id)
	}
	if err := fn(agent); err != nil {
		return err
	}
	return s.saveAgents(agents)
}

// LoadBoard 读取看板，文件不存在时返回空看板
func (s *JSONStore) LoadBoard(ctx context.Context) (*types.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board := &types.Board{Tasks: []types.Task{}}
	if err := readJSON(s.paths.Board, board); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &types.Board{Tasks: []types.Task{}}, nil
		}
		return nil, err
	}
	if board.Tasks == nil {
		board.Tasks = []types.Task{}
	}
	return board, nil
}

// SaveBoard 写入看板
func (s *JSONStore) SaveBoard(ctx context.Context, board *types.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := types.Board{Tasks: board.Tasks}
	if out.Tasks == nil {
		out.Tasks = []types.Task{}
	}
	return writeJSON(s.paths.Board, out)
}

// LoadOKRs 读取 OKR 列表，文件不存在时返回空列表
func (s *JSONStore) LoadOKRs(ctx context.Context) ([]types.Okr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var okrs []types.Okr
	if err := readJSON(s.paths.OKRs, &okrs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if okrs == nil {
		okrs = []types.Okr{}
	}
	return okrs, nil
}

// SaveOKRs 写入 OKR 列表
func (s *JSONStore) SaveOKRs(ctx context.Context, okrs []types.Okr) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if okrs == nil {
		okrs = []types.Okr{}
	}
	return writeJSON(s.paths.OKRs, okrs)
}

// MarkRunning 计数加一，并确保 Agent 在运行集合中
func (s *JSONStore) MarkRunning(ctx context.Context, agentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running[agentID]++
	return s.updateRunning(func(ids []int) []int {
		if slices.Contains(ids, agentID) {
			return ids
		}
		return append(ids, agentID)
	})
}

// MarkIdle 计数减一，本进程内没有其他执行时将 Agent 移出运行集合
func (s *JSONStore) MarkIdle(ctx context.Context, agentID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running[agentID] > 1 {
		s.running[agentID]--
		return nil
	}
	delete(s.running, agentID)
	return s.updateRunning(func(ids []int) []int {
		return slices.DeleteFunc(ids, func(id int) bool { return id == agentID })
	})
}

// Running 返回运行中的 Agent ID
func (s *JSONStore) Running(ctx context.Context) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRunning()
}

func (s *JSONStore) loadRunning() ([]int, error) {
	if err := ensureFile(s.paths.RunningAgents, "[]"); err != nil {
		return nil, err
	}
	var ids []int
	if err := readJSON(s.paths.RunningAgents, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

// updateRunning 调用方持有 s.mu
func (s *JSONStore) updateRunning(fn func([]int) []int) error {
	ids, err := s.loadRunning()
	if err != nil {
		return err
	}
	return writeJSON(s.paths.RunningAgents, fn(ids))
}

// Close JSON 存储无需释放资源
func (s *JSONStore) Close() error {
	return nil
}

// ensureFile 文件不存在时以初始内容创建
func ensureFile(path, initial string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(initial), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON 以缩进格式原子写入：先写临时文件再重命名
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
