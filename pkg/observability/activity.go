package observability

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ActivityTimeLayout 活动日志时间戳格式
const ActivityTimeLayout = "2006-01-02 15:04:05"

// Journal 追加式日志接口
type Journal interface {
	Record(message string)
}

// ActivityLog 追加式文本活动日志
// 每行格式：[YYYY-MM-DD HH:MM:SS] message
type ActivityLog struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewActivityLog 创建活动日志
func NewActivityLog(path string) *ActivityLog {
	return &ActivityLog{path: path, now: time.Now}
}

// Path 返回日志文件路径
func (l *ActivityLog) Path() string {
	return l.path
}

// Append 追加一行日志
func (l *ActivityLog) Append(message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] %s\n", l.now().Format(ActivityTimeLayout), message)
	return err
}

// Record 追加日志，失败时只告警，不影响调用方
func (l *ActivityLog) Record(message string) {
	if l == nil {
		return
	}
	if err := l.Append(message); err != nil {
		Warn("failed to write activity log", "path", l.path, "error", err)
	}
}

// Entries 读取全部日志行，文件不存在时返回空
func (l *ActivityLog) Entries() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Discard 丢弃所有记录的 Journal
var Discard Journal = discardJournal{}

type discardJournal struct{}

func (discardJournal) Record(string) {}

// MemoryJournal 内存中的 Journal，主要用于测试
type MemoryJournal struct {
	mu    sync.Mutex
	lines []string
}

// Record 记录一行
func (j *MemoryJournal) Record(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.lines = append(j.lines, message)
}

// Lines 返回已记录内容的副本
func (j *MemoryJournal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.lines))
	copy(out, j.lines)
	return out
}

// Contains 是否有任意一行包含 substr
func (j *MemoryJournal) Contains(substr string) bool {
	for _, line := range j.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
