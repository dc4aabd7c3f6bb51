package scheduler

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce 文件变化后等待的时间，合并连续写入
const WatchDebounce = 500 * time.Millisecond

// Watch 监听 Agent 文件，变化后重新加载计划，直到 ctx 结束
// 监听所在目录，兼容临时文件 + rename 的原子写入
func (s *CronScheduler) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}
	s.logger.Info("watching agents file", "path", abs)

	timer := time.NewTimer(WatchDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				timer.Reset(WatchDebounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("agents watcher error", "error", err)
		case <-timer.C:
			if err := s.Reload(ctx); err != nil {
				s.logger.Error("failed to reload schedules", "error", err)
				continue
			}
			s.logger.Info("schedules reloaded", "entries", s.Len())
		}
	}
}
