package chassis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/KodaTao/taskter/pkg/config"
	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/function/builtin"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/scheduler"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/telegram"
)

// App taskter 应用实例，负责装配各组件
type App struct {
	config      *config.Config
	store       storage.Store
	registry    *function.Registry
	activity    *observability.ActivityLog
	engine      *Engine
	scheduler   *scheduler.CronScheduler
	telegramBot *telegram.Bot

	binary     string
	noTelegram bool
	extra      []function.Function
	engineOpts []EngineOption
}

// New 创建 App 实例
func New(cfg *config.Config, opts ...Option) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		config:   cfg,
		registry: function.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize 初始化应用
// 顺序：日志、指标、存储、工具、执行引擎、调度器、Telegram
func (a *App) Initialize() error {
	cfg := a.config

	// 1. 初始化日志
	if err := observability.InitLogger(observability.LogConfig{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	observability.Info("Initializing taskter",
		"data_dir", cfg.Paths.DataDir,
		"storage", cfg.Storage.Driver,
		"timezone", cfg.Scheduler.Timezone,
	)

	// 2. 指标
	if cfg.Metrics.Enabled {
		if err := observability.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	// 3. 存储
	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	a.store = store
	a.activity = observability.NewActivityLog(cfg.Paths.Log)

	// 4. 执行引擎
	opts := append([]EngineOption{WithActivityLog(a.activity)}, a.engineOpts...)
	a.engine = NewEngine(cfg, a.registry, store, opts...)

	// 5. 调度器
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	schedOpts := []scheduler.Option{
		scheduler.WithLocation(loc),
		scheduler.WithMaxConcurrency(cfg.Scheduler.MaxConcurrency),
		scheduler.WithLogger(slog.Default()),
	}
	if recorder, ok := store.(storage.ExecutionRecorder); ok {
		schedOpts = append(schedOpts, scheduler.WithRecorder(recorder))
	}

	// 6. Telegram（可选），调度摘要通过它发送
	if cfg.Telegram.Enabled && !a.noTelegram {
		bot, err := telegram.NewBot(telegram.FromConfig(cfg.Telegram), telegram.Commands{
			Board:  store,
			Agents: store,
		}, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to initialize telegram bot: %w", err)
		}
		a.telegramBot = bot
		schedOpts = append(schedOpts, scheduler.WithNotifier(bot.Notifier()))
	}
	a.scheduler = scheduler.New(store, a.engine, schedOpts...)
	if a.telegramBot != nil {
		// 调度器创建后再注入 Runner
		a.telegramBot.SetCommands(a.TelegramCommands())
	}

	// 7. 工具
	a.registry.SetTimeout(cfg.Tools.Timeout)
	if err := builtin.RegisterAll(a.registry, builtin.Deps{
		Store:     store,
		Paths:     cfg.Paths,
		Activity:  a.activity,
		Binary:    a.binary,
		Scheduler: a.scheduler,
	}); err != nil {
		return fmt.Errorf("failed to register builtin tools: %w", err)
	}
	if err := a.registry.RegisterAll(a.extra...); err != nil {
		return fmt.Errorf("failed to register functions: %w", err)
	}

	observability.Info("taskter initialized",
		"registered_functions", a.registry.Count(),
	)
	return nil
}

// Start 启动调度器、目录监听和 Telegram Bot
func (a *App) Start(ctx context.Context) error {
	if a.scheduler == nil {
		return fmt.Errorf("app is not initialized")
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	observability.Info("Scheduler started", "entries", a.scheduler.Len())

	if a.config.Scheduler.Watch && a.config.Storage.Driver == "json" {
		go func() {
			if err := a.scheduler.Watch(ctx, a.config.Paths.Agents); err != nil {
				observability.Warn("Agents file watch stopped", "error", err)
			}
		}()
	}

	if a.telegramBot != nil {
		a.telegramBot.Start()
		observability.Info("Telegram Bot started")
	}
	return nil
}

// TelegramCommands Bot 命令处理器
func (a *App) TelegramCommands() telegram.Commands {
	return telegram.Commands{Board: a.store, Agents: a.store, Runner: a.scheduler}
}

// Config 返回配置
func (a *App) Config() *config.Config {
	return a.config
}

// Store 返回存储
func (a *App) Store() storage.Store {
	return a.store
}

// Registry 返回工具注册表
func (a *App) Registry() *function.Registry {
	return a.registry
}

// Engine 返回执行引擎
func (a *App) Engine() *Engine {
	return a.engine
}

// Scheduler 返回调度器
func (a *App) Scheduler() *scheduler.CronScheduler {
	return a.scheduler
}

// ActivityLog 返回活动日志
func (a *App) ActivityLog() *observability.ActivityLog {
	return a.activity
}

// Shutdown 关闭应用
func (a *App) Shutdown() error {
	observability.Info("Shutting down taskter")

	if a.telegramBot != nil {
		a.telegramBot.Stop()
		observability.Info("Telegram Bot stopped")
	}
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			observability.Error("Failed to close storage", "error", err)
			return err
		}
	}

	observability.Info("taskter shutdown complete")
	return nil
}
