// Package main 是 taskter 的命令行入口
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/config"
)

// rootOptions 全局参数，对应 config.Option
type rootOptions struct {
	cfgFile  string
	storage  string
	logLevel string

	paths     config.PathsConfig
	openai    config.OpenAIConfig
	geminiKey string
	ollamaKey string
	ollamaURL string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "taskter",
		Short:         "taskter - a task board worked by LLM agents",
		Long:          `taskter keeps a task board, OKRs and a team of LLM agents that execute tasks with tools, on demand or on a cron schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// 全局 flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.yaml or ./.taskter/config.yaml)")
	pf.StringVar(&opts.paths.DataDir, "data-dir", "", "data directory (default .taskter)")
	pf.StringVar(&opts.paths.Board, "board-file", "", "board JSON file")
	pf.StringVar(&opts.paths.OKRs, "okrs-file", "", "OKRs JSON file")
	pf.StringVar(&opts.paths.Log, "log-file", "", "activity log file")
	pf.StringVar(&opts.paths.Agents, "agents-file", "", "agents JSON file")
	pf.StringVar(&opts.paths.Description, "description-file", "", "project description file")
	pf.StringVar(&opts.paths.EmailConfig, "email-config-file", "", "email configuration file")
	pf.StringVar(&opts.paths.RunningAgents, "running-agents-file", "", "running agents file")
	pf.StringVar(&opts.paths.ResponsesLog, "responses-log-file", "", "API responses debug log")

	pf.StringVar(&opts.openai.APIKey, "openai-api-key", "", "OpenAI API key")
	pf.StringVar(&opts.openai.BaseURL, "openai-base-url", "", "OpenAI base URL")
	pf.StringVar(&opts.openai.ResponsesEndpoint, "openai-responses-endpoint", "", "OpenAI responses endpoint")
	pf.StringVar(&opts.openai.ChatEndpoint, "openai-chat-endpoint", "", "OpenAI chat completions endpoint")
	pf.StringVar(&opts.openai.RequestStyle, "openai-request-style", "", "OpenAI request style (responses or chat)")
	pf.StringVar(&opts.openai.ResponseFormat, "openai-response-format", "", "OpenAI response format (JSON or type name)")
	pf.StringVar(&opts.geminiKey, "gemini-api-key", "", "Gemini API key")
	pf.StringVar(&opts.ollamaKey, "ollama-api-key", "", "Ollama API key")
	pf.StringVar(&opts.ollamaURL, "ollama-base-url", "", "Ollama base URL")

	pf.StringVar(&opts.storage, "storage", "", "storage driver (json or sqlite)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	// 添加子命令
	rootCmd.AddCommand(initCmd(opts))
	rootCmd.AddCommand(taskCmd(opts))
	rootCmd.AddCommand(agentCmd(opts))
	rootCmd.AddCommand(okrsCmd(opts))
	rootCmd.AddCommand(logsCmd(opts))
	rootCmd.AddCommand(descriptionCmd(opts))
	rootCmd.AddCommand(toolsCmd(opts))
	rootCmd.AddCommand(schedulerCmd(opts))
	rootCmd.AddCommand(mcpCmd(opts))
	rootCmd.AddCommand(serveCmd(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// configOptions 将命令行参数转换为配置覆盖
func (o *rootOptions) configOptions() []config.Option {
	return []config.Option{
		config.WithPaths(o.paths),
		config.WithOpenAI(o.openai),
		config.WithGeminiAPIKey(o.geminiKey),
		config.WithOllama(o.ollamaKey, o.ollamaURL),
		config.WithStorageDriver(o.storage),
		config.WithLogLevel(o.logLevel),
	}
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile, o.configOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp 加载配置并初始化应用
// 一次性命令不启动 Telegram，未指定日志级别时只输出警告
func (o *rootOptions) newApp(daemon bool, extra ...chassis.Option) (*chassis.App, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if !daemon && o.logLevel == "" {
		cfg.Log.Level = "warn"
	}

	appOpts := make([]chassis.Option, 0, len(extra)+2)
	if exe, err := os.Executable(); err == nil {
		appOpts = append(appOpts, chassis.WithBinary(exe))
	}
	if !daemon {
		appOpts = append(appOpts, chassis.WithoutTelegram())
	}
	appOpts = append(appOpts, extra...)

	app := chassis.New(cfg, appOpts...)
	if err := app.Initialize(); err != nil {
		_ = app.Shutdown()
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return app, nil
}

// withApp 为一次性命令创建应用，执行完后关闭
func (o *rootOptions) withApp(fn func(cmd *cobra.Command, args []string, app *chassis.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := o.newApp(false)
		if err != nil {
			return err
		}
		defer app.Shutdown()
		return fn(cmd, args, app)
	}
}

// versionCmd 显示版本信息
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskter v%s\n", chassis.Version)
		},
	}
}
