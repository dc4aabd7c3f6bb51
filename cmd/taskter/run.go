package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/mcp"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/server"
)

// schedulerCmd 运行调度器
func schedulerCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run the agent scheduler",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the scheduler loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := opts.newApp(true)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			if err := app.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			observability.Info("Received shutdown signal")
			return nil
		},
	})
	return cmd
}

// mcpCmd MCP 服务
func mcpCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP (Model Context Protocol) server",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			// stdout 只用于协议消息
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			cfg.Log.Output = "stderr"
			if opts.logLevel == "" {
				cfg.Log.Level = "warn"
			}

			appOpts := []chassis.Option{chassis.WithoutTelegram()}
			if exe, err := os.Executable(); err == nil {
				appOpts = append(appOpts, chassis.WithBinary(exe))
			}
			app := chassis.New(cfg, appOpts...)
			if err := app.Initialize(); err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer app.Shutdown()

			return mcp.ServeStdio(cmd.Context(), mcp.NewHandler(app.Registry(), chassis.Version))
		},
	})
	return cmd
}

// serveCmd 启动 HTTP 服务器和调度器
func serveCmd(opts *rootOptions) *cobra.Command {
	var port int
	var host string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.newApp(true)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			cfg := app.Config()
			// 命令行参数覆盖配置
			if port != 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			metricsPath := ""
			if cfg.Metrics.Enabled {
				metricsPath = cfg.Metrics.Path
			}
			srv := server.NewServer(app, &server.ServerConfig{
				Host:        cfg.Server.Host,
				Port:        cfg.Server.Port,
				Mode:        cfg.Server.Mode,
				MetricsPath: metricsPath,
			})

			g, ctx := errgroup.WithContext(cmd.Context())
			if err := app.Start(ctx); err != nil {
				return err
			}
			g.Go(func() error {
				return srv.Run(ctx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Server port (default 8080)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Server host (default 0.0.0.0)")
	return cmd
}
