// Package server 提供 HTTP API
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KodaTao/taskter/pkg/chassis"
	"github.com/KodaTao/taskter/pkg/mcp"
	"github.com/KodaTao/taskter/pkg/observability"
)

// Server HTTP 服务器
type Server struct {
	app    *chassis.App
	engine *gin.Engine
	config *ServerConfig
	mcp    *mcp.Handler
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string
	Port int
	Mode string // debug, release, test

	// MetricsPath 为空时不暴露指标
	MetricsPath string
}

// NewServer 创建 HTTP 服务器
func NewServer(app *chassis.App, config *ServerConfig) *Server {
	// 设置 Gin 模式
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	// 添加中间件
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware())
	engine.Use(CORSMiddleware())

	server := &Server{
		app:    app,
		engine: engine,
		config: config,
		mcp:    mcp.NewHandler(app.Registry(), chassis.Version),
	}

	// 注册路由
	server.setupRoutes()

	return server
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 健康检查
	s.engine.GET("/health", s.healthCheck)
	if s.config.MetricsPath != "" {
		s.engine.GET(s.config.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 工具
		v1.GET("/tools", s.listTools)
		v1.POST("/tools/:name/call", s.callTool)

		// Agent
		v1.GET("/agents", s.listAgents)
		v1.GET("/agents/running", s.runningAgents)
		v1.POST("/agents/:id/execute", s.executeAgent)

		// 看板
		v1.GET("/tasks", s.listTasks)
		v1.POST("/tasks", s.createTask)

		// 调度和执行历史
		v1.GET("/schedules", s.listSchedules)
		v1.GET("/executions", s.listExecutions)

		// MCP over HTTP
		v1.POST("/mcp", s.handleMCP)
	}
}

// Run 启动服务器，ctx 取消时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Info("Starting HTTP server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		observability.Info("Stopping HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// GetEngine 获取 Gin 引擎（用于测试）
func (s *Server) GetEngine() *gin.Engine {
	return s.engine
}
