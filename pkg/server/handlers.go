package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/storage"
	"github.com/KodaTao/taskter/pkg/types"
)

// defaultExecutionLimit 执行历史默认条数
const defaultExecutionLimit = 20

// 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	})
}

// 列出所有工具
func (s *Server) listTools(c *gin.Context) {
	tools := s.app.Registry().ListInfo()
	c.JSON(http.StatusOK, gin.H{
		"tools": tools,
		"count": len(tools),
	})
}

// 直接调用工具
func (s *Server) callTool(c *gin.Context) {
	name := c.Param("name")

	var req ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	output, err := s.app.Registry().Execute(c.Request.Context(), name, req.Arguments)
	if err != nil {
		if errors.Is(err, function.ErrFunctionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"output": output})
}

// 列出所有 Agent
func (s *Server) listAgents(c *gin.Context) {
	agents, err := s.app.Store().LoadAgents(c.Request.Context())
	if err != nil {
		s.internalError(c, "Failed to load agents", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"agents": agents,
		"count":  len(agents),
	})
}

// 正在运行的 Agent
func (s *Server) runningAgents(c *gin.Context) {
	ids, err := s.app.Store().Running(c.Request.Context())
	if err != nil {
		s.internalError(c, "Failed to load running agents", err)
		return
	}
	if ids == nil {
		ids = []int{}
	}
	c.JSON(http.StatusOK, gin.H{"running": ids})
}

// 立即执行 Agent
func (s *Server) executeAgent(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent id"})
		return
	}

	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	result, err := s.app.RunAgent(c.Request.Context(), id, req.TaskID)
	if err != nil {
		if errors.Is(err, storage.ErrAgentNotFound) || errors.Is(err, storage.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		s.internalError(c, "Execution failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// 列出任务，可按状态过滤
func (s *Server) listTasks(c *gin.Context) {
	var query TaskQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}

	board, err := s.app.Store().LoadBoard(c.Request.Context())
	if err != nil {
		s.internalError(c, "Failed to load board", err)
		return
	}

	tasks := make([]types.Task, 0, len(board.Tasks))
	for _, t := range board.Tasks {
		if query.Status != "" && string(t.Status) != query.Status {
			continue
		}
		tasks = append(tasks, t)
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// 创建任务
func (s *Server) createTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	board, err := s.app.Store().LoadBoard(ctx)
	if err != nil {
		s.internalError(c, "Failed to load board", err)
		return
	}
	task := types.Task{
		ID:          board.NextTaskID(),
		Title:       req.Title,
		Description: req.Description,
		Status:      types.StatusToDo,
		AgentID:     req.AgentID,
	}
	board.Tasks = append(board.Tasks, task)
	if err := s.app.Store().SaveBoard(ctx, board); err != nil {
		s.internalError(c, "Failed to save board", err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// 已注册的计划
func (s *Server) listSchedules(c *gin.Context) {
	entries := s.app.Scheduler().Entries()
	c.JSON(http.StatusOK, gin.H{
		"schedules": entries,
		"count":     len(entries),
	})
}

// 执行历史，只有 sqlite 后端支持
func (s *Server) listExecutions(c *gin.Context) {
	recorder, ok := s.app.Store().(storage.ExecutionRecorder)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "execution history requires the sqlite storage driver"})
		return
	}

	var query ExecutionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultExecutionLimit
	}

	execs, err := recorder.ListExecutions(c.Request.Context(), query.AgentID, query.Limit)
	if err != nil {
		s.internalError(c, "Failed to load executions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"executions": execs,
		"count":      len(execs),
	})
}

// MCP JSON-RPC 请求，通知返回 202
func (s *Server) handleMCP(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	resp, _ := s.mcp.Handle(c.Request.Context(), body)
	if resp == nil {
		c.Status(http.StatusAccepted)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	observability.ErrorContext(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg + ": " + err.Error()})
}
