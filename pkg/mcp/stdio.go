package mcp

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/protocol"
)

// Server 基于流的 MCP 服务
type Server struct {
	handler *Handler
	trace   observability.Journal
}

// ServerOption 服务选项
type ServerOption func(*Server)

// WithTrace 记录每条收发的消息
func WithTrace(j observability.Journal) ServerOption {
	return func(s *Server) {
		s.trace = j
	}
}

// NewServer 创建服务
func NewServer(handler *Handler, opts ...ServerOption) *Server {
	s := &Server{handler: handler, trace: observability.Discard}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TraceFromEnv 设置了 TASKTER_MCP_TRACE 时返回写入跟踪文件的 Journal
// 文件位置取 TASKTER_MCP_TRACE_FILE，默认在临时目录
func TraceFromEnv() observability.Journal {
	if _, ok := os.LookupEnv("TASKTER_MCP_TRACE"); !ok {
		return observability.Discard
	}
	path := strings.TrimSpace(os.Getenv("TASKTER_MCP_TRACE_FILE"))
	if path == "" {
		path = filepath.Join(os.TempDir(), "taskter_mcp_trace.log")
	}
	return observability.NewActivityLog(path)
}

// ServeStdio 在标准输入输出上提供服务
func ServeStdio(ctx context.Context, handler *Handler) error {
	server := NewServer(handler, WithTrace(TraceFromEnv()))
	return server.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve 处理流上的消息直到 EOF、shutdown 或 ctx 取消
// 回复使用与请求相同的分帧方式
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)
	encoder := protocol.NewEncoder(writer)

	cwd, _ := os.Getwd()
	s.trace.Record(fmt.Sprintf("MCP server started (pid=%d, cwd=%q)", os.Getpid(), cwd))

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		msg, err := protocol.ReadMessage(reader)
		if err != nil {
			s.trace.Record(fmt.Sprintf("MCP header error: %v", err))
			return err
		}
		if msg == nil {
			return nil
		}
		if !utf8.Valid(msg.Body) {
			return fmt.Errorf("MCP body not valid UTF-8")
		}

		if msg.Framed() {
			s.trace.Record(fmt.Sprintf("MCP <- headers: %q", msg.Headers))
		} else {
			s.trace.Record("MCP <- headers: (none, line-delimited request)")
		}
		s.trace.Record("MCP <- body: " + string(msg.Body))

		resp, shutdown := s.handler.Handle(ctx, msg.Body)
		if resp != nil {
			if err := encoder.Encode(resp, msg.Framed()); err != nil {
				return err
			}
			s.trace.Record(fmt.Sprintf("MCP -> response (framed=%t)", msg.Framed()))
		} else {
			s.trace.Record("MCP -> (notification, no response)")
		}

		if shutdown {
			return nil
		}
	}
}
