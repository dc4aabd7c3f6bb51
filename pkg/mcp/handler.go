// Package mcp 通过 Model Context Protocol 暴露内置工具
// 支持 stdio 传输，同一个 Handler 也服务 HTTP 端点
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/protocol"
	"github.com/KodaTao/taskter/pkg/types"
)

// ProtocolVersion 默认 MCP 协议版本，客户端请求其他版本时原样返回
const ProtocolVersion = "2025-06-18"

// ServerName initialize 返回的服务名
const ServerName = "taskter"

// ToolSource 工具来源，function.Registry 满足该接口
type ToolSource interface {
	Declarations() []types.FunctionDeclaration
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Handler 处理单条 JSON-RPC 请求
type Handler struct {
	tools   ToolSource
	version string
	parser  *protocol.Parser
}

// NewHandler 创建处理器
func NewHandler(tools ToolSource, version string) *Handler {
	return &Handler{tools: tools, version: version, parser: protocol.NewParser()}
}

// ToolDescriptor tools/list 中的工具描述
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// TextContent 文本内容块
type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult tools/call 的结果
type CallResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type callParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Handle 处理一条原始请求
// 通知返回 nil 响应；shutdown 为 true 时调用方应停止服务
func (h *Handler) Handle(ctx context.Context, raw []byte) (resp *protocol.Response, shutdown bool) {
	req, err := h.parser.ParseRequest(raw)
	if err != nil {
		return protocol.NewError(nil, protocol.CodeParseError, fmt.Sprintf("Invalid JSON: %v", err)), false
	}

	if req.JSONRPC != "" && req.JSONRPC != protocol.Version {
		resp = protocol.NewError(req.ResponseID(), protocol.CodeInvalidRequest,
			fmt.Sprintf("Unsupported jsonrpc version `%s`", req.JSONRPC))
		if req.IsNotification() {
			return nil, false
		}
		return resp, false
	}

	resp, shutdown = h.dispatch(ctx, req)
	if req.IsNotification() {
		return nil, shutdown
	}
	return resp, shutdown
}

func (h *Handler) dispatch(ctx context.Context, req *protocol.Request) (*protocol.Response, bool) {
	id := req.ResponseID()
	switch req.Method {
	case "initialize":
		return h.initialize(req), false
	case "ping":
		return protocol.NewResult(id, map[string]any{}), false
	case "tools/list":
		return protocol.NewResult(id, map[string]any{"tools": h.descriptors()}), false
	case "tools/call":
		return h.call(ctx, req), false
	case "shutdown":
		return protocol.NewResult(id, map[string]any{}), true
	default:
		if strings.HasPrefix(req.Method, "notifications/") {
			return protocol.NewResult(id, map[string]any{}), false
		}
		return protocol.NewError(id, protocol.CodeMethodNotFound,
			fmt.Sprintf("Method `%s` not implemented", req.Method)), false
	}
}

func (h *Handler) initialize(req *protocol.Request) *protocol.Response {
	version := ProtocolVersion
	if len(req.Params) > 0 {
		var params struct {
			ProtocolVersion string `json:"protocolVersion"`
		}
		if err := json.Unmarshal(req.Params, &params); err == nil && params.ProtocolVersion != "" {
			version = params.ProtocolVersion
		}
	}
	return protocol.NewResult(req.ResponseID(), map[string]any{
		"protocolVersion": version,
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
		"serverInfo": map[string]any{
			"name":    ServerName,
			"version": h.version,
		},
	})
}

// descriptors 工具声明转换为 MCP 描述，缺少参数 schema 时使用宽松的 object
func (h *Handler) descriptors() []ToolDescriptor {
	decls := h.tools.Declarations()
	out := make([]ToolDescriptor, 0, len(decls))
	for _, d := range decls {
		schema := d.Parameters
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		out = append(out, ToolDescriptor{
			Name:        d.Name,
			Description: d.DescriptionText(),
			InputSchema: schema,
		})
	}
	return out
}

func (h *Handler) call(ctx context.Context, req *protocol.Request) *protocol.Response {
	id := req.ResponseID()
	var params callParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return protocol.NewError(id, protocol.CodeInvalidParams, "Invalid params: "+err.Error())
		}
	}
	if params.Name == "" {
		return protocol.NewError(id, protocol.CodeInvalidParams, "Missing tool name")
	}

	output, err := h.tools.Execute(ctx, params.Name, llm.DecodeArguments(params.Arguments))
	if err != nil {
		if errors.Is(err, function.ErrFunctionNotFound) {
			return protocol.NewError(id, protocol.CodeInvalidParams, err.Error())
		}
		observability.WarnContext(ctx, "MCP tool call failed", "tool", params.Name, "error", err)
		return protocol.NewResult(id, CallResult{
			Content: []TextContent{{Type: "text", Text: fmt.Sprintf("Tool `%s` failed: %v", params.Name, err)}},
			IsError: true,
		})
	}
	return protocol.NewResult(id, CallResult{
		Content: []TextContent{{Type: "text", Text: output}},
	})
}
