package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/protocol"
	"github.com/KodaTao/taskter/pkg/types"
)

// fakeTools 固定的工具来源
type fakeTools struct {
	calls []string
	args  []map[string]any
}

func (f *fakeTools) Declarations() []types.FunctionDeclaration {
	return []types.FunctionDeclaration{
		{Name: "add_log", Description: types.StringPtr("Add a log entry"), Parameters: map[string]any{"type": "object"}},
		{Name: "get_description"},
	}
}

func (f *fakeTools) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	switch name {
	case "add_log":
		return "Log entry added", nil
	case "get_description":
		return "", errors.New("no description")
	default:
		return "", fmt.Errorf("%w: %s", function.ErrFunctionNotFound, name)
	}
}

func decode(t *testing.T, resp *protocol.Response) map[string]any {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func TestHandler_Initialize(t *testing.T) {
	h := NewHandler(&fakeTools{}, "0.1.0")

	resp, _ := h.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`))
	out := decode(t, resp)
	result := out["result"].(map[string]any)
	if result["protocolVersion"] != ProtocolVersion {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
	info := result["serverInfo"].(map[string]any)
	if info["name"] != "taskter" || info["version"] != "0.1.0" {
		t.Errorf("serverInfo = %v", info)
	}

	resp, _ = h.Handle(context.Background(), []byte(`{"method":"initialize","params":{"protocolVersion":"2024-11-05"}}`))
	out = decode(t, resp)
	if out["id"] != nil {
		t.Errorf("Expected null id, got %v", out["id"])
	}
	if out["result"].(map[string]any)["protocolVersion"] != "2024-11-05" {
		t.Errorf("Expected requested protocol version to be echoed: %v", out)
	}
}

func TestHandler_ToolsList(t *testing.T) {
	h := NewHandler(&fakeTools{}, "0.1.0")

	resp, _ := h.Handle(context.Background(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`))
	out := decode(t, resp)
	tools := out["result"].(map[string]any)["tools"].([]any)
	if len(tools) != 2 {
		t.Fatalf("Expected 2 tools, got %d", len(tools))
	}
	first := tools[0].(map[string]any)
	if first["name"] != "add_log" || first["description"] != "Add a log entry" {
		t.Errorf("Unexpected descriptor: %v", first)
	}
	second := tools[1].(map[string]any)
	schema := second["inputSchema"].(map[string]any)
	if schema["type"] != "object" {
		t.Errorf("Expected permissive schema, got %v", schema)
	}
}

func TestHandler_ToolsCall(t *testing.T) {
	tools := &fakeTools{}
	h := NewHandler(tools, "0.1.0")
	ctx := context.Background()

	resp, _ := h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"add_log","arguments":{"message":"hi"}}}`))
	out := decode(t, resp)
	content := out["result"].(map[string]any)["content"].([]any)
	if text := content[0].(map[string]any)["text"]; text != "Log entry added" {
		t.Errorf("Unexpected text: %v", text)
	}
	if tools.args[0]["message"] != "hi" {
		t.Errorf("Arguments not forwarded: %v", tools.args[0])
	}

	// 字符串形式的 arguments 也能解析
	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"add_log","arguments":"{\"message\":\"x\"}"}}`))
	if resp.Error != nil || tools.args[1]["message"] != "x" {
		t.Errorf("String arguments not decoded: %v %v", resp.Error, tools.args[1])
	}

	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"get_description"}}`))
	out = decode(t, resp)
	result := out["result"].(map[string]any)
	if result["isError"] != true {
		t.Errorf("Expected isError, got %v", result)
	}
	text := result["content"].([]any)[0].(map[string]any)["text"].(string)
	if text != "Tool `get_description` failed: no description" {
		t.Errorf("Unexpected error text: %q", text)
	}

	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{"name":"nope"}}`))
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidParams || resp.Error.Message != "Unknown tool: nope" {
		t.Errorf("Unexpected error: %+v", resp.Error)
	}

	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{}}`))
	if resp.Error == nil || resp.Error.Message != "Missing tool name" {
		t.Errorf("Unexpected error: %+v", resp.Error)
	}
}

func TestHandler_Errors(t *testing.T) {
	h := NewHandler(&fakeTools{}, "0.1.0")
	ctx := context.Background()

	resp, _ := h.Handle(ctx, []byte(`not json`))
	if resp.Error == nil || resp.Error.Code != protocol.CodeParseError || resp.ID != nil {
		t.Errorf("Unexpected parse error response: %+v", resp)
	}

	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"1.0","id":1,"method":"ping"}`))
	if resp.Error == nil || resp.Error.Code != protocol.CodeInvalidRequest {
		t.Errorf("Unexpected version error: %+v", resp)
	}

	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`))
	if resp.Error == nil || resp.Error.Message != "Method `resources/list` not implemented" {
		t.Errorf("Unexpected method error: %+v", resp)
	}

	resp, _ = h.Handle(ctx, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	if resp != nil {
		t.Errorf("Notifications should not be answered: %+v", resp)
	}

	resp, shutdown := h.Handle(ctx, []byte(`{"jsonrpc":"2.0","id":9,"method":"shutdown"}`))
	if resp == nil || !shutdown {
		t.Errorf("Expected shutdown response, got %+v %v", resp, shutdown)
	}
}

func TestServer_LineDelimited(t *testing.T) {
	journal := &observability.MemoryJournal{}
	server := NewServer(NewHandler(&fakeTools{}, "0.1.0"), WithTrace(journal))

	input := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}` + "\n" +
		`{"jsonrpc":"2.0","method":"notifications/initialized"}` + "\n"
	var out bytes.Buffer
	if err := server.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if out.String() != `{"jsonrpc":"2.0","id":1,"result":{}}`+"\n" {
		t.Errorf("Unexpected output: %q", out.String())
	}
	if !journal.Contains("MCP -> (notification, no response)") {
		t.Errorf("Missing trace line: %q", journal.Lines())
	}
}

func TestServer_Framed(t *testing.T) {
	server := NewServer(NewHandler(&fakeTools{}, "0.1.0"))

	ping := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`
	shutdown := `{"jsonrpc":"2.0","id":2,"method":"shutdown"}`
	after := `{"jsonrpc":"2.0","id":3,"method":"ping"}`
	input := fmt.Sprintf("Content-Length: %d\r\n\r\n%sContent-Length: %d\r\n\r\n%s%s\n",
		len(ping), ping, len(shutdown), shutdown, after)

	var out bytes.Buffer
	if err := server.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	got := out.String()
	if strings.Count(got, "Content-Length: ") != 2 {
		t.Errorf("Expected 2 framed responses, got %q", got)
	}
	if !strings.Contains(got, `"result":{}`) {
		t.Errorf("Missing ping result: %q", got)
	}
	if strings.Contains(got, `"id":3`) {
		t.Errorf("Messages after shutdown should not be handled: %q", got)
	}
}

func TestServer_MissingContentLength(t *testing.T) {
	server := NewServer(NewHandler(&fakeTools{}, "0.1.0"))

	err := server.Serve(context.Background(), strings.NewReader("X-Test: 1\r\n\r\n{}"), &bytes.Buffer{})
	if !errors.Is(err, protocol.ErrMissingContentLength) {
		t.Errorf("Expected ErrMissingContentLength, got %v", err)
	}
}

func TestTraceFromEnv(t *testing.T) {
	t.Setenv("TASKTER_MCP_TRACE", "")
	os.Unsetenv("TASKTER_MCP_TRACE")
	if TraceFromEnv() != observability.Discard {
		t.Error("Expected Discard without TASKTER_MCP_TRACE")
	}

	path := t.TempDir() + "/trace.log"
	t.Setenv("TASKTER_MCP_TRACE", "1")
	t.Setenv("TASKTER_MCP_TRACE_FILE", path)
	log, ok := TraceFromEnv().(*observability.ActivityLog)
	if !ok || log.Path() != path {
		t.Errorf("Expected trace log at %s", path)
	}
}
