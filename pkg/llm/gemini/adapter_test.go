package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/types"
)

func testAgent() *types.Agent {
	return &types.Agent{
		ID:           1,
		SystemPrompt: "You send emails",
		Model:        "gemini-2.5-flash",
		Tools: []types.FunctionDeclaration{{
			Name:        "send_email",
			Description: types.StringPtr("Send an email"),
			Parameters:  map[string]any{"type": "object"},
		}},
	}
}

// roundTrip 将值编码后再解码为通用 JSON，便于断言
func roundTrip(t *testing.T, v any) any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return out
}

func TestAdapter_Basics(t *testing.T) {
	a := New("")
	if a.Name() != "gemini" || a.APIKeyEnvVar() != "GEMINI_API_KEY" || !a.RequiresAPIKey() {
		t.Errorf("unexpected adapter identity")
	}
	want := "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash:generateContent"
	if got := a.Endpoint(testAgent()); got != want {
		t.Errorf("Endpoint() = %s, want %s", got, want)
	}
	if got := New("http://localhost:9000/").Endpoint(testAgent()); got != "http://localhost:9000/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("Endpoint() with base = %s", got)
	}

	headers := a.Headers("k")
	if len(headers) != 2 || headers[0].Name != "x-goog-api-key" || headers[0].Value != "k" {
		t.Errorf("Headers() = %v", headers)
	}
}

func TestAdapter_History(t *testing.T) {
	a := New("")
	agent := testAgent()
	history := a.BuildInitialHistory(agent, "Task Title: Send report")

	got := roundTrip(t, history).([]any)
	first := got[0].(map[string]any)
	if first["role"] != "user" {
		t.Errorf("role = %v", first["role"])
	}
	text := first["parts"].([]any)[0].(map[string]any)["text"]
	if text != "System: You send emails\nUser: Task Title: Send report" {
		t.Errorf("text = %q", text)
	}

	a.AppendToolResult(agent, &history, "send_email", map[string]any{"to": "a@b.c"}, "sent", "")
	got = roundTrip(t, history).([]any)
	if len(got) != 3 {
		t.Fatalf("history len = %d, want 3", len(got))
	}
	model := got[1].(map[string]any)
	if model["role"] != "model" {
		t.Errorf("role = %v, want model", model["role"])
	}
	call := model["parts"].([]any)[0].(map[string]any)["functionCall"].(map[string]any)
	if call["name"] != "send_email" || call["args"].(map[string]any)["to"] != "a@b.c" {
		t.Errorf("functionCall = %v", call)
	}
	tool := got[2].(map[string]any)
	if tool["role"] != "tool" {
		t.Errorf("role = %v, want tool", tool["role"])
	}
	fr := tool["parts"].([]any)[0].(map[string]any)["functionResponse"].(map[string]any)
	if fr["name"] != "send_email" || fr["response"].(map[string]any)["content"] != "sent" {
		t.Errorf("functionResponse = %v", fr)
	}
}

func TestAdapter_RequestBody(t *testing.T) {
	a := New("")
	agent := testAgent()
	body := roundTrip(t, a.RequestBody(agent, a.BuildInitialHistory(agent, ""), a.ToolsPayload(agent))).(map[string]any)

	if _, ok := body["contents"].([]any); !ok {
		t.Fatalf("contents missing: %v", body)
	}
	tools := body["tools"].([]any)
	if len(tools) != 1 {
		t.Fatalf("tools = %v", tools)
	}
	decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
	if decls[0].(map[string]any)["name"] != "send_email" {
		t.Errorf("functionDeclarations = %v", decls)
	}

	// 没有工具时仍是空数组
	empty := roundTrip(t, a.ToolsPayload(&types.Agent{})).(map[string]any)
	if list, ok := empty["functionDeclarations"].([]any); !ok || len(list) != 0 {
		t.Errorf("empty tools = %v", empty)
	}
}

func TestAdapter_ParseResponse(t *testing.T) {
	a := New("")

	action, err := a.ParseResponse([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"functionCall":{"name":"send_email","args":{"to":"a@b.c"}}}]}}]}`))
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if !action.IsToolCall() || action.Name != "send_email" || action.Args["to"] != "a@b.c" {
		t.Errorf("ParseResponse() = %+v", action)
	}

	// 响应里带 id 也不作为调用关联 ID
	action, err = a.ParseResponse([]byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"id":"call-1","name":"list_tasks","args":{}}}]}}]}`))
	if err != nil || action.CallID != "" {
		t.Errorf("ParseResponse() call id = %+v, %v", action, err)
	}

	action, err = a.ParseResponse([]byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"list_tasks"}}]}}]}`))
	if err != nil || action.Args == nil || len(action.Args) != 0 {
		t.Errorf("ParseResponse() without args = %+v, %v", action, err)
	}

	action, err = a.ParseResponse([]byte(`{"candidates":[{"content":{"parts":[{"text":"All done"}]}}]}`))
	if err != nil || action.IsToolCall() || action.Content != "All done" {
		t.Errorf("ParseResponse() text = %+v, %v", action, err)
	}

	// 空文本仍是文本回复
	action, err = a.ParseResponse([]byte(`{"candidates":[{"content":{"parts":[{"text":""}]}}]}`))
	if err != nil || action.IsToolCall() || action.Content != "" {
		t.Errorf("ParseResponse() empty text = %+v, %v", action, err)
	}

	for _, body := range []string{
		`{}`,
		`{"candidates":[]}`,
		`{"candidates":[{"content":{"parts":[{"functionCall":{"args":{}}}]}}]}`,
		`{"candidates":[{"content":{"parts":[{}]}}]}`,
		`{"candidates":[{"content":{"parts":[{"text":null}]}}]}`,
	} {
		_, err := a.ParseResponse([]byte(body))
		var formatErr *llm.ResponseFormatError
		if !errors.As(err, &formatErr) {
			t.Errorf("ParseResponse(%s) error = %v, want ResponseFormatError", body, err)
		}
	}
}

func TestAdapter_InferThroughClient(t *testing.T) {
	var gotPath, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	defer server.Close()

	a := New(server.URL)
	agent := testAgent()
	client := llm.NewClient(server.Client(), nil)
	action, err := client.Infer(context.Background(), a, agent, "gem-key", a.BuildInitialHistory(agent, "x"))
	if err != nil {
		t.Fatalf("Infer() error = %v", err)
	}
	if action.Content != "ok" {
		t.Errorf("Infer() = %+v", action)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path = %s", gotPath)
	}
	if gotKey != "gem-key" {
		t.Errorf("x-goog-api-key = %s", gotKey)
	}
}
