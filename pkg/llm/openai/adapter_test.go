package openai

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/KodaTao/taskter/pkg/llm"
	"github.com/KodaTao/taskter/pkg/types"
)

func agentWithModel(model string) *types.Agent {
	return &types.Agent{
		ID:           2,
		SystemPrompt: "Be helpful",
		Model:        model,
		Tools: []types.FunctionDeclaration{{
			Name:        "send_email",
			Description: types.StringPtr("Send an email"),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to":      map[string]any{"type": "string"},
					"body":    map[string]any{"type": "string"},
					"subject": map[string]any{"type": "string"},
				},
				"required": []any{"to"},
			},
		}},
	}
}

func toJSON(t *testing.T, v any) any {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out any
	json.Unmarshal(data, &out)
	return out
}

func TestInferStyle(t *testing.T) {
	tests := map[string]Style{
		"gpt-5":        StyleResponses,
		"GPT-5-mini":   StyleResponses,
		"gpt5":         StyleResponses,
		"gpt-4.1-nano": StyleResponses,
		"gpt4.1":       StyleResponses,
		"o1-preview":   StyleResponses,
		"o3":           StyleResponses,
		"o4-mini":      StyleResponses,
		"omni-x":       StyleResponses,
		"gpt-4o":       StyleChat,
		"gpt-3.5":      StyleChat,
		"":             StyleChat,
	}
	for model, want := range tests {
		if got := InferStyle(model); got != want {
			t.Errorf("InferStyle(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestParseStyle(t *testing.T) {
	for _, raw := range []string{"responses", "Responses_API", "responses-api"} {
		if s, ok := ParseStyle(raw); !ok || s != StyleResponses {
			t.Errorf("ParseStyle(%q) = %v, %v", raw, s, ok)
		}
	}
	for _, raw := range []string{"chat", "chat_completions", "CHAT-COMPLETIONS"} {
		if s, ok := ParseStyle(raw); !ok || s != StyleChat {
			t.Errorf("ParseStyle(%q) = %v, %v", raw, s, ok)
		}
	}
	if _, ok := ParseStyle("grpc"); ok {
		t.Error("ParseStyle(grpc) should not be recognised")
	}
}

func TestAdapter_StyleOverride(t *testing.T) {
	a := New(Config{RequestStyle: "chat"})
	if a.StyleFor(agentWithModel("gpt-5")) != StyleChat {
		t.Error("override chat should win over model heuristic")
	}
	a = New(Config{RequestStyle: "unknown"})
	if a.StyleFor(agentWithModel("gpt-5")) != StyleResponses {
		t.Error("unrecognised override should fall back to heuristic")
	}
}

func TestAdapter_Endpoint(t *testing.T) {
	a := New(Config{})
	if got := a.Endpoint(agentWithModel("gpt-5")); got != "https://api.openai.com/v1/responses" {
		t.Errorf("responses endpoint = %s", got)
	}
	if got := a.Endpoint(agentWithModel("gpt-4o")); got != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("chat endpoint = %s", got)
	}
	a = New(Config{ResponsesEndpoint: "http://proxy/r", ChatEndpoint: "http://proxy/c"})
	if a.Endpoint(agentWithModel("o3")) != "http://proxy/r" || a.Endpoint(agentWithModel("gpt-4o")) != "http://proxy/c" {
		t.Error("endpoint overrides not applied")
	}
}

func TestAdapter_ResponsesHistoryAndBody(t *testing.T) {
	a := New(Config{})
	agent := agentWithModel("gpt-5")
	history := a.BuildInitialHistory(agent, "Task Title: Send")

	got := toJSON(t, history).([]any)
	if len(got) != 1 {
		t.Fatalf("history len = %d, want 1", len(got))
	}
	content := got[0].(map[string]any)["content"].([]any)[0].(map[string]any)
	if content["type"] != "input_text" || content["text"] != "Task Title: Send" {
		t.Errorf("content = %v", content)
	}

	a.AppendToolResult(agent, &history, "send_email", map[string]any{"to": "a@b.c"}, "ok", "call_9")
	got = toJSON(t, history).([]any)
	call := got[1].(map[string]any)
	if call["type"] != "function_call" || call["call_id"] != "call_9" || call["arguments"] != `{"to":"a@b.c"}` {
		t.Errorf("function_call = %v", call)
	}
	out := got[2].(map[string]any)
	if out["type"] != "function_call_output" || out["call_id"] != "call_9" || out["output"] != "ok" {
		t.Errorf("function_call_output = %v", out)
	}

	body := toJSON(t, a.RequestBody(agent, history, a.ToolsPayload(agent))).(map[string]any)
	if body["instructions"] != "Be helpful" || body["tool_choice"] != "auto" || body["model"] != "gpt-5" {
		t.Errorf("body = %v", body)
	}
	tool := body["tools"].([]any)[0].(map[string]any)
	if tool["type"] != "function" || tool["name"] != "send_email" || tool["strict"] != true {
		t.Errorf("tool = %v", tool)
	}
	params := tool["parameters"].(map[string]any)
	if params["additionalProperties"] != false {
		t.Errorf("additionalProperties = %v", params["additionalProperties"])
	}
	if !reflect.DeepEqual(params["required"], []any{"to", "body", "subject"}) {
		t.Errorf("required = %v", params["required"])
	}
	if _, ok := body["response_format"]; ok {
		t.Error("response_format should be absent by default")
	}

	// 没有工具时不发送 tools
	noTools := &types.Agent{Model: "gpt-5"}
	body = toJSON(t, a.RequestBody(noTools, nil, a.ToolsPayload(noTools))).(map[string]any)
	if _, ok := body["tools"]; ok {
		t.Error("tools should be omitted when empty")
	}
}

func TestAdapter_ChatHistoryAndBody(t *testing.T) {
	a := New(Config{ResponseFormat: "json_object"})
	agent := agentWithModel("gpt-4o")
	history := a.BuildInitialHistory(agent, "hello")

	got := toJSON(t, history).([]any)
	if len(got) != 2 || got[0].(map[string]any)["role"] != "system" || got[1].(map[string]any)["content"] != "hello" {
		t.Fatalf("history = %v", got)
	}

	a.AppendToolResult(agent, &history, "send_email", nil, "ok", "")
	got = toJSON(t, history).([]any)
	assistant := got[2].(map[string]any)
	tc := assistant["tool_calls"].([]any)[0].(map[string]any)
	if tc["id"] != DefaultCallID || tc["function"].(map[string]any)["arguments"] != "{}" {
		t.Errorf("tool_calls = %v", tc)
	}
	tool := got[3].(map[string]any)
	if tool["role"] != "tool" || tool["tool_call_id"] != DefaultCallID || tool["name"] != "send_email" || tool["content"] != "ok" {
		t.Errorf("tool message = %v", tool)
	}

	body := toJSON(t, a.RequestBody(agent, history, a.ToolsPayload(agent))).(map[string]any)
	if _, ok := body["messages"]; !ok {
		t.Error("messages missing")
	}
	fn := body["tools"].([]any)[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "send_email" {
		t.Errorf("function = %v", fn)
	}
	// chat 风格不做 strict 补全
	if _, ok := fn["parameters"].(map[string]any)["additionalProperties"]; ok {
		t.Error("chat parameters should be passed through unchanged")
	}
	if !reflect.DeepEqual(body["response_format"], map[string]any{"type": "json_object"}) {
		t.Errorf("response_format = %v", body["response_format"])
	}

	a = New(Config{ResponseFormat: `{"type":"json_schema","json_schema":{"name":"x"}}`})
	body = toJSON(t, a.RequestBody(agent, history, a.ToolsPayload(agent))).(map[string]any)
	if body["response_format"].(map[string]any)["type"] != "json_schema" {
		t.Errorf("response_format JSON = %v", body["response_format"])
	}
}

func TestStrictParameters(t *testing.T) {
	in := map[string]any{
		"type":                 "object",
		"additionalProperties": true,
		"properties":           map[string]any{"b": map[string]any{}, "a": map[string]any{}},
	}
	out := StrictParameters(in)
	if out["additionalProperties"] != true {
		t.Error("existing additionalProperties must be kept")
	}
	if !reflect.DeepEqual(out["required"], []any{"a", "b"}) {
		t.Errorf("required = %v", out["required"])
	}
	if _, ok := in["required"]; ok {
		t.Error("input must not be modified")
	}

	notObject := StrictParameters(map[string]any{"type": "string"})
	if _, ok := notObject["additionalProperties"]; ok {
		t.Error("non-object schema must not be changed")
	}
}

func TestAdapter_ParseResponse(t *testing.T) {
	a := New(Config{})
	tests := []struct {
		name     string
		body     string
		wantTool string
		wantID   string
		wantArgs map[string]any
		wantText string
	}{
		{
			name:     "responses function_call",
			body:     `{"output":[{"type":"reasoning"},{"type":"function_call","call_id":"call_1","name":"send_email","arguments":"{\"to\":\"x\"}"}]}`,
			wantTool: "send_email", wantID: "call_1", wantArgs: map[string]any{"to": "x"},
		},
		{
			name:     "responses function_call id fallback",
			body:     `{"output":[{"type":"function_call","id":"fc_1","name":"list_tasks","arguments":"garbage"}]}`,
			wantTool: "list_tasks", wantID: "fc_1", wantArgs: map[string]any{},
		},
		{
			name:     "responses message tool_call",
			body:     `{"output":[{"type":"message","content":[{"type":"tool_call","id":"t1","name":"add_log","arguments":{"message":"hi"}}]}]}`,
			wantTool: "add_log", wantID: "t1", wantArgs: map[string]any{"message": "hi"},
		},
		{
			name:     "responses output_text item",
			body:     `{"output":[{"type":"message","content":[{"type":"output_text","text":"Finished"}]}]}`,
			wantText: "Finished",
		},
		{
			name:     "responses top-level output_text",
			body:     `{"output":[],"output_text":"Top level"}`,
			wantText: "Top level",
		},
		{
			name:     "chat tool_calls",
			body:     `{"choices":[{"message":{"tool_calls":[{"id":"c1","type":"function","function":{"name":"send_email","arguments":"{\"to\":\"y\"}"}}]}}]}`,
			wantTool: "send_email", wantID: "c1", wantArgs: map[string]any{"to": "y"},
		},
		{
			name:     "chat content",
			body:     `{"choices":[{"message":{"role":"assistant","content":"Email sent"}}]}`,
			wantText: "Email sent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, err := a.ParseResponse([]byte(tt.body))
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if tt.wantTool != "" {
				if !action.IsToolCall() || action.Name != tt.wantTool || action.CallID != tt.wantID {
					t.Fatalf("ParseResponse() = %+v", action)
				}
				if !reflect.DeepEqual(action.Args, tt.wantArgs) {
					t.Errorf("args = %v, want %v", action.Args, tt.wantArgs)
				}
				return
			}
			if action.IsToolCall() || action.Content != tt.wantText {
				t.Errorf("ParseResponse() = %+v, want text %q", action, tt.wantText)
			}
		})
	}

	for _, body := range []string{`{}`, `{"choices":[{"message":{"content":null}}]}`, `{"output":[{"type":"function_call","name":""}]}`} {
		_, err := a.ParseResponse([]byte(body))
		var formatErr *llm.ResponseFormatError
		if !errors.As(err, &formatErr) {
			t.Errorf("ParseResponse(%s) error = %v, want ResponseFormatError", body, err)
		}
	}
}

func TestAdapter_Headers(t *testing.T) {
	headers := New(Config{}).Headers("sk-test")
	if headers[0].Name != "Authorization" || headers[0].Value != "Bearer sk-test" {
		t.Errorf("Headers() = %v", headers)
	}
}
