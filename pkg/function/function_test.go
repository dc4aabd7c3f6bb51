package function

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// MockFunction 测试用的 Mock 工具
type MockFunction struct {
	name        string
	description string
	paramsType  reflect.Type
	executeFunc func(ctx context.Context, params any) (string, error)
}

func (m *MockFunction) Name() string             { return m.name }
func (m *MockFunction) Description() string      { return m.description }
func (m *MockFunction) ParamsType() reflect.Type { return m.paramsType }
func (m *MockFunction) Execute(ctx context.Context, params any) (string, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, params)
	}
	return "executed", nil
}

// TestParams 测试用的参数结构
type TestParams struct {
	Name    string   `json:"name" jsonschema:"description=Recipient name"`
	Count   int      `json:"count,omitempty" jsonschema:"default=10"`
	Enabled bool     `json:"enabled,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	// 正常注册
	if err := registry.Register(&MockFunction{name: "test_func"}); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	if !registry.Has("test_func") {
		t.Error("Registry should have the registered function")
	}

	// 注册 nil 应该失败
	if err := registry.Register(nil); err != ErrNilFunction {
		t.Errorf("Register(nil) should return ErrNilFunction, got %v", err)
	}

	// 注册空名称应该失败
	if err := registry.Register(&MockFunction{name: ""}); err != ErrEmptyFunctionName {
		t.Errorf("Register(empty name) should return ErrEmptyFunctionName, got %v", err)
	}
}

func TestRegistry_ListAndAlias(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterAll(
		&MockFunction{name: "send_email", description: "Send"},
		&MockFunction{name: "add_log", description: "Log"},
	)

	if err := registry.Alias("email", "send_email"); err != nil {
		t.Fatalf("Alias() error = %v", err)
	}
	if err := registry.Alias("mail", "missing"); !errors.Is(err, ErrFunctionNotFound) {
		t.Errorf("Alias(missing) error = %v", err)
	}

	want := []string{"add_log", "email", "send_email"}
	if got := registry.List(); !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
	if registry.Count() != 2 {
		t.Errorf("Count() = %d, want 2", registry.Count())
	}

	fn, ok := registry.Get("email")
	if !ok || fn.Name() != "send_email" {
		t.Errorf("Get(email) = %v, %v", fn, ok)
	}

	decl, ok := registry.Declaration("email")
	if !ok || decl.Name != "send_email" {
		t.Errorf("Declaration(email) = %+v", decl)
	}
	if decls := registry.Declarations(); len(decls) != 2 || decls[0].Name != "add_log" {
		t.Errorf("Declarations() = %+v", decls)
	}

	infos := registry.ListInfo()
	if len(infos) != 3 || infos[1].Name != "email" || infos[1].AliasOf != "send_email" {
		t.Errorf("ListInfo() = %+v", infos)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockFunction{name: "send_email"})
	registry.Alias("email", "send_email")

	if !registry.Unregister("send_email") {
		t.Error("Unregister() should return true for existing function")
	}
	if registry.Has("email") {
		t.Error("alias should be removed with its target")
	}
	if registry.Unregister("send_email") {
		t.Error("Unregister() should return false for missing function")
	}
}

func TestParamsSchema(t *testing.T) {
	fn := &MockFunction{name: "greet", paramsType: reflect.TypeOf(TestParams{})}
	schema := ParamsSchema(fn)

	if schema["type"] != "object" {
		t.Errorf("type = %v", schema["type"])
	}
	if _, ok := schema["$schema"]; ok {
		t.Error("$schema should be stripped")
	}
	if _, ok := schema["additionalProperties"]; ok {
		t.Error("additionalProperties should not be set")
	}
	props := schema["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	if name["type"] != "string" || name["description"] != "Recipient name" {
		t.Errorf("name property = %v", name)
	}
	tags := props["tags"].(map[string]any)
	if tags["type"] != "array" {
		t.Errorf("tags property = %v", tags)
	}
	required, _ := schema["required"].([]any)
	if len(required) != 1 || required[0] != "name" {
		t.Errorf("required = %v, want [name]", required)
	}

	// 没有参数
	empty := ParamsSchema(&MockFunction{name: "noop"})
	if empty["type"] != "object" || len(empty["properties"].(map[string]any)) != 0 {
		t.Errorf("empty schema = %v", empty)
	}
}

func TestRegistry_Execute(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockFunction{
		name:       "greet",
		paramsType: reflect.TypeOf(TestParams{}),
		executeFunc: func(ctx context.Context, params any) (string, error) {
			p := params.(TestParams)
			return strings.Repeat(p.Name, p.Count), nil
		},
	})

	// 数字来自 JSON 时为 float64，字符串数字也能弱类型解码
	got, err := registry.Execute(context.Background(), "greet", map[string]any{"name": "a", "count": float64(3)})
	if err != nil || got != "aaa" {
		t.Errorf("Execute() = %q, %v", got, err)
	}
	got, err = registry.Execute(context.Background(), "greet", map[string]any{"name": "b", "count": "2"})
	if err != nil || got != "bb" {
		t.Errorf("Execute() weak = %q, %v", got, err)
	}

	_, err = registry.Execute(context.Background(), "greet", map[string]any{"count": []any{1}})
	if !errors.Is(err, ErrInvalidArguments) {
		t.Errorf("Execute() bad args error = %v, want ErrInvalidArguments", err)
	}
}

func TestRegistry_ExecuteNotFound(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Execute(context.Background(), "nonexistent", nil)
	if !errors.Is(err, ErrFunctionNotFound) {
		t.Fatalf("Execute() error = %v, want ErrFunctionNotFound", err)
	}
	if err.Error() != "Unknown tool: nonexistent" {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestRegistry_ExecuteToolError(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockFunction{
		name: "run_bash",
		executeFunc: func(ctx context.Context, params any) (string, error) {
			return "", errors.New("Command failed: boom")
		},
	})
	_, err := registry.Execute(context.Background(), "run_bash", nil)
	if err == nil || err.Error() != "Command failed: boom" {
		t.Errorf("Execute() error = %v, want tool's own error", err)
	}
}

func TestRegistry_ExecutePanic(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&MockFunction{
		name: "explode",
		executeFunc: func(ctx context.Context, params any) (string, error) {
			panic("kaboom")
		},
	})
	_, err := registry.Execute(context.Background(), "explode", nil)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Tool != "explode" {
		t.Fatalf("Execute() error = %v, want ToolError", err)
	}
	if !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("error = %v", err)
	}
}

func TestRegistry_ExecuteTimeout(t *testing.T) {
	registry := NewRegistry()
	registry.SetTimeout(50 * time.Millisecond)
	registry.Register(&MockFunction{
		name: "slow",
		executeFunc: func(ctx context.Context, params any) (string, error) {
			select {
			case <-time.After(2 * time.Second):
				return "late", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	})

	start := time.Now()
	_, err := registry.Execute(context.Background(), "slow", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Execute() should return at the timeout")
	}
}
