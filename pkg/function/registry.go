package function

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/types"
)

// DefaultTimeout 单次工具调用的默认超时
const DefaultTimeout = 5 * time.Minute

// 错误定义
var (
	ErrNilFunction       = errors.New("function cannot be nil")
	ErrEmptyFunctionName = errors.New("function name cannot be empty")
	ErrFunctionNotFound  = errors.New("Unknown tool")
	ErrInvalidArguments  = errors.New("invalid arguments")
)

// Registry 工具注册表
// 线程安全，启动时注册，之后只读
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
	aliases   map[string]string
	timeout   time.Duration
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		functions: make(map[string]Function),
		aliases:   make(map[string]string),
		timeout:   DefaultTimeout,
	}
}

// SetTimeout 设置单次调用超时，0 表示不限
func (r *Registry) SetTimeout(timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.timeout = timeout
}

// Register 注册一个工具
// 如果同名工具已存在，会被覆盖
func (r *Registry) Register(fn Function) error {
	if fn == nil {
		return ErrNilFunction
	}
	name := fn.Name()
	if name == "" {
		return ErrEmptyFunctionName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.functions[name] = fn
	delete(r.aliases, name)
	observability.Debug("Function registered", "name", name)
	return nil
}

// RegisterAll 批量注册工具
func (r *Registry) RegisterAll(fns ...Function) error {
	for _, fn := range fns {
		if err := r.Register(fn); err != nil {
			return err
		}
	}
	return nil
}

// Alias 为已注册的工具添加别名，如 email → send_email
func (r *Registry) Alias(alias, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.functions[target]; !ok {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, target)
	}
	r.aliases[alias] = target
	return nil
}

// Get 获取指定名称（或别名）的工具
func (r *Registry) Get(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(name)
}

func (r *Registry) lookup(name string) (Function, bool) {
	if fn, ok := r.functions[name]; ok {
		return fn, true
	}
	if target, ok := r.aliases[name]; ok {
		fn, ok := r.functions[target]
		return fn, ok
	}
	return nil, false
}

// Has 检查是否存在指定名称（或别名）的工具
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List 列出所有工具名称和别名，按字母排序
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.functions)+len(r.aliases))
	for name := range r.functions {
		names = append(names, name)
	}
	for alias := range r.aliases {
		names = append(names, alias)
	}
	sort.Strings(names)
	return names
}

// ListInfo 列出所有工具和别名的详细信息
func (r *Registry) ListInfo() []FunctionInfo {
	names := r.List()
	infos := make([]FunctionInfo, 0, len(names))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		fn, ok := r.lookup(name)
		if !ok {
			continue
		}
		info := FunctionInfo{
			Name:        name,
			Description: fn.Description(),
			Parameters:  ParamsSchema(fn),
		}
		if target, ok := r.aliases[name]; ok {
			info.AliasOf = target
		}
		infos = append(infos, info)
	}
	return infos
}

// Unregister 注销一个工具及其别名
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.functions[name]; ok {
		delete(r.functions, name)
		for alias, target := range r.aliases {
			if target == name {
				delete(r.aliases, alias)
			}
		}
		observability.Debug("Function unregistered", "name", name)
		return true
	}
	if _, ok := r.aliases[name]; ok {
		delete(r.aliases, name)
		return true
	}
	return false
}

// Count 返回已注册的工具数量（不含别名）
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.functions)
}

// Declaration 返回工具声明，别名返回目标工具的声明
func (r *Registry) Declaration(name string) (types.FunctionDeclaration, bool) {
	fn, ok := r.Get(name)
	if !ok {
		return types.FunctionDeclaration{}, false
	}
	return declarationOf(fn), true
}

// Declarations 返回所有工具声明（不含别名），按名称排序
func (r *Registry) Declarations() []types.FunctionDeclaration {
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	decls := make([]types.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		if fn, ok := r.Get(name); ok {
			decls = append(decls, declarationOf(fn))
		}
	}
	return decls
}

func declarationOf(fn Function) types.FunctionDeclaration {
	return types.FunctionDeclaration{
		Name:        fn.Name(),
		Description: types.StringPtr(fn.Description()),
		Parameters:  ParamsSchema(fn),
	}
}

// Execute 执行指定的工具
// 未注册时返回 "Unknown tool: <name>"，否则返回工具自身的结果或错误
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	fn, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}

	r.mu.RLock()
	timeout := r.timeout
	r.mu.RUnlock()

	start := time.Now()
	output, err := r.execute(ctx, fn, args, timeout)
	duration := time.Since(start)

	// 记录执行日志
	status := "success"
	if err != nil {
		status = "error"
	}
	observability.ToolCallLog(ctx, name, status, duration.Milliseconds())
	observability.ToolCallsTotal.WithLabelValues(name, status).Inc()

	return output, err
}

func (r *Registry) execute(ctx context.Context, fn Function, args map[string]any, timeout time.Duration) (string, error) {
	params, err := decodeParams(fn, args)
	if err != nil {
		return "", err
	}

	// 创建带超时的 context
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return executeWithRecover(ctx, fn, params)
}
