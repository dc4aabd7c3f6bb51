package function

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"

	"github.com/KodaTao/taskter/pkg/observability"
)

// ToolError 工具执行过程中的异常：panic 或超时
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string {
	return e.Err.Error()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// decodeParams 将模型给出的参数解码为工具的参数类型
// 弱类型解码：数字字符串可转为整数等
func decodeParams(fn Function, args map[string]any) (any, error) {
	paramType := fn.ParamsType()
	if paramType == nil {
		return nil, nil
	}

	// 创建参数实例
	var paramValue reflect.Value
	if paramType.Kind() == reflect.Ptr {
		paramValue = reflect.New(paramType.Elem())
	} else {
		paramValue = reflect.New(paramType)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           paramValue.Interface(),
	})
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := decoder.Decode(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	// 如果原始类型不是指针，返回值而非指针
	if paramType.Kind() != reflect.Ptr {
		return paramValue.Elem().Interface(), nil
	}
	return paramValue.Interface(), nil
}

// executeWithRecover 执行工具并恢复 panic，ctx 超时后立即返回
func executeWithRecover(ctx context.Context, fn Function, params any) (string, error) {
	type outcome struct {
		output string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				observability.Error("Function panicked",
					"function", fn.Name(),
					"panic", r,
				)
				done <- outcome{err: &ToolError{Tool: fn.Name(), Err: fmt.Errorf("function panicked: %v", r)}}
			}
		}()
		output, err := fn.Execute(ctx, params)
		done <- outcome{output: output, err: err}
	}()

	select {
	case res := <-done:
		return res.output, res.err
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &ToolError{Tool: fn.Name(), Err: fmt.Errorf("function execution timeout: %w", err)}
		}
		return "", &ToolError{Tool: fn.Name(), Err: err}
	}
}
