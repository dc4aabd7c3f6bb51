package builtin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// cliSubcommands 暴露给模型的命令行子命令
var cliSubcommands = []string{"task", "agent", "okrs", "tools"}

// CLIParams 命令行元工具参数
// Args 保留原始类型，非字符串元素在执行时报错
type CLIParams struct {
	Args []any `json:"args" jsonschema:"description=Arguments passed after the subcommand"`
}

// JSONSchemaExtend 将 args 声明为字符串数组
func (CLIParams) JSONSchemaExtend(s *jsonschema.Schema) {
	if s.Properties == nil {
		return
	}
	if prop, ok := s.Properties.Get("args"); ok && prop != nil {
		prop.Type = "array"
		prop.Items = &jsonschema.Schema{Type: "string"}
	}
}

// CLIFunction 调用本程序命令行的子命令
type CLIFunction struct {
	deps       Deps
	subcommand string
}

// NewCLIFunction 创建 CLIFunction，工具名为 taskter_<subcommand>
func NewCLIFunction(deps Deps, subcommand string) *CLIFunction {
	return &CLIFunction{deps: deps, subcommand: subcommand}
}

func (f *CLIFunction) Name() string {
	return "taskter_" + f.subcommand
}

func (f *CLIFunction) Description() string {
	return fmt.Sprintf("Runs `taskter %s` with the given arguments and returns its output.", f.subcommand)
}

func (f *CLIFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(CLIParams{})
}

func (f *CLIFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(CLIParams)
	if p.Args == nil {
		return "", errors.New("args missing")
	}
	args := make([]string, 0, len(p.Args)+1)
	args = append(args, f.subcommand)
	for _, a := range p.Args {
		s, ok := a.(string)
		if !ok {
			return "", errors.New("args must be strings")
		}
		args = append(args, s)
	}

	out, stderr, err := runCommand(ctx, f.deps.binary(), args...)
	if err != nil {
		if stderr == "" {
			stderr = err.Error()
		}
		return "", fmt.Errorf("Command failed: %s", strings.TrimSpace(stderr))
	}
	return strings.TrimSpace(out), nil
}
