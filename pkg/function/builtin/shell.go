package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"reflect"
	"strings"
)

// RunBashParams run_bash 参数
type RunBashParams struct {
	Command string `json:"command" jsonschema:"description=Shell command to execute"`
}

// RunBashFunction 通过 sh -c 执行命令
type RunBashFunction struct{}

// NewRunBashFunction 创建 RunBashFunction
func NewRunBashFunction() *RunBashFunction {
	return &RunBashFunction{}
}

func (f *RunBashFunction) Name() string {
	return "run_bash"
}

func (f *RunBashFunction) Description() string {
	return "Executes a bash command and returns its standard output."
}

func (f *RunBashFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(RunBashParams{})
}

func (f *RunBashFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(RunBashParams)
	if p.Command == "" {
		return "", errors.New("command missing")
	}
	out, stderr, err := runCommand(ctx, "sh", "-c", p.Command)
	if err != nil {
		return "", fmt.Errorf("Command failed: %s", stderr)
	}
	return strings.TrimSpace(out), nil
}

// RunPythonParams run_python 参数
type RunPythonParams struct {
	Code string `json:"code" jsonschema:"description=Python source code to execute"`
}

// RunPythonFunction 通过 python3 -c 执行代码
type RunPythonFunction struct{}

// NewRunPythonFunction 创建 RunPythonFunction
func NewRunPythonFunction() *RunPythonFunction {
	return &RunPythonFunction{}
}

func (f *RunPythonFunction) Name() string {
	return "run_python"
}

func (f *RunPythonFunction) Description() string {
	return "Executes Python code and returns its standard output."
}

func (f *RunPythonFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(RunPythonParams{})
}

func (f *RunPythonFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(RunPythonParams)
	if p.Code == "" {
		return "", errors.New("code missing")
	}
	out, stderr, err := runCommand(ctx, "python3", "-c", p.Code)
	if err != nil {
		if stderr == "" {
			stderr = err.Error()
		}
		return "", fmt.Errorf("Python execution failed: %s", stderr)
	}
	return strings.TrimSpace(out), nil
}

// runCommand 执行外部命令，返回 stdout 与 stderr
func runCommand(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
