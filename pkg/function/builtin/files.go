package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
)

// GetDescriptionFunction 读取项目描述文件
type GetDescriptionFunction struct {
	path string
}

// NewGetDescriptionFunction 创建 GetDescriptionFunction
func NewGetDescriptionFunction(deps Deps) *GetDescriptionFunction {
	return &GetDescriptionFunction{path: deps.Paths.Description}
}

func (f *GetDescriptionFunction) Name() string {
	return "get_description"
}

func (f *GetDescriptionFunction) Description() string {
	return "Returns the project description."
}

func (f *GetDescriptionFunction) ParamsType() reflect.Type {
	return nil
}

func (f *GetDescriptionFunction) Execute(ctx context.Context, params any) (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FileOpsParams file_ops 参数
type FileOpsParams struct {
	Action string  `json:"action" jsonschema:"description=Operation to perform,enum=read,enum=write,enum=search"`
	Path   string  `json:"path" jsonschema:"description=File path"`
	Text   *string `json:"text,omitempty" jsonschema:"description=Content to write or text to search for"`
}

// FileOpsFunction 读、写、搜索文件
type FileOpsFunction struct{}

// NewFileOpsFunction 创建 FileOpsFunction
func NewFileOpsFunction() *FileOpsFunction {
	return &FileOpsFunction{}
}

func (f *FileOpsFunction) Name() string {
	return "file_ops"
}

func (f *FileOpsFunction) Description() string {
	return "Reads, writes or searches a text file in the project directory."
}

func (f *FileOpsFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(FileOpsParams{})
}

func (f *FileOpsFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(FileOpsParams)
	if p.Action == "" {
		return "", errors.New("action missing")
	}
	if p.Path == "" {
		return "", errors.New("path missing")
	}

	switch p.Action {
	case "read":
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	case "write":
		if p.Text == nil {
			return "", errors.New("text missing")
		}
		if err := os.WriteFile(p.Path, []byte(*p.Text), 0o644); err != nil {
			return "", err
		}
		return "File written", nil
	case "search":
		if p.Text == nil {
			return "", errors.New("text missing")
		}
		data, err := os.ReadFile(p.Path)
		if err != nil {
			return "", err
		}
		return searchLines(string(data), *p.Text), nil
	default:
		return "", errors.New("unknown action")
	}
}

// searchLines 返回包含 query 的行，格式为 "<行号>: <内容>"
func searchLines(content, query string) string {
	var matches []string
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	for i, line := range lines {
		if strings.Contains(line, query) {
			matches = append(matches, fmt.Sprintf("%d: %s", i+1, line))
		}
	}
	return strings.Join(matches, "\n")
}
