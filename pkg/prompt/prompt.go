// Package prompt 生成发送给模型的提示词
package prompt

import (
	"bytes"
	"text/template"

	"github.com/KodaTao/taskter/pkg/function"
	"github.com/KodaTao/taskter/pkg/prompt/templates"
	"github.com/KodaTao/taskter/pkg/types"
)

var funcs = template.FuncMap{
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}

// Generator 提示词生成器
type Generator struct {
	userTemplate  *template.Template
	toolsTemplate *template.Template
}

// NewGenerator 创建提示词生成器
func NewGenerator() *Generator {
	return &Generator{
		userTemplate:  template.Must(template.New("user").Funcs(funcs).Parse(templates.UserPrompt)),
		toolsTemplate: template.Must(template.New("tools").Parse(templates.ToolSummary)),
	}
}

// UserData 任务提示词模板数据
type UserData struct {
	Task *types.Task
}

// UserPrompt 根据任务生成用户提示词
func (g *Generator) UserPrompt(task *types.Task) (string, error) {
	var buf bytes.Buffer
	if err := g.userTemplate.Execute(&buf, UserData{Task: task}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ToolData 工具列表模板数据
type ToolData struct {
	Functions []function.FunctionInfo
}

// ToolSummary 生成工具列表文本
func (g *Generator) ToolSummary(functions []function.FunctionInfo) (string, error) {
	var buf bytes.Buffer
	if err := g.toolsTemplate.Execute(&buf, ToolData{Functions: functions}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DefaultGenerator 默认生成器实例
var DefaultGenerator = NewGenerator()

// BuildUserPrompt 使用默认生成器生成用户提示词，模板出错时退回标题
func BuildUserPrompt(task *types.Task) string {
	out, err := DefaultGenerator.UserPrompt(task)
	if err != nil {
		if task == nil {
			return ""
		}
		return task.Title
	}
	return out
}

// ToolSummary 使用默认生成器生成工具列表文本
func ToolSummary(functions []function.FunctionInfo) (string, error) {
	return DefaultGenerator.ToolSummary(functions)
}
