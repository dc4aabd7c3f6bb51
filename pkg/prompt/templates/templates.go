// Package templates 提供所有提示词模板
// 模板统一管理，方便其他模块引用和定制
package templates

// UserPrompt 任务提示词模板
// 有描述时输出标题和描述两行，否则只输出标题；没有任务时为空
const UserPrompt = `{{- with .Task -}}
{{- if .Description -}}
Task Title: {{ .Title }}
Task Description: {{ deref .Description }}
{{- else -}}
{{ .Title }}
{{- end -}}
{{- end -}}`

// ToolSummary 工具列表模板，用于 tools list --verbose
const ToolSummary = `{{- range $i, $fn := .Functions -}}
{{- if $i }}
{{ end -}}
- {{ $fn.Name }}{{ if $fn.AliasOf }} (alias of {{ $fn.AliasOf }}){{ end }}: {{ $fn.Description }}
{{- end -}}`
