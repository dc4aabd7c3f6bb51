package llm

import (
	"errors"
	"fmt"
)

// ErrTransport 网络层错误（连接失败、读取失败等）
var ErrTransport = errors.New("transport error")

// APIError 提供商返回了非 2xx 状态码
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ResponseFormatError 响应中既没有工具调用也没有文本
type ResponseFormatError struct {
	Provider string
	Message  string
}

func (e *ResponseFormatError) Error() string {
	if e.Provider == "" {
		return e.Message
	}
	return e.Provider + ": " + e.Message
}

// NewResponseFormatError 创建响应格式错误
func NewResponseFormatError(provider, message string) *ResponseFormatError {
	return &ResponseFormatError{Provider: provider, Message: message}
}
