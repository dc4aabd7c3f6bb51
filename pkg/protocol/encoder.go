package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// 标准错误码
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

// Error JSON-RPC 错误对象
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response JSON-RPC 响应
// ID 为 nil 时不输出 id 字段（无法解析请求时）
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult 构造成功响应
func NewResult(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: Version, ID: id, Result: result}
}

// NewError 构造错误响应
func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
}

// Encoder 响应编码器
type Encoder struct {
	w io.Writer
}

// NewEncoder 创建编码器
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode 写出响应
// framed 为 true 时带 Content-Length 头部，否则写一行 JSON
func (e *Encoder) Encode(resp *Response, framed bool) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("serializing response: %w", err)
	}
	if framed {
		header := fmt.Sprintf("Content-Length: %d\r\nContent-Type: application/json\r\n\r\n", len(body))
		if _, err := io.WriteString(e.w, header); err != nil {
			return fmt.Errorf("write response header: %w", err)
		}
		if _, err := e.w.Write(body); err != nil {
			return fmt.Errorf("write response body: %w", err)
		}
	} else {
		if _, err := e.w.Write(append(body, '\n')); err != nil {
			return fmt.Errorf("write response body: %w", err)
		}
	}
	if f, ok := e.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
