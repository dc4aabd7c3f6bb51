// Package protocol 提供 JSON-RPC 2.0 消息的解析、编码和 stdio 分帧
// 分帧支持两种：Content-Length 头部 和 换行分隔的 JSON
package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Version JSON-RPC 版本
const Version = "2.0"

// Request JSON-RPC 请求
type Request struct {
	JSONRPC string
	// ID 原始 id，HasID 为 false 时为通知
	ID     json.RawMessage
	HasID  bool
	Method string
	Params json.RawMessage
}

// IsNotification 是否为通知（没有 id，不需要回复）
func (r *Request) IsNotification() bool {
	return !r.HasID
}

// ResponseID 回复使用的 id，通知返回 nil
func (r *Request) ResponseID() json.RawMessage {
	if !r.HasID {
		return nil
	}
	if len(r.ID) == 0 {
		return json.RawMessage("null")
	}
	return r.ID
}

// Message 一条读取到的消息
type Message struct {
	// Headers 为空表示换行分隔的消息
	Headers []string
	Body    []byte
}

// Framed 是否使用 Content-Length 分帧
func (m *Message) Framed() bool {
	return len(m.Headers) > 0
}

// Parser 协议解析器
type Parser struct{}

// NewParser 创建解析器实例
func NewParser() *Parser {
	return &Parser{}
}

// ParseRequest 解析一条请求
// 没有 id 的 initialize 也按请求处理，回复 id 为 null
func (p *Parser) ParseRequest(body []byte) (*Request, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) || !json.Valid(body) {
			return nil, &ParseError{Message: "Invalid JSON", Cause: err}
		}
		return nil, &ParseError{Message: "request must be a JSON object", Cause: err}
	}
	if obj == nil {
		return nil, &ParseError{Message: "request must be a JSON object"}
	}

	req := &Request{}
	if raw, ok := obj["jsonrpc"]; ok {
		_ = json.Unmarshal(raw, &req.JSONRPC)
	}
	raw, ok := obj["method"]
	if !ok {
		return nil, &ParseError{Message: "Missing method"}
	}
	if err := json.Unmarshal(raw, &req.Method); err != nil {
		return nil, &ParseError{Message: "Missing method", Cause: err}
	}
	req.ID, req.HasID = obj["id"]
	if !req.HasID && req.Method == "initialize" {
		req.HasID = true
		req.ID = json.RawMessage("null")
	}
	req.Params = obj["params"]
	return req, nil
}

// ReadMessage 从 reader 读取下一条消息，EOF 返回 (nil, nil)
// 以 { 或 [ 开头的行视为完整的 JSON 消息，否则按头部读取直到空行
func ReadMessage(r *bufio.Reader) (*Message, error) {
	var headers []string
	length := -1

	// 跳过空行，读取第一行
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == nil {
			return nil, nil
		}
		trimmed := strings.TrimRight(*line, "\r\n")
		if trimmed == "" {
			continue
		}
		if looksLikeJSON(trimmed) {
			return &Message{Body: []byte(trimmed)}, nil
		}
		headers = append(headers, trimmed)
		if n, ok, err := contentLength(trimmed); err != nil {
			return nil, err
		} else if ok {
			length = n
		}
		break
	}

	// 其余头部
	for {
		line, err := readLine(r)
		if err != nil {
			return nil, err
		}
		if line == nil {
			return nil, nil
		}
		trimmed := strings.TrimRight(*line, "\r\n")
		if trimmed == "" {
			break
		}
		headers = append(headers, trimmed)
		if n, ok, err := contentLength(trimmed); err != nil {
			return nil, err
		} else if ok {
			length = n
		}
	}

	if length < 0 {
		return nil, ErrMissingContentLength
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return &Message{Headers: headers, Body: body}, nil
}

// readLine 读取一行，EOF 且没有数据时返回 nil
func readLine(r *bufio.Reader) (*string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			if line == "" {
				return nil, nil
			}
			return &line, nil
		}
		return nil, fmt.Errorf("reading header line: %w", err)
	}
	return &line, nil
}

func contentLength(header string) (int, bool, error) {
	key, value, ok := strings.Cut(header, ":")
	if !ok || !strings.EqualFold(strings.TrimSpace(key), "content-length") {
		return 0, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0, false, &ParseError{Message: "parsing Content-Length", Cause: err}
	}
	return n, true, nil
}

func looksLikeJSON(line string) bool {
	trimmed := bytes.TrimLeft([]byte(line), " \t")
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// ParseError 解析错误
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// 预定义错误
var (
	ErrMissingContentLength = errors.New("Missing Content-Length header")
)
