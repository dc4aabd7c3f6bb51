package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/KodaTao/taskter/pkg/observability"
	"github.com/KodaTao/taskter/pkg/types"
)

// MaxResponseBytes 单次响应体读取上限
const MaxResponseBytes = 8 << 20

// Client 共享的推理请求实现：构建请求、发送、记录、解析
type Client struct {
	httpClient *http.Client
	responses  observability.Journal
}

// NewClient 创建推理客户端
// httpClient 为 nil 时使用 http.DefaultClient；responses 为 nil 时不记录请求/响应
func NewClient(httpClient *http.Client, responses observability.Journal) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if responses == nil {
		responses = observability.Discard
	}
	return &Client{httpClient: httpClient, responses: responses}
}

// Infer 执行一次推理请求，返回解析后的模型动作
func (c *Client) Infer(ctx context.Context, adapter Adapter, agent *types.Agent, apiKey string, history History) (ModelAction, error) {
	start := time.Now()
	provider := adapter.Name()
	endpoint := adapter.Endpoint(agent)
	observability.LLMRequestLog(ctx, provider, agent.Model, endpoint, len(history))

	// 1. 构建请求体
	tools := adapter.ToolsPayload(agent)
	body := adapter.RequestBody(agent, history, tools)
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return ModelAction{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	c.responses.Record(fmt.Sprintf("REQUEST provider=%s model=%s agent=%d json=%s", provider, agent.Model, agent.ID, bodyBytes))

	// 2. 创建 HTTP 请求
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return ModelAction{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, h := range adapter.Headers(apiKey) {
		req.Header.Set(h.Name, h.Value)
	}

	// 3. 发送请求
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(provider, "error", start)
		return ModelAction{}, fmt.Errorf("%w: failed to send request: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		c.observe(provider, "error", start)
		return ModelAction{}, fmt.Errorf("%w: failed to read response: %v", ErrTransport, err)
	}

	duration := time.Since(start)
	observability.LLMResponseLog(ctx, provider, resp.StatusCode, duration.Milliseconds())
	c.observe(provider, strconv.Itoa(resp.StatusCode), start)

	// 4. 检查状态码
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ModelAction{}, &APIError{Provider: provider, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	// 5. 校验 JSON 并记录
	if !json.Valid(respBody) {
		return ModelAction{}, NewResponseFormatError(provider, "response is not valid JSON")
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, respBody); err == nil {
		c.responses.Record(fmt.Sprintf("provider=%s model=%s agent=%d json=%s", provider, agent.Model, agent.ID, compact.Bytes()))
	}

	// 6. 解析
	return adapter.ParseResponse(respBody)
}

func (c *Client) observe(provider, status string, start time.Time) {
	observability.ProviderRequestsTotal.WithLabelValues(provider, status).Inc()
	observability.ProviderRequestDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// MaskAPIKey 脱敏 API Key，用于日志输出
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
