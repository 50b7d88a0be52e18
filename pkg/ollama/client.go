// Package ollama 访问本地或局域网内的 Ollama 服务。
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// 错误分类，处理器据此映射 HTTP 状态码
var (
	ErrInvalidBaseURL = errors.New("无效的 Ollama 地址")
	ErrUnreachable    = errors.New("无法连接 Ollama 服务")
	ErrTimeout        = errors.New("Ollama 请求超时")
	ErrForbidden      = errors.New("Ollama 拒绝访问")
)

// StatusError 上游返回非 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Ollama 返回错误: status=%d, body=%s", e.StatusCode, e.Body)
}

// Model 已安装模型
type Model struct {
	Name       string    `json:"name"`
	Model      string    `json:"model"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	ModifiedAt time.Time `json:"modified_at"`
	Details    struct {
		Family            string `json:"family"`
		ParameterSize     string `json:"parameter_size"`
		QuantizationLevel string `json:"quantization_level"`
	} `json:"details"`
}

// GenerateRequest 推理请求
type GenerateRequest struct {
	Model     string
	Prompt    string
	System    string
	Images    []string // base64，不带 data URI 前缀
	MaxTokens int
}

// GenerateResponse 推理结果
type GenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"`
}

// Client Ollama 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 校验地址并创建客户端
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    normalized,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// WithHTTPClient 替换底层 HTTP 客户端
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// BaseURL 规范化后的地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// NormalizeBaseURL 只接受 http/https 且带主机名的地址，去掉末尾斜杠
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", ErrInvalidBaseURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidBaseURL
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

// ListModels 获取已安装模型
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var out struct {
		Models []Model `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	if out.Models == nil {
		out.Models = []Model{}
	}
	return out.Models, nil
}

// Version 获取服务版本，用于连通性检查
func (c *Client) Version(ctx context.Context) (string, error) {
	var out struct {
		Version string `json:"version"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// Generate 非流式推理
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body := map[string]interface{}{
		"model":  req.Model,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if len(req.Images) > 0 {
		body["images"] = req.Images
	}
	if req.MaxTokens > 0 {
		body["options"] = map[string]interface{}{"num_predict": req.MaxTokens}
	}

	var out GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return classify(ctx, err)
	}

	if resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %s", ErrForbidden, truncate(string(data), 300))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 300)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解析 Ollama 响应失败: %w", err)
	}
	return nil
}

// classify 将传输层错误归为不可达或超时
func classify(ctx context.Context, err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
