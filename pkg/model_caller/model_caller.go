package model_caller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pestid/internal/dto"
)

// ErrEmptyResponse 接口未返回任何内容
var ErrEmptyResponse = errors.New("API返回空响应")

// APIError 上游返回非 200
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API返回错误: status=%d, body=%s", e.StatusCode, e.Body)
}

// ModelCaller OpenAI 兼容接口调用客户端
type ModelCaller struct {
	client  *http.Client
	apiBase string
	apiKey  string
	model   string
	headers map[string]string
}

// CallOptions 调用选项
type CallOptions struct {
	MaxTokens   int
	Temperature float64
}

// VisionResult 图片识别调用结果
type VisionResult struct {
	Content string
	Model   string
	Usage   dto.Usage
}

// NewModelCaller 创建模型调用客户端
func NewModelCaller(apiBase, apiKey, model string, timeout time.Duration) *ModelCaller {
	return &ModelCaller{
		client: &http.Client{
			Timeout: timeout,
		},
		apiBase: strings.TrimRight(apiBase, "/"),
		apiKey:  apiKey,
		model:   model,
		headers: make(map[string]string),
	}
}

// WithHeader 附加请求头，如 OpenRouter 的 HTTP-Referer / X-Title
func (mc *ModelCaller) WithHeader(key, value string) *ModelCaller {
	if value != "" {
		mc.headers[key] = value
	}
	return mc
}

// WithHTTPClient 替换底层 HTTP 客户端
func (mc *ModelCaller) WithHTTPClient(client *http.Client) *ModelCaller {
	if client != nil {
		mc.client = client
	}
	return mc
}

// Model 调用的模型标识
func (mc *ModelCaller) Model() string {
	return mc.model
}

// Call 调用模型
func (mc *ModelCaller) Call(ctx context.Context, messages []dto.Message, options *CallOptions) (*dto.ModelCallResponse, error) {
	if options == nil {
		options = &CallOptions{
			MaxTokens:   2048,
			Temperature: 0.2,
		}
	}

	// 构建请求体
	reqBody := map[string]interface{}{
		"model":       mc.model,
		"messages":    messages,
		"temperature": options.Temperature,
	}
	if options.MaxTokens > 0 {
		reqBody["max_tokens"] = options.MaxTokens
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	// 构建HTTP请求
	url := mc.apiBase + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}

	// 设置请求头
	req.Header.Set("Content-Type", "application/json")
	if mc.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+mc.apiKey)
	}
	for k, v := range mc.headers {
		req.Header.Set(k, v)
	}

	// 发送请求
	resp, err := mc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	// 读取响应
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}

	// 检查HTTP状态码
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	// 解析响应
	var result dto.ModelCallResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	return &result, nil
}

// CallVision 发送一条带图片的用户消息，返回助手回复文本
func (mc *ModelCaller) CallVision(ctx context.Context, prompt, imageDataURI string, options *CallOptions) (*VisionResult, error) {
	messages := []dto.Message{
		{
			Role: "user",
			Content: []dto.ContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: &dto.ImageURL{URL: imageDataURI}},
			},
		},
	}

	resp, err := mc.Call(ctx, messages, options)
	if err != nil {
		return nil, err
	}

	content, err := AssistantContent(resp)
	if err != nil {
		return nil, err
	}

	model := resp.Model
	if model == "" {
		model = mc.model
	}
	return &VisionResult{Content: content, Model: model, Usage: resp.Usage}, nil
}

// AssistantContent 取第一条回复，兼容字符串和片段数组两种格式
func AssistantContent(resp *dto.ModelCallResponse) (string, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	switch v := resp.Choices[0].Message.Content.(type) {
	case string:
		return strings.TrimSpace(v), nil
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", ErrEmptyResponse
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	default:
		return "", ErrEmptyResponse
	}
}

// Limiter 并发槽位
type Limiter interface {
	Acquire(ctx context.Context, key string) error
	Release(ctx context.Context, key string)
}

// CallVisionWithConcurrencyLimit 带并发限制的图片识别调用
func (mc *ModelCaller) CallVisionWithConcurrencyLimit(ctx context.Context, limiter Limiter, prompt, imageDataURI string, options *CallOptions) (*VisionResult, error) {
	if limiter == nil {
		return mc.CallVision(ctx, prompt, imageDataURI, options)
	}

	// 获取并发槽位
	if err := limiter.Acquire(ctx, mc.model); err != nil {
		return nil, fmt.Errorf("获取并发槽位失败: %w", err)
	}
	defer limiter.Release(ctx, mc.model)

	return mc.CallVision(ctx, prompt, imageDataURI, options)
}

// ConcurrencyLimiter 进程内并发限制器，Redis 未启用时使用
type ConcurrencyLimiter struct {
	maxConcurrent int
	semaphore     chan struct{}
}

// NewConcurrencyLimiter 创建并发限制器
func NewConcurrencyLimiter(maxConcurrent int) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ConcurrencyLimiter{
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
	}
}

// Acquire 获取并发槽位
func (cl *ConcurrencyLimiter) Acquire(ctx context.Context, key string) error {
	select {
	case cl.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放并发槽位
func (cl *ConcurrencyLimiter) Release(ctx context.Context, key string) {
	select {
	case <-cl.semaphore:
	default:
	}
}

// GetMaxConcurrent 获取最大并发数
func (cl *ConcurrencyLimiter) GetMaxConcurrent() int {
	return cl.maxConcurrent
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
