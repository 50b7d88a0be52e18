// Package gemini 封装 Gemini 多模态调用，供两阶段识别流程使用。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel 默认模型
const DefaultModel = "gemini-2.0-flash"

// ErrEmptyResponse 模型未返回文本
var ErrEmptyResponse = errors.New("Gemini 返回空响应")

// Client Gemini 客户端
type Client struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewClient 创建 Gemini 客户端
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("缺少 Gemini API Key")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}

	return &Client{
		client:      client,
		model:       model,
		temperature: 0.2,
	}, nil
}

// Model 当前使用的模型
func (c *Client) Model() string {
	return c.model
}

// Generate 发送提示词和图片，要求以 JSON 返回，结果为原始文本
func (c *Client) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if len(image) > 0 {
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromBytes(image, mimeType))
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("Gemini 调用失败: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
