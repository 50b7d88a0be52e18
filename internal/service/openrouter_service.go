package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pestid/internal/config"
	"pestid/internal/metrics"
	"pestid/internal/models"
	"pestid/pkg/imageprep"
	"pestid/pkg/interpreter"
	"pestid/pkg/model_caller"

	"github.com/sirupsen/logrus"
)

// StageSingle 单次识别调用
const StageSingle = "single"

// VisionOutput 单模型识别结果
type VisionOutput struct {
	Provider     string             `json:"provider"`
	Model        string             `json:"model"`
	ResponseText string             `json:"responseText"`
	Parsed       interpreter.Result `json:"parsed"`
	Usage        interface{}        `json:"usage,omitempty"`
	DurationMs   int64              `json:"durationMs"`
}

// VisionRequest 单模型识别请求
type VisionRequest struct {
	Image     *imageprep.Prepared
	Model     string
	Prompt    string
	System    string
	MaxTokens int
	BaseURL   string
}

// OpenRouterService 通过 OpenRouter 调用各家视觉模型
type OpenRouterService struct {
	cfg          config.OpenRouterConfig
	referer      string
	modelService *ModelService
	httpClient   *http.Client
	metrics      *metrics.Metrics
	logger       *logrus.Logger
}

// NewOpenRouterService 创建 OpenRouter 服务，referer 为前端地址
func NewOpenRouterService(cfg config.OpenRouterConfig, referer string, modelService *ModelService, m *metrics.Metrics, logger *logrus.Logger) *OpenRouterService {
	return &OpenRouterService{
		cfg:          cfg,
		referer:      referer,
		modelService: modelService,
		metrics:      m,
		logger:       logger,
	}
}

// WithHTTPClient 替换底层 HTTP 客户端
func (s *OpenRouterService) WithHTTPClient(client *http.Client) *OpenRouterService {
	s.httpClient = client
	return s
}

// Configured 是否配置了 API Key
func (s *OpenRouterService) Configured() bool {
	return strings.TrimSpace(s.cfg.APIKey) != ""
}

// Analyze 发送图片并解析回复
func (s *OpenRouterService) Analyze(ctx context.Context, req VisionRequest) (*VisionOutput, error) {
	if !s.Configured() {
		return nil, ErrProviderNotConfigured
	}
	if req.Image == nil {
		return nil, ErrInvalidInput
	}

	model := req.Model
	if model == "" {
		model = s.cfg.DefaultModel
	}
	if model == "" {
		return nil, ErrInvalidInput
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}
	temperature := 0.2
	if registered := s.lookup(model); registered != nil {
		if registered.MaxTokens > 0 && req.MaxTokens <= 0 {
			maxTokens = registered.MaxTokens
		}
		if registered.Temperature > 0 {
			temperature = registered.Temperature
		}
	}

	caller := model_caller.NewModelCaller(s.cfg.BaseURL, s.cfg.APIKey, model, s.cfg.GetTimeout()).
		WithHeader("HTTP-Referer", s.referer).
		WithHeader("X-Title", s.cfg.SiteName).
		WithHTTPClient(s.httpClient)

	var limiter model_caller.Limiter
	if s.modelService != nil {
		limiter = s.modelService.Limiter(model)
	}

	start := time.Now()
	result, err := caller.CallVisionWithConcurrencyLimit(ctx, limiter, prompt, req.Image.DataURI(), &model_caller.CallOptions{
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordProviderCall(models.ProviderOpenRouter, StageSingle, "error", elapsed)
		s.logger.WithFields(logrus.Fields{
			"provider": models.ProviderOpenRouter,
			"model":    model,
			"error":    err.Error(),
		}).Error("OpenRouter 调用失败")
		return nil, classifyUpstream(err)
	}
	s.metrics.RecordProviderCall(models.ProviderOpenRouter, StageSingle, "ok", elapsed)

	return &VisionOutput{
		Provider:     models.ProviderOpenRouter,
		Model:        result.Model,
		ResponseText: result.Content,
		Parsed:       interpreter.Interpret(result.Content),
		Usage:        result.Usage,
		DurationMs:   elapsed.Milliseconds(),
	}, nil
}

func (s *OpenRouterService) lookup(model string) *models.ModelConfig {
	if s.modelService == nil {
		return nil
	}
	return s.modelService.Lookup(model)
}
