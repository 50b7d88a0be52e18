package service

import (
	"context"
	"net/http"
	"time"

	"pestid/internal/config"
	"pestid/internal/dto"
	"pestid/internal/metrics"
	"pestid/internal/models"
	"pestid/pkg/interpreter"
	"pestid/pkg/ollama"

	"github.com/sirupsen/logrus"
)

// OllamaModelPrefix 对战模式中 Ollama 模型名的前缀
const OllamaModelPrefix = "ollama:"

// OllamaService 本地 Ollama 模型的连通性检查与推理
type OllamaService struct {
	cfg          config.OllamaConfig
	modelService *ModelService
	httpClient   *http.Client
	metrics      *metrics.Metrics
	logger       *logrus.Logger
}

// NewOllamaService 创建 Ollama 服务
func NewOllamaService(cfg config.OllamaConfig, modelService *ModelService, m *metrics.Metrics, logger *logrus.Logger) *OllamaService {
	return &OllamaService{
		cfg:          cfg,
		modelService: modelService,
		metrics:      m,
		logger:       logger,
	}
}

// WithHTTPClient 替换底层 HTTP 客户端
func (s *OllamaService) WithHTTPClient(client *http.Client) *OllamaService {
	s.httpClient = client
	return s
}

// ResolveBaseURL 空地址使用配置的默认值
func (s *OllamaService) ResolveBaseURL(baseURL string) string {
	if baseURL == "" {
		return s.cfg.DefaultBaseURL
	}
	return baseURL
}

func (s *OllamaService) client(baseURL string, timeout time.Duration) (*ollama.Client, error) {
	c, err := ollama.NewClient(s.ResolveBaseURL(baseURL), timeout)
	if err != nil {
		return nil, classifyUpstream(err)
	}
	if s.httpClient != nil {
		httpClient := *s.httpClient
		httpClient.Timeout = timeout
		c.WithHTTPClient(&httpClient)
	}
	return c, nil
}

// ListModels 列出已安装模型
func (s *OllamaService) ListModels(ctx context.Context, baseURL string) ([]ollama.Model, error) {
	c, err := s.client(baseURL, s.cfg.GetServiceTimeout())
	if err != nil {
		return nil, err
	}
	list, err := c.ListModels(ctx)
	if err != nil {
		s.logFailure(c.BaseURL(), "", "list-models", err)
		return nil, classifyUpstream(err)
	}
	return list, nil
}

// TestConnection 检查服务是否可用，返回版本号
func (s *OllamaService) TestConnection(ctx context.Context, baseURL string) (string, error) {
	c, err := s.client(baseURL, s.cfg.GetServiceTimeout())
	if err != nil {
		return "", err
	}
	version, err := c.Version(ctx)
	if err != nil {
		s.logFailure(c.BaseURL(), "", "test-connection", err)
		return "", classifyUpstream(err)
	}
	return version, nil
}

// Analyze 使用指定模型识别图片
func (s *OllamaService) Analyze(ctx context.Context, req VisionRequest) (*VisionOutput, error) {
	if req.Image == nil || req.Model == "" {
		return nil, ErrInvalidInput
	}
	c, err := s.client(req.BaseURL, s.cfg.GetGenerateTimeout())
	if err != nil {
		return nil, err
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = DefaultVisionPrompt
	}

	if s.modelService != nil {
		limiter := s.modelService.Limiter(OllamaModelPrefix + req.Model)
		if err := limiter.Acquire(ctx, OllamaModelPrefix+req.Model); err != nil {
			return nil, classifyUpstream(err)
		}
		defer limiter.Release(ctx, OllamaModelPrefix+req.Model)
	}

	start := time.Now()
	resp, err := c.Generate(ctx, ollama.GenerateRequest{
		Model:     req.Model,
		Prompt:    prompt,
		System:    req.System,
		Images:    []string{req.Image.Base64},
		MaxTokens: req.MaxTokens,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordProviderCall(models.ProviderOllama, StageSingle, "error", elapsed)
		s.logFailure(c.BaseURL(), req.Model, "generate", err)
		return nil, classifyUpstream(err)
	}
	s.metrics.RecordProviderCall(models.ProviderOllama, StageSingle, "ok", elapsed)

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return &VisionOutput{
		Provider:     models.ProviderOllama,
		Model:        model,
		ResponseText: resp.Response,
		Parsed:       interpreter.Interpret(resp.Response),
		Usage: dto.OllamaUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalDuration:    resp.TotalDuration,
		},
		DurationMs: elapsed.Milliseconds(),
	}, nil
}

func (s *OllamaService) logFailure(baseURL, model, action string, err error) {
	s.logger.WithFields(logrus.Fields{
		"provider": models.ProviderOllama,
		"base_url": baseURL,
		"model":    model,
		"action":   action,
		"error":    err.Error(),
	}).Warn("Ollama 调用失败")
}
