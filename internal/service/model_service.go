package service

import (
	"sync"
	"time"

	"pestid/internal/dto"
	"pestid/internal/models"
	"pestid/internal/repository"
	"pestid/pkg/model_caller"
	"pestid/pkg/redis_limiter"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// limiterTTL 槽位计数的过期时间，防止进程异常退出后槽位无法释放
const limiterTTL = 300 * time.Second

// ModelService 模型登记与并发控制
type ModelService struct {
	modelRepo             *repository.ModelConfigRepository
	redisClient           *redis.Client
	defaultMaxConcurrency int
	logger                *logrus.Logger
	// 并发限制器映射，每个模型一个限制器
	concurrencyLimiters map[string]model_caller.Limiter
	limiterCaps         map[string]int
	limitersMu          sync.Mutex
}

// NewModelService 创建模型服务，redisClient 为 nil 时使用进程内限制器
func NewModelService(modelRepo *repository.ModelConfigRepository, redisClient *redis.Client, defaultMaxConcurrency int, logger *logrus.Logger) *ModelService {
	if defaultMaxConcurrency <= 0 {
		defaultMaxConcurrency = 4
	}
	return &ModelService{
		modelRepo:             modelRepo,
		redisClient:           redisClient,
		defaultMaxConcurrency: defaultMaxConcurrency,
		logger:                logger,
		concurrencyLimiters:   make(map[string]model_caller.Limiter),
		limiterCaps:           make(map[string]int),
	}
}

// GetActiveModels 获取启用的模型列表
func (s *ModelService) GetActiveModels(provider string) ([]dto.ModelConfigResponse, error) {
	configs, err := s.modelRepo.GetActiveModels(provider)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ModelConfigResponse, len(configs))
	for i := range configs {
		responses[i] = toModelResponse(&configs[i])
	}
	return responses, nil
}

// GetAllModels 获取所有模型(管理员)
func (s *ModelService) GetAllModels(page, perPage int) (*dto.PaginatedResponse, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	configs, total, err := s.modelRepo.List(offset, perPage)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ModelConfigResponse, len(configs))
	for i := range configs {
		responses[i] = toModelResponse(&configs[i])
	}

	return &dto.PaginatedResponse{
		Items:   responses,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	}, nil
}

// GetModelByID 获取模型详情
func (s *ModelService) GetModelByID(id uint) (*models.ModelConfig, error) {
	return s.modelRepo.GetByID(id)
}

// CreateModel 创建模型
func (s *ModelService) CreateModel(req *dto.CreateModelConfigRequest) (*models.ModelConfig, error) {
	model := &models.ModelConfig{
		Name:          req.Name,
		Provider:      req.Provider,
		ModelPath:     req.ModelPath,
		APIURL:        req.APIURL,
		MaxConcurrent: req.MaxConcurrent,
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Timeout:       req.Timeout,
		SupportsBoxes: req.SupportsBoxes,
		Description:   req.Description,
		IsActive:      req.IsActive,
	}
	if model.MaxConcurrent <= 0 {
		model.MaxConcurrent = s.defaultMaxConcurrency
	}

	if err := s.modelRepo.Create(model); err != nil {
		return nil, err
	}

	return model, nil
}

// UpdateModel 更新模型
func (s *ModelService) UpdateModel(id uint, req *dto.UpdateModelConfigRequest) error {
	model, err := s.modelRepo.GetByID(id)
	if err != nil {
		return err
	}

	if req.Name != nil {
		model.Name = *req.Name
	}
	if req.Provider != nil {
		model.Provider = *req.Provider
	}
	if req.ModelPath != nil {
		model.ModelPath = *req.ModelPath
	}
	if req.APIURL != nil {
		model.APIURL = *req.APIURL
	}
	if req.MaxConcurrent != nil {
		model.MaxConcurrent = *req.MaxConcurrent
	}
	if req.MaxTokens != nil {
		model.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		model.Temperature = *req.Temperature
	}
	if req.Timeout != nil {
		model.Timeout = *req.Timeout
	}
	if req.SupportsBoxes != nil {
		model.SupportsBoxes = *req.SupportsBoxes
	}
	if req.Description != nil {
		model.Description = *req.Description
	}
	if req.IsActive != nil {
		model.IsActive = *req.IsActive
	}

	return s.modelRepo.Update(model)
}

// DeleteModel 删除模型
func (s *ModelService) DeleteModel(id uint) error {
	return s.modelRepo.Delete(id)
}

// Lookup 按模型标识查找登记信息，未登记时返回 nil
func (s *ModelService) Lookup(modelKey string) *models.ModelConfig {
	config, err := s.modelRepo.GetByModelPathOrName(modelKey)
	if err != nil {
		return nil
	}
	return config
}

// Limiter 返回模型的并发限制器，上限取登记的 max_concurrent
func (s *ModelService) Limiter(modelKey string) model_caller.Limiter {
	maxConcurrent := s.defaultMaxConcurrency
	if config := s.Lookup(modelKey); config != nil && config.MaxConcurrent > 0 {
		maxConcurrent = config.MaxConcurrent
	}
	return s.getOrCreateLimiter(modelKey, maxConcurrent)
}

// getOrCreateLimiter 获取或创建并发限制器
func (s *ModelService) getOrCreateLimiter(modelKey string, maxConcurrent int) model_caller.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	// 配置未变化时复用
	if limiter, exists := s.concurrencyLimiters[modelKey]; exists && s.limiterCaps[modelKey] == maxConcurrent {
		return limiter
	}

	var limiter model_caller.Limiter
	if s.redisClient != nil {
		limiter = redis_limiter.NewRedisLimiter(s.redisClient, maxConcurrent, "model_concurrent:", limiterTTL, s.logger)
	} else {
		limiter = model_caller.NewConcurrencyLimiter(maxConcurrent)
	}

	s.logger.WithFields(logrus.Fields{
		"model":          modelKey,
		"max_concurrent": maxConcurrent,
		"redis":          s.redisClient != nil,
	}).Info("创建并发限制器")

	s.concurrencyLimiters[modelKey] = limiter
	s.limiterCaps[modelKey] = maxConcurrent
	return limiter
}

func toModelResponse(model *models.ModelConfig) dto.ModelConfigResponse {
	return dto.ModelConfigResponse{
		ID:            model.ID,
		Name:          model.Name,
		Provider:      model.Provider,
		ModelPath:     model.ModelPath,
		APIURL:        model.APIURL,
		MaxConcurrent: model.MaxConcurrent,
		MaxTokens:     model.MaxTokens,
		Temperature:   model.Temperature,
		Timeout:       model.Timeout,
		SupportsBoxes: model.SupportsBoxes,
		Description:   model.Description,
		IsActive:      model.IsActive,
		CreatedAt:     model.CreatedAt.Format("2006-01-02 15:04:05"),
		UpdatedAt:     model.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
