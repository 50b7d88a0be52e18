package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"pestid/internal/config"
	"pestid/internal/service"

	"github.com/gin-gonic/gin"
)

// Ollama 连通性操作
const (
	actionListModels     = "list-models"
	actionTestConnection = "test-connection"
)

// OllamaHandler 本地 Ollama 服务的连通性检查和识别
type OllamaHandler struct {
	ollamaService *service.OllamaService
	routeTimeout  time.Duration
	upload        config.UploadConfig
}

// NewOllamaHandler 创建 Ollama 处理器
func NewOllamaHandler(ollamaService *service.OllamaService, routeTimeout time.Duration, upload config.UploadConfig) *OllamaHandler {
	return &OllamaHandler{
		ollamaService: ollamaService,
		routeTimeout:  routeTimeout,
		upload:        upload,
	}
}

// Probe 列出模型或测试连接
// @Router /api/analysis/ollama [get]
func (h *OllamaHandler) Probe(c *gin.Context) {
	baseURL := h.ollamaService.ResolveBaseURL(strings.TrimSpace(c.Query("baseUrl")))
	action := c.DefaultQuery("action", actionListModels)

	ctx := c.Request.Context()
	if h.routeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.routeTimeout)
		defer cancel()
	}

	switch action {
	case actionListModels:
		list, err := h.ollamaService.ListModels(ctx, baseURL)
		if err != nil {
			analysisFailure(c, "无法获取 Ollama 模型列表", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "models": list})
	case actionTestConnection:
		version, err := h.ollamaService.TestConnection(ctx, baseURL)
		if err != nil {
			analysisFailure(c, "无法连接 Ollama 服务", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "连接成功",
			"version": version,
		})
	default:
		analysisError(c, http.StatusBadRequest, "不支持的 action: "+action, nil)
	}
}

// Analyze 使用本地模型识别图片
// @Router /api/analysis/ollama [post]
func (h *OllamaHandler) Analyze(c *gin.Context) {
	image, err := readImage(c, h.upload)
	if err != nil {
		analysisError(c, http.StatusBadRequest, "无法读取图片", err)
		return
	}

	modelName := strings.TrimSpace(c.PostForm("modelName"))
	baseURL := strings.TrimSpace(c.PostForm("baseUrl"))
	if modelName == "" || baseURL == "" {
		analysisError(c, http.StatusBadRequest, "modelName 和 baseUrl 必填", nil)
		return
	}
	maxTokens, err := optionalInt(c.PostForm("maxTokens"))
	if err != nil {
		analysisError(c, http.StatusBadRequest, "maxTokens 无效", err)
		return
	}

	output, err := h.ollamaService.Analyze(c.Request.Context(), service.VisionRequest{
		Image:     image,
		Model:     modelName,
		System:    c.PostForm("systemPrompt"),
		Prompt:    c.PostForm("prompt"),
		MaxTokens: maxTokens,
		BaseURL:   baseURL,
	})
	if err != nil {
		analysisFailure(c, "Ollama 识别失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"model":        output.Model,
		"responseText": output.ResponseText,
		"parsed":       output.Parsed,
		"usage":        output.Usage,
	})
}
