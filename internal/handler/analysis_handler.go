package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pestid/internal/config"
	"pestid/internal/dto"
	"pestid/internal/middleware"
	"pestid/internal/service"
	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler 图片识别、模型对战、投票和分析历史
type AnalysisHandler struct {
	analysisService   *service.AnalysisService
	openRouterService *service.OpenRouterService
	battleService     *service.BattleService
	voteService       *service.VoteService
	historyService    *service.HistoryService
	upload            config.UploadConfig
}

// NewAnalysisHandler 创建识别处理器
func NewAnalysisHandler(
	analysisService *service.AnalysisService,
	openRouterService *service.OpenRouterService,
	battleService *service.BattleService,
	voteService *service.VoteService,
	historyService *service.HistoryService,
	upload config.UploadConfig,
) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService:   analysisService,
		openRouterService: openRouterService,
		battleService:     battleService,
		voteService:       voteService,
		historyService:    historyService,
		upload:            upload,
	}
}

// ModelTesting Gemini 两阶段识别
// @Router /api/analysis/model-testing [post]
func (h *AnalysisHandler) ModelTesting(c *gin.Context) {
	image, err := readImage(c, h.upload)
	if err != nil {
		analysisError(c, http.StatusBadRequest, "无法读取图片", err)
		return
	}
	if !h.analysisService.Configured() {
		analysisError(c, http.StatusServiceUnavailable, "Gemini 未配置", service.ErrProviderNotConfigured)
		return
	}

	opts := service.AnalyzeOptions{
		Save:     c.PostForm("save") == "true",
		ImageURL: c.PostForm("imageUrl"),
	}
	if opts.Save {
		userID, _ := middleware.GetUserID(c)
		opts.UserID = userID
	}
	if opts.Latitude, err = optionalFloat(c.PostForm("latitude"), 90); err != nil {
		analysisError(c, http.StatusBadRequest, "latitude 无效", err)
		return
	}
	if opts.Longitude, err = optionalFloat(c.PostForm("longitude"), 180); err != nil {
		analysisError(c, http.StatusBadRequest, "longitude 无效", err)
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), image.Bytes, image.MIMEType, opts)
	if err != nil {
		analysisFailure(c, "识别失败", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// OpenRouter 单模型识别
// @Router /api/analysis/openrouter [post]
func (h *AnalysisHandler) OpenRouter(c *gin.Context) {
	image, err := readImage(c, h.upload)
	if err != nil {
		analysisError(c, http.StatusBadRequest, "无法读取图片", err)
		return
	}
	if !h.openRouterService.Configured() {
		analysisError(c, http.StatusServiceUnavailable, "OpenRouter 未配置", service.ErrProviderNotConfigured)
		return
	}

	maxTokens, err := optionalInt(c.PostForm("maxTokens"))
	if err != nil {
		analysisError(c, http.StatusBadRequest, "maxTokens 无效", err)
		return
	}

	output, err := h.openRouterService.Analyze(c.Request.Context(), service.VisionRequest{
		Image:     image,
		Model:     c.PostForm("model"),
		Prompt:    c.PostForm("prompt"),
		MaxTokens: maxTokens,
	})
	if err != nil {
		analysisFailure(c, "OpenRouter 调用失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"model":        output.Model,
		"responseText": output.ResponseText,
		"parsed":       output.Parsed,
		"usage":        output.Usage,
		"durationMs":   output.DurationMs,
	})
}

// Battle 两个模型识别同一张图片
// @Router /api/analysis/battle [post]
func (h *AnalysisHandler) Battle(c *gin.Context) {
	image, err := readImage(c, h.upload)
	if err != nil {
		analysisError(c, http.StatusBadRequest, "无法读取图片", err)
		return
	}

	left := strings.TrimSpace(c.PostForm("leftModel"))
	right := strings.TrimSpace(c.PostForm("rightModel"))
	if left == "" || right == "" {
		analysisError(c, http.StatusBadRequest, "leftModel 和 rightModel 必填", nil)
		return
	}

	result, err := h.battleService.Run(c.Request.Context(), service.BattleRequest{
		Image:         image,
		LeftModel:     left,
		RightModel:    right,
		Prompt:        c.PostForm("prompt"),
		OllamaBaseURL: c.PostForm("ollamaBaseUrl"),
	})
	if err != nil {
		analysisFailure(c, "对战失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"battleId": result.BattleID,
		"left":     result.Left,
		"right":    result.Right,
	})
}

// SubmitVote 记录一次对战投票
// @Router /api/analysis/votes [post]
func (h *AnalysisHandler) SubmitVote(c *gin.Context) {
	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		analysisError(c, http.StatusBadRequest, "投票参数无效", errors.New(utils.BindError(err)))
		return
	}

	userID, _ := middleware.GetUserID(c)
	vote, err := h.voteService.Submit(userID, &req)
	if err != nil {
		analysisError(c, http.StatusInternalServerError, "保存投票失败", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "vote": vote})
}

// VoteSummary 投票统计
// @Router /api/analysis/votes [get]
func (h *AnalysisHandler) VoteSummary(c *gin.Context) {
	summary, err := h.voteService.Summary()
	if err != nil {
		analysisError(c, http.StatusInternalServerError, "读取投票失败", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ListHistory 当前用户的分析历史
// @Router /api/analysis/history [get]
func (h *AnalysisHandler) ListHistory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)
	entries, err := h.historyService.List(c.Request.Context(), userID)
	if err != nil {
		h.historyFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "history": entries})
}

// SaveHistory 保存一条分析历史
// @Router /api/analysis/history [post]
func (h *AnalysisHandler) SaveHistory(c *gin.Context) {
	var req dto.HistorySaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		analysisError(c, http.StatusBadRequest, "历史参数无效", errors.New(utils.BindError(err)))
		return
	}

	userID, _ := middleware.GetUserID(c)
	entry, err := h.historyService.Save(c.Request.Context(), userID, &req)
	if err != nil {
		h.historyFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "entry": entry})
}

// DeleteHistory 带 id 时删除单条，否则清空
// @Router /api/analysis/history [delete]
func (h *AnalysisHandler) DeleteHistory(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	id := c.Query("id")
	if id == "" {
		if err := h.historyService.Clear(c.Request.Context(), userID); err != nil {
			h.historyFailure(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	removed, err := h.historyService.Delete(c.Request.Context(), userID, id)
	if err != nil {
		h.historyFailure(c, err)
		return
	}
	if !removed {
		analysisError(c, http.StatusNotFound, "历史记录不存在", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AnalysisHandler) historyFailure(c *gin.Context, err error) {
	if errors.Is(err, service.ErrHistoryUnavailable) {
		analysisError(c, http.StatusServiceUnavailable, "分析历史需要 Redis", err)
		return
	}
	analysisError(c, http.StatusInternalServerError, "分析历史读写失败", err)
}

// optionalFloat 解析可选的坐标，limit 为绝对值上限
func optionalFloat(raw string, limit float64) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	if v < -limit || v > limit {
		return nil, errors.New("坐标超出范围")
	}
	return &v, nil
}

func optionalInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("不能为负数")
	}
	return v, nil
}
