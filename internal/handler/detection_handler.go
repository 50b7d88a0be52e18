package handler

import (
	"fmt"
	"strconv"
	"time"

	"pestid/internal/dto"
	"pestid/internal/middleware"
	"pestid/internal/service"
	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
)

// maxIngestBatch 单次批量上报上限
const maxIngestBatch = 500

// DetectionHandler 检测记录的上报与查询
type DetectionHandler struct {
	detectionService *service.DetectionService
}

// NewDetectionHandler 创建检测处理器
func NewDetectionHandler(detectionService *service.DetectionService) *DetectionHandler {
	return &DetectionHandler{detectionService: detectionService}
}

// Create 上报一条已完成识别的检测结果
// @Router /api/fbdetection [post]
func (h *DetectionHandler) Create(c *gin.Context) {
	var req dto.CreateDetectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}
	// 只有管理员可以代其他用户上报
	if req.UserID == 0 || !middleware.IsAdmin(c) {
		req.UserID, _ = middleware.GetUserID(c)
	}

	detection, err := h.detectionService.Create(c.Request.Context(), &req)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "检测结果已保存", detection)
}

// Ingest 现场设备批量上报，使用内部密钥认证
// @Router /api/fbdetection/ingest [post]
func (h *DetectionHandler) Ingest(c *gin.Context) {
	var reqs []dto.CreateDetectionRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}
	if len(reqs) > maxIngestBatch {
		utils.BadRequest(c, fmt.Sprintf("单次最多上报 %d 条", maxIngestBatch))
		return
	}
	for i := range reqs {
		if err := utils.ValidateStruct(&reqs[i]); err != nil {
			utils.BadRequest(c, fmt.Sprintf("第 %d 条: %v", i+1, err))
			return
		}
	}

	ids, err := h.detectionService.CreateBatch(c.Request.Context(), reqs)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "批量上报成功", gin.H{"ids": ids, "count": len(ids)})
}

// List 检测列表，游标分页
// @Router /api/fbdetection [get]
func (h *DetectionHandler) List(c *gin.Context) {
	var query dto.DetectionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}

	page, err := h.detectionService.List(&query)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, page)
}

// Map 地图点位
// @Router /api/fbdetection/map [get]
func (h *DetectionHandler) Map(c *gin.Context) {
	points, err := h.detectionService.MapPoints(c.Query("status"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"points": points, "total": len(points)})
}

// Chart 每日数量和害虫类型分布
// @Router /api/fbdetection/chart [get]
func (h *DetectionHandler) Chart(c *gin.Context) {
	days := service.DefaultChartDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxChartDays {
			utils.BadRequest(c, fmt.Sprintf("days 必须在 1 到 %d 之间", service.MaxChartDays))
			return
		}
		days = n
	}

	chart, err := h.detectionService.Chart(days, time.Now())
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, chart)
}

// Stats 状态统计
// @Router /api/fbdetection/stats [get]
func (h *DetectionHandler) Stats(c *gin.Context) {
	stats, err := h.detectionService.Stats()
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, stats)
}

// Detail 检测详情
// @Router /api/fbdetection/{id} [get]
func (h *DetectionHandler) Detail(c *gin.Context) {
	detail, err := h.detectionService.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, detail)
}
