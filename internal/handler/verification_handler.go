package handler

import (
	"strings"

	"pestid/internal/dto"
	"pestid/internal/middleware"
	"pestid/internal/service"
	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
)

// VerificationHandler 人工审核
type VerificationHandler struct {
	verificationService *service.VerificationService
	userCache           *service.UserCache
}

// NewVerificationHandler 创建审核处理器
func NewVerificationHandler(verificationService *service.VerificationService, userCache *service.UserCache) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		userCache:           userCache,
	}
}

// reviewer 当前登录用户，展示名优先
func (h *VerificationHandler) reviewer(c *gin.Context) service.Reviewer {
	id, _ := middleware.GetUserID(c)
	name := h.userCache.DisplayName(c.Request.Context(), id)
	if name == "" {
		name, _ = middleware.GetUsername(c)
	}
	return service.Reviewer{ID: id, Name: name}
}

// Submit 提交审核结论
// @Router /api/verification [post]
func (h *VerificationHandler) Submit(c *gin.Context) {
	var req dto.VerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}

	outcome, err := h.verificationService.Submit(c.Request.Context(), &req, h.reviewer(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "审核结论已保存", outcome)
}

// Update 修改已有审核结论
// @Router /api/verification [patch]
func (h *VerificationHandler) Update(c *gin.Context) {
	id := strings.TrimSpace(c.Query("id"))
	if id == "" {
		utils.BadRequest(c, "缺少审核记录ID")
		return
	}

	var req dto.VerificationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}

	outcome, err := h.verificationService.Update(c.Request.Context(), id, &req, h.reviewer(c))
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessWithMessage(c, "审核结论已更新", outcome)
}

// Get 检测当前的审核结论
// @Router /api/verification [get]
func (h *VerificationHandler) Get(c *gin.Context) {
	detectionID := c.Query("detectionId")
	if detectionID == "" {
		utils.BadRequest(c, "缺少 detectionId")
		return
	}

	v, err := h.verificationService.Get(detectionID)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, v)
}

// History 审核日志，游标分页
// @Router /api/verification/history [get]
func (h *VerificationHandler) History(c *gin.Context) {
	detectionID := c.Query("detectionId")
	if detectionID == "" {
		utils.BadRequest(c, "缺少 detectionId")
		return
	}

	var query dto.CursorQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}

	page, err := h.verificationService.History(detectionID, &query)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, page)
}

// Consistency 检测状态与审核日志是否一致
// @Router /api/verification/consistency [get]
func (h *VerificationHandler) Consistency(c *gin.Context) {
	detectionID := c.Query("detectionId")
	if detectionID == "" {
		utils.BadRequest(c, "缺少 detectionId")
		return
	}

	resp, err := h.verificationService.CheckConsistency(detectionID)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, resp)
}
