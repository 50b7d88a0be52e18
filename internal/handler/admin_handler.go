package handler

import (
	"strconv"

	"pestid/internal/dto"
	"pestid/internal/repository"
	"pestid/internal/service"
	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理员处理器
type AdminHandler struct {
	userRepo       *repository.UserRepository
	authService    *service.AuthService
	speciesService *service.SpeciesService
}

// NewAdminHandler 创建管理员处理器
func NewAdminHandler(
	userRepo *repository.UserRepository,
	authService *service.AuthService,
	speciesService *service.SpeciesService,
) *AdminHandler {
	return &AdminHandler{
		userRepo:       userRepo,
		authService:    authService,
		speciesService: speciesService,
	}
}

// ListUsers 获取所有用户
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	offset := (page - 1) * perPage
	users, total, err := h.userRepo.List(offset, perPage)
	if err != nil {
		utils.InternalError(c, err.Error())
		return
	}

	items := make([]dto.UserInfo, 0, len(users))
	for _, u := range users {
		items = append(items, dto.UserInfo{
			ID:          u.ID,
			Username:    u.Username,
			DisplayName: u.DisplayName,
			IsActive:    u.IsActive,
			IsAdmin:     u.IsAdmin,
		})
	}

	utils.PaginatedResponse(c, items, total, page, perPage)
}

// DeleteUser 删除用户
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.BadRequest(c, "无效的用户ID")
		return
	}

	if err := h.authService.DeleteUser(uint(id)); err != nil {
		utils.InternalError(c, err.Error())
		return
	}

	utils.SuccessWithMessage(c, "用户已删除", gin.H{"success": true})
}

// AggregateSpecies 从检测记录重建物种表
func (h *AdminHandler) AggregateSpecies(c *gin.Context) {
	report, err := h.speciesService.Aggregate(c.Request.Context())
	if err != nil {
		utils.InternalError(c, err.Error())
		return
	}

	utils.SuccessWithMessage(c, "物种汇总完成", report)
}
