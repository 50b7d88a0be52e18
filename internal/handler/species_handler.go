package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"pestid/internal/dto"
	"pestid/internal/service"
	"pestid/internal/utils"
	"pestid/pkg/gbif"

	"github.com/gin-gonic/gin"
)

// SpeciesHandler 物种汇总与 GBIF 查询
type SpeciesHandler struct {
	speciesService *service.SpeciesService
}

// NewSpeciesHandler 创建物种处理器
func NewSpeciesHandler(speciesService *service.SpeciesService) *SpeciesHandler {
	return &SpeciesHandler{speciesService: speciesService}
}

// List 物种列表
// @Router /api/species [get]
func (h *SpeciesHandler) List(c *gin.Context) {
	var query dto.CursorQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, utils.BindError(err))
		return
	}

	page, err := h.speciesService.List(&query)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	utils.SuccessResponse(c, page)
}

// Tree 分类树
// @Router /api/species/tree [get]
func (h *SpeciesHandler) Tree(c *gin.Context) {
	tree, err := h.speciesService.Tree()
	if err != nil {
		utils.InternalError(c, err.Error())
		return
	}

	utils.SuccessResponse(c, tree)
}

// SearchGBIF 在 GBIF 中搜索
// @Router /api/species/gbif/search [get]
func (h *SpeciesHandler) SearchGBIF(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		utils.BadRequest(c, "缺少查询关键字 q")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.speciesService.SearchGBIF(c.Request.Context(), q, limit)
	if err != nil {
		h.gbifFailure(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// MatchGBIF 学名匹配
// @Router /api/species/gbif/match [get]
func (h *SpeciesHandler) MatchGBIF(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		utils.BadRequest(c, "缺少学名 name")
		return
	}

	result, err := h.speciesService.MatchGBIF(c.Request.Context(), name)
	if err != nil {
		h.gbifFailure(c, err)
		return
	}

	utils.SuccessResponse(c, result)
}

// GetGBIF 按 key 查询 GBIF 条目
// @Router /api/species/gbif/{key} [get]
func (h *SpeciesHandler) GetGBIF(c *gin.Context) {
	key, err := strconv.ParseInt(c.Param("key"), 10, 64)
	if err != nil || key <= 0 {
		utils.BadRequest(c, "无效的 GBIF key")
		return
	}

	usage, err := h.speciesService.GetGBIF(c.Request.Context(), key)
	if err != nil {
		h.gbifFailure(c, err)
		return
	}

	utils.SuccessResponse(c, usage)
}

func (h *SpeciesHandler) gbifFailure(c *gin.Context, err error) {
	if errors.Is(err, gbif.ErrNotFound) {
		utils.NotFound(c, err.Error())
		return
	}
	status := service.UpstreamStatus(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	utils.ErrorResponse(c, status, err.Error())
}
