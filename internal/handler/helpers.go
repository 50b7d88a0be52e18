package handler

import (
	"errors"
	"fmt"
	"net/http"

	"pestid/internal/config"
	"pestid/internal/dto"
	"pestid/internal/repository"
	"pestid/internal/service"
	"pestid/internal/utils"
	"pestid/pkg/imageprep"

	"github.com/gin-gonic/gin"
)

// errMissingImage 表单中没有 image 字段
var errMissingImage = errors.New("缺少图片文件")

// analysisError 分析类接口的错误响应
func analysisError(c *gin.Context, status int, message string, err error) {
	body := dto.ErrorBody{Success: false, Error: message}
	if err != nil {
		body.Details = err.Error()
	}
	c.JSON(status, body)
}

// analysisFailure 按上游错误类型选择状态码
func analysisFailure(c *gin.Context, message string, err error) {
	status := service.UpstreamStatus(err)
	if status == 0 {
		status = http.StatusInternalServerError
	}
	analysisError(c, status, message, err)
}

// readImage 读取表单图片并缩放
func readImage(c *gin.Context, upload config.UploadConfig) (*imageprep.Prepared, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, errMissingImage
	}
	if upload.MaxBytes > 0 && fh.Size > upload.MaxBytes {
		return nil, fmt.Errorf("图片超过大小限制 %d 字节", upload.MaxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer f.Close()

	return imageprep.Prepare(f, upload.MaxDimension, upload.JPEGQuality)
}

// respondStoreError 存储层错误映射到统一响应
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidCursor):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrDetectionNotFound), errors.Is(err, service.ErrVerificationNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrDetectionExists):
		utils.Conflict(c, err.Error())
	case errors.Is(err, service.ErrReasonRequired):
		utils.BadRequest(c, err.Error())
	default:
		utils.InternalError(c, err.Error())
	}
}
