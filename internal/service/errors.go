package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"pestid/pkg/model_caller"
	"pestid/pkg/ollama"
)

// 业务错误，处理器据此选择 HTTP 状态码
var (
	ErrDetectionNotFound     = errors.New("检测记录不存在")
	ErrDetectionExists       = errors.New("检测记录ID已存在")
	ErrVerificationNotFound  = errors.New("审核记录不存在")
	ErrInvalidTransition     = errors.New("不允许的状态变更")
	ErrReasonRequired        = errors.New("修改已有审核结论需要填写原因")
	ErrInvalidInput          = errors.New("请求参数无效")
	ErrProviderNotConfigured = errors.New("识别服务未配置")
	ErrHistoryUnavailable    = errors.New("分析历史不可用")
	ErrUpstreamUnreachable   = errors.New("上游服务不可达")
	ErrUpstreamTimeout       = errors.New("上游服务超时")
	ErrUpstreamForbidden     = errors.New("上游服务拒绝访问")
)

// classifyUpstream 将模型服务的调用错误归入上面三类上游错误
func classifyUpstream(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, ollama.ErrInvalidBaseURL):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	case errors.Is(err, ollama.ErrForbidden):
		return fmt.Errorf("%w: %v", ErrUpstreamForbidden, err)
	case errors.Is(err, ollama.ErrTimeout):
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	case errors.Is(err, ollama.ErrUnreachable):
		return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}

	var apiErr *model_caller.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %v", ErrUpstreamForbidden, err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
}

// UpstreamStatus 上游错误对应的 HTTP 状态码，非上游错误返回 0
func UpstreamStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstreamForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstreamUnreachable):
		return http.StatusBadGateway
	case errors.Is(err, ErrProviderNotConfigured):
		return http.StatusServiceUnavailable
	}
	return 0
}
