package middleware

import (
	"crypto/subtle"

	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
)

// InternalAPIAuth 内部API认证中间件
// 现场采集设备批量上报检测结果时使用，密钥来自 internal_api.key
func InternalAPIAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			utils.ServiceUnavailable(c, "内部接口未启用")
			c.Abort()
			return
		}

		requestKey := c.GetHeader("X-Internal-API-Key")
		if subtle.ConstantTimeCompare([]byte(requestKey), []byte(key)) != 1 {
			utils.Unauthorized(c, "无效的内部API密钥")
			c.Abort()
			return
		}

		c.Next()
	}
}
