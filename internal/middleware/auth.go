package middleware

import (
	"strings"

	"pestid/internal/utils"

	"github.com/gin-gonic/gin"
)

// 上下文中的用户信息键
const (
	ctxUserID   = "user_id"
	ctxUsername = "username"
	ctxIsAdmin  = "is_admin"
)

// AuthMiddleware JWT认证中间件，审核、上报、分析接口都从这里取当前用户
func AuthMiddleware(jwtManager *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.Unauthorized(c, "未认证")
			c.Abort()
			return
		}

		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			utils.Unauthorized(c, "无效的认证格式")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(strings.TrimSpace(tokenString))
		if err != nil {
			utils.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxIsAdmin, claims.IsAdmin)

		c.Next()
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) (uint, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	userID, ok := id.(uint)
	return userID, ok
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) (string, bool) {
	name, ok := c.Get(ctxUsername)
	if !ok {
		return "", false
	}
	username, ok := name.(string)
	return username, ok
}

// IsAdmin 从上下文判断是否为管理员
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ctxIsAdmin)
}
