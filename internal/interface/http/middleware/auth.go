package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/jwt"
	"github.com/xiebiao/storefront/pkg/response"
)

const (
	ctxKeyUserID = "user_id"
	ctxKeyRole   = "role"
)

// AuthMiddleware JWT认证中间件
// 设计说明：
// 1. 从Header提取Bearer Token
// 2. 验证签名和有效期
// 3. 把用户ID和角色注入Context，Handler再作为actorID显式传给用例
type AuthMiddleware struct {
	jwtManager *jwt.Manager
	policy     Policy
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(jwtManager *jwt.Manager, policy Policy) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		policy:     policy,
	}
}

// RequireAuth 要求登录
// 使用方式：
//
//	authorized := r.Group("/api/v1")
//	authorized.Use(authMiddleware.RequireAuth())
//	authorized.GET("/cart", cartHandler.GetCart)
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 格式：Authorization: Bearer <token>
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Error(c, apperrors.ErrInvalidToken.WithMessage("Token格式错误"))
			c.Abort()
			return
		}

		claims, err := m.jwtManager.ParseToken(parts[1])
		if err != nil {
			response.Error(c, err) // ErrTokenExpired、ErrInvalidToken
			c.Abort()
			return
		}

		c.Set(ctxKeyUserID, claims.UserID)
		c.Set(ctxKeyRole, claims.Role)
		c.Next()
	}
}

// Require 要求当前角色拥有权限，必须挂在RequireAuth之后
func (m *AuthMiddleware) Require(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.policy.Allows(GetRole(c), perm) {
			response.Error(c, apperrors.ErrForbidden.WithDetails(map[string]interface{}{
				"permission": string(perm),
			}))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Can 当前角色是否拥有权限（Handler内做细粒度判断时使用）
func (m *AuthMiddleware) Can(c *gin.Context, perm Permission) bool {
	return m.policy.Allows(GetRole(c), perm)
}

// =========================================
// Context辅助函数（供Handler使用）
// =========================================

// GetUserID 从Context获取当前登录用户ID，未登录返回0
func GetUserID(c *gin.Context) uint {
	if userID, exists := c.Get(ctxKeyUserID); exists {
		if uid, ok := userID.(uint); ok {
			return uid
		}
	}
	return 0
}

// GetRole 从Context获取当前角色
func GetRole(c *gin.Context) string {
	if role, exists := c.Get(ctxKeyRole); exists {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}
