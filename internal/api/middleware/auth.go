package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/pkg/jwt"
	"github.com/shiivaansh/sortED-sub000/pkg/redis"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// liveRoutePrefix 实时订阅路由，websocket 握手无法携带 Authorization 头
const liveRoutePrefix = "/api/v1/live/"

// JWTAuth 校验外部签发的 Access Token，并把身份写入上下文
//
// 上下文键：user_id / role / name / email / jti / token_exp。
// rdb 为 nil 或 Redis 出错时不检查吊销名单。
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, 10002, "缺少认证头")
			return
		}

		claims, err := jwtMgr.ParseToken(raw)
		if err != nil || claims.TokenType != "access" {
			response.Abort(c, http.StatusUnauthorized, 10002, "Token 无效或已过期")
			return
		}

		if rdb != nil && claims.ID != "" {
			if revoked, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Abort(c, http.StatusUnauthorized, 10002, "Token 已注销")
				return
			}
		}

		setIdentity(c, claims)
		c.Next()
	}
}

func setIdentity(c *gin.Context, claims *jwt.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("role", claims.Role)
	c.Set("name", claims.Name)
	c.Set("email", claims.Email)
	c.Set("jti", claims.ID)
	if claims.ExpiresAt != nil {
		c.Set("token_exp", claims.ExpiresAt.Time)
	}
}

// bearerToken 优先取 Authorization 头；仅实时订阅路由接受 ?access_token=
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, found := strings.CutPrefix(header, "Bearer ")
		return token, found && token != ""
	}
	if strings.HasPrefix(c.Request.URL.Path, liveRoutePrefix) {
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// RoleAuth 仅放行指定角色（teacher / student）
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role := c.GetString("role")
		if role == "" {
			response.Abort(c, http.StatusUnauthorized, 10002, "未认证")
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Abort(c, http.StatusForbidden, 10003, "无权限访问")
			return
		}
		c.Next()
	}
}
