package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	return mustGetString(c, "user_id")
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, "role")
}

// MustGetIdentity 组装调用者身份（user_id + role + Token 中的姓名与邮箱）
func MustGetIdentity(c *gin.Context) (service.Identity, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return service.Identity{}, false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return service.Identity{}, false
	}
	return service.Identity{
		UserID: userID,
		Role:   role,
		Name:   c.GetString("name"),
		Email:  c.GetString("email"),
	}, true
}

// canReadStudent 教师可查看任意学生，学生只能查看自己
func canReadStudent(c *gin.Context, studentID string) bool {
	return c.GetString("role") == model.RoleTeacher || c.GetString("user_id") == studentID
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// pathUUID 取 uuid 类型的路径 ID，格式非法时按资源不存在返回 404
func pathUUID(c *gin.Context, code int, msg string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		response.NotFound(c, code, msg)
		return "", false
	}
	return id, true
}

// bindJSON 绑定并校验请求体，失败时写入 400
// 请求体超限时只记录错误，由 BodyLimit 中间件统一返回 413
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		_ = c.Error(err)
		return false
	}
	response.BadRequest(c, 10001, "参数校验失败")
	return false
}
