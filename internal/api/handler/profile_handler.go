package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// ProfileHandler 档案模块 HTTP 处理器
type ProfileHandler struct {
	profileSvc service.ProfileService
}

// NewProfileHandler 创建 ProfileHandler
func NewProfileHandler(profileSvc service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileSvc: profileSvc}
}

// EnsureProfile 首次登录建档
// POST /api/v1/profiles/me
func (h *ProfileHandler) EnsureProfile(c *gin.Context) {
	ident, ok := MustGetIdentity(c)
	if !ok {
		return
	}

	var req dto.EnsureProfileRequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	result, err := h.profileSvc.EnsureProfile(c.Request.Context(), ident, &req)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	if result.Created {
		response.Created(c, result)
		return
	}
	response.OK(c, result)
}

// GetMyProfile 获取当前用户档案
// GET /api/v1/profiles/me
func (h *ProfileHandler) GetMyProfile(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	profile, err := h.profileSvc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, profile)
}

// GetProfile 获取档案详情
// GET /api/v1/profiles/:id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "档案ID不能为空")
		return
	}
	if !canReadStudent(c, id) {
		response.Forbidden(c, 11004, "无权查看该档案")
		return
	}

	profile, err := h.profileSvc.GetProfile(c.Request.Context(), id)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, profile)
}

// ListProfiles 档案列表
// GET /api/v1/profiles
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	var req dto.ProfileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.profileSvc.ListProfiles(c.Request.Context(), &req)
	if err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Deactivate 停用档案
// PUT /api/v1/profiles/:id/deactivate
func (h *ProfileHandler) Deactivate(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, 10001, "档案ID不能为空")
		return
	}

	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.profileSvc.Deactivate(c.Request.Context(), callerID, id); err != nil {
		h.handleProfileError(c, err)
		return
	}

	response.OK(c, nil)
}

// handleProfileError 统一处理档案模块业务错误
func (h *ProfileHandler) handleProfileError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 11001, "档案不存在")
	case errors.Is(err, service.ErrInvalidRole):
		response.BadRequest(c, 11002, "角色只能为 student 或 teacher")
	case errors.Is(err, service.ErrSelfDeactivate):
		response.BadRequest(c, 11003, "不能停用自己的档案")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 11004, "无权操作")
	case errors.Is(err, service.ErrIdentityIncomplete):
		response.Unauthorized(c, 10002, "未认证")
	default:
		response.InternalError(c)
	}
}
