package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// ClassHandler 班级与花名册 HTTP 处理器
type ClassHandler struct {
	rosterSvc service.RosterService
}

// NewClassHandler 创建 ClassHandler
func NewClassHandler(rosterSvc service.RosterService) *ClassHandler {
	return &ClassHandler{rosterSvc: rosterSvc}
}

// CreateClass 创建班级（自动登记匹配的学生）
// POST /api/v1/classes
func (h *ClassHandler) CreateClass(c *gin.Context) {
	var req dto.CreateClassRequest
	if !bindJSON(c, &req) {
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.rosterSvc.CreateClass(c.Request.Context(), teacherID, &req)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.Created(c, result)
}

// ListMyClasses 当前教师任教的班级
// GET /api/v1/classes
func (h *ClassHandler) ListMyClasses(c *gin.Context) {
	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	classes, err := h.rosterSvc.ListTeacherClasses(c.Request.Context(), teacherID)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, classes)
}

// GetClass 获取班级详情
// GET /api/v1/classes/:id
func (h *ClassHandler) GetClass(c *gin.Context) {
	id, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}

	class, err := h.rosterSvc.GetClass(c.Request.Context(), id)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, class)
}

// RefreshEnrollment 重新同步花名册
// POST /api/v1/classes/:id/enrollment/refresh
func (h *ClassHandler) RefreshEnrollment(c *gin.Context) {
	id, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.rosterSvc.RefreshEnrollment(c.Request.Context(), teacherID, id)
	if err != nil {
		h.handleClassError(c, err)
		return
	}

	response.OK(c, result)
}

// handleClassError 统一处理班级模块业务错误
func (h *ClassHandler) handleClassError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrTeacherNotFound):
		response.NotFound(c, 12002, "教师档案不存在，请先完成建档")
	case errors.Is(err, service.ErrNotClassOwner):
		response.Forbidden(c, 12003, "只有任课教师可以操作该班级")
	default:
		response.InternalError(c)
	}
}
