package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// AttendanceHandler 点名模块 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// MarkAttendance 单个学生点名
// POST /api/v1/attendance
func (h *AttendanceHandler) MarkAttendance(c *gin.Context) {
	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	markedBy, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.MarkAttendance(c.Request.Context(), markedBy, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Created(c, result)
}

// MarkClassAttendance 班级批量点名
// POST /api/v1/classes/:id/attendance
func (h *AttendanceHandler) MarkClassAttendance(c *gin.Context) {
	classID, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}

	var req dto.MarkClassAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}

	markedBy, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.attendanceSvc.MarkClassAttendance(c.Request.Context(), markedBy, classID, &req)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.Created(c, result)
}

// ListStudentAttendance 学生点名汇总
// GET /api/v1/students/:id/attendance
func (h *AttendanceHandler) ListStudentAttendance(c *gin.Context) {
	studentID := c.Param("id")
	if studentID == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}
	if !canReadStudent(c, studentID) {
		response.Forbidden(c, 13004, "无权查看该学生的点名记录")
		return
	}

	result, err := h.attendanceSvc.ListStudentAttendance(c.Request.Context(), studentID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, result)
}

// ListAttendanceLog 学生点名流水（含被覆盖的历史记录）
// GET /api/v1/students/:id/attendance/log
func (h *AttendanceHandler) ListAttendanceLog(c *gin.Context) {
	studentID := c.Param("id")
	if studentID == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}
	if !canReadStudent(c, studentID) {
		response.Forbidden(c, 13004, "无权查看该学生的点名记录")
		return
	}

	entries, err := h.attendanceSvc.ListAttendanceLog(c.Request.Context(), studentID)
	if err != nil {
		h.handleAttendanceError(c, err)
		return
	}

	response.OK(c, entries)
}

// handleAttendanceError 统一处理点名模块业务错误
func (h *AttendanceHandler) handleAttendanceError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidAttendanceDate):
		response.BadRequest(c, 13001, "点名日期格式应为 YYYY-MM-DD")
	case errors.Is(err, service.ErrInvalidAttendanceStatus):
		response.BadRequest(c, 13002, "点名状态只能为 present、absent 或 late")
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 13003, "学生档案不存在")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrNotClassOwner):
		response.Forbidden(c, 12003, "只有任课教师可以操作该班级")
	default:
		response.InternalError(c)
	}
}
