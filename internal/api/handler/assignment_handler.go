package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// AssignmentHandler 作业模块 HTTP 处理器
type AssignmentHandler struct {
	assignmentSvc service.AssignmentService
}

// NewAssignmentHandler 创建 AssignmentHandler
func NewAssignmentHandler(assignmentSvc service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentSvc: assignmentSvc}
}

// CreateAssignment 布置作业
// POST /api/v1/assignments
func (h *AssignmentHandler) CreateAssignment(c *gin.Context) {
	var req dto.CreateAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.assignmentSvc.CreateAssignment(c.Request.Context(), teacherID, &req)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.Created(c, result)
}

// GetAssignment 获取作业详情
// GET /api/v1/assignments/:id
func (h *AssignmentHandler) GetAssignment(c *gin.Context) {
	id, ok := pathUUID(c, 14001, "作业不存在")
	if !ok {
		return
	}

	result, err := h.assignmentSvc.GetAssignment(c.Request.Context(), id)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// ListClassAssignments 班级作业列表，仅任课教师与在册学生可见
// GET /api/v1/classes/:id/assignments
func (h *AssignmentHandler) ListClassAssignments(c *gin.Context) {
	classID, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}

	viewerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.assignmentSvc.ListClassAssignments(c.Request.Context(), viewerID, classID)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// SubmitAssignment 学生提交作业
// POST /api/v1/assignments/:id/submissions
func (h *AssignmentHandler) SubmitAssignment(c *gin.Context) {
	id, ok := pathUUID(c, 14001, "作业不存在")
	if !ok {
		return
	}

	var req dto.SubmitAssignmentRequest
	if !bindJSON(c, &req) {
		return
	}

	studentID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.assignmentSvc.SubmitAssignment(c.Request.Context(), id, studentID, &req)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// GradeSubmission 批改作业
// PUT /api/v1/assignments/:id/submissions/:studentId/grade
func (h *AssignmentHandler) GradeSubmission(c *gin.Context) {
	id, ok := pathUUID(c, 14001, "作业不存在")
	if !ok {
		return
	}
	studentID := c.Param("studentId")
	if studentID == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}

	var req dto.GradeSubmissionRequest
	if !bindJSON(c, &req) {
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.assignmentSvc.GradeSubmission(c.Request.Context(), teacherID, id, studentID, &req)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// RefreshStats 重算作业统计
// POST /api/v1/assignments/:id/stats/refresh
func (h *AssignmentHandler) RefreshStats(c *gin.Context) {
	id, ok := pathUUID(c, 14001, "作业不存在")
	if !ok {
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.assignmentSvc.RefreshStats(c.Request.Context(), teacherID, id)
	if err != nil {
		h.handleAssignmentError(c, err)
		return
	}

	response.OK(c, result)
}

// handleAssignmentError 统一处理作业模块业务错误
func (h *AssignmentHandler) handleAssignmentError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		response.NotFound(c, 14001, "作业不存在")
	case errors.Is(err, service.ErrSubmissionNotFound):
		response.NotFound(c, 14002, "提交记录不存在")
	case errors.Is(err, service.ErrNotEnrolled):
		response.Forbidden(c, 14003, "学生不在该班级花名册中")
	case errors.Is(err, service.ErrAlreadyGraded):
		response.Conflict(c, 14004, "已批改的提交不可修改")
	case errors.Is(err, service.ErrInvalidGrade):
		response.BadRequest(c, 14005, "分数必须在 0 与满分之间")
	case errors.Is(err, service.ErrNotAssignmentOwner):
		response.Forbidden(c, 14006, "只有布置作业的教师可以操作")
	case errors.Is(err, service.ErrInvalidDueDate):
		response.BadRequest(c, 14007, "截止时间不能为空")
	case errors.Is(err, service.ErrInvalidMaxMarks):
		response.BadRequest(c, 14008, "满分必须大于 0")
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 11001, "档案不存在")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrNotClassOwner):
		response.Forbidden(c, 12003, "只有任课教师可以操作该班级")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 14009, "无权查看该班级的作业")
	default:
		response.InternalError(c)
	}
}
