package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// GradeHandler 成绩模块 HTTP 处理器
type GradeHandler struct {
	gradeSvc service.GradeService
}

// NewGradeHandler 创建 GradeHandler
func NewGradeHandler(gradeSvc service.GradeService) *GradeHandler {
	return &GradeHandler{gradeSvc: gradeSvc}
}

// RecordGrade 录入成绩
// POST /api/v1/grades
func (h *GradeHandler) RecordGrade(c *gin.Context) {
	var req dto.RecordGradeRequest
	if !bindJSON(c, &req) {
		return
	}

	recordedBy, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.gradeSvc.RecordGrade(c.Request.Context(), recordedBy, &req)
	if err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.Created(c, result)
}

// ListStudentGrades 学生成绩明细与平均值
// GET /api/v1/students/:id/grades
func (h *GradeHandler) ListStudentGrades(c *gin.Context) {
	studentID := c.Param("id")
	if studentID == "" {
		response.BadRequest(c, 10001, "学生ID不能为空")
		return
	}
	if !canReadStudent(c, studentID) {
		response.Forbidden(c, 15003, "无权查看该学生的成绩")
		return
	}

	result, err := h.gradeSvc.ListStudentGrades(c.Request.Context(), studentID)
	if err != nil {
		h.handleGradeError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *GradeHandler) handleGradeError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrInvalidGrade):
		response.BadRequest(c, 15001, "分数必须在 0 与满分之间")
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 15002, "学生档案不存在")
	default:
		response.InternalError(c)
	}
}
