package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// InsightHandler AI 洞察 HTTP 处理器
type InsightHandler struct {
	insightSvc service.InsightService
}

// NewInsightHandler 创建 InsightHandler
func NewInsightHandler(insightSvc service.InsightService) *InsightHandler {
	return &InsightHandler{insightSvc: insightSvc}
}

// PredictGPA 预测 GPA，未指定学生时使用当前用户
// POST /api/v1/insights/predict-gpa
func (h *InsightHandler) PredictGPA(c *gin.Context) {
	var req dto.PredictGPARequest
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &req) {
			return
		}
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	studentID := req.StudentID
	if studentID == "" {
		studentID = userID
	}
	if !canReadStudent(c, studentID) {
		response.Forbidden(c, 17002, "无权查看该学生的预测")
		return
	}

	result, err := h.insightSvc.PredictGPA(c.Request.Context(), studentID)
	if err != nil {
		h.handleInsightError(c, err)
		return
	}

	response.OK(c, result)
}

// StudyAssistant 学习助手问答
// POST /api/v1/insights/study-assistant
func (h *InsightHandler) StudyAssistant(c *gin.Context) {
	var req dto.StudyAssistantRequest
	if !bindJSON(c, &req) {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.insightSvc.StudyAssistant(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleInsightError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *InsightHandler) handleInsightError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 17001, "学生档案不存在")
	default:
		response.InternalError(c)
	}
}
