package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportClassAttendance 导出班级点名表
// GET /api/v1/classes/:id/attendance/export
func (h *ExportHandler) ExportClassAttendance(c *gin.Context) {
	classID, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}

	teacherID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportClassAttendance(c.Request.Context(), teacherID, classID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// ExportClassSchedule 导出班级周课表（日历订阅）
// GET /api/v1/classes/:id/schedule.ics
func (h *ExportHandler) ExportClassSchedule(c *gin.Context) {
	classID, ok := pathUUID(c, 12001, "班级不存在")
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportClassSchedule(c.Request.Context(), userID, classID)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	c.Header("Content-Disposition", "inline; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoAttendance):
		response.NotFound(c, 18001, "该班级暂无点名记录")
	case errors.Is(err, service.ErrExportNoSchedule):
		response.NotFound(c, 18002, "该班级未设置上课时间")
	case errors.Is(err, service.ErrExportNoPermission):
		response.Forbidden(c, 18003, "仅任课教师和本班学生可以订阅课表")
	case errors.Is(err, service.ErrClassNotFound):
		response.NotFound(c, 12001, "班级不存在")
	case errors.Is(err, service.ErrNotClassOwner):
		response.Forbidden(c, 12003, "只有任课教师可以导出该班级")
	default:
		response.InternalError(c)
	}
}
