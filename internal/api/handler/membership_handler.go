package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/service"
	"github.com/shiivaansh/sortED-sub000/pkg/response"
)

// MembershipHandler 社团 / 活动 HTTP 处理器
type MembershipHandler struct {
	membershipSvc service.MembershipService
}

// NewMembershipHandler 创建 MembershipHandler
func NewMembershipHandler(membershipSvc service.MembershipService) *MembershipHandler {
	return &MembershipHandler{membershipSvc: membershipSvc}
}

type membershipOp func(c *gin.Context, id, userID string) (*dto.MembershipResponse, error)

// run 取路径 ID 与当前用户后执行成员变更，notFound 为 ID 非法时的错误码与提示
func (h *MembershipHandler) run(c *gin.Context, notFound int, msg string, op membershipOp) {
	id, ok := pathUUID(c, notFound, msg)
	if !ok {
		return
	}

	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := op(c, id, userID)
	if err != nil {
		h.handleMembershipError(c, err)
		return
	}

	response.OK(c, result)
}

// CreateCommunity 创建社团
// POST /api/v1/communities
func (h *MembershipHandler) CreateCommunity(c *gin.Context) {
	var req dto.CreateCommunityRequest
	if !bindJSON(c, &req) {
		return
	}

	creatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.membershipSvc.CreateCommunity(c.Request.Context(), creatorID, &req)
	if err != nil {
		h.handleMembershipError(c, err)
		return
	}

	response.Created(c, result)
}

// CreateEvent 创建活动
// POST /api/v1/events
func (h *MembershipHandler) CreateEvent(c *gin.Context) {
	var req dto.CreateEventRequest
	if !bindJSON(c, &req) {
		return
	}

	creatorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	result, err := h.membershipSvc.CreateEvent(c.Request.Context(), creatorID, &req)
	if err != nil {
		h.handleMembershipError(c, err)
		return
	}

	response.Created(c, result)
}

// JoinCommunity 加入社团
// POST /api/v1/communities/:id/members
func (h *MembershipHandler) JoinCommunity(c *gin.Context) {
	h.run(c, 16001, "社团不存在", func(c *gin.Context, id, userID string) (*dto.MembershipResponse, error) {
		return h.membershipSvc.JoinCommunity(c.Request.Context(), id, userID)
	})
}

// LeaveCommunity 退出社团
// DELETE /api/v1/communities/:id/members
func (h *MembershipHandler) LeaveCommunity(c *gin.Context) {
	h.run(c, 16001, "社团不存在", func(c *gin.Context, id, userID string) (*dto.MembershipResponse, error) {
		return h.membershipSvc.LeaveCommunity(c.Request.Context(), id, userID)
	})
}

// RegisterEvent 报名活动
// POST /api/v1/events/:id/registrations
func (h *MembershipHandler) RegisterEvent(c *gin.Context) {
	h.run(c, 16002, "活动不存在", func(c *gin.Context, id, userID string) (*dto.MembershipResponse, error) {
		return h.membershipSvc.RegisterEvent(c.Request.Context(), id, userID)
	})
}

// UnregisterEvent 取消报名
// DELETE /api/v1/events/:id/registrations
func (h *MembershipHandler) UnregisterEvent(c *gin.Context) {
	h.run(c, 16002, "活动不存在", func(c *gin.Context, id, userID string) (*dto.MembershipResponse, error) {
		return h.membershipSvc.UnregisterEvent(c.Request.Context(), id, userID)
	})
}

// IssueCertificate 签发活动证书
// POST /api/v1/events/:id/certificates
func (h *MembershipHandler) IssueCertificate(c *gin.Context) {
	id, ok := pathUUID(c, 16002, "活动不存在")
	if !ok {
		return
	}

	var req dto.IssueCertificateRequest
	if !bindJSON(c, &req) {
		return
	}

	cert, err := h.membershipSvc.IssueCertificate(c.Request.Context(), id, &req)
	if err != nil {
		h.handleMembershipError(c, err)
		return
	}

	response.Created(c, cert)
}

// ListCertificates 用户已获得的证书
// GET /api/v1/profiles/:id/certificates
func (h *MembershipHandler) ListCertificates(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.BadRequest(c, 10001, "用户ID不能为空")
		return
	}
	if !canReadStudent(c, userID) {
		response.Forbidden(c, 16011, "无权查看该用户的证书")
		return
	}

	certs, err := h.membershipSvc.ListCertificates(c.Request.Context(), userID)
	if err != nil {
		h.handleMembershipError(c, err)
		return
	}

	response.OK(c, certs)
}

// handleMembershipError 统一处理社团 / 活动模块业务错误
func (h *MembershipHandler) handleMembershipError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrCommunityNotFound):
		response.NotFound(c, 16001, "社团不存在")
	case errors.Is(err, service.ErrEventNotFound):
		response.NotFound(c, 16002, "活动不存在")
	case errors.Is(err, service.ErrProfileNotFound):
		response.NotFound(c, 11001, "档案不存在")
	case errors.Is(err, service.ErrAlreadyMember):
		response.Conflict(c, 16003, "已是社团成员")
	case errors.Is(err, service.ErrNotMember):
		response.BadRequest(c, 16004, "不是社团成员")
	case errors.Is(err, service.ErrAlreadyRegistered):
		response.Conflict(c, 16005, "已报名该活动")
	case errors.Is(err, service.ErrNotRegistered):
		response.BadRequest(c, 16006, "未报名该活动")
	case errors.Is(err, service.ErrEventFull):
		response.Conflict(c, 16007, "活动名额已满")
	case errors.Is(err, service.ErrCertificateExists):
		response.Conflict(c, 16008, "该活动已为此用户签发证书")
	case errors.Is(err, service.ErrNotEventParticipant):
		response.BadRequest(c, 16009, "只能为已报名的用户签发证书")
	case errors.Is(err, service.ErrInvalidEventTime):
		response.BadRequest(c, 16010, "活动开始时间不能为空")
	default:
		response.InternalError(c)
	}
}
