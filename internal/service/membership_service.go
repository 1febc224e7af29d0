package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// ── 社团 / 活动模块业务错误 ──

var (
	ErrCommunityNotFound   = errors.New("社团不存在")
	ErrEventNotFound       = errors.New("活动不存在")
	ErrAlreadyMember       = errors.New("已是社团成员")
	ErrNotMember           = errors.New("不是社团成员")
	ErrAlreadyRegistered   = errors.New("已报名该活动")
	ErrNotRegistered       = errors.New("未报名该活动")
	ErrEventFull           = errors.New("活动名额已满")
	ErrCertificateExists   = errors.New("该活动已为此用户签发证书")
	ErrNotEventParticipant = errors.New("只能为已报名的用户签发证书")
	ErrInvalidEventTime    = errors.New("活动开始时间不能为空")
)

// MembershipService 社团成员与活动报名接口
//
// 成员集合与计数器总在同一批次中成对写入；调用前先检查成员关系，
// 保证重复加入不会让计数器多加。
type MembershipService interface {
	CreateCommunity(ctx context.Context, creatorID string, req *dto.CreateCommunityRequest) (*dto.CommunityResponse, error)
	CreateEvent(ctx context.Context, creatorID string, req *dto.CreateEventRequest) (*dto.EventResponse, error)
	JoinCommunity(ctx context.Context, communityID, userID string) (*dto.MembershipResponse, error)
	LeaveCommunity(ctx context.Context, communityID, userID string) (*dto.MembershipResponse, error)
	RegisterEvent(ctx context.Context, eventID, userID string) (*dto.MembershipResponse, error)
	UnregisterEvent(ctx context.Context, eventID, userID string) (*dto.MembershipResponse, error)
	IssueCertificate(ctx context.Context, eventID string, req *dto.IssueCertificateRequest) (*dto.CertificateResponse, error)
	// ListCertificates 用户已获得的证书，最新的在前
	ListCertificates(ctx context.Context, userID string) ([]dto.CertificateResponse, error)
	// ReconcileCounters 将与集合大小不一致的计数器改写为集合大小
	// 读取只用于发现偏差，写入时由存储按当前集合重新计数
	ReconcileCounters(ctx context.Context) (*dto.ReconcileResult, error)
}

type membershipService struct {
	repo   *repository.Repository
	coord  *Coordinator
	logger *zap.Logger
}

// NewMembershipService 创建 MembershipService 实例
func NewMembershipService(repo *repository.Repository, coord *Coordinator, logger *zap.Logger) MembershipService {
	return &membershipService{repo: repo, coord: coord, logger: logger}
}

// ────────────────────── 创建 ──────────────────────

// 新建的社团 / 活动成员集合为空、计数为 0，之后只经由成对写入变化
func (s *membershipService) CreateCommunity(ctx context.Context, creatorID string, req *dto.CreateCommunityRequest) (*dto.CommunityResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := nowFunc()
	c := &model.Community{
		CommunityID: uuid.New().String(),
		Name:        req.Name,
		Category:    req.Category,
		Members:     pq.StringArray{},
		CreatedBy:   creatorID,
		BaseModel:   model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Set(repository.CommunityRef(c.CommunityID), c),
	}); err != nil {
		s.logger.Error("创建社团失败", zap.String("created_by", creatorID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("社团已创建", zap.String("community_id", c.CommunityID), zap.String("name", c.Name))
	return &dto.CommunityResponse{
		CommunityID: c.CommunityID,
		Name:        c.Name,
		Category:    c.Category,
		Members:     []string{},
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
	}, nil
}

func (s *membershipService) CreateEvent(ctx context.Context, creatorID string, req *dto.CreateEventRequest) (*dto.EventResponse, error) {
	if req.StartsAt.IsZero() {
		return nil, ErrInvalidEventTime
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := nowFunc()
	e := &model.Event{
		EventID:         uuid.New().String(),
		Title:           req.Title,
		StartsAt:        req.StartsAt,
		MaxParticipants: req.MaxParticipants,
		Registrations:   pq.StringArray{},
		CreatedBy:       creatorID,
		BaseModel:       model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Set(repository.EventRef(e.EventID), e),
	}); err != nil {
		s.logger.Error("创建活动失败", zap.String("created_by", creatorID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("活动已创建", zap.String("event_id", e.EventID), zap.Int("max_participants", e.MaxParticipants))
	return &dto.EventResponse{
		EventID:         e.EventID,
		Title:           e.Title,
		StartsAt:        e.StartsAt,
		MaxParticipants: e.MaxParticipants,
		Registrations:   []string{},
		CreatedBy:       e.CreatedBy,
	}, nil
}

// ────────────────────── 社团 ──────────────────────

func (s *membershipService) JoinCommunity(ctx context.Context, communityID, userID string) (*dto.MembershipResponse, error) {
	c, err := s.repo.Community.GetByID(ctx, communityID)
	if err != nil {
		return nil, mapNotFound(err, ErrCommunityNotFound)
	}
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}
	if c.HasMember(userID) {
		return nil, ErrAlreadyMember
	}

	muts, err := MembershipChange(repository.CommunityRef(communityID), userID, 1)
	if err != nil {
		return nil, err
	}
	muts = append(muts, repository.Increment(repository.UserRef(userID), model.UserColCommunitiesJoined, 1))

	if err := s.coord.Submit(ctx, muts); err != nil {
		s.logger.Error("加入社团失败", zap.String("community_id", communityID), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &dto.MembershipResponse{ID: communityID, UserID: userID, IsMember: true, Count: c.MemberCount + 1}, nil
}

func (s *membershipService) LeaveCommunity(ctx context.Context, communityID, userID string) (*dto.MembershipResponse, error) {
	c, err := s.repo.Community.GetByID(ctx, communityID)
	if err != nil {
		return nil, mapNotFound(err, ErrCommunityNotFound)
	}
	if !c.HasMember(userID) {
		return nil, ErrNotMember
	}

	muts, err := MembershipChange(repository.CommunityRef(communityID), userID, -1)
	if err != nil {
		return nil, err
	}
	muts = append(muts, repository.Increment(repository.UserRef(userID), model.UserColCommunitiesJoined, -1))

	if err := s.coord.Submit(ctx, muts); err != nil {
		s.logger.Error("退出社团失败", zap.String("community_id", communityID), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &dto.MembershipResponse{ID: communityID, UserID: userID, IsMember: false, Count: c.MemberCount - 1}, nil
}

// ────────────────────── 活动 ──────────────────────

func (s *membershipService) RegisterEvent(ctx context.Context, eventID, userID string) (*dto.MembershipResponse, error) {
	e, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err, ErrEventNotFound)
	}
	if _, err := s.repo.User.GetByID(ctx, userID); err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}
	if e.IsRegistered(userID) {
		return nil, ErrAlreadyRegistered
	}
	if e.IsFull() {
		return nil, ErrEventFull
	}

	muts, err := MembershipChange(repository.EventRef(eventID), userID, 1)
	if err != nil {
		return nil, err
	}
	if err := s.coord.Submit(ctx, muts); err != nil {
		s.logger.Error("活动报名失败", zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &dto.MembershipResponse{ID: eventID, UserID: userID, IsMember: true, Count: e.CurrentParticipants + 1}, nil
}

func (s *membershipService) UnregisterEvent(ctx context.Context, eventID, userID string) (*dto.MembershipResponse, error) {
	e, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err, ErrEventNotFound)
	}
	if !e.IsRegistered(userID) {
		return nil, ErrNotRegistered
	}

	muts, err := MembershipChange(repository.EventRef(eventID), userID, -1)
	if err != nil {
		return nil, err
	}
	if err := s.coord.Submit(ctx, muts); err != nil {
		s.logger.Error("取消报名失败", zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return &dto.MembershipResponse{ID: eventID, UserID: userID, IsMember: false, Count: e.CurrentParticipants - 1}, nil
}

// ────────────────────── IssueCertificate ──────────────────────

func (s *membershipService) IssueCertificate(ctx context.Context, eventID string, req *dto.IssueCertificateRequest) (*dto.CertificateResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	e, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		return nil, mapNotFound(err, ErrEventNotFound)
	}
	if !e.IsRegistered(req.UserID) {
		return nil, ErrNotEventParticipant
	}
	if _, err := s.repo.Certificate.GetByEventAndUser(ctx, eventID, req.UserID); err == nil {
		return nil, ErrCertificateExists
	} else if !isNotFound(err) {
		return nil, err
	}

	certType := req.Type
	if certType == "" {
		certType = "participation"
	}
	cert := &model.Certificate{
		CertificateID: uuid.New().String(),
		EventID:       eventID,
		UserID:        req.UserID,
		Type:          certType,
		IssuedAt:      nowFunc(),
	}
	cert.Code = certificateCode(cert)

	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Set(repository.CertificateRef(cert.CertificateID), cert),
		repository.Increment(repository.EventRef(eventID), model.EventColCertificatesIssued, 1),
		repository.Increment(repository.UserRef(req.UserID), model.UserColCertificatesEarned, 1),
	}); err != nil {
		s.logger.Error("签发证书失败", zap.String("event_id", eventID), zap.String("user_id", req.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("证书已签发", zap.String("code", cert.Code), zap.String("user_id", req.UserID))
	resp := toCertificateResponse(cert)
	return &resp, nil
}

func (s *membershipService) ListCertificates(ctx context.Context, userID string) ([]dto.CertificateResponse, error) {
	certs, err := s.repo.Certificate.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("查询证书失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.CertificateResponse, 0, len(certs))
	for i := range certs {
		out = append(out, toCertificateResponse(&certs[i]))
	}
	return out, nil
}

// ────────────────────── ReconcileCounters ──────────────────────

func (s *membershipService) ReconcileCounters(ctx context.Context) (*dto.ReconcileResult, error) {
	communities, err := s.repo.Community.List(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.Event.List(ctx)
	if err != nil {
		return nil, err
	}

	result := &dto.ReconcileResult{Checked: len(communities) + len(events)}
	var muts []repository.Mutation
	for _, c := range communities {
		if n := len(c.Members); c.MemberCount != n {
			s.logger.Warn("社团成员计数不一致，已修正",
				zap.String("community_id", c.CommunityID), zap.Int("counter", c.MemberCount), zap.Int("members", n))
			muts = append(muts, repository.Recount(repository.CommunityRef(c.CommunityID),
				model.CommunityColMemberCount, model.CommunityColMembers))
		}
	}
	for _, e := range events {
		if n := len(e.Registrations); e.CurrentParticipants != n {
			s.logger.Warn("活动报名计数不一致，已修正",
				zap.String("event_id", e.EventID), zap.Int("counter", e.CurrentParticipants), zap.Int("registrations", n))
			muts = append(muts, repository.Recount(repository.EventRef(e.EventID),
				model.EventColCurrentParticipants, model.EventColRegistrations))
		}
	}

	groups := make([][]repository.Mutation, 0, len(muts))
	for _, m := range muts {
		groups = append(groups, []repository.Mutation{m})
	}
	applied, _, err := s.coord.SubmitGroups(ctx, groups)
	result.Repaired = applied
	return result, err
}

func toCertificateResponse(c *model.Certificate) dto.CertificateResponse {
	return dto.CertificateResponse{
		CertificateID: c.CertificateID,
		EventID:       c.EventID,
		UserID:        c.UserID,
		Type:          c.Type,
		Code:          c.Code,
		IssuedAt:      c.IssuedAt,
	}
}

// certificateCode 可读证书编号，形如 CERT-1A2B3C4D-5E6F7A8B
func certificateCode(c *model.Certificate) string {
	eventPart := strings.ToUpper(strings.ReplaceAll(c.EventID, "-", ""))
	certPart := strings.ToUpper(strings.ReplaceAll(c.CertificateID, "-", ""))
	return fmt.Sprintf("CERT-%s-%s", truncate(eventPart, 8), truncate(certPart, 8))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
