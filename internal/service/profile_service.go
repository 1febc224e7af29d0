package service

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// ── 档案模块业务错误 ──

var (
	ErrProfileNotFound    = errors.New("档案不存在")
	ErrInvalidRole        = errors.New("角色只能为 student 或 teacher")
	ErrSelfDeactivate     = errors.New("不能停用自己的档案")
	ErrNoPermission       = errors.New("无权操作")
	ErrIdentityIncomplete = errors.New("身份信息缺少用户标识")
)

// Identity 认证层给出的调用者身份
type Identity struct {
	UserID string
	Role   string
	Name   string
	Email  string
}

// ProfileService 档案业务接口
type ProfileService interface {
	// EnsureProfile 首次登录时建档；已存在时只刷新 last_active
	EnsureProfile(ctx context.Context, ident Identity, req *dto.EnsureProfileRequest) (*dto.EnsureProfileResponse, error)
	GetProfile(ctx context.Context, id string) (*dto.ProfileResponse, error)
	ListProfiles(ctx context.Context, req *dto.ProfileListRequest) ([]dto.ProfileResponse, int64, error)
	// Deactivate 软停用学生档案，停用后不再参与自动选课
	Deactivate(ctx context.Context, callerID, id string) error
}

type profileService struct {
	repo   *repository.Repository
	coord  *Coordinator
	roster RosterService
	logger *zap.Logger
}

// NewProfileService 创建 ProfileService 实例
func NewProfileService(repo *repository.Repository, coord *Coordinator, roster RosterService, logger *zap.Logger) ProfileService {
	return &profileService{repo: repo, coord: coord, roster: roster, logger: logger}
}

// ────────────────────── EnsureProfile ──────────────────────

func (s *profileService) EnsureProfile(ctx context.Context, ident Identity, req *dto.EnsureProfileRequest) (*dto.EnsureProfileResponse, error) {
	if ident.UserID == "" {
		return nil, ErrIdentityIncomplete
	}
	if req == nil {
		req = &dto.EnsureProfileRequest{}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	now := nowFunc()

	existing, err := s.repo.User.GetByID(ctx, ident.UserID)
	if err == nil {
		if err := s.coord.Submit(ctx, []repository.Mutation{
			repository.Update(repository.UserRef(existing.UserID), map[string]interface{}{
				model.UserColLastActive: now,
			}),
		}); err != nil {
			s.logger.Error("刷新活跃时间失败", zap.String("user_id", existing.UserID), zap.Error(err))
			return nil, err
		}
		existing.LastActive = &now
		return &dto.EnsureProfileResponse{Profile: toProfileResponse(existing)}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询档案失败", zap.String("user_id", ident.UserID), zap.Error(err))
		return nil, err
	}

	role := ident.Role
	if role == "" {
		role = model.RoleStudent
	}
	if role != model.RoleStudent && role != model.RoleTeacher {
		return nil, ErrInvalidRole
	}

	user := &model.User{
		UserID:                ident.UserID,
		Name:                  ident.Name,
		Email:                 ident.Email,
		Role:                  role,
		StudentID:             req.StudentID,
		RollNumber:            req.RollNumber,
		Grade:                 req.Grade,
		Section:               req.Section,
		EnrolledClasses:       pq.StringArray{},
		AssignmentSubmissions: pq.StringArray{},
		AttendanceRecords:     datatypes.JSONSlice[model.AttendanceRecord]{},
		GradeRecords:          datatypes.JSONSlice[model.GradeSnapshot]{},
		IsActive:              true,
		LastActive:            &now,
		VersionedModel:        model.VersionedModel{Version: 1, BaseModel: model.BaseModel{CreatedAt: now, UpdatedAt: now}},
	}
	muts := []repository.Mutation{repository.Set(repository.UserRef(user.UserID), user)}

	if role == model.RoleTeacher {
		subjects := req.Subjects
		if subjects == nil {
			subjects = []string{}
		}
		faculty := &model.Faculty{
			FacultyID:  ident.UserID,
			Name:       ident.Name,
			Email:      ident.Email,
			EmployeeID: req.EmployeeID,
			Department: req.Department,
			Subjects:   pq.StringArray(subjects),
			Classes:    pq.StringArray{},
			Permissions: datatypes.JSONMap{
				"create_class":    true,
				"mark_attendance": true,
				"grade":           true,
			},
			BaseModel: model.BaseModel{CreatedAt: now, UpdatedAt: now},
		}
		muts = append(muts, repository.Set(repository.FacultyRef(faculty.FacultyID), faculty))
	}

	if err := s.coord.Submit(ctx, muts); err != nil {
		s.logger.Error("建档失败", zap.String("user_id", user.UserID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("档案已创建", zap.String("user_id", user.UserID), zap.String("role", role))

	resp := &dto.EnsureProfileResponse{Created: true}

	// 新学生补录到已有的同年级同班别班级，失败不影响建档
	var out Outcome
	if role == model.RoleStudent && user.Grade != "" && user.Section != "" {
		res, err := s.roster.EnrollStudent(ctx, user.UserID)
		if err != nil {
			s.logger.Warn("新学生自动选课失败", zap.String("user_id", user.UserID), zap.Error(err))
			out.Fail("自动选课", err)
		} else {
			resp.Enrolled = res
		}
	}
	resp.Warnings = out.Warnings()

	// 选课可能已更新档案，重新读取
	if fresh, err := s.repo.User.GetByID(ctx, user.UserID); err == nil {
		user = fresh
	}
	resp.Profile = toProfileResponse(user)
	return resp, nil
}

// ────────────────────── GetProfile ──────────────────────

func (s *profileService) GetProfile(ctx context.Context, id string) (*dto.ProfileResponse, error) {
	user, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		s.logger.Error("查询档案失败", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	resp := toProfileResponse(user)
	return &resp, nil
}

// ────────────────────── ListProfiles ──────────────────────

func (s *profileService) ListProfiles(ctx context.Context, req *dto.ProfileListRequest) ([]dto.ProfileResponse, int64, error) {
	users, total, err := s.repo.User.List(ctx, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询档案列表失败", zap.Error(err))
		return nil, 0, err
	}
	list := make([]dto.ProfileResponse, 0, len(users))
	for i := range users {
		list = append(list, toProfileResponse(&users[i]))
	}
	return list, total, nil
}

// ────────────────────── Deactivate ──────────────────────

func (s *profileService) Deactivate(ctx context.Context, callerID, id string) error {
	if callerID == id {
		return ErrSelfDeactivate
	}
	target, err := s.repo.User.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProfileNotFound
		}
		return err
	}
	// 教师档案由认证方维护，这里只能停用学生
	if target.Role != model.RoleStudent {
		return ErrNoPermission
	}

	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Update(repository.UserRef(id), map[string]interface{}{
			model.UserColIsActive: false,
		}),
	}); err != nil {
		s.logger.Error("停用档案失败", zap.String("id", id), zap.Error(err))
		return err
	}

	s.logger.Info("档案已停用", zap.String("id", id), zap.String("by", callerID))
	return nil
}

// ── 内部方法 ──

func toProfileResponse(u *model.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		UserID:                u.UserID,
		Name:                  u.Name,
		Email:                 u.Email,
		Role:                  u.Role,
		StudentID:             u.StudentID,
		RollNumber:            u.RollNumber,
		Grade:                 u.Grade,
		Section:               u.Section,
		EnrolledClasses:       nonNil(u.EnrolledClasses),
		AssignmentSubmissions: nonNil(u.AssignmentSubmissions),
		Stats: dto.ProfileStatsResponse{
			AttendancePercentage: u.Stats.AttendancePercentage,
			CurrentGPA:           u.Stats.CurrentGPA,
			AssignmentsSubmitted: u.Stats.AssignmentsSubmitted,
			CommunitiesJoined:    u.Stats.CommunitiesJoined,
			CertificatesEarned:   u.Stats.CertificatesEarned,
		},
		IsActive:   u.IsActive,
		LastActive: u.LastActive,
		Version:    u.Version,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
