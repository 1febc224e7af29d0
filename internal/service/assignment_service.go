package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// ── 作业模块业务错误 ──

var (
	ErrAssignmentNotFound = errors.New("作业不存在")
	ErrSubmissionNotFound = errors.New("提交记录不存在")
	ErrNotEnrolled        = errors.New("学生不在该班级花名册中")
	ErrAlreadyGraded      = errors.New("已批改的提交不可修改")
	ErrInvalidGrade       = errors.New("分数必须在 0 与满分之间")
	ErrNotAssignmentOwner = errors.New("只有布置作业的教师可以批改")
	ErrInvalidDueDate     = errors.New("截止时间不能为空")
	ErrInvalidMaxMarks    = errors.New("满分必须大于 0")
)

// AssignmentService 作业与提交业务接口
type AssignmentService interface {
	CreateAssignment(ctx context.Context, teacherID string, req *dto.CreateAssignmentRequest) (*dto.AssignmentResponse, error)
	GetAssignment(ctx context.Context, id string) (*dto.AssignmentResponse, error)
	// ListClassAssignments 班级的作业列表，仅任课教师与花名册中的学生可查看
	ListClassAssignments(ctx context.Context, viewerID, classID string) ([]dto.AssignmentResponse, error)
	// SubmitAssignment 首次提交同批次更新作业计数、提交率与学生档案；未批改前可重新提交
	SubmitAssignment(ctx context.Context, assignmentID, studentID string, req *dto.SubmitAssignmentRequest) (*dto.SubmitAssignmentResponse, error)
	// GradeSubmission 批改后扫描全部提交重算平均分（附带步骤）
	GradeSubmission(ctx context.Context, teacherID, assignmentID, studentID string, req *dto.GradeSubmissionRequest) (*dto.GradeSubmissionResponse, error)
	// RefreshStats 扫描提交记录重写作业的全部统计
	RefreshStats(ctx context.Context, teacherID, assignmentID string) (*dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo            *repository.Repository
	coord           *Coordinator
	includeUngraded bool
	logger          *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例
func NewAssignmentService(cfg *config.AssignmentConfig, repo *repository.Repository, coord *Coordinator, logger *zap.Logger) AssignmentService {
	return &assignmentService{
		repo:            repo,
		coord:           coord,
		includeUngraded: cfg.AverageIncludesUngraded,
		logger:          logger,
	}
}

// ────────────────────── CreateAssignment ──────────────────────

func (s *assignmentService) CreateAssignment(ctx context.Context, teacherID string, req *dto.CreateAssignmentRequest) (*dto.AssignmentResponse, error) {
	if req.DueDate.IsZero() {
		return nil, ErrInvalidDueDate
	}
	if req.MaxMarks <= 0 {
		return nil, ErrInvalidMaxMarks
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	class, err := s.repo.Class.GetByID(ctx, req.ClassID)
	if err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}
	if class.TeacherID != teacherID {
		return nil, ErrNotClassOwner
	}

	now := nowFunc()
	a := &model.Assignment{
		AssignmentID:   uuid.New().String(),
		TeacherID:      teacherID,
		ClassID:        class.ClassID,
		Title:          req.Title,
		Description:    req.Description,
		Subject:        req.Subject,
		DueDate:        req.DueDate,
		MaxMarks:       req.MaxMarks,
		VersionedModel: model.VersionedModel{Version: 1, BaseModel: model.BaseModel{CreatedAt: now, UpdatedAt: now}},
	}

	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Set(repository.AssignmentRef(a.AssignmentID), a),
	}); err != nil {
		s.logger.Error("布置作业失败", zap.String("class_id", class.ClassID), zap.Error(err))
		return nil, err
	}

	resp := toAssignmentResponse(a)
	return &resp, nil
}

// ────────────────────── GetAssignment ──────────────────────

func (s *assignmentService) GetAssignment(ctx context.Context, id string) (*dto.AssignmentResponse, error) {
	a, err := s.repo.Assignment.GetByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err, ErrAssignmentNotFound)
	}
	resp := toAssignmentResponse(a)
	return &resp, nil
}

func (s *assignmentService) ListClassAssignments(ctx context.Context, viewerID, classID string) ([]dto.AssignmentResponse, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}
	if class.TeacherID != viewerID && !class.HasStudent(viewerID) {
		return nil, ErrNoPermission
	}

	list, err := s.repo.Assignment.ListByClass(ctx, classID)
	if err != nil {
		s.logger.Error("查询班级作业失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.AssignmentResponse, 0, len(list))
	for i := range list {
		out = append(out, toAssignmentResponse(&list[i]))
	}
	return out, nil
}

// ────────────────────── SubmitAssignment ──────────────────────

func (s *assignmentService) SubmitAssignment(ctx context.Context, assignmentID, studentID string, req *dto.SubmitAssignmentRequest) (*dto.SubmitAssignmentResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	a, err := s.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, mapNotFound(err, ErrAssignmentNotFound)
	}
	class, err := s.repo.Class.GetByID(ctx, a.ClassID)
	if err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}
	if !class.HasStudent(studentID) {
		return nil, ErrNotEnrolled
	}
	if _, err := s.repo.User.GetByID(ctx, studentID); err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}

	existing, err := s.repo.Submission.Get(ctx, assignmentID, studentID)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	if existing != nil && existing.Status == model.SubmissionGraded {
		return nil, ErrAlreadyGraded
	}

	now := nowFunc()
	sub := &model.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Content:      req.Content,
		SubmittedAt:  now,
		Status:       model.SubmissionSubmitted,
		BaseModel:    model.BaseModel{CreatedAt: now, UpdatedAt: now},
	}
	ref := repository.SubmissionRef(assignmentID, studentID)

	// 未批改的重新提交只覆盖内容，计数不变
	if existing != nil {
		sub.CreatedAt = existing.CreatedAt
		if err := s.coord.Submit(ctx, []repository.Mutation{repository.Set(ref, sub)}); err != nil {
			s.logger.Error("重新提交作业失败", zap.String("assignment_id", assignmentID), zap.String("student_id", studentID), zap.Error(err))
			return nil, err
		}
		return &dto.SubmitAssignmentResponse{
			Submission:     toSubmissionResponse(sub),
			Resubmitted:    true,
			SubmissionRate: a.Stats.SubmissionRate,
		}, nil
	}

	subs, err := s.repo.Submission.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	rate := SubmissionRate(len(subs)+1, len(class.Students))

	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Set(ref, sub),
		repository.Increment(repository.AssignmentRef(assignmentID), model.AssignmentColTotalSubmissions, 1),
		repository.Update(repository.AssignmentRef(assignmentID), map[string]interface{}{
			model.AssignmentColSubmissionRate: rate,
		}),
		repository.AddToSet(repository.UserRef(studentID), model.UserColAssignmentSubmissions, assignmentID),
		repository.Increment(repository.UserRef(studentID), model.UserColAssignmentsSubmitted, 1),
	}); err != nil {
		s.logger.Error("提交作业失败", zap.String("assignment_id", assignmentID), zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	return &dto.SubmitAssignmentResponse{
		Submission:     toSubmissionResponse(sub),
		SubmissionRate: rate,
	}, nil
}

// ────────────────────── GradeSubmission ──────────────────────

func (s *assignmentService) GradeSubmission(ctx context.Context, teacherID, assignmentID, studentID string, req *dto.GradeSubmissionRequest) (*dto.GradeSubmissionResponse, error) {
	if req.Grade == nil {
		return nil, ErrInvalidGrade
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	a, err := s.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, mapNotFound(err, ErrAssignmentNotFound)
	}
	if a.TeacherID != teacherID {
		return nil, ErrNotAssignmentOwner
	}
	if *req.Grade < 0 || *req.Grade > a.MaxMarks {
		return nil, ErrInvalidGrade
	}

	sub, err := s.repo.Submission.Get(ctx, assignmentID, studentID)
	if err != nil {
		return nil, mapNotFound(err, ErrSubmissionNotFound)
	}

	now := nowFunc()
	grade := *req.Grade
	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Update(repository.SubmissionRef(assignmentID, studentID), map[string]interface{}{
			model.SubmissionColGrade:    grade,
			model.SubmissionColFeedback: req.Feedback,
			model.SubmissionColStatus:   model.SubmissionGraded,
			model.SubmissionColGradedAt: now,
			model.SubmissionColGradedBy: teacherID,
		}),
	}); err != nil {
		s.logger.Error("批改失败", zap.String("assignment_id", assignmentID), zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	sub.Grade = &grade
	sub.Feedback = req.Feedback
	sub.Status = model.SubmissionGraded
	sub.GradedAt = &now
	sub.GradedBy = &teacherID

	resp := &dto.GradeSubmissionResponse{Submission: toSubmissionResponse(sub)}

	var out Outcome
	avg, err := s.recomputeAverage(ctx, assignmentID)
	if err != nil {
		s.logger.Warn("重算平均分失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		out.Fail("重算平均分", err)
	} else {
		resp.AverageGrade = &avg
	}
	resp.Warnings = out.Warnings()
	return resp, nil
}

// ────────────────────── RefreshStats ──────────────────────

func (s *assignmentService) RefreshStats(ctx context.Context, teacherID, assignmentID string) (*dto.AssignmentResponse, error) {
	a, err := s.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, mapNotFound(err, ErrAssignmentNotFound)
	}
	if a.TeacherID != teacherID {
		return nil, ErrNotAssignmentOwner
	}
	class, err := s.repo.Class.GetByID(ctx, a.ClassID)
	if err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}
	subs, err := s.repo.Submission.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	a.Stats = model.AssignmentStats{
		TotalSubmissions: len(subs),
		AverageGrade:     AverageGrade(subs, s.includeUngraded),
		SubmissionRate:   SubmissionRate(len(subs), len(class.Students)),
	}
	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Update(repository.AssignmentRef(assignmentID), map[string]interface{}{
			model.AssignmentColTotalSubmissions: a.Stats.TotalSubmissions,
			model.AssignmentColAverageGrade:     a.Stats.AverageGrade,
			model.AssignmentColSubmissionRate:   a.Stats.SubmissionRate,
		}),
	}); err != nil {
		s.logger.Error("刷新作业统计失败", zap.String("assignment_id", assignmentID), zap.Error(err))
		return nil, err
	}
	a.Version++

	resp := toAssignmentResponse(a)
	return &resp, nil
}

// ── 内部方法 ──

func (s *assignmentService) recomputeAverage(ctx context.Context, assignmentID string) (float64, error) {
	subs, err := s.repo.Submission.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return 0, err
	}
	avg := AverageGrade(subs, s.includeUngraded)
	err = s.coord.Submit(ctx, []repository.Mutation{
		repository.Update(repository.AssignmentRef(assignmentID), map[string]interface{}{
			model.AssignmentColAverageGrade: avg,
		}),
	})
	return avg, err
}

func toAssignmentResponse(a *model.Assignment) dto.AssignmentResponse {
	return dto.AssignmentResponse{
		AssignmentID: a.AssignmentID,
		ClassID:      a.ClassID,
		TeacherID:    a.TeacherID,
		Title:        a.Title,
		Description:  a.Description,
		Subject:      a.Subject,
		DueDate:      a.DueDate,
		MaxMarks:     a.MaxMarks,
		Stats: dto.AssignmentStatsResponse{
			TotalSubmissions: a.Stats.TotalSubmissions,
			AverageGrade:     a.Stats.AverageGrade,
			SubmissionRate:   a.Stats.SubmissionRate,
		},
		Version: a.Version,
	}
}

func toSubmissionResponse(s *model.Submission) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		AssignmentID: s.AssignmentID,
		StudentID:    s.StudentID,
		Content:      s.Content,
		SubmittedAt:  s.SubmittedAt,
		Grade:        s.Grade,
		Feedback:     s.Feedback,
		Status:       s.Status,
		GradedAt:     s.GradedAt,
	}
}
