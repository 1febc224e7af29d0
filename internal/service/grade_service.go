package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// GradeService 成绩录入与 GPA 聚合接口
type GradeService interface {
	// RecordGrade 写入成绩记录，同批次追加档案成绩副本并重算 GPA
	RecordGrade(ctx context.Context, recordedBy string, req *dto.RecordGradeRequest) (*dto.RecordGradeResponse, error)
	// ListStudentGrades 成绩历史，平均分与 GPA 按成绩表重新计算
	ListStudentGrades(ctx context.Context, studentID string) (*dto.StudentGradesResponse, error)
}

type gradeService struct {
	repo     *repository.Repository
	profiles *profileWriter
	logger   *zap.Logger
}

// NewGradeService 创建 GradeService 实例
func NewGradeService(cfg *config.ConsistencyConfig, repo *repository.Repository, coord *Coordinator, logger *zap.Logger) GradeService {
	return &gradeService{
		repo: repo,
		profiles: &profileWriter{
			repo:       repo,
			coord:      coord,
			optimistic: cfg.OptimisticAttendance,
			maxRetries: cfg.MaxRetries,
			logger:     logger,
		},
		logger: logger,
	}
}

func (s *gradeService) RecordGrade(ctx context.Context, recordedBy string, req *dto.RecordGradeRequest) (*dto.RecordGradeResponse, error) {
	if req.Marks == nil || *req.Marks < 0 || req.MaxMarks <= 0 || *req.Marks > req.MaxMarks {
		return nil, ErrInvalidGrade
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	record := &model.GradeRecord{
		GradeID:    uuid.New().String(),
		StudentID:  req.StudentID,
		Subject:    req.Subject,
		Marks:      *req.Marks,
		MaxMarks:   req.MaxMarks,
		Semester:   req.Semester,
		ExamType:   req.ExamType,
		RecordedBy: recordedBy,
		RecordedAt: nowFunc(),
	}

	resp := &dto.RecordGradeResponse{GradeID: record.GradeID, StudentID: req.StudentID}
	_, _, err := s.profiles.Write(ctx, req.StudentID, func(u *model.User) ([]repository.Mutation, error) {
		grades := make([]model.GradeSnapshot, 0, len(u.GradeRecords)+1)
		grades = append(grades, u.GradeRecords...)
		grades = append(grades, model.GradeSnapshot{
			GradeID:  record.GradeID,
			Subject:  record.Subject,
			Marks:    record.Marks,
			MaxMarks: record.MaxMarks,
			Semester: record.Semester,
			ExamType: record.ExamType,
		})
		resp.AveragePercentage = AveragePercentage(grades)
		resp.CurrentGPA = CurrentGPA(grades)

		return []repository.Mutation{
			repository.Set(repository.GradeRef(record.GradeID), record),
			repository.Update(repository.UserRef(u.UserID), map[string]interface{}{
				model.UserColGradeRecords: datatypes.JSONSlice[model.GradeSnapshot](grades),
				model.UserColCurrentGPA:   resp.CurrentGPA,
			}),
		}, nil
	})
	if err != nil {
		s.logger.Error("录入成绩失败", zap.String("student_id", req.StudentID), zap.Error(err))
		return nil, err
	}

	return resp, nil
}

func (s *gradeService) ListStudentGrades(ctx context.Context, studentID string) (*dto.StudentGradesResponse, error) {
	if _, err := s.repo.User.GetByID(ctx, studentID); err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}

	records, err := s.repo.Grade.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询成绩失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}

	resp := &dto.StudentGradesResponse{
		StudentID: studentID,
		Grades:    make([]dto.GradeRecordResponse, 0, len(records)),
	}
	snapshots := make([]model.GradeSnapshot, 0, len(records))
	for _, g := range records {
		resp.Grades = append(resp.Grades, dto.GradeRecordResponse{
			GradeID:    g.GradeID,
			Subject:    g.Subject,
			Marks:      g.Marks,
			MaxMarks:   g.MaxMarks,
			Semester:   g.Semester,
			ExamType:   g.ExamType,
			RecordedBy: g.RecordedBy,
			RecordedAt: g.RecordedAt,
		})
		snapshots = append(snapshots, model.GradeSnapshot{Marks: g.Marks, MaxMarks: g.MaxMarks})
	}
	resp.AveragePercentage = AveragePercentage(snapshots)
	resp.CurrentGPA = CurrentGPA(snapshots)
	return resp, nil
}
