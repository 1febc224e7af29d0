package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/internal/model"
)

// AssignmentRepository 作业读取接口
type AssignmentRepository interface {
	GetByID(ctx context.Context, id string) (*model.Assignment, error)
	ListByClass(ctx context.Context, classID string) ([]model.Assignment, error)
}

// SubmissionRepository 作业提交读取接口
type SubmissionRepository interface {
	Get(ctx context.Context, assignmentID, studentID string) (*model.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error)
}

// GradeRepository 成绩记录读取接口
type GradeRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]model.GradeRecord, error)
}

// ── Assignment Repository 实现 ──

type assignmentRepo struct {
	db *gorm.DB
}

func NewAssignmentRepo(db *gorm.DB) AssignmentRepository {
	return &assignmentRepo{db: db}
}

func (r *assignmentRepo) GetByID(ctx context.Context, id string) (*model.Assignment, error) {
	var a model.Assignment
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *assignmentRepo) ListByClass(ctx context.Context, classID string) ([]model.Assignment, error) {
	var list []model.Assignment
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("due_date ASC").
		Find(&list).Error
	return list, err
}

// ── Submission Repository 实现 ──

type submissionRepo struct {
	db *gorm.DB
}

func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Get(ctx context.Context, assignmentID, studentID string) (*model.Submission, error) {
	var s model.Submission
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND student_id = ?", assignmentID, studentID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	var list []model.Submission
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at ASC").
		Find(&list).Error
	return list, err
}

// ── Grade Repository 实现 ──

type gradeRepo struct {
	db *gorm.DB
}

func NewGradeRepo(db *gorm.DB) GradeRepository {
	return &gradeRepo{db: db}
}

func (r *gradeRepo) ListByStudent(ctx context.Context, studentID string) ([]model.GradeRecord, error) {
	var list []model.GradeRecord
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("recorded_at ASC").
		Find(&list).Error
	return list, err
}
