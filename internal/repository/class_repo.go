package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/internal/model"
)

// ClassRepository 班级读取接口
type ClassRepository interface {
	GetByID(ctx context.Context, id string) (*model.ClassSection, error)
	ListActive(ctx context.Context) ([]model.ClassSection, error)
	ListActiveByGradeSection(ctx context.Context, grade, section string) ([]model.ClassSection, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]model.ClassSection, error)
}

type classRepo struct {
	db *gorm.DB
}

func NewClassRepo(db *gorm.DB) ClassRepository {
	return &classRepo{db: db}
}

func (r *classRepo) GetByID(ctx context.Context, id string) (*model.ClassSection, error) {
	var class model.ClassSection
	err := r.db.WithContext(ctx).
		Where("class_id = ?", id).
		First(&class).Error
	if err != nil {
		return nil, err
	}
	return &class, nil
}

func (r *classRepo) ListActive(ctx context.Context) ([]model.ClassSection, error) {
	var classes []model.ClassSection
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) ListActiveByGradeSection(ctx context.Context, grade, section string) ([]model.ClassSection, error) {
	var classes []model.ClassSection
	err := r.db.WithContext(ctx).
		Where("grade = ? AND section = ? AND is_active = ?", grade, section, true).
		Order("created_at ASC").
		Find(&classes).Error
	return classes, err
}

func (r *classRepo) ListByTeacher(ctx context.Context, teacherID string) ([]model.ClassSection, error) {
	var classes []model.ClassSection
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Order("created_at DESC").
		Find(&classes).Error
	return classes, err
}

// AttendanceRepository 点名流水读取接口
type AttendanceRepository interface {
	ListByStudent(ctx context.Context, studentID string) ([]model.AttendanceEntry, error)
	ListByClassAndDate(ctx context.Context, classID, date string) ([]model.AttendanceEntry, error)
	ListByClass(ctx context.Context, classID string) ([]model.AttendanceEntry, error)
}

type attendanceRepo struct {
	db *gorm.DB
}

func NewAttendanceRepo(db *gorm.DB) AttendanceRepository {
	return &attendanceRepo{db: db}
}

func (r *attendanceRepo) ListByStudent(ctx context.Context, studentID string) ([]model.AttendanceEntry, error) {
	var entries []model.AttendanceEntry
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("date ASC, marked_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *attendanceRepo) ListByClassAndDate(ctx context.Context, classID, date string) ([]model.AttendanceEntry, error) {
	var entries []model.AttendanceEntry
	err := r.db.WithContext(ctx).
		Where("class_id = ? AND date = ?", classID, date).
		Order("marked_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *attendanceRepo) ListByClass(ctx context.Context, classID string) ([]model.AttendanceEntry, error) {
	var entries []model.AttendanceEntry
	err := r.db.WithContext(ctx).
		Where("class_id = ?", classID).
		Order("date ASC, marked_at ASC").
		Find(&entries).Error
	return entries, err
}
