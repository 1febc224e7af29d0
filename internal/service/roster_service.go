package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// ── 班级模块业务错误 ──

var (
	ErrClassNotFound   = errors.New("班级不存在")
	ErrTeacherNotFound = errors.New("教师档案不存在")
	ErrNotClassOwner   = errors.New("只有任课教师可以操作该班级")
)

// RosterService 班级与花名册业务接口
type RosterService interface {
	// CreateClass 创建班级并自动登记同年级同班别的在读学生
	CreateClass(ctx context.Context, teacherID string, req *dto.CreateClassRequest) (*dto.CreateClassResponse, error)
	GetClass(ctx context.Context, id string) (*dto.ClassResponse, error)
	// ListTeacherClasses 教师任课的全部班级，含已停用班级
	ListTeacherClasses(ctx context.Context, teacherID string) ([]dto.ClassResponse, error)
	// AutoEnroll 补齐班级花名册与学生选课记录的双向关联，可重复执行
	AutoEnroll(ctx context.Context, classID string) (*dto.EnrollmentResult, error)
	// RefreshEnrollment 任课教师手动重新同步花名册
	RefreshEnrollment(ctx context.Context, teacherID, classID string) (*dto.EnrollmentResult, error)
	// EnrollStudent 把一名学生登记到所有匹配的班级
	EnrollStudent(ctx context.Context, studentID string) (*dto.EnrollmentResult, error)
	// ResyncAll 对所有在用班级执行 AutoEnroll，单个班级失败不影响其余班级
	ResyncAll(ctx context.Context) (int, error)
}

type rosterService struct {
	repo   *repository.Repository
	coord  *Coordinator
	logger *zap.Logger
}

// NewRosterService 创建 RosterService 实例
func NewRosterService(repo *repository.Repository, coord *Coordinator, logger *zap.Logger) RosterService {
	return &rosterService{repo: repo, coord: coord, logger: logger}
}

// ────────────────────── CreateClass ──────────────────────

func (s *rosterService) CreateClass(ctx context.Context, teacherID string, req *dto.CreateClassRequest) (*dto.CreateClassResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if _, err := s.repo.Faculty.GetByID(ctx, teacherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeacherNotFound
		}
		s.logger.Error("查询教师档案失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}

	now := nowFunc()
	schedule := make(datatypes.JSONSlice[model.ScheduleSlot], 0, len(req.Schedule))
	for _, slot := range req.Schedule {
		schedule = append(schedule, model.ScheduleSlot{
			Day:       slot.Day,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Room:      slot.Room,
		})
	}

	class := &model.ClassSection{
		ClassID:        uuid.New().String(),
		Name:           req.Name,
		Subject:        req.Subject,
		Grade:          req.Grade,
		Section:        req.Section,
		TeacherID:      teacherID,
		Students:       pq.StringArray{},
		Schedule:       schedule,
		IsActive:       true,
		VersionedModel: model.VersionedModel{Version: 1, BaseModel: model.BaseModel{CreatedAt: now, UpdatedAt: now}},
	}

	if err := s.coord.Submit(ctx, []repository.Mutation{
		repository.Set(repository.ClassRef(class.ClassID), class),
		repository.AddToSet(repository.FacultyRef(teacherID), model.FacultyColClasses, class.ClassID),
	}); err != nil {
		s.logger.Error("创建班级失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("班级已创建",
		zap.String("class_id", class.ClassID),
		zap.String("grade", class.Grade),
		zap.String("section", class.Section))

	resp := &dto.CreateClassResponse{}

	// 自动选课失败时班级仍有效，可通过手动同步补齐
	var out Outcome
	res, err := s.AutoEnroll(ctx, class.ClassID)
	if err != nil {
		s.logger.Warn("自动选课失败", zap.String("class_id", class.ClassID), zap.Error(err))
		out.Fail("自动选课", err)
	} else {
		resp.Enrollment = res
		if fresh, err := s.repo.Class.GetByID(ctx, class.ClassID); err == nil {
			class = fresh
		}
	}

	resp.Class = toClassResponse(class)
	resp.Warnings = out.Warnings()
	return resp, nil
}

// ────────────────────── GetClass ──────────────────────

func (s *rosterService) GetClass(ctx context.Context, id string) (*dto.ClassResponse, error) {
	class, err := s.getClass(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toClassResponse(class)
	return &resp, nil
}

func (s *rosterService) ListTeacherClasses(ctx context.Context, teacherID string) ([]dto.ClassResponse, error) {
	classes, err := s.repo.Class.ListByTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Error("查询任课班级失败", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.ClassResponse, 0, len(classes))
	for i := range classes {
		out = append(out, toClassResponse(&classes[i]))
	}
	return out, nil
}

// ────────────────────── AutoEnroll ──────────────────────

func (s *rosterService) AutoEnroll(ctx context.Context, classID string) (*dto.EnrollmentResult, error) {
	class, err := s.getClass(ctx, classID)
	if err != nil {
		return nil, err
	}

	students, err := s.repo.User.ListActiveStudentsByGradeSection(ctx, class.Grade, class.Section)
	if err != nil {
		s.logger.Error("查询匹配学生失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}

	result := &dto.EnrollmentResult{ClassID: classID, Matched: len(students)}
	groups := make([][]repository.Mutation, 0, len(students))
	for i := range students {
		g := enrollmentLinks(class, &students[i])
		if len(g) == 0 {
			result.Skipped++
			continue
		}
		groups = append(groups, g)
	}

	if len(groups) == 0 {
		return result, nil
	}

	applied, _, err := s.coord.SubmitGroups(ctx, groups)
	result.Enrolled = applied
	if err != nil {
		s.logger.Error("提交选课失败", zap.String("class_id", classID), zap.Int("applied", applied), zap.Error(err))
		return result, err
	}

	s.logger.Info("自动选课完成",
		zap.String("class_id", classID),
		zap.Int("matched", result.Matched),
		zap.Int("enrolled", result.Enrolled),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// ────────────────────── RefreshEnrollment ──────────────────────

func (s *rosterService) RefreshEnrollment(ctx context.Context, teacherID, classID string) (*dto.EnrollmentResult, error) {
	class, err := s.getClass(ctx, classID)
	if err != nil {
		return nil, err
	}
	if class.TeacherID != teacherID {
		return nil, ErrNotClassOwner
	}
	return s.AutoEnroll(ctx, classID)
}

// ────────────────────── EnrollStudent ──────────────────────

func (s *rosterService) EnrollStudent(ctx context.Context, studentID string) (*dto.EnrollmentResult, error) {
	student, err := s.repo.User.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	result := &dto.EnrollmentResult{}
	if !student.IsActive || student.Role != model.RoleStudent || student.Grade == "" || student.Section == "" {
		return result, nil
	}

	classes, err := s.repo.Class.ListActiveByGradeSection(ctx, student.Grade, student.Section)
	if err != nil {
		return nil, err
	}
	result.Matched = len(classes)

	groups := make([][]repository.Mutation, 0, len(classes))
	for i := range classes {
		g := enrollmentLinks(&classes[i], student)
		if len(g) == 0 {
			result.Skipped++
			continue
		}
		groups = append(groups, g)
	}

	applied, _, err := s.coord.SubmitGroups(ctx, groups)
	result.Enrolled = applied
	return result, err
}

// ────────────────────── ResyncAll ──────────────────────

func (s *rosterService) ResyncAll(ctx context.Context) (int, error) {
	classes, err := s.repo.Class.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	enrolled := 0
	var errs []error
	for _, c := range classes {
		res, err := s.AutoEnroll(ctx, c.ClassID)
		if res != nil {
			enrolled += res.Enrolled
		}
		if err != nil {
			s.logger.Warn("班级花名册同步失败", zap.String("class_id", c.ClassID), zap.Error(err))
			errs = append(errs, fmt.Errorf("班级 %s: %w", c.ClassID, err))
		}
	}

	s.logger.Info("花名册全量同步完成", zap.Int("classes", len(classes)), zap.Int("enrolled", enrolled))
	return enrolled, errors.Join(errs...)
}

// ── 内部方法 ──

func (s *rosterService) getClass(ctx context.Context, id string) (*model.ClassSection, error) {
	class, err := s.repo.Class.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClassNotFound
		}
		s.logger.Error("查询班级失败", zap.String("class_id", id), zap.Error(err))
		return nil, err
	}
	return class, nil
}

// enrollmentLinks 补齐班级与学生之间缺失的一侧或两侧关联，已完整时返回空
func enrollmentLinks(class *model.ClassSection, student *model.User) []repository.Mutation {
	var muts []repository.Mutation
	if !class.HasStudent(student.UserID) {
		muts = append(muts, repository.AddToSet(repository.ClassRef(class.ClassID), model.ClassColStudents, student.UserID))
	}
	if !student.IsEnrolledIn(class.ClassID) {
		muts = append(muts, repository.AddToSet(repository.UserRef(student.UserID), model.UserColEnrolledClasses, class.ClassID))
	}
	return muts
}

func toClassResponse(c *model.ClassSection) dto.ClassResponse {
	schedule := make([]dto.ScheduleSlotRequest, 0, len(c.Schedule))
	for _, slot := range c.Schedule {
		schedule = append(schedule, dto.ScheduleSlotRequest{
			Day:       slot.Day,
			StartTime: slot.StartTime,
			EndTime:   slot.EndTime,
			Room:      slot.Room,
		})
	}
	return dto.ClassResponse{
		ClassID:   c.ClassID,
		Name:      c.Name,
		Subject:   c.Subject,
		Grade:     c.Grade,
		Section:   c.Section,
		TeacherID: c.TeacherID,
		Students:  nonNil(c.Students),
		Schedule:  schedule,
		IsActive:  c.IsActive,
		Version:   c.Version,
	}
}
