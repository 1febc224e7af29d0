package service

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/shiivaansh/sortED-sub000/config"
	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// ── 点名模块业务错误 ──

var (
	ErrInvalidAttendanceDate   = errors.New("点名日期格式应为 YYYY-MM-DD")
	ErrInvalidAttendanceStatus = errors.New("点名状态只能为 present、absent 或 late")
)

// AttendanceService 点名业务接口
type AttendanceService interface {
	// MarkAttendance 记录一条点名流水，并在同一批次中重写学生档案的去重记录与出勤率
	MarkAttendance(ctx context.Context, markedBy string, req *dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error)
	// MarkClassAttendance 按花名册批量点名，超过单批上限时分批提交
	MarkClassAttendance(ctx context.Context, markedBy, classID string, req *dto.MarkClassAttendanceRequest) (*dto.MarkClassAttendanceResponse, error)
	ListStudentAttendance(ctx context.Context, studentID string) (*dto.StudentAttendanceResponse, error)
	// ListAttendanceLog 学生的全部点名流水，包括同日被后续点名覆盖的记录
	ListAttendanceLog(ctx context.Context, studentID string) ([]dto.AttendanceEntryResponse, error)
	// ClassAttendanceSnapshot 班级某日每个学生的最新点名状态
	ClassAttendanceSnapshot(ctx context.Context, classID, date string) (*dto.ClassAttendanceSnapshot, error)
}

type attendanceService struct {
	repo       *repository.Repository
	coord      *Coordinator
	profiles   *profileWriter
	optimistic bool
	logger     *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(cfg *config.ConsistencyConfig, repo *repository.Repository, coord *Coordinator, logger *zap.Logger) AttendanceService {
	return &attendanceService{
		repo:  repo,
		coord: coord,
		profiles: &profileWriter{
			repo:       repo,
			coord:      coord,
			optimistic: cfg.OptimisticAttendance,
			maxRetries: cfg.MaxRetries,
			logger:     logger,
		},
		optimistic: cfg.OptimisticAttendance,
		logger:     logger,
	}
}

// ────────────────────── MarkAttendance ──────────────────────

func (s *attendanceService) MarkAttendance(ctx context.Context, markedBy string, req *dto.MarkAttendanceRequest) (*dto.MarkAttendanceResponse, error) {
	if err := checkAttendanceInput(req.Date, req.Status); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	subject := req.Subject
	if req.ClassID != nil {
		class, err := s.repo.Class.GetByID(ctx, *req.ClassID)
		if err != nil {
			return nil, mapNotFound(err, ErrClassNotFound)
		}
		if subject == "" {
			subject = class.Subject
		}
	}

	entry := &model.AttendanceEntry{
		AttendanceID: uuid.New().String(),
		StudentID:    req.StudentID,
		ClassID:      req.ClassID,
		Date:         req.Date,
		Status:       req.Status,
		Subject:      subject,
		MarkedBy:     markedBy,
		MarkedAt:     nowFunc(),
	}

	var pct int
	_, attempts, err := s.profiles.Write(ctx, req.StudentID, func(u *model.User) ([]repository.Mutation, error) {
		update, p := attendanceProfileUpdate(u, entry)
		pct = p
		return []repository.Mutation{
			repository.Set(repository.AttendanceRef(entry.AttendanceID), entry),
			update,
		}, nil
	})
	if err != nil {
		s.logger.Error("点名失败",
			zap.String("student_id", req.StudentID),
			zap.String("date", req.Date),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return nil, err
	}

	return &dto.MarkAttendanceResponse{
		StudentID:            req.StudentID,
		Date:                 req.Date,
		Status:               req.Status,
		AttendancePercentage: pct,
		Attempts:             attempts,
	}, nil
}

// ────────────────────── MarkClassAttendance ──────────────────────

func (s *attendanceService) MarkClassAttendance(ctx context.Context, markedBy, classID string, req *dto.MarkClassAttendanceRequest) (*dto.MarkClassAttendanceResponse, error) {
	if err := checkAttendanceInput(req.Date, model.AttendancePresent); err != nil {
		return nil, err
	}
	for _, e := range req.Entries {
		if !model.ValidAttendanceStatus(e.Status) {
			return nil, ErrInvalidAttendanceStatus
		}
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}
	if class.TeacherID != markedBy {
		return nil, ErrNotClassOwner
	}

	// 同一学生出现多次时以最后一条为准
	statusByStudent := make(map[string]string, len(req.Entries))
	for _, e := range req.Entries {
		statusByStudent[e.StudentID] = e.Status
	}

	profiles, err := s.repo.User.ListByIDs(ctx, class.Students)
	if err != nil {
		s.logger.Error("查询花名册档案失败", zap.String("class_id", classID), zap.Error(err))
		return nil, err
	}
	profileByID := make(map[string]*model.User, len(profiles))
	for i := range profiles {
		profileByID[profiles[i].UserID] = &profiles[i]
	}

	resp := &dto.MarkClassAttendanceResponse{ClassID: classID, Date: req.Date}
	subject := req.Subject
	if subject == "" {
		subject = class.Subject
	}
	classRef := class.ClassID
	now := nowFunc()

	onRoster := make(map[string]struct{}, len(class.Students))
	groups := make([][]repository.Mutation, 0, len(class.Students))
	for _, studentID := range class.Students {
		onRoster[studentID] = struct{}{}
		status, ok := statusByStudent[studentID]
		if !ok {
			continue
		}
		profile, ok := profileByID[studentID]
		if !ok {
			resp.Skipped = append(resp.Skipped, studentID)
			continue
		}

		entry := &model.AttendanceEntry{
			AttendanceID: uuid.New().String(),
			StudentID:    studentID,
			ClassID:      &classRef,
			Date:         req.Date,
			Status:       status,
			Subject:      subject,
			MarkedBy:     markedBy,
			MarkedAt:     now,
		}
		update, _ := attendanceProfileUpdate(profile, entry)
		if s.optimistic {
			update = update.WithVersion(profile.Version)
		}
		groups = append(groups, []repository.Mutation{
			repository.Set(repository.AttendanceRef(entry.AttendanceID), entry),
			update,
		})
	}

	for _, e := range req.Entries {
		if _, ok := onRoster[e.StudentID]; !ok {
			resp.Skipped = append(resp.Skipped, e.StudentID)
		}
	}
	resp.Skipped = uniqueStrings(resp.Skipped)

	applied, batches, err := s.coord.SubmitGroups(ctx, groups)
	resp.Marked = applied
	resp.Batches = batches
	if err != nil {
		s.logger.Error("班级点名提交失败",
			zap.String("class_id", classID),
			zap.String("date", req.Date),
			zap.Int("applied", applied),
			zap.Int("total", len(groups)),
			zap.Error(err))
		return resp, err
	}

	s.logger.Info("班级点名完成",
		zap.String("class_id", classID),
		zap.String("date", req.Date),
		zap.Int("marked", applied),
		zap.Int("skipped", len(resp.Skipped)))
	return resp, nil
}

// ────────────────────── ListStudentAttendance ──────────────────────

func (s *attendanceService) ListStudentAttendance(ctx context.Context, studentID string) (*dto.StudentAttendanceResponse, error) {
	user, err := s.repo.User.GetByID(ctx, studentID)
	if err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}

	records := DedupeAttendance(user.AttendanceRecords)
	present, total := AttendanceCounts(records)

	resp := &dto.StudentAttendanceResponse{
		StudentID:            studentID,
		Records:              make([]dto.AttendanceRecordResponse, 0, len(records)),
		PresentDays:          present,
		TotalDays:            total,
		AttendancePercentage: AttendancePercentage(records),
	}
	for _, r := range records {
		resp.Records = append(resp.Records, dto.AttendanceRecordResponse{
			Date:     r.Date,
			Status:   r.Status,
			Subject:  r.Subject,
			ClassID:  r.ClassID,
			MarkedBy: r.MarkedBy,
		})
	}
	return resp, nil
}

func (s *attendanceService) ListAttendanceLog(ctx context.Context, studentID string) ([]dto.AttendanceEntryResponse, error) {
	if _, err := s.repo.User.GetByID(ctx, studentID); err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}

	entries, err := s.repo.Attendance.ListByStudent(ctx, studentID)
	if err != nil {
		s.logger.Error("查询点名流水失败", zap.String("student_id", studentID), zap.Error(err))
		return nil, err
	}
	out := make([]dto.AttendanceEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.AttendanceEntryResponse{
			AttendanceID: e.AttendanceID,
			Date:         e.Date,
			Status:       e.Status,
			Subject:      e.Subject,
			ClassID:      e.ClassID,
			MarkedBy:     e.MarkedBy,
			MarkedAt:     e.MarkedAt,
		})
	}
	return out, nil
}

// ────────────────────── ClassAttendanceSnapshot ──────────────────────

func (s *attendanceService) ClassAttendanceSnapshot(ctx context.Context, classID, date string) (*dto.ClassAttendanceSnapshot, error) {
	if err := checkAttendanceInput(date, model.AttendancePresent); err != nil {
		return nil, err
	}
	if _, err := s.repo.Class.GetByID(ctx, classID); err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}

	entries, err := s.repo.Attendance.ListByClassAndDate(ctx, classID, date)
	if err != nil {
		return nil, err
	}
	return buildClassSnapshot(classID, date, entries), nil
}

// ── 内部方法 ──

// attendanceProfileUpdate 由档案当前状态计算去重记录与出勤率
func attendanceProfileUpdate(u *model.User, entry *model.AttendanceEntry) (repository.Mutation, int) {
	records := MergeAttendanceRecord(u.AttendanceRecords, model.AttendanceRecord{
		Date:     entry.Date,
		Status:   entry.Status,
		Subject:  entry.Subject,
		ClassID:  entry.ClassID,
		MarkedBy: entry.MarkedBy,
	})
	pct := AttendancePercentage(records)
	return repository.Update(repository.UserRef(u.UserID), map[string]interface{}{
		model.UserColAttendanceRecords:    datatypes.JSONSlice[model.AttendanceRecord](records),
		model.UserColAttendancePercentage: pct,
	}), pct
}

// buildClassSnapshot 每个学生取最后一条流水
func buildClassSnapshot(classID, date string, entries []model.AttendanceEntry) *dto.ClassAttendanceSnapshot {
	latest := make(map[string]model.AttendanceEntry, len(entries))
	for _, e := range entries {
		if cur, ok := latest[e.StudentID]; !ok || !e.MarkedAt.Before(cur.MarkedAt) {
			latest[e.StudentID] = e
		}
	}

	snap := &dto.ClassAttendanceSnapshot{ClassID: classID, Date: date, Rows: make([]dto.ClassAttendanceRow, 0, len(latest))}
	for _, e := range latest {
		snap.Rows = append(snap.Rows, dto.ClassAttendanceRow{
			StudentID: e.StudentID,
			Status:    e.Status,
			MarkedBy:  e.MarkedBy,
			MarkedAt:  e.MarkedAt,
		})
		switch e.Status {
		case model.AttendancePresent:
			snap.Present++
		case model.AttendanceAbsent:
			snap.Absent++
		case model.AttendanceLate:
			snap.Late++
		}
	}
	sort.Slice(snap.Rows, func(i, j int) bool { return snap.Rows[i].StudentID < snap.Rows[j].StudentID })
	return snap
}

func checkAttendanceInput(date, status string) error {
	if !validDate(date) {
		return ErrInvalidAttendanceDate
	}
	if !model.ValidAttendanceStatus(status) {
		return ErrInvalidAttendanceStatus
	}
	return nil
}

func uniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
