package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/realtime"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// LiveService 实时订阅接口
//
// 每次回调都是文档的完整当前状态，可能重复，回调需幂等。
// 调用方必须在结束时调用返回句柄的 Unsubscribe。
type LiveService interface {
	// WatchProfile 学生 / 教师自己的档案
	WatchProfile(ctx context.Context, userID string, onChange func(*dto.ProfileResponse), onError func(error)) (*realtime.Handle, error)
	// WatchClassRoster 班级花名册
	WatchClassRoster(ctx context.Context, classID string, onChange func(*dto.RosterSnapshot), onError func(error)) (*realtime.Handle, error)
	// WatchClassAttendance 班级某日点名
	WatchClassAttendance(ctx context.Context, classID, date string, onChange func(*dto.ClassAttendanceSnapshot), onError func(error)) (*realtime.Handle, error)
}

type liveService struct {
	repo       *repository.Repository
	bus        realtime.Bus
	profiles   ProfileService
	attendance AttendanceService
	logger     *zap.Logger
}

// NewLiveService 创建 LiveService 实例
func NewLiveService(repo *repository.Repository, bus realtime.Bus, profiles ProfileService, attendance AttendanceService, logger *zap.Logger) LiveService {
	return &liveService{repo: repo, bus: bus, profiles: profiles, attendance: attendance, logger: logger}
}

func (s *liveService) WatchProfile(ctx context.Context, userID string, onChange func(*dto.ProfileResponse), onError func(error)) (*realtime.Handle, error) {
	if _, err := s.profiles.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	topic := realtime.DocTopic(repository.CollUsers, userID)
	return realtime.Watch(ctx, s.bus, topic,
		func(ctx context.Context) (*dto.ProfileResponse, error) {
			return s.profiles.GetProfile(ctx, userID)
		},
		onChange, s.logErrors(topic, onError))
}

func (s *liveService) WatchClassRoster(ctx context.Context, classID string, onChange func(*dto.RosterSnapshot), onError func(error)) (*realtime.Handle, error) {
	if _, err := s.loadRoster(ctx, classID); err != nil {
		return nil, err
	}
	topic := realtime.DocTopic(repository.CollClasses, classID)
	return realtime.Watch(ctx, s.bus, topic,
		func(ctx context.Context) (*dto.RosterSnapshot, error) {
			return s.loadRoster(ctx, classID)
		},
		onChange, s.logErrors(topic, onError))
}

func (s *liveService) WatchClassAttendance(ctx context.Context, classID, date string, onChange func(*dto.ClassAttendanceSnapshot), onError func(error)) (*realtime.Handle, error) {
	if _, err := s.attendance.ClassAttendanceSnapshot(ctx, classID, date); err != nil {
		return nil, err
	}
	topic := realtime.ParentTopic(repository.CollAttendance, classID)
	return realtime.Watch(ctx, s.bus, topic,
		func(ctx context.Context) (*dto.ClassAttendanceSnapshot, error) {
			return s.attendance.ClassAttendanceSnapshot(ctx, classID, date)
		},
		onChange, s.logErrors(topic, onError))
}

func (s *liveService) loadRoster(ctx context.Context, classID string) (*dto.RosterSnapshot, error) {
	class, err := s.repo.Class.GetByID(ctx, classID)
	if err != nil {
		return nil, mapNotFound(err, ErrClassNotFound)
	}
	profiles, err := s.repo.User.ListByIDs(ctx, class.Students)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]int, len(profiles))
	for i, p := range profiles {
		byID[p.UserID] = i
	}

	snap := &dto.RosterSnapshot{
		ClassID:  class.ClassID,
		Name:     class.Name,
		Version:  class.Version,
		Students: make([]dto.RosterStudent, 0, len(class.Students)),
	}
	for _, id := range class.Students {
		st := dto.RosterStudent{UserID: id}
		if i, ok := byID[id]; ok {
			st.Name = profiles[i].Name
			st.RollNumber = profiles[i].RollNumber
			st.IsActive = profiles[i].IsActive
		}
		snap.Students = append(snap.Students, st)
	}
	return snap, nil
}

func (s *liveService) logErrors(topic string, onError func(error)) func(error) {
	return func(err error) {
		s.logger.Warn("实时订阅读取失败", zap.String("topic", topic), zap.Error(err))
		if onError != nil {
			onError(err)
		}
	}
}
