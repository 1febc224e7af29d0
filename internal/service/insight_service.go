package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/shiivaansh/sortED-sub000/internal/dto"
	"github.com/shiivaansh/sortED-sub000/internal/model"
	"github.com/shiivaansh/sortED-sub000/internal/repository"
)

// AI 服务接口路径
const (
	aiPathPredictGPA     = "/predict-gpa"
	aiPathStudyAssistant = "/study-assistant"
)

// AIClient AI 服务调用
type AIClient interface {
	Post(ctx context.Context, path string, in, out interface{}) error
}

// InsightService AI 洞察接口
//
// AI 服务不可用或返回非 2xx 时改用本地计算的结果，并标记 fallback。
type InsightService interface {
	PredictGPA(ctx context.Context, studentID string) (*dto.PredictGPAResponse, error)
	StudyAssistant(ctx context.Context, userID string, req *dto.StudyAssistantRequest) (*dto.StudyAssistantResponse, error)
}

type insightService struct {
	repo   *repository.Repository
	ai     AIClient
	logger *zap.Logger
}

// NewInsightService 创建 InsightService 实例
func NewInsightService(repo *repository.Repository, ai AIClient, logger *zap.Logger) InsightService {
	return &insightService{repo: repo, ai: ai, logger: logger}
}

type predictGPAPayload struct {
	StudentID            string                `json:"student_id"`
	AttendancePercentage int                   `json:"attendance_percentage"`
	CurrentGPA           int                   `json:"current_gpa"`
	AssignmentsSubmitted int                   `json:"assignments_submitted"`
	Grades               []model.GradeSnapshot `json:"grades"`
}

// ────────────────────── PredictGPA ──────────────────────

func (s *insightService) PredictGPA(ctx context.Context, studentID string) (*dto.PredictGPAResponse, error) {
	user, err := s.repo.User.GetByID(ctx, studentID)
	if err != nil {
		return nil, mapNotFound(err, ErrProfileNotFound)
	}

	payload := predictGPAPayload{
		StudentID:            user.UserID,
		AttendancePercentage: user.Stats.AttendancePercentage,
		CurrentGPA:           user.Stats.CurrentGPA,
		AssignmentsSubmitted: user.Stats.AssignmentsSubmitted,
		Grades:               user.GradeRecords,
	}

	var resp dto.PredictGPAResponse
	if s.ai != nil {
		err := s.ai.Post(ctx, aiPathPredictGPA, payload, &resp)
		if err == nil {
			resp.StudentID = studentID
			resp.Fallback = false
			return &resp, nil
		}
		s.logger.Warn("AI 预测 GPA 失败，使用本地结果", zap.String("student_id", studentID), zap.Error(err))
	}
	return fallbackPredictGPA(user), nil
}

// ────────────────────── StudyAssistant ──────────────────────

func (s *insightService) StudyAssistant(ctx context.Context, userID string, req *dto.StudyAssistantRequest) (*dto.StudyAssistantResponse, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"user_id":  userID,
		"question": req.Question,
		"subject":  req.Subject,
	}

	var resp dto.StudyAssistantResponse
	if s.ai != nil {
		err := s.ai.Post(ctx, aiPathStudyAssistant, payload, &resp)
		if err == nil {
			resp.Fallback = false
			return &resp, nil
		}
		s.logger.Warn("AI 学习助手失败，使用本地结果", zap.String("user_id", userID), zap.Error(err))
	}
	return fallbackStudyAssistant(req), nil
}

// ── 本地结果 ──

// fallbackPredictGPA 以成绩平均百分比为基准，出勤率低于 75% 时下调
func fallbackPredictGPA(u *model.User) *dto.PredictGPAResponse {
	resp := &dto.PredictGPAResponse{StudentID: u.UserID, Fallback: true}

	att := u.Stats.AttendancePercentage
	var predicted float64
	if len(u.GradeRecords) > 0 {
		predicted = float64(GPABand(AveragePercentage(u.GradeRecords)))
	} else {
		predicted = float64(GPABand(float64(att)))
		resp.Factors = append(resp.Factors, "暂无成绩记录，按出勤率估算")
	}
	if att < 75 {
		predicted -= 0.5
		resp.Factors = append(resp.Factors, fmt.Sprintf("出勤率 %d%% 低于 75%%", att))
	}
	resp.PredictedGPA = math.Max(4, math.Round(predicted*10)/10)

	switch {
	case att < 75 || resp.PredictedGPA < 6:
		resp.RiskLevel = "high"
	case att < 85 || resp.PredictedGPA < 8:
		resp.RiskLevel = "medium"
	default:
		resp.RiskLevel = "low"
	}
	return resp
}

func fallbackStudyAssistant(req *dto.StudyAssistantRequest) *dto.StudyAssistantResponse {
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		subject = "该科目"
	}
	return &dto.StudyAssistantResponse{
		Answer: fmt.Sprintf("学习助手暂时不可用。关于“%s”的问题，建议先回顾%s的课堂笔记和相关作业。", req.Question, subject),
		Suggestions: []string{
			fmt.Sprintf("整理%s本周的重点概念", subject),
			"把问题拆成更小的步骤逐一验证",
			"向任课教师或同学请教",
		},
		Fallback: true,
	}
}
