package dto

import "time"

// ── 作业模块 DTO ──

// CreateAssignmentRequest 布置作业请求
type CreateAssignmentRequest struct {
	ClassID     string    `json:"class_id"    binding:"required,uuid"`
	Title       string    `json:"title"       binding:"required,max=200"`
	Description string    `json:"description" binding:"omitempty,max=5000"`
	Subject     string    `json:"subject"     binding:"required,max=100"`
	DueDate     time.Time `json:"due_date"    binding:"required"`
	MaxMarks    float64   `json:"max_marks"   binding:"required,gt=0"`
}

// AssignmentStatsResponse 作业统计
type AssignmentStatsResponse struct {
	TotalSubmissions int     `json:"total_submissions"`
	AverageGrade     float64 `json:"average_grade"`
	SubmissionRate   int     `json:"submission_rate"`
}

// AssignmentResponse 作业信息
type AssignmentResponse struct {
	AssignmentID string                  `json:"assignment_id"`
	ClassID      string                  `json:"class_id"`
	TeacherID    string                  `json:"teacher_id"`
	Title        string                  `json:"title"`
	Description  string                  `json:"description,omitempty"`
	Subject      string                  `json:"subject"`
	DueDate      time.Time               `json:"due_date"`
	MaxMarks     float64                 `json:"max_marks"`
	Stats        AssignmentStatsResponse `json:"stats"`
	Version      int                     `json:"version"`
}

// SubmitAssignmentRequest 提交作业请求
type SubmitAssignmentRequest struct {
	Content string `json:"content" binding:"required,max=20000"`
}

// GradeSubmissionRequest 批改请求
type GradeSubmissionRequest struct {
	Grade    *float64 `json:"grade"    binding:"required,gte=0"`
	Feedback string   `json:"feedback" binding:"omitempty,max=5000"`
}

// SubmissionResponse 提交信息
type SubmissionResponse struct {
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Content      string     `json:"content"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Grade        *float64   `json:"grade,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	Status       string     `json:"status"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

// SubmitAssignmentResponse 提交结果
type SubmitAssignmentResponse struct {
	Submission     SubmissionResponse `json:"submission"`
	Resubmitted    bool               `json:"resubmitted"`
	SubmissionRate int                `json:"submission_rate"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// GradeSubmissionResponse 批改结果
// 平均分重算属于附带步骤，失败时 average_grade 为空并给出 warnings
type GradeSubmissionResponse struct {
	Submission   SubmissionResponse `json:"submission"`
	AverageGrade *float64           `json:"average_grade,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}
