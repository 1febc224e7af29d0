package model

import "time"

// 提交状态：提交记录在学生首次提交时创建，未提交的学生没有记录，pending 不会落库
const (
	SubmissionSubmitted = "submitted"
	SubmissionGraded    = "graded"
)

// Assignment 作业：对应 assignments
type Assignment struct {
	AssignmentID string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"assignment_id"`
	TeacherID    string          `gorm:"type:varchar(128);not null;index"               json:"teacher_id"`
	ClassID      string          `gorm:"type:uuid;not null;index"                       json:"class_id"`
	Title        string          `gorm:"type:varchar(200);not null"                     json:"title"`
	Description  string          `gorm:"type:text"                                      json:"description,omitempty"`
	Subject      string          `gorm:"type:varchar(100);not null"                     json:"subject"`
	DueDate      time.Time       `gorm:"not null"                                       json:"due_date"`
	MaxMarks     float64         `gorm:"not null"                                       json:"max_marks"`
	Stats        AssignmentStats `gorm:"embedded;embeddedPrefix:stat_"                  json:"stats"`
	VersionedModel
}

func (Assignment) TableName() string { return "assignments" }

// AssignmentStats 作业聚合统计
type AssignmentStats struct {
	TotalSubmissions int     `gorm:"not null;default:0" json:"total_submissions"`
	AverageGrade     float64 `gorm:"not null;default:0" json:"average_grade"`
	SubmissionRate   int     `gorm:"not null;default:0" json:"submission_rate"`
}

// assignments 表列名
const (
	AssignmentColTotalSubmissions = "stat_total_submissions"
	AssignmentColAverageGrade     = "stat_average_grade"
	AssignmentColSubmissionRate   = "stat_submission_rate"
)

// Submission 作业提交：对应 submissions（以 assignment 为父文档，学生 ID 为键）
type Submission struct {
	AssignmentID string     `gorm:"type:uuid;primaryKey"               json:"assignment_id"`
	StudentID    string     `gorm:"type:varchar(128);primaryKey"       json:"student_id"`
	Content      string     `gorm:"type:text;not null"                 json:"content"`
	SubmittedAt  time.Time  `gorm:"not null"                           json:"submitted_at"`
	Grade        *float64   `json:"grade,omitempty"`
	Feedback     string     `gorm:"type:text"                          json:"feedback,omitempty"`
	Status       string     `gorm:"type:varchar(20);not null;default:'submitted'" json:"status"` // submitted | graded
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	GradedBy     *string    `gorm:"type:varchar(128)"                  json:"graded_by,omitempty"`
	BaseModel
}

func (Submission) TableName() string { return "submissions" }

// submissions 表列名
const (
	SubmissionColGrade    = "grade"
	SubmissionColFeedback = "feedback"
	SubmissionColStatus   = "status"
	SubmissionColGradedAt = "graded_at"
	SubmissionColGradedBy = "graded_by"
)
