package dto

import "time"

// ── 成绩模块 DTO ──

// RecordGradeRequest 录入成绩请求
type RecordGradeRequest struct {
	StudentID string   `json:"student_id" binding:"required,max=128"`
	Subject   string   `json:"subject"    binding:"required,max=100"`
	Marks     *float64 `json:"marks"      binding:"required,gte=0"`
	MaxMarks  float64  `json:"max_marks"  binding:"required,gt=0"`
	Semester  string   `json:"semester"   binding:"omitempty,max=30"`
	ExamType  string   `json:"exam_type"  binding:"omitempty,max=30"`
}

// RecordGradeResponse 录入结果
type RecordGradeResponse struct {
	GradeID           string  `json:"grade_id"`
	StudentID         string  `json:"student_id"`
	AveragePercentage float64 `json:"average_percentage"`
	CurrentGPA        int     `json:"current_gpa"`
}

// GradeRecordResponse 成绩记录
type GradeRecordResponse struct {
	GradeID    string    `json:"grade_id"`
	Subject    string    `json:"subject"`
	Marks      float64   `json:"marks"`
	MaxMarks   float64   `json:"max_marks"`
	Semester   string    `json:"semester,omitempty"`
	ExamType   string    `json:"exam_type,omitempty"`
	RecordedBy string    `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// StudentGradesResponse 学生成绩历史与当前 GPA
type StudentGradesResponse struct {
	StudentID         string                `json:"student_id"`
	Grades            []GradeRecordResponse `json:"grades"`
	AveragePercentage float64               `json:"average_percentage"`
	CurrentGPA        int                   `json:"current_gpa"`
}
