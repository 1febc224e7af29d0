package dto

import "time"

// ── 档案模块 DTO ──

// EnsureProfileRequest 首次登录建档请求
// 姓名、邮箱、角色取自 Token，其余字段按角色选填
type EnsureProfileRequest struct {
	StudentID  string   `json:"student_id"  binding:"omitempty,max=30"`
	RollNumber string   `json:"roll_number" binding:"omitempty,max=30"`
	Grade      string   `json:"grade"       binding:"omitempty,max=10"`
	Section    string   `json:"section"     binding:"omitempty,max=10"`
	EmployeeID string   `json:"employee_id" binding:"omitempty,max=30"`
	Department string   `json:"department"  binding:"omitempty,max=100"`
	Subjects   []string `json:"subjects"    binding:"omitempty,dive,max=100"`
}

// ProfileListRequest 档案列表查询参数
type ProfileListRequest struct {
	PaginationRequest
}

// ProfileStatsResponse 档案聚合统计
type ProfileStatsResponse struct {
	AttendancePercentage int `json:"attendance_percentage"`
	CurrentGPA           int `json:"current_gpa"`
	AssignmentsSubmitted int `json:"assignments_submitted"`
	CommunitiesJoined    int `json:"communities_joined"`
	CertificatesEarned   int `json:"certificates_earned"`
}

// ProfileResponse 档案信息
type ProfileResponse struct {
	UserID                string               `json:"user_id"`
	Name                  string               `json:"name"`
	Email                 string               `json:"email"`
	Role                  string               `json:"role"`
	StudentID             string               `json:"student_id,omitempty"`
	RollNumber            string               `json:"roll_number,omitempty"`
	Grade                 string               `json:"grade,omitempty"`
	Section               string               `json:"section,omitempty"`
	EnrolledClasses       []string             `json:"enrolled_classes"`
	AssignmentSubmissions []string             `json:"assignment_submissions"`
	Stats                 ProfileStatsResponse `json:"stats"`
	IsActive              bool                 `json:"is_active"`
	LastActive            *time.Time           `json:"last_active,omitempty"`
	Version               int                  `json:"version"`
}

// EnsureProfileResponse 建档结果
type EnsureProfileResponse struct {
	Profile  ProfileResponse   `json:"profile"`
	Created  bool              `json:"created"`
	Enrolled *EnrollmentResult `json:"enrolled,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}
