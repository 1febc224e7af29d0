package dto

// ── 班级模块 DTO ──

// ScheduleSlotRequest 上课时段
type ScheduleSlotRequest struct {
	Day       string `json:"day"        binding:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime string `json:"start_time" binding:"required,len=5"`
	EndTime   string `json:"end_time"   binding:"required,len=5"`
	Room      string `json:"room"       binding:"omitempty,max=50"`
}

// CreateClassRequest 创建班级请求
type CreateClassRequest struct {
	Name     string                `json:"name"     binding:"required,max=100"`
	Subject  string                `json:"subject"  binding:"required,max=100"`
	Grade    string                `json:"grade"    binding:"required,max=10"`
	Section  string                `json:"section"  binding:"required,max=10"`
	Schedule []ScheduleSlotRequest `json:"schedule" binding:"omitempty,dive"`
}

// ClassResponse 班级信息
type ClassResponse struct {
	ClassID   string                `json:"class_id"`
	Name      string                `json:"name"`
	Subject   string                `json:"subject"`
	Grade     string                `json:"grade"`
	Section   string                `json:"section"`
	TeacherID string                `json:"teacher_id"`
	Students  []string              `json:"students"`
	Schedule  []ScheduleSlotRequest `json:"schedule"`
	IsActive  bool                  `json:"is_active"`
	Version   int                   `json:"version"`
}

// EnrollmentResult 自动选课结果
type EnrollmentResult struct {
	ClassID  string `json:"class_id"`
	Matched  int    `json:"matched"`
	Enrolled int    `json:"enrolled"`
	Skipped  int    `json:"skipped"`
}

// CreateClassResponse 创建班级结果
// 自动选课失败不影响班级创建，失败原因见 warnings
type CreateClassResponse struct {
	Class      ClassResponse     `json:"class"`
	Enrollment *EnrollmentResult `json:"enrollment,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// RosterStudent 花名册中的学生
type RosterStudent struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	RollNumber string `json:"roll_number,omitempty"`
	IsActive   bool   `json:"is_active"`
}

// RosterSnapshot 班级花名册快照（实时推送）
type RosterSnapshot struct {
	ClassID  string          `json:"class_id"`
	Name     string          `json:"name"`
	Version  int             `json:"version"`
	Students []RosterStudent `json:"students"`
}
