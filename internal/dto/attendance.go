package dto

import "time"

// ── 点名模块 DTO ──

// MarkAttendanceRequest 单个学生点名
type MarkAttendanceRequest struct {
	StudentID string  `json:"student_id" binding:"required,max=128"`
	Date      string  `json:"date"       binding:"required,datetime=2006-01-02"`
	Status    string  `json:"status"     binding:"required,oneof=present absent late"`
	ClassID   *string `json:"class_id"   binding:"omitempty,uuid"`
	Subject   string  `json:"subject"    binding:"omitempty,max=100"`
}

// ClassAttendanceEntry 班级点名中的单条记录
type ClassAttendanceEntry struct {
	StudentID string `json:"student_id" binding:"required,max=128"`
	Status    string `json:"status"     binding:"required,oneof=present absent late"`
}

// MarkClassAttendanceRequest 班级批量点名
type MarkClassAttendanceRequest struct {
	Date    string                 `json:"date"    binding:"required,datetime=2006-01-02"`
	Subject string                 `json:"subject" binding:"omitempty,max=100"`
	Entries []ClassAttendanceEntry `json:"entries" binding:"required,min=1,dive"`
}

// AttendanceRecordResponse 去重后的点名记录
type AttendanceRecordResponse struct {
	Date     string  `json:"date"`
	Status   string  `json:"status"`
	Subject  string  `json:"subject,omitempty"`
	ClassID  *string `json:"class_id,omitempty"`
	MarkedBy string  `json:"marked_by"`
}

// AttendanceEntryResponse 点名流水（含同日被覆盖的记录）
type AttendanceEntryResponse struct {
	AttendanceID string    `json:"attendance_id"`
	Date         string    `json:"date"`
	Status       string    `json:"status"`
	Subject      string    `json:"subject,omitempty"`
	ClassID      *string   `json:"class_id,omitempty"`
	MarkedBy     string    `json:"marked_by"`
	MarkedAt     time.Time `json:"marked_at"`
}

// MarkAttendanceResponse 单个学生点名结果
type MarkAttendanceResponse struct {
	StudentID            string `json:"student_id"`
	Date                 string `json:"date"`
	Status               string `json:"status"`
	AttendancePercentage int    `json:"attendance_percentage"`
	Attempts             int    `json:"attempts"`
}

// MarkClassAttendanceResponse 班级批量点名结果
type MarkClassAttendanceResponse struct {
	ClassID string   `json:"class_id"`
	Date    string   `json:"date"`
	Marked  int      `json:"marked"`
	Skipped []string `json:"skipped,omitempty"` // 不在花名册中的学生
	Batches int      `json:"batches"`
}

// StudentAttendanceResponse 学生点名汇总
type StudentAttendanceResponse struct {
	StudentID            string                     `json:"student_id"`
	Records              []AttendanceRecordResponse `json:"records"`
	PresentDays          int                        `json:"present_days"`
	TotalDays            int                        `json:"total_days"`
	AttendancePercentage int                        `json:"attendance_percentage"`
}

// ClassAttendanceRow 班级某日点名中一个学生的当前状态
type ClassAttendanceRow struct {
	StudentID string    `json:"student_id"`
	Status    string    `json:"status"`
	MarkedBy  string    `json:"marked_by"`
	MarkedAt  time.Time `json:"marked_at"`
}

// ClassAttendanceSnapshot 班级某日点名快照（实时推送）
type ClassAttendanceSnapshot struct {
	ClassID string               `json:"class_id"`
	Date    string               `json:"date"`
	Rows    []ClassAttendanceRow `json:"rows"`
	Present int                  `json:"present"`
	Absent  int                  `json:"absent"`
	Late    int                  `json:"late"`
}
