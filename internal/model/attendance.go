package model

import "time"

// 点名状态
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
)

// AttendanceDateLayout 点名日期格式
const AttendanceDateLayout = "2006-01-02"

// AttendanceEntry 点名流水：对应 attendance（只追加，不修改）
type AttendanceEntry struct {
	AttendanceID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_id"`
	StudentID    string    `gorm:"type:varchar(128);not null;index:idx_attendance_student_date" json:"student_id"`
	ClassID      *string   `gorm:"type:uuid;index"                                json:"class_id,omitempty"`
	Date         string    `gorm:"type:varchar(10);not null;index:idx_attendance_student_date" json:"date"`
	Status       string    `gorm:"type:varchar(10);not null"                      json:"status"` // present | absent | late
	Subject      string    `gorm:"type:varchar(100)"                              json:"subject,omitempty"`
	MarkedBy     string    `gorm:"type:varchar(128);not null"                     json:"marked_by"`
	MarkedAt     time.Time `gorm:"not null"                                       json:"marked_at"`
}

func (AttendanceEntry) TableName() string { return "attendance" }

// AttendanceRecord users.attendance_records 中的冗余点名记录（按日期唯一）
type AttendanceRecord struct {
	Date     string  `json:"date"`
	Status   string  `json:"status"`
	Subject  string  `json:"subject,omitempty"`
	ClassID  *string `json:"class_id,omitempty"`
	MarkedBy string  `json:"marked_by"`
}

// ValidAttendanceStatus 判断点名状态是否合法
func ValidAttendanceStatus(status string) bool {
	switch status {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}
