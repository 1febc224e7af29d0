package model

import "time"

// GradeRecord 成绩记录：对应 grades
type GradeRecord struct {
	GradeID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"grade_id"`
	StudentID  string    `gorm:"type:varchar(128);not null;index"               json:"student_id"`
	Subject    string    `gorm:"type:varchar(100);not null"                     json:"subject"`
	Marks      float64   `gorm:"not null"                                       json:"marks"`
	MaxMarks   float64   `gorm:"not null"                                       json:"max_marks"`
	Semester   string    `gorm:"type:varchar(30)"                               json:"semester,omitempty"`
	ExamType   string    `gorm:"type:varchar(30)"                               json:"exam_type,omitempty"`
	RecordedBy string    `gorm:"type:varchar(128);not null"                     json:"recorded_by"`
	RecordedAt time.Time `gorm:"not null"                                       json:"recorded_at"`
}

func (GradeRecord) TableName() string { return "grades" }

// GradeSnapshot users.grade_records 中的冗余成绩副本
type GradeSnapshot struct {
	GradeID  string  `json:"grade_id"`
	Subject  string  `json:"subject"`
	Marks    float64 `json:"marks"`
	MaxMarks float64 `json:"max_marks"`
	Semester string  `json:"semester,omitempty"`
	ExamType string  `json:"exam_type,omitempty"`
}

// Percentage 成绩百分比；满分为 0 时视为 0
func (g GradeSnapshot) Percentage() float64 {
	if g.MaxMarks <= 0 {
		return 0
	}
	return g.Marks / g.MaxMarks * 100
}
