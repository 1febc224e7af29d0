package model

import (
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// ClassSection 班级：对应 classes
type ClassSection struct {
	ClassID   string                            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	Name      string                            `gorm:"type:varchar(100);not null"                     json:"name"`
	Subject   string                            `gorm:"type:varchar(100);not null"                     json:"subject"`
	Grade     string                            `gorm:"type:varchar(10);not null"                      json:"grade"`
	Section   string                            `gorm:"type:varchar(10);not null"                      json:"section"`
	TeacherID string                            `gorm:"type:varchar(128);not null;index"               json:"teacher_id"`
	Students  pq.StringArray                    `gorm:"type:text[];not null;default:'{}'"              json:"students"`
	Schedule  datatypes.JSONSlice[ScheduleSlot] `gorm:"type:jsonb;not null;default:'[]'"               json:"schedule"`
	IsActive  bool                              `gorm:"not null;default:true"                          json:"is_active"`
	VersionedModel
}

func (ClassSection) TableName() string { return "classes" }

// ScheduleSlot 每周上课时段
type ScheduleSlot struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room,omitempty"`
}

// ClassColStudents classes.students 列名
const ClassColStudents = "students"

// HasStudent 判断学生是否在花名册中
func (c *ClassSection) HasStudent(studentID string) bool {
	return containsID(c.Students, studentID)
}
