package repository

import (
	"errors"
	"fmt"
	"regexp"
)

// ── 集合名称 ──

const (
	CollUsers        = "users"
	CollFaculty      = "faculty"
	CollClasses      = "classes"
	CollAttendance   = "attendance"
	CollAssignments  = "assignments"
	CollSubmissions  = "submissions" // 父文档为 assignments
	CollGrades       = "grades"
	CollCommunities  = "communities"
	CollEvents       = "events"
	CollCertificates = "certificates"
)

// collectionSpec 集合到数据表的映射
type collectionSpec struct {
	table        string
	keyColumn    string
	parentColumn string // 子集合的父文档列，空表示顶层集合
	parent       string
	versioned    bool
	audited      bool // 含 updated_at 列
}

var collections = map[string]collectionSpec{
	CollUsers:        {table: "users", keyColumn: "user_id", versioned: true, audited: true},
	CollFaculty:      {table: "faculty", keyColumn: "faculty_id", audited: true},
	CollClasses:      {table: "classes", keyColumn: "class_id", versioned: true, audited: true},
	CollAttendance:   {table: "attendance", keyColumn: "attendance_id"},
	CollAssignments:  {table: "assignments", keyColumn: "assignment_id", versioned: true, audited: true},
	CollSubmissions:  {table: "submissions", keyColumn: "student_id", parentColumn: "assignment_id", parent: CollAssignments, audited: true},
	CollGrades:       {table: "grades", keyColumn: "grade_id"},
	CollCommunities:  {table: "communities", keyColumn: "community_id", audited: true},
	CollEvents:       {table: "events", keyColumn: "event_id", audited: true},
	CollCertificates: {table: "certificates", keyColumn: "certificate_id"},
}

// ── 文档引用 ──

// DocRef 指向某个集合中的一篇文档
type DocRef struct {
	Collection string
	ID         string
	ParentID   string
}

// Path 文档路径，形如 users/u1 或 assignments/a1/submissions/u1
func (r DocRef) Path() string {
	if spec, ok := collections[r.Collection]; ok && spec.parent != "" {
		return fmt.Sprintf("%s/%s/%s/%s", spec.parent, r.ParentID, r.Collection, r.ID)
	}
	return r.Collection + "/" + r.ID
}

func UserRef(id string) DocRef        { return DocRef{Collection: CollUsers, ID: id} }
func FacultyRef(id string) DocRef     { return DocRef{Collection: CollFaculty, ID: id} }
func ClassRef(id string) DocRef       { return DocRef{Collection: CollClasses, ID: id} }
func AttendanceRef(id string) DocRef  { return DocRef{Collection: CollAttendance, ID: id} }
func AssignmentRef(id string) DocRef  { return DocRef{Collection: CollAssignments, ID: id} }
func GradeRef(id string) DocRef       { return DocRef{Collection: CollGrades, ID: id} }
func CommunityRef(id string) DocRef   { return DocRef{Collection: CollCommunities, ID: id} }
func EventRef(id string) DocRef       { return DocRef{Collection: CollEvents, ID: id} }
func CertificateRef(id string) DocRef { return DocRef{Collection: CollCertificates, ID: id} }

// SubmissionRef assignments/{assignmentID}/submissions/{studentID}
func SubmissionRef(assignmentID, studentID string) DocRef {
	return DocRef{Collection: CollSubmissions, ID: studentID, ParentID: assignmentID}
}

// ── 写入操作 ──

// Op 写入操作类型
type Op string

const (
	OpSet           Op = "set"             // 整篇写入（不存在则创建）
	OpUpdate        Op = "update"          // 按字段覆盖
	OpIncrement     Op = "increment"       // 相对增量，不读取旧值
	OpAddToSet      Op = "add_to_set"      // 数组去重追加
	OpRemoveFromSet Op = "remove_from_set" // 数组移除
	OpRecount       Op = "recount"         // 计数器改写为数组长度，在存储端计算
)

// Mutation 一次文档写入
type Mutation struct {
	Ref    DocRef
	Op     Op
	Doc    interface{}            // OpSet: 模型指针
	Fields map[string]interface{} // OpUpdate
	Field  string                 // OpIncrement / OpAddToSet / OpRemoveFromSet / OpRecount
	Delta  int
	Value  string // OpAddToSet / OpRemoveFromSet 的元素；OpRecount 的数组列
	// ExpectVersion 非空时为条件写入：版本不一致则整个批次失败
	ExpectVersion *int
}

func Set(ref DocRef, doc interface{}) Mutation {
	return Mutation{Ref: ref, Op: OpSet, Doc: doc}
}

func Update(ref DocRef, fields map[string]interface{}) Mutation {
	return Mutation{Ref: ref, Op: OpUpdate, Fields: fields}
}

func Increment(ref DocRef, field string, delta int) Mutation {
	return Mutation{Ref: ref, Op: OpIncrement, Field: field, Delta: delta}
}

func AddToSet(ref DocRef, field, value string) Mutation {
	return Mutation{Ref: ref, Op: OpAddToSet, Field: field, Value: value}
}

func RemoveFromSet(ref DocRef, field, value string) Mutation {
	return Mutation{Ref: ref, Op: OpRemoveFromSet, Field: field, Value: value}
}

// Recount 把 counterField 改写为 setField 的当前长度
// 长度在写入语句内读取，不依赖调用方之前读到的文档
func Recount(ref DocRef, counterField, setField string) Mutation {
	return Mutation{Ref: ref, Op: OpRecount, Field: counterField, Value: setField}
}

// WithVersion 返回带版本条件的副本
func (m Mutation) WithVersion(version int) Mutation {
	v := version
	m.ExpectVersion = &v
	return m
}

var (
	ErrUnknownCollection = errors.New("未知的集合")
	ErrInvalidMutation   = errors.New("非法的写入操作")
)

var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate 校验写入操作的结构完整性（不访问存储）
func (m Mutation) Validate() error {
	spec, ok := collections[m.Ref.Collection]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, m.Ref.Collection)
	}
	if m.Ref.ID == "" {
		return fmt.Errorf("%w: %s 缺少文档 ID", ErrInvalidMutation, m.Ref.Collection)
	}
	if spec.parent != "" && m.Ref.ParentID == "" {
		return fmt.Errorf("%w: %s 缺少父文档 ID", ErrInvalidMutation, m.Ref.Collection)
	}
	if m.ExpectVersion != nil && !spec.versioned {
		return fmt.Errorf("%w: %s 不支持版本条件", ErrInvalidMutation, m.Ref.Collection)
	}

	switch m.Op {
	case OpSet:
		if m.Doc == nil {
			return fmt.Errorf("%w: set 缺少文档内容", ErrInvalidMutation)
		}
	case OpUpdate:
		if len(m.Fields) == 0 {
			return fmt.Errorf("%w: update 缺少字段", ErrInvalidMutation)
		}
		for f := range m.Fields {
			if !fieldNamePattern.MatchString(f) {
				return fmt.Errorf("%w: 字段名 %q", ErrInvalidMutation, f)
			}
		}
	case OpIncrement:
		if !fieldNamePattern.MatchString(m.Field) {
			return fmt.Errorf("%w: 字段名 %q", ErrInvalidMutation, m.Field)
		}
		if m.Delta == 0 {
			return fmt.Errorf("%w: increment 增量为 0", ErrInvalidMutation)
		}
	case OpAddToSet, OpRemoveFromSet:
		if !fieldNamePattern.MatchString(m.Field) {
			return fmt.Errorf("%w: 字段名 %q", ErrInvalidMutation, m.Field)
		}
		if m.Value == "" {
			return fmt.Errorf("%w: %s 缺少元素值", ErrInvalidMutation, m.Op)
		}
	case OpRecount:
		if !fieldNamePattern.MatchString(m.Field) || !fieldNamePattern.MatchString(m.Value) {
			return fmt.Errorf("%w: recount 字段名 %q / %q", ErrInvalidMutation, m.Field, m.Value)
		}
		if m.Field == m.Value {
			return fmt.Errorf("%w: recount 计数列与数组列相同", ErrInvalidMutation)
		}
	default:
		return fmt.Errorf("%w: 未知操作 %q", ErrInvalidMutation, m.Op)
	}
	return nil
}
